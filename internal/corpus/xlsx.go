package corpus

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSX reads postings from one worksheet of a workbook. The first row is the header.
type XLSX struct {
	Path  string
	Sheet string
}

func NewXLSX(path, sheet string) *XLSX {
	return &XLSX{Path: path, Sheet: sheet}
}

func (s *XLSX) Name() string { return "xlsx" }

func (s *XLSX) Load(ctx context.Context) ([]Record, error) {
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := s.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []Record{}, nil
	}

	records, err := decodeTable(rows[0], rows[1:])
	if err != nil {
		return nil, fmt.Errorf("decode sheet %q: %w", sheet, err)
	}

	return records, nil
}
