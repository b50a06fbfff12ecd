package corpus

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

// CSV reads a single flat table with a header row.
type CSV struct {
	Path string
}

func NewCSV(path string) *CSV {
	return &CSV{Path: path}
}

func (s *CSV) Name() string { return "csv" }

func (s *CSV) Load(ctx context.Context) ([]Record, error) {
	header, rows, err := readCSV(ctx, s.Path)
	if err != nil {
		return nil, err
	}

	records, err := decodeTable(header, rows)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Path, err)
	}

	return records, nil
}

func readCSV(ctx context.Context, path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	if len(header) > 0 {
		header[0] = trimBOM(header[0])
	}

	var rows [][]string
	for {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", path, err)
		}
		rows = append(rows, row)
	}

	return header, rows, nil
}

func trimBOM(s string) string {
	return strings.TrimPrefix(s, "\ufeff")
}
