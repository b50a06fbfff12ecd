package corpus

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	FactJobsFile    = "fact_job_offers.csv"
	DimCompanyFile  = "dim_company.csv"
	DimLocationFile = "dim_location.csv"
)

// Gold joins the warehouse gold layer: the job offers fact table with the
// company and location dimensions. Non-empty fact columns win over joined ones.
type Gold struct {
	Dir string
}

func NewGold(dir string) *Gold {
	return &Gold{Dir: dir}
}

func (s *Gold) Name() string { return "gold" }

func (s *Gold) Load(ctx context.Context) ([]Record, error) {
	factHeader, factRows, err := readCSV(ctx, filepath.Join(s.Dir, FactJobsFile))
	if err != nil {
		return nil, err
	}

	companies, err := s.dimension(ctx, DimCompanyFile, "company_id", "company_name")
	if err != nil {
		return nil, err
	}
	locations, err := s.dimension(ctx, DimLocationFile, "location_id", "city", "country")
	if err != nil {
		return nil, err
	}

	companyCol := columnIndex(factHeader, "company_id")
	locationCol := columnIndex(factHeader, "location_id")

	header := append([]string{}, factHeader...)
	header = append(header, "company_name", "city")

	rows := make([][]string, 0, len(factRows))
	for _, row := range factRows {
		company := lookup(companies, row, companyCol, 0)
		city := lookup(locations, row, locationCol, 0)
		if city == "" {
			city = lookup(locations, row, locationCol, 1)
		}

		joined := make([]string, len(factHeader), len(header))
		copy(joined, row)
		joined = append(joined, company, city)
		rows = append(rows, joined)
	}

	records, err := decodeTable(header, rows)
	if err != nil {
		return nil, fmt.Errorf("decode gold layer: %w", err)
	}

	return records, nil
}

func (s *Gold) dimension(ctx context.Context, file, keyCol string, valueCols ...string) (map[string][]string, error) {
	header, rows, err := readCSV(ctx, filepath.Join(s.Dir, file))
	if err != nil {
		return nil, err
	}

	k := columnIndex(header, keyCol)
	if k < 0 {
		return nil, fmt.Errorf("%s: column %q is required", file, keyCol)
	}
	cols := make([]int, len(valueCols))
	for i, name := range valueCols {
		cols[i] = columnIndex(header, name)
	}
	if cols[0] < 0 {
		return nil, fmt.Errorf("%s: column %q is required", file, valueCols[0])
	}

	out := make(map[string][]string, len(rows))
	for _, row := range rows {
		if k >= len(row) {
			continue
		}
		values := make([]string, len(cols))
		for i, c := range cols {
			if c >= 0 && c < len(row) {
				values[i] = strings.TrimSpace(row[c])
			}
		}
		out[strings.TrimSpace(row[k])] = values
	}

	return out, nil
}

func columnIndex(header []string, name string) int {
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), name) {
			return i
		}
	}
	return -1
}

func lookup(dim map[string][]string, row []string, col, value int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	values, ok := dim[strings.TrimSpace(row[col])]
	if !ok || value >= len(values) {
		return ""
	}
	return values[value]
}
