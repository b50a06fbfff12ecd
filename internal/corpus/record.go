// Package corpus loads raw job postings produced by the upstream ETL into
// Records the catalog builder can consume.
package corpus

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Record is one raw posting as delivered by a Source.
type Record struct {
	ID           string `mapstructure:"id" json:"id"`
	Title        string `mapstructure:"title" json:"title"`
	Description  string `mapstructure:"description" json:"description"`
	Company      string `mapstructure:"company" json:"company"`
	CompanyURL   string `mapstructure:"company_url" json:"company_url,omitempty"`
	Location     string `mapstructure:"location" json:"location"`
	ContractType string `mapstructure:"contract_type" json:"contract_type"`
	WorkType     string `mapstructure:"work_type" json:"work_type"`
	PostedTime   string `mapstructure:"posted_time" json:"posted_time"`
	PublishedAt  string `mapstructure:"published_at" json:"published_at,omitempty"`
	URL          string `mapstructure:"url" json:"url"`
	Category     string `mapstructure:"category" json:"category,omitempty"`
}

// Source produces the raw corpus.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]Record, error)
}

// columnAliases maps the column spellings found in exported tables onto Record keys.
var columnAliases = map[string]string{
	"id":              "id",
	"job_id":          "id",
	"title":           "title",
	"job_title":       "title",
	"description":     "description",
	"job_description": "description",
	"company":         "company",
	"companyname":     "company",
	"company_name":    "company",
	"companyurl":      "company_url",
	"company_url":     "company_url",
	"location":        "location",
	"city":            "location",
	"contracttype":    "contract_type",
	"contract_type":   "contract_type",
	"worktype":        "work_type",
	"work_type":       "work_type",
	"postedtime":      "posted_time",
	"posted_time":     "posted_time",
	"publishedat":     "published_at",
	"published_at":    "published_at",
	"url":             "url",
	"joburl":          "url",
	"job_url":         "url",
	"category":        "category",
	"jobcategory":     "category",
	"job_category":    "category",
}

func canonicalColumn(name string) (string, bool) {
	key, ok := columnAliases[strings.ToLower(strings.TrimSpace(name))]
	return key, ok
}

// decodeRow converts a generic row into a Record. Unknown columns are ignored.
func decodeRow(row map[string]interface{}) (Record, error) {
	var rec Record

	cfg := &mapstructure.DecoderConfig{
		Result:           &rec,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(cfg)
	if err != nil {
		return Record{}, err
	}
	if err := decoder.Decode(row); err != nil {
		return Record{}, err
	}

	rec.trim()
	return rec, nil
}

// decodeTable maps a header + rows table into Records. Missing ids are
// replaced with the 1-based data row number.
func decodeTable(header []string, rows [][]string) ([]Record, error) {
	keys := make([]string, len(header))
	found := false
	for i, col := range header {
		if key, ok := canonicalColumn(col); ok {
			keys[i] = key
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("no known columns in header %v", header)
	}

	records := make([]Record, 0, len(rows))
	for n, row := range rows {
		generic := make(map[string]interface{}, len(keys))
		for i, key := range keys {
			if key == "" || i >= len(row) {
				continue
			}
			// first column wins when two aliases map to the same key
			if prev, ok := generic[key]; ok && prev != "" {
				continue
			}
			generic[key] = row[i]
		}

		rec, err := decodeRow(generic)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", n+1, err)
		}
		if rec.ID == "" {
			rec.ID = strconv.Itoa(n + 1)
		}
		records = append(records, rec)
	}

	return records, nil
}

func (r *Record) trim() {
	r.ID = strings.TrimSpace(r.ID)
	r.Title = strings.TrimSpace(r.Title)
	r.Company = strings.TrimSpace(r.Company)
	r.CompanyURL = strings.TrimSpace(r.CompanyURL)
	r.Location = strings.TrimSpace(r.Location)
	r.ContractType = strings.TrimSpace(r.ContractType)
	r.WorkType = strings.TrimSpace(r.WorkType)
	r.PostedTime = strings.TrimSpace(r.PostedTime)
	r.PublishedAt = strings.TrimSpace(r.PublishedAt)
	r.URL = strings.TrimSpace(r.URL)
	r.Category = strings.TrimSpace(r.Category)
}
