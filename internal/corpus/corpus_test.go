package corpus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestCSVLoadMapsColumnAliases(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "jobs.csv", "\ufefftitle,companyName,description,location,contractType,workType,postedTime,jobUrl,extra\n"+
		"Data Engineer,Acme,\"Build pipelines, with Spark\",Casablanca,CDI,On-site,2 days ago,https://jobs/1,x\n"+
		" ML Engineer ,Beta,Train models,,,Remote,,https://jobs/2,y\n")

	records, err := NewCSV(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	first := records[0]
	if first.ID != "1" || first.Title != "Data Engineer" || first.Company != "Acme" {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if first.Description != "Build pipelines, with Spark" || first.ContractType != "CDI" || first.URL != "https://jobs/1" {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if records[1].Title != "ML Engineer" || records[1].Location != "" || records[1].WorkType != "Remote" {
		t.Fatalf("unexpected second record: %+v", records[1])
	}
}

func TestCSVLoadRejectsUnknownHeader(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "jobs.csv", "foo,bar\n1,2\n")
	if _, err := NewCSV(path).Load(context.Background()); err == nil {
		t.Fatalf("expected error for unknown header")
	}
}

func TestGoldLoadJoinsDimensions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, FactJobsFile, "job_id,job_title,job_description,company_id,location_id,contract_type,work_type,job_url,posted_time\n"+
		"10,Data Analyst,SQL and Power BI,1,100,CDI,Hybrid,https://jobs/10,today\n"+
		"11,Data Scientist,Python,2,200,Stage,On-site,https://jobs/11,yesterday\n"+
		"12,BI Developer,Tableau,3,300,CDD,Remote,https://jobs/12,today\n")
	writeFile(t, dir, DimCompanyFile, "company_id,company_name\n1,Acme\n2,Beta\n")
	writeFile(t, dir, DimLocationFile, "location_id,city,country\n100,Casablanca,Morocco\n200,,France\n")

	records, err := NewGold(dir).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	tests := []struct {
		id, title, company, location string
	}{
		{"10", "Data Analyst", "Acme", "Casablanca"},
		{"11", "Data Scientist", "Beta", "France"},
		{"12", "BI Developer", "", ""},
	}
	for i, tt := range tests {
		got := records[i]
		if got.ID != tt.id || got.Title != tt.title || got.Company != tt.company || got.Location != tt.location {
			t.Errorf("record %d = %+v, want %+v", i, got, tt)
		}
	}
	if records[0].ContractType != "CDI" || records[0].URL != "https://jobs/10" {
		t.Fatalf("fact columns not mapped: %+v", records[0])
	}
}

func TestXLSXLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "jobs.xlsx")
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"id", "title", "company", "description", "location"},
		{"a1", "Analytics Engineer", "Acme", "dbt and BigQuery", "Rabat"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	f.Close()

	records, err := NewXLSX(path, "").Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].ID != "a1" || records[0].Location != "Rabat" || records[0].Description != "dbt and BigQuery" {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}

func TestHeadHunterLoadPaginates(t *testing.T) {
	t.Parallel()

	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		if r.URL.Path != SearchPath {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("text"); got != "data engineer" {
			t.Errorf("unexpected text param %q", got)
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))

		item := map[string]interface{}{
			"id":            strconv.Itoa(page + 1),
			"name":          "Data Engineer " + strconv.Itoa(page),
			"alternate_url": "https://hh.ru/vacancy/" + strconv.Itoa(page+1),
			"area":          map[string]interface{}{"name": "Moscow"},
			"employer":      map[string]interface{}{"name": "Acme"},
			"schedule":      map[string]interface{}{"name": "Remote"},
			"employment":    map[string]interface{}{"name": "Full time"},
			"snippet": map[string]interface{}{
				"requirement":    "<highlighttext>Spark</highlighttext> and Airflow",
				"responsibility": "Build pipelines",
			},
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"items":    []interface{}{item},
			"found":    2,
			"pages":    2,
			"page":     page,
			"per_page": perPage,
		})
	}))
	defer srv.Close()

	src := NewHeadHunter(zap.NewNop(), srv.URL, "", SearchParams{Text: "data engineer"})
	records, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if n := atomic.LoadInt32(&requests); n != 2 {
		t.Fatalf("expected 2 requests, got %d", n)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	got := records[1]
	if got.ID != "2" || got.Company != "Acme" || got.Location != "Moscow" || got.WorkType != "Remote" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Description != "Build pipelines <highlighttext>Spark</highlighttext> and Airflow" {
		t.Fatalf("unexpected description %q", got.Description)
	}
}

func TestHeadHunterLoadBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	src := NewHeadHunter(nil, srv.URL, "token", SearchParams{})
	if _, err := src.Load(context.Background()); err == nil {
		t.Fatalf("expected error on forbidden response")
	}
}

func TestVacancyRecordAppendsKeySkills(t *testing.T) {
	t.Parallel()

	v := &Vacancy{ID: "7", Name: "Go Developer", Description: "Write services"}
	v.KeySkills = append(v.KeySkills, struct {
		Name string `json:"name,omitempty"`
	}{Name: "Go"}, struct {
		Name string `json:"name,omitempty"`
	}{Name: "Kafka"})

	rec := v.Record()
	if rec.Description != "Write services Key skills: Go, Kafka." {
		t.Fatalf("unexpected description %q", rec.Description)
	}
}
