// Package export writes recommendation results to spreadsheet files.
package export

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/spigell/job-recommender/internal/recommend"
)

const (
	SummarySheet         = "Summary"
	RecommendationsSheet = "Recommendations"
)

var recommendationHeaders = []string{
	"Rank", "Job ID", "Title", "Company", "Location", "Contract", "Level",
	"Score", "Semantic", "Skills", "Location Score", "Contract Score", "Experience Score",
	"Skills Matched", "Job Skills", "Link",
}

var border = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

// Recommendations writes results to an .xlsx workbook at path. The query
// summary is written to its own sheet.
func Recommendations(results []recommend.Result, query recommend.Query, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}
	path = filepath.Clean(path)

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(RecommendationsSheet); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	if err := writeSummary(f, results, query); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	if err := writeRecommendations(f, results); err != nil {
		return fmt.Errorf("recommendations sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}

	return nil
}

func writeSummary(f *excelize.File, results []recommend.Result, query recommend.Query) error {
	sheet := SummarySheet

	if err := f.SetColWidth(sheet, "A", "A", 22); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "B", "B", 60); err != nil {
		return err
	}

	labelStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	rows := [][2]any{
		{"Generated:", time.Now().Format("2006-01-02 15:04:05")},
		{"Profile:", query.Profile},
		{"Keywords:", strings.Join(query.Keywords, ", ")},
		{"Location:", query.Preferences.Location},
		{"Contract Type:", query.Preferences.ContractType},
		{"Experience Level:", query.Preferences.ExperienceLevel},
		{"Minimum Score:", query.MinScore},
		{"Results:", len(results)},
	}
	if len(results) > 0 {
		var sum float64
		for _, r := range results {
			sum += r.Score
		}
		rows = append(rows,
			[2]any{"Best Score:", round4(results[0].Score)},
			[2]any{"Average Score:", round4(sum / float64(len(results)))},
		)
	}

	for i, row := range rows {
		label := fmt.Sprintf("A%d", i+1)
		if err := f.SetCellValue(sheet, label, row[0]); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, label, label, labelStyle); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, fmt.Sprintf("B%d", i+1), row[1]); err != nil {
			return err
		}
	}

	return nil
}

func writeRecommendations(f *excelize.File, results []recommend.Result) error {
	sheet := RecommendationsSheet

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    border,
	})
	if err != nil {
		return err
	}

	bands := make([]int, 0, 3)
	for _, color := range []string{"C6EFCE", "FFEB9C", "FFC7CE"} {
		style, err := f.NewStyle(&excelize.Style{
			Fill:   excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Border: border,
		})
		if err != nil {
			return err
		}
		bands = append(bands, style)
	}

	for col, header := range recommendationHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "C", "D", 30); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "O", "O", 40); err != nil {
		return err
	}

	lastCol, err := excelize.ColumnNumberToName(len(recommendationHeaders))
	if err != nil {
		return err
	}

	for i, r := range results {
		row := i + 2
		b := r.Breakdown
		values := []any{
			i + 1, r.Job.ID, r.Job.Title, r.Job.Company, r.Job.Location, r.Job.ContractType,
			r.Job.ExperienceLevel.String(),
			round4(r.Score), round4(b.Semantic), round4(b.Skills), b.Location, b.Contract, b.Experience,
			b.SkillsMatched, strings.Join(r.Job.Skills, ", "), r.Job.URL,
		}

		start, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, start, &values); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, start, fmt.Sprintf("%s%d", lastCol, row), bands[band(r.Score)]); err != nil {
			return err
		}
		if r.Job.URL != "" {
			if err := f.SetCellHyperLink(sheet, fmt.Sprintf("%s%d", lastCol, row), r.Job.URL, "External"); err != nil {
				return err
			}
		}
	}

	if len(results) > 0 {
		ref := fmt.Sprintf("A1:%s%d", lastCol, len(results)+1)
		if err := f.AutoFilter(sheet, ref, []excelize.AutoFilterOptions{}); err != nil {
			return err
		}
	}

	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// band picks a row colour: strong, fair or weak match.
func band(score float64) int {
	switch {
	case score >= 0.7:
		return 0
	case score >= 0.5:
		return 1
	default:
		return 2
	}
}

func round4(v float64) float64 {
	return float64(int64(v*10000+0.5)) / 10000
}
