package sources

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperifyio/goharvest/internal/content"
)

// Spreadsheet import: column layout for the Sources sheet (0-based).
const (
	colURL      = 0 // Column A
	colTitle    = 1 // Column B
	colCategory = 2 // Column C
	colTags     = 3 // Column D, comma-separated

	importSheet = "Sources"
)

// ImportRowError reports a rejected spreadsheet row. Row numbers are the
// 1-based Excel row for error reporting.
type ImportRowError struct {
	Row     int    `json:"row"`
	Problem string `json:"problem"`
}

// ImportReport summarizes one spreadsheet import.
type ImportReport struct {
	Added      []content.Source `json:"added"`
	Duplicates []content.Source `json:"duplicates"`
	Errors     []ImportRowError `json:"errors"`
}

// ImportExcel registers sources listed in an .xlsx file without fetching
// them. The first row is treated as a header. Row-level problems are
// collected rather than aborting the import.
func (r *Registry) ImportExcel(ctx context.Context, path string) (*ImportReport, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	sheet := importSheet
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	report := &ImportReport{}
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		excelRow := i + 1
		url := cell(row, colURL)
		if url == "" {
			continue // skip blank lines silently
		}
		if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
			report.Errors = append(report.Errors, ImportRowError{
				Row: excelRow, Problem: "url must start with http:// or https://"})
			continue
		}
		ns := NewSource{
			URL:   url,
			Title: cell(row, colTitle),
			Metadata: content.SourceMetadata{
				Category: cell(row, colCategory),
				Tags:     splitTags(cell(row, colTags)),
			},
		}
		src, dup, err := r.Add(ctx, ns)
		if err != nil {
			report.Errors = append(report.Errors, ImportRowError{Row: excelRow, Problem: err.Error()})
			continue
		}
		if dup {
			report.Duplicates = append(report.Duplicates, src)
		} else {
			report.Added = append(report.Added, src)
		}
	}
	return report, nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
