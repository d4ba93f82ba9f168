package tools

import (
	"fmt"
	"strings"
	"time"

	"github.com/hyperifyio/goharvest/internal/content"
)

// Quality check names accepted by ValidateContentQuality.
const (
	CheckReadability  = "readability"
	CheckCompleteness = "completeness"
	CheckMetadata     = "metadata"
	CheckFreshness    = "freshness"
)

// CheckResult is one quality check outcome. Score is 0..1.
type CheckResult struct {
	Name   string  `json:"name"`
	Passed bool    `json:"passed"`
	Score  float64 `json:"score"`
	Detail string  `json:"detail,omitempty"`
}

// QualityReport aggregates the requested checks for one content item.
type QualityReport struct {
	ContentID string        `json:"contentId"`
	URL       string        `json:"url"`
	Score     float64       `json:"score"`
	Passed    bool          `json:"passed"`
	Checks    []CheckResult `json:"checks"`
}

// staleAfter is the fetch age beyond which content fails freshness.
const staleAfter = 7 * 24 * time.Hour

func runQualityChecks(wc *content.WebContent, checks []string) QualityReport {
	report := QualityReport{ContentID: wc.ID, URL: wc.URL, Passed: true}
	for _, name := range checks {
		var res CheckResult
		switch name {
		case CheckReadability:
			res = checkReadability(wc)
		case CheckCompleteness:
			res = checkCompleteness(wc)
		case CheckMetadata:
			res = checkMetadata(wc)
		case CheckFreshness:
			res = checkFreshness(wc)
		default:
			res = CheckResult{Name: name, Passed: false, Detail: "unknown check"}
		}
		report.Checks = append(report.Checks, res)
		report.Score += res.Score
		if !res.Passed {
			report.Passed = false
		}
	}
	if len(report.Checks) > 0 {
		report.Score /= float64(len(report.Checks))
	}
	return report
}

// checkReadability scores prose by sentence length: very long average
// sentences indicate extraction noise (navigation runs, concatenated
// fragments) rather than readable text.
func checkReadability(wc *content.WebContent) CheckResult {
	res := CheckResult{Name: CheckReadability}
	words := len(strings.Fields(wc.Text))
	if words == 0 {
		res.Detail = "no text extracted"
		return res
	}
	sentences := 0
	for _, r := range wc.Text {
		if r == '.' || r == '!' || r == '?' {
			sentences++
		}
	}
	if sentences == 0 {
		sentences = 1
	}
	avg := float64(words) / float64(sentences)
	switch {
	case avg <= 25:
		res.Score = 1.0
	case avg <= 40:
		res.Score = 0.6
	default:
		res.Score = 0.3
	}
	res.Passed = res.Score >= 0.6
	res.Detail = fmt.Sprintf("%d words, %.1f words per sentence", words, avg)
	return res
}

func checkCompleteness(wc *content.WebContent) CheckResult {
	res := CheckResult{Name: CheckCompleteness}
	missing := []string{}
	if len(wc.Blocks) == 0 {
		missing = append(missing, "blocks")
	}
	if strings.TrimSpace(wc.Text) == "" {
		missing = append(missing, "text")
	}
	if wc.Metadata.Title == "" {
		missing = append(missing, "title")
	}
	res.Score = float64(3-len(missing)) / 3
	res.Passed = len(missing) == 0
	if len(missing) > 0 {
		res.Detail = "missing: " + strings.Join(missing, ", ")
	}
	return res
}

func checkMetadata(wc *content.WebContent) CheckResult {
	res := CheckResult{Name: CheckMetadata}
	published := ""
	if wc.Metadata.Published != nil {
		published = wc.Metadata.Published.Format(time.RFC3339)
	}
	fields := []struct {
		name  string
		value string
	}{
		{"title", wc.Metadata.Title},
		{"description", wc.Metadata.Description},
		{"author", wc.Metadata.Author},
		{"published", published},
		{"language", wc.Metadata.Language},
	}
	present := 0
	missing := make([]string, 0, len(fields))
	for _, f := range fields {
		if strings.TrimSpace(f.value) != "" {
			present++
		} else {
			missing = append(missing, f.name)
		}
	}
	res.Score = float64(present) / float64(len(fields))
	// Title and description carry the check; the rest is advisory.
	res.Passed = wc.Metadata.Title != "" && wc.Metadata.Description != ""
	if len(missing) > 0 {
		res.Detail = "absent: " + strings.Join(missing, ", ")
	}
	return res
}

func checkFreshness(wc *content.WebContent) CheckResult {
	res := CheckResult{Name: CheckFreshness}
	age := time.Since(wc.FetchedAt)
	res.Detail = fmt.Sprintf("fetched %s ago", age.Round(time.Minute))
	if age <= staleAfter {
		res.Score = 1.0
		res.Passed = true
	}
	return res
}
