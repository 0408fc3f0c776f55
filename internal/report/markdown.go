// Package report renders batch results as Markdown and PDF.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperifyio/goindicator/internal/extract"
	"github.com/hyperifyio/goindicator/internal/model"
)

// Markdown renders a batch summary: an overview table followed by the
// validated values of each URL.
func Markdown(b model.BatchResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Indicator batch %s\n\n", b.JobID)
	if !b.StartedAt.IsZero() {
		fmt.Fprintf(&sb, "Started: %s\n\n", b.StartedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	}
	fmt.Fprintf(&sb, "URLs: %d. Success rate: %.0f%%. Duration: %s.\n\n", len(b.Results), b.SuccessRate*100, b.Duration)

	sb.WriteString("| URL | Status | Strategy | Fallback | Valid | Error |\n")
	sb.WriteString("|---|---|---|---|---|---|\n")
	for _, r := range b.Results {
		strategy, fallback, valid := "", "", 0
		if o := r.Outcome; o != nil {
			strategy = string(o.Metadata.FinalStrategy)
			fallback = strconv.FormatBool(o.Metadata.FallbackUsed)
			valid = len(o.ExtractedValues)
		}
		fmt.Fprintf(&sb, "| %s | %s | %s | %s | %d | %s |\n", cell(r.URL), r.Status, strategy, fallback, valid, cell(r.Error))
	}

	for _, r := range b.Results {
		if r.Outcome == nil || len(r.Outcome.ExtractedValues) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n## %s\n\n", r.URL)
		for _, c := range extract.Sorted(r.Outcome.ExtractedValues) {
			sb.WriteString("- " + formatCandidate(c) + "\n")
		}
		if links := r.Outcome.Metadata.PriorityLinks; len(links) > 0 {
			sb.WriteString("\nRelated data pages:\n\n")
			for _, l := range links {
				text := l.Text
				if text == "" {
					text = l.URL
				}
				fmt.Fprintf(&sb, "- [%s](%s)\n", text, l.URL)
			}
		}
	}
	return sb.String()
}

func formatCandidate(c model.Candidate) string {
	v := strconv.FormatFloat(c.Value, 'f', -1, 64)
	if c.Unit != "" {
		v += " " + c.Unit
	}
	period := c.Temporal.ReferenceDate
	if period == "" && c.Temporal.Year > 0 {
		period = strconv.Itoa(c.Temporal.Year)
	}
	s := fmt.Sprintf("%s: %s", c.IndicatorName, v)
	if period != "" {
		s += " (" + period + ")"
	}
	s += fmt.Sprintf(" [%s, %s, confidence %.2f]", c.Category, c.Method, c.Confidence)
	if c.Institution != "" {
		s += " source " + c.Institution
	}
	if c.GovernmentPermissive {
		s += " (permissive)"
	}
	return s
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.Join(strings.Fields(s), " ")
}
