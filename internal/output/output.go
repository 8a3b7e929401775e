// Package output provides formatted output rendering for parsed records,
// parse rates, statistics and findings. It supports text, JSON, and table
// formats.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/bimmerbailey/logwarden/internal/analyzer"
	"github.com/bimmerbailey/logwarden/internal/anomaly"
	"github.com/bimmerbailey/logwarden/internal/record"
)

// Format represents an output format type.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat converts a string to a Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// Writer handles writing formatted output.
type Writer struct {
	w      io.Writer
	format Format
	color  bool
}

// New creates a new output Writer.
func New(w io.Writer, format Format) *Writer {
	return &Writer{w: w, format: format}
}

// WithColor enables severity colors in text and table output.
func (wr *Writer) WithColor(on bool) *Writer {
	wr.color = on
	return wr
}

// Format returns the writer's format.
func (wr *Writer) Format() Format {
	return wr.format
}

// Printf writes free-form text.
func (wr *Writer) Printf(format string, args ...any) {
	fmt.Fprintf(wr.w, format, args...)
}

// WriteJSON outputs any value as indented JSON.
func (wr *Writer) WriteJSON(v any) error {
	enc := json.NewEncoder(wr.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteRecords outputs parsed records in the configured format.
func (wr *Writer) WriteRecords(records []record.Record) error {
	switch wr.format {
	case FormatJSON:
		if records == nil {
			records = []record.Record{}
		}
		return wr.WriteJSON(records)
	case FormatTable:
		return wr.writeRecordTable(records)
	default:
		for _, r := range records {
			line := r.Raw
			if line == "" {
				line = r.Message
			}
			fmt.Fprintln(wr.w, line)
		}
		return nil
	}
}

func (wr *Writer) writeRecordTable(records []record.Record) error {
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LINE\tTEMPLATE\tTIMESTAMP\tMESSAGE")
	fmt.Fprintln(tw, "----\t--------\t---------\t-------")

	for _, r := range records {
		ts := r.Timestamp.String()
		if t, ok := r.Timestamp.TimeValue(); ok {
			ts = t.Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Line, r.TemplateID, ts, truncate(r.Message, 80))
	}

	return tw.Flush()
}

// WriteRates outputs per-file parse rates followed by the overall rate.
func (wr *Writer) WriteRates(rates []analyzer.Rate, overall analyzer.Rate) error {
	if wr.format == FormatJSON {
		return wr.WriteJSON(struct {
			Files   []analyzer.Rate `json:"files"`
			Overall analyzer.Rate   `json:"overall"`
		}{rates, overall})
	}

	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tTYPE\tLINES\tPARSED\tRATE")
	for _, r := range rates {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.2f%%\n", r.Path, r.LogType, r.Lines, r.Parsed, r.Percent)
	}
	if len(rates) > 1 {
		fmt.Fprintf(tw, "total\t\t%d\t%d\t%.2f%%\n", overall.Lines, overall.Parsed, overall.Percent)
	}
	return tw.Flush()
}

// WriteStats outputs template statistics.
func (wr *Writer) WriteStats(stats analyzer.Stats) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(stats)
	case FormatTable:
		return wr.writeStatsTable(stats)
	}

	fmt.Fprintf(wr.w, "Total Records: %d\n", stats.TotalRecords)
	if !stats.FirstEntry.IsZero() {
		fmt.Fprintf(wr.w, "Time Range: %s to %s\n",
			stats.FirstEntry.Format(time.DateTime), stats.LastEntry.Format(time.DateTime))
	}

	if len(stats.Templates) > 0 {
		fmt.Fprintln(wr.w, "\nTemplates:")
		for _, t := range stats.Templates {
			fmt.Fprintf(wr.w, "  %-6s %6d (%5.1f%%)  %s\n", t.ID, t.Count, t.Percent, truncate(t.Pattern, 70))
		}
	}
	if len(stats.Sources) > 1 {
		fmt.Fprintln(wr.w, "\nSources:")
		for _, s := range stats.Sources {
			fmt.Fprintf(wr.w, "  %6d (%5.1f%%)  %s\n", s.Count, s.Percent, s.Key)
		}
	}
	if len(stats.TopMessages) > 0 {
		fmt.Fprintln(wr.w, "\nTop Messages:")
		for i, m := range stats.TopMessages {
			fmt.Fprintf(wr.w, "  %2d. [%d] %s\n", i+1, m.Count, truncate(m.Message, 80))
		}
	}
	if len(stats.Clusters) > 0 {
		fmt.Fprintln(wr.w, "\nUnmatched Line Clusters:")
		wr.writeClusterText(stats.Clusters)
	}
	return nil
}

func (wr *Writer) writeStatsTable(stats analyzer.Stats) error {
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TEMPLATE\tCOUNT\tPERCENT\tPATTERN")
	fmt.Fprintln(tw, "--------\t-----\t-------\t-------")
	for _, t := range stats.Templates {
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%s\n", t.ID, t.Count, t.Percent, truncate(t.Pattern, 60))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(wr.w, "\nTotal records: %d\n", stats.TotalRecords)

	if len(stats.Clusters) > 0 {
		fmt.Fprintln(wr.w)
		tw = tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CLUSTER\tCOUNT\tSUGGESTED REGEX")
		fmt.Fprintln(tw, "-------\t-----\t---------------")
		for _, c := range stats.Clusters {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", c.ID, c.Count, c.Regex)
		}
		return tw.Flush()
	}
	return nil
}

func (wr *Writer) writeClusterText(clusters []analyzer.Cluster) {
	for _, c := range clusters {
		fmt.Fprintf(wr.w, "  %s [%d] %s\n", c.ID, c.Count, c.Pattern)
		fmt.Fprintf(wr.w, "      suggested: %s\n", c.Regex)
		for _, ex := range c.Examples {
			fmt.Fprintf(wr.w, "      e.g. %s\n", truncate(ex, 100))
		}
	}
}

// WriteWindows outputs per-window record counts.
func (wr *Writer) WriteWindows(windows []analyzer.TimeWindowStats) error {
	if wr.format == FormatJSON {
		return wr.WriteJSON(windows)
	}

	fmt.Fprintln(wr.w, "Trend Analysis:")
	for i, win := range windows {
		if win.Count == 0 {
			continue
		}
		changeStr := ""
		if i > 0 {
			if win.ChangePercent > 0 {
				changeStr = fmt.Sprintf(" ↑ %.1f%%", win.ChangePercent)
			} else if win.ChangePercent < 0 {
				changeStr = fmt.Sprintf(" ↓ %.1f%%", -win.ChangePercent)
			}
		}
		fmt.Fprintf(wr.w, "  %s - %s: %d records%s\n",
			win.Start.Format("15:04:05"), win.End.Format("15:04:05"), win.Count, changeStr)
	}
	return nil
}

// WriteFindings outputs a findings summary. Text output lists one finding
// per line; the full details go to JSON.
func (wr *Writer) WriteFindings(findings []anomaly.Finding) error {
	switch wr.format {
	case FormatJSON:
		if findings == nil {
			findings = []anomaly.Finding{}
		}
		return wr.WriteJSON(findings)
	case FormatTable:
		tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SEVERITY\tRULE\tSOURCE\tDETAILS")
		fmt.Fprintln(tw, "--------\t----\t------\t-------")
		for _, f := range findings {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", wr.severity(f.Severity), f.Rule, f.Source(), truncate(f.DetailsText(), 80))
		}
		return tw.Flush()
	}

	if len(findings) == 0 {
		fmt.Fprintln(wr.w, "No anomalies detected.")
		return nil
	}
	for _, f := range findings {
		fmt.Fprintf(wr.w, "[%s] %s: %s\n", wr.severity(f.Severity), f.Rule, truncate(f.DetailsText(), 120))
	}
	return nil
}

// WriteSummary outputs the per-rule finding counts.
func (wr *Writer) WriteSummary(records int, counts map[string]int) {
	fmt.Fprintf(wr.w, "\nAnalyzed %d records: %d template, %d attribute, %d contextual anomalies\n",
		records, counts[anomaly.RuleTemplate], counts[anomaly.RuleAttribute], counts[anomaly.RuleContextual])
}

func (wr *Writer) severity(sev anomaly.Severity) string {
	label := strings.ToUpper(string(sev))
	if wr.color {
		return ColorizeSeverity(sev, label)
	}
	return label
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
