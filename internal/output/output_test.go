package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/bimmerbailey/logwarden/internal/analyzer"
	"github.com/bimmerbailey/logwarden/internal/anomaly"
	"github.com/bimmerbailey/logwarden/internal/record"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"table", FormatTable},
		{"text", FormatText},
		{"", FormatText},
		{"yaml", FormatText},
	}
	for _, tt := range tests {
		if got := ParseFormat(tt.in); got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func sampleRecords() []record.Record {
	return []record.Record{
		{
			TemplateID: "T1",
			Message:    "Failed password for root",
			Raw:        "Jan  5 10:00:00 web1 sshd[1]: Failed password for root",
			Timestamp:  record.Time(time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)),
			Line:       3,
		},
		{TemplateID: "E4625", Message: "Event 4625 by bob on WS1", Timestamp: record.Null()},
	}
}

func TestWriteRecords(t *testing.T) {
	t.Run("text prints raw lines", func(t *testing.T) {
		var buf bytes.Buffer
		if err := New(&buf, FormatText).WriteRecords(sampleRecords()); err != nil {
			t.Fatal(err)
		}
		want := "Jan  5 10:00:00 web1 sshd[1]: Failed password for root\nEvent 4625 by bob on WS1\n"
		if buf.String() != want {
			t.Errorf("got %q, want %q", buf.String(), want)
		}
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		if err := New(&buf, FormatTable).WriteRecords(sampleRecords()); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		for _, want := range []string{"TEMPLATE", "2026-01-05 10:00:00", "E4625"} {
			if !strings.Contains(out, want) {
				t.Errorf("table missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("json empty is an array", func(t *testing.T) {
		var buf bytes.Buffer
		if err := New(&buf, FormatJSON).WriteRecords(nil); err != nil {
			t.Fatal(err)
		}
		if strings.TrimSpace(buf.String()) != "[]" {
			t.Errorf("got %q", buf.String())
		}
	})
}

func TestWriteRates(t *testing.T) {
	rates := []analyzer.Rate{
		{Path: "auth.log", LogType: "authlog", Lines: 10, Parsed: 8, Skipped: 2, Percent: 80},
		{Path: "win.json", LogType: "windowslog", Lines: 10, Parsed: 10, Percent: 100},
	}
	overall := analyzer.OverallRate(rates)

	var buf bytes.Buffer
	if err := New(&buf, FormatText).WriteRates(rates, overall); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "80.00%") || !strings.Contains(out, "90.00%") {
		t.Errorf("rates output:\n%s", out)
	}

	buf.Reset()
	if err := New(&buf, FormatJSON).WriteRates(rates, overall); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Files   []analyzer.Rate `json:"files"`
		Overall analyzer.Rate   `json:"overall"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.Overall.Parsed != 18 || len(decoded.Files) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteStats(t *testing.T) {
	stats := analyzer.Stats{
		TotalRecords: 4,
		Templates: []analyzer.TemplateCount{
			{ID: "T1", Pattern: "Failed password", Count: 3, Percent: 75},
			{ID: "T2", Count: 1, Percent: 25},
		},
		TopMessages: []analyzer.MessageCount{{Message: "boom", Count: 2}},
		Clusters: []analyzer.Cluster{
			{ID: "C1", Pattern: "kernel: <*>", Regex: `^kernel:\s+\S+$`, Count: 2, Examples: []string{"kernel: oops"}},
		},
	}

	var buf bytes.Buffer
	if err := New(&buf, FormatText).WriteStats(stats); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Total Records: 4", "T1", "[2] boom", "Unmatched Line Clusters", `^kernel:\s+\S+$`} {
		if !strings.Contains(out, want) {
			t.Errorf("stats output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := New(&buf, FormatTable).WriteStats(stats); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "SUGGESTED REGEX") {
		t.Errorf("table output:\n%s", buf.String())
	}
}

func TestWriteFindings(t *testing.T) {
	findings := []anomaly.Finding{
		{Severity: anomaly.SeverityHigh, Rule: anomaly.RuleTemplate, Details: "Failed password for root"},
		{Severity: anomaly.SeverityLow, Rule: anomaly.RuleContextual, Details: "T1 T2 T9"},
	}

	var buf bytes.Buffer
	if err := New(&buf, FormatText).WriteFindings(findings); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, `[HIGH] Template Anomaly: "Failed password for root"`) {
		t.Errorf("text findings:\n%s", out)
	}
	if strings.Contains(out, "\033[") {
		t.Error("color codes without WithColor")
	}

	buf.Reset()
	if err := New(&buf, FormatText).WithColor(true).WriteFindings(findings); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\033[31m") {
		t.Errorf("expected colored severity:\n%q", buf.String())
	}

	buf.Reset()
	if err := New(&buf, FormatText).WriteFindings(nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No anomalies detected") {
		t.Errorf("empty findings: %q", buf.String())
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, FormatText).WriteSummary(8, map[string]int{anomaly.RuleTemplate: 1, anomaly.RuleContextual: 2})
	want := "Analyzed 8 records: 1 template, 0 attribute, 2 contextual anomalies"
	if !strings.Contains(buf.String(), want) {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("0123456789abc", 10); got != "0123456..." {
		t.Errorf("truncate() = %q", got)
	}
}
