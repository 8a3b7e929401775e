package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestStatsText(t *testing.T) {
	setupViper(t, "text")
	file := writeTempFile(t, t.TempDir(), "auth.log", authLines)

	var out, errOut bytes.Buffer
	cmd := newTestCmd("stats", &out, &errOut, statsFlags)
	if err := runStats(cmd, []string{"authlog=" + file}); err != nil {
		t.Fatalf("runStats() error = %v", err)
	}

	output := out.String()
	for _, want := range []string{
		"80.00%",
		"Total Records: 8",
		"Templates:",
		"Top Messages:",
		"Unmatched Line Clusters:",
		"e.g. this line matches nothing",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
	if strings.Contains(output, "Trend Analysis") {
		t.Errorf("no trend analysis expected without --window:\n%s", output)
	}
}

func TestStatsNoClusters(t *testing.T) {
	setupViper(t, "text")
	file := writeTempFile(t, t.TempDir(), "auth.log", authLines)

	var out, errOut bytes.Buffer
	cmd := newTestCmd("stats", &out, &errOut, statsFlags)
	cmd.Flags().Set("clusters", "0")
	if err := runStats(cmd, []string{"authlog=" + file}); err != nil {
		t.Fatalf("runStats() error = %v", err)
	}
	if strings.Contains(out.String(), "Unmatched Line Clusters") {
		t.Errorf("clusters shown with --clusters 0:\n%s", out.String())
	}
}

func TestStatsWindow(t *testing.T) {
	setupViper(t, "text")
	file := writeTempFile(t, t.TempDir(), "auth.log", authLines)

	var out, errOut bytes.Buffer
	cmd := newTestCmd("stats", &out, &errOut, statsFlags)
	cmd.Flags().Set("window", "5m")
	if err := runStats(cmd, []string{"authlog=" + file}); err != nil {
		t.Fatalf("runStats() error = %v", err)
	}
	if !strings.Contains(out.String(), "Trend Analysis:") || !strings.Contains(out.String(), ": 8 records") {
		t.Errorf("expected one window of 8 records:\n%s", out.String())
	}
}

func TestStatsJSON(t *testing.T) {
	setupViper(t, "json")
	file := writeTempFile(t, t.TempDir(), "auth.log", authLines)

	var out, errOut bytes.Buffer
	cmd := newTestCmd("stats", &out, &errOut, statsFlags)
	cmd.Flags().Set("window", "1h")
	if err := runStats(cmd, []string{"authlog=" + file}); err != nil {
		t.Fatalf("runStats() error = %v", err)
	}

	var result struct {
		TotalRecords int `json:"total_records"`
		Templates    []struct {
			ID    string `json:"id"`
			Count int    `json:"count"`
		} `json:"templates"`
		Clusters []struct {
			Count    int      `json:"count"`
			Examples []string `json:"examples"`
		} `json:"unmatched_clusters"`
		Files   []json.RawMessage `json:"files"`
		Windows []struct {
			Count int `json:"count"`
		} `json:"windows"`
	}
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out.String())
	}
	if result.TotalRecords != 8 {
		t.Errorf("total_records = %d, want 8", result.TotalRecords)
	}
	counts := make(map[string]int)
	for _, tc := range result.Templates {
		counts[tc.ID] = tc.Count
	}
	want := map[string]int{"T1": 3, "T2": 3, "T3": 1, "T4": 1}
	for id, n := range want {
		if counts[id] != n {
			t.Errorf("template %s count = %d, want %d", id, counts[id], n)
		}
	}
	unmatched := 0
	for _, c := range result.Clusters {
		unmatched += c.Count
	}
	if unmatched != 2 {
		t.Errorf("clustered %d unmatched lines, want 2", unmatched)
	}
	if len(result.Files) != 1 {
		t.Errorf("files = %d, want 1", len(result.Files))
	}
	if len(result.Windows) != 1 || result.Windows[0].Count != 8 {
		t.Errorf("windows = %+v", result.Windows)
	}
}

func TestStatsSince(t *testing.T) {
	setupViper(t, "json")
	file := writeTempFile(t, t.TempDir(), "auth.log", authLines)
	// Syslog timestamps take the current year.
	year := nowFunc().Format("2006")

	var out, errOut bytes.Buffer
	cmd := newTestCmd("stats", &out, &errOut, statsFlags)
	cmd.Flags().Set("since", year+"-01-05 10:00:05")
	if err := runStats(cmd, []string{"authlog=" + file}); err != nil {
		t.Fatalf("runStats() error = %v", err)
	}

	var result struct {
		TotalRecords int `json:"total_records"`
	}
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if result.TotalRecords != 3 {
		t.Errorf("total_records = %d, want 3", result.TotalRecords)
	}
}

func TestStatsErrors(t *testing.T) {
	tests := []struct {
		name   string
		window string
	}{
		{"unparseable window", "often"},
		{"zero window", "0s"},
		{"negative window", "-5m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupViper(t, "text")
			file := writeTempFile(t, t.TempDir(), "auth.log", authLines)
			var out, errOut bytes.Buffer
			cmd := newTestCmd("stats", &out, &errOut, statsFlags)
			cmd.Flags().Set("window", tt.window)
			if err := runStats(cmd, []string{"authlog=" + file}); err == nil {
				t.Error("runStats() should fail")
			}
		})
	}
}
