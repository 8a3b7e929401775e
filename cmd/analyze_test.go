package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestAnalyzeBasicText(t *testing.T) {
	setupViper(t, "text")
	file := writeTempFile(t, t.TempDir(), "auth.log", authLines)

	var out, errOut bytes.Buffer
	cmd := newTestCmd("analyze", &out, &errOut, analyzeFlags)
	if err := cmd.Flags().Set("log-type", "authlog"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := runAnalyze(cmd, []string{file}); err != nil {
		t.Fatalf("runAnalyze() error = %v", err)
	}

	output := out.String()
	for _, want := range []string{
		"ALERT [HIGH]",
		"Rule: Template Anomaly",
		"ALERT [LOW]",
		"Rule: Contextual Anomaly",
		"80.00%",
		"Analyzed 8 records: 1 template, 0 attribute, 1 contextual anomalies",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
	// The console channel already printed the findings.
	if strings.Contains(output, "No anomalies detected") {
		t.Errorf("findings listed twice:\n%s", output)
	}
}

func TestAnalyzeJSON(t *testing.T) {
	setupViper(t, "json")
	viper.Set("alerting.channels.console", false)
	file := writeTempFile(t, t.TempDir(), "auth.log", authLines)

	var out, errOut bytes.Buffer
	cmd := newTestCmd("analyze", &out, &errOut, analyzeFlags)

	if err := runAnalyze(cmd, []string{"authlog=" + file}); err != nil {
		t.Fatalf("runAnalyze() error = %v", err)
	}

	var report struct {
		Records  int `json:"records"`
		Findings []struct {
			Severity string         `json:"severity"`
			Rule     string         `json:"rule"`
			Details  map[string]any `json:"details"`
		} `json:"findings"`
		Counts map[string]int `json:"counts"`
		Files  []struct {
			Parsed  int     `json:"parsed"`
			Percent float64 `json:"percent"`
		} `json:"files"`
	}
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out.String())
	}
	if report.Records != 8 || len(report.Findings) != 2 {
		t.Fatalf("report = %+v", report)
	}
	if report.Findings[0].Rule != "Template Anomaly" || report.Findings[0].Severity != "high" {
		t.Errorf("first finding = %+v", report.Findings[0])
	}
	if got := report.Findings[0].Details["anomaly_rule"]; got != "Failed password" {
		t.Errorf("anomaly_rule = %v", got)
	}
	if got := fmt.Sprint(report.Findings[1].Details["ngram"]); got != "[T1 T2 T4]" {
		t.Errorf("ngram = %s", got)
	}
	if len(report.Files) != 1 || report.Files[0].Parsed != 8 {
		t.Errorf("files = %+v", report.Files)
	}
}

func TestAnalyzeSequenceFlags(t *testing.T) {
	setupViper(t, "json")
	viper.Set("alerting.channels.console", false)
	file := writeTempFile(t, t.TempDir(), "auth.log", authLines)

	var out, errOut bytes.Buffer
	cmd := newTestCmd("analyze", &out, &errOut, analyzeFlags)
	// Every 2-gram of the filtered sequence occurs at least once.
	if err := cmd.Flags().Set("n", "2"); err != nil {
		t.Fatal(err)
	}
	if err := cmd.Flags().Set("min-frequency", "1"); err != nil {
		t.Fatal(err)
	}
	if err := runAnalyze(cmd, []string{"authlog=" + file}); err != nil {
		t.Fatalf("runAnalyze() error = %v", err)
	}
	if strings.Contains(out.String(), "Contextual Anomaly") {
		t.Errorf("no contextual anomaly expected with min-frequency 1:\n%s", out.String())
	}
}

func TestAnalyzeMetricsFile(t *testing.T) {
	setupViper(t, "text")
	dir := t.TempDir()
	file := writeTempFile(t, dir, "auth.log", authLines)
	metrics := filepath.Join(dir, "logwarden.prom")

	var out, errOut bytes.Buffer
	cmd := newTestCmd("analyze", &out, &errOut, analyzeFlags)
	if err := cmd.Flags().Set("metrics-file", metrics); err != nil {
		t.Fatal(err)
	}
	if err := runAnalyze(cmd, []string{"authlog=" + file}); err != nil {
		t.Fatalf("runAnalyze() error = %v", err)
	}

	data, err := os.ReadFile(metrics)
	if err != nil {
		t.Fatalf("metrics file not written: %v", err)
	}
	if !strings.Contains(string(data), `logwarden_records_parsed_total{log_type="authlog"} 8`) {
		t.Errorf("metrics file:\n%s", data)
	}
}

func TestAnalyzeMetricsDoc(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newTestCmd("analyze", &out, &errOut, analyzeFlags)
	if err := cmd.Flags().Set("metrics-doc", "true"); err != nil {
		t.Fatal(err)
	}
	if err := runAnalyze(cmd, nil); err != nil {
		t.Fatalf("runAnalyze() error = %v", err)
	}
	if !strings.Contains(out.String(), "logwarden_findings_total") {
		t.Errorf("metrics doc:\n%s", out.String())
	}
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name  string
		flags map[string]string
		args  func(file string) []string
	}{
		{"no inputs", nil, func(string) []string { return nil }},
		{"invalid since", map[string]string{"since": "yesterday-ish"}, func(f string) []string { return []string{"authlog=" + f} }},
		{"until before since", map[string]string{"since": "2026-01-02", "until": "2026-01-01"}, func(f string) []string { return []string{"authlog=" + f} }},
		{"missing glob", nil, func(string) []string { return []string{"authlog=/nonexistent/*.log"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupViper(t, "text")
			file := writeTempFile(t, t.TempDir(), "auth.log", authLines)
			var out, errOut bytes.Buffer
			cmd := newTestCmd("analyze", &out, &errOut, analyzeFlags)
			for k, v := range tt.flags {
				if err := cmd.Flags().Set(k, v); err != nil {
					t.Fatal(err)
				}
			}
			if err := runAnalyze(cmd, tt.args(file)); err == nil {
				t.Error("runAnalyze() should fail")
			}
		})
	}
}

func TestAnalyzeBadChannelConfig(t *testing.T) {
	setupViper(t, "text")
	viper.Set("alerting.channels.kafka", true)
	file := writeTempFile(t, t.TempDir(), "auth.log", authLines)

	var out, errOut bytes.Buffer
	cmd := newTestCmd("analyze", &out, &errOut, analyzeFlags)
	err := runAnalyze(cmd, []string{"authlog=" + file})
	if err == nil || !strings.Contains(err.Error(), "kafka") {
		t.Errorf("runAnalyze() error = %v, want a kafka configuration error", err)
	}
}
