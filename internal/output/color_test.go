package output

import (
	"bytes"
	"os"
	"testing"

	"github.com/bimmerbailey/logwarden/internal/anomaly"
)

func TestColorizeSeverity(t *testing.T) {
	tests := []struct {
		sev  anomaly.Severity
		want string
	}{
		{anomaly.SeverityHigh, "\033[1m\033[31mALERT\033[0m"},
		{anomaly.SeverityMedium, "\033[33mALERT\033[0m"},
		{anomaly.SeverityLow, "\033[36mALERT\033[0m"},
		{anomaly.Severity("critical"), "ALERT"},
		{"", "ALERT"},
	}
	for _, tt := range tests {
		t.Run(string(tt.sev), func(t *testing.T) {
			if got := ColorizeSeverity(tt.sev, "ALERT"); got != tt.want {
				t.Errorf("ColorizeSeverity(%q) = %q, want %q", tt.sev, got, tt.want)
			}
		})
	}
}

func TestParseColorMode(t *testing.T) {
	tests := []struct {
		in   string
		want ColorMode
	}{
		{"always", ColorAlways},
		{" Always ", ColorAlways},
		{"NEVER", ColorNever},
		{"auto", ColorAuto},
		{"", ColorAuto},
		{"sometimes", ColorAuto},
	}
	for _, tt := range tests {
		if got := ParseColorMode(tt.in); got != tt.want {
			t.Errorf("ParseColorMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestShouldColorize(t *testing.T) {
	var buf bytes.Buffer

	if !ShouldColorize(ColorAlways, &buf) {
		t.Error("always should colour a buffer")
	}
	if ShouldColorize(ColorNever, os.Stdout) {
		t.Error("never should not colour stdout")
	}
	if ShouldColorize(ColorAuto, &buf) {
		t.Error("auto should not colour a non-file writer")
	}

	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if ShouldColorize(ColorAuto, f) {
		t.Error("auto should not colour a regular file")
	}
}

func TestShouldColorizeNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if ShouldColorize(ColorAuto, os.Stdout) {
		t.Error("auto should honour NO_COLOR")
	}
	if !ShouldColorize(ColorAlways, os.Stdout) {
		t.Error("always overrides NO_COLOR")
	}
}
