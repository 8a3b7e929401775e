package config

import (
	"testing"
)

func TestLogTypeTimestampFor(t *testing.T) {
	tests := []struct {
		name    string
		logType string
		lt      LogType
		want    TimestampConvention
	}{
		{"syslog by name", "syslog", LogType{}, TimestampSyslog},
		{"authlog by name", "AuthLog", LogType{}, TimestampSyslog},
		{"windowslog by name", "windowslog", LogType{}, TimestampISO},
		{"unknown name", "nginx", LogType{}, TimestampAuto},
		{"explicit wins", "syslog", LogType{Timestamp: TimestampISO}, TimestampISO},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.lt.TimestampFor(tt.logType); got != tt.want {
				t.Errorf("TimestampFor(%q) = %q, want %q", tt.logType, got, tt.want)
			}
		})
	}
}

func TestLogTypeMessageFor(t *testing.T) {
	tests := []struct {
		name    string
		logType string
		lt      LogType
		want    MessageStyle
	}{
		{"windows json by name", "windowslog", LogType{Format: FormatJSON}, MessageStructured},
		{"windows csv by name", "windows_csv", LogType{Format: FormatCSV}, MessageStructured},
		{"syslog by name", "syslog", LogType{Format: FormatRegex}, MessageLine},
		{"csv by format", "firewall", LogType{Format: FormatCSV}, MessageStructured},
		{"regex by format", "nginx", LogType{Format: FormatRegex}, MessageLine},
		{"unknown format", "other", LogType{}, MessageGeneric},
		{"explicit wins", "syslog", LogType{Message: MessageGeneric}, MessageGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.lt.MessageFor(tt.logType); got != tt.want {
				t.Errorf("MessageFor(%q) = %q, want %q", tt.logType, got, tt.want)
			}
		})
	}
}

func TestCSVDelimiter(t *testing.T) {
	if got := (LogType{}).CSVDelimiter(); got != ',' {
		t.Errorf("default delimiter = %q, want ','", got)
	}
	if got := (LogType{Delimiter: ";"}).CSVDelimiter(); got != ';' {
		t.Errorf("delimiter = %q, want ';'", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg: Config{Parsing: map[string]LogType{
				"syslog": {Format: FormatRegex, Patterns: []string{`(?P<message>.*)`}},
				"events": {Format: FormatCSV, Delimiter: ";"},
			}},
		},
		{
			name:    "unknown format",
			cfg:     Config{Parsing: map[string]LogType{"x": {Format: "xml"}}},
			wantErr: true,
		},
		{
			name:    "bad timestamp convention",
			cfg:     Config{Parsing: map[string]LogType{"x": {Format: FormatJSON, Timestamp: "epoch"}}},
			wantErr: true,
		},
		{
			name:    "multi char delimiter",
			cfg:     Config{Parsing: map[string]LogType{"x": {Format: FormatCSV, Delimiter: "||"}}},
			wantErr: true,
		},
		{
			name:    "negative iqr factor",
			cfg:     Config{PointAnomalies: PointRules{IQRFactor: -1}},
			wantErr: true,
		},
		{
			name:    "negative n",
			cfg:     Config{Sequence: SequenceConfig{N: -3}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
