// Package anomaly flags unusual log records.
//
// Two detectors live here. The point detector looks at records one at a
// time (template rules) and at the distribution of numeric attributes (IQR
// outliers). The sequence model counts n-grams of template ids and reports
// windows seen less often than a minimum frequency.
package anomaly

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bimmerbailey/logwarden/internal/record"
)

// Severity ranks a finding.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSeverity parses a severity name case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return sev, nil
	default:
		return "", fmt.Errorf("unknown severity %q (must be low, medium or high)", s)
	}
}

// Rule labels carried by findings.
const (
	RuleTemplate   = "Template Anomaly"
	RuleAttribute  = "Attribute Anomaly"
	RuleContextual = "Contextual Anomaly"
)

// Finding is one alert-worthy result. Details is a Flagged for point
// anomalies and a Contextual for sequence anomalies.
type Finding struct {
	Severity Severity  `json:"severity"`
	Rule     string    `json:"rule"`
	Time     time.Time `json:"time"`
	Details  any       `json:"details"`
}

// DetailsText renders Details as compact JSON, falling back to %v.
func (f Finding) DetailsText() string {
	b, err := json.Marshal(f.Details)
	if err != nil {
		return fmt.Sprintf("%v", f.Details)
	}
	return string(b)
}

// Source returns the file the finding came from, if known.
func (f Finding) Source() string {
	switch d := f.Details.(type) {
	case Flagged:
		return d.Record.Source
	case Contextual:
		return d.Source
	default:
		return ""
	}
}

// Flagged is a record tagged by the point detector. The record itself is a
// copy and is never modified.
type Flagged struct {
	Record   record.Record
	Severity Severity
	// Rule is the template rule that matched; empty for attribute anomalies.
	Rule string
	// Field and Value are set for attribute anomalies.
	Field string
	Value float64
	// Index is the record's position in the slice given to the detector.
	Index int `json:"-"`
}

// MarshalJSON flattens the record and adds the anomaly tags.
func (f Flagged) MarshalJSON() ([]byte, error) {
	rec := f.Record.With("severity", record.String(string(f.Severity)))
	if f.Rule != "" {
		rec = rec.With("anomaly_rule", record.String(f.Rule))
	}
	if f.Field != "" {
		rec = rec.With("anomaly_field", record.String(f.Field)).
			With("anomaly_value", record.Number(f.Value))
	}
	return json.Marshal(rec)
}

// Contextual describes an n-gram window that was seen too rarely.
type Contextual struct {
	NGram    []string `json:"ngram"`
	Position int      `json:"position"`
	Messages []string `json:"messages"`
	Source   string   `json:"source_file"`
}
