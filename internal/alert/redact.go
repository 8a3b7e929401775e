package alert

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/bimmerbailey/logwarden/internal/anomaly"
	"github.com/bimmerbailey/logwarden/internal/record"
)

// Redactor replaces sensitive values with placeholders before a finding
// leaves the process. The same value always maps to the same placeholder, so
// a reader can still tell that two alerts mention the same address.
type Redactor struct {
	patterns []secretPattern
	mu       sync.RWMutex
	seen     map[string]string // value -> placeholder
}

// NewRedactor builds a redactor for the named patterns. An empty list
// selects DefaultPatterns. Unknown names are an error so that a typo in the
// configuration does not silently leak data.
func NewRedactor(names []string) (*Redactor, error) {
	if len(names) == 0 {
		names = DefaultPatterns()
	}
	patterns, unknown := lookupPatterns(names)
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown redaction patterns %s (available: %s)",
			strings.Join(unknown, ", "), strings.Join(PatternNames(), ", "))
	}
	return &Redactor{
		patterns: patterns,
		seen:     make(map[string]string),
	}, nil
}

// Redact replaces every match of the configured patterns in text.
//
//	"Connection from 192.168.1.1 failed" -> "Connection from [IPV4:a3f2] failed"
func (r *Redactor) Redact(text string) string {
	if r == nil || text == "" {
		return text
	}
	for _, p := range r.patterns {
		text = p.re.ReplaceAllStringFunc(text, func(match string) string {
			return r.placeholder(match, p.label)
		})
	}
	return text
}

func (r *Redactor) placeholder(value, label string) string {
	key := label + "\x00" + normalizeValue(value, label)
	r.mu.RLock()
	ph, ok := r.seen[key]
	r.mu.RUnlock()
	if ok {
		return ph
	}

	h := sha256.Sum256([]byte(key))
	ph = fmt.Sprintf("[%s:%s]", label, hex.EncodeToString(h[:2]))

	r.mu.Lock()
	r.seen[key] = ph
	r.mu.Unlock()
	return ph
}

// normalizeValue folds case where it does not change identity.
func normalizeValue(value, label string) string {
	switch label {
	case "EMAIL", "IPV6", "MAC":
		return strings.ToLower(value)
	default:
		return value
	}
}

// Finding returns a copy of f with every string it carries redacted. Values
// are redacted one by one rather than on the encoded JSON, since a secret
// pattern may otherwise swallow the quoting around it.
func (r *Redactor) Finding(f anomaly.Finding) anomaly.Finding {
	if r == nil {
		return f
	}
	switch d := f.Details.(type) {
	case anomaly.Flagged:
		d.Record = r.record(d.Record)
		f.Details = d
	case anomaly.Contextual:
		msgs := make([]string, len(d.Messages))
		for i, m := range d.Messages {
			msgs[i] = r.Redact(m)
		}
		d.Messages = msgs
		f.Details = d
	case nil:
	default:
		f.Details = r.Redact(f.DetailsText())
	}
	return f
}

func (r *Redactor) record(rec record.Record) record.Record {
	out := rec.Clone()
	out.Message = r.Redact(rec.Message)
	out.Raw = r.Redact(rec.Raw)
	if s, ok := rec.Timestamp.Str(); ok {
		out.Timestamp = record.String(r.Redact(s))
	}
	for k, v := range out.Fields {
		if s, ok := v.Str(); ok {
			out.Fields[k] = record.String(r.Redact(s))
		}
	}
	return out
}
