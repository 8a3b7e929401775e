package record

import "strings"

// LookupStrategy resolves a configured field name against a record.
type LookupStrategy func(r Record, field string) (Value, bool)

// DefaultLookup is the ordered strategy list used for attribute fields:
// exact key, lowercased key, then separator-insensitive key.
var DefaultLookup = []LookupStrategy{ExactKey, LowerKey, NormalizedKey}

// Lookup applies strategies in order and returns the first hit.
// A nil strategy list means DefaultLookup.
func Lookup(r Record, field string, strategies ...LookupStrategy) (Value, bool) {
	if len(strategies) == 0 {
		strategies = DefaultLookup
	}
	for _, s := range strategies {
		if v, ok := s(r, field); ok {
			return v, true
		}
	}
	return Null(), false
}

// ExactKey matches the field name as written.
func ExactKey(r Record, field string) (Value, bool) {
	return r.Get(field)
}

// LowerKey matches the lowercased field name.
func LowerKey(r Record, field string) (Value, bool) {
	lower := strings.ToLower(field)
	if lower == field {
		return Null(), false
	}
	return r.Get(lower)
}

// NormalizedKey compares keys case-insensitively with separators removed,
// so "response_time", "ResponseTime" and "response-time" are the same key.
// Declared fields are tried first, then extension keys in sorted order.
func NormalizedKey(r Record, field string) (Value, bool) {
	target := NormalizeKey(field)
	for _, name := range []string{FieldTemplateID, FieldMessage, FieldTimestamp, FieldSource, FieldRaw} {
		if NormalizeKey(name) == target {
			return r.Get(name)
		}
	}
	for _, k := range r.Keys() {
		if NormalizeKey(k) == target {
			return r.Fields[k], true
		}
	}
	return Null(), false
}

// NormalizeKey lowercases s and drops '_', '-', '.' and spaces.
func NormalizeKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range strings.ToLower(s) {
		switch c {
		case '_', '-', '.', ' ':
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
