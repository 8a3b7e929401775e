package record

import (
	"encoding/json"
	"maps"
	"sort"
)

// Names of the declared fields, as seen by field lookups and configuration.
const (
	FieldTemplateID = "template_id"
	FieldMessage    = "message"
	FieldTimestamp  = "timestamp"
	FieldSource     = "source"
	FieldRaw        = "raw"
)

// Record is one parsed log line or row.
//
// Records are treated as immutable once the parser returns them: With and
// Clone hand out copies and never touch the receiver's field bag.
type Record struct {
	TemplateID string
	Message    string
	Timestamp  Value
	Source     string
	Raw        string
	Line       int
	Fields     map[string]Value
}

// Get returns the value stored under name, checking the declared fields
// before the extension bag. The lookup is exact.
func (r Record) Get(name string) (Value, bool) {
	switch name {
	case FieldTemplateID:
		return String(r.TemplateID), true
	case FieldMessage:
		return String(r.Message), true
	case FieldTimestamp:
		return r.Timestamp, true
	case FieldSource:
		if r.Source == "" {
			return Null(), false
		}
		return String(r.Source), true
	case FieldRaw:
		if r.Raw == "" {
			return Null(), false
		}
		return String(r.Raw), true
	}
	v, ok := r.Fields[name]
	return v, ok
}

// Text returns the rendered value of name, or "" when it is absent.
func (r Record) Text(name string) string {
	v, _ := r.Get(name)
	return v.String()
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	c := r
	if r.Fields != nil {
		c.Fields = maps.Clone(r.Fields)
	}
	return c
}

// With returns a copy of r with name set to v. Declared field names update
// the declared field; any other name goes into the extension bag.
func (r Record) With(name string, v Value) Record {
	c := r.Clone()
	switch name {
	case FieldTemplateID:
		c.TemplateID = v.String()
	case FieldMessage:
		c.Message = v.String()
	case FieldTimestamp:
		c.Timestamp = v
	case FieldSource:
		c.Source = v.String()
	case FieldRaw:
		c.Raw = v.String()
	default:
		if c.Fields == nil {
			c.Fields = make(map[string]Value)
		}
		c.Fields[name] = v
	}
	return c
}

// Keys returns the extension bag keys in sorted order.
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON flattens the record into a single JSON object. Extension
// fields never override declared ones.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+6)
	for k, v := range r.Fields {
		out[k] = v
	}
	out[FieldTemplateID] = r.TemplateID
	out[FieldMessage] = r.Message
	out[FieldTimestamp] = r.Timestamp
	if r.Source != "" {
		out[FieldSource] = r.Source
	}
	if r.Raw != "" {
		out[FieldRaw] = r.Raw
	}
	if r.Line > 0 {
		out["line"] = r.Line
	}
	return json.Marshal(out)
}
