package parser

import (
	"fmt"

	"github.com/bimmerbailey/logwarden/internal/config"
	"github.com/bimmerbailey/logwarden/internal/record"
)

const unknown = "UNKNOWN"

// SynthesizeMessage returns rec's message, or builds one from its fields
// when the message is empty.
func SynthesizeMessage(rec record.Record, style config.MessageStyle, path string) string {
	if rec.Message != "" {
		return rec.Message
	}

	switch style {
	case config.MessageStructured:
		return fmt.Sprintf("Event %s by %s on %s",
			fieldOrUnknown(rec, "event_id"),
			fieldOrUnknown(rec, "user"),
			fieldOrUnknown(rec, "computer"))
	case config.MessageLine:
		return fmt.Sprintf("Event %s in %s", fieldOrUnknown(rec, record.FieldTemplateID), orDefault(path, "logfile"))
	default:
		return fmt.Sprintf("Log entry from %s", orDefault(path, "unknown source"))
	}
}

func fieldOrUnknown(rec record.Record, name string) string {
	v, ok := rec.Get(name)
	if !ok || v.IsEmpty() {
		return unknown
	}
	return v.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// eventTemplateID builds the "E<event_id>" id used by structured formats.
// These ids never come from the Registry.
func eventTemplateID(fields map[string]record.Value) string {
	v, ok := fields["event_id"]
	if !ok || v.IsEmpty() {
		return "E" + unknown
	}
	return "E" + v.String()
}
