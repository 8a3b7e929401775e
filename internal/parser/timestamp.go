package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/bimmerbailey/logwarden/internal/config"
	"github.com/bimmerbailey/logwarden/internal/record"
)

const (
	syslogLayout      = "Jan 2 15:04:05 2006"
	isoFallbackLayout = "2006-01-02 15:04:05"
)

var isoLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// NormalizeTimestamp converts a raw timestamp into a timestamp value using
// the given convention. Anything it cannot parse is returned untouched;
// an empty string becomes null.
func (p *Parser) NormalizeTimestamp(raw record.Value, conv config.TimestampConvention) record.Value {
	s, ok := raw.Str()
	if !ok {
		return raw
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return record.Null()
	}

	var t time.Time
	switch conv {
	case config.TimestampSyslog:
		t, ok = p.parseSyslog(s)
	case config.TimestampISO:
		t, ok = p.parseISO(s)
	default:
		if t, ok = p.parseISO(s); !ok {
			t, ok = p.parseSyslog(s)
		}
	}
	if !ok {
		p.logger.Debug("timestamp left unparsed", "value", s, "convention", conv)
		return raw
	}
	return record.Time(t)
}

// parseSyslog parses "Jan  5 10:00:00", which carries no year: the current
// calendar year is appended before parsing.
func (p *Parser) parseSyslog(s string) (time.Time, bool) {
	withYear := strings.Join(strings.Fields(s), " ") + " " + strconv.Itoa(p.now().Year())
	t, err := time.Parse(syslogLayout, withYear)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseISO parses ISO-8601-like values. A trailing "Z" means UTC.
func (p *Parser) parseISO(s string) (time.Time, bool) {
	iso := s
	if strings.HasSuffix(iso, "Z") || strings.HasSuffix(iso, "z") {
		iso = iso[:len(iso)-1] + "+00:00"
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, iso); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(isoFallbackLayout, s); err == nil {
		return t, true
	}
	for _, layout := range p.timestampFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
