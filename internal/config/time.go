package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeRange bounds record timestamps. A zero bound is open.
type TimeRange struct {
	Since time.Time
	Until time.Time
}

// ParseTimeRange parses --since/--until style references. Each side is an
// absolute timestamp or a duration subtracted from now ("1h", "1d2h").
func ParseTimeRange(since, until string, now time.Time) (TimeRange, error) {
	var tr TimeRange
	var err error
	if strings.TrimSpace(since) != "" {
		if tr.Since, err = ParseTimeRef(since, now); err != nil {
			return tr, fmt.Errorf("invalid since value: %w", err)
		}
	}
	if strings.TrimSpace(until) != "" {
		if tr.Until, err = ParseTimeRef(until, now); err != nil {
			return tr, fmt.Errorf("invalid until value: %w", err)
		}
	}
	if !tr.Since.IsZero() && !tr.Until.IsZero() && tr.Until.Before(tr.Since) {
		return tr, fmt.Errorf("until (%s) is before since (%s)", tr.Until.Format(time.RFC3339), tr.Since.Format(time.RFC3339))
	}
	return tr, nil
}

// IsZero reports whether both bounds are open.
func (tr TimeRange) IsZero() bool {
	return tr.Since.IsZero() && tr.Until.IsZero()
}

// Contains reports whether t lies inside the range.
func (tr TimeRange) Contains(t time.Time) bool {
	if !tr.Since.IsZero() && t.Before(tr.Since) {
		return false
	}
	if !tr.Until.IsZero() && t.After(tr.Until) {
		return false
	}
	return true
}

// ParseTimeRef parses an absolute timestamp or a relative duration.
// Relative values are subtracted from now (e.g. "1h", "30m", "1d2h").
func ParseTimeRef(s string, now time.Time) (time.Time, error) {
	input := strings.TrimSpace(s)
	if input == "" {
		return time.Time{}, fmt.Errorf("time reference is empty")
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, input); err == nil {
			return t, nil
		}
	}

	d, err := ParseDuration(input)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(-d), nil
}

var durationPart = regexp.MustCompile(`(\d+)([dhms])`)

// ParseDuration parses a Go duration, also accepting "d" for days.
func ParseDuration(input string) (time.Duration, error) {
	if d, err := time.ParseDuration(input); err == nil {
		return d, nil
	}

	matches := durationPart.FindAllStringSubmatchIndex(input, -1)
	if len(matches) == 0 {
		return 0, fmt.Errorf("invalid relative duration: %s", input)
	}

	consumed := 0
	var total time.Duration
	for _, m := range matches {
		consumed += m[1] - m[0]
		value, err := strconv.ParseInt(input[m[2]:m[3]], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid relative duration: %s", input)
		}
		switch input[m[4]:m[5]] {
		case "d":
			total += 24 * time.Hour * time.Duration(value)
		case "h":
			total += time.Hour * time.Duration(value)
		case "m":
			total += time.Minute * time.Duration(value)
		case "s":
			total += time.Second * time.Duration(value)
		}
	}
	if consumed != len(input) {
		return 0, fmt.Errorf("invalid relative duration: %s", input)
	}
	return total, nil
}
