// Package analyzer summarizes parsed records: parse success rates, template
// frequencies, time windows and clusters of lines no pattern matched.
package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/bimmerbailey/logwarden/internal/parser"
	"github.com/bimmerbailey/logwarden/internal/record"
)

// Rate is the parse success of one file or of a whole run.
type Rate struct {
	Path    string  `json:"path,omitempty"`
	LogType string  `json:"log_type,omitempty"`
	Lines   int     `json:"lines"`
	Parsed  int     `json:"parsed"`
	Skipped int     `json:"skipped"`
	Percent float64 `json:"percent"`
}

// ParseRate compares the records produced for a file with the non-blank
// units it contained.
func ParseRate(res parser.FileResult) Rate {
	r := Rate{
		Path:    res.Path,
		LogType: res.LogType,
		Lines:   res.Lines,
		Parsed:  len(res.Records),
		Skipped: res.Skipped,
	}
	if r.Lines > 0 {
		r.Percent = float64(r.Parsed) * 100 / float64(r.Lines)
	}
	return r
}

// OverallRate sums rates across files.
func OverallRate(rates []Rate) Rate {
	var total Rate
	for _, r := range rates {
		total.Lines += r.Lines
		total.Parsed += r.Parsed
		total.Skipped += r.Skipped
	}
	if total.Lines > 0 {
		total.Percent = float64(total.Parsed) * 100 / float64(total.Lines)
	}
	return total
}

// Stats holds aggregate statistics for a set of records.
type Stats struct {
	TotalRecords int             `json:"total_records"`
	Templates    []TemplateCount `json:"templates"`
	Sources      []GroupedResult `json:"sources,omitempty"`
	FirstEntry   time.Time       `json:"first_entry,omitempty"`
	LastEntry    time.Time       `json:"last_entry,omitempty"`
	TopMessages  []MessageCount  `json:"top_messages,omitempty"`
	Clusters     []Cluster       `json:"unmatched_clusters,omitempty"`
}

// TemplateCount tracks how often a template id occurred.
type TemplateCount struct {
	ID      string  `json:"id"`
	Pattern string  `json:"pattern,omitempty"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// MessageCount tracks a message and how often it appears.
type MessageCount struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// GroupedResult represents records grouped by a field value.
type GroupedResult struct {
	Key     string  `json:"key"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// TimeWindowStats holds statistics for a time window.
type TimeWindowStats struct {
	Start         time.Time      `json:"start"`
	End           time.Time      `json:"end"`
	Count         int            `json:"count"`
	Templates     map[string]int `json:"templates"`
	ChangePercent float64        `json:"change_percent"` // Change from previous window
}

// Analyzer computes statistics over records.
type Analyzer struct {
	patterns map[string]string // template id -> pattern text
}

// New creates an Analyzer that labels regex template ids with their
// pattern text.
func New(templates []parser.Template) *Analyzer {
	a := &Analyzer{patterns: make(map[string]string, len(templates))}
	for _, t := range templates {
		a.patterns[t.ID] = t.Pattern
	}
	return a
}

// TemplateStats counts records per template id and collects the time range,
// the busiest sources and the top messages.
func (a *Analyzer) TemplateStats(records []record.Record, topN int) Stats {
	stats := Stats{TotalRecords: len(records)}
	if len(records) == 0 {
		return stats
	}

	templateCounts := make(map[string]int)
	sourceCounts := make(map[string]int)
	messageCounts := make(map[string]int)

	for _, r := range records {
		templateCounts[r.TemplateID]++
		messageCounts[r.Message]++
		src := r.Source
		if src == "" {
			src = "(unknown)"
		}
		sourceCounts[src]++

		if ts, ok := r.Timestamp.TimeValue(); ok {
			if stats.FirstEntry.IsZero() || ts.Before(stats.FirstEntry) {
				stats.FirstEntry = ts
			}
			if stats.LastEntry.IsZero() || ts.After(stats.LastEntry) {
				stats.LastEntry = ts
			}
		}
	}

	for _, g := range group(templateCounts, len(records), 0) {
		stats.Templates = append(stats.Templates, TemplateCount{
			ID:      g.Key,
			Pattern: a.patterns[g.Key],
			Count:   g.Count,
			Percent: g.Percent,
		})
	}
	stats.Sources = group(sourceCounts, len(records), topN)
	stats.TopMessages = topMessages(messageCounts, topN)
	return stats
}

// topMessages extracts the N most frequent messages.
func topMessages(counts map[string]int, n int) []MessageCount {
	msgs := make([]MessageCount, 0, len(counts))
	for msg, count := range counts {
		msgs = append(msgs, MessageCount{Message: msg, Count: count})
	}

	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Count != msgs[j].Count {
			return msgs[i].Count > msgs[j].Count
		}
		return msgs[i].Message < msgs[j].Message
	})

	if n > 0 && len(msgs) > n {
		msgs = msgs[:n]
	}
	return msgs
}

// group turns counts into results sorted by count, then key. n <= 0 keeps
// every group.
func group(counts map[string]int, total, n int) []GroupedResult {
	result := make([]GroupedResult, 0, len(counts))
	for key, count := range counts {
		result = append(result, GroupedResult{
			Key:     key,
			Count:   count,
			Percent: float64(count) * 100 / float64(total),
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Key < result[j].Key
	})
	if n > 0 && len(result) > n {
		result = result[:n]
	}
	return result
}

// FilterOptions defines the criteria for filtering records.
type FilterOptions struct {
	Pattern     string   // regex matched against the raw line, or the message
	TemplateIDs []string // keep only these template ids
	Since       time.Time
	Until       time.Time
	Invert      bool // invert Pattern
}

// Filter returns records matching opts. Records without a parsed timestamp
// pass the time bounds, since they cannot be placed.
func (a *Analyzer) Filter(records []record.Record, opts FilterOptions) ([]record.Record, error) {
	var re *regexp.Regexp
	if opts.Pattern != "" {
		var err error
		if re, err = regexp.Compile(opts.Pattern); err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
	}
	var ids map[string]bool
	if len(opts.TemplateIDs) > 0 {
		ids = make(map[string]bool, len(opts.TemplateIDs))
		for _, id := range opts.TemplateIDs {
			ids[id] = true
		}
	}

	result := make([]record.Record, 0, len(records))
	for _, r := range records {
		if ids != nil && !ids[r.TemplateID] {
			continue
		}
		if ts, ok := r.Timestamp.TimeValue(); ok {
			if !opts.Since.IsZero() && ts.Before(opts.Since) {
				continue
			}
			if !opts.Until.IsZero() && ts.After(opts.Until) {
				continue
			}
		}
		if re != nil {
			text := r.Raw
			if text == "" {
				text = r.Message
			}
			matched := re.MatchString(text)
			if opts.Invert {
				matched = !matched
			}
			if !matched {
				continue
			}
		}
		result = append(result, r)
	}
	return result, nil
}

// AnalyzeByWindow splits records into time windows and counts templates in
// each. Records without a parsed timestamp are ignored.
func (a *Analyzer) AnalyzeByWindow(records []record.Record, window time.Duration) []TimeWindowStats {
	if len(records) == 0 || window <= 0 {
		return nil
	}

	var minTime, maxTime time.Time
	for _, r := range records {
		if ts, ok := r.Timestamp.TimeValue(); ok {
			if minTime.IsZero() || ts.Before(minTime) {
				minTime = ts
			}
			if maxTime.IsZero() || ts.After(maxTime) {
				maxTime = ts
			}
		}
	}
	if minTime.IsZero() {
		return nil
	}

	windowStart := minTime.Truncate(window)
	var windows []TimeWindowStats
	for current := windowStart; !current.After(maxTime); current = current.Add(window) {
		windows = append(windows, TimeWindowStats{
			Start:     current,
			End:       current.Add(window),
			Templates: make(map[string]int),
		})
	}

	for _, r := range records {
		ts, ok := r.Timestamp.TimeValue()
		if !ok {
			continue
		}
		idx := int(ts.Sub(windowStart) / window)
		if idx >= 0 && idx < len(windows) {
			windows[idx].Count++
			windows[idx].Templates[r.TemplateID]++
		}
	}

	for i := 1; i < len(windows); i++ {
		if prev := windows[i-1].Count; prev > 0 {
			windows[i].ChangePercent = float64(windows[i].Count-prev) * 100 / float64(prev)
		}
	}
	return windows
}
