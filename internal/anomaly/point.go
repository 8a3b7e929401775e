package anomaly

import (
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bimmerbailey/logwarden/internal/config"
	"github.com/bimmerbailey/logwarden/internal/record"
)

// DefaultIQRFactor is used when no factor is configured.
const DefaultIQRFactor = 1.5

// minSamples is the smallest number of numeric values a field needs before
// quartiles are computed for it.
const minSamples = 4

// PointDetector flags single records by template rule and numeric attribute
// outliers.
type PointDetector struct {
	rules  []rule
	fields []string
	factor float64
	lookup []record.LookupStrategy
	logger *slog.Logger
}

type rule struct {
	text string
	re   *regexp.Regexp
}

// PointOption configures a PointDetector.
type PointOption func(*PointDetector)

// WithPointLogger sets the logger used for skipped rules.
func WithPointLogger(l *slog.Logger) PointOption {
	return func(d *PointDetector) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithLookup replaces the strategies used to find attribute fields.
func WithLookup(strategies ...record.LookupStrategy) PointOption {
	return func(d *PointDetector) {
		if len(strategies) > 0 {
			d.lookup = strategies
		}
	}
}

// PointResult holds the output of Detect. A record may appear in both lists.
type PointResult struct {
	Template  []Flagged
	Attribute []Flagged
}

// NewPointDetector compiles the template rules. Invalid rules are logged and
// skipped. A zero or negative IQR factor means DefaultIQRFactor.
func NewPointDetector(rules config.PointRules, opts ...PointOption) *PointDetector {
	d := &PointDetector{
		fields: rules.AttributeFields,
		factor: rules.IQRFactor,
		lookup: record.DefaultLookup,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.factor <= 0 {
		d.factor = DefaultIQRFactor
	}

	for _, text := range rules.TemplateRules {
		re, err := regexp.Compile(text)
		if err != nil {
			d.logger.Warn("skipping invalid template rule", "rule", text, "error", err)
			continue
		}
		d.rules = append(d.rules, rule{text: text, re: re})
	}
	return d
}

// DetectTemplateAnomaly reports the first template rule found in the
// record's text: its message, else its "details" field, else the raw line.
func (d *PointDetector) DetectTemplateAnomaly(rec record.Record) (string, bool) {
	text := messageText(rec)
	for _, r := range d.rules {
		if r.re.MatchString(text) {
			return r.text, true
		}
	}
	return "", false
}

func messageText(rec record.Record) string {
	if rec.Message != "" {
		return rec.Message
	}
	if details := rec.Text("details"); details != "" {
		return details
	}
	return rec.Raw
}

// DetectAttributeAnomalies flags records whose configured numeric fields
// fall outside [Q1 - k*IQR, Q3 + k*IQR]. Fields with fewer than four
// numeric samples are skipped.
func (d *PointDetector) DetectAttributeAnomalies(records []record.Record) []Flagged {
	var flagged []Flagged
	for _, field := range d.fields {
		values := make([]float64, len(records))
		present := make([]bool, len(records))
		var samples []float64
		for i, rec := range records {
			raw, ok := record.Lookup(rec, field, d.lookup...)
			if !ok {
				continue
			}
			if n, ok := Numeric(raw); ok {
				values[i], present[i] = n, true
				samples = append(samples, n)
			}
		}
		if len(samples) < minSamples {
			continue
		}

		q1, q3 := Quartiles(samples)
		iqr := q3 - q1
		lower := q1 - d.factor*iqr
		upper := q3 + d.factor*iqr

		for i, rec := range records {
			if !present[i] {
				continue
			}
			if v := values[i]; v < lower || v > upper {
				flagged = append(flagged, Flagged{
					Record:   rec.Clone(),
					Severity: SeverityMedium,
					Field:    field,
					Value:    v,
					Index:    i,
				})
			}
		}
	}
	return flagged
}

// Detect runs both checks. Template hits are high severity, attribute
// outliers medium.
func (d *PointDetector) Detect(records []record.Record) PointResult {
	var res PointResult
	for i, rec := range records {
		if ruleText, ok := d.DetectTemplateAnomaly(rec); ok {
			res.Template = append(res.Template, Flagged{
				Record:   rec.Clone(),
				Severity: SeverityHigh,
				Rule:     ruleText,
				Index:    i,
			})
		}
	}
	res.Attribute = d.DetectAttributeAnomalies(records)
	return res
}

var numericSuffixes = []string{"%", "ms", "s"}

// Numeric coerces v to a finite number. Strings may carry a trailing "%",
// "ms" or "s" unit and thousands separators ("1,250ms").
func Numeric(v record.Value) (float64, bool) {
	if n, ok := v.Num(); ok {
		return n, isFinite(n)
	}
	s, ok := v.Str()
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	for _, suffix := range numericSuffixes {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
		}
	}
	s = strings.ReplaceAll(s, ",", "")
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || !isFinite(n) {
		return 0, false
	}
	return n, true
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Quartiles returns Q1 and Q3 using the exclusive method: positions are
// interpolated on a (len+1) scale and clamped to the data. values needs at
// least two elements and is not modified.
func Quartiles(values []float64) (q1, q3 float64) {
	data := append([]float64(nil), values...)
	sort.Float64s(data)
	return quantile(data, 1, 4), quantile(data, 3, 4)
}

func quantile(data []float64, i, n int) float64 {
	ld := len(data)
	m := ld + 1
	j := i * m / n
	if j < 1 {
		j = 1
	}
	if j > ld-1 {
		j = ld - 1
	}
	delta := i*m - j*n
	return (data[j-1]*float64(n-delta) + data[j]*float64(delta)) / float64(n)
}
