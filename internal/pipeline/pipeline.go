// Package pipeline runs the whole batch: parse every input, detect point
// anomalies, filter the flagged templates out of the sequence, run the
// n-gram model and hand every finding to the alert sink.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bimmerbailey/logwarden/internal/alert"
	"github.com/bimmerbailey/logwarden/internal/analyzer"
	"github.com/bimmerbailey/logwarden/internal/anomaly"
	"github.com/bimmerbailey/logwarden/internal/config"
	"github.com/bimmerbailey/logwarden/internal/parser"
	"github.com/bimmerbailey/logwarden/internal/record"
)

const unknownSource = "UNKNOWN"

// Pipeline owns one parser, and with it one template registry, for its
// whole lifetime. Template ids are therefore stable across watch re-runs.
// It is not safe for concurrent use.
type Pipeline struct {
	parser     *parser.Parser
	point      *anomaly.PointDetector
	seqN       int
	seqMinFreq int
	sink       alert.Sink
	timeRange  config.TimeRange
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSink sets the destination of findings. The default discards them.
func WithSink(s alert.Sink) Option {
	return func(p *Pipeline) { p.sink = s }
}

// WithTimeRange drops records whose timestamp falls outside tr.
func WithTimeRange(tr config.TimeRange) Option {
	return func(p *Pipeline) { p.timeRange = tr }
}

// WithMetrics records run metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the logger for the pipeline and the components it builds.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock overrides the time source used for finding times and syslog
// years.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New builds a pipeline from cfg.
func New(cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		seqN:       cfg.Sequence.N,
		seqMinFreq: cfg.Sequence.MinFrequency,
		sink:       alert.Discard,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.parser = parser.New(cfg.Parsing, parser.NewRegistry(),
		parser.WithLogger(p.logger),
		parser.WithClock(p.now),
		parser.WithTimestampFormats(cfg.TimestampFormats),
	)
	p.point = anomaly.NewPointDetector(cfg.PointAnomalies, anomaly.WithPointLogger(p.logger))
	return p
}

// Parser returns the pipeline's parser.
func (p *Pipeline) Parser() *parser.Parser {
	return p.parser
}

// FileReport is the parse outcome of one input.
type FileReport struct {
	analyzer.Rate
	Unmatched []string `json:"-"`
	Err       error    `json:"-"`
	Error     string   `json:"error,omitempty"`
}

// Batch is the parsed form of a set of inputs.
type Batch struct {
	Files   []FileReport
	Records []record.Record
}

// Rates returns the per-file rates.
func (b Batch) Rates() []analyzer.Rate {
	rates := make([]analyzer.Rate, len(b.Files))
	for i, f := range b.Files {
		rates[i] = f.Rate
	}
	return rates
}

// Unmatched returns the skipped-line samples of every file, in input order.
func (b Batch) Unmatched() []string {
	var out []string
	for _, f := range b.Files {
		out = append(out, f.Unmatched...)
	}
	return out
}

// Parse parses every input in order. A file that cannot be parsed is
// recorded in its FileReport and the others continue. Only cancellation of
// ctx stops the batch early.
func (p *Pipeline) Parse(ctx context.Context, inputs []config.Input) (Batch, error) {
	var b Batch
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return b, err
		}

		res, err := p.parser.ParseFileResult(in.Path, in.LogType)
		fr := FileReport{Rate: analyzer.ParseRate(res), Unmatched: res.Unmatched}
		fr.Path, fr.LogType = in.Path, in.LogType
		if err != nil {
			fr.Err = err
			fr.Error = err.Error()
			reason := "io"
			switch {
			case errors.Is(err, parser.ErrUnknownLogType):
				reason = "unknown_log_type"
			case errors.Is(err, parser.ErrFormatViolation):
				reason = "format_violation"
			}
			p.logger.Warn("input file abandoned", "path", in.Path, "log_type", in.LogType, "reason", reason, "error", err)
			if p.metrics != nil {
				p.metrics.fileFailures.WithLabelValues(reason).Inc()
			}
			b.Files = append(b.Files, fr)
			continue
		}

		if p.metrics != nil {
			p.metrics.recordsParsed.WithLabelValues(in.LogType).Add(float64(len(res.Records)))
			p.metrics.linesSkipped.WithLabelValues(in.LogType).Add(float64(res.Skipped))
		}
		b.Files = append(b.Files, fr)
		b.Records = append(b.Records, res.Records...)
	}
	return b, nil
}

// Report is the outcome of one run.
type Report struct {
	Files      []FileReport      `json:"files"`
	Overall    analyzer.Rate     `json:"overall"`
	Records    int               `json:"records"`
	OutOfRange int               `json:"out_of_range,omitempty"`
	Findings   []anomaly.Finding `json:"findings"`
	Counts     map[string]int    `json:"counts"`
	Started    time.Time         `json:"started"`
	Duration   time.Duration     `json:"duration"`
}

// Run parses inputs, detects anomalies and delivers every finding to the
// sink in order: template anomalies, attribute anomalies, then contextual
// anomalies. The returned report is complete unless ctx was cancelled, in
// which case it holds what was done so far alongside ctx's error.
func (p *Pipeline) Run(ctx context.Context, inputs []config.Input) (*Report, error) {
	start := p.now()
	rep := &Report{Started: start, Counts: make(map[string]int)}
	defer func() {
		rep.Duration = p.now().Sub(start)
		if p.metrics != nil {
			p.metrics.runs.Inc()
			p.metrics.runDuration.Observe(rep.Duration.Seconds())
			p.metrics.lastRun.Set(float64(p.now().Unix()))
		}
	}()

	batch, err := p.Parse(ctx, inputs)
	rep.Files = batch.Files
	rep.Overall = analyzer.OverallRate(batch.Rates())
	if err != nil {
		return rep, err
	}

	records := batch.Records
	if !p.timeRange.IsZero() {
		kept, err := analyzer.New(nil).Filter(records, analyzer.FilterOptions{
			Since: p.timeRange.Since,
			Until: p.timeRange.Until,
		})
		if err != nil {
			return rep, err
		}
		rep.OutOfRange = len(records) - len(kept)
		records = kept
	}
	rep.Records = len(records)

	point := p.point.Detect(records)
	for _, f := range point.Template {
		if err := p.emit(ctx, rep, anomaly.SeverityHigh, anomaly.RuleTemplate, f); err != nil {
			return rep, err
		}
	}
	for _, f := range point.Attribute {
		if err := p.emit(ctx, rep, anomaly.SeverityMedium, anomaly.RuleAttribute, f); err != nil {
			return rep, err
		}
	}

	filtered := withoutFlagged(records, point)
	seq := make([]string, len(filtered))
	for i, r := range filtered {
		seq[i] = r.TemplateID
	}

	model := anomaly.NewSequenceModel(p.seqN, p.seqMinFreq)
	model.Train(seq)
	for _, w := range model.Detect(seq) {
		details := contextual(w, filtered)
		if err := p.emit(ctx, rep, w.Severity, anomaly.RuleContextual, details); err != nil {
			return rep, err
		}
	}

	p.logger.Info("run complete",
		"files", len(rep.Files), "records", rep.Records, "findings", len(rep.Findings))
	return rep, nil
}

func (p *Pipeline) emit(ctx context.Context, rep *Report, sev anomaly.Severity, rule string, details any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f := anomaly.Finding{Severity: sev, Rule: rule, Time: p.now(), Details: details}
	rep.Findings = append(rep.Findings, f)
	rep.Counts[rule]++
	if p.metrics != nil {
		p.metrics.findings.WithLabelValues(rule, string(sev)).Inc()
	}
	if err := p.sink.SendAlert(ctx, f); err != nil {
		p.logger.Warn("alert sink failed", "rule", rule, "error", err)
		if p.metrics != nil {
			p.metrics.AlertFailed("sink", err)
		}
	}
	return nil
}

// withoutFlagged drops the records either point detection path flagged.
// Other records sharing a flagged record's template stay in the sequence.
func withoutFlagged(records []record.Record, point anomaly.PointResult) []record.Record {
	flagged := make(map[int]bool, len(point.Template)+len(point.Attribute))
	for _, f := range point.Template {
		flagged[f.Index] = true
	}
	for _, f := range point.Attribute {
		flagged[f.Index] = true
	}
	if len(flagged) == 0 {
		return records
	}
	out := make([]record.Record, 0, len(records)-len(flagged))
	for i, r := range records {
		if !flagged[i] {
			out = append(out, r)
		}
	}
	return out
}

// contextual describes window w using the records it covers. Positions are
// indexes into the filtered sequence.
func contextual(w anomaly.Window, filtered []record.Record) anomaly.Contextual {
	c := anomaly.Contextual{NGram: w.NGram, Position: w.Position, Source: unknownSource}
	end := min(w.Position+len(w.NGram), len(filtered))
	for i := w.Position; i < end; i++ {
		c.Messages = append(c.Messages, filtered[i].Message)
	}
	if w.Position < len(filtered) && filtered[w.Position].Source != "" {
		c.Source = filtered[w.Position].Source
	}
	return c
}
