package pipeline

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "logwarden"

// Metrics counts what a run did. It owns a private registry so several
// pipelines can coexist in one process, as tests do.
type Metrics struct {
	registry *prometheus.Registry

	recordsParsed *prometheus.CounterVec
	linesSkipped  *prometheus.CounterVec
	fileFailures  *prometheus.CounterVec
	findings      *prometheus.CounterVec
	alertFailures *prometheus.CounterVec
	runs          prometheus.Counter
	runDuration   prometheus.Histogram
	lastRun       prometheus.Gauge

	defs []metricDefinition
}

type metricDefinition struct {
	name, help, kind string
}

// NewMetrics registers the pipeline metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	factory := promauto.With(m.registry)

	m.recordsParsed = factory.NewCounterVec(m.counter("records_parsed_total",
		"Records produced by the parser."), []string{"log_type"})
	m.linesSkipped = factory.NewCounterVec(m.counter("lines_skipped_total",
		"Non-blank lines or rows that could not be parsed."), []string{"log_type"})
	m.fileFailures = factory.NewCounterVec(m.counter("file_failures_total",
		"Input files abandoned, by reason."), []string{"reason"})
	m.findings = factory.NewCounterVec(m.counter("findings_total",
		"Findings produced, by rule and severity."), []string{"rule", "severity"})
	m.alertFailures = factory.NewCounterVec(m.counter("alert_failures_total",
		"Failed alert deliveries, by channel."), []string{"channel"})
	m.runs = factory.NewCounter(m.counter("runs_total", "Completed pipeline runs."))

	m.runDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of one pipeline run.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
	})
	m.defs = append(m.defs, metricDefinition{"run_duration_seconds", "Wall time of one pipeline run.", "histogram"})

	m.lastRun = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished.",
	})
	m.defs = append(m.defs, metricDefinition{"last_run_timestamp_seconds", "Unix time the last run finished.", "gauge"})
	return m
}

func (m *Metrics) counter(name, help string) prometheus.CounterOpts {
	m.defs = append(m.defs, metricDefinition{name, help, "counter"})
	return prometheus.CounterOpts{Namespace: metricsNamespace, Name: name, Help: help}
}

// AlertFailed counts a failed delivery. It has the signature of an alert
// failure hook.
func (m *Metrics) AlertFailed(channel string, _ error) {
	m.alertFailures.WithLabelValues(channel).Inc()
}

// Gatherer exposes the registry, e.g. for promhttp.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteToTextfile writes the current values in the node_exporter textfile
// format.
func (m *Metrics) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}

// Documentation renders a markdown table of the exported metrics.
func (m *Metrics) Documentation() string {
	var b strings.Builder
	b.WriteString("| name | type | description |\n|---|---|---|\n")
	for _, d := range m.defs {
		fmt.Fprintf(&b, "| %s_%s | %s | %s |\n", metricsNamespace, d.name, d.kind, d.help)
	}
	return b.String()
}
