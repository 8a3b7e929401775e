// Package alert delivers findings to the configured channels.
//
// A [Manager] filters findings by severity and fans each one out to every
// enabled [Sink]. A failing channel is logged and counted; it never stops
// delivery to the others or the run itself.
package alert

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/bimmerbailey/logwarden/internal/anomaly"
)

// Sink receives findings.
type Sink interface {
	SendAlert(ctx context.Context, f anomaly.Finding) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, f anomaly.Finding) error

// SendAlert calls fn(ctx, f).
func (fn SinkFunc) SendAlert(ctx context.Context, f anomaly.Finding) error {
	return fn(ctx, f)
}

// Discard drops every finding.
var Discard Sink = SinkFunc(func(context.Context, anomaly.Finding) error { return nil })

type channel struct {
	name string
	sink Sink
	// external channels receive redacted findings.
	external bool
}

// Manager fans findings out to channels.
type Manager struct {
	channels   []channel
	severities map[anomaly.Severity]bool
	redactor   *Redactor
	logger     *slog.Logger
	onFailure  func(channel string, err error)

	mu       sync.Mutex
	failures map[string]int
}

// Option configures a Manager.
type Option func(*Manager)

// WithChannel adds a channel whose findings stay in the process, such as
// the console.
func WithChannel(name string, s Sink) Option {
	return func(m *Manager) {
		m.channels = append(m.channels, channel{name: name, sink: s})
	}
}

// WithExternalChannel adds a channel whose findings leave the process.
// They are redacted first when a redactor is set.
func WithExternalChannel(name string, s Sink) Option {
	return func(m *Manager) {
		m.channels = append(m.channels, channel{name: name, sink: s, external: true})
	}
}

// WithSeverities restricts delivery to the listed severities. An empty list
// delivers everything.
func WithSeverities(sevs ...anomaly.Severity) Option {
	return func(m *Manager) {
		if len(sevs) == 0 {
			m.severities = nil
			return
		}
		m.severities = make(map[anomaly.Severity]bool, len(sevs))
		for _, s := range sevs {
			m.severities[s] = true
		}
	}
}

// WithRedactor sets the redactor applied to external channels.
func WithRedactor(r *Redactor) Option {
	return func(m *Manager) { m.redactor = r }
}

// WithFailureHook registers fn to be called for every failed delivery.
func WithFailureHook(fn func(channel string, err error)) Option {
	return func(m *Manager) { m.onFailure = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager builds a Manager. With no channels it accepts and drops every
// finding.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		logger:   slog.Default(),
		failures: make(map[string]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Channels returns the channel names in delivery order.
func (m *Manager) Channels() []string {
	names := make([]string, len(m.channels))
	for i, c := range m.channels {
		names[i] = c.name
	}
	return names
}

// Accepts reports whether findings of sev pass the severity filter.
func (m *Manager) Accepts(sev anomaly.Severity) bool {
	return m.severities == nil || m.severities[sev]
}

// SendAlert delivers f to every channel. It always returns nil; failures
// are logged, counted and reported through the failure hook.
func (m *Manager) SendAlert(ctx context.Context, f anomaly.Finding) error {
	if !m.Accepts(f.Severity) {
		m.logger.Debug("finding filtered by severity", "rule", f.Rule, "severity", f.Severity)
		return nil
	}

	var redacted *anomaly.Finding
	for _, c := range m.channels {
		out := f
		if c.external && m.redactor != nil {
			if redacted == nil {
				r := m.redactor.Finding(f)
				redacted = &r
			}
			out = *redacted
		}
		if err := c.sink.SendAlert(ctx, out); err != nil {
			m.fail(c.name, err)
		}
	}
	return nil
}

func (m *Manager) fail(name string, err error) {
	m.logger.Warn("alert delivery failed", "channel", name, "error", err)
	m.mu.Lock()
	m.failures[name]++
	m.mu.Unlock()
	if m.onFailure != nil {
		m.onFailure(name, err)
	}
}

// Failures returns the number of failed deliveries per channel.
func (m *Manager) Failures() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.failures))
	for k, v := range m.failures {
		out[k] = v
	}
	return out
}

// Close closes every sink that holds a connection.
func (m *Manager) Close() error {
	var errs []error
	for _, c := range m.channels {
		if cl, ok := c.sink.(io.Closer); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
