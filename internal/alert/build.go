package alert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/bimmerbailey/logwarden/internal/anomaly"
	"github.com/bimmerbailey/logwarden/internal/config"
	"github.com/bimmerbailey/logwarden/internal/llm/ollama"
	"github.com/bimmerbailey/logwarden/internal/output"
	"github.com/bimmerbailey/logwarden/internal/prompt"
)

// Settings carries the runtime values FromConfig cannot read from the
// configuration file.
type Settings struct {
	Stdout    io.Writer
	Logger    *slog.Logger
	Files     []string
	TimeRange string
	OnFailure func(channel string, err error)
}

// FromConfig builds a Manager with every channel cfg enables. A channel
// whose settings are incomplete is an error; callers should close the
// returned Manager.
func FromConfig(ctx context.Context, cfg config.AlertConfig, s Settings) (*Manager, error) {
	if s.Stdout == nil {
		s.Stdout = os.Stdout
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}

	opts := []Option{WithLogger(s.Logger)}
	if s.OnFailure != nil {
		opts = append(opts, WithFailureHook(s.OnFailure))
	}

	sevs := make([]anomaly.Severity, 0, len(cfg.Filters.SeverityLevels))
	for _, name := range cfg.Filters.SeverityLevels {
		sev, err := anomaly.ParseSeverity(name)
		if err != nil {
			return nil, fmt.Errorf("alerting.filters: %w", err)
		}
		sevs = append(sevs, sev)
	}
	opts = append(opts, WithSeverities(sevs...))

	if cfg.Redaction.Enabled {
		r, err := NewRedactor(cfg.Redaction.Patterns)
		if err != nil {
			return nil, fmt.Errorf("alerting.redaction: %w", err)
		}
		opts = append(opts, WithRedactor(r))
	}

	var closers []io.Closer
	fail := func(err error) (*Manager, error) {
		for _, c := range closers {
			c.Close()
		}
		return nil, err
	}

	ch := cfg.Channels
	if ch.Console {
		opts = append(opts, WithChannel("console", NewConsole(s.Stdout, output.ParseColorMode(cfg.Console.Color))))
	}
	if ch.Email {
		sink, err := NewEmail(cfg.Email)
		if err != nil {
			return fail(err)
		}
		opts = append(opts, WithExternalChannel("email", sink))
	}
	if ch.Kafka {
		sink, err := NewKafka(cfg.Kafka)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, sink)
		opts = append(opts, WithExternalChannel("kafka", sink))
	}
	if ch.Redis {
		sink, err := NewRedis(cfg.Redis)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, sink)
		opts = append(opts, WithExternalChannel("redis", sink))
	}
	if ch.Postgres {
		sink, err := NewPostgres(ctx, cfg.Postgres)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, sink)
		opts = append(opts, WithExternalChannel("postgres", sink))
	}
	if ch.Ollama {
		sink, err := newExplainFromConfig(cfg.Ollama, s)
		if err != nil {
			return fail(err)
		}
		opts = append(opts, WithExternalChannel("ollama", sink))
	}

	m := NewManager(opts...)
	if len(m.channels) == 0 {
		s.Logger.Debug("no alert channels enabled; findings are only reported")
	}
	return m, nil
}

func newExplainFromConfig(cfg config.OllamaConfig, s Settings) (*Explain, error) {
	var timeout time.Duration
	if cfg.Timeout != "" {
		d, err := config.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("alerting.ollama.timeout: %w", err)
		}
		timeout = d
	}
	client, err := ollama.New(ollama.Config{Host: cfg.Host, Model: cfg.Model, Timeout: timeout}, s.Logger)
	if err != nil {
		return nil, fmt.Errorf("alerting.ollama: %w", err)
	}
	return NewExplain(client, s.Stdout,
		WithPromptType(prompt.ParsePromptType(cfg.Prompt)),
		WithStreaming(cfg.Stream),
		WithRunContext(s.Files, s.TimeRange),
	), nil
}
