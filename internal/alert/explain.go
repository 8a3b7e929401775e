package alert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/bimmerbailey/logwarden/internal/anomaly"
	"github.com/bimmerbailey/logwarden/internal/llm/ollama"
	"github.com/bimmerbailey/logwarden/internal/prompt"
)

type chatter interface {
	Chat(ctx context.Context, messages []ollama.Message, opts *ollama.ChatOptions) (*ollama.Response, error)
	ChatStream(ctx context.Context, messages []ollama.Message, opts *ollama.ChatOptions) (<-chan ollama.StreamEvent, error)
}

// checker is implemented by clients that can verify the model up front.
type checker interface {
	Check(ctx context.Context) error
}

// Explain asks an LLM about each finding and prints the answer.
type Explain struct {
	client    chatter
	kind      prompt.PromptType
	stream    bool
	files     []string
	timeRange string

	checkOnce sync.Once
	checkErr  error

	mu sync.Mutex
	w  io.Writer
}

// ExplainOption configures an Explain sink.
type ExplainOption func(*Explain)

// WithPromptType selects the question asked about each finding.
func WithPromptType(pt prompt.PromptType) ExplainOption {
	return func(e *Explain) { e.kind = pt }
}

// WithStreaming prints tokens as the model produces them.
func WithStreaming(stream bool) ExplainOption {
	return func(e *Explain) { e.stream = stream }
}

// WithRunContext adds the run's inputs and time window to every prompt.
func WithRunContext(files []string, timeRange string) ExplainOption {
	return func(e *Explain) {
		e.files = files
		e.timeRange = timeRange
	}
}

// NewExplain returns a sink that writes explanations to w.
func NewExplain(client chatter, w io.Writer, opts ...ExplainOption) *Explain {
	e := &Explain{client: client, w: w, kind: prompt.TypeExplain}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SendAlert asks the model about f. The first call verifies that the model
// is available; if it is not, every call fails with that error.
func (e *Explain) SendAlert(ctx context.Context, f anomaly.Finding) error {
	if c, ok := e.client.(checker); ok {
		e.checkOnce.Do(func() { e.checkErr = c.Check(ctx) })
		if e.checkErr != nil {
			return fmt.Errorf("ollama: %w", e.checkErr)
		}
	}
	messages, err := prompt.Build(e.kind, prompt.BuildOptions{
		Finding:   f,
		Files:     e.files,
		TimeRange: e.timeRange,
	})
	if err != nil {
		return fmt.Errorf("ollama: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	header := fmt.Sprintf("Explanation [%s] %s:\n", strings.ToUpper(string(f.Severity)), f.Rule)
	if !e.stream {
		resp, err := e.client.Chat(ctx, messages, nil)
		if err != nil {
			return fmt.Errorf("ollama: %w", err)
		}
		_, err = fmt.Fprintf(e.w, "%s%s\n\n", header, strings.TrimSpace(resp.Content))
		return err
	}

	events, err := e.client.ChatStream(ctx, messages, nil)
	if err != nil {
		return fmt.Errorf("ollama: %w", err)
	}
	if _, err := io.WriteString(e.w, header); err != nil {
		return err
	}
	var streamErr error
	for ev := range events {
		if ev.Error != nil {
			streamErr = ev.Error
			continue
		}
		if _, err := io.WriteString(e.w, ev.Content); err != nil {
			streamErr = errors.Join(streamErr, err)
		}
	}
	io.WriteString(e.w, "\n\n")
	if streamErr != nil {
		return fmt.Errorf("ollama: %w", streamErr)
	}
	return nil
}
