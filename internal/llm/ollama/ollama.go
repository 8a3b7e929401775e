// Package ollama is a small client for the Ollama chat API, used to explain
// findings in plain language.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "llama3.2"

var (
	// ErrProviderUnavailable wraps transport failures talking to Ollama.
	ErrProviderUnavailable = errors.New("llm provider is not reachable")
	// ErrModelMissing means the server is up but the model was never pulled.
	ErrModelMissing = errors.New("model is not available")
	errNoMessages   = errors.New("ollama: no messages to send")
)

// Config selects the endpoint and model.
type Config struct {
	// Host such as "http://localhost:11434". Empty means OLLAMA_HOST or the
	// library default.
	Host    string
	Model   string
	Timeout time.Duration // per request; zero means no client-side limit
}

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// ChatOptions overrides per-request settings.
type ChatOptions struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Response is a complete answer.
type Response struct {
	Content      string
	Model        string
	TokensPrompt int
	TokensTotal  int
}

// StreamEvent carries one chunk of a streamed answer. The last event has
// Done set; Error is set only on that event.
type StreamEvent struct {
	Content string
	Done    bool
	Error   error
}

// Client talks to one Ollama endpoint.
type Client struct {
	api    *api.Client
	model  string
	logger *slog.Logger
}

// New creates a client. A nil logger uses slog.Default.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var client *api.Client
	if cfg.Host == "" {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		client = c
	} else {
		u, err := url.Parse(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host %q: %w", cfg.Host, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid ollama host %q: scheme and host are required", cfg.Host)
		}
		client = api.NewClient(u, &http.Client{Timeout: cfg.Timeout})
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	logger.Debug("ollama client ready", "host", cfg.Host, "model", model)
	return &Client{api: client, model: model, logger: logger}, nil
}

// Model returns the default model name.
func (c *Client) Model() string {
	return c.model
}

// Check verifies that the server answers and that the default model has been
// pulled.
func (c *Client) Check(ctx context.Context) error {
	if err := c.api.Heartbeat(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	list, err := c.api.List(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	for _, m := range list.Models {
		if sameModel(m.Name, c.model) || sameModel(m.Model, c.model) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (run `ollama pull %s`)", ErrModelMissing, c.model, c.model)
}

// sameModel treats "name" and "name:latest" as the same model.
func sameModel(have, want string) bool {
	if have == want {
		return true
	}
	return !strings.Contains(want, ":") && have == want+":latest"
}

// Chat sends messages and waits for the complete answer.
func (c *Client) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	if len(messages) == 0 {
		return nil, errNoMessages
	}
	req := c.request(messages, opts, false)

	var last api.ChatResponse
	err := c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
		last = resp
		return nil
	})
	if err != nil {
		return nil, c.wrap(ctx, err, req.Model)
	}

	c.logger.Debug("ollama chat done", "model", last.Model,
		"prompt_tokens", last.PromptEvalCount, "eval_tokens", last.EvalCount)
	return &Response{
		Content:      last.Message.Content,
		Model:        last.Model,
		TokensPrompt: last.PromptEvalCount,
		TokensTotal:  last.PromptEvalCount + last.EvalCount,
	}, nil
}

// ChatStream sends messages and returns the answer chunk by chunk. The
// channel is closed after the Done event.
func (c *Client) ChatStream(ctx context.Context, messages []Message, opts *ChatOptions) (<-chan StreamEvent, error) {
	if len(messages) == 0 {
		return nil, errNoMessages
	}
	req := c.request(messages, opts, true)

	events := make(chan StreamEvent, 16)
	go func() {
		defer close(events)
		done := false
		err := c.api.Chat(ctx, req, func(resp api.ChatResponse) error {
			if resp.Message.Content == "" && !resp.Done {
				return nil
			}
			done = resp.Done
			select {
			case events <- StreamEvent{Content: resp.Message.Content, Done: resp.Done}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil {
			events <- StreamEvent{Done: true, Error: c.wrap(ctx, err, req.Model)}
		} else if !done {
			events <- StreamEvent{Done: true}
		}
	}()
	return events, nil
}

func (c *Client) request(messages []Message, opts *ChatOptions, stream bool) *api.ChatRequest {
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: make([]api.Message, len(messages)),
		Options:  map[string]any{"temperature": float32(0)},
		Stream:   &stream,
	}
	for i, m := range messages {
		req.Messages[i] = api.Message{Role: m.Role, Content: m.Content}
	}
	if opts != nil {
		if opts.Model != "" {
			req.Model = opts.Model
		}
		req.Options["temperature"] = opts.Temperature
		if opts.MaxTokens > 0 {
			req.Options["num_predict"] = opts.MaxTokens
		}
	}
	return req
}

// wrap keeps cancellation distinguishable from an unreachable server.
func (c *Client) wrap(ctx context.Context, err error, model string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("ollama: %w", ctxErr)
	}
	c.logger.Warn("ollama request failed", "model", model, "error", err)
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
