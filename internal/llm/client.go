package llm

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 1 * time.Second
	DefaultCallTimeout = 90 * time.Second
)

// Backend issues exactly one completion request per call.
type Backend interface {
	Complete(ctx context.Context, systemPrompt string, content Content) (string, error)
}

// Generator is what the agents depend on. It never returns an error: an empty
// string means the model produced nothing usable.
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, content Content, maxAttempts int) string
}

// Client wraps a Backend with bounded retries and linear backoff.
type Client struct {
	backend     Backend
	baseDelay   time.Duration
	callTimeout time.Duration
	log         *slog.Logger
}

type Option func(*Client)

// WithBaseDelay sets the unit of the linear backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.baseDelay = d
		}
	}
}

// WithCallTimeout bounds every single attempt. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d >= 0 {
			c.callTimeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func NewClient(backend Backend, opts ...Option) *Client {
	c := &Client{
		backend:     backend,
		baseDelay:   DefaultBaseDelay,
		callTimeout: DefaultCallTimeout,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate issues at most maxAttempts requests. After a failed attempt k it
// waits k*baseDelay before trying again. All failures are retried the same
// way; 4xx responses are not treated specially.
func (c *Client) Generate(ctx context.Context, systemPrompt string, content Content, maxAttempts int) string {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		text, err := c.attempt(ctx, systemPrompt, content)
		if err == nil {
			return text
		}
		c.log.Warn("Completion attempt failed.", "attempt", attempt, "maxAttempts", maxAttempts, "error", err)

		if ctx.Err() != nil {
			c.log.Error("Context cancelled. Aborting completion retries.", "error", ctx.Err())
			return ""
		}
		if attempt == maxAttempts {
			break
		}

		backoff := time.Duration(attempt) * c.baseDelay
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			c.log.Error("Context cancelled during backoff. Aborting completion retries.", "error", ctx.Err())
			return ""
		}
	}

	c.log.Error("Completion failed after all attempts.", "maxAttempts", maxAttempts)
	return ""
}

func (c *Client) attempt(ctx context.Context, systemPrompt string, content Content) (string, error) {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}
	return c.backend.Complete(ctx, systemPrompt, content)
}
