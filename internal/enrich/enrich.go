// Package enrich asks a generative model for a structured summary, category,
// key points, tags and translations of one article.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nara-digital/newsingest/internal/article"
	"github.com/nara-digital/newsingest/internal/ratelimit"
	"github.com/nara-digital/newsingest/internal/retry"
)

// DefaultTargetLanguages are Sinhala and Tamil.
var DefaultTargetLanguages = []string{"si", "ta"}

var (
	ErrNoCandidates  = errors.New("model returned no candidates")
	ErrEmptyResponse = errors.New("model returned no text")
	ErrInvalidJSON   = errors.New("response is not valid JSON")
	ErrSchema        = errors.New("response does not match the expected shape")
)

// Error is returned when enrichment gave up. Callers fall back to heuristics.
type Error struct {
	Attempts int
	Cause    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("enrichment failed after %d attempt(s): %v", e.Attempts, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Payload is the article data sent to the model.
type Payload struct {
	Title       string     `json:"title"`
	Summary     string     `json:"summary,omitempty"`
	Content     string     `json:"content,omitempty"`
	URL         string     `json:"url"`
	Source      string     `json:"source,omitempty"`
	Language    string     `json:"language,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	ContentHash string     `json:"-"`
}

// Result is a validated model response.
type Result struct {
	Summary      string
	Category     string
	KeyPoints    []string
	Tags         []string
	Translations map[string]article.Translation
}

// Enricher is implemented by Client and its decorators.
type Enricher interface {
	Enrich(ctx context.Context, p Payload) (*Result, error)
	ModelID() string
}

type Options struct {
	TargetLanguages []string
	Categories      []string
	Timeout         time.Duration
	Retries         int
	RetryDelay      time.Duration
	Backoff         bool
	MaxKeyPoints    int
	MaxContentRunes int
}

// Client wraps one Model with a fixed system instruction, per-attempt timeout and bounded retry.
type Client struct {
	model  Model
	budget *ratelimit.Budget
	opts   Options
	system string
	logger *slog.Logger
}

var _ Enricher = (*Client)(nil)

func NewClient(model Model, budget *ratelimit.Budget, opts Options, logger *slog.Logger) *Client {
	if len(opts.TargetLanguages) == 0 {
		opts.TargetLanguages = DefaultTargetLanguages
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxKeyPoints <= 0 {
		opts.MaxKeyPoints = 5
	}
	if opts.MaxContentRunes <= 0 {
		opts.MaxContentRunes = 6000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		model:  model,
		budget: budget,
		opts:   opts,
		system: SystemInstruction(opts.Categories, opts.TargetLanguages, opts.MaxKeyPoints),
		logger: logger.With("component", "enrich", "model", model.Name()),
	}
}

func (c *Client) ModelID() string {
	return c.model.Name()
}

// Enrich runs the model call with retries. Every failure is an *Error.
func (c *Client) Enrich(ctx context.Context, p Payload) (*Result, error) {
	if c.budget != nil {
		if err := c.budget.Acquire(ctx); err != nil {
			return nil, &Error{Cause: err}
		}
	}

	prompt, err := BuildPrompt(p, c.opts.TargetLanguages, c.opts.MaxContentRunes)
	if err != nil {
		return nil, &Error{Cause: err}
	}

	attempts := 0
	cfg := retry.RetryConfig{
		MaxAttempts: c.opts.Retries + 1,
		Delay:       c.opts.RetryDelay,
		Backoff:     c.opts.Backoff,
		OnRetry: func(attempt, remaining int, err error) {
			c.logger.Warn("enrichment attempt failed, retrying",
				"title", p.Title, "attempt", attempt, "remaining", remaining, "error", err)
		},
	}

	res, err := retry.WithRetryValue(ctx, cfg, func(ctx context.Context) (*Result, error) {
		attempts++
		return c.attempt(ctx, prompt)
	})
	if err != nil {
		return nil, &Error{Attempts: attempts, Cause: err}
	}
	return res, nil
}

func (c *Client) attempt(ctx context.Context, prompt string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	resp, err := c.model.Generate(ctx, Request{SystemInstruction: c.system, Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, ErrNoCandidates
	}

	for _, text := range resp.Candidates {
		if strings.TrimSpace(text) != "" {
			return ParseResult(text, c.opts.MaxKeyPoints)
		}
	}
	return nil, ErrEmptyResponse
}
