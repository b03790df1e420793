package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/abdhe/carscout/pkg/metrics"
	"github.com/abdhe/carscout/pkg/resilience"
)

// Client sends prompts through a Transport under a fixed retry policy.
// A Client holds no per-call state and is safe for concurrent use.
type Client struct {
	transport Transport
	retry     resilience.RetryConfig
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithRetryConfig overrides the default 3 attempts / 1s policy.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithLogger sets the logger used for per-attempt diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a Client over t.
func NewClient(t Transport, opts ...Option) (*Client, error) {
	if t == nil {
		return nil, errors.New("gemini: transport is required")
	}
	c := &Client{
		transport: t,
		retry:     resilience.DefaultRetryConfig(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("gemini: max attempts must be at least 1, got %d", c.retry.MaxAttempts)
	}
	if c.retry.InitialDelay <= 0 {
		return nil, fmt.Errorf("gemini: initial delay must be positive, got %s", c.retry.InitialDelay)
	}
	return c, nil
}

// Generate sends prompt and returns the first candidate's text. With a
// structured cfg the text must also parse as JSON.
//
// Transport failures, non-2xx statuses and malformed bodies are retried; once
// every attempt has failed the caller sees only ErrRetriesExhausted. A
// *ParseError is returned straight away without further attempts.
func (c *Client) Generate(ctx context.Context, prompt string, cfg *GenerationConfig) (*Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	body, err := encodeRequest(prompt, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: encode request: %w", err)
	}

	start := time.Now()
	structured := cfg.Structured()
	defer func() {
		metrics.GenerationLatency.WithLabelValues(strconv.FormatBool(structured)).Observe(time.Since(start).Seconds())
	}()

	var (
		result   *Result
		attempts int
	)
	err = resilience.Retry(ctx, c.retry, func(ctx context.Context) error {
		attempts++
		res, err := c.attempt(ctx, body, structured)
		if err == nil {
			metrics.GenerationAttemptsTotal.WithLabelValues("success").Inc()
			res.Attempts = attempts
			result = res
			return nil
		}

		metrics.GenerationAttemptsTotal.WithLabelValues(attemptOutcome(err)).Inc()
		var perr *ParseError
		if errors.As(err, &perr) {
			return err
		}
		c.logger.Warn("generation attempt failed",
			"attempt", attempts,
			"max_attempts", c.retry.MaxAttempts,
			"error", err,
		)
		return resilience.Retryable(err)
	})

	switch {
	case err == nil:
		metrics.GenerationRequestsTotal.WithLabelValues("success").Inc()
		metrics.TokenUsageTotal.WithLabelValues("input").Add(float64(result.PromptTokens))
		metrics.TokenUsageTotal.WithLabelValues("output").Add(float64(result.OutputTokens))
		return result, nil
	case errors.Is(err, ErrRetriesExhausted):
		metrics.GenerationRequestsTotal.WithLabelValues("exhausted").Inc()
		c.logger.Error("generation failed", "attempts", attempts, "error", err)
		return nil, ErrRetriesExhausted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		metrics.GenerationRequestsTotal.WithLabelValues("cancelled").Inc()
		return nil, err
	default:
		metrics.GenerationRequestsTotal.WithLabelValues("parse_error").Inc()
		return nil, err
	}
}

// attempt performs one request and classifies its outcome.
func (c *Client) attempt(ctx context.Context, body []byte, structured bool) (*Result, error) {
	resp, err := c.transport.Send(ctx, body)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{StatusCode: resp.StatusCode, Body: truncate(resp.Body)}
	}

	text, raw, err := extractText(resp.Body)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Text:         text,
		PromptTokens: raw.UsageMetadata.PromptTokenCount,
		OutputTokens: raw.UsageMetadata.CandidatesTokenCount,
	}
	if structured {
		var v json.RawMessage
		if err := json.Unmarshal([]byte(text), &v); err != nil {
			return nil, &ParseError{RawText: text, Err: err}
		}
		res.Structured = v
	}
	return res, nil
}

func attemptOutcome(err error) string {
	var (
		terr *TransportError
		perr *ParseError
	)
	switch {
	case errors.As(err, &perr):
		return "parse"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case resilience.IsServerError(err):
		return "server_error"
	case errors.As(err, &terr) && terr.StatusCode != 0:
		return "client_error"
	default:
		return "transport"
	}
}
