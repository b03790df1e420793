package provider

import (
	"errors"
	"fmt"

	"github.com/abdhe/carscout/pkg/resilience"
)

var (
	// ErrEmptyPrompt is returned before any call when the prompt is blank.
	ErrEmptyPrompt = errors.New("gemini: prompt cannot be empty")

	// ErrMalformedResponse means candidates[0].content.parts[0].text was
	// missing or empty, or the body was not JSON.
	ErrMalformedResponse = errors.New("gemini: invalid API response structure or empty content")

	// ErrRetriesExhausted is the only error surfaced after every attempt failed.
	ErrRetriesExhausted = resilience.ErrRetriesExhausted
)

// TransportError is a network failure (StatusCode 0) or a non-2xx response.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("gemini: do request: %v", e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("gemini: HTTP error! status: %d", e.StatusCode)
	}
	return fmt.Sprintf("gemini: HTTP error! status: %d: %s", e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatus exposes the status code to resilience.IsServerError.
func (e *TransportError) HTTPStatus() int { return e.StatusCode }

// ParseError is returned, without retrying, when structured output was
// requested and the extracted text is not valid JSON. RawText keeps the
// undecoded model output so callers can decide what to do with it.
type ParseError struct {
	RawText string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("gemini: parse structured response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
