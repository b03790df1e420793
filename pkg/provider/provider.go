// Package provider implements the remote generation client: one JSON POST per
// attempt to a Gemini generateContent endpoint, bounded retries with
// exponential backoff, and extraction of the first candidate's text.
package provider

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/genai"
)

// Response MIME types understood by the generation endpoint.
const (
	MIMETypeText = "text/plain"
	MIMETypeJSON = "application/json"
)

// GenerationConfig is sent verbatim as the request's generationConfig.
type GenerationConfig struct {
	// ResponseMIMEType set to MIMETypeJSON requests structured output; the
	// extracted text is then parsed as JSON instead of returned verbatim.
	ResponseMIMEType string `json:"responseMimeType,omitempty"`

	// ResponseSchema constrains the remote output. It is passed through and
	// never validated locally.
	ResponseSchema *genai.Schema `json:"responseSchema,omitempty"`

	Temperature     *float32 `json:"temperature,omitempty"`
	MaxOutputTokens int32    `json:"maxOutputTokens,omitempty"`
}

// JSONConfig returns a config requesting structured output shaped by schema.
func JSONConfig(schema *genai.Schema) *GenerationConfig {
	return &GenerationConfig{
		ResponseMIMEType: MIMETypeJSON,
		ResponseSchema:   schema,
	}
}

// Structured reports whether the config requests structured JSON output.
func (c *GenerationConfig) Structured() bool {
	return c != nil && c.ResponseMIMEType == MIMETypeJSON
}

// Result is the outcome of a successful Generate call.
type Result struct {
	// Text is the first candidate's first part, verbatim.
	Text string

	// Structured holds the validated JSON value when structured output was
	// requested, nil otherwise.
	Structured json.RawMessage

	// Attempts is the number of calls made, 1..MaxAttempts.
	Attempts int

	PromptTokens int32
	OutputTokens int32
}

// ErrNotStructured is returned by Decode on a free-text result.
var ErrNotStructured = errors.New("gemini: result is not structured")

// Decode unmarshals the structured value into v.
func (r *Result) Decode(v any) error {
	if r == nil || r.Structured == nil {
		return ErrNotStructured
	}
	return json.Unmarshal(r.Structured, v)
}

// WireResponse is one raw HTTP exchange as seen by the client.
type WireResponse struct {
	StatusCode int
	Body       []byte
}

// Transport sends one request body and returns one response or an error.
// Implementations must not retry; the Client owns the retry policy.
type Transport interface {
	Send(ctx context.Context, body []byte) (*WireResponse, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, body []byte) (*WireResponse, error)

// Send implements Transport.
func (f TransportFunc) Send(ctx context.Context, body []byte) (*WireResponse, error) {
	return f(ctx, body)
}
