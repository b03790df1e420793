package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/abdhe/carscout/pkg/resilience"
)

// Defaults for the hosted endpoint.
const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	DefaultModel   = "gemini-2.5-flash-preview-05-20"
)

// rateLimitCooldown is how long a key stays out of rotation after a 429.
const rateLimitCooldown = 60 * time.Second

// maxErrorBody bounds how much of a failed response ends up in errors and logs.
const maxErrorBody = 512

// geminiRequest is the generateContent request body.
type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text *string `json:"text,omitempty"`
}

// geminiResponse is the subset of the generateContent response we consume.
type geminiResponse struct {
	Candidates []struct {
		Content *geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int32 `json:"promptTokenCount"`
		CandidatesTokenCount int32 `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// encodeRequest builds the single-turn request body. A nil cfg is sent as {}.
func encodeRequest(prompt string, cfg *GenerationConfig) ([]byte, error) {
	if cfg == nil {
		cfg = &GenerationConfig{}
	}
	body := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: &prompt}}},
		},
		GenerationConfig: cfg,
	}
	return json.Marshal(body)
}

// extractText returns candidates[0].content.parts[0].text. Absence at any
// level, or an empty text, is ErrMalformedResponse.
func extractText(body []byte) (string, geminiResponse, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", resp, fmt.Errorf("%w: decode response: %v", ErrMalformedResponse, err)
	}
	if len(resp.Candidates) == 0 {
		return "", resp, fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}
	content := resp.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", resp, fmt.Errorf("%w: no content parts", ErrMalformedResponse)
	}
	text := content.Parts[0].Text
	if text == nil || *text == "" {
		return "", resp, fmt.Errorf("%w: empty text", ErrMalformedResponse)
	}
	return *text, resp, nil
}

// HTTPTransport POSTs request bodies to {baseURL}/models/{model}:generateContent.
type HTTPTransport struct {
	client  *http.Client
	baseURL string
	model   string
	keys    *resilience.KeyPool
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) HTTPOption {
	return func(t *HTTPTransport) { t.baseURL = u }
}

// WithModel overrides the model name.
func WithModel(m string) HTTPOption {
	return func(t *HTTPTransport) { t.model = m }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) { t.client = c }
}

// WithKeyPool supplies API keys. Without a pool, or with an empty one, the key
// parameter is sent blank.
func WithKeyPool(kp *resilience.KeyPool) HTTPOption {
	return func(t *HTTPTransport) { t.keys = kp }
}

// NewHTTPTransport creates a transport for the hosted Gemini API.
func NewHTTPTransport(opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		client:  &http.Client{Timeout: 60 * time.Second},
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Model returns the configured model name.
func (t *HTTPTransport) Model() string { return t.model }

// Send performs exactly one POST.
func (t *HTTPTransport) Send(ctx context.Context, body []byte) (*WireResponse, error) {
	var key string
	if t.keys != nil {
		// Next only fails on an empty pool; the key is then sent blank.
		if k, err := t.keys.Next(); err == nil {
			key = k
		}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", t.baseURL, url.PathEscape(t.model), url.QueryEscape(key))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: read response: %w", err)
	}

	if httpResp.StatusCode == http.StatusTooManyRequests && t.keys != nil && key != "" {
		t.keys.MarkRateLimited(key, time.Now().Add(rateLimitCooldown))
	}

	return &WireResponse{StatusCode: httpResp.StatusCode, Body: respBody}, nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
