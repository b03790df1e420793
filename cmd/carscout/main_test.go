package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdhe/carscout/pkg/carinfo"
	"github.com/abdhe/carscout/pkg/provider"
)

// fakeGemini answers every generateContent call with text.
func fakeGemini(t *testing.T, status int, text string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		body := map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func setEnv(t *testing.T, baseURL string) {
	t.Setenv("CARSCOUT_LLM_BASE_URL", baseURL)
	t.Setenv("CARSCOUT_LLM_API_KEYS", "k1,k2")
	t.Setenv("CARSCOUT_LLM_INITIAL_DELAY", "1ms")
	t.Setenv("CARSCOUT_SERVER_LOG_LEVEL", "error")
}

func TestAsk_RatingsJSON(t *testing.T) {
	srv, calls := fakeGemini(t, http.StatusOK,
		`{"make":"Honda","model":"Civic","year":"2021","ratings":[{"source":"IIHS","type":"Safety","score":"Good"}]}`)
	setEnv(t, srv.URL)

	out, err := runCLI(t, "ask", "ratings", "--json", "Honda", "Civic")
	require.NoError(t, err)
	assert.EqualValues(t, 1, calls.Load())

	var got carinfo.CarRatings
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Civic", got.Model)
	require.Len(t, got.Ratings, 1)
	assert.Equal(t, "IIHS", got.Ratings[0].Source)
}

func TestAsk_RatingsText(t *testing.T) {
	srv, _ := fakeGemini(t, http.StatusOK,
		`{"make":"Honda","model":"Civic","year":"2021","ratings":[{"source":"IIHS","type":"Safety","score":"Good"}]}`)
	setEnv(t, srv.URL)

	out, err := runCLI(t, "ask", "ratings", "Honda Civic")
	require.NoError(t, err)
	assert.Contains(t, out, "2021 Honda Civic")
	assert.Contains(t, out, "IIHS")
}

func TestAsk_Exhausted(t *testing.T) {
	srv, calls := fakeGemini(t, http.StatusServiceUnavailable, "")
	setEnv(t, srv.URL)
	t.Setenv("CARSCOUT_BREAKER_FAILURE_THRESHOLD", "0")

	_, err := runCLI(t, "ask", "description", "Tesla Model 3")
	require.Error(t, err)
	assert.ErrorIs(t, err, provider.ErrRetriesExhausted)
	assert.Equal(t, carinfo.MsgExhausted, carinfo.UserMessage(err))
	assert.EqualValues(t, 3, calls.Load())
}

func TestAsk_NoAPIKeysSendsBlankKey(t *testing.T) {
	var key atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key.Store(r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"A dependable compact."}]}}]}`))
	}))
	t.Cleanup(srv.Close)
	setEnv(t, srv.URL)
	t.Setenv("CARSCOUT_LLM_API_KEYS", "")

	out, err := runCLI(t, "ask", "description", "Honda Civic")
	require.NoError(t, err)
	assert.Equal(t, "A dependable compact.\n", out)
	assert.Equal(t, "", key.Load())
}

func TestAsk_RequiresCar(t *testing.T) {
	_, err := runCLI(t, "ask", "ratings")
	assert.Error(t, err)
}

func TestGenerate_Text(t *testing.T) {
	srv, _ := fakeGemini(t, http.StatusOK, "hello there")
	setEnv(t, srv.URL)

	out, err := runCLI(t, "generate", "say", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello there\n", out)
}

func TestGenerate_StructuredRejectsBadJSON(t *testing.T) {
	srv, calls := fakeGemini(t, http.StatusOK, "not json")
	setEnv(t, srv.URL)

	_, err := runCLI(t, "generate", "--json", "list", "colors")
	var perr *provider.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "not json", perr.RawText)
	assert.EqualValues(t, 1, calls.Load())
}

func TestModelFlagOverridesConfig(t *testing.T) {
	var path atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`))
	}))
	t.Cleanup(srv.Close)
	setEnv(t, srv.URL)
	t.Setenv("CARSCOUT_LLM_MODEL", "from-env")

	_, err := runCLI(t, "--model", "from-flag", "generate", "hi")
	require.NoError(t, err)
	assert.Equal(t, "/models/from-flag:generateContent", path.Load())
}

type stubGenerator struct {
	res *provider.Result
	err error
}

func (s stubGenerator) Generate(context.Context, string, *provider.GenerationConfig) (*provider.Result, error) {
	return s.res, s.err
}

func TestRunGenerate(t *testing.T) {
	var out bytes.Buffer
	err := runGenerate(context.Background(), stubGenerator{res: &provider.Result{Text: `{"a":1}`, Structured: json.RawMessage(`{"a":1}`)}}, "p", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1}\n", out.String())

	boom := errors.New("boom")
	err = runGenerate(context.Background(), stubGenerator{err: boom}, "p", nil, &out)
	assert.ErrorIs(t, err, boom)
	assert.True(t, strings.HasPrefix(err.Error(), "generate: "))
}
