package carinfo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdhe/carscout/pkg/provider"
	"github.com/abdhe/carscout/pkg/resilience"
)

const civicRatings = `{"make":"Honda","model":"Civic","year":"2021","ratings":[
	{"source":"IIHS","type":"Safety","score":"Good"},
	{"source":"J.D. Power","type":"Reliability","score":"85/100"}]}`

// fakeGenerator answers by matching a substring of the prompt.
type fakeGenerator struct {
	mu      sync.Mutex
	answers map[string]string // prompt substring -> text
	err     error
	prompts []string
	configs []*provider.GenerationConfig
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string, cfg *provider.GenerationConfig) (*provider.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.configs = append(f.configs, cfg)
	if f.err != nil {
		return nil, f.err
	}
	for k, v := range f.answers {
		if strings.Contains(prompt, k) {
			res := &provider.Result{Text: v, Attempts: 1}
			if cfg.Structured() {
				if !json.Valid([]byte(v)) {
					return nil, &provider.ParseError{RawText: v, Err: errors.New("invalid character")}
				}
				res.Structured = json.RawMessage(v)
			}
			return res, nil
		}
	}
	return nil, provider.ErrRetriesExhausted
}

func (f *fakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type memCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, val []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = val
	return nil
}

func (c *memCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func civicGenerator() *fakeGenerator {
	return &fakeGenerator{answers: map[string]string{
		"Provide car ratings": civicRatings,
		"brief, interesting":  "The Civic has been Honda's compact mainstay since 1972.",
		`"pros" and "cons"`:   `{"pros":["Efficient","Reliable","Roomy"],"cons":["Road noise","Plain interior","CVT feel"]}`,
	}}
}

func TestRatings(t *testing.T) {
	gen := civicGenerator()
	svc := NewService(gen, WithLogger(quietLogger()))

	got, err := svc.Ratings(context.Background(), "  2021   Honda Civic ")
	require.NoError(t, err)
	assert.Equal(t, "Honda", got.Make)
	assert.Equal(t, "2021 Honda Civic", got.Title())
	require.Len(t, got.Ratings, 2)
	assert.Equal(t, Rating{Source: "IIHS", Type: "Safety", Score: "Good"}, got.Ratings[0])

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "for the 2021 Honda Civic in a JSON object")
	assert.True(t, gen.configs[0].Structured())
	assert.Equal(t, RatingsSchema(), gen.configs[0].ResponseSchema)
}

func TestRatings_EmptyQuery(t *testing.T) {
	gen := civicGenerator()
	svc := NewService(gen, WithLogger(quietLogger()))

	_, err := svc.Ratings(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Equal(t, MsgEmptyQuery, UserMessage(err))
	assert.Zero(t, gen.Calls())
}

func TestRatings_NoRatings(t *testing.T) {
	gen := &fakeGenerator{answers: map[string]string{
		"Provide car ratings": `{"make":"Foo","model":"Bar","year":"1900","ratings":[]}`,
	}}
	cache := newMemCache()
	svc := NewService(gen, WithCache(cache), WithLogger(quietLogger()))

	_, err := svc.Ratings(context.Background(), "Foo Bar")
	assert.ErrorIs(t, err, ErrNoRatings)
	assert.Equal(t, MsgNoRatings, UserMessage(err))
	assert.Zero(t, cache.Len(), "empty answers are not cached")
}

func TestRatings_Exhausted(t *testing.T) {
	gen := &fakeGenerator{err: provider.ErrRetriesExhausted}
	svc := NewService(gen, WithLogger(quietLogger()))

	_, err := svc.Ratings(context.Background(), "Tesla Model 3")
	assert.ErrorIs(t, err, provider.ErrRetriesExhausted)
	assert.Equal(t, MsgExhausted, UserMessage(err))
}

func TestDescription(t *testing.T) {
	gen := civicGenerator()
	svc := NewService(gen, WithLogger(quietLogger()))

	got, err := svc.Description(context.Background(), "Honda Civic")
	require.NoError(t, err)
	assert.Contains(t, got, "compact mainstay")
	assert.Nil(t, gen.configs[0], "description is a free-text request")
}

func TestProsAndCons(t *testing.T) {
	gen := civicGenerator()
	svc := NewService(gen, WithLogger(quietLogger()))

	got, err := svc.ProsAndCons(context.Background(), "Honda Civic")
	require.NoError(t, err)
	assert.Equal(t, []string{"Efficient", "Reliable", "Roomy"}, got.Pros)
	assert.Len(t, got.Cons, 3)
	assert.Equal(t, ProsConsSchema(), gen.configs[0].ResponseSchema)
}

func TestProsAndCons_ParseError(t *testing.T) {
	gen := &fakeGenerator{answers: map[string]string{`"pros" and "cons"`: "Pros: cheap"}}
	svc := NewService(gen, WithLogger(quietLogger()))

	_, err := svc.ProsAndCons(context.Background(), "Honda Civic")
	var perr *provider.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Pros: cheap", perr.RawText)
	assert.Equal(t, MsgUnreadable, UserMessage(err))
}

func TestOverview(t *testing.T) {
	gen := civicGenerator()
	svc := NewService(gen, WithLogger(quietLogger()))

	got, err := svc.Overview(context.Background(), "Honda Civic")
	require.NoError(t, err)
	assert.Equal(t, "Civic", got.Ratings.Model)
	assert.NotEmpty(t, got.Description)
	assert.Len(t, got.ProsCons.Pros, 3)
	assert.Equal(t, 3, gen.Calls())
	assert.Contains(t, gen.prompts[0], "Provide car ratings", "ratings are fetched first")
}

func TestOverview_StopsWhenRatingsFail(t *testing.T) {
	gen := &fakeGenerator{answers: map[string]string{
		"Provide car ratings": `{"ratings":[]}`,
		"brief, interesting":  "never asked",
	}}
	svc := NewService(gen, WithLogger(quietLogger()))

	_, err := svc.Overview(context.Background(), "Nothing")
	assert.ErrorIs(t, err, ErrNoRatings)
	assert.Equal(t, 1, gen.Calls())
}

func TestCache_HitSkipsGenerator(t *testing.T) {
	gen := civicGenerator()
	cache := newMemCache()
	svc := NewService(gen, WithCache(cache), WithLogger(quietLogger()))

	first, err := svc.Ratings(context.Background(), "Honda Civic")
	require.NoError(t, err)
	second, err := svc.Ratings(context.Background(), "HONDA civic")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, gen.Calls())
	assert.Equal(t, 1, cache.Len())
}

func TestCache_ReadErrorIsAMiss(t *testing.T) {
	gen := civicGenerator()
	cache := newMemCache()
	cache.getErr = errors.New("connection refused")
	svc := NewService(gen, WithCache(cache), WithLogger(quietLogger()))

	_, err := svc.Description(context.Background(), "Honda Civic")
	require.NoError(t, err)
	assert.Equal(t, 1, gen.Calls())
}

func TestCacheKey(t *testing.T) {
	a := CacheKey(OpRatings, "Honda Civic")
	assert.Equal(t, a, CacheKey(OpRatings, "honda civic"))
	assert.NotEqual(t, a, CacheKey(OpDescription, "Honda Civic"))
	assert.True(t, strings.HasPrefix(a, "carscout:"))
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	gen := &fakeGenerator{err: provider.ErrRetriesExhausted}
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 2, Cooldown: time.Hour})
	svc := NewService(gen, WithBreaker(cb), WithLogger(quietLogger()))

	for i := 0; i < 2; i++ {
		_, err := svc.Description(context.Background(), "Honda Civic")
		assert.ErrorIs(t, err, provider.ErrRetriesExhausted)
	}
	_, err := svc.Description(context.Background(), "Honda Civic")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, MsgUnavailable, UserMessage(err))
	assert.Equal(t, 2, gen.Calls())
}

func TestBreaker_ParseErrorDoesNotTrip(t *testing.T) {
	gen := &fakeGenerator{answers: map[string]string{`"pros" and "cons"`: "nope"}}
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	svc := NewService(gen, WithBreaker(cb), WithLogger(quietLogger()))

	for i := 0; i < 3; i++ {
		_, err := svc.ProsAndCons(context.Background(), "Honda Civic")
		var perr *provider.ParseError
		assert.ErrorAs(t, err, &perr)
	}
	assert.Equal(t, resilience.StateClosed, cb.State())
}

func TestBreaker_CallerCancellationDoesNotTrip(t *testing.T) {
	gen := &fakeGenerator{err: fmt.Errorf("retry: context cancelled after 1 attempts: %w", context.Canceled)}
	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Hour})
	svc := NewService(gen, WithBreaker(cb), WithLogger(quietLogger()))

	_, err := svc.Description(context.Background(), "Honda Civic")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, resilience.StateClosed, cb.State())

	gen.mu.Lock()
	gen.err = nil
	gen.answers = map[string]string{"brief, interesting": "A dependable compact."}
	gen.mu.Unlock()

	d, err := svc.Description(context.Background(), "Honda Civic")
	require.NoError(t, err)
	assert.Equal(t, "A dependable compact.", d)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "boom", UserMessage(errors.New("boom")))
}
