package carinfo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abdhe/carscout/pkg/metrics"
	"github.com/abdhe/carscout/pkg/provider"
	"github.com/abdhe/carscout/pkg/resilience"
)

// Generator is the subset of provider.Client the service needs.
type Generator interface {
	Generate(ctx context.Context, prompt string, cfg *provider.GenerationConfig) (*provider.Result, error)
}

// Cache stores raw lookup answers. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte) error
}

// Lookup is implemented by Service and by remote clients of it.
type Lookup interface {
	Ratings(ctx context.Context, query string) (*CarRatings, error)
	Description(ctx context.Context, query string) (string, error)
	ProsAndCons(ctx context.Context, query string) (*ProsCons, error)
}

// Service answers car lookups through a Generator.
type Service struct {
	gen     Generator
	cache   Cache
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

var _ Lookup = (*Service)(nil)

// Option configures a Service.
type Option func(*Service)

// WithCache enables the answer cache.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithBreaker guards upstream calls with cb.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(s *Service) { s.breaker = cb }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a Service backed by gen.
func NewService(gen Generator, opts ...Option) *Service {
	s := &Service{gen: gen, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ratings looks up ratings for query. An answer without any rating is
// reported as ErrNoRatings and not cached.
func (s *Service) Ratings(ctx context.Context, query string) (*CarRatings, error) {
	car, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}

	raw, cached, err := s.fetch(ctx, OpRatings, car)
	if err != nil {
		return nil, err
	}

	var out CarRatings
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &provider.ParseError{RawText: string(raw), Err: err}
	}
	if len(out.Ratings) == 0 {
		return nil, ErrNoRatings
	}
	if !cached {
		s.store(ctx, OpRatings, car, raw)
	}
	return &out, nil
}

// Description returns a short free-text summary of the car.
func (s *Service) Description(ctx context.Context, query string) (string, error) {
	car, err := normalizeQuery(query)
	if err != nil {
		return "", err
	}

	raw, cached, err := s.fetch(ctx, OpDescription, car)
	if err != nil {
		return "", err
	}
	if !cached {
		s.store(ctx, OpDescription, car, raw)
	}
	return string(raw), nil
}

// ProsAndCons returns strengths and weaknesses of the car.
func (s *Service) ProsAndCons(ctx context.Context, query string) (*ProsCons, error) {
	car, err := normalizeQuery(query)
	if err != nil {
		return nil, err
	}

	raw, cached, err := s.fetch(ctx, OpProsCons, car)
	if err != nil {
		return nil, err
	}

	var out ProsCons
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &provider.ParseError{RawText: string(raw), Err: err}
	}
	if !cached {
		s.store(ctx, OpProsCons, car, raw)
	}
	return &out, nil
}

// Overview fetches ratings first; description and pros/cons are only
// requested once ratings succeeded, and then concurrently.
func (s *Service) Overview(ctx context.Context, query string) (*Overview, error) {
	return FetchOverview(ctx, s, query)
}

// FetchOverview runs the Overview sequence against any Lookup.
func FetchOverview(ctx context.Context, l Lookup, query string) (*Overview, error) {
	ratings, err := l.Ratings(ctx, query)
	if err != nil {
		return nil, err
	}

	out := &Overview{Ratings: ratings}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := l.Description(gctx, query)
		out.Description = d
		return err
	})
	g.Go(func() error {
		pc, err := l.ProsAndCons(gctx, query)
		out.ProsCons = pc
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// fetch returns the raw answer for op, from cache when possible. Structured
// operations yield JSON, the description yields plain text.
func (s *Service) fetch(ctx context.Context, op Operation, car string) ([]byte, bool, error) {
	start := time.Now()
	key := CacheKey(op, car)

	if s.cache != nil {
		b, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("cache read failed", "op", op, "error", err)
		}
		hit := err == nil && ok
		metrics.RecordCacheLookup(hit)
		if hit {
			s.logger.Debug("cache hit", "op", op, "car", car)
			return b, true, nil
		}
	}

	prompt, cfg := request(op, car)
	var (
		res     *provider.Result
		ignored error
	)
	call := func() error {
		r, err := s.gen.Generate(ctx, prompt, cfg)
		// An unparsable reply or the caller giving up says nothing about
		// upstream health.
		var perr *provider.ParseError
		if errors.As(err, &perr) || errors.Is(err, context.Canceled) {
			ignored = err
			return nil
		}
		res = r
		return err
	}

	var err error
	if s.breaker != nil {
		err = s.breaker.Execute(call)
		metrics.CircuitBreakerState.WithLabelValues("gemini").Set(float64(s.breaker.State()))
	} else {
		err = call()
	}
	if err == nil && ignored != nil {
		err = ignored
	}
	if err != nil {
		s.logger.Error("lookup failed", "op", op, "car", car, "error", err)
		return nil, false, fmt.Errorf("carinfo: %s: %w", op, err)
	}

	s.logger.Info("lookup complete",
		"op", op,
		"car", car,
		"attempts", res.Attempts,
		"duration", time.Since(start),
	)
	if cfg.Structured() {
		return res.Structured, false, nil
	}
	return []byte(res.Text), false, nil
}

func (s *Service) store(ctx context.Context, op Operation, car string, raw []byte) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, CacheKey(op, car), raw); err != nil {
		s.logger.Warn("cache write failed", "op", op, "error", err)
	}
}

// CacheKey derives the cache key for op and a normalized car query.
// Queries differing only in case share an entry.
func CacheKey(op Operation, car string) string {
	sum := sha256.Sum256([]byte(string(op) + "\x00" + strings.ToLower(car)))
	return "carscout:" + hex.EncodeToString(sum[:])
}

// normalizeQuery collapses whitespace and rejects blank queries.
func normalizeQuery(q string) (string, error) {
	car := strings.Join(strings.Fields(q), " ")
	if car == "" {
		return "", ErrEmptyQuery
	}
	return car, nil
}
