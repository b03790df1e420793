package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abdhe/carscout/pkg/carinfo"
	"github.com/abdhe/carscout/pkg/metrics"
	"github.com/abdhe/carscout/pkg/provider"
	"github.com/abdhe/carscout/pkg/resilience"
)

// ErrorResponse is the JSON body of every failed HTTP request.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// HealthFunc reports whether a dependency is usable.
type HealthFunc func(ctx context.Context) error

type httpAPI struct {
	lookup carinfo.Lookup
	logger *slog.Logger
}

// NewHTTPHandler returns the HTTP API router. health, when non-nil, backs
// /healthz.
func NewHTTPHandler(lookup carinfo.Lookup, logger *slog.Logger, health HealthFunc) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	api := &httpAPI{lookup: lookup, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api/cars/{query}", func(r chi.Router) {
		r.Get("/ratings", api.ratings)
		r.Get("/description", api.description)
		r.Get("/pros-cons", api.prosCons)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			if err := health(r.Context()); err != nil {
				logger.Warn("health check failed", "error", err)
				respondJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}

func (a *httpAPI) ratings(w http.ResponseWriter, r *http.Request) {
	a.handle(w, r, "Ratings", func(ctx context.Context, q string) (any, error) {
		return a.lookup.Ratings(ctx, q)
	})
}

func (a *httpAPI) description(w http.ResponseWriter, r *http.Request) {
	a.handle(w, r, "Description", func(ctx context.Context, q string) (any, error) {
		d, err := a.lookup.Description(ctx, q)
		if err != nil {
			return nil, err
		}
		return map[string]string{"description": d}, nil
	})
}

func (a *httpAPI) prosCons(w http.ResponseWriter, r *http.Request) {
	a.handle(w, r, "ProsCons", func(ctx context.Context, q string) (any, error) {
		return a.lookup.ProsAndCons(ctx, q)
	})
}

func (a *httpAPI) handle(w http.ResponseWriter, r *http.Request, method string, fn func(context.Context, string) (any, error)) {
	start := time.Now()
	metrics.ActiveRequests.Inc()
	defer metrics.ActiveRequests.Dec()

	reqID := middleware.GetReqID(r.Context())
	// chi matches on RawPath when it is set, leaving the parameter escaped;
	// otherwise it is already decoded.
	query := chi.URLParam(r, "query")
	if r.URL.RawPath != "" {
		if q, err := url.PathUnescape(query); err == nil {
			query = q
		}
	}

	out, err := fn(r.Context(), query)
	code := httpStatus(err)
	metrics.RequestsTotal.WithLabelValues("http_"+method, strconv.Itoa(code)).Inc()
	metrics.RequestLatency.WithLabelValues("http_"+method, strconv.Itoa(code)).Observe(time.Since(start).Seconds())

	if err != nil {
		level := slog.LevelWarn
		if code >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		a.logger.Log(r.Context(), level, "API error response",
			"method", method,
			"request_id", reqID,
			"status_code", code,
			"error", err,
		)
		respondJSON(w, code, ErrorResponse{Error: carinfo.UserMessage(err), RequestID: reqID})
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func httpStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, carinfo.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, carinfo.ErrNoRatings):
		return http.StatusNotFound
	case errors.Is(err, provider.ErrRetriesExhausted), errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}
