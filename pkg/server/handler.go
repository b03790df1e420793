package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/abdhe/carscout/pkg/carinfo"
	"github.com/abdhe/carscout/pkg/metrics"
	"github.com/abdhe/carscout/pkg/provider"
	"github.com/abdhe/carscout/pkg/resilience"
)

// requestIDHeader carries the request id in gRPC response headers.
const requestIDHeader = "x-request-id"

// Handler implements CarInfoServer on top of a carinfo.Lookup.
type Handler struct {
	lookup         carinfo.Lookup
	gen            carinfo.Generator
	requestTimeout time.Duration
	logger         *slog.Logger
}

var _ CarInfoServer = (*Handler)(nil)

// Config holds the handler configuration.
type Config struct {
	Lookup         carinfo.Lookup
	Generator      carinfo.Generator // optional, enables Generate
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// NewHandler creates a new CarInfo handler.
func NewHandler(cfg Config) *Handler {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		lookup:         cfg.Lookup,
		gen:            cfg.Generator,
		requestTimeout: cfg.RequestTimeout,
		logger:         cfg.Logger,
	}
}

// Ratings handles a ratings lookup.
func (h *Handler) Ratings(ctx context.Context, req *LookupRequest) (*RatingsResponse, error) {
	return serve(ctx, h, "Ratings", req.RequestID, func(ctx context.Context, id string) (*RatingsResponse, error) {
		r, err := h.lookup.Ratings(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		return &RatingsResponse{Ratings: r, RequestID: id}, nil
	})
}

// Description handles a description lookup.
func (h *Handler) Description(ctx context.Context, req *LookupRequest) (*DescriptionResponse, error) {
	return serve(ctx, h, "Description", req.RequestID, func(ctx context.Context, id string) (*DescriptionResponse, error) {
		d, err := h.lookup.Description(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		return &DescriptionResponse{Description: d, RequestID: id}, nil
	})
}

// ProsCons handles a pros/cons lookup.
func (h *Handler) ProsCons(ctx context.Context, req *LookupRequest) (*ProsConsResponse, error) {
	return serve(ctx, h, "ProsCons", req.RequestID, func(ctx context.Context, id string) (*ProsConsResponse, error) {
		pc, err := h.lookup.ProsAndCons(ctx, req.Query)
		if err != nil {
			return nil, err
		}
		return &ProsConsResponse{ProsCons: pc, RequestID: id}, nil
	})
}

// Generate passes a raw prompt to the generation client.
func (h *Handler) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if h.gen == nil {
		return nil, status.Error(codes.Unimplemented, "raw generation is disabled")
	}
	return serve(ctx, h, "Generate", req.RequestID, func(ctx context.Context, id string) (*GenerateResponse, error) {
		res, err := h.gen.Generate(ctx, req.Prompt, req.Config)
		if err != nil {
			return nil, err
		}
		return &GenerateResponse{
			Text:         res.Text,
			Structured:   res.Structured,
			Attempts:     res.Attempts,
			PromptTokens: res.PromptTokens,
			OutputTokens: res.OutputTokens,
			RequestID:    id,
		}, nil
	})
}

// serve applies the request timeout, request id, logging and metrics shared
// by every method, and converts errors to gRPC statuses.
func serve[Resp any](ctx context.Context, h *Handler, method, requestID string, fn func(context.Context, string) (*Resp, error)) (*Resp, error) {
	start := time.Now()
	metrics.ActiveRequests.Inc()
	defer metrics.ActiveRequests.Dec()

	if requestID == "" {
		requestID = uuid.NewString()
	}
	_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, requestID))

	ctx, cancel := context.WithTimeout(ctx, h.requestTimeout)
	defer cancel()

	resp, err := fn(ctx, requestID)
	st := toStatus(err)
	code := st.Code()

	metrics.RequestsTotal.WithLabelValues(method, code.String()).Inc()
	metrics.RequestLatency.WithLabelValues(method, code.String()).Observe(time.Since(start).Seconds())

	if err != nil {
		level := slog.LevelWarn
		if code == codes.Internal {
			level = slog.LevelError
		}
		h.logger.Log(ctx, level, "request failed",
			"method", method,
			"request_id", requestID,
			"code", code.String(),
			"error", err,
		)
		return nil, st.Err()
	}

	h.logger.Info("request served",
		"method", method,
		"request_id", requestID,
		"duration", time.Since(start),
	)
	return resp, nil
}

// toStatus maps domain errors to gRPC statuses carrying the user message.
func toStatus(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	msg := carinfo.UserMessage(err)

	switch {
	case errors.Is(err, carinfo.ErrEmptyQuery), errors.Is(err, provider.ErrEmptyPrompt):
		return status.New(codes.InvalidArgument, msg)
	case errors.Is(err, carinfo.ErrNoRatings):
		return status.New(codes.NotFound, msg)
	case errors.Is(err, provider.ErrRetriesExhausted), errors.Is(err, resilience.ErrCircuitOpen):
		return status.New(codes.Unavailable, msg)
	case errors.Is(err, context.DeadlineExceeded):
		return status.New(codes.DeadlineExceeded, "The request took too long.")
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, "The request was cancelled.")
	default:
		return status.New(codes.Internal, msg)
	}
}
