package server

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/abdhe/carscout/pkg/carinfo"
	"github.com/abdhe/carscout/pkg/provider"
	"github.com/abdhe/carscout/pkg/resilience"
)

// Client is a typed client for a remote CarInfo service. It satisfies
// carinfo.Lookup and carinfo.Generator.
type Client struct {
	conn *grpc.ClientConn
}

var (
	_ carinfo.Lookup    = (*Client)(nil)
	_ carinfo.Generator = (*Client)(nil)
)

// Dial connects to addr without TLS.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("server: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.conn.Invoke(ctx, method, in, out, grpc.CallContentSubtype(codecName))
}

// Ratings implements carinfo.Lookup.
func (c *Client) Ratings(ctx context.Context, query string) (*carinfo.CarRatings, error) {
	var out RatingsResponse
	if err := c.invoke(ctx, MethodRatings, &LookupRequest{Query: query}, &out); err != nil {
		return nil, fromStatus(err, carinfo.ErrEmptyQuery)
	}
	return out.Ratings, nil
}

// Description implements carinfo.Lookup.
func (c *Client) Description(ctx context.Context, query string) (string, error) {
	var out DescriptionResponse
	if err := c.invoke(ctx, MethodDescription, &LookupRequest{Query: query}, &out); err != nil {
		return "", fromStatus(err, carinfo.ErrEmptyQuery)
	}
	return out.Description, nil
}

// ProsAndCons implements carinfo.Lookup.
func (c *Client) ProsAndCons(ctx context.Context, query string) (*carinfo.ProsCons, error) {
	var out ProsConsResponse
	if err := c.invoke(ctx, MethodProsCons, &LookupRequest{Query: query}, &out); err != nil {
		return nil, fromStatus(err, carinfo.ErrEmptyQuery)
	}
	return out.ProsCons, nil
}

// Generate implements carinfo.Generator against the remote service.
func (c *Client) Generate(ctx context.Context, prompt string, cfg *provider.GenerationConfig) (*provider.Result, error) {
	var out GenerateResponse
	if err := c.invoke(ctx, MethodGenerate, &GenerateRequest{Prompt: prompt, Config: cfg}, &out); err != nil {
		return nil, fromStatus(err, provider.ErrEmptyPrompt)
	}
	return &provider.Result{
		Text:         out.Text,
		Structured:   out.Structured,
		Attempts:     out.Attempts,
		PromptTokens: out.PromptTokens,
		OutputTokens: out.OutputTokens,
	}, nil
}

// RemoteError is a failed call to the remote service. Its message is the
// server's user-facing text.
type RemoteError struct {
	Code    codes.Code
	Message string
	target  error
}

func (e *RemoteError) Error() string { return e.Message }

// Unwrap returns the local sentinel equivalent to Code, if any.
func (e *RemoteError) Unwrap() error { return e.target }

// fromStatus converts a gRPC status error back into domain errors so that
// errors.Is and carinfo.UserMessage behave the same locally and remotely.
func fromStatus(err error, invalidArgument error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	re := &RemoteError{Code: st.Code(), Message: st.Message()}
	switch st.Code() {
	case codes.InvalidArgument:
		re.target = invalidArgument
	case codes.NotFound:
		re.target = carinfo.ErrNoRatings
	case codes.Unavailable:
		// toStatus sends the user message, which tells the two causes apart.
		switch st.Message() {
		case carinfo.MsgExhausted:
			re.target = provider.ErrRetriesExhausted
		case carinfo.MsgUnavailable:
			re.target = resilience.ErrCircuitOpen
		}
	case codes.DeadlineExceeded:
		re.target = context.DeadlineExceeded
	case codes.Canceled:
		re.target = context.Canceled
	}
	return re
}
