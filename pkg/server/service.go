// Package server exposes car lookups over gRPC and HTTP.
package server

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"

	"github.com/abdhe/carscout/pkg/carinfo"
	"github.com/abdhe/carscout/pkg/provider"
)

const serviceName = "carscout.v1.CarInfo"

// Full method names.
const (
	MethodRatings     = "/" + serviceName + "/Ratings"
	MethodDescription = "/" + serviceName + "/Description"
	MethodProsCons    = "/" + serviceName + "/ProsCons"
	MethodGenerate    = "/" + serviceName + "/Generate"
)

// LookupRequest asks about one car model.
type LookupRequest struct {
	Query     string `json:"query"`
	RequestID string `json:"requestId,omitempty"`
}

type RatingsResponse struct {
	Ratings   *carinfo.CarRatings `json:"ratings"`
	RequestID string              `json:"requestId"`
}

type DescriptionResponse struct {
	Description string `json:"description"`
	RequestID   string `json:"requestId"`
}

type ProsConsResponse struct {
	ProsCons  *carinfo.ProsCons `json:"prosCons"`
	RequestID string            `json:"requestId"`
}

// GenerateRequest is a raw prompt passed straight to the generation client.
type GenerateRequest struct {
	Prompt    string                     `json:"prompt"`
	Config    *provider.GenerationConfig `json:"config,omitempty"`
	RequestID string                     `json:"requestId,omitempty"`
}

type GenerateResponse struct {
	Text         string          `json:"text"`
	Structured   json.RawMessage `json:"structured,omitempty"`
	Attempts     int             `json:"attempts"`
	PromptTokens int32           `json:"promptTokens"`
	OutputTokens int32           `json:"outputTokens"`
	RequestID    string          `json:"requestId"`
}

// CarInfoServer is the server API for the CarInfo service.
type CarInfoServer interface {
	Ratings(context.Context, *LookupRequest) (*RatingsResponse, error)
	Description(context.Context, *LookupRequest) (*DescriptionResponse, error)
	ProsCons(context.Context, *LookupRequest) (*ProsConsResponse, error)
	Generate(context.Context, *GenerateRequest) (*GenerateResponse, error)
}

// CarInfoServiceDesc describes the CarInfo service for grpc.Server.
var CarInfoServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CarInfoServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Ratings",
			Handler: unaryHandler(MethodRatings, func(s CarInfoServer, ctx context.Context, req *LookupRequest) (*RatingsResponse, error) {
				return s.Ratings(ctx, req)
			}),
		},
		{
			MethodName: "Description",
			Handler: unaryHandler(MethodDescription, func(s CarInfoServer, ctx context.Context, req *LookupRequest) (*DescriptionResponse, error) {
				return s.Description(ctx, req)
			}),
		},
		{
			MethodName: "ProsCons",
			Handler: unaryHandler(MethodProsCons, func(s CarInfoServer, ctx context.Context, req *LookupRequest) (*ProsConsResponse, error) {
				return s.ProsCons(ctx, req)
			}),
		},
		{
			MethodName: "Generate",
			Handler: unaryHandler(MethodGenerate, func(s CarInfoServer, ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
				return s.Generate(ctx, req)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "carscout/v1/carinfo",
}

// RegisterCarInfoServer registers srv on s.
func RegisterCarInfoServer(s grpc.ServiceRegistrar, srv CarInfoServer) {
	s.RegisterService(&CarInfoServiceDesc, srv)
}

func unaryHandler[Req, Resp any](fullMethod string, call func(CarInfoServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CarInfoServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CarInfoServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
