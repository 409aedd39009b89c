package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/golang/protobuf/ptypes/empty"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "twopc.Explorer"

// The gRPC service of the explorer.
//
// The messages are protobuf well-known types. Responses are the JSON views of
// the HTTP API carried in a Struct.
type ExplorerServer interface {
	// Returns {"states": [StateView]}
	Init(context.Context, *empty.Empty) (*structpb.Struct, error)
	// Takes a decimal fingerprint and returns a StateView
	Successors(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	// Returns a checker.Status
	Status(context.Context, *empty.Empty) (*structpb.Struct, error)
}

func RegisterExplorerServer(s grpc.ServiceRegistrar, srv ExplorerServer) {
	s.RegisterService(&explorerServiceDesc, srv)
}

var explorerServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*ExplorerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Init",
			Handler:    initHandler,
		},
		{
			MethodName: "Successors",
			Handler:    successorsHandler,
		},
		{
			MethodName: "Status",
			Handler:    statusHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "twopc/explorer.proto",
}

var (
	initHandler = unaryHandler("Init", func(srv ExplorerServer, ctx context.Context, in *empty.Empty) (*structpb.Struct, error) {
		return srv.Init(ctx, in)
	})
	successorsHandler = unaryHandler("Successors", func(srv ExplorerServer, ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
		return srv.Successors(ctx, in)
	})
	statusHandler = unaryHandler("Status", func(srv ExplorerServer, ctx context.Context, in *empty.Empty) (*structpb.Struct, error) {
		return srv.Status(ctx, in)
	})
)

// Decodes the request into a new Req and calls the method through the interceptor, if any.
func unaryHandler[Req any](method string, call func(ExplorerServer, context.Context, *Req) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + serviceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ExplorerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ExplorerServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

type grpcServer[S State, A fmt.Stringer] struct {
	e *Explorer[S, A]
}

func (gs grpcServer[S, A]) Init(ctx context.Context, _ *empty.Empty) (*structpb.Struct, error) {
	return toStruct(map[string]any{"states": gs.e.Init()})
}

func (gs grpcServer[S, A]) Successors(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	fp, err := strconv.ParseUint(in.GetValue(), 10, 64)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid fingerprint %q", in.GetValue())
	}
	view, err := gs.e.Successors(fp)
	if errors.Is(err, ErrUnknownState) {
		return nil, status.Error(codes.NotFound, err.Error())
	}
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return toStruct(view)
}

func (gs grpcServer[S, A]) Status(ctx context.Context, _ *empty.Empty) (*structpb.Struct, error) {
	return toStruct(gs.e.Status())
}

// Create a gRPC server serving the explorer.
func (e *Explorer[S, A]) GRPCServer(opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(append(opts, grpc.UnaryInterceptor(e.intercept))...)
	RegisterExplorerServer(s, grpcServer[S, A]{e: e})
	return s
}

// Records the status and latency of every call and logs failed calls.
func (e *Explorer[S, A]) intercept(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)
	if err != nil && code != codes.NotFound {
		e.logger.Error("grpc call failed", "method", info.FullMethod, "error", err)
	}
	e.metrics.Observe(info.FullMethod, grpcToHTTP(code), start)
	return resp, err
}

func grpcToHTTP(code codes.Code) int {
	switch code {
	case codes.OK:
		return 200
	case codes.InvalidArgument:
		return 400
	case codes.NotFound:
		return 404
	}
	return 500
}

// Serve the gRPC server on addr until the context is canceled.
func ServeGRPC(ctx context.Context, addr string, s *grpc.Server) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, s.GracefulStop)
	defer stop()
	return s.Serve(lis)
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
