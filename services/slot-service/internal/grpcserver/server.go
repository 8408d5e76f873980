package grpcserver

import (
	"context"
	"errors"
	"log/slog"

	"github.com/md-rashed-zaman/freeslots/libs/grpcx"
	"github.com/md-rashed-zaman/freeslots/libs/slots"
	"github.com/md-rashed-zaman/freeslots/libs/slotsgrpc"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

type Computer interface {
	Compute(ctx context.Context, req slots.Request) ([]slots.Span, error)
}

type server struct {
	computer Computer
	logger   *slog.Logger
}

// NewServer builds a gRPC server with tracing, request-id and access-log
// interceptors, and the FreeSlots service registered.
func NewServer(logger *slog.Logger, computer Computer, extra ...grpc.ServerOption) *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcx.UnaryServerRequestIDInterceptor(),
			grpcx.UnaryServerLogInterceptor(logger),
		),
	}
	opts = append(opts, extra...)
	s := grpc.NewServer(opts...)
	Register(s, logger, computer)
	return s
}

func Register(s grpc.ServiceRegistrar, logger *slog.Logger, computer Computer) {
	slotsgrpc.RegisterServer(s, &server{computer: computer, logger: logger})
}

func (s *server) Compute(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := slotsgrpc.RequestFromStruct(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	result, err := s.computer.Compute(ctx, req)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := slotsgrpc.SpansToStruct(result)
	if err != nil {
		s.logger.Error("encode grpc response failed", "err", err)
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, slots.ErrFormat), errors.Is(err, slots.ErrPrecondition):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "failed to compute free slots")
	}
}
