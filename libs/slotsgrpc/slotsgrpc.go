// Package slotsgrpc defines the freeslots.v1.FreeSlots gRPC contract.
// Messages are google.protobuf.Struct values carrying the same field names
// as the HTTP JSON body, so no generated stubs are needed.
package slotsgrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/md-rashed-zaman/freeslots/libs/slots"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName   = "freeslots.v1.FreeSlots"
	ComputeMethod = "/" + ServiceName + "/Compute"
)

type FreeSlotsServer interface {
	Compute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func computeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FreeSlotsServer).Compute(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ComputeMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FreeSlotsServer).Compute(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FreeSlotsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Compute", Handler: computeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "freeslots/v1/freeslots.proto",
}

func RegisterServer(s grpc.ServiceRegistrar, srv FreeSlotsServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Compute sends a request and decodes the returned chunk list.
func (c *Client) Compute(ctx context.Context, req slots.Request, opts ...grpc.CallOption) ([]slots.Span, error) {
	in, err := RequestToStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ComputeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return SpansFromStruct(out)
}

func RequestToStruct(req slots.Request) (*structpb.Struct, error) {
	return toStruct(req)
}

func RequestFromStruct(s *structpb.Struct) (slots.Request, error) {
	var req slots.Request
	if err := fromStruct(s, &req); err != nil {
		return req, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

type spansMessage struct {
	Slots []slots.Span `json:"slots"`
}

func SpansToStruct(spans []slots.Span) (*structpb.Struct, error) {
	if spans == nil {
		spans = []slots.Span{}
	}
	return toStruct(spansMessage{Slots: spans})
}

func SpansFromStruct(s *structpb.Struct) ([]slots.Span, error) {
	var msg spansMessage
	if err := fromStruct(s, &msg); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if msg.Slots == nil {
		msg.Slots = []slots.Span{}
	}
	return msg.Slots, nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, err
	}
	return s, nil
}

// fromStruct round-trips through JSON; numbers come back as float64 in
// the Struct and decode into int fields as long as they are whole.
func fromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = new(structpb.Struct)
	}
	raw, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
