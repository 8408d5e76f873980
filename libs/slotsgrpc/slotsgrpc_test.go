package slotsgrpc

import (
	"context"
	"net"
	"testing"

	"github.com/md-rashed-zaman/freeslots/libs/slots"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestRequestStructRoundTrip(t *testing.T) {
	req := slots.SampleRequest()
	s, err := RequestToStruct(req)
	require.NoError(t, err)
	assert.Equal(t, float64(30), s.Fields["free_interval_duration"].GetNumberValue())

	got, err := RequestFromStruct(s)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestRequestFromStructRejectsWrongTypes(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"free_interval_duration": "thirty"})
	require.NoError(t, err)
	_, err = RequestFromStruct(s)
	require.Error(t, err)
}

func TestSpansFromEmptyStruct(t *testing.T) {
	spans, err := SpansFromStruct(nil)
	require.NoError(t, err)
	assert.NotNil(t, spans)
	assert.Empty(t, spans)
}

type computeServer struct{}

func (computeServer) Compute(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := RequestFromStruct(in)
	if err != nil {
		return nil, err
	}
	out, err := slots.Compute(req, slots.Options{})
	if err != nil {
		return nil, err
	}
	return SpansToStruct(out)
}

func TestClientOverBufconn(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterServer(srv, computeServer{})
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	got, err := NewClient(conn).Compute(context.Background(), slots.Request{
		Busy:      []slots.Span{{Start: "09:30", Stop: "10:00"}},
		StartTime: "09:00",
		StopTime:  "11:00",
		Duration:  30,
	})
	require.NoError(t, err)
	assert.Equal(t, []slots.Span{
		{Start: "09:00", Stop: "09:30"},
		{Start: "10:00", Stop: "10:30"},
		{Start: "10:30", Stop: "11:00"},
	}, got)
}
