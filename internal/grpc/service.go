package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/mr1hm/floodsense/internal/livesync"
	"github.com/mr1hm/floodsense/internal/models"
)

const (
	ServiceName = "floodsense.v1.FloodService"

	listAlertsMethod    = "/" + ServiceName + "/ListAlerts"
	markAlertReadMethod = "/" + ServiceName + "/MarkAlertRead"
	streamAlertsMethod  = "/" + ServiceName + "/StreamAlerts"
)

type ListAlertsRequest struct {
	Type     string `json:"type,omitempty"`
	Read     *bool  `json:"read,omitempty"`
	District string `json:"district,omitempty"`
	Limit    int32  `json:"limit,omitempty"`
}

type ListAlertsResponse struct {
	Alerts      []models.Alert `json:"alerts"`
	UnreadCount int32          `json:"unreadCount"`
}

type MarkAlertReadRequest struct {
	ID string `json:"id"`
}

type MarkAlertReadResponse struct{}

type StreamAlertsRequest struct {
	Type string `json:"type,omitempty"`
}

type FloodServiceServer interface {
	ListAlerts(context.Context, *ListAlertsRequest) (*ListAlertsResponse, error)
	MarkAlertRead(context.Context, *MarkAlertReadRequest) (*MarkAlertReadResponse, error)
	StreamAlerts(*StreamAlertsRequest, grpc.ServerStreamingServer[livesync.Event]) error
}

func RegisterFloodServiceServer(s grpc.ServiceRegistrar, srv FloodServiceServer) {
	s.RegisterService(&FloodServiceDesc, srv)
}

var FloodServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FloodServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListAlerts", Handler: listAlertsHandler},
		{MethodName: "MarkAlertRead", Handler: markAlertReadHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamAlerts", Handler: streamAlertsHandler, ServerStreams: true},
	},
	Metadata: "floodsense/v1/flood.proto",
}

func listAlertsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListAlertsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FloodServiceServer).ListAlerts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listAlertsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FloodServiceServer).ListAlerts(ctx, req.(*ListAlertsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func markAlertReadHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(MarkAlertReadRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(FloodServiceServer).MarkAlertRead(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: markAlertReadMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(FloodServiceServer).MarkAlertRead(ctx, req.(*MarkAlertReadRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func streamAlertsHandler(srv any, stream grpc.ServerStream) error {
	in := new(StreamAlertsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(FloodServiceServer).StreamAlerts(in, &grpc.GenericServerStream[StreamAlertsRequest, livesync.Event]{ServerStream: stream})
}

// Client calls FloodService over the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(codecName)}, opts...)
}

func (c *Client) ListAlerts(ctx context.Context, in *ListAlertsRequest, opts ...grpc.CallOption) (*ListAlertsResponse, error) {
	out := new(ListAlertsResponse)
	if err := c.cc.Invoke(ctx, listAlertsMethod, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MarkAlertRead(ctx context.Context, in *MarkAlertReadRequest, opts ...grpc.CallOption) (*MarkAlertReadResponse, error) {
	out := new(MarkAlertReadResponse)
	if err := c.cc.Invoke(ctx, markAlertReadMethod, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) StreamAlerts(ctx context.Context, in *StreamAlertsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[livesync.Event], error) {
	stream, err := c.cc.NewStream(ctx, &FloodServiceDesc.Streams[0], streamAlertsMethod, callOptions(opts)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[StreamAlertsRequest, livesync.Event]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
