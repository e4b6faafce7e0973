package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "shelters.v1.ShelterService"

	listSheltersMethod  = "/" + ServiceName + "/ListShelters"
	watchSheltersMethod = "/" + ServiceName + "/WatchShelters"
)

// ShelterServiceServer is the server API for shelters.v1.ShelterService.
// Requests and responses are google.protobuf.Struct messages.
type ShelterServiceServer interface {
	ListShelters(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WatchShelters(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

var shelterServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ShelterServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListShelters",
			Handler:    listSheltersHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchShelters",
			Handler:       watchSheltersHandler,
			ServerStreams: true,
		},
	},
	Metadata: "shelters/v1/shelters.proto",
}

func RegisterShelterServiceServer(s grpc.ServiceRegistrar, srv ShelterServiceServer) {
	s.RegisterService(&shelterServiceDesc, srv)
}

func listSheltersHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShelterServiceServer).ListShelters(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: listSheltersMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ShelterServiceServer).ListShelters(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func watchSheltersHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ShelterServiceServer).WatchShelters(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// Client calls shelters.v1.ShelterService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) ListShelters(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listSheltersMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) WatchShelters(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &shelterServiceDesc.Streams[0], watchSheltersMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
