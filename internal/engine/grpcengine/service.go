package grpcengine

import (
	"context"

	"google.golang.org/grpc"

	"modelgate/internal/engine"
)

const (
	ServiceName = "modelgate.engine.v1.Engine"

	loadMethod     = "/" + ServiceName + "/Load"
	generateMethod = "/" + ServiceName + "/Generate"
)

var generateStreamDesc = grpc.StreamDesc{
	StreamName:    "Generate",
	ServerStreams: true,
}

// Server is the engine side of the service.
type Server interface {
	Load(ctx context.Context, args *engine.Args) (*engine.ModelInfo, error)
	Generate(req *engine.GenerateRequest, stream GenerateServer) error
}

// GenerateServer sends cumulative outputs back to the gateway.
type GenerateServer interface {
	Send(out *engine.Output) error
	grpc.ServerStream
}

// ServiceDesc describes the engine service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Server)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Load",
			Handler:    loadHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Generate",
			Handler:       generateHandler,
			ServerStreams: true,
		},
	},
}

// NewServer returns a grpc.Server that speaks the JSON codec with srv
// registered on it.
func NewServer(srv Server, opts ...grpc.ServerOption) *grpc.Server {
	serverOpts := append([]grpc.ServerOption{grpc.ForceServerCodec(Codec{})}, opts...)
	s := grpc.NewServer(serverOpts...)
	s.RegisterService(&ServiceDesc, srv)
	return s
}

func loadHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(engine.Args)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Server).Load(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: loadMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(Server).Load(ctx, req.(*engine.Args))
	}
	return interceptor(ctx, in, info, handler)
}

func generateHandler(srv any, stream grpc.ServerStream) error {
	in := new(engine.GenerateRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(Server).Generate(in, &generateServer{stream})
}

type generateServer struct {
	grpc.ServerStream
}

func (s *generateServer) Send(out *engine.Output) error {
	return s.ServerStream.SendMsg(out)
}
