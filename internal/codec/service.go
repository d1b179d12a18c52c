package codec

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service-desc
// ServiceName is the fully qualified acquisition service name.
const ServiceName = "neuroadapt.v1.Acquisition"

const readWindowMethod = "/" + ServiceName + "/ReadWindow"

// AcquisitionClient is the client side of the acquisition service.
//
// ReadWindow request fields: session_id (string), length (number).
// Response fields: samples (list of numbers), sequence (number).
type AcquisitionClient interface {
	ReadWindow(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

// AcquisitionServer is the server side of the acquisition service.
type AcquisitionServer interface {
	ReadWindow(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type acquisitionClient struct {
	cc grpc.ClientConnInterface
}

// NewAcquisitionClient binds the acquisition service to a connection.
func NewAcquisitionClient(cc grpc.ClientConnInterface) AcquisitionClient {
	return &acquisitionClient{cc: cc}
}

func (c *acquisitionClient) ReadWindow(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, readWindowMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func readWindowHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AcquisitionServer).ReadWindow(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: readWindowMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AcquisitionServer).ReadWindow(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// AcquisitionServiceDesc describes the acquisition service for registration.
var AcquisitionServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AcquisitionServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ReadWindow", Handler: readWindowHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "neuroadapt/v1/acquisition.proto",
}

// RegisterAcquisitionServer attaches an implementation to a gRPC server.
func RegisterAcquisitionServer(s grpc.ServiceRegistrar, srv AcquisitionServer) {
	s.RegisterService(&AcquisitionServiceDesc, srv)
}

// #endregion service-desc
