package server

import (
	"context"
	"reflect"

	"dapi-grpc/message"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// PlatformServer is implemented by anything that answers Platform calls.
type PlatformServer interface {
	ApplyStateTransition(ctx context.Context, req *message.ApplyStateTransitionRequest) (*message.ApplyStateTransitionResponse, error)
	GetIdentity(ctx context.Context, req *message.GetIdentityRequest) (*message.GetIdentityResponse, error)
	GetDataContract(ctx context.Context, req *message.GetDataContractRequest) (*message.GetDataContractResponse, error)
	GetDocuments(ctx context.Context, req *message.GetDocumentsRequest) (*message.GetDocumentsResponse, error)
	GetIdentityByFirstPublicKey(ctx context.Context, req *message.GetIdentityByFirstPublicKeyRequest) (*message.GetIdentityByFirstPublicKeyResponse, error)
	GetIdentityIdByFirstPublicKey(ctx context.Context, req *message.GetIdentityIdByFirstPublicKeyRequest) (*message.GetIdentityIdByFirstPublicKeyResponse, error)
}

// ServiceDesc describes the Platform service for grpc.Server.RegisterService.
// Handlers expect the server to run with codec.PassThroughCodec forced.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: message.ServiceName,
	HandlerType: (*PlatformServer)(nil),
	Methods: []grpc.MethodDesc{
		methodDesc("applyStateTransition", PlatformServer.ApplyStateTransition),
		methodDesc("getIdentity", PlatformServer.GetIdentity),
		methodDesc("getDataContract", PlatformServer.GetDataContract),
		methodDesc("getDocuments", PlatformServer.GetDocuments),
		methodDesc("getIdentityByFirstPublicKey", PlatformServer.GetIdentityByFirstPublicKey),
		methodDesc("getIdentityIdByFirstPublicKey", PlatformServer.GetIdentityIdByFirstPublicKey),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "platform.proto",
}

// methodDesc decodes the wire request, runs the unary interceptors and the handler on
// structured messages, then encodes the reply back to wire bytes.
func methodDesc[Req, Resp message.WireMessage](name string, call func(PlatformServer, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	pair := message.Pairs[name]
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			var body []byte
			if err := dec(&body); err != nil {
				return nil, err
			}
			req := pair.NewRequest()
			if err := req.UnmarshalWire(body); err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "malformed %s request: %v", name, err)
			}

			handle := func(ctx context.Context, req any) (any, error) {
				return call(srv.(PlatformServer), ctx, req.(Req))
			}

			var (
				out any
				err error
			)
			if interceptor == nil {
				out, err = handle(ctx, req)
			} else {
				out, err = interceptor(ctx, req, &grpc.UnaryServerInfo{Server: srv, FullMethod: pair.Method}, handle)
			}
			if err != nil {
				return nil, err
			}
			return encodeReply(name, out)
		},
	}
}

func encodeReply(name string, out any) (*[]byte, error) {
	reply, ok := out.(message.WireMessage)
	if !ok || reflect.ValueOf(reply).IsNil() {
		return nil, status.Errorf(codes.Internal, "%s handler returned no response", name)
	}
	b, err := reply.MarshalWire()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode %s response: %v", name, err)
	}
	return &b, nil
}
