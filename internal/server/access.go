package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/lensdesk/internal/gate"
	"github.com/alfredjeanlab/lensdesk/internal/model"
)

// gRPC names of the access service.
const (
	AccessServiceName = "lensdesk.v1.AccessService"
	AccessCheckMethod = "/" + AccessServiceName + "/Check"
)

// AccessServer answers access checks for other services. Requests and
// responses are google.protobuf.Struct messages:
//
//	request:  {"role": "admin"|"customer"|"", "token": "<optional>"}
//	response: {"state": "...", "reason": "...", "user_id": "...", "redirect": "..."}
//
// The token comes from the "authorization" metadata when present.
type AccessServer interface {
	Check(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var accessServiceDesc = grpc.ServiceDesc{
	ServiceName: AccessServiceName,
	HandlerType: (*AccessServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Check", Handler: accessCheckHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lensdesk/v1/access.proto",
}

func accessCheckHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AccessServer).Check(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AccessCheckMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AccessServer).Check(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterAccessServer registers srv on s.
func RegisterAccessServer(s grpc.ServiceRegistrar, srv AccessServer) {
	s.RegisterService(&accessServiceDesc, srv)
}

// accessService runs one gate to resolution per call.
type accessService struct {
	srv *Server
}

func (a *accessService) Check(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.GetFields()

	var role model.Role
	if v := fields["role"].GetStringValue(); v != "" {
		r, err := model.ParseRole(v)
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		role = r
	}
	token := tokenFrom(ctx)
	if token == "" {
		token = fields["token"].GetStringValue()
	}

	d := a.srv.Check(ctx, token, role)
	out := map[string]any{
		"state":   d.State.String(),
		"reason":  string(d.Reason),
		"user_id": d.UserID,
	}
	if d.State != gate.Authorized {
		out["redirect"] = redirectFor(role)
	}
	resp, err := structpb.NewStruct(out)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return resp, nil
}
