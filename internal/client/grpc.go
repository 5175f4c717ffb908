package client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/alfredjeanlab/lensdesk/internal/model"
)

// accessCheckMethod is the full gRPC method name of the access check.
const accessCheckMethod = "/lensdesk.v1.AccessService/Check"

// AccessDecision is the answer of one access check.
type AccessDecision struct {
	State    string `json:"state"`
	Reason   string `json:"reason,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

// Authorized reports whether access was granted.
func (d *AccessDecision) Authorized() bool { return d.State == "authorized" }

// AccessClient talks to the gRPC access service.
type AccessClient struct {
	conn *grpc.ClientConn
}

// NewAccessClient connects to the given gRPC address and returns a client.
func NewAccessClient(addr string, opts ...grpc.DialOption) (*AccessClient, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &AccessClient{conn: conn}, nil
}

func (c *AccessClient) Close() error {
	return c.conn.Close()
}

// Check asks whether token may view a page requiring role. An empty role
// asks only whether the token names a live session.
func (c *AccessClient) Check(ctx context.Context, token string, role model.Role) (*AccessDecision, error) {
	if token != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	}
	in, err := structpb.NewStruct(map[string]any{"role": string(role)})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, accessCheckMethod, in, out); err != nil {
		return nil, fmt.Errorf("access check: %w", err)
	}
	return decisionFromStruct(out), nil
}

// Health reports the serving status of the access service.
func (c *AccessClient) Health(ctx context.Context) (string, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{
		Service: "lensdesk.v1.AccessService",
	})
	if err != nil {
		return "", fmt.Errorf("health check: %w", err)
	}
	return resp.GetStatus().String(), nil
}

func decisionFromStruct(s *structpb.Struct) *AccessDecision {
	f := s.GetFields()
	return &AccessDecision{
		State:    f["state"].GetStringValue(),
		Reason:   f["reason"].GetStringValue(),
		UserID:   f["user_id"].GetStringValue(),
		Redirect: f["redirect"].GetStringValue(),
	}
}
