package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewGRPCServer creates a gRPC server with standard interceptors, registers
// the AccessService, the health service and reflection, and returns the
// server ready to serve. The health server is returned so callers can flip
// it to NOT_SERVING during shutdown.
func NewGRPCServer(s *Server) (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor,
			LoggingInterceptor,
			TokenInterceptor,
		),
	)

	RegisterAccessServer(srv, &accessService{srv: s})

	hs := health.NewServer()
	hs.SetServingStatus(AccessServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	reflection.Register(srv)

	return srv, hs
}
