package grpc

import (
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"iotkit-lending-backend/internal/api/grpc/interceptor"
	"iotkit-lending-backend/internal/security"
)

// NewServer returns the operations gRPC server: health plus reflection.
func NewServer(tm security.TokenManager, reporter *HealthReporter) *grpc.Server {
	auth := interceptor.NewAuthInterceptor(tm)
	s := grpc.NewServer(
		grpc.UnaryInterceptor(auth.Unary()),
		grpc.StreamInterceptor(auth.Stream()),
	)
	healthpb.RegisterHealthServer(s, reporter.Server())
	reflection.Register(s)
	return s
}
