package interceptor

import (
	"context"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"iotkit-lending-backend/internal/config"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/security"
)

// GRPCMethod is the pseudo-method gRPC calls are registered under in the security config.
const GRPCMethod = "GRPC"

type AuthInterceptor struct {
	tokenManager security.TokenManager
}

func NewAuthInterceptor(tm security.TokenManager) *AuthInterceptor {
	return &AuthInterceptor{tokenManager: tm}
}

// Unary returns a server interceptor function to authenticate and authorize unary RPCs
func (i *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		if err := i.authorize(ctx, info.FullMethod); err != nil {
			logger.Warn("gRPC call rejected", "method", info.FullMethod, "error", err)
			return nil, err
		}
		resp, err := handler(ctx, req)
		logger.Debug("gRPC call", "method", info.FullMethod, "duration", time.Since(start), "code", status.Code(err))
		return resp, err
	}
}

// Stream covers server reflection and health watches.
func (i *AuthInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if err := i.authorize(ss.Context(), info.FullMethod); err != nil {
			logger.Warn("gRPC stream rejected", "method", info.FullMethod, "error", err)
			return err
		}
		return handler(srv, ss)
	}
}

func (i *AuthInterceptor) authorize(ctx context.Context, fullMethod string) error {
	level := config.GetSecurityLevel(GRPCMethod, fullMethod)
	if level == config.SecurityPublic {
		return nil
	}

	token, err := i.extractToken(ctx)
	if err != nil {
		return err
	}

	claims, err := i.tokenManager.ValidateAccessToken(token)
	if err != nil {
		return status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
	}

	if level == config.SecurityAdmin && !claims.IsAdmin() {
		return status.Error(codes.PermissionDenied, "admin role required")
	}
	return nil
}

func (i *AuthInterceptor) extractToken(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "metadata is not provided")
	}

	authHeader := md["authorization"]
	if len(authHeader) == 0 {
		return "", status.Error(codes.Unauthenticated, "authorization token is not provided")
	}

	token := authHeader[0]
	// Remove Bearer prefix if present
	if len(token) > 7 && strings.ToUpper(token[0:7]) == "BEARER " {
		token = token[7:]
	}

	return token, nil
}
