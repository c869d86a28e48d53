package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"iotkit-lending-backend/internal/logger"
)

// ServiceName is the health service name reported next to the overall "" status.
const ServiceName = "iotkit.lending.Admin"

// HealthReporter mirrors a dependency check into the gRPC health service.
type HealthReporter struct {
	server   *health.Server
	check    func(ctx context.Context) error
	interval time.Duration
}

func NewHealthReporter(check func(ctx context.Context) error, interval time.Duration) *HealthReporter {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &HealthReporter{server: health.NewServer(), check: check, interval: interval}
}

func (h *HealthReporter) Server() *health.Server {
	return h.server
}

// Probe runs the check once and publishes the result.
func (h *HealthReporter) Probe(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if h.check != nil {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := h.check(probeCtx); err != nil {
			logger.Warn("Health probe failed", "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.server.SetServingStatus("", st)
	h.server.SetServingStatus(ServiceName, st)
	return st
}

// Run probes until ctx is done, then reports NOT_SERVING for good.
func (h *HealthReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.Probe(ctx)
		}
	}
}
