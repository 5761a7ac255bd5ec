package grpc

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported for the storefront as a whole.
const ServiceName = "storefront"

// Check probes one dependency.
type Check func(ctx context.Context) error

// NewServer returns a gRPC server exposing the standard health service and
// reflection, instrumented with OpenTelemetry.
func NewServer() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return srv, hs
}

// HealthReporter keeps the health status of each dependency and of the
// storefront current. The storefront is serving only while every check passes.
type HealthReporter struct {
	health   *health.Server
	checks   map[string]Check
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func NewHealthReporter(hs *health.Server, checks map[string]Check, logger *slog.Logger) *HealthReporter {
	return &HealthReporter{
		health:   hs,
		checks:   checks,
		interval: 10 * time.Second,
		timeout:  2 * time.Second,
		logger:   logger,
	}
}

// Run probes immediately and then on every tick until ctx is done.
func (r *HealthReporter) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			r.health.Shutdown()
			return
		case <-ticker.C:
			r.probe(ctx)
		}
	}
}

func (r *HealthReporter) probe(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING
	for name, check := range r.checks {
		status := healthpb.HealthCheckResponse_SERVING
		checkCtx, cancel := context.WithTimeout(ctx, r.timeout)
		if err := check(checkCtx); err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = status
			r.logger.WarnContext(ctx, "dependency unhealthy", "dependency", name, "error", err)
		}
		cancel()
		r.health.SetServingStatus(name, status)
	}
	r.health.SetServingStatus(ServiceName, overall)
	r.health.SetServingStatus("", overall)
}
