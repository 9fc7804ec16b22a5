// Package health exposes the standard gRPC health protocol and a matching
// client probe.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// KnowledgeService is the health service name that tracks the knowledge
// service connection.
const KnowledgeService = "vish.knowledge"

// Reporter serves grpc.health.v1.Health.
type Reporter struct {
	server *grpc.Server
	health *grpchealth.Server
	logger *slog.Logger
}

// NewReporter creates a Reporter. The overall service is SERVING and the
// knowledge service starts NOT_SERVING until SetRemoteConnected is called.
func NewReporter(logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	hs := grpchealth.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(KnowledgeService, healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &Reporter{server: srv, health: hs, logger: logger}
}

// SetRemoteConnected updates the knowledge service status.
func (r *Reporter) SetRemoteConnected(connected bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if connected {
		status = healthpb.HealthCheckResponse_SERVING
	}
	r.health.SetServingStatus(KnowledgeService, status)
}

// Serve accepts connections on lis until Stop is called.
func (r *Reporter) Serve(lis net.Listener) error {
	r.logger.Info("gRPC health server listening", "addr", lis.Addr().String())
	if err := r.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("serve grpc health: %w", err)
	}
	return nil
}

// Stop marks every service NOT_SERVING and stops the server, waiting for
// in-flight checks up to ctx's deadline.
func (r *Reporter) Stop(ctx context.Context) {
	r.health.Shutdown()
	done := make(chan struct{})
	go func() {
		r.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		r.server.Stop()
		<-done
	}
}
