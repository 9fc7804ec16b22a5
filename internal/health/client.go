package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// Check dials addr and asks for service's status. An empty service asks for
// the server as a whole.
func Check(ctx context.Context, addr, service string) (*healthpb.HealthCheckResponse, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    2 * time.Minute,
			Timeout: 10 * time.Second,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("dial health server at %s: %w", addr, err)
	}
	defer func() { _ = conn.Close() }()

	if err := waitForReady(ctx, conn); err != nil {
		return nil, fmt.Errorf("health server at %s not ready: %w", addr, err)
	}

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	return resp, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}
