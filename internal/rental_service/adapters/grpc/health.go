package grpc

import (
	"errors"
	"log/slog"
	"net"
	"sync/atomic"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// PollerService is the health service name that tracks the update poller.
const PollerService = "rental_bot.UpdatePoller"

// HealthServer exposes the standard grpc.health.v1 service. The overall
// status ("") follows the process lifecycle, PollerService follows the
// result of the latest getUpdates call.
type HealthServer struct {
	server  *grpc.Server
	health  *health.Server
	logger  *slog.Logger
	serving atomic.Bool
}

func NewHealthServer(logger *slog.Logger) *HealthServer {
	s := &HealthServer{
		server: grpc.NewServer(),
		health: health.NewServer(),
		logger: logger.With("component", "grpc_health"),
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	reflection.Register(s.server)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(PollerService, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// SetServing updates the poller status, logging only on changes.
func (s *HealthServer) SetServing(serving bool) {
	if s.serving.Swap(serving) == serving {
		return
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(PollerService, status)
	s.logger.Info("Poller health changed", "status", status.String())
}

// Serve blocks until the listener fails or Stop is called. A Stop that
// lands before Serve is not an error.
func (s *HealthServer) Serve(lis net.Listener) error {
	s.logger.Info("gRPC health server listening", "addr", lis.Addr().String())
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

// Stop marks every service NOT_SERVING and stops gracefully.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
