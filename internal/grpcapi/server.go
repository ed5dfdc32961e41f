// Package grpcapi exposes the standard gRPC health service so gate machines
// and orchestrators can check the server before sending scans.
package grpcapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-check name for the scan path. The empty name
// reports overall server health.
const ServiceName = "gatepass.v1.Gate"

type Dependencies struct {
	Logger *slog.Logger
	Addr   string

	// Probe checks the storage backing the scan path. Nil means always healthy.
	Probe func(ctx context.Context) error
	// ProbeInterval defaults to 10s.
	ProbeInterval time.Duration
}

type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	logger     *slog.Logger
	addr       string
	probe      func(ctx context.Context) error
	interval   time.Duration
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.ProbeInterval <= 0 {
		d.ProbeInterval = 10 * time.Second
	}

	s := &Server{
		health:   health.NewServer(),
		logger:   d.Logger,
		addr:     d.Addr,
		probe:    d.Probe,
		interval: d.ProbeInterval,
	}
	s.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logUnary))

	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	err := s.grpcServer.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// RunProbe re-checks storage on every tick and flips the scan-path status
// until ctx is cancelled.
func (s *Server) RunProbe(ctx context.Context) {
	if s.probe == nil {
		return
	}
	s.check(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.check(ctx)
		}
	}
}

func (s *Server) check(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := s.probe(ctx); err != nil {
		s.logger.Warn("storage probe failed", "error", err)
		s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
}

// Shutdown marks every service NOT_SERVING, then stops gracefully. If ctx
// expires first, open streams are cut.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.grpcServer.Stop()
		return ctx.Err()
	}
}

func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.DebugContext(ctx, "grpc",
		"method", info.FullMethod,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", err)
	return resp, err
}
