package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/iDecide-Org/iDecide-API-sub000/pkg/log"
)

// ServiceName is the name reported through the health service.
const ServiceName = "idecide.chat.v1.ChatService"

// Probe reports whether a dependency is usable.
type Probe func(ctx context.Context) error

// Server is the chat gRPC listener. It exposes the standard health service,
// driven by a periodic probe, and server reflection.
type Server struct {
	srv    *grpc.Server
	health *health.Server
	probe  Probe
	every  time.Duration
	stop   chan struct{}
}

func NewServer(logger zerolog.Logger, probe Probe, every time.Duration) *Server {
	if every <= 0 {
		every = 10 * time.Second
	}

	s := grpc.NewServer(
		grpc.UnaryInterceptor(log.UnaryServerInterceptor(logger)),
		grpc.StreamInterceptor(log.StreamServerInterceptor(logger)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	return &Server{
		srv:    s,
		health: hs,
		probe:  probe,
		every:  every,
		stop:   make(chan struct{}),
	}
}

// Check runs the probe once and publishes the result.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if s.probe != nil {
		if err := s.probe(ctx); err != nil {
			l := log.L()
			l.Warn().Err(err).Msg("health probe failed")
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Serve accepts connections on lis until Stop. It blocks.
func (s *Server) Serve(lis net.Listener) error {
	s.Check(context.Background())
	go s.watch()
	return s.srv.Serve(lis)
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	go func() {
		l := log.L()
		l.Info().Str("address", addr).Msg("chat grpc server listening")
		if err := s.Serve(lis); err != nil {
			l.Error().Err(err).Msg("grpc server error")
		}
	}()
	return nil
}

func (s *Server) watch() {
	ticker := time.NewTicker(s.every)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), s.every/2)
			s.Check(ctx)
			cancel()
		}
	}
}

// Stop marks the service as not serving and drains in-flight calls.
func (s *Server) Stop() {
	select {
	case <-s.stop:
		return
	default:
		close(s.stop)
	}
	s.health.Shutdown()
	s.srv.GracefulStop()
}
