package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/gulon/chat-delivery-service/config"
	"github.com/gulon/chat-delivery-service/infra/server/grpc/interceptors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/fx"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ReadinessProbe reports whether the instance may advertise itself as serving.
type ReadinessProbe interface {
	Ready() bool
}

type Server struct {
	*grpc.Server
	health *health.Server
	addr   string
	logger *slog.Logger
	ln     net.Listener
	stop   chan struct{}
}

func NewServer(cfg *config.Config, logger *slog.Logger) *Server {
	l := logger.With("component", "grpc")

	opts := append(interceptors.ServerOptions(l), grpc.StatsHandler(otelgrpc.NewServerHandler()))
	s := &Server{
		Server: grpc.NewServer(opts...),
		health: health.NewServer(),
		addr:   cfg.GRPC.Addr,
		logger: l,
		stop:   make(chan struct{}),
	}

	healthpb.RegisterHealthServer(s.Server, s.health)
	reflection.Register(s.Server)
	s.SetServing(false)
	return s
}

// SetServing flips the overall health status.
func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
}

func (s *Server) Start(context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc server: listen %s: %w", s.addr, err)
	}
	s.ln = ln

	go func() {
		if err := s.Serve(ln); err != nil {
			s.logger.Error("GRPC_SERVER_FAILED", "err", err)
		}
	}()
	s.logger.Info("GRPC_SERVER_STARTED", "addr", ln.Addr().String())
	return nil
}

// Watch mirrors probe readiness into the health status until Stop.
func (s *Server) Watch(probe ReadinessProbe, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	serving := false
	for {
		if ready := probe.Ready(); ready != serving {
			serving = ready
			s.SetServing(ready)
			s.logger.Info("GRPC_HEALTH_CHANGED", "serving", ready)
		}
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) Stop(ctx context.Context) error {
	close(s.stop)
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.Server.Stop()
	}
	return nil
}

var Module = fx.Module("grpc-server",
	fx.Provide(NewServer),
	fx.Invoke(func(lc fx.Lifecycle, s *Server, probe ReadinessProbe) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := s.Start(ctx); err != nil {
					return err
				}
				go s.Watch(probe, time.Second)
				return nil
			},
			OnStop: s.Stop,
		})
	}),
)
