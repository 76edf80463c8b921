// Package server provides gRPC server lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/solatis/waypoint/internal/core/api"
	"github.com/solatis/waypoint/internal/core/auth"
	"github.com/solatis/waypoint/internal/core/config"
	"github.com/solatis/waypoint/internal/core/metrics"
)

// shutdownTimeout bounds graceful shutdown before connections are cut.
const shutdownTimeout = 30 * time.Second

// GRPCServer manages the resolver's gRPC listener and optional metrics listener.
type GRPCServer struct {
	server  *grpc.Server
	health  *health.Server
	metrics *http.Server
	config  config.ServerConfig
	logger  *zap.Logger

	mu       sync.Mutex
	listener net.Listener
}

// Options carries the optional collaborators of a GRPCServer.
type Options struct {
	Authenticator *auth.Authenticator // nil leaves ImportRuleSet unauthenticated and therefore denied
	Metrics       *metrics.Metrics    // nil disables the /metrics listener
	Logger        *zap.Logger
}

// NewGRPCServer creates the server and registers the resolver and health services.
func NewGRPCServer(cfg config.ServerConfig, service api.EndpointResolverServer, opts Options) (*GRPCServer, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	interceptors := []grpc.UnaryServerInterceptor{timeoutInterceptor(cfg.RequestTimeout)}
	if opts.Authenticator != nil {
		interceptors = append(interceptors, opts.Authenticator.UnaryInterceptor(api.MethodImportRuleSet))
	}
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	api.RegisterEndpointResolverServer(server, service)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(api.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	s := &GRPCServer{
		server: server,
		health: healthServer,
		config: cfg,
		logger: logger,
	}
	if opts.Metrics != nil && cfg.MetricsPort != 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", opts.Metrics.Handler())
		s.metrics = &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.MetricsPort)),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return s, nil
}

// timeoutInterceptor bounds each unary call by d unless the caller's
// deadline is sooner.
func timeoutInterceptor(d time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if d <= 0 {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return handler(ctx, req)
	}
}

// Listen binds the gRPC listener. Start calls it when no listener is bound.
func (s *GRPCServer) Listen() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr(), nil
	}
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	s.listener = listener
	return listener.Addr(), nil
}

// Start serves gRPC requests, and metrics when configured, until Shutdown.
func (s *GRPCServer) Start(ctx context.Context) error {
	addr, err := s.Listen()
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	if s.metrics != nil {
		go func() {
			s.logger.Info("metrics listening", zap.String("addr", s.metrics.Addr))
			if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}
	go func() {
		s.logger.Info("gRPC listening", zap.String("addr", addr.String()))
		errCh <- s.server.Serve(s.listener)
	}()

	return <-errCh
}

// Shutdown marks the server NOT_SERVING and stops gracefully, forcing a stop
// after 30 seconds or when ctx is done.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	var metricsErr error
	if s.metrics != nil {
		mctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		metricsErr = s.metrics.Shutdown(mctx)
		cancel()
	}

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return metricsErr
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(shutdownTimeout):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}
