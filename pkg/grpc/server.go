// Package grpc runs the internal gRPC listener used by orchestrators and
// load balancers. It serves the standard grpc.health.v1 service with one
// status per component ("payments", "database", "cache") plus the overall
// "" entry, and reflection for grpcurl.
package grpc

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/metrics"
)

// Component names reported through the health service.
const (
	ServicePayments = "payments"
	ServiceDatabase = "database"
	ServiceCache    = "cache"
)

var (
	handled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foodtruck",
		Subsystem: "grpc",
		Name:      "handled_total",
		Help:      "gRPC calls completed, by method and code.",
	}, []string{"method", "code"})

	handling = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "foodtruck",
		Subsystem: "grpc",
		Name:      "handling_seconds",
		Help:      "gRPC call latency.",
		Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
	}, []string{"method"})
)

func init() {
	metrics.DefaultRegistry.MustRegister(handled, handling)
}

// ─── Interceptors ─────────────────────────────────────────────────────────────

func recoveryInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("grpc: panic recovered", "method", info.FullMethod, "panic", r, "stack", string(debug.Stack()))
			err = status.Errorf(codes.Internal, "internal server error")
		}
	}()
	return handler(ctx, req)
}

func observeInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	code := status.Code(err)

	handled.WithLabelValues(info.FullMethod, code.String()).Inc()
	handling.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
	logger.Debug("grpc: request", "method", info.FullMethod, "code", code.String(), "duration", time.Since(start).String())
	return resp, err
}

// ─── Server ───────────────────────────────────────────────────────────────────

// Server wraps a *grpc.Server with a mutable health registry.
type Server struct {
	srv    *grpc.Server
	health *health.Server
}

// New builds the server. Every component starts NOT_SERVING until the
// kernel reports on it.
func New() *Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(recoveryInterceptor, observeInterceptor),
		grpc.MaxRecvMsgSize(1<<20),
	)
	hs := health.NewServer()
	for _, name := range []string{"", ServicePayments, ServiceDatabase, ServiceCache} {
		hs.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	return &Server{srv: srv, health: hs}
}

// SetServing reports a component as up or down.
func (s *Server) SetServing(service string, up bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if up {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(service, st)
}

// Serve blocks serving lis.
func (s *Server) Serve(lis net.Listener) error {
	logger.Info("grpc: listening", "addr", lis.Addr().String())
	return s.srv.Serve(lis)
}

// Start listens on port and serves in the background.
func (s *Server) Start(port string) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("grpc: listen on :%s: %w", port, err)
	}
	go func() {
		if err := s.Serve(lis); err != nil {
			logger.Error("grpc: serve", "error", err)
		}
	}()
	return nil
}

// Stop flips every status to NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}
