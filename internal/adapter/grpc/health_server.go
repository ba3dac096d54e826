package grpc

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"time"

	"github.com/aq2208/storefront-api/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the overall ("") status.
const ServiceName = "storefront.v1.Storefront"

// Pinger is any dependency whose reachability decides serving status.
type Pinger interface {
	Ping(ctx context.Context) error
}

type ServerOptions struct {
	CertFile string // empty: plaintext
	KeyFile  string
	Interval time.Duration
}

// HealthServer exposes grpc.health.v1 and flips between SERVING and
// NOT_SERVING as its probes succeed or fail.
type HealthServer struct {
	srv      *grpc.Server
	health   *health.Server
	probes   []Pinger
	interval time.Duration
	log      *slog.Logger
}

func NewHealthServer(opts ServerOptions, probes ...Pinger) (*HealthServer, error) {
	log := logging.New("grpc")
	sopts := []grpc.ServerOption{
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 5 * time.Minute,
			Time:              2 * time.Minute,
			Timeout:           20 * time.Second,
		}),
		grpc.ChainUnaryInterceptor(loggingInterceptor(log)),
	}
	if opts.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(opts.CertFile, opts.KeyFile)
		if err != nil {
			return nil, err
		}
		sopts = append(sopts, grpc.Creds(credentials.NewTLS(&tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		})))
	}

	hs := &HealthServer{
		srv:      grpc.NewServer(sopts...),
		health:   health.NewServer(),
		probes:   probes,
		interval: opts.Interval,
		log:      log,
	}
	if hs.interval <= 0 {
		hs.interval = 10 * time.Second
	}
	healthpb.RegisterHealthServer(hs.srv, hs.health)
	reflection.Register(hs.srv)
	return hs, nil
}

// Server exposes the underlying grpc.Server for Serve/GracefulStop.
func (h *HealthServer) Server() *grpc.Server { return h.srv }

// Check runs every probe once and publishes the outcome.
func (h *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for _, p := range h.probes {
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := p.Ping(pctx)
		cancel()
		if err != nil {
			h.log.Warn("health probe failed", "err", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
			break
		}
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
	return status
}

// Watch re-probes on every tick until ctx ends, then marks the server as
// shutting down so clients drain.
func (h *HealthServer) Watch(ctx context.Context) {
	h.Check(ctx)
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			return
		case <-t.C:
			h.Check(ctx)
		}
	}
}

func loggingInterceptor(log *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		lvl := slog.LevelDebug
		if err != nil && !errors.Is(err, context.Canceled) {
			lvl = slog.LevelWarn
		}
		log.Log(ctx, lvl, "grpc call", "method", info.FullMethod, "latency_ms", time.Since(start).Milliseconds(), "err", err)
		return resp, err
	}
}
