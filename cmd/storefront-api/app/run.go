package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/aq2208/storefront-api/configs"
	"github.com/aq2208/storefront-api/internal/bootstrap"
	"github.com/aq2208/storefront-api/internal/logging"
	"golang.org/x/sync/errgroup"
)

// Run serves HTTP and gRPC health and runs the background workers until ctx
// is cancelled or one of them fails, then shuts everything down.
func Run(ctx context.Context, cfg configs.Config, a *bootstrap.App) error {
	log := logging.New("app")

	httpSrv := &http.Server{
		Addr:              cfg.App.HTTPAddr,
		Handler:           a.Router,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	var lis net.Listener
	if cfg.App.GRPCAddr != "" {
		var err error
		lis, err = net.Listen("tcp", cfg.App.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})

	if lis != nil {
		g.Go(func() error {
			if err := a.Health.Server().Serve(lis); err != nil {
				return fmt.Errorf("grpc: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		a.Health.Watch(gctx)
		return nil
	})

	for _, w := range a.Workers {
		g.Go(func() error { return w(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		timeout := cfg.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		sctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		log.Info("shutting down")
		err := httpSrv.Shutdown(sctx)
		a.Health.Server().GracefulStop()
		return err
	})

	return g.Wait()
}
