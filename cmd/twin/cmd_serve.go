package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/burnout-twin/burnout-twin/internal/api"
	"github.com/burnout-twin/burnout-twin/internal/config"
	"github.com/burnout-twin/burnout-twin/internal/health"
	"github.com/burnout-twin/burnout-twin/internal/snapshot"
)

var noHealth bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the published snapshot over HTTP and gRPC health",
	Long: `Serves the dashboard API on PORT and the gRPC health service on
TWIN_GRPC_ADDR. The snapshot file is watched; the API always returns the
bytes last written by "twin run".`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&noHealth, "no-health", false, "do not start the gRPC health server")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg, !noHealth)
}

// serve binds both listeners before any goroutine starts, so a bad address
// fails the command with nothing left running.
func serve(ctx context.Context, cfg config.Config, withHealth bool) error {
	var hs *health.Server
	onChange := func(bool) {}
	if withHealth {
		hs = health.NewServer(logger)
		onChange = hs.SetSnapshotPresent
	}

	cache, err := snapshot.NewCache(cfg.SnapshotPath, logger, onChange)
	if err != nil {
		return err
	}
	defer cache.Stop()
	if err := cache.Start(ctx); err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           api.NewServer(cache, cfg.SnapshotPath, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpLis, err := net.Listen("tcp", httpSrv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", httpSrv.Addr, err)
	}
	var grpcLis net.Listener
	if hs != nil {
		if grpcLis, err = net.Listen("tcp", cfg.GRPCAddr); err != nil {
			httpLis.Close()
			return fmt.Errorf("listen %s: %w", cfg.GRPCAddr, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("api listening", zap.String("addr", httpLis.Addr().String()))
		if err := httpSrv.Serve(httpLis); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	if hs != nil {
		g.Go(func() error {
			if err := hs.Serve(grpcLis); err != nil {
				return fmt.Errorf("grpc: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if hs != nil {
			hs.Stop()
		}
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
