package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/potential/internal/metrics"
	"github.com/danielpatrickdp/potential/internal/rpc"
	"github.com/danielpatrickdp/potential/internal/store"
)

// #region serve
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog over gRPC with Prometheus metrics",
	Long: `serve exposes potential.v1.PotentialService on POTENTIAL_GRPC_ADDR and
/metrics on POTENTIAL_METRICS_ADDR until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func runServe(ctx context.Context) error {
	st, err := store.NewStore(serverCfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New()
	var evalLog *sql.DB
	if serverCfg.LogEvaluations {
		evalLog = st.DB()
	}
	srv := rpc.NewServer(st, rpc.Options{
		EvalLog:   evalLog,
		Metrics:   m,
		Logger:    logger,
		MaxPoints: serverCfg.MaxPoints,
	})
	grpcServer, healthServer := rpc.NewGRPCServer(srv)

	lis, err := net.Listen("tcp", serverCfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", serverCfg.GRPCAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	httpServer := &http.Server{
		Addr:              serverCfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("potential server starting",
		"grpc_addr", lis.Addr().String(),
		"metrics_addr", serverCfg.MetricsAddr,
		"db", serverCfg.DBPath,
		"max_points", serverCfg.MaxPoints,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rpc.Serve(ctx, grpcServer, healthServer, lis)
	})
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve metrics: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("potential server stopped", "error", err)
	return err
}

// #endregion serve
