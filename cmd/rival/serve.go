package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/FranksOps/rival/internal/api"
	"github.com/FranksOps/rival/internal/metrics"
)

const shutdownTimeout = 15 * time.Second

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the collection API",
		Long: `Serve POST /search (collection plus report) and POST /collect
(collection only) over HTTP. With metrics.port set, Prometheus metrics get
their own listener; otherwise they are served at /metrics on the API.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Error("failed to close store", "err", err)
				}
			}()

			apiCfg := api.Config{
				CORSOrigins:    cfg.Server.CORSOrigins,
				RequestTimeout: cfg.Server.RequestTimeout,
				Logger:         logger,
			}
			if cfg.Metrics.Port > 0 {
				ms := metrics.Start(cfg.Metrics.Port, logger)
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
					defer cancel()
					_ = ms.Stop(sctx)
				}()
			} else {
				apiCfg.Metrics = metrics.Handler()
			}

			// The sweeper has stopped before the store closes.
			sweepCtx, cancelSweep := context.WithCancel(ctx)
			swept := make(chan struct{})
			go func() {
				defer close(swept)
				a.store.RunSweeper(sweepCtx, cfg.Store.SweepInterval)
			}()
			defer func() {
				cancelSweep()
				<-swept
			}()

			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           api.NewServer(apiCfg, a.pipeline, a.assembler),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("api listening", "addr", cfg.Server.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(sctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
