// Command assetindexd runs the asset index consumer and its HTTP search
// API: it ingests a blockchain event stream, maintains the supersession
// store, and serves asset lookup/search.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wavesplatform/assetindex/internal/cache/rediscache"
	"github.com/wavesplatform/assetindex/internal/config"
	"github.com/wavesplatform/assetindex/internal/coordinator"
	"github.com/wavesplatform/assetindex/internal/events"
	"github.com/wavesplatform/assetindex/internal/httpapi"
	"github.com/wavesplatform/assetindex/internal/logging"
	"github.com/wavesplatform/assetindex/internal/search"
	"github.com/wavesplatform/assetindex/internal/store/pg"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "assetindexd",
		Short: "Waves-like blockchain asset index consumer and search API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", "config.toml", "path to the TOML config file")

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return pg.Migrate(cfg.Postgres.DSN)
		},
	}
	migrateCmd.Flags().StringVar(&configPath, "config", "config.toml", "path to the TOML config file")
	root.AddCommand(migrateCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pool, err := pg.Open(ctx, pg.Config{DSN: cfg.Postgres.DSN, MaxConns: cfg.Postgres.MaxConns})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	repo := pool.Repository()

	redisCache, err := rediscache.Open(ctx, rediscache.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisCache.Close()

	fromHeight, _, err := repo.CurrentHeight(ctx)
	if err != nil {
		return fmt.Errorf("read initial tip: %w", err)
	}

	dial := func(ctx context.Context) (io.ReadWriteCloser, error) {
		var d net.Dialer
		return d.DialContext(ctx, "tcp", cfg.Upstream.Addr)
	}
	client := events.NewClient(dial, fromHeight+1, logger)
	defer client.Close()

	co := coordinator.New(client, repo, redisCache, logger, coordinator.Config{BatchSize: cfg.Batch.Size, MaxSyncLag: cfg.Batch.MaxSyncLag})

	searchSvc := search.New(repo, redisCache)
	router := httpapi.NewRouter(searchSvc, redisCache, co, logger)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", router)

	srv := &http.Server{Addr: cfg.HTTP.ListenAddr, Handler: mux}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		errCh <- co.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
