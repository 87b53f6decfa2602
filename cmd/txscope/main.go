// Command txscope opens the configured PostgreSQL pools and serves their
// health, statistics and a tracked catalog probe over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Konsultn-Engineering/txscope/config"
	"github.com/Konsultn-Engineering/txscope/connector"
	"github.com/Konsultn-Engineering/txscope/database"
	"github.com/Konsultn-Engineering/txscope/logging"
	"github.com/Konsultn-Engineering/txscope/server"
	"github.com/Konsultn-Engineering/txscope/session"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		logging.Error().Err(err).Msg("txscope stopped with an error")
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Init(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := connector.DefaultRegistry()
	var pools []*database.PgxPool
	defer func() {
		for _, p := range pools {
			p.Close()
		}
	}()
	for name, pc := range cfg.Pools {
		pool, err := connector.Connect(ctx, registry, name, pc)
		if err != nil {
			return err
		}
		pools = append(pools, pool)
		logging.Info().Str("pool", name).Msg("pool connected")
	}

	if cfg.Metrics.Enabled && cfg.Metrics.PublishInterval > 0 {
		go publishStats(ctx, registry, cfg.Metrics.PublishInterval)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(session.NewManager(registry), cfg.Metrics.Enabled).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logging.Info().Msg("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logging.Info().Msg("txscope stopped gracefully")
	return nil
}

func publishStats(ctx context.Context, r *connector.Registry, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		connector.PublishStats(r)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
