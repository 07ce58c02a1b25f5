// Command server runs the stations and favorites handlers behind a local HTTP
// listener, with /healthz and /metrics alongside.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bbernstein/gotgas/backend-go/internal/app"
	"github.com/bbernstein/gotgas/backend-go/internal/config"
	"github.com/bbernstein/gotgas/backend-go/internal/metrics"
	"github.com/bbernstein/gotgas/backend-go/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.InitializeLogging()

	srv, err := newServer(ctx, cfg, metrics.NewMetrics(), prometheus.DefaultGatherer)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newServer(ctx context.Context, cfg *config.Config, m *metrics.Metrics, gatherer prometheus.Gatherer) (*server.Server, error) {
	stations, err := app.NewStationsHandler(ctx, cfg, m)
	if err != nil {
		return nil, err
	}
	favs, err := app.NewFavoritesHandler(ctx, cfg, m)
	if err != nil {
		return nil, err
	}
	return server.New(cfg.HTTPAddr, stations.HandleRequest, favs.HandleRequest, gatherer), nil
}
