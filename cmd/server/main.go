package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/Clark-Hu/restaurant-ratings/internal/config"
	"github.com/Clark-Hu/restaurant-ratings/internal/events"
	httpserver "github.com/Clark-Hu/restaurant-ratings/internal/http"
	"github.com/Clark-Hu/restaurant-ratings/internal/logging"
	"github.com/Clark-Hu/restaurant-ratings/internal/metrics"
	"github.com/Clark-Hu/restaurant-ratings/internal/repository"
	"github.com/Clark-Hu/restaurant-ratings/internal/service"
	"github.com/Clark-Hu/restaurant-ratings/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fatal := zerolog.New(os.Stderr).With().Timestamp().Logger()
		fatal.Fatal().Err(err).Msg("config error")
	}

	logger, err := logging.New("ratings-api", cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		fatal := zerolog.New(os.Stderr).With().Timestamp().Logger()
		fatal.Fatal().Err(err).Msg("logger setup")
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeLogger := logging.Component(logger, "store")
	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 &storeLogger,
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	eventsTimeout := time.Duration(cfg.EventsTimeoutSecs) * time.Second
	eventsLogger := logging.Component(logger, "events")
	eventsClient, err := events.NewHTTPClient(cfg.EventsURL, cfg.EventsAPIKey, eventsTimeout, eventsLogger)
	if err != nil {
		logger.Fatal().Err(err).Msg("init events client")
	}
	enricher := events.NewEnricher(eventsClient, events.EnricherOptions{
		MaxResults:     cfg.EventsMaxResults,
		Classification: cfg.EventsClassification,
		Timeout:        eventsTimeout,
		Metrics:        m,
		Logger:         eventsLogger,
	})

	repo := repository.New(st)
	ratings := service.NewRatingService(repo.Ratings, repo.Users, enricher, service.Options{
		EnrichConcurrency: cfg.EventsConcurrency,
		Metrics:           m,
		Logger:            logging.Component(logger, "service"),
	})

	server := httpserver.New(cfg, httpserver.Deps{
		Store:    st,
		Ratings:  ratings,
		Events:   eventsClient,
		Gatherer: reg,
		Logger:   logging.Component(logger, "http"),
	})

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("graceful shutdown error")
	}
	logger.Info().Msg("server stopped")
}
