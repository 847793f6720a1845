package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/IshaanNene/StockGoat/internal/config"
	"github.com/IshaanNene/StockGoat/internal/engine"
	"github.com/IshaanNene/StockGoat/internal/events"
	"github.com/IshaanNene/StockGoat/internal/extractor"
	"github.com/IshaanNene/StockGoat/internal/fetcher"
	"github.com/IshaanNene/StockGoat/internal/observability"
	"github.com/IshaanNene/StockGoat/internal/reconcile"
	"github.com/IshaanNene/StockGoat/internal/storage"
)

// app holds every wired component of one process.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      storage.Store
	metrics    *observability.Metrics
	transports []fetcher.Fetcher
	catalog    *extractor.Catalog
	bus        *events.Bus
	engine     *engine.Engine
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.Metrics.Enabled {
		a.metrics = observability.NewMetrics(logger)
	}

	store, err := storage.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	a.store = store

	httpTransport, err := fetcher.NewHTTPFetcher(&cfg.Fetcher, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	browserTransport := fetcher.NewBrowserFetcher(cfg, logger)
	a.transports = []fetcher.Fetcher{httpTransport, browserTransport}

	fetchers := map[string]extractor.PageFetcher{
		"http":    fetcher.NewResilient(httpTransport, &cfg.Fetcher, logger, fetcher.WithMetrics(a.metrics)),
		"browser": fetcher.NewResilient(browserTransport, &cfg.Fetcher, logger, fetcher.WithMetrics(a.metrics)),
	}
	a.catalog = extractor.NewCatalog(extractor.DefaultRegistry(logger), cfg, fetchers, logger)

	a.bus = events.NewBus(0, logger)
	rec := reconcile.NewEngine(store, logger, reconcile.WithMetrics(a.metrics))
	a.engine = engine.New(a.catalog, rec, store, logger,
		engine.WithSink(a.bus),
		engine.WithMetrics(a.metrics),
	)
	return a, nil
}

// Close stops the engine and releases every resource.
func (a *app) Close() error {
	var errs []error
	if a.engine != nil {
		a.engine.Close()
	}
	if a.bus != nil {
		a.bus.Close()
	}
	for _, t := range a.transports {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
