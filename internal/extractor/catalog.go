package extractor

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/IshaanNene/StockGoat/internal/config"
	"github.com/IshaanNene/StockGoat/internal/types"
)

// Catalog resolves configured distributor names to ready Extractors, wiring each
// one to the transport its configuration asks for.
type Catalog struct {
	registry *Registry
	cfg      *config.Config
	fetchers map[string]PageFetcher
	logger   *slog.Logger
}

// NewCatalog creates a Catalog. fetchers is keyed by transport type ("http", "browser").
func NewCatalog(registry *Registry, cfg *config.Config, fetchers map[string]PageFetcher, logger *slog.Logger) *Catalog {
	return &Catalog{
		registry: registry,
		cfg:      cfg,
		fetchers: fetchers,
		logger:   logger,
	}
}

// Names returns the enabled distributors in configuration order.
func (c *Catalog) Names() []string {
	return c.cfg.EnabledDistributors()
}

// Extractor builds the extractor for a configured distributor. A configured name
// with no registered factory gets the generic profile.
func (c *Catalog) Extractor(name string) (Extractor, error) {
	dcfg, ok := c.cfg.Distributor(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownDistributor, name)
	}

	fetcher, ok := c.fetchers[dcfg.Fetcher]
	if !ok {
		return nil, fmt.Errorf("distributor %q: no %q fetcher available", name, dcfg.Fetcher)
	}

	opts := Options{
		BaseURL:  dcfg.BaseURL,
		VATRate:  decimal.NewNullDecimal(decimal.NewFromFloat(c.cfg.VATRateFor(name))),
		MaxPages: dcfg.MaxPages,
	}

	if factory, ok := c.registry.Get(name); ok {
		return factory(fetcher, opts, c.logger), nil
	}

	profile := baseProfile()
	profile.Name = name
	return NewSite(profile, fetcher, opts, c.logger), nil
}
