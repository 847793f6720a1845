// Package pipeline cleans extracted product records before reconciliation.
package pipeline

import (
	"log/slog"

	"github.com/IshaanNene/StockGoat/internal/types"
)

// Middleware processes a record and returns the (possibly replaced) record.
// Return nil to drop the record. Records are values: a middleware that changes a
// record returns a modified copy and leaves its input alone.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a record. Return nil to drop it.
	Process(rec *types.CanonicalProduct) (*types.CanonicalProduct, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Default returns the pipeline used between extraction and reconciliation.
func Default(logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(NewSanitizeMiddleware())
	p.Use(&RequiredSKUMiddleware{})
	p.Use(NewDedupMiddleware())
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the record through all middleware in order.
func (p *Pipeline) Process(rec *types.CanonicalProduct) (*types.CanonicalProduct, error) {
	current := rec

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.ExtractionError{URL: rec.URL, Field: mw.Name(), Err: err}
		}
		if result == nil {
			p.logger.Debug("record dropped", "stage", mw.Name(), "url", rec.URL, "sku", rec.SKU)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// ProcessAll runs every record through the chain and returns the survivors in
// order with the number dropped. Stateful middleware is reset first.
func (p *Pipeline) ProcessAll(records []*types.CanonicalProduct) ([]*types.CanonicalProduct, int) {
	for _, mw := range p.middlewares {
		if r, ok := mw.(interface{ Reset() }); ok {
			r.Reset()
		}
	}

	out := make([]*types.CanonicalProduct, 0, len(records))
	dropped := 0
	for _, rec := range records {
		if rec == nil {
			dropped++
			continue
		}
		result, err := p.Process(rec)
		if err != nil {
			p.logger.Warn("record rejected", "url", rec.URL, "error", err)
			dropped++
			continue
		}
		if result == nil {
			dropped++
			continue
		}
		out = append(out, result)
	}
	return out, dropped
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}
