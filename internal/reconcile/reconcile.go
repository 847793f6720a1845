// Package reconcile merges freshly extracted product records into the store and
// writes a history entry for every product that is new or has changed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/IshaanNene/StockGoat/internal/observability"
	"github.com/IshaanNene/StockGoat/internal/storage"
	"github.com/IshaanNene/StockGoat/internal/types"
)

// MissingSKU is the placeholder extractors use when a page has no SKU. Such records
// have no stable identity and are skipped.
const MissingSKU = "N/A"

// Result counts what one Apply call did.
type Result struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Skipped   int `json:"skipped"`
}

// Change describes one field that differed between the stored and the new record.
type Change struct {
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
}

// Engine applies batches of canonical records to a Store.
type Engine struct {
	store   storage.Store
	metrics *observability.Metrics
	now     func() time.Time
	newID   func() string
	logger  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the reconciliation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics records batch outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates a reconciliation engine over store.
func NewEngine(store storage.Store, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger.With("component", "reconcile"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply reconciles records for one distributor in a single transaction. Either every
// write commits or none does; on failure the returned error is a
// *types.ReconciliationError and the Result is zero.
func (e *Engine) Apply(ctx context.Context, distributor string, records []*types.CanonicalProduct) (Result, error) {
	var res Result
	at := e.now().UTC()

	err := e.store.WithTx(ctx, func(tx storage.Tx) error {
		// The backend may re-run this function, so counts start fresh each time.
		res = Result{}
		for _, rec := range records {
			if rec == nil || rec.SKU == "" || rec.SKU == MissingSKU {
				res.Skipped++
				continue
			}
			outcome, err := e.applyOne(ctx, tx, distributor, rec, at)
			if err != nil {
				return fmt.Errorf("sku %s: %w", rec.SKU, err)
			}
			switch outcome {
			case outcomeCreated:
				res.Created++
			case outcomeUpdated:
				res.Updated++
			default:
				res.Unchanged++
			}
		}
		return nil
	})
	if err != nil {
		e.logger.Error("reconciliation rolled back", "distributor", distributor, "records", len(records), "error", err)
		return Result{}, &types.ReconciliationError{Distributor: distributor, Err: err}
	}

	e.metrics.Reconciled(distributor, res.Created, res.Updated, res.Unchanged, res.Skipped)
	e.logger.Info("reconciliation committed",
		"distributor", distributor,
		"created", res.Created,
		"updated", res.Updated,
		"unchanged", res.Unchanged,
		"skipped", res.Skipped,
	)
	return res, nil
}

type outcome int

const (
	outcomeUnchanged outcome = iota
	outcomeCreated
	outcomeUpdated
)

func (e *Engine) applyOne(ctx context.Context, tx storage.Tx, distributor string, rec *types.CanonicalProduct, at time.Time) (outcome, error) {
	existing, err := tx.GetProduct(ctx, rec.SKU, distributor)
	switch {
	case errors.Is(err, types.ErrNotFound):
		p := &types.StoredProduct{
			ID:          e.newID(),
			Distributor: distributor,
			SKU:         rec.SKU,
			CreatedAt:   at,
			LastUpdated: at,
		}
		overwrite(p, rec)
		if err := tx.UpsertProduct(ctx, p); err != nil {
			return outcomeUnchanged, err
		}
		if err := tx.AppendHistory(ctx, e.snapshot(p, at)); err != nil {
			return outcomeUnchanged, err
		}
		return outcomeCreated, nil
	case err != nil:
		return outcomeUnchanged, err
	}

	changes := Diff(existing, rec)
	if len(changes) == 0 {
		return outcomeUnchanged, nil
	}

	overwrite(existing, rec)
	if at.After(existing.LastUpdated) {
		existing.LastUpdated = at
	}
	if err := tx.UpsertProduct(ctx, existing); err != nil {
		return outcomeUnchanged, err
	}
	if err := tx.AppendHistory(ctx, e.snapshot(existing, at)); err != nil {
		return outcomeUnchanged, err
	}

	e.logger.Debug("product changed", "distributor", distributor, "sku", rec.SKU, "changes", len(changes))
	return outcomeUpdated, nil
}

func (e *Engine) snapshot(p *types.StoredProduct, at time.Time) *types.HistoryEntry {
	return &types.HistoryEntry{
		ID:            e.newID(),
		ProductID:     p.ID,
		Distributor:   p.Distributor,
		SKU:           p.SKU,
		PriceIncVAT:   p.PriceIncVAT,
		PriceExVAT:    p.PriceExVAT,
		StockStatus:   p.StockStatus,
		StockQuantity: types.CopyInt(p.StockQuantity),
		RecordedAt:    at,
	}
}

// overwrite copies the record's latest values onto the stored product.
func overwrite(p *types.StoredProduct, rec *types.CanonicalProduct) {
	p.Name = rec.Name
	p.Category = rec.Category
	p.PriceIncVAT = rec.PriceIncVAT
	p.PriceExVAT = rec.PriceExVAT
	p.StockStatus = rec.StockStatus
	p.StockQuantity = types.CopyInt(rec.StockQuantity)
	p.Brand = rec.Brand
	p.Description = rec.Description
	p.URL = rec.URL
}

// Diff returns the tracked fields that differ between stored and rec: name, both
// prices, stock status and stock quantity. Other fields never trigger an update.
func Diff(stored *types.StoredProduct, rec *types.CanonicalProduct) []Change {
	var changes []Change
	if stored.Name != rec.Name {
		changes = append(changes, Change{Field: "name", OldValue: stored.Name, NewValue: rec.Name})
	}
	if !types.EqualDecimal(stored.PriceIncVAT, rec.PriceIncVAT) {
		changes = append(changes, Change{Field: "price_inc_vat", OldValue: decimalString(stored.PriceIncVAT), NewValue: decimalString(rec.PriceIncVAT)})
	}
	if !types.EqualDecimal(stored.PriceExVAT, rec.PriceExVAT) {
		changes = append(changes, Change{Field: "price_ex_vat", OldValue: decimalString(stored.PriceExVAT), NewValue: decimalString(rec.PriceExVAT)})
	}
	if stored.StockStatus != rec.StockStatus {
		changes = append(changes, Change{Field: "stock_status", OldValue: string(stored.StockStatus), NewValue: string(rec.StockStatus)})
	}
	if !types.EqualInt(stored.StockQuantity, rec.StockQuantity) {
		changes = append(changes, Change{Field: "stock_quantity", OldValue: intString(stored.StockQuantity), NewValue: intString(rec.StockQuantity)})
	}
	return changes
}
