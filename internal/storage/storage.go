package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/StockGoat/internal/config"
	"github.com/IshaanNene/StockGoat/internal/types"
)

// Store is the interface for all storage backends.
type Store interface {
	// WithTx runs fn in one transaction. Every write made through tx commits when fn
	// returns nil and is discarded otherwise. fn must not call other Store methods.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// CreateRunLog inserts a new run log row.
	CreateRunLog(ctx context.Context, log *types.RunLog) error

	// UpdateRunLog overwrites an existing run log row, matched by ID.
	UpdateRunLog(ctx context.Context, log *types.RunLog) error

	// RecentRunLogs returns up to limit run logs, newest first.
	RecentRunLogs(ctx context.Context, limit int) ([]*types.RunLog, error)

	// ProductHistory returns the history of one product, oldest first.
	ProductHistory(ctx context.Context, distributor, sku string) ([]*types.HistoryEntry, error)

	// Close releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// Tx is the product view available inside a transaction.
type Tx interface {
	// GetProduct returns the stored product or an error wrapping types.ErrNotFound.
	GetProduct(ctx context.Context, sku, distributor string) (*types.StoredProduct, error)

	// UpsertProduct inserts or replaces a product, matched by ID.
	UpsertProduct(ctx context.Context, p *types.StoredProduct) error

	// AppendHistory appends one history entry.
	AppendHistory(ctx context.Context, h *types.HistoryEntry) error
}

// Open creates the backend selected by cfg.Type.
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(logger), nil
	case "mysql":
		return NewGormStore(cfg.DSN, logger)
	case "mongodb":
		return NewMongoStore(ctx, cfg.MongoURI, cfg.Database, logger)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
