package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/IshaanNene/StockGoat/internal/types"
)

// MemoryStore keeps everything in process memory. Transactions are serialized and
// staged, so a failed transaction leaves no trace.
type MemoryStore struct {
	mu       sync.Mutex
	products map[types.ProductKey]*types.StoredProduct
	history  []*types.HistoryEntry
	runLogs  []*types.RunLog
	logger   *slog.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		products: make(map[types.ProductKey]*types.StoredProduct),
		logger:   logger.With("component", "memory_store"),
	}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Close() error { return nil }

// WithTx implements Store.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:    s,
		products: make(map[types.ProductKey]*types.StoredProduct),
	}
	if err := fn(tx); err != nil {
		s.logger.Debug("transaction rolled back", "error", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for key, p := range tx.products {
		s.products[key] = p
	}
	s.history = append(s.history, tx.history...)
	return nil
}

// CreateRunLog implements Store.
func (s *MemoryStore) CreateRunLog(ctx context.Context, log *types.RunLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *log
	s.runLogs = append(s.runLogs, &c)
	return nil
}

// UpdateRunLog implements Store.
func (s *MemoryStore) UpdateRunLog(ctx context.Context, log *types.RunLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.runLogs {
		if existing.ID == log.ID {
			c := *log
			s.runLogs[i] = &c
			return nil
		}
	}
	return &types.StorageError{Backend: s.Name(), Op: "update_run_log", Err: fmt.Errorf("run log %s: %w", log.ID, types.ErrNotFound)}
}

// RecentRunLogs implements Store.
func (s *MemoryStore) RecentRunLogs(ctx context.Context, limit int) ([]*types.RunLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*types.RunLog, 0, len(s.runLogs))
	for i := len(s.runLogs) - 1; i >= 0; i-- {
		c := *s.runLogs[i]
		out = append(out, &c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ProductHistory implements Store.
func (s *MemoryStore) ProductHistory(ctx context.Context, distributor, sku string) ([]*types.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*types.HistoryEntry
	for _, h := range s.history {
		if h.Distributor == distributor && h.SKU == sku {
			c := *h
			c.StockQuantity = types.CopyInt(h.StockQuantity)
			out = append(out, &c)
		}
	}
	return out, nil
}

// Products returns a copy of every stored product.
func (s *MemoryStore) Products() []*types.StoredProduct {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*types.StoredProduct, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distributor != out[j].Distributor {
			return out[i].Distributor < out[j].Distributor
		}
		return out[i].SKU < out[j].SKU
	})
	return out
}

// HistoryCount returns the total number of history entries.
func (s *MemoryStore) HistoryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// memoryTx stages writes until the transaction commits. The store mutex is held
// by WithTx for its whole lifetime.
type memoryTx struct {
	store    *MemoryStore
	products map[types.ProductKey]*types.StoredProduct
	history  []*types.HistoryEntry
}

func (tx *memoryTx) GetProduct(ctx context.Context, sku, distributor string) (*types.StoredProduct, error) {
	key := types.ProductKey{SKU: sku, Distributor: distributor}
	if p, ok := tx.products[key]; ok {
		return p.Clone(), nil
	}
	if p, ok := tx.store.products[key]; ok {
		return p.Clone(), nil
	}
	return nil, fmt.Errorf("product %s/%s: %w", distributor, sku, types.ErrNotFound)
}

func (tx *memoryTx) UpsertProduct(ctx context.Context, p *types.StoredProduct) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx.products[p.Key()] = p.Clone()
	return nil
}

func (tx *memoryTx) AppendHistory(ctx context.Context, h *types.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := *h
	c.StockQuantity = types.CopyInt(h.StockQuantity)
	tx.history = append(tx.history, &c)
	return nil
}
