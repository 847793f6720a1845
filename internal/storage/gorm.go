package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/IshaanNene/StockGoat/internal/types"
)

// productRow is the products table.
type productRow struct {
	ID            string              `gorm:"primaryKey;size:36"`
	SKU           string              `gorm:"size:128;not null;uniqueIndex:idx_products_sku_distributor"`
	Distributor   string              `gorm:"size:64;not null;uniqueIndex:idx_products_sku_distributor;index"`
	Name          string              `gorm:"size:512"`
	Category      string              `gorm:"size:255"`
	PriceIncVAT   decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	PriceExVAT    decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	StockStatus   string              `gorm:"size:32"`
	StockQuantity *int
	Brand         string    `gorm:"size:255"`
	Description   string    `gorm:"type:text"`
	URL           string    `gorm:"size:1024"`
	LastUpdated   time.Time `gorm:"index"`
	CreatedAt     time.Time
}

func (productRow) TableName() string { return "products" }

// historyRow is the append-only product_history table.
type historyRow struct {
	ID            string              `gorm:"primaryKey;size:36"`
	ProductID     string              `gorm:"size:36;not null;index"`
	Distributor   string              `gorm:"size:64;not null;index:idx_history_product_key"`
	SKU           string              `gorm:"size:128;not null;index:idx_history_product_key"`
	PriceIncVAT   decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	PriceExVAT    decimal.NullDecimal `gorm:"type:decimal(12,2)"`
	StockStatus   string              `gorm:"size:32"`
	StockQuantity *int
	RecordedAt    time.Time `gorm:"index"`
}

func (historyRow) TableName() string { return "product_history" }

// runLogRow is the scraping_logs table.
type runLogRow struct {
	ID              string `gorm:"primaryKey;size:36"`
	RunID           string `gorm:"size:36;index"`
	Distributor     string `gorm:"size:64;index"`
	Status          string `gorm:"size:16"`
	ProductsFound   int
	ProductsUpdated int
	ProductsNew     int
	ErrorMessage    string    `gorm:"type:text"`
	StartedAt       time.Time `gorm:"index"`
	CompletedAt     *time.Time
	DurationMS      int64
}

func (runLogRow) TableName() string { return "scraping_logs" }

// GormStore persists to MySQL through gorm.
type GormStore struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewGormStore connects to MySQL and migrates the schema.
func NewGormStore(dsn string, log *slog.Logger) (*GormStore, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return NewGormStoreFromDB(db, log)
}

// NewGormStoreFromDB wraps an open gorm handle and migrates the schema.
func NewGormStoreFromDB(db *gorm.DB, log *slog.Logger) (*GormStore, error) {
	if err := db.AutoMigrate(&productRow{}, &historyRow{}, &runLogRow{}); err != nil {
		return nil, &types.StorageError{Backend: "mysql", Op: "migrate", Err: err}
	}
	return &GormStore{
		db:     db,
		logger: log.With("component", "gorm_store"),
	}, nil
}

func (s *GormStore) Name() string { return "mysql" }

// Close closes the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx implements Store.
func (s *GormStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&gormTx{db: gtx})
	})
}

// CreateRunLog implements Store.
func (s *GormStore) CreateRunLog(ctx context.Context, log *types.RunLog) error {
	row := runLogToRow(log)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return &types.StorageError{Backend: s.Name(), Op: "create_run_log", Err: err}
	}
	return nil
}

// UpdateRunLog implements Store.
func (s *GormStore) UpdateRunLog(ctx context.Context, log *types.RunLog) error {
	row := runLogToRow(log)
	res := s.db.WithContext(ctx).Model(&runLogRow{}).Where("id = ?", row.ID).Select("*").Updates(&row)
	if res.Error != nil {
		return &types.StorageError{Backend: s.Name(), Op: "update_run_log", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &types.StorageError{Backend: s.Name(), Op: "update_run_log", Err: fmt.Errorf("run log %s: %w", log.ID, types.ErrNotFound)}
	}
	return nil
}

// RecentRunLogs implements Store.
func (s *GormStore) RecentRunLogs(ctx context.Context, limit int) ([]*types.RunLog, error) {
	var rows []runLogRow
	q := s.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, &types.StorageError{Backend: s.Name(), Op: "recent_run_logs", Err: err}
	}
	out := make([]*types.RunLog, len(rows))
	for i := range rows {
		out[i] = rowToRunLog(&rows[i])
	}
	return out, nil
}

// ProductHistory implements Store.
func (s *GormStore) ProductHistory(ctx context.Context, distributor, sku string) ([]*types.HistoryEntry, error) {
	var rows []historyRow
	err := s.db.WithContext(ctx).
		Where("distributor = ? AND sku = ?", distributor, sku).
		Order("recorded_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, &types.StorageError{Backend: s.Name(), Op: "product_history", Err: err}
	}
	out := make([]*types.HistoryEntry, len(rows))
	for i, r := range rows {
		out[i] = &types.HistoryEntry{
			ID:            r.ID,
			ProductID:     r.ProductID,
			Distributor:   r.Distributor,
			SKU:           r.SKU,
			PriceIncVAT:   r.PriceIncVAT,
			PriceExVAT:    r.PriceExVAT,
			StockStatus:   types.StockStatus(r.StockStatus),
			StockQuantity: r.StockQuantity,
			RecordedAt:    r.RecordedAt,
		}
	}
	return out, nil
}

type gormTx struct {
	db *gorm.DB
}

func (tx *gormTx) GetProduct(ctx context.Context, sku, distributor string) (*types.StoredProduct, error) {
	var row productRow
	err := tx.db.WithContext(ctx).Where("sku = ? AND distributor = ?", sku, distributor).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("product %s/%s: %w", distributor, sku, types.ErrNotFound)
	}
	if err != nil {
		return nil, &types.StorageError{Backend: "mysql", Op: "get_product", Err: err}
	}
	return &types.StoredProduct{
		ID:            row.ID,
		Distributor:   row.Distributor,
		SKU:           row.SKU,
		Name:          row.Name,
		Category:      row.Category,
		PriceIncVAT:   row.PriceIncVAT,
		PriceExVAT:    row.PriceExVAT,
		StockStatus:   types.StockStatus(row.StockStatus),
		StockQuantity: row.StockQuantity,
		Brand:         row.Brand,
		Description:   row.Description,
		URL:           row.URL,
		LastUpdated:   row.LastUpdated,
		CreatedAt:     row.CreatedAt,
	}, nil
}

func (tx *gormTx) UpsertProduct(ctx context.Context, p *types.StoredProduct) error {
	row := productRow{
		ID:            p.ID,
		SKU:           p.SKU,
		Distributor:   p.Distributor,
		Name:          p.Name,
		Category:      p.Category,
		PriceIncVAT:   p.PriceIncVAT,
		PriceExVAT:    p.PriceExVAT,
		StockStatus:   string(p.StockStatus),
		StockQuantity: types.CopyInt(p.StockQuantity),
		Brand:         p.Brand,
		Description:   p.Description,
		URL:           p.URL,
		LastUpdated:   p.LastUpdated,
		CreatedAt:     p.CreatedAt,
	}
	if err := tx.db.WithContext(ctx).Save(&row).Error; err != nil {
		return &types.StorageError{Backend: "mysql", Op: "upsert_product", Err: err}
	}
	return nil
}

func (tx *gormTx) AppendHistory(ctx context.Context, h *types.HistoryEntry) error {
	row := historyRow{
		ID:            h.ID,
		ProductID:     h.ProductID,
		Distributor:   h.Distributor,
		SKU:           h.SKU,
		PriceIncVAT:   h.PriceIncVAT,
		PriceExVAT:    h.PriceExVAT,
		StockStatus:   string(h.StockStatus),
		StockQuantity: types.CopyInt(h.StockQuantity),
		RecordedAt:    h.RecordedAt,
	}
	if err := tx.db.WithContext(ctx).Create(&row).Error; err != nil {
		return &types.StorageError{Backend: "mysql", Op: "append_history", Err: err}
	}
	return nil
}

func runLogToRow(l *types.RunLog) runLogRow {
	return runLogRow{
		ID:              l.ID,
		RunID:           l.RunID,
		Distributor:     l.Distributor,
		Status:          string(l.Status),
		ProductsFound:   l.ProductsFound,
		ProductsUpdated: l.ProductsUpdated,
		ProductsNew:     l.ProductsNew,
		ErrorMessage:    l.ErrorMessage,
		StartedAt:       l.StartedAt,
		CompletedAt:     l.CompletedAt,
		DurationMS:      l.Duration.Milliseconds(),
	}
}

func rowToRunLog(r *runLogRow) *types.RunLog {
	return &types.RunLog{
		ID:              r.ID,
		RunID:           r.RunID,
		Distributor:     r.Distributor,
		Status:          types.RunLogStatus(r.Status),
		ProductsFound:   r.ProductsFound,
		ProductsUpdated: r.ProductsUpdated,
		ProductsNew:     r.ProductsNew,
		ErrorMessage:    r.ErrorMessage,
		StartedAt:       r.StartedAt,
		CompletedAt:     r.CompletedAt,
		Duration:        time.Duration(r.DurationMS) * time.Millisecond,
	}
}
