package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/StockGoat/internal/types"
)

type productDoc struct {
	ID            string                `bson:"_id"`
	SKU           string                `bson:"sku"`
	Distributor   string                `bson:"distributor"`
	Name          string                `bson:"name"`
	Category      string                `bson:"category"`
	PriceIncVAT   *primitive.Decimal128 `bson:"price_inc_vat"`
	PriceExVAT    *primitive.Decimal128 `bson:"price_ex_vat"`
	StockStatus   string                `bson:"stock_status"`
	StockQuantity *int                  `bson:"stock_quantity"`
	Brand         string                `bson:"brand"`
	Description   string                `bson:"description"`
	URL           string                `bson:"url"`
	LastUpdated   time.Time             `bson:"last_updated"`
	CreatedAt     time.Time             `bson:"created_at"`
}

type historyDoc struct {
	ID            string                `bson:"_id"`
	ProductID     string                `bson:"product_id"`
	Distributor   string                `bson:"distributor"`
	SKU           string                `bson:"sku"`
	PriceIncVAT   *primitive.Decimal128 `bson:"price_inc_vat"`
	PriceExVAT    *primitive.Decimal128 `bson:"price_ex_vat"`
	StockStatus   string                `bson:"stock_status"`
	StockQuantity *int                  `bson:"stock_quantity"`
	RecordedAt    time.Time             `bson:"recorded_at"`
}

type runLogDoc struct {
	ID              string     `bson:"_id"`
	RunID           string     `bson:"run_id"`
	Distributor     string     `bson:"distributor"`
	Status          string     `bson:"status"`
	ProductsFound   int        `bson:"products_found"`
	ProductsUpdated int        `bson:"products_updated"`
	ProductsNew     int        `bson:"products_new"`
	ErrorMessage    string     `bson:"error_message,omitempty"`
	StartedAt       time.Time  `bson:"started_at"`
	CompletedAt     *time.Time `bson:"completed_at"`
	DurationMS      int64      `bson:"duration_ms"`
}

// MongoStore persists to MongoDB. Transactions need a replica set or sharded cluster.
type MongoStore struct {
	client   *mongo.Client
	products *mongo.Collection
	history  *mongo.Collection
	runLogs  *mongo.Collection
	logger   *slog.Logger
}

// NewMongoStore connects, pings and ensures indexes.
func NewMongoStore(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		products: db.Collection("products"),
		history:  db.Collection("product_history"),
		runLogs:  db.Collection("scraping_logs"),
		logger:   logger.With("component", "mongo_store"),
	}

	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.products.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sku", Value: 1}, {Key: "distributor", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Op: "create_index", Err: err}
	}
	_, err = s.history.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "distributor", Value: 1}, {Key: "sku", Value: 1}, {Key: "recorded_at", Value: 1}},
	})
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Op: "create_index", Err: err}
	}
	_, err = s.runLogs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "started_at", Value: -1}},
	})
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Op: "create_index", Err: err}
	}
	return nil
}

func (s *MongoStore) Name() string { return "mongodb" }

// Close disconnects the client.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// WithTx implements Store. The driver may re-run fn on transient errors.
func (s *MongoStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Op: "start_session", Err: err}
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(&mongoTx{store: s, sc: sc})
	})
	return err
}

// CreateRunLog implements Store.
func (s *MongoStore) CreateRunLog(ctx context.Context, log *types.RunLog) error {
	if _, err := s.runLogs.InsertOne(ctx, runLogToDoc(log)); err != nil {
		return &types.StorageError{Backend: s.Name(), Op: "create_run_log", Err: err}
	}
	return nil
}

// UpdateRunLog implements Store.
func (s *MongoStore) UpdateRunLog(ctx context.Context, log *types.RunLog) error {
	res, err := s.runLogs.ReplaceOne(ctx, bson.M{"_id": log.ID}, runLogToDoc(log))
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Op: "update_run_log", Err: err}
	}
	if res.MatchedCount == 0 {
		return &types.StorageError{Backend: s.Name(), Op: "update_run_log", Err: fmt.Errorf("run log %s: %w", log.ID, types.ErrNotFound)}
	}
	return nil
}

// RecentRunLogs implements Store.
func (s *MongoStore) RecentRunLogs(ctx context.Context, limit int) ([]*types.RunLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.runLogs.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, &types.StorageError{Backend: s.Name(), Op: "recent_run_logs", Err: err}
	}
	var docs []runLogDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, &types.StorageError{Backend: s.Name(), Op: "recent_run_logs", Err: err}
	}
	out := make([]*types.RunLog, len(docs))
	for i, d := range docs {
		out[i] = &types.RunLog{
			ID:              d.ID,
			RunID:           d.RunID,
			Distributor:     d.Distributor,
			Status:          types.RunLogStatus(d.Status),
			ProductsFound:   d.ProductsFound,
			ProductsUpdated: d.ProductsUpdated,
			ProductsNew:     d.ProductsNew,
			ErrorMessage:    d.ErrorMessage,
			StartedAt:       d.StartedAt,
			CompletedAt:     d.CompletedAt,
			Duration:        time.Duration(d.DurationMS) * time.Millisecond,
		}
	}
	return out, nil
}

// ProductHistory implements Store.
func (s *MongoStore) ProductHistory(ctx context.Context, distributor, sku string) ([]*types.HistoryEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "recorded_at", Value: 1}})
	cur, err := s.history.Find(ctx, bson.M{"distributor": distributor, "sku": sku}, opts)
	if err != nil {
		return nil, &types.StorageError{Backend: s.Name(), Op: "product_history", Err: err}
	}
	var docs []historyDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, &types.StorageError{Backend: s.Name(), Op: "product_history", Err: err}
	}
	out := make([]*types.HistoryEntry, len(docs))
	for i, d := range docs {
		out[i] = &types.HistoryEntry{
			ID:            d.ID,
			ProductID:     d.ProductID,
			Distributor:   d.Distributor,
			SKU:           d.SKU,
			PriceIncVAT:   fromDecimal128(d.PriceIncVAT),
			PriceExVAT:    fromDecimal128(d.PriceExVAT),
			StockStatus:   types.StockStatus(d.StockStatus),
			StockQuantity: d.StockQuantity,
			RecordedAt:    d.RecordedAt,
		}
	}
	return out, nil
}

type mongoTx struct {
	store *MongoStore
	sc    mongo.SessionContext
}

func (tx *mongoTx) GetProduct(ctx context.Context, sku, distributor string) (*types.StoredProduct, error) {
	var d productDoc
	err := tx.store.products.FindOne(tx.sc, bson.M{"sku": sku, "distributor": distributor}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("product %s/%s: %w", distributor, sku, types.ErrNotFound)
	}
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Op: "get_product", Err: err}
	}
	return &types.StoredProduct{
		ID:            d.ID,
		Distributor:   d.Distributor,
		SKU:           d.SKU,
		Name:          d.Name,
		Category:      d.Category,
		PriceIncVAT:   fromDecimal128(d.PriceIncVAT),
		PriceExVAT:    fromDecimal128(d.PriceExVAT),
		StockStatus:   types.StockStatus(d.StockStatus),
		StockQuantity: d.StockQuantity,
		Brand:         d.Brand,
		Description:   d.Description,
		URL:           d.URL,
		LastUpdated:   d.LastUpdated,
		CreatedAt:     d.CreatedAt,
	}, nil
}

func (tx *mongoTx) UpsertProduct(ctx context.Context, p *types.StoredProduct) error {
	d := productDoc{
		ID:            p.ID,
		SKU:           p.SKU,
		Distributor:   p.Distributor,
		Name:          p.Name,
		Category:      p.Category,
		PriceIncVAT:   toDecimal128(p.PriceIncVAT),
		PriceExVAT:    toDecimal128(p.PriceExVAT),
		StockStatus:   string(p.StockStatus),
		StockQuantity: types.CopyInt(p.StockQuantity),
		Brand:         p.Brand,
		Description:   p.Description,
		URL:           p.URL,
		LastUpdated:   p.LastUpdated,
		CreatedAt:     p.CreatedAt,
	}
	_, err := tx.store.products.ReplaceOne(tx.sc, bson.M{"_id": p.ID}, d, options.Replace().SetUpsert(true))
	if err != nil {
		return &types.StorageError{Backend: "mongodb", Op: "upsert_product", Err: err}
	}
	return nil
}

func (tx *mongoTx) AppendHistory(ctx context.Context, h *types.HistoryEntry) error {
	d := historyDoc{
		ID:            h.ID,
		ProductID:     h.ProductID,
		Distributor:   h.Distributor,
		SKU:           h.SKU,
		PriceIncVAT:   toDecimal128(h.PriceIncVAT),
		PriceExVAT:    toDecimal128(h.PriceExVAT),
		StockStatus:   string(h.StockStatus),
		StockQuantity: types.CopyInt(h.StockQuantity),
		RecordedAt:    h.RecordedAt,
	}
	if _, err := tx.store.history.InsertOne(tx.sc, d); err != nil {
		return &types.StorageError{Backend: "mongodb", Op: "append_history", Err: err}
	}
	return nil
}

func runLogToDoc(l *types.RunLog) runLogDoc {
	return runLogDoc{
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

func toDecimal128(d decimal.NullDecimal) *primitive.Decimal128 {
	if !d.Valid {
		return nil
	}
	v, err := primitive.ParseDecimal128(d.Decimal.StringFixed(2))
	if err != nil {
		return nil
	}
	return &v
}

func fromDecimal128(d *primitive.Decimal128) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	v, err := decimal.NewFromString(d.String())
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(v)
}
