package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockStatus is the normalized availability of a product.
type StockStatus string

const (
	StockInStock    StockStatus = "In Stock"
	StockLow        StockStatus = "Low Stock"
	StockOutOfStock StockStatus = "Out of Stock"
	StockNotifyMe   StockStatus = "Notify Me"
	StockUnknown    StockStatus = "Unknown"
)

// Valid reports whether s is one of the known statuses.
func (s StockStatus) Valid() bool {
	switch s {
	case StockInStock, StockLow, StockOutOfStock, StockNotifyMe, StockUnknown:
		return true
	}
	return false
}

// MaxDescriptionLen is the number of characters kept from a product description.
const MaxDescriptionLen = 500

// CanonicalProduct is one normalized product record produced by a single scrape.
// It is built once by an extractor and never modified afterwards.
type CanonicalProduct struct {
	Distributor   string
	SKU           string
	Name          string
	Category      string
	PriceIncVAT   decimal.NullDecimal
	PriceExVAT    decimal.NullDecimal
	StockStatus   StockStatus
	StockQuantity *int
	Brand         string
	Description   string
	URL           string
	ExtractedAt   time.Time
}

// StoredProduct is the persistent state for one (SKU, distributor) identity.
type StoredProduct struct {
	ID            string
	Distributor   string
	SKU           string
	Name          string
	Category      string
	PriceIncVAT   decimal.NullDecimal
	PriceExVAT    decimal.NullDecimal
	StockStatus   StockStatus
	StockQuantity *int
	Brand         string
	Description   string
	URL           string
	LastUpdated   time.Time
	CreatedAt     time.Time
}

// Key returns the identity of the product.
func (p *StoredProduct) Key() ProductKey {
	return ProductKey{SKU: p.SKU, Distributor: p.Distributor}
}

// Clone returns a copy that shares no pointers with p.
func (p *StoredProduct) Clone() *StoredProduct {
	c := *p
	c.StockQuantity = CopyInt(p.StockQuantity)
	return &c
}

// ProductKey identifies a StoredProduct. SKUs are only unique per distributor.
type ProductKey struct {
	SKU         string
	Distributor string
}

// HistoryEntry is an append-only snapshot of a product's price and stock fields.
type HistoryEntry struct {
	ID            string
	ProductID     string
	Distributor   string
	SKU           string
	PriceIncVAT   decimal.NullDecimal
	PriceExVAT    decimal.NullDecimal
	StockStatus   StockStatus
	StockQuantity *int
	RecordedAt    time.Time
}

// CopyInt returns a fresh pointer holding the same value, or nil.
func CopyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// EqualInt compares two optional integers.
func EqualInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// EqualDecimal compares two optional decimals by value.
func EqualDecimal(a, b decimal.NullDecimal) bool {
	if !a.Valid || !b.Valid {
		return a.Valid == b.Valid
	}
	return a.Decimal.Equal(b.Decimal)
}
