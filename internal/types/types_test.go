package types

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestRunLogFinish(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)

	ok := &RunLog{Status: RunLogStarted, StartedAt: start}
	ok.Finish(end, nil)
	if ok.Status != RunLogCompleted || ok.Duration != 90*time.Second || ok.ErrorMessage != "" {
		t.Errorf("unexpected completed log: %+v", ok)
	}
	if ok.CompletedAt == nil || !ok.CompletedAt.Equal(end) {
		t.Errorf("completed_at = %v, want %v", ok.CompletedAt, end)
	}

	failed := &RunLog{Status: RunLogStarted, StartedAt: start}
	failed.Finish(end, &DistributorRunError{Distributor: "Miro", Err: errors.New("timeout")})
	if failed.Status != RunLogFailed {
		t.Errorf("expected failed status, got %s", failed.Status)
	}
	if failed.ErrorMessage != "distributor Miro failed: timeout" {
		t.Errorf("unexpected error message %q", failed.ErrorMessage)
	}
}

func TestEqualDecimal(t *testing.T) {
	a := decimal.NewNullDecimal(decimal.RequireFromString("173.90"))
	b := decimal.NewNullDecimal(decimal.RequireFromString("173.9"))
	null := decimal.NullDecimal{}

	if !EqualDecimal(a, b) {
		t.Error("173.90 and 173.9 should be equal")
	}
	if EqualDecimal(a, null) || EqualDecimal(null, a) {
		t.Error("value and null should differ")
	}
	if !EqualDecimal(null, null) {
		t.Error("two nulls should be equal")
	}
}

func TestEqualInt(t *testing.T) {
	if !EqualInt(nil, nil) || !EqualInt(IntPtr(3), IntPtr(3)) {
		t.Error("equal values reported different")
	}
	if EqualInt(IntPtr(3), nil) || EqualInt(IntPtr(3), IntPtr(4)) {
		t.Error("different values reported equal")
	}
}

func TestStoredProductClone(t *testing.T) {
	p := &StoredProduct{SKU: "A", Distributor: "Miro", StockQuantity: IntPtr(5)}
	c := p.Clone()
	*c.StockQuantity = 7
	if *p.StockQuantity != 5 {
		t.Error("clone shares stock quantity")
	}
	if c.Key() != (ProductKey{SKU: "A", Distributor: "Miro"}) {
		t.Errorf("unexpected key %+v", c.Key())
	}
}

func TestStockStatusValid(t *testing.T) {
	for _, s := range []StockStatus{StockInStock, StockLow, StockOutOfStock, StockNotifyMe, StockUnknown} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if StockStatus("Maybe").Valid() {
		t.Error("unknown status reported valid")
	}
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest("https://www.communica.co.za/products/abc")
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	if req.Domain() != "www.communica.co.za" {
		t.Errorf("unexpected domain %q", req.Domain())
	}

	for _, bad := range []string{"ftp://example.com", "://nope", "mailto:a@b.c"} {
		if _, err := NewRequest(bad); !errors.Is(err, ErrInvalidURL) {
			t.Errorf("NewRequest(%q) = %v, want ErrInvalidURL", bad, err)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("disk full")
	err := &DistributorRunError{
		Distributor: "Communica",
		Err:         &ReconciliationError{Distributor: "Communica", Err: &StorageError{Backend: "mysql", Op: "upsert_product", Err: inner}},
	}
	if !errors.Is(err, inner) {
		t.Error("wrapped error chain broken")
	}
	var serr *StorageError
	if !errors.As(err, &serr) || serr.Backend != "mysql" {
		t.Errorf("errors.As failed: %v", err)
	}
}
