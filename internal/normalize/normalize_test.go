package normalize

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/IshaanNene/StockGoat/internal/types"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// --- Price Tests ---

func TestExtractPriceNoTokens(t *testing.T) {
	for _, text := range []string{"", "R", "Call for price", "ZAR -", "   "} {
		inc, ex := ExtractPrice(text)
		if inc.Valid || ex.Valid {
			t.Errorf("ExtractPrice(%q) = (%v, %v), want both absent", text, inc, ex)
		}
	}
}

func TestExtractPriceSingleToken(t *testing.T) {
	tests := []struct {
		text    string
		inc, ex string
	}{
		{"R199.99", "199.99", "173.90"},
		{"R249.99", "249.99", "217.38"},
		{"R1,150.00", "1150", "1000"},
		{"ZAR 23", "23", "20"},
		{"Price: R 11.50", "11.50", "10"},
		{"R1 299.00", "1299", "1129.57"},
		{"R1\u00a0299.00", "1299", "1129.57"},
		{"R1\u202f299.00", "1299", "1129.57"},
		{"R12 345 678.90", "12345678.90", "10735372.96"},
	}

	for _, tt := range tests {
		inc, ex := ExtractPrice(tt.text)
		if !inc.Valid || !inc.Decimal.Equal(dec(tt.inc)) {
			t.Errorf("%q: inc = %v, want %s", tt.text, inc.Decimal, tt.inc)
		}
		if !ex.Valid || !ex.Decimal.Equal(dec(tt.ex)) {
			t.Errorf("%q: ex = %v, want %s", tt.text, ex.Decimal, tt.ex)
		}
	}
}

func TestExtractPriceSingleTokenMatchesRounding(t *testing.T) {
	for _, p := range []string{"0.01", "1", "9.99", "123.45", "99999.99"} {
		inc, ex := ExtractPrice("R" + p)
		want := dec(p).Div(dec("1.15")).Round(2)
		if !inc.Decimal.Equal(dec(p)) || !ex.Decimal.Equal(want) {
			t.Errorf("R%s: got (%s, %s), want (%s, %s)", p, inc.Decimal, ex.Decimal, p, want)
		}
	}
}

func TestExtractPriceTwoTokens(t *testing.T) {
	inc, ex := ExtractPrice("R100.00 Excl. VAT R115.00 Incl. VAT")
	if !inc.Decimal.Equal(dec("115")) {
		t.Errorf("inc = %s, want 115", inc.Decimal)
	}
	if !ex.Decimal.Equal(dec("100")) {
		t.Errorf("ex = %s, want 100", ex.Decimal)
	}

	inc, ex = ExtractPrice("R173.90 R199.99")
	if !inc.Decimal.Equal(dec("199.99")) || !ex.Decimal.Equal(dec("173.90")) {
		t.Errorf("space-separated prices merged: got (%s, %s)", inc.Decimal, ex.Decimal)
	}

	inc, ex = ExtractPrice("R1 299.00 R1 494.90")
	if !inc.Decimal.Equal(dec("1494.90")) || !ex.Decimal.Equal(dec("1299")) {
		t.Errorf("grouped prices: got (%s, %s), want (1494.90, 1299)", inc.Decimal, ex.Decimal)
	}

	inc, ex = ExtractPrice("R90 R103")
	if !inc.Decimal.Equal(dec("103")) || !ex.Decimal.Equal(dec("90")) {
		t.Errorf("adjacent integer prices merged: got (%s, %s)", inc.Decimal, ex.Decimal)
	}

	// No validation that inclusive >= exclusive.
	inc, ex = ExtractPrice("R50 R40 R30")
	if !inc.Decimal.Equal(dec("40")) || !ex.Decimal.Equal(dec("50")) {
		t.Errorf("got (%s, %s), want (40, 50)", inc.Decimal, ex.Decimal)
	}
}

func TestExtractPriceCustomVAT(t *testing.T) {
	_, ex := ExtractPriceWithVAT("R120", dec("0.2"))
	if !ex.Decimal.Equal(dec("100")) {
		t.Errorf("ex = %s, want 100", ex.Decimal)
	}
}

// --- Stock Tests ---

func TestClassifyStock(t *testing.T) {
	tests := []struct {
		text string
		qty  *int
		want types.StockStatus
	}{
		{"In Stock", nil, types.StockInStock},
		{"in stock", types.IntPtr(50), types.StockInStock},
		{"In Stock", types.IntPtr(3), types.StockLow},
		{"Available", nil, types.StockInStock},
		{"Unavailable", nil, types.StockOutOfStock},
		{"Out of Stock", nil, types.StockOutOfStock},
		{"SOLD OUT", nil, types.StockOutOfStock},
		{"Notify Me", nil, types.StockNotifyMe},
		{"On backorder", nil, types.StockNotifyMe},
		{"Pre-order now", nil, types.StockNotifyMe},
		{"Stock: 4", types.IntPtr(4), types.StockLow},
		{"Qty 25", types.IntPtr(25), types.StockInStock},
		{"Qty 0", types.IntPtr(0), types.StockOutOfStock},
		{"mystery", nil, types.StockOutOfStock},
		{"", types.IntPtr(12), types.StockInStock},
		{"", nil, types.StockUnknown},
		{"   ", nil, types.StockUnknown},
	}

	for _, tt := range tests {
		got := ClassifyStock(tt.text, tt.qty)
		if got != tt.want {
			t.Errorf("ClassifyStock(%q, %v) = %q, want %q", tt.text, tt.qty, got, tt.want)
		}
	}
}

func TestClassifyStockIdempotent(t *testing.T) {
	inputs := []string{"In Stock", "Only 3 left in stock", "Notify", "", "Backorder"}
	for _, text := range inputs {
		q := ParseQuantity(text)
		first := ClassifyStock(text, q)
		for i := 0; i < 5; i++ {
			if got := ClassifyStock(text, q); got != first {
				t.Fatalf("ClassifyStock(%q) not stable: %q then %q", text, first, got)
			}
		}
	}
}

func TestParseQuantity(t *testing.T) {
	if q := ParseQuantity("Only 4 left"); q == nil || *q != 4 {
		t.Errorf("expected 4, got %v", q)
	}
	if q := ParseQuantity("In Stock"); q != nil {
		t.Errorf("expected nil, got %d", *q)
	}
}
