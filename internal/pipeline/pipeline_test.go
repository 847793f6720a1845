package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/IshaanNene/StockGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func rec(sku, name string) *types.CanonicalProduct {
	return &types.CanonicalProduct{Distributor: "Communica", SKU: sku, Name: name, URL: "https://example.com/" + sku}
}

func TestSanitizeMiddleware(t *testing.T) {
	m := NewSanitizeMiddleware()
	in := rec(" ABC-1 ", "<b>Arduino</b>  Uno &amp; cable")
	in.Description = strings.Repeat("x", 600)
	in.StockQuantity = types.IntPtr(3)

	out, err := m.Process(in)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if out.Name != "Arduino Uno & cable" {
		t.Errorf("unexpected name %q", out.Name)
	}
	if out.SKU != "ABC-1" {
		t.Errorf("unexpected sku %q", out.SKU)
	}
	if len(out.Description) != types.MaxDescriptionLen {
		t.Errorf("description not truncated: %d", len(out.Description))
	}
	if in.Name != "<b>Arduino</b>  Uno &amp; cable" {
		t.Error("input record was modified")
	}
	*out.StockQuantity = 99
	if *in.StockQuantity != 3 {
		t.Error("output shares quantity with input")
	}
}

func TestRequiredSKUMiddleware(t *testing.T) {
	m := &RequiredSKUMiddleware{}
	for _, sku := range []string{"", "N/A", "n/a"} {
		if out, _ := m.Process(rec(sku, "x")); out != nil {
			t.Errorf("sku %q should be dropped", sku)
		}
	}
	if out, _ := m.Process(rec("ABC-1", "x")); out == nil {
		t.Error("valid sku should pass")
	}
}

func TestDefaultPipeline(t *testing.T) {
	p := Default(testLogger)
	if p.Len() != 3 {
		t.Fatalf("expected 3 middleware, got %d", p.Len())
	}

	records := []*types.CanonicalProduct{
		rec("ABC-1", "Uno"),
		rec("N/A", "Mystery"),
		nil,
		rec("ABC-1", "Uno (other category)"),
		rec("XYZ-9", "Nano"),
	}
	out, dropped := p.ProcessAll(records)
	if len(out) != 2 || dropped != 3 {
		t.Fatalf("expected 2 kept 3 dropped, got %d kept %d dropped", len(out), dropped)
	}
	if out[0].Name != "Uno" || out[1].SKU != "XYZ-9" {
		t.Errorf("unexpected survivors: %+v, %+v", out[0], out[1])
	}

	// A second batch starts with a clean dedup set.
	out, _ = p.ProcessAll([]*types.CanonicalProduct{rec("ABC-1", "Uno")})
	if len(out) != 1 {
		t.Error("dedup state leaked across batches")
	}
}

type failingMiddleware struct{}

func (failingMiddleware) Name() string { return "failing" }

func (failingMiddleware) Process(*types.CanonicalProduct) (*types.CanonicalProduct, error) {
	return nil, errors.New("bad record")
}

func TestPipelineErrorDropsRecord(t *testing.T) {
	p := New(testLogger)
	p.Use(failingMiddleware{})

	_, err := p.Process(rec("A", "a"))
	var eerr *types.ExtractionError
	if !errors.As(err, &eerr) || eerr.Field != "failing" {
		t.Fatalf("expected ExtractionError from failing stage, got %v", err)
	}

	out, dropped := p.ProcessAll([]*types.CanonicalProduct{rec("A", "a")})
	if len(out) != 0 || dropped != 1 {
		t.Errorf("expected record to be dropped, got %d kept %d dropped", len(out), dropped)
	}
}
