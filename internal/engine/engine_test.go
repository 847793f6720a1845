package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/IshaanNene/StockGoat/internal/events"
	"github.com/IshaanNene/StockGoat/internal/extractor"
	"github.com/IshaanNene/StockGoat/internal/observability"
	"github.com/IshaanNene/StockGoat/internal/reconcile"
	"github.com/IshaanNene/StockGoat/internal/storage"
	"github.com/IshaanNene/StockGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// fakeExtractor serves a fixed product list from a single category.
type fakeExtractor struct {
	name     string
	products map[string]*types.CanonicalProduct
	fail     error
	panicMsg string
	block    chan struct{}
}

func (f *fakeExtractor) Name() string    { return f.name }
func (f *fakeExtractor) BaseURL() string { return "https://" + f.name + ".test/" }

func (f *fakeExtractor) DiscoverCategories(ctx context.Context) ([]string, error) {
	if f.block != nil {
		<-f.block
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.fail != nil {
		return nil, f.fail
	}
	return []string{f.BaseURL() + "category/all"}, nil
}

func (f *fakeExtractor) ListProducts(ctx context.Context, categoryURL string) ([]string, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	urls := make([]string, 0, len(f.products))
	for u := range f.products {
		urls = append(urls, u)
	}
	return urls, nil
}

func (f *fakeExtractor) ExtractProduct(ctx context.Context, productURL string) (*types.CanonicalProduct, error) {
	return f.products[productURL], nil
}

type fakeSource struct {
	extractors map[string]extractor.Extractor
	order      []string
}

func (s *fakeSource) Names() []string { return s.order }

func (s *fakeSource) Extractor(name string) (extractor.Extractor, error) {
	ex, ok := s.extractors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownDistributor, name)
	}
	return ex, nil
}

func newSource(exs ...*fakeExtractor) *fakeSource {
	s := &fakeSource{extractors: make(map[string]extractor.Extractor)}
	for _, ex := range exs {
		s.extractors[ex.name] = ex
		s.order = append(s.order, ex.name)
	}
	return s
}

func product(dist, sku, price string) *types.CanonicalProduct {
	return &types.CanonicalProduct{
		Distributor: dist,
		SKU:         sku,
		Name:        "Part " + sku,
		PriceIncVAT: decimal.NewNullDecimal(decimal.RequireFromString(price)),
		StockStatus: types.StockInStock,
	}
}

// recordingSink captures emitted event names.
type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Emit(name string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events.Event{Name: name, Payload: payload})
}

func (s *recordingSink) named(name string) []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Event
	for _, ev := range s.events {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func newEngine(t *testing.T, src Source, opts ...Option) (*Engine, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore(testLogger)
	e := New(src, reconcile.NewEngine(store, testLogger), store, testLogger, opts...)
	t.Cleanup(e.Close)
	return e, store
}

func TestRunCompletes(t *testing.T) {
	communica := &fakeExtractor{name: "Communica", products: map[string]*types.CanonicalProduct{
		"https://communica.test/p/1": product("Communica", "C-1", "10"),
		"https://communica.test/p/2": product("Communica", "C-2", "20"),
	}}
	miro := &fakeExtractor{name: "Miro", products: map[string]*types.CanonicalProduct{
		"https://miro.test/p/1": product("Miro", "M-1", "30"),
	}}
	sink := &recordingSink{}
	e, store := newEngine(t, newSource(communica, miro), WithSink(sink))

	runID, err := e.Start(nil)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	e.Wait()

	st := e.Status()
	if st.Running || st.Progress != 100 || st.RunID != runID {
		t.Errorf("unexpected final status: %+v", st)
	}
	if st.TotalProducts != 3 || st.TotalNew != 3 || st.TotalUpdated != 0 {
		t.Errorf("unexpected totals: %+v", st)
	}
	if st.EndTime == nil {
		t.Error("expected end time")
	}
	if e.State() != StateCompleted {
		t.Errorf("expected completed state, got %s", e.State())
	}
	if n := len(store.Products()); n != 3 {
		t.Errorf("expected 3 stored products, got %d", n)
	}

	logs, _ := store.RecentRunLogs(context.Background(), 10)
	if len(logs) != 2 {
		t.Fatalf("expected 2 run logs, got %d", len(logs))
	}
	for _, l := range logs {
		if l.Status != types.RunLogCompleted || l.RunID != runID || l.CompletedAt == nil {
			t.Errorf("unexpected run log: %+v", l)
		}
	}

	if n := len(sink.named(events.DistributorCompleted)); n != 2 {
		t.Errorf("expected 2 distributor_completed events, got %d", n)
	}
	done := sink.named(events.ScrapingCompleted)
	if len(done) != 1 {
		t.Fatalf("expected 1 scraping_completed event, got %d", len(done))
	}
	if totals := done[0].Payload.(events.RunTotals); totals.TotalNew != 3 {
		t.Errorf("unexpected totals payload: %+v", totals)
	}
}

func TestSecondRunUpdates(t *testing.T) {
	ex := &fakeExtractor{name: "Communica", products: map[string]*types.CanonicalProduct{
		"https://communica.test/p/1": product("Communica", "ABC-1", "199.99"),
	}}
	e, store := newEngine(t, newSource(ex))

	if _, err := e.Start([]string{"Communica"}); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	e.Wait()

	ex.products["https://communica.test/p/1"] = product("Communica", "ABC-1", "249.99")
	if _, err := e.Start([]string{"Communica"}); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	e.Wait()

	st := e.Status()
	if st.TotalNew != 0 || st.TotalUpdated != 1 {
		t.Errorf("expected 0 new 1 updated, got %+v", st)
	}
	if store.HistoryCount() != 2 {
		t.Errorf("expected 2 history entries, got %d", store.HistoryCount())
	}
}

func TestStartWhileRunningIsRejected(t *testing.T) {
	block := make(chan struct{})
	slow := &fakeExtractor{name: "Communica", block: block}
	e, _ := newEngine(t, newSource(slow))

	if _, err := e.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	before := e.Status()
	if !before.Running {
		t.Fatal("expected running status")
	}

	_, err := e.Start(nil)
	if !errors.Is(err, types.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	after := e.Status()
	if after.RunID != before.RunID || after.Progress != before.Progress || !after.Running {
		t.Errorf("rejected start changed status: %+v -> %+v", before, after)
	}

	close(block)
	e.Wait()
	if e.Running() {
		t.Error("expected run to finish")
	}
}

func TestFailingDistributorDoesNotStopRun(t *testing.T) {
	broken := &fakeExtractor{name: "MicroRobotics", fail: errors.New("connection refused")}
	ok := &fakeExtractor{name: "Miro", products: map[string]*types.CanonicalProduct{
		"https://miro.test/p/1": product("Miro", "M-1", "30"),
	}}
	sink := &recordingSink{}
	e, store := newEngine(t, newSource(broken, ok), WithSink(sink))

	if _, err := e.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	e.Wait()

	st := e.Status()
	if st.Running || st.Progress != 100 {
		t.Errorf("expected finished run at 100%%, got %+v", st)
	}
	if st.Error == "" {
		t.Error("expected status error to be recorded")
	}
	if e.State() != StateCompleted {
		t.Errorf("expected completed state, got %s", e.State())
	}

	logs, _ := store.RecentRunLogs(context.Background(), 10)
	statuses := map[string]types.RunLogStatus{}
	for _, l := range logs {
		statuses[l.Distributor] = l.Status
	}
	if statuses["MicroRobotics"] != types.RunLogFailed {
		t.Errorf("expected failed run log, got %s", statuses["MicroRobotics"])
	}
	if statuses["Miro"] != types.RunLogCompleted {
		t.Errorf("expected completed run log, got %s", statuses["Miro"])
	}

	errs := sink.named(events.ScrapingError)
	if len(errs) != 1 || errs[0].Payload.(events.DistributorFailure).Distributor != "MicroRobotics" {
		t.Errorf("unexpected error events: %+v", errs)
	}
}

func TestPanickingExtractor(t *testing.T) {
	crashy := &fakeExtractor{name: "Communica", panicMsg: "nil map write"}
	e, store := newEngine(t, newSource(crashy))

	if _, err := e.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	e.Wait()

	st := e.Status()
	if st.Running || st.Progress != 100 {
		t.Errorf("expected finished run at 100%%, got %+v", st)
	}
	logs, _ := store.RecentRunLogs(context.Background(), 1)
	if len(logs) != 1 || logs[0].Status != types.RunLogFailed {
		t.Fatalf("expected a failed run log, got %+v", logs)
	}
	if logs[0].ErrorMessage == "" {
		t.Error("expected error message in run log")
	}
}

type failingReconciler struct{}

func (failingReconciler) Apply(ctx context.Context, distributor string, records []*types.CanonicalProduct) (reconcile.Result, error) {
	return reconcile.Result{}, &types.ReconciliationError{Distributor: distributor, Err: errors.New("deadlock")}
}

func TestReconciliationFailureMarksDistributorFailed(t *testing.T) {
	ex := &fakeExtractor{name: "Miro", products: map[string]*types.CanonicalProduct{
		"https://miro.test/p/1": product("Miro", "M-1", "30"),
	}}
	store := storage.NewMemoryStore(testLogger)
	e := New(newSource(ex), failingReconciler{}, store, testLogger)
	defer e.Close()

	if _, err := e.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	e.Wait()

	logs, _ := store.RecentRunLogs(context.Background(), 1)
	if len(logs) != 1 || logs[0].Status != types.RunLogFailed {
		t.Fatalf("expected failed run log, got %+v", logs)
	}
	if logs[0].ProductsFound != 1 {
		t.Errorf("expected found count to survive failure, got %d", logs[0].ProductsFound)
	}
}

func TestUnknownDistributorRejected(t *testing.T) {
	e, _ := newEngine(t, newSource(&fakeExtractor{name: "Miro"}))

	_, err := e.Start([]string{"Nope"})
	if !errors.Is(err, types.ErrUnknownDistributor) {
		t.Fatalf("expected ErrUnknownDistributor, got %v", err)
	}
	if e.Running() {
		t.Error("rejected start left engine running")
	}
	if e.State() != StateIdle {
		t.Errorf("expected idle state, got %s", e.State())
	}
}

func TestStateString(t *testing.T) {
	tests := map[State]string{
		StateIdle:      "idle",
		StateRunning:   "running",
		StateCompleted: "completed",
		StateFailed:    "failed",
		State(42):      "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", s, got, want)
		}
	}
}

func TestProgressReportedBeforeEachDistributor(t *testing.T) {
	a := &fakeExtractor{name: "Communica"}
	b := &fakeExtractor{name: "MicroRobotics"}
	c := &fakeExtractor{name: "Miro"}
	sink := &recordingSink{}
	e, _ := newEngine(t, newSource(a, b, c), WithSink(sink))

	if _, err := e.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	e.Wait()

	want := map[string]int{"Communica": 0, "MicroRobotics": 33, "Miro": 66}
	seen := 0
	for _, ev := range sink.named(events.ScrapingProgress) {
		st := ev.Payload.(types.RunStatus)
		if st.CurrentDistributor == "" {
			continue
		}
		seen++
		if st.Progress != want[st.CurrentDistributor] {
			t.Errorf("%s: progress %d, want %d", st.CurrentDistributor, st.Progress, want[st.CurrentDistributor])
		}
	}
	if seen != 3 {
		t.Errorf("expected 3 per-distributor progress events, got %d", seen)
	}
	if st := e.Status(); st.Progress != 100 {
		t.Errorf("final progress %d, want 100", st.Progress)
	}
}

func runningGauge(t *testing.T, m *observability.Metrics) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "stockgoat_run_in_progress" {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatal("run_in_progress gauge not registered")
	return 0
}

func TestRunningGaugeFollowsRuns(t *testing.T) {
	block := make(chan struct{})
	ex := &fakeExtractor{name: "Communica", block: block}
	m := observability.NewMetrics(testLogger)
	e, _ := newEngine(t, newSource(ex), WithMetrics(m))

	if _, err := e.Start(nil); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if v := runningGauge(t, m); v != 1 {
		t.Errorf("gauge during run = %v, want 1", v)
	}
	close(block)
	e.Wait()
	if v := runningGauge(t, m); v != 0 {
		t.Errorf("gauge after run = %v, want 0", v)
	}

	ex.block = make(chan struct{})
	if _, err := e.Start(nil); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if v := runningGauge(t, m); v != 1 {
		t.Errorf("gauge during second run = %v, want 1", v)
	}
	close(ex.block)
	e.Wait()
}
