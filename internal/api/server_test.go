package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/IshaanNene/StockGoat/internal/observability"
	"github.com/IshaanNene/StockGoat/internal/storage"
	"github.com/IshaanNene/StockGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeController struct {
	running bool
	started [][]string
}

func (f *fakeController) Start(names []string) (string, error) {
	if f.running {
		return "", types.ErrRunInProgress
	}
	for _, n := range names {
		if n == "Nope" {
			return "", fmt.Errorf("%w: %q", types.ErrUnknownDistributor, n)
		}
	}
	f.running = true
	f.started = append(f.started, names)
	return "run-42", nil
}

func (f *fakeController) Status() types.RunStatus {
	return types.RunStatus{Running: f.running, RunID: "run-42", Progress: 50, CurrentDistributor: "Miro"}
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeController, *storage.MemoryStore) {
	t.Helper()
	ctrl := &fakeController{}
	store := storage.NewMemoryStore(testLogger)
	metrics := observability.NewMetrics(testLogger)
	metrics.RunRequested(true)

	s := NewServer(0, ctrl, store, testLogger, WithMetrics("/metrics", metrics.Handler()))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, ctrl, store
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/health")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" || body["storage"] != "memory" {
		t.Errorf("unexpected health response %d %v", resp.StatusCode, body)
	}
}

func TestStartAndConflict(t *testing.T) {
	srv, ctrl, _ := newTestServer(t)

	resp := post(t, srv.URL+"/api/scraping/start", `{"distributors":["Communica"]}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["run_id"] != "run-42" {
		t.Errorf("unexpected body: %v", body)
	}
	if len(ctrl.started) != 1 || ctrl.started[0][0] != "Communica" {
		t.Errorf("unexpected start calls: %v", ctrl.started)
	}

	resp2 := post(t, srv.URL+"/api/scraping/start", "")
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 while running, got %d", resp2.StatusCode)
	}
}

func TestStartEmptyBody(t *testing.T) {
	srv, ctrl, _ := newTestServer(t)
	resp := post(t, srv.URL+"/api/scraping/start", "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	if len(ctrl.started) != 1 || len(ctrl.started[0]) != 0 {
		t.Errorf("expected a start with no names, got %v", ctrl.started)
	}
}

func TestStartBadRequests(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := post(t, srv.URL+"/api/scraping/start", `{"distributors":`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid JSON, got %d", resp.StatusCode)
	}

	resp = post(t, srv.URL+"/api/scraping/start", `{"distributors":["Nope"]}`)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown distributor, got %d", resp.StatusCode)
	}
}

func TestStatus(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/scraping/status")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var st types.RunStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if st.Progress != 50 || st.CurrentDistributor != "Miro" {
		t.Errorf("unexpected status: %+v", st)
	}
}

func TestLogs(t *testing.T) {
	srv, _, store := newTestServer(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		store.CreateRunLog(ctx, &types.RunLog{
			ID:          fmt.Sprintf("log-%d", i),
			Distributor: "Miro",
			Status:      types.RunLogCompleted,
			StartedAt:   base.Add(time.Duration(i) * time.Hour),
		})
	}

	resp, err := http.Get(srv.URL + "/api/scraping/logs?limit=2")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var logs []types.RunLog
	if err := json.NewDecoder(resp.Body).Decode(&logs); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(logs) != 2 || logs[0].ID != "log-2" {
		t.Errorf("expected 2 newest logs, got %+v", logs)
	}

	bad, _ := http.Get(srv.URL + "/api/scraping/logs?limit=abc")
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", bad.StatusCode)
	}
}

func TestLogsEmptyIsArray(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/scraping/logs")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(raw)) != "[]" {
		t.Errorf("expected empty array, got %s", raw)
	}
}

func TestHistory(t *testing.T) {
	srv, _, store := newTestServer(t)
	ctx := context.Background()
	err := store.WithTx(ctx, func(tx storage.Tx) error {
		return tx.AppendHistory(ctx, &types.HistoryEntry{
			ID:          "h1",
			ProductID:   "p1",
			Distributor: "Communica",
			SKU:         "ABC-1",
			PriceIncVAT: decimal.NewNullDecimal(decimal.RequireFromString("199.99")),
			StockStatus: types.StockInStock,
			RecordedAt:  time.Now(),
		})
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/products/Communica/ABC-1/history")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(raw), `"price_inc_vat":"199.99"`) {
		t.Errorf("unexpected response %d: %s", resp.StatusCode, raw)
	}

	missing, _ := http.Get(srv.URL + "/api/products/Communica/NOPE/history")
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", missing.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(raw), "stockgoat_runs_total") {
		t.Errorf("metrics output missing runs counter: %s", raw)
	}
}
