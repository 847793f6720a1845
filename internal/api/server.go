package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/IshaanNene/StockGoat/internal/config"
	"github.com/IshaanNene/StockGoat/internal/storage"
	"github.com/IshaanNene/StockGoat/internal/types"
)

const defaultLogLimit = 50

// Controller is the interface the API uses to drive runs. *engine.Engine satisfies it.
type Controller interface {
	Start(names []string) (string, error)
	Status() types.RunStatus
}

// Server provides the HTTP control surface.
type Server struct {
	mux         *http.ServeMux
	srv         *http.Server
	port        int
	ctrl        Controller
	store       storage.Store
	ws          http.Handler
	metrics     http.Handler
	metricsPath string
	logger      *slog.Logger
}

// Option adds an optional endpoint.
type Option func(*Server)

// WithWebSocket serves h at /ws.
func WithWebSocket(h http.Handler) Option {
	return func(s *Server) { s.ws = h }
}

// WithMetrics serves h at path.
func WithMetrics(path string, h http.Handler) Option {
	return func(s *Server) {
		s.metricsPath = path
		s.metrics = h
	}
}

// NewServer creates a new API server.
func NewServer(port int, ctrl Controller, store storage.Store, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		mux:    http.NewServeMux(),
		port:   port,
		ctrl:   ctrl,
		store:  store,
		logger: logger.With("component", "api_server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// Handler returns the route multiplexer.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the API server in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	s.mux.HandleFunc("POST /api/scraping/start", s.handleStart)
	s.mux.HandleFunc("GET /api/scraping/status", s.handleStatus)
	s.mux.HandleFunc("GET /api/scraping/logs", s.handleLogs)

	s.mux.HandleFunc("GET /api/products/{distributor}/{sku}/history", s.handleHistory)

	if s.ws != nil {
		s.mux.Handle("GET /ws", s.ws)
	}
	if s.metrics != nil {
		path := s.metricsPath
		if path == "" {
			path = "/metrics"
		}
		s.mux.Handle("GET "+path, s.metrics)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
		"storage": s.store.Name(),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Distributors []string `json:"distributors"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	runID, err := s.ctrl.Start(body.Distributors)
	switch {
	case errors.Is(err, types.ErrRunInProgress):
		s.jsonResponse(w, http.StatusConflict, map[string]string{"error": "scraping already in progress"})
		return
	case errors.Is(err, types.ErrUnknownDistributor):
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	case err != nil:
		s.logger.Error("start failed", "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.jsonResponse(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"run_id": runID,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	logs, err := s.store.RecentRunLogs(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read run logs", "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "failed to read run logs"})
		return
	}
	if logs == nil {
		logs = []*types.RunLog{}
	}
	s.jsonResponse(w, http.StatusOK, logs)
}

type historyEntry struct {
	PriceIncVAT   *string   `json:"price_inc_vat"`
	PriceExVAT    *string   `json:"price_ex_vat"`
	StockStatus   string    `json:"stock_status"`
	StockQuantity *int      `json:"stock_quantity"`
	RecordedAt    time.Time `json:"recorded_at"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	distributor := r.PathValue("distributor")
	sku := r.PathValue("sku")

	entries, err := s.store.ProductHistory(r.Context(), distributor, sku)
	if err != nil {
		s.logger.Error("failed to read history", "distributor", distributor, "sku", sku, "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": "failed to read history"})
		return
	}
	if len(entries) == 0 {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}

	out := make([]historyEntry, len(entries))
	for i, h := range entries {
		out[i] = historyEntry{
			StockStatus:   string(h.StockStatus),
			StockQuantity: h.StockQuantity,
			RecordedAt:    h.RecordedAt,
		}
		if h.PriceIncVAT.Valid {
			v := h.PriceIncVAT.Decimal.StringFixed(2)
			out[i].PriceIncVAT = &v
		}
		if h.PriceExVAT.Valid {
			v := h.PriceExVAT.Decimal.StringFixed(2)
			out[i].PriceExVAT = &v
		}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"distributor": distributor,
		"sku":         sku,
		"history":     out,
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}
