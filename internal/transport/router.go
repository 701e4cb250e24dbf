// Package transport serves run results over a read-only JSON API. It is the
// dashboard backend: everything it returns comes straight from the store,
// nothing is recomputed beyond summary statistics.
package transport

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"mktlab/internal/stats"
	"mktlab/internal/storage"
	"mktlab/pkg/contracts/domain"
)

// NewRouter builds the API router over the store.
func NewRouter(store *storage.Store, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{store: store, logger: logger}
	m := newMetrics()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(m.instrument)
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/healthz", h.health)
	r.Method(http.MethodGet, "/metrics", m.handler())
	r.Route("/api", func(r chi.Router) {
		r.Get("/runs/latest", h.latestRun)
		r.Get("/equity", h.equity)
		r.Get("/trades", h.trades)
		r.Get("/positions", h.positions)
		r.Get("/stats", h.stats)
	})
	return r
}

type handler struct {
	store  *storage.Store
	logger *slog.Logger
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (h *handler) latestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.LatestRun(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, run)
}

func (h *handler) equity(w http.ResponseWriter, r *http.Request) {
	curve, err := h.store.EquityCurve(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, curve)
}

func (h *handler) trades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.store.Trades(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, trades)
}

// positions returns the snapshot for ?date=YYYY-MM-DD, defaulting to the
// latest run's as-of date.
func (h *handler) positions(w http.ResponseWriter, r *http.Request) {
	date, err := h.resolveDate(r)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	positions, err := h.store.PositionsOn(r.Context(), date)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, positions)
}

func (h *handler) resolveDate(r *http.Request) (time.Time, error) {
	if raw := r.URL.Query().Get("date"); raw != "" {
		date, err := time.Parse(domain.DateFormat, raw)
		if err != nil {
			return time.Time{}, errBadDate
		}
		return date, nil
	}
	run, err := h.store.LatestRun(r.Context())
	if err != nil {
		return time.Time{}, err
	}
	return run.AsOfDate, nil
}

// statsResponse mirrors stats.Summary with nullable metrics: NaN is not
// representable in JSON, so undefined metrics serialize as null.
type statsResponse struct {
	StartEquity float64  `json:"start_equity"`
	EndEquity   float64  `json:"end_equity"`
	Years       float64  `json:"years"`
	CAGR        *float64 `json:"cagr"`
	Volatility  *float64 `json:"volatility"`
	MaxDrawdown *float64 `json:"max_drawdown"`
	TradingDays int      `json:"trading_days"`
}

func (h *handler) stats(w http.ResponseWriter, r *http.Request) {
	curve, err := h.store.EquityCurve(r.Context())
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	s := stats.Summarize(curve)
	render.JSON(w, r, statsResponse{
		StartEquity: s.StartEquity,
		EndEquity:   s.EndEquity,
		Years:       s.Years,
		CAGR:        nullable(s.CAGR),
		Volatility:  nullable(s.Volatility),
		MaxDrawdown: nullable(s.MaxDrawdown),
		TradingDays: s.TradingDays,
	})
}

var errBadDate = errors.New("date must be YYYY-MM-DD")

func (h *handler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNoRuns):
		status = http.StatusNotFound
	case errors.Is(err, errBadDate):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": err.Error()})
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
