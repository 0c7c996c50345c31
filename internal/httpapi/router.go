// Package httpapi is the read-only query surface plus the admin-gated
// start/stop controls, wired over chi the way aristath-sentinel wires its
// own HTTP router.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"stratexec/internal/ledger"
	"stratexec/internal/strategyrt"
)

// Store is the subset of the Ledger the HTTP surface reads through.
type Store interface {
	ListStrategies() ([]ledger.Strategy, error)
	GetStrategy(id string) (*ledger.Strategy, error)
	RunsByStrategy(strategyID string) ([]ledger.Run, error)
	GetRun(runID string) (*ledger.Run, error)
	TradesByRun(runID string) ([]ledger.Trade, error)
	Performance(strategyID string, r ledger.Range, runID string) ([]ledger.EquityPoint, []ledger.Trade, ledger.Summary, error)
}

// Config configures the router's admin gate.
type Config struct {
	AdminToken string // TRAD_ADMIN_TOKEN; empty disables start/stop unless DryRun
	DryRun     bool
}

// NewRouter builds the full chi router: open read endpoints plus
// admin-token-gated start/stop. When AdminToken is empty and DryRun is
// false, start/stop refuse every request — there is no implicit open
// control surface in a non-dry-run deployment.
func NewRouter(store Store, runtime *strategyrt.RuntimeHost, cfg Config, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	h := &handlers{store: store, runtime: runtime, cfg: cfg, log: log.With().Str("component", "httpapi").Logger()}

	r.Get("/strategies", h.listStrategies)
	r.Get("/strategies/{id}", h.getStrategy)
	r.Get("/strategies/{id}/runs", h.listRuns)
	r.Get("/strategies/{id}/performance", h.performance)
	r.Get("/strategies/{id}/logs", h.logs)
	r.Get("/runs/{id}", h.getRun)
	r.Get("/runs/{id}/trades", h.listTrades)

	r.Post("/strategies/{id}/start", h.requireAdmin(h.start))
	r.Post("/strategies/{id}/stop", h.requireAdmin(h.stop))

	return r
}

type handlers struct {
	store   Store
	runtime *strategyrt.RuntimeHost
	cfg     Config
	log     zerolog.Logger
}

func (h *handlers) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.cfg.DryRun {
			next(w, r)
			return
		}
		if h.cfg.AdminToken == "" {
			writeError(w, http.StatusForbidden, "admin surface disabled: TRAD_ADMIN_TOKEN is unset")
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+h.cfg.AdminToken {
			writeError(w, http.StatusUnauthorized, "missing or invalid admin token")
			return
		}
		next(w, r)
	}
}

func (h *handlers) listStrategies(w http.ResponseWriter, r *http.Request) {
	strategies, err := h.store.ListStrategies()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, strategies)
}

func (h *handlers) getStrategy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	strat, err := h.store.GetStrategy(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, strat)
}

func (h *handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	runs, err := h.store.RunsByStrategy(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *handlers) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := h.store.GetRun(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *handlers) listTrades(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	trades, err := h.store.TradesByRun(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (h *handlers) performance(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rng := ledger.Range(r.URL.Query().Get("range"))
	if rng == "" {
		rng = ledger.RangeAll
	}
	runID := r.URL.Query().Get("runId")

	curve, trades, summary, err := h.store.Performance(id, rng, runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"equityCurve": curve,
		"trades":      trades,
		"summary":     summary,
	})
}

func (h *handlers) logs(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entries, live := h.runtime.Logs(id)
	if !live {
		writeError(w, http.StatusNotFound, "strategy has no live run")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handlers) start(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.runtime.Start(r.Context(), id); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *handlers) stop(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.runtime.Stop(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
