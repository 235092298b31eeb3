package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/signalrun/internal/application/pipeline"
	"github.com/sawpanic/signalrun/internal/config"
	"github.com/sawpanic/signalrun/internal/domain/safety"
	"github.com/sawpanic/signalrun/internal/metrics"
	"github.com/sawpanic/signalrun/internal/paper"
	"github.com/sawpanic/signalrun/internal/persistence"
)

// PositionSource exposes the paper engine's book.
type PositionSource interface {
	Positions() []paper.Position
	Closed() []paper.ClosedTrade
}

// Handlers implements the endpoint bodies over the application services.
type Handlers struct {
	holder    *safety.Holder
	settings  *config.SettingsStore
	pipe      *pipeline.Pipeline
	positions PositionSource
	decisions persistence.DecisionsRepo
	metrics   *metrics.Registry
	hub       http.Handler
	startedAt time.Time
	version   string
}

// HandlersDeps bundles the handler dependencies. Positions, Decisions and
// Hub may be nil; their endpoints degrade gracefully.
type HandlersDeps struct {
	Holder    *safety.Holder
	Settings  *config.SettingsStore
	Pipeline  *pipeline.Pipeline
	Positions PositionSource
	Decisions persistence.DecisionsRepo
	Metrics   *metrics.Registry
	Hub       http.Handler
	Version   string
}

// NewHandlers creates the handler set.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		holder:    d.Holder,
		settings:  d.Settings,
		pipe:      d.Pipeline,
		positions: d.Positions,
		decisions: d.Decisions,
		metrics:   d.Metrics,
		hub:       d.Hub,
		startedAt: time.Now().UTC(),
		version:   d.Version,
	}
}

// WS returns the websocket handler, or 404 when no hub is wired.
func (h *Handlers) WS() http.Handler {
	if h.hub == nil {
		return http.NotFoundHandler()
	}
	return h.hub
}

// Metrics returns the Prometheus scrape handler.
func (h *Handlers) Metrics() http.Handler {
	if h.metrics == nil {
		return http.NotFoundHandler()
	}
	return h.metrics.Handler()
}

// Health reports process liveness and the connection summary.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	st := h.holder.Current()
	status := "healthy"
	if !st.Connected {
		status = "degraded"
	}
	body := map[string]any{
		"status":    status,
		"version":   h.version,
		"uptime":    time.Since(h.startedAt).Round(time.Second).String(),
		"connected": st.Connected,
		"timestamp": time.Now().UTC(),
	}
	if h.metrics != nil {
		if fams, err := h.metrics.Gather(); err == nil {
			body["cycles_total"] = metrics.CounterTotal(fams, "signalrun_cycles_total")
			body["rejections_total"] = metrics.CounterTotal(fams, "signalrun_rejections_total")
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// Safety returns the full current safety snapshot.
func (h *Handlers) Safety(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.holder.Current())
}

// GetSettings returns the live profile.
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.settings.Snapshot())
}

// UpdateSettings validates and applies a full replacement profile.
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var s config.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeError(w, http.StatusBadRequest, "invalid settings payload: "+err.Error())
		return
	}
	if err := h.settings.Update(s); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	log.Info().Msg("settings profile updated via api")
	writeJSON(w, http.StatusOK, h.settings.Snapshot())
}

// Scan runs one evaluation cycle for the symbol synchronously and returns
// its outcome. A rejection is a 200: it is a result, not an error.
func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol required")
		return
	}
	out := h.pipe.Evaluate(r.Context(), symbol)
	writeJSON(w, http.StatusOK, out)
}

// Positions returns the open paper positions and recent closed trades.
func (h *Handlers) Positions(w http.ResponseWriter, r *http.Request) {
	if h.positions == nil {
		writeJSON(w, http.StatusOK, map[string]any{"open": []any{}, "closed": []any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"open":   h.positions.Positions(),
		"closed": h.positions.Closed(),
	})
}

// Decisions returns the decision journal, optionally filtered by symbol.
func (h *Handlers) Decisions(w http.ResponseWriter, r *http.Request) {
	if h.decisions == nil {
		writeError(w, http.StatusServiceUnavailable, "decision journal not configured")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var (
		rows []persistence.Decision
		err  error
	)
	if symbol := r.URL.Query().Get("symbol"); symbol != "" {
		rows, err = h.decisions.ListBySymbol(r.Context(), symbol, limit)
	} else {
		rows, err = h.decisions.ListRecent(r.Context(), limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "journal query failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": rows, "count": len(rows)})
}

// NotFound is the JSON 404 handler.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found: "+r.URL.Path)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
