package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/chrissnell/pondroute/internal/scenario"
	"github.com/chrissnell/pondroute/internal/store"
	"github.com/chrissnell/pondroute/pkg/config"
	"github.com/chrissnell/pondroute/pkg/responseformat"
	"github.com/chrissnell/pondroute/pkg/routing"
	"github.com/chrissnell/pondroute/pkg/units"
)

var errStoreDisabled = errors.New("run archive is not enabled")

// Handlers contains all HTTP handlers for the server
type Handlers struct {
	server    *Server
	formatter *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(s *Server) *Handlers {
	return &Handlers{
		server:    s,
		formatter: responseformat.NewFormatter(),
	}
}

// RouteResponse is returned for each routed scenario
type RouteResponse struct {
	RunID   string           `json:"run_id,omitempty"`
	Summary scenario.Summary `json:"summary"`
	Result  *routing.Result  `json:"result"`
}

// SweepRequest routes several scenarios in one call
type SweepRequest struct {
	Scenarios []*config.ScenarioData `json:"scenarios"`
}

// Health reports liveness
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.formatter.WriteResponse(w, r, map[string]string{"status": "ok"}, nil)
}

// RouteScenario routes the scenario document in the request body
func (h *Handlers) RouteScenario(w http.ResponseWriter, r *http.Request) {
	save, err := h.wantsSave(r)
	if err != nil {
		h.formatter.WriteError(w, r, http.StatusBadRequest, "Invalid save parameter", err)
		return
	}

	var s config.ScenarioData
	if err := decodeBody(w, r, &s); err != nil {
		h.formatter.WriteError(w, r, http.StatusBadRequest, "Invalid scenario document", err)
		return
	}

	result, err := h.server.runner.Run(&s)
	if err != nil {
		h.formatter.WriteError(w, r, http.StatusBadRequest, "Routing failed", err)
		return
	}

	resp, status, err := h.respond(r, &s, result, save)
	if err != nil {
		h.formatter.WriteError(w, r, status, "Failed to archive run", err)
		return
	}
	h.formatter.WriteResponse(w, r, resp, nil)
}

// SweepScenarios routes a batch of scenarios concurrently
func (h *Handlers) SweepScenarios(w http.ResponseWriter, r *http.Request) {
	save, err := h.wantsSave(r)
	if err != nil {
		h.formatter.WriteError(w, r, http.StatusBadRequest, "Invalid save parameter", err)
		return
	}

	var req SweepRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.formatter.WriteError(w, r, http.StatusBadRequest, "Invalid sweep document", err)
		return
	}
	if len(req.Scenarios) == 0 {
		h.formatter.WriteError(w, r, http.StatusBadRequest, "Sweep has no scenarios", nil)
		return
	}
	for i, s := range req.Scenarios {
		if s == nil {
			h.formatter.WriteError(w, r, http.StatusBadRequest, "Invalid sweep document", fmt.Errorf("scenario %d is null", i))
			return
		}
	}

	results, err := h.server.runner.RunAll(r.Context(), req.Scenarios, h.server.cfg.Workers)
	if err != nil {
		h.formatter.WriteError(w, r, http.StatusBadRequest, "Routing failed", err)
		return
	}

	out := make([]RouteResponse, len(results))
	for i, res := range results {
		resp, status, err := h.respond(r, req.Scenarios[i], res, save)
		if err != nil {
			h.formatter.WriteError(w, r, status, "Failed to archive run", err)
			return
		}
		out[i] = resp
	}
	h.formatter.WriteResponse(w, r, out, nil)
}

// ListRuns returns archived run summaries, newest first
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	st := h.server.store
	if st == nil {
		h.formatter.WriteError(w, r, http.StatusServiceUnavailable, "Run archive unavailable", errStoreDisabled)
		return
	}

	limit := DefaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			h.formatter.WriteError(w, r, http.StatusBadRequest, "Invalid limit parameter", fmt.Errorf("limit must be a positive integer, got %q", v))
			return
		}
		limit = n
	}

	runs, err := st.ListRuns(r.Context(), limit)
	if err != nil {
		h.storeFailed()
		h.formatter.WriteError(w, r, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	h.formatter.WriteResponse(w, r, runs, nil)
}

// GetRun returns one archived run with its scenario and full result
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	st := h.server.store
	if st == nil {
		h.formatter.WriteError(w, r, http.StatusServiceUnavailable, "Run archive unavailable", errStoreDisabled)
		return
	}

	run, err := st.GetRun(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrRunNotFound) {
		h.formatter.WriteError(w, r, http.StatusNotFound, "Run not found", err)
		return
	}
	if err != nil {
		h.storeFailed()
		h.formatter.WriteError(w, r, http.StatusInternalServerError, "Failed to load run", err)
		return
	}
	h.formatter.WriteResponse(w, r, run, nil)
}

// DeleteRun removes an archived run
func (h *Handlers) DeleteRun(w http.ResponseWriter, r *http.Request) {
	st := h.server.store
	if st == nil {
		h.formatter.WriteError(w, r, http.StatusServiceUnavailable, "Run archive unavailable", errStoreDisabled)
		return
	}

	err := st.DeleteRun(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, store.ErrRunNotFound) {
		h.formatter.WriteError(w, r, http.StatusNotFound, "Run not found", err)
		return
	}
	if err != nil {
		h.storeFailed()
		h.formatter.WriteError(w, r, http.StatusInternalServerError, "Failed to delete run", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respond summarizes a result and archives it when save is set. The returned
// status is meaningful only with a non-nil error.
func (h *Handlers) respond(r *http.Request, s *config.ScenarioData, result *routing.Result, save bool) (RouteResponse, int, error) {
	ctx, err := units.NewContext(s.Units)
	if err != nil {
		return RouteResponse{}, http.StatusBadRequest, err
	}
	summary, err := scenario.Summarize(s.Name, ctx, result)
	if err != nil {
		return RouteResponse{}, http.StatusInternalServerError, err
	}
	resp := RouteResponse{Summary: summary, Result: result}

	if !save {
		return resp, 0, nil
	}
	st := h.server.store
	if st == nil {
		return RouteResponse{}, http.StatusServiceUnavailable, errStoreDisabled
	}
	run, err := st.SaveRun(r.Context(), s.Name, s, result)
	if err != nil {
		h.storeFailed()
		return RouteResponse{}, http.StatusInternalServerError, err
	}
	if m := h.server.metrics; m != nil {
		m.RunsStored.Inc()
	}
	resp.RunID = run.ID
	return resp, 0, nil
}

func (h *Handlers) wantsSave(r *http.Request) (bool, error) {
	v := r.URL.Query().Get("save")
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}

func (h *Handlers) storeFailed() {
	if m := h.server.metrics; m != nil {
		m.StoreErrors.Inc()
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
