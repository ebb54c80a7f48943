package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/pondroute/internal/observability"
	"github.com/chrissnell/pondroute/internal/scenario"
	"github.com/chrissnell/pondroute/internal/store"
	"github.com/chrissnell/pondroute/pkg/config"
	"github.com/chrissnell/pondroute/pkg/responseformat"
	"github.com/chrissnell/pondroute/pkg/routing"
)

func exampleScenario(peak float64) *config.ScenarioData {
	return &config.ScenarioData{
		Name:     "example",
		TimeStep: 600,
		Pond: config.PondData{
			Stages:   []float64{0, 1, 2, 3},
			Storages: []float64{0, 10000, 25000, 45000},
		},
		Outlets: []config.OutletData{{Type: "rectangular_weir", Length: 2, Crest: 1}},
		Inflow: config.InflowData{
			Triangular: &config.TriangularData{Peak: peak, TimeToPeak: 10800, BaseTime: 28800},
		},
	}
}

type testServer struct {
	srv     *Server
	handler http.Handler
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, withStore bool) *testServer {
	t.Helper()
	m := observability.NewMetricsForTesting()
	reg := prometheus.NewRegistry()
	reg.MustRegister(m.RouteRuns, m.RunsStored, m.StoreErrors)

	opts := []Option{WithMetrics(m, reg)}
	if withStore {
		st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"), nil, nil)
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
		opts = append(opts, WithStore(st))
	}

	runner := scenario.NewRunner(nil, m, nil)
	srv := New(context.Background(), &sync.WaitGroup{}, Config{Workers: 2}, runner, nil, opts...)
	return &testServer{srv: srv, handler: srv.Router(), metrics: m}
}

func (ts *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestNewDefaultsListenAddr(t *testing.T) {
	ts := newTestServer(t, false)
	assert.Equal(t, DefaultListenAddr, ts.srv.Server.Addr)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestRouteScenario(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, http.MethodPost, "/api/route", exampleScenario(15))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode[RouteResponse](t, rec)
	assert.Empty(t, resp.RunID)
	assert.Equal(t, "example", resp.Summary.Name)
	assert.Equal(t, "metric", resp.Summary.Units)
	assert.Equal(t, 15.0, resp.Summary.PeakInflow)
	assert.Less(t, resp.Summary.PeakOutflow, 15.0)
	assert.True(t, resp.Summary.ExceededTable)
	require.NotNil(t, resp.Result)
	assert.Len(t, resp.Result.Outflows, 49)

	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.RouteRuns.WithLabelValues("success")))
}

func TestRouteScenarioMsgPack(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodPost, "/api/route?format=msgpack", exampleScenario(5))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-msgpack", rec.Header().Get("Content-Type"))
}

func TestRouteScenarioBadRequests(t *testing.T) {
	invalid := exampleScenario(15)
	invalid.Outlets = nil

	descending := exampleScenario(15)
	descending.Pond.Stages = []float64{0, 2, 1, 3}

	tests := []struct {
		name   string
		target string
		body   any
	}{
		{"malformed json", "/api/route", "{not json"},
		{"unknown field", "/api/route", `{"name": "x", "volume": 3}`},
		{"invalid scenario", "/api/route", invalid},
		{"stages not ascending", "/api/route", descending},
		{"bad save flag", "/api/route?save=maybe", exampleScenario(15)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, false)
			rec := ts.do(t, http.MethodPost, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			body := decode[responseformat.ErrorResponse](t, rec)
			assert.Equal(t, http.StatusBadRequest, body.Status)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestRouteMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodGet, "/api/route", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSaveAndFetchRun(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(t, http.MethodPost, "/api/route?save=true", exampleScenario(15))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	routed := decode[RouteResponse](t, rec)
	require.NotEmpty(t, routed.RunID)
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.RunsStored))

	rec = ts.do(t, http.MethodGet, "/api/runs/"+routed.RunID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[store.Run](t, rec)
	assert.Equal(t, routed.RunID, run.ID)
	assert.Equal(t, "example", run.Name)
	require.NotNil(t, run.Scenario)
	assert.Equal(t, 15.0, run.Scenario.Inflow.Triangular.Peak)
	assert.Equal(t, routed.Result.PeakOutflow, run.Result.PeakOutflow)

	rec = ts.do(t, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]store.RunSummary](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, routed.RunID, runs[0].ID)
	assert.True(t, runs[0].ExceededTable)

	rec = ts.do(t, http.MethodDelete, "/api/runs/"+routed.RunID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/runs/"+routed.RunID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/api/runs/"+routed.RunID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRunsLimit(t *testing.T) {
	ts := newTestServer(t, true)
	for _, peak := range []float64{3, 6, 9} {
		rec := ts.do(t, http.MethodPost, "/api/route?save=1", exampleScenario(peak))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/api/runs?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]store.RunSummary](t, rec), 2)

	for _, bad := range []string{"0", "-1", "ten"} {
		rec := ts.do(t, http.MethodGet, "/api/runs?limit="+bad, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestArchiveDisabled(t *testing.T) {
	ts := newTestServer(t, false)

	tests := []struct {
		method string
		target string
		body   any
	}{
		{http.MethodGet, "/api/runs", nil},
		{http.MethodGet, "/api/runs/9b2f4c1e-6a53-4f3e-8d0c-1f2e3d4c5b6a", nil},
		{http.MethodDelete, "/api/runs/9b2f4c1e-6a53-4f3e-8d0c-1f2e3d4c5b6a", nil},
		{http.MethodPost, "/api/route?save=true", exampleScenario(15)},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		})
	}
}

func TestSweepScenarios(t *testing.T) {
	ts := newTestServer(t, true)

	req := SweepRequest{Scenarios: []*config.ScenarioData{exampleScenario(3), exampleScenario(9), exampleScenario(15)}}
	rec := ts.do(t, http.MethodPost, "/api/sweep?save=true", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	out := decode[[]RouteResponse](t, rec)
	require.Len(t, out, 3)
	for i, peak := range []float64{3, 9, 15} {
		assert.Equal(t, peak, out[i].Summary.PeakInflow)
		assert.NotEmpty(t, out[i].RunID)
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(ts.metrics.RunsStored))

	rec = ts.do(t, http.MethodPost, "/api/sweep", SweepRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/sweep", `{"scenarios": [null]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bad := exampleScenario(3)
	bad.Pond.Storages = []float64{0, 1}
	rec = ts.do(t, http.MethodPost, "/api/sweep", SweepRequest{Scenarios: []*config.ScenarioData{exampleScenario(3), bad}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodPost, "/api/route", exampleScenario(15))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `pondroute_route_runs_total{outcome="success"} 1`))
}

func TestRouteResultMatchesLibrary(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, http.MethodPost, "/api/route", exampleScenario(15))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[RouteResponse](t, rec)

	b, err := scenario.Build(exampleScenario(15))
	require.NoError(t, err)
	want, err := b.Pond.Route(b.Inflow, b.Options...)
	require.NoError(t, err)

	assert.InDelta(t, want.PeakOutflow, resp.Result.PeakOutflow, 1e-12)
	assert.Equal(t, want.TimeToPeakOutflow, resp.Result.TimeToPeakOutflow)
	assert.IsType(t, &routing.Result{}, resp.Result)
}

func TestStartServesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	srv := New(ctx, &wg, Config{ListenAddr: "127.0.0.1:0"}, scenario.NewRunner(nil, nil, nil), nil)
	require.NoError(t, srv.Start())

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	wg.Wait()
}

func TestStartReturnsListenError(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	tests := []struct {
		name string
		addr string
	}{
		{"address in use", taken.Addr().String()},
		{"malformed address", "127.0.0.1:notaport"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var wg sync.WaitGroup
			srv := New(context.Background(), &wg, Config{ListenAddr: tt.addr}, scenario.NewRunner(nil, nil, nil), nil)
			err := srv.Start()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.addr)
			// nothing to wait for
			wg.Wait()
		})
	}
}
