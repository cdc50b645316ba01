package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-gridsim/internal/history"
	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-gridsim/internal/metrics"
	"github.com/nerrad567/gray-logic-gridsim/internal/network"
	"github.com/nerrad567/gray-logic-gridsim/internal/simulation"
)

type fakeSnapshots struct {
	latest *simulation.Snapshot
	cycles uint64
}

func (f *fakeSnapshots) Latest() *simulation.Snapshot { return f.latest }
func (f *fakeSnapshots) Cycles() uint64               { return f.cycles }

type fakeHistory struct {
	entries []history.Entry
	err     error
	runID   string
	limit   int
}

func (f *fakeHistory) List(_ context.Context, runID string, limit int) ([]history.Entry, error) {
	f.runID, f.limit = runID, limit
	return f.entries, f.err
}

type checkFunc func(ctx context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

// testServer creates a Server on the embedded CIGRE MV network.
func testServer(t *testing.T, mutate func(*Deps)) *Server {
	t.Helper()

	net, err := network.CIGREMV()
	require.NoError(t, err)

	deps := Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		Logger:    logging.Discard(),
		Network:   net,
		Snapshots: &fakeSnapshots{},
		RunID:     "run-1",
		Version:   "test",
	}
	if mutate != nil {
		mutate(&deps)
	}

	srv, err := New(deps)
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestNew_RequiresDeps(t *testing.T) {
	net, err := network.CIGREMV()
	require.NoError(t, err)

	_, err = New(Deps{Network: net, Snapshots: &fakeSnapshots{}})
	assert.Error(t, err, "missing logger")
	_, err = New(Deps{Logger: logging.Discard(), Snapshots: &fakeSnapshots{}})
	assert.Error(t, err, "missing network")
	_, err = New(Deps{Logger: logging.Discard(), Network: net})
	assert.Error(t, err, "missing snapshots")
}

func TestNew_ClonesNetwork(t *testing.T) {
	net, err := network.CIGREMV()
	require.NoError(t, err)

	srv, err := New(Deps{Logger: logging.Discard(), Network: net, Snapshots: &fakeSnapshots{}})
	require.NoError(t, err)

	net.SetLoadScaling(1.2)
	assert.InDelta(t, 1.0, srv.net.Loads[0].Scaling, 1e-12)
}

func TestHealth(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		srv := testServer(t, func(d *Deps) {
			d.Snapshots = &fakeSnapshots{cycles: 7}
			d.Checks = map[string]HealthChecker{
				"mqtt": checkFunc(func(context.Context) error { return nil }),
			}
		})

		rec, body := do(t, srv, http.MethodGet, "/api/v1/health")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, "run-1", body["run_id"])
		assert.EqualValues(t, 7, body["cycles"])
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})

	t.Run("degraded", func(t *testing.T) {
		srv := testServer(t, func(d *Deps) {
			d.Checks = map[string]HealthChecker{
				"mqtt":     checkFunc(func(context.Context) error { return errors.New("not connected") }),
				"database": checkFunc(func(context.Context) error { return nil }),
			}
		})

		rec, body := do(t, srv, http.MethodGet, "/api/v1/health")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "degraded", body["status"])
		components := body["components"].(map[string]any)
		assert.Equal(t, "not connected", components["mqtt"])
		assert.Equal(t, "ok", components["database"])
	})
}

func TestSnapshot(t *testing.T) {
	t.Run("none yet", func(t *testing.T) {
		rec, body := do(t, testServer(t, nil), http.MethodGet, "/api/v1/snapshot")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, ErrCodeNotFound, body["code"])
	})

	t.Run("latest", func(t *testing.T) {
		snap := &simulation.Snapshot{
			RunID:       "run-1",
			Cycle:       3,
			Timestamp:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			LoadScaling: 0.93,
			Readings: []simulation.VoltageReading{
				{Name: "A", VmPU: 1.0},
				{Name: "B", VmPU: 0.98},
			},
			Iterations: 3,
			Payload:    []byte(`[{"name":"A","vm_pu":1.0},{"name":"B","vm_pu":0.98}]`),
		}
		srv := testServer(t, func(d *Deps) { d.Snapshots = &fakeSnapshots{latest: snap, cycles: 3} })

		rec, body := do(t, srv, http.MethodGet, "/api/v1/snapshot")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 3, body["cycle"])
		assert.InDelta(t, 0.93, body["load_scaling"], 1e-12)
		assert.InDelta(t, 0.98, body["min_vm_pu"], 1e-12)
		assert.EqualValues(t, 2, body["reading_count"])

		readings := body["readings"].([]any)
		require.Len(t, readings, 2)
		assert.Equal(t, "B", readings[1].(map[string]any)["name"])
	})
}

func TestNetwork(t *testing.T) {
	srv := testServer(t, nil)

	rec, body := do(t, srv, http.MethodGet, "/api/v1/network")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 15, body["bus_count"])
	assert.EqualValues(t, 2, body["transformer_count"])
	assert.EqualValues(t, 18, body["load_count"])
	assert.Equal(t, "Bus 0", body["ext_grid_bus"])

	rec, body = do(t, srv, http.MethodGet, "/api/v1/network/buses")
	require.Equal(t, http.StatusOK, rec.Code)
	buses := body["buses"].([]any)
	require.Len(t, buses, 15)
	assert.Equal(t, "Bus 0", buses[0].(map[string]any)["name"])
}

func TestHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		rec, _ := do(t, testServer(t, nil), http.MethodGet, "/api/v1/history")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("lists with filters", func(t *testing.T) {
		h := &fakeHistory{entries: []history.Entry{{ID: 1, RunID: "run-1", Cycle: 1}}}
		srv := testServer(t, func(d *Deps) { d.History = h })

		rec, body := do(t, srv, http.MethodGet, "/api/v1/history?run_id=current&limit=5")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.EqualValues(t, 1, body["count"])
		assert.Equal(t, "run-1", h.runID)
		assert.Equal(t, 5, h.limit)
	})

	t.Run("bad limit", func(t *testing.T) {
		srv := testServer(t, func(d *Deps) { d.History = &fakeHistory{} })
		for _, q := range []string{"limit=0", "limit=-1", "limit=abc"} {
			rec, _ := do(t, srv, http.MethodGet, "/api/v1/history?"+q)
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
	})

	t.Run("store error", func(t *testing.T) {
		srv := testServer(t, func(d *Deps) { d.History = &fakeHistory{err: errors.New("disk gone")} })
		rec, body := do(t, srv, http.MethodGet, "/api/v1/history")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, ErrCodeInternal, body["code"])
	})
}

func TestReadOnly(t *testing.T) {
	rec, _ := do(t, testServer(t, nil), http.MethodPost, "/api/v1/snapshot")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
}

func TestRequestIDPassthrough(t *testing.T) {
	srv := testServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/network", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	srv := testServer(t, func(d *Deps) { d.Metrics = m })

	do(t, srv, http.MethodGet, "/api/v1/network")

	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/v1/network"`)
}

func TestMetricsEndpointAbsentWithoutMetrics(t *testing.T) {
	rec, _ := do(t, testServer(t, nil), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartAndClose(t *testing.T) {
	srv := testServer(t, nil)
	assert.Error(t, srv.HealthCheck(context.Background()))

	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { srv.Close() }) //nolint:errcheck // Test cleanup

	require.NoError(t, srv.HealthCheck(context.Background()))

	resp, err := http.Get(fmt.Sprintf("http://%s/api/v1/health", srv.Addr()))
	require.NoError(t, err)
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, srv.Close())
	assert.NoError(t, srv.Close(), "second Close")
	assert.Error(t, srv.HealthCheck(context.Background()))
}
