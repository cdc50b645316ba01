package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// maxQueryParamLen limits query parameter length.
const maxQueryParamLen = 100

// snapshotResponse is the /snapshot body. Readings is the published
// payload verbatim.
type snapshotResponse struct {
	RunID        string          `json:"run_id"`
	Cycle        uint64          `json:"cycle"`
	Timestamp    string          `json:"timestamp"`
	LoadScaling  float64         `json:"load_scaling"`
	Iterations   int             `json:"iterations"`
	SolveMS      float64         `json:"solve_ms"`
	SlackPMW     float64         `json:"slack_p_mw"`
	SlackQMVAr   float64         `json:"slack_q_mvar"`
	LossesMW     float64         `json:"losses_mw"`
	MinVmPU      float64         `json:"min_vm_pu"`
	MaxVmPU      float64         `json:"max_vm_pu"`
	Readings     json.RawMessage `json:"readings"`
	ReadingCount int             `json:"reading_count"`
}

// handleSnapshot returns the most recent published cycle.
func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := s.snapshots.Latest()
	if snap == nil {
		writeNotFound(w, "no cycle published yet")
		return
	}

	readings := json.RawMessage(snap.Payload)
	if len(readings) == 0 {
		readings = json.RawMessage("[]")
	}
	minPU, maxPU := snap.VoltageRange()

	writeJSON(w, http.StatusOK, snapshotResponse{
		RunID:        snap.RunID,
		Cycle:        snap.Cycle,
		Timestamp:    snap.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		LoadScaling:  snap.LoadScaling,
		Iterations:   snap.Iterations,
		SolveMS:      float64(snap.SolveDuration.Microseconds()) / 1000,
		SlackPMW:     snap.SlackPMW,
		SlackQMVAr:   snap.SlackQMVAr,
		LossesMW:     snap.LossesMW,
		MinVmPU:      minPU,
		MaxVmPU:      maxPU,
		Readings:     readings,
		ReadingCount: len(snap.Readings),
	})
}

type busView struct {
	Index int     `json:"index"`
	Name  string  `json:"name"`
	VnKV  float64 `json:"vn_kv"`
}

// handleNetwork summarises the loaded topology.
func (s *Server) handleNetwork(w http.ResponseWriter, _ *http.Request) {
	pMW, qMVAr := s.net.TotalLoad()

	linesInService := 0
	for _, l := range s.net.Lines {
		if l.InService {
			linesInService++
		}
	}
	trafosInService := 0
	for _, t := range s.net.Transformers {
		if t.InService {
			trafosInService++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":                    s.net.Name,
		"f_hz":                    s.net.FHz,
		"sn_mva":                  s.net.SnMVA,
		"bus_count":               s.net.BusCount(),
		"line_count":              len(s.net.Lines),
		"lines_in_service":        linesInService,
		"transformer_count":       len(s.net.Transformers),
		"transformers_in_service": trafosInService,
		"load_count":              len(s.net.Loads),
		"nominal_load_p_mw":       pMW,
		"nominal_load_q_mvar":     qMVAr,
		"ext_grid_bus":            s.net.Buses[s.net.ExtGrid.Bus].Name,
		"ext_grid_vm_pu":          s.net.ExtGrid.VmPU,
	})
}

// handleListBuses returns the bus table in payload order.
func (s *Server) handleListBuses(w http.ResponseWriter, _ *http.Request) {
	buses := make([]busView, len(s.net.Buses))
	for i, b := range s.net.Buses {
		buses[i] = busView{Index: b.Index, Name: b.Name, VnKV: b.VnKV}
	}
	writeJSON(w, http.StatusOK, map[string]any{"buses": buses, "count": len(buses)})
}

// handleHistory returns stored cycles, newest first.
//
// Query parameters:
//   - run_id: restrict to one run ("current" means this process's run)
//   - limit: maximum entries (default 50, max 500)
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeUnavailable(w, "history store is disabled")
		return
	}

	runID := r.URL.Query().Get("run_id")
	if len(runID) > maxQueryParamLen {
		writeBadRequest(w, "run_id exceeds maximum length")
		return
	}
	if runID == "current" {
		runID = s.runID
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	entries, err := s.history.List(r.Context(), runID, limit)
	if err != nil {
		s.logger.Error("listing history", "error", err)
		writeInternalError(w, "failed to list history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"cycles": entries, "count": len(entries)})
}

// parseLimit parses an optional positive integer limit. Zero means the
// store's default.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	return limit, nil
}
