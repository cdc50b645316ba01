package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-gridsim/internal/simulation"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	// timestampFormat is fixed-width so recorded_at sorts lexically.
	timestampFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

// ErrRunIDRequired is returned when a cycle has no run id.
var ErrRunIDRequired = errors.New("history: run id is required")

// Entry is one stored cycle.
type Entry struct {
	ID          int64     `json:"id"`
	RunID       string    `json:"run_id"`
	Cycle       uint64    `json:"cycle"`
	RecordedAt  time.Time `json:"recorded_at"`
	LoadScaling float64   `json:"load_scaling"`
	Iterations  int       `json:"iterations"`
	SolveMS     float64   `json:"solve_ms"`
	SlackPMW    float64   `json:"slack_p_mw"`
	LossesMW    float64   `json:"losses_mw"`
	MinVmPU     float64   `json:"min_vm_pu"`
	MaxVmPU     float64   `json:"max_vm_pu"`

	// Payload is the JSON array that was published for this cycle.
	Payload string `json:"payload"`
}

// Repository stores cycle history in the simulation_cycles table.
//
// It implements simulation.Recorder.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repository on an open, migrated database.
//
// Parameters:
//   - db: SQLite connection with the simulation_cycles table present
//
// Returns:
//   - *Repository: Repository instance ready for use
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// RecordSnapshot inserts one row for a published cycle.
//
// Recording the same run and cycle twice is an error (unique constraint).
func (r *Repository) RecordSnapshot(ctx context.Context, snap *simulation.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("history: snapshot is nil")
	}
	if snap.RunID == "" {
		return ErrRunIDRequired
	}

	minPU, maxPU := snap.VoltageRange()
	payload := string(snap.Payload)
	if payload == "" {
		payload = "[]"
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO simulation_cycles
			(run_id, cycle, recorded_at, load_scaling, iterations, solve_ms,
			 slack_p_mw, losses_mw, min_vm_pu, max_vm_pu, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.RunID,
		int64(snap.Cycle), //nolint:gosec // cycle counts stay far below MaxInt64
		snap.Timestamp.UTC().Format(timestampFormat),
		snap.LoadScaling,
		snap.Iterations,
		float64(snap.SolveDuration)/float64(time.Millisecond),
		snap.SlackPMW,
		snap.LossesMW,
		minPU,
		maxPU,
		payload,
	)
	if err != nil {
		return fmt.Errorf("inserting simulation cycle: %w", err)
	}
	return nil
}

// List returns the most recent cycles, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - runID: Restricts results to one run; empty lists all runs
//   - limit: Maximum entries to return (default 50, max 500)
//
// Returns:
//   - []Entry: Entries ordered by recorded_at DESC (may be empty)
//   - error: nil on success, otherwise the underlying query error
func (r *Repository) List(ctx context.Context, runID string, limit int) ([]Entry, error) {
	limit = clampLimit(limit)

	query := `SELECT id, run_id, cycle, recorded_at, load_scaling, iterations, solve_ms,
			slack_p_mw, losses_mw, min_vm_pu, max_vm_pu, payload
		 FROM simulation_cycles`
	args := []any{}
	if runID != "" {
		query += " WHERE run_id = ?"
		args = append(args, runID)
	}
	query += " ORDER BY recorded_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying simulation cycles: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var cycle int64
		var recordedAt string
		if err := rows.Scan(&e.ID, &e.RunID, &cycle, &recordedAt, &e.LoadScaling, &e.Iterations,
			&e.SolveMS, &e.SlackPMW, &e.LossesMW, &e.MinVmPU, &e.MaxVmPU, &e.Payload); err != nil {
			return nil, fmt.Errorf("scanning simulation cycle: %w", err)
		}
		e.Cycle = uint64(cycle) //nolint:gosec // stored from a uint64
		if e.RecordedAt, err = time.Parse(timestampFormat, recordedAt); err != nil {
			return nil, fmt.Errorf("parsing recorded_at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating simulation cycles: %w", err)
	}

	return entries, nil
}

// Count returns the number of stored cycles.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM simulation_cycles").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting simulation cycles: %w", err)
	}
	return n, nil
}

// Prune deletes cycles recorded before now-olderThan.
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (r *Repository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(timestampFormat)
	result, err := r.db.ExecContext(ctx, "DELETE FROM simulation_cycles WHERE recorded_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting simulation cycles: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}
