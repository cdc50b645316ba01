package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/config"
)

func testDatabaseConfig(path string) config.DatabaseConfig {
	return config.DatabaseConfig{
		Enabled:     true,
		Path:        path,
		WALMode:     true,
		BusyTimeout: 5,
	}
}

// TestOpen verifies database connection establishment.
func TestOpen(t *testing.T) {
	t.Run("creates database file", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		db, err := Open(context.Background(), testDatabaseConfig(dbPath))
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		// SQLite creates the file lazily; force a write.
		if _, err := db.ExecContext(context.Background(), "CREATE TABLE t (id INTEGER)"); err != nil {
			t.Fatalf("ExecContext() error = %v", err)
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
	})

	t.Run("creates directory if not exists", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

		db, err := Open(context.Background(), testDatabaseConfig(dbPath))
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
			t.Error("database directory was not created")
		}
	})

	t.Run("returns path", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.db")

		db, err := Open(context.Background(), testDatabaseConfig(dbPath))
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if db.Path() != dbPath {
			t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
		}
	})

	t.Run("rejects empty path", func(t *testing.T) {
		if _, err := Open(context.Background(), config.DatabaseConfig{}); err == nil {
			t.Error("Open() with empty path error = nil, want error")
		}
	})

	t.Run("without WAL mode", func(t *testing.T) {
		cfg := testDatabaseConfig(filepath.Join(t.TempDir(), "test.db"))
		cfg.WALMode = false

		db, err := Open(context.Background(), cfg)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		var mode string
		if err := db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("PRAGMA journal_mode error = %v", err)
		}
		if mode == "wal" {
			t.Error("journal_mode = wal, want default mode")
		}
	})
}

func TestOpenWALMode(t *testing.T) {
	db := openTestDB(t)

	var mode string
	if err := db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := db.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck() with cancelled context error = nil, want error")
	}
}

func TestClose(t *testing.T) {
	db, err := Open(context.Background(), testDatabaseConfig(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}

	var nilDB *DB
	if err := nilDB.Close(); err != nil {
		t.Errorf("Close() on nil DB error = %v, want nil", err)
	}
}

func TestInTxCommit(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	createSamplesTable(t, db)

	err := db.inTx(ctx, func(tx execer) error {
		_, err := tx.ExecContext(ctx, "INSERT INTO samples (name, value) VALUES (?, ?)", "Bus 1", 1.02)
		return err
	})
	if err != nil {
		t.Fatalf("inTx() error = %v", err)
	}

	if got := countSamples(t, db); got != 1 {
		t.Errorf("row count = %d, want 1", got)
	}
}

func TestInTxRollback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	createSamplesTable(t, db)

	errBoom := errors.New("boom")
	err := db.inTx(ctx, func(tx execer) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO samples (name, value) VALUES (?, ?)", "Bus 1", 1.02); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("inTx() error = %v, want errBoom", err)
	}

	if got := countSamples(t, db); got != 0 {
		t.Errorf("row count = %d after rollback, want 0", got)
	}
}

// openTestDB opens a WAL-mode database in a temp directory and closes it
// when the test ends.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), testDatabaseConfig(filepath.Join(t.TempDir(), "test.db")))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func createSamplesTable(t *testing.T, db *DB) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		"CREATE TABLE samples (id INTEGER PRIMARY KEY, name TEXT NOT NULL, value REAL NOT NULL)")
	if err != nil {
		t.Fatalf("creating samples table: %v", err)
	}
}

func countSamples(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	if err := db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM samples").Scan(&n); err != nil {
		t.Fatalf("counting samples: %v", err)
	}
	return n
}
