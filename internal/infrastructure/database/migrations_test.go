package database

import (
	"context"
	"embed"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/nerrad567/gray-logic-gridsim/migrations"
)

//go:embed testdata/*.sql
var testdataFS embed.FS

// testMigrations returns the fixture migrations rooted at testdata/.
func testMigrations(t *testing.T) fs.FS {
	t.Helper()
	sub, err := fs.Sub(testdataFS, "testdata")
	if err != nil {
		t.Fatalf("fs.Sub() error = %v", err)
	}
	return sub
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table', 'index') AND name = ?", name).Scan(&n)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	return n > 0
}

// TestMigrate verifies migration application.
func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations(t)

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if !tableExists(t, db, "samples") {
		t.Error("samples table was not created")
	}
	if !tableExists(t, db, "idx_samples_name") {
		t.Error("idx_samples_name was not created")
	}

	applied, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("applied = %d, want 2", len(applied))
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
	if applied[0].AppliedAt.IsZero() {
		t.Error("AppliedAt is zero")
	}

	// Idempotent
	if err := db.Migrate(ctx, fsys); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

// TestMigrateDown verifies rollback of the latest migration only.
func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	fsys := testMigrations(t)

	if err := db.Migrate(ctx, fsys); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, fsys); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	if tableExists(t, db, "idx_samples_name") {
		t.Error("idx_samples_name still exists after MigrateDown")
	}
	if !tableExists(t, db, "samples") {
		t.Error("samples table dropped, want only the latest migration rolled back")
	}

	_, pending, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Version != "20260102_000000" {
		t.Errorf("pending = %+v, want [20260102_000000]", pending)
	}
}

func TestMigrateDownNothingApplied(t *testing.T) {
	db := openTestDB(t)
	if err := db.MigrateDown(context.Background(), testMigrations(t)); err != nil {
		t.Errorf("MigrateDown() on empty database error = %v", err)
	}
}

// TestMigrateNoMigrations verifies an empty filesystem is not an error.
func TestMigrateNoMigrations(t *testing.T) {
	db := openTestDB(t)

	if err := db.Migrate(context.Background(), fstest.MapFS{}); err != nil {
		t.Errorf("Migrate() with no migrations error = %v", err)
	}
	if err := db.Migrate(context.Background(), nil); err != nil {
		t.Errorf("Migrate() with nil FS error = %v", err)
	}
}

func TestMigrateBadSQL(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"20260101_000000_ok.up.sql":     {Data: []byte("CREATE TABLE ok (id INTEGER);")},
		"20260102_000000_broken.up.sql": {Data: []byte("CREATE TABLE (;")},
	}

	if err := db.Migrate(context.Background(), fsys); err == nil {
		t.Fatal("Migrate() with broken SQL error = nil, want error")
	}

	// The first migration stays committed.
	applied, pending, err := db.MigrationStatus(context.Background(), fsys)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 1 {
		t.Errorf("applied=%d pending=%d, want 1/1", len(applied), len(pending))
	}
}

func TestLoadMigrations(t *testing.T) {
	t.Run("fixtures sorted by version", func(t *testing.T) {
		loaded, err := LoadMigrations(testMigrations(t))
		if err != nil {
			t.Fatalf("LoadMigrations() error = %v", err)
		}
		if len(loaded) != 2 {
			t.Fatalf("len = %d, want 2", len(loaded))
		}
		if loaded[0].Name != "create_samples" || loaded[1].Name != "add_sample_index" {
			t.Errorf("names = %q, %q", loaded[0].Name, loaded[1].Name)
		}
		if loaded[0].DownSQL == "" {
			t.Error("DownSQL empty for create_samples")
		}
	})

	t.Run("down without up is rejected", func(t *testing.T) {
		fsys := fstest.MapFS{
			"20260101_000000_orphan.down.sql": {Data: []byte("DROP TABLE x;")},
		}
		if _, err := LoadMigrations(fsys); err == nil {
			t.Error("LoadMigrations() error = nil, want error for missing up SQL")
		}
	})

	t.Run("embedded simulator schema", func(t *testing.T) {
		got, err := LoadMigrations(migrations.FS)
		if err != nil {
			t.Fatalf("LoadMigrations(migrations.FS) error = %v", err)
		}
		if len(got) == 0 || got[0].Name != "simulation_cycles" {
			t.Errorf("embedded migrations = %+v, want simulation_cycles first", got)
		}
	})
}

func TestMigrateSimulatorSchema(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate(migrations.FS) error = %v", err)
	}
	if !tableExists(t, db, "simulation_cycles") {
		t.Error("simulation_cycles table was not created")
	}
}

// TestParseMigrationFilename verifies filename parsing.
func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantIsUp    bool
		wantOk      bool
	}{
		{
			name:        "valid up migration",
			filename:    "20260301_000000_simulation_cycles.up.sql",
			wantVersion: "20260301_000000",
			wantIsUp:    true,
			wantOk:      true,
		},
		{
			name:        "valid down migration",
			filename:    "20260301_000000_simulation_cycles.down.sql",
			wantVersion: "20260301_000000",
			wantIsUp:    false,
			wantOk:      true,
		},
		{
			name:     "not sql file",
			filename: "README.txt",
			wantOk:   false,
		},
		{
			name:     "missing direction",
			filename: "20260301_000000_simulation_cycles.sql",
			wantOk:   false,
		},
		{
			name:     "invalid format",
			filename: "invalid.up.sql",
			wantOk:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Errorf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok {
				if version != tt.wantVersion {
					t.Errorf("version = %v, want %v", version, tt.wantVersion)
				}
				if isUp != tt.wantIsUp {
					t.Errorf("isUp = %v, want %v", isUp, tt.wantIsUp)
				}
			}
		})
	}
}

func TestMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20260301_000000_simulation_cycles.up.sql", "simulation_cycles"},
		{"20260101_000000_create_samples.down.sql", "create_samples"},
		{"20260102_000000_add_sample_index.up.sql", "add_sample_index"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := migrationName(tt.filename); got != tt.want {
				t.Errorf("migrationName(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
