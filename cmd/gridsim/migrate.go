package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-gridsim/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-gridsim/migrations"
)

// Actions accepted by the migrate command.
const (
	migrateUp     = "up"
	migrateDown   = "down"
	migrateStatus = "status"
)

// migrateDatabase applies, rolls back or lists the history database
// migrations, then prints the resulting status.
//
// The database is opened at database.path even when database.enabled is
// false, so the schema can be prepared before history is switched on.
func migrateDatabase(ctx context.Context, configPath, action string, w io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Nothing to do on close failure

	switch action {
	case migrateUp:
		err = db.Migrate(ctx, migrations.FS)
	case migrateDown:
		err = db.MigrateDown(ctx, migrations.FS)
	case migrateStatus:
	default:
		return fmt.Errorf("unknown migrate action %q", action)
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", action, err)
	}

	applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
	if err != nil {
		return err
	}
	return printMigrationStatus(w, db.Path(), applied, pending)
}

func printMigrationStatus(w io.Writer, path string, applied []database.MigrationRecord, pending []database.Migration) error {
	fmt.Fprintf(w, "%s: %d applied, %d pending\n", path, len(applied), len(pending))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tSTATE\tDETAIL")
	for _, r := range applied {
		fmt.Fprintf(tw, "%s\tapplied\t%s\n", r.Version, r.AppliedAt.Format(time.RFC3339))
	}
	for _, m := range pending {
		fmt.Fprintf(tw, "%s\tpending\t%s\n", m.Version, m.Name)
	}
	return tw.Flush()
}
