// Package database provides SQLite connectivity for the simulator's
// cycle history.
//
// This package manages:
//   - Database connection with optional WAL mode
//   - Schema migrations loaded from any fs.FS (normally migrations.FS)
//   - Transaction helpers for repositories
//
// Security Considerations:
//   - All queries use parameterised statements
//   - Database file permissions are set to 0600 (owner read/write only)
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migration Strategy:
//
// Files are named YYYYMMDD_HHMMSS_description.up.sql with a matching
// .down.sql. They apply in version order, each in its own transaction,
// and are recorded in schema_migrations.
package database
