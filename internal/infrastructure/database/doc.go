// Package database provides the SQLite store behind verification history.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Versioned up/down migrations embedded in the binary
//   - A single-connection pool matching SQLite's one-writer model
//
// Security Considerations:
//   - All queries use parameterised statements
//   - The database file is chmod 0600
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migration files live in the top-level migrations package and are named
// YYYYMMDD_HHMMSS_description.up.sql with a matching .down.sql.
package database
