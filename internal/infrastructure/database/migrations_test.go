package database

import (
	"context"
	"embed"
	"testing"
	"time"
)

const testMigrationsDir = "testdata"

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

// useMigrations swaps the package migration source for the duration of a test.
func useMigrations(t *testing.T, fsys embed.FS, dir string) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	MigrationsFS, MigrationsDir = fsys, dir
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&n)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrationsFS, testMigrationsDir)
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "probe_results") {
		t.Fatal("probe_results table not created")
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied=%d pending=%d, want 2 and 0", len(applied), len(pending))
	}
	if applied[0].Version != "20260101_000000" || applied[1].Version != "20260102_000000" {
		t.Errorf("applied order = %v", applied)
	}

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	useMigrations(t, testMigrationsFS, testMigrationsDir)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// The index migration has no down file.
	if err := db.MigrateDown(ctx); err == nil {
		t.Error("MigrateDown() expected error for migration without down SQL")
	}
}

func TestMigrateDown_RollsBackLatest(t *testing.T) {
	useMigrations(t, testMigrationsFS, testMigrationsDir)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	// Drop the record of the index migration so the table migration is latest.
	if _, err := db.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = '20260102_000000'"); err != nil {
		t.Fatalf("deleting migration record: %v", err)
	}

	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "probe_results") {
		t.Error("probe_results still exists after rollback")
	}

	applied, _, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("applied = %d after rollback, want 0", len(applied))
	}
}

func TestMigrateDown_NothingApplied(t *testing.T) {
	useMigrations(t, testMigrationsFS, testMigrationsDir)
	db := openTestDB(t)

	if err := db.MigrateDown(context.Background()); err != nil {
		t.Errorf("MigrateDown() on fresh database error = %v", err)
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	var emptyFS embed.FS
	useMigrations(t, emptyFS, ".")
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{"20261015_120000_verification_history.up.sql", "20261015_120000", "verification_history", true, true},
		{"20261015_120000_verification_history.down.sql", "20261015_120000", "verification_history", false, true},
		{"20260101_000000.up.sql", "20260101_000000", "20260101_000000", true, true},
		{"20261015_120000_x.sql", "", "", false, false},
		{"README.md", "", "", false, false},
		{"nounderscore.up.sql", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion || name != tt.wantName || isUp != tt.wantUp {
				t.Errorf("got (%q, %q, %v), want (%q, %q, %v)",
					version, name, isUp, tt.wantVersion, tt.wantName, tt.wantUp)
			}
		})
	}
}
