package database

import (
	"context"
	"io/fs"
	"testing"
	"testing/fstest"
)

var testMigrations = fstest.MapFS{
	"0001_create_readings.up.sql":   {Data: []byte("CREATE TABLE readings (id INTEGER PRIMARY KEY, value REAL);")},
	"0001_create_readings.down.sql": {Data: []byte("DROP TABLE readings;")},
	"0002_add_index.up.sql":         {Data: []byte("CREATE INDEX idx_readings_value ON readings (value);")},
	"0002_add_index.down.sql":       {Data: []byte("DROP INDEX idx_readings_value;")},
	"README.md":                     {Data: []byte("ignored")},
}

// useMigrations swaps the package migration source for the test.
func useMigrations(t *testing.T, fsys fs.FS) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
	MigrationsFS, MigrationsDir = fsys, "."
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE name = ?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("query error: %v", err)
	}
	return count > 0
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrations)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "readings") || !tableExists(t, db, "idx_readings_value") {
		t.Fatal("migrations were not applied")
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("applied=%d pending=%d, want 2/0", len(applied), len(pending))
	}
	if applied[0].Version != "0001" || applied[1].Version != "0002" {
		t.Errorf("applied order = %s, %s", applied[0].Version, applied[1].Version)
	}

	// Idempotent.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	useMigrations(t, testMigrations)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "idx_readings_value") {
		t.Error("latest migration should be rolled back")
	}
	if !tableExists(t, db, "readings") {
		t.Error("earlier migration should remain")
	}

	applied, pending, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 1 {
		t.Errorf("applied=%d pending=%d, want 1/1", len(applied), len(pending))
	}
}

func TestMigrate_FailureKeepsEarlier(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"0001_ok.up.sql":     {Data: []byte("CREATE TABLE ok_table (id INTEGER);")},
		"0002_broken.up.sql": {Data: []byte("CREATE TABLE oops (;")},
	})
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() expected error for broken migration")
	}
	if !tableExists(t, db, "ok_table") {
		t.Error("migration before the failure should stay applied")
	}
	applied, _, err := db.MigrationStatus(ctx)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 1 {
		t.Errorf("applied = %d, want 1", len(applied))
	}
}

func TestMigrate_MissingUpFile(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"0001_orphan.down.sql": {Data: []byte("DROP TABLE x;")},
	})
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err == nil {
		t.Error("Migrate() expected error for migration without up SQL")
	}
}

func TestMigrate_NoMigrations(t *testing.T) {
	useMigrations(t, nil)
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
	if err := db.MigrateDown(context.Background()); err != nil {
		t.Fatalf("MigrateDown() with nothing applied error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOk      bool
	}{
		{"0001_activity_journal.up.sql", "0001", "activity_journal", true, true},
		{"0001_activity_journal.down.sql", "0001", "activity_journal", false, true},
		{"readme.txt", "", "", false, false},
		{"0001_activity_journal.sql", "", "", false, false},
		{"invalid.up.sql", "", "", false, false},
		{"v1_bad_version.up.sql", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, up, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion || name != tt.wantName || up != tt.wantUp {
				t.Errorf("got (%q, %q, %v), want (%q, %q, %v)",
					version, name, up, tt.wantVersion, tt.wantName, tt.wantUp)
			}
		})
	}
}
