package database

import (
	"path/filepath"
	"testing"
)

func TestRunMigrationsReportsApplied(t *testing.T) {
	db, err := NewConnection(filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	version, applied, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}
	if !applied {
		t.Error("first run should apply migrations")
	}
	if version == 0 {
		t.Error("expected a non-zero schema version")
	}

	again, applied, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("second RunMigrations failed: %v", err)
	}
	if applied {
		t.Error("up-to-date schema should report nothing applied")
	}
	if again != version {
		t.Errorf("version changed from %d to %d on a no-op run", version, again)
	}
}
