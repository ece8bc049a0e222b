package postgres

import (
	"strings"
	"testing"
)

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected embedded migrations")
	}
	if migrations[0].version != "001_capture_outcomes.sql" {
		t.Errorf("expected 001_capture_outcomes.sql first, got %s", migrations[0].version)
	}
	for i := 1; i < len(migrations); i++ {
		if migrations[i-1].version >= migrations[i].version {
			t.Errorf("migrations out of order: %s before %s", migrations[i-1].version, migrations[i].version)
		}
	}
	if !strings.Contains(migrations[0].body, "capture_outcomes") {
		t.Error("expected the outcomes table in the first migration")
	}
}
