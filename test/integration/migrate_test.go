package integration

import (
	"context"
	"testing"

	"github.com/clinicbook/clinicbook/internal/platform/db"
)

func TestMigrator_Idempotent(t *testing.T) {
	ctx := context.Background()
	m := db.NewMigrator(globalDB.Pool, globalDB.MigrationsDir)

	count, err := m.Up(ctx)
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no pending migrations, applied %d", count)
	}

	statuses, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) == 0 {
		t.Fatal("expected migrations to be listed")
	}
	for _, s := range statuses {
		if !s.Applied || s.AppliedAt == nil {
			t.Errorf("expected migration %d (%s) applied", s.Version, s.Name)
		}
	}
}
