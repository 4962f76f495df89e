package db

import (
	"context"
	"testing"
	"testing/fstest"
)

func TestFindMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_rosters.sql":  {Data: []byte("CREATE TABLE b (id INT);")},
		"0001_init.sql":     {Data: []byte("CREATE TABLE a (id INT);")},
		"0010_segments.SQL": {Data: []byte("CREATE TABLE c (id INT);")},
		"notes.txt":         {Data: []byte("not a migration")},
	}

	migrations, err := findMigrations(fsys)
	if err != nil {
		t.Fatalf("findMigrations: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}

	wantVersions := []string{"0001_init", "0002_rosters", "0010_segments"}
	for i, want := range wantVersions {
		if migrations[i].Version != want {
			t.Errorf("migration %d: expected version %s, got %s", i, want, migrations[i].Version)
		}
	}
}

func TestFindMigrationsEmpty(t *testing.T) {
	migrations, err := findMigrations(fstest.MapFS{})
	if err != nil {
		t.Fatalf("findMigrations: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected no migrations, got %d", len(migrations))
	}
}

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0001_init.sql", "0001_init"},
		{"0001_init.SQL", "0001_init"},
		{"0001_init", "0001_init"},
		{".sql", ".sql"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := normalizeVersion(tt.in); got != tt.want {
			t.Errorf("normalizeVersion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := findMigrations(EmbeddedMigrations())
	if err != nil {
		t.Fatalf("findMigrations on embedded FS: %v", err)
	}
	if len(migrations) == 0 {
		t.Fatal("expected at least one embedded migration")
	}
	if migrations[0].Version != "0001_init" {
		t.Errorf("expected first migration 0001_init, got %s", migrations[0].Version)
	}
}

func TestRunMigrationsNilPool(t *testing.T) {
	if _, err := RunMigrations(context.Background(), nil, fstest.MapFS{}); err == nil {
		t.Error("expected error for nil pool")
	}
	if _, err := GetPendingMigrations(context.Background(), nil, fstest.MapFS{}); err == nil {
		t.Error("expected error for nil pool")
	}
	if _, err := GetMigrationStatus(context.Background(), nil, fstest.MapFS{}); err == nil {
		t.Error("expected error for nil pool")
	}
}

func TestRunMigrationsToTargetRequiresVersion(t *testing.T) {
	if _, err := RunMigrationsToTarget(context.Background(), nil, fstest.MapFS{}, ""); err == nil {
		t.Error("expected error for empty target version")
	}
}
