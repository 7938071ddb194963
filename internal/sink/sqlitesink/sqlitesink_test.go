package sqlitesink

import (
	"context"
	"path/filepath"
	"testing"
)

func TestUpsertBatch_CreatesTableAndInserts(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	rows := []map[string]any{
		{"guid": "aaaa", "class_name": "AEGS_Gladius", "mass": 1200.0},
		{"guid": "bbbb", "class_name": "ANVL_Hornet", "mass": 1300.0},
	}
	if err := s.UpsertBatch(ctx, "ships", rows); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}

	var count int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "ships"`)
	if err := row.Scan(&count); err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	if count != 2 {
		t.Errorf("row count = %d, want 2", count)
	}
}

func TestUpsertBatch_ReplaceOnSameKey(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.UpsertBatch(ctx, "ships", []map[string]any{
		{"guid": "aaaa", "mass": 1200.0},
	}); err != nil {
		t.Fatalf("first UpsertBatch: %v", err)
	}
	if err := s.UpsertBatch(ctx, "ships", []map[string]any{
		{"guid": "aaaa", "mass": 1500.0},
	}); err != nil {
		t.Fatalf("second UpsertBatch: %v", err)
	}

	var mass float64
	row := s.db.QueryRowContext(ctx, `SELECT mass FROM "ships" WHERE guid = ?`, "aaaa")
	if err := row.Scan(&mass); err != nil {
		t.Fatalf("scanning mass: %v", err)
	}
	if mass != 1500.0 {
		t.Errorf("mass = %v, want 1500 (replace, not duplicate)", mass)
	}
}

func TestUpsertBatch_WidensSchemaForNewColumns(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	if err := s.UpsertBatch(ctx, "items", []map[string]any{{"guid": "a"}}); err != nil {
		t.Fatalf("first UpsertBatch: %v", err)
	}
	if err := s.UpsertBatch(ctx, "items", []map[string]any{{"guid": "b", "mass": 42.0}}); err != nil {
		t.Fatalf("second UpsertBatch (widening): %v", err)
	}

	var mass float64
	row := s.db.QueryRowContext(ctx, `SELECT mass FROM "items" WHERE guid = ?`, "b")
	if err := row.Scan(&mass); err != nil {
		t.Fatalf("scanning mass: %v", err)
	}
	if mass != 42.0 {
		t.Errorf("mass = %v, want 42", mass)
	}
}

func TestUpsertBatch_EmptyRowsNoOp(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if err := s.UpsertBatch(context.Background(), "ships", nil); err != nil {
		t.Fatalf("UpsertBatch with no rows should be a no-op: %v", err)
	}
}
