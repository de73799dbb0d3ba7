package logging

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 2, 1)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	rec := sampleRecord(time.Now(), "inc", "u1")
	rec.Recommendations[0].Warnings = []string{strings.Repeat("w", 4096)}
	for i := 0; i < 400; i++ {
		if err := store.Append(context.Background(), rec); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	files, _ := filepath.Glob(filepath.Join(dir, "log-*.jsonl"))
	if len(files) == 0 {
		t.Fatalf("expected rotated files")
	}
	out, err := store.Query(context.Background(), LogQuery{UnitID: "u1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) == 0 {
		t.Fatalf("expected records across rotated files")
	}
}

func TestRotatingJSONLStore_Query(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "log.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 2, 1)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	now := time.Now()
	_ = store.Append(context.Background(), sampleRecord(now, "inc-1", "u1"))
	_ = store.Append(context.Background(), sampleRecord(now, "inc-2", "u2"))
	out, err := store.Query(context.Background(), LogQuery{UnitID: "u2"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(out) != 1 || out[0].IncidentID != "inc-2" {
		t.Fatalf("unexpected records %+v", out)
	}
}
