package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestWatcher_DebouncesDirectoryArtifact(t *testing.T) {
	dir := t.TempDir()
	var calls int32
	w := NewWatcher(dir, []string{"catalog.jsonl", "similarity.f32"}, func() {
		atomic.AddInt32(&calls, 1)
	}, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		if err := writeFile(filepath.Join(dir, "similarity.f32"), "x"); err != nil {
			t.Fatal(err)
		}
	}
	if err := writeFile(filepath.Join(dir, "catalog.jsonl"), "{}"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(500 * time.Millisecond)

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected one reload for a burst of writes, got %d", got)
	}
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	var calls int32
	w := NewWatcher(dir, []string{"catalog.jsonl", "similarity.f32"}, func() {
		atomic.AddInt32(&calls, 1)
	}, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := writeFile(filepath.Join(dir, "notes.txt"), "hello"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("unrelated file triggered %d reloads", got)
	}
}

func TestWatcher_SingleFileArtifact(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "movies.db")
	if err := writeFile(dbPath, "v1"); err != nil {
		t.Fatal(err)
	}
	var calls int32
	w := NewWatcher(dbPath, nil, func() {
		atomic.AddInt32(&calls, 1)
	}, WithDebounce(50*time.Millisecond))
	if w.dir != dir {
		t.Errorf("dir: got %q, want %q", w.dir, dir)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// Replace the file the way a deploy would: write aside, then rename over.
	tmp := filepath.Join(dir, "movies.db.tmp")
	if err := writeFile(tmp, "v2"); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, dbPath); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got < 1 {
		t.Errorf("expected a reload after replacing the database, got %d", got)
	}
}

func TestWatcher_StopCancelsPendingReload(t *testing.T) {
	dir := t.TempDir()
	var calls int32
	w := NewWatcher(dir, nil, func() {
		atomic.AddInt32(&calls, 1)
	}, WithDebounce(200*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "catalog.jsonl"), "{}"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(50 * time.Millisecond)
	w.Stop()
	w.Stop()
	time.Sleep(300 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 0 {
		t.Errorf("reload ran after Stop: %d", got)
	}
}

func TestMatchName(t *testing.T) {
	tests := []struct {
		path  string
		names []string
		want  bool
	}{
		{"/a/catalog.jsonl", []string{"catalog.jsonl"}, true},
		{"/a/catalog.jsonl.swp", []string{"catalog.jsonl"}, false},
		{"/a/similarity.f32", []string{"catalog.jsonl", "similarity.f32"}, true},
		{"/a/anything", nil, true},
	}
	for _, tt := range tests {
		if got := matchName(tt.path, tt.names); got != tt.want {
			t.Errorf("matchName(%q, %v) = %v, want %v", tt.path, tt.names, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.db", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
