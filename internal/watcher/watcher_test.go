package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func collectFiles() (func(string), func() []string) {
	var mu sync.Mutex
	var files []string
	add := func(path string) {
		mu.Lock()
		files = append(files, path)
		mu.Unlock()
	}
	get := func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), files...)
	}
	return add, get
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatcherReportsSettledFile(t *testing.T) {
	dir := t.TempDir()
	add, get := collectFiles()

	w := New([]string{dir}, []string{".mzml"}, add, WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "run1.mzML")
	if err := os.WriteFile(path, []byte("<mzML/>"), 0644); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 3*time.Second, func() bool { return len(get()) == 1 }) {
		t.Fatalf("file not reported, got %v", get())
	}
	if got := get()[0]; got != path {
		t.Errorf("reported %q, want %q", got, path)
	}
}

func TestWatcherFiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	add, get := collectFiles()

	w := New([]string{dir}, []string{".mzml", ".msp"}, add, WithDebounce(50*time.Millisecond))
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "lib.msp"), []byte("NAME: x\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 3*time.Second, func() bool { return len(get()) == 1 }) {
		t.Fatalf("expected exactly the .msp file, got %v", get())
	}
	if filepath.Ext(get()[0]) != ".msp" {
		t.Errorf("reported %q, want the .msp file", get()[0])
	}
}

func TestWatcherCreatesMissingDirs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads", "instrument")
	w := New([]string{dir}, nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("watched dir not created: %v", err)
	}
}

func TestSyncExisting(t *testing.T) {
	dir := t.TempDir()
	pre := filepath.Join(dir, "old.mzXML")
	if err := os.WriteFile(pre, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	add, get := collectFiles()
	w := New([]string{dir}, []string{"mzxml"}, add)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	w.SyncExisting()
	files := get()
	if len(files) != 1 || files[0] != pre {
		t.Errorf("SyncExisting reported %v, want [%s]", files, pre)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	w := New([]string{t.TempDir()}, nil, nil)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}
