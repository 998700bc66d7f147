package confloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherObservesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: info\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	changed := make(chan string, 1)
	w.OnChange(func(p string) {
		select {
		case changed <- p:
		default:
		}
	})

	if err := os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case p := <-changed:
		if p != path {
			t.Fatalf("callback path = %q, want %q", p, path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change callback within 5s")
	}
}

func TestWatcherIgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.yaml")
	if err := os.WriteFile(path, []byte("a: 1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	changed := make(chan string, 1)
	w.OnChange(func(p string) {
		select {
		case changed <- p:
		default:
		}
	})

	if err := os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("b: 2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case p := <-changed:
		t.Fatalf("unexpected callback for %q", p)
	case <-time.After(300 * time.Millisecond):
	}
}
