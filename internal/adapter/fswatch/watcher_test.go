package fswatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "assignments.yaml")
	if err := os.WriteFile(path, []byte("a: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	// Every write in the burst lands well inside one window.
	const debounce = time.Second
	w, err := New(debounce)
	if err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int32
	if err := w.Add(path, func(string) error {
		calls.Add(1)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	startWatcher(t, w)

	// A burst of writes is folded into one reload.
	for i := range 5 {
		if err := os.WriteFile(path, []byte{'a', ':', ' ', byte('0' + i), '\n'}, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, func() bool { return calls.Load() >= 1 })
	time.Sleep(2 * debounce)
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected 1 debounced reload, got %d", got)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devteam.yaml")

	w, err := New(10 * time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	var calls atomic.Int32
	_ = w.Add(path, func(string) error {
		calls.Add(1)
		return errors.New("bad yaml")
	})
	startWatcher(t, w)

	_ = os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o600)
	time.Sleep(100 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatal("unrelated file triggered a reload")
	}

	// Created after Add, and a failing handler keeps the watcher alive.
	_ = os.WriteFile(path, []byte("x"), 0o600)
	waitFor(t, func() bool { return calls.Load() == 1 })
	_ = os.WriteFile(path, []byte("y"), 0o600)
	waitFor(t, func() bool { return calls.Load() == 2 })
}
