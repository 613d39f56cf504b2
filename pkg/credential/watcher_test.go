package credential

import (
	"context"
	"testing"
	"time"
)

func TestDirWatcherReloadsOnNewFile(t *testing.T) {
	m := newTestManager(t, 1, "a")

	w, err := NewDirWatcher(m)
	if err != nil {
		t.Fatalf("NewDirWatcher failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(200 * time.Millisecond)

	writeCredFile(t, m.store.Dir(), "b", `{"bearer_token":"tok-b"}`)

	deadline := time.Now().Add(5 * time.Second)
	for m.PoolSize() != 2 {
		if time.Now().After(deadline) {
			t.Fatalf("pool not reloaded after file change: size = %d", m.PoolSize())
		}
		time.Sleep(50 * time.Millisecond)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Watch returned error: %v", err)
	}
}
