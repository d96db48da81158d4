package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRuleWatcherInvokesOnChangeAfterDebounce(t *testing.T) {
	root := t.TempDir()

	changed := make(chan struct{}, 1)
	w, err := New(root, 20*time.Millisecond, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	defer func() {
		cancel()
		w.Stop()
	}()

	path := filepath.Join(root, "rule.oal")
	if err := os.WriteFile(path, []byte("m = from(Endpoint.latency).longAvg()"), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected onChange to fire after a file write")
	}
}

func TestRuleWatcherStopIsIdempotentAndLeavesNoGoroutine(t *testing.T) {
	root := t.TempDir()
	w, err := New(root, 10*time.Millisecond, func() {}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w.Start(context.Background())
	w.Stop()
	w.Stop() // must not block or panic when called twice
}
