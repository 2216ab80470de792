package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/xg2g/internal/coordination"
	"github.com/ManuGH/xg2g/internal/model"
	"github.com/ManuGH/xg2g/internal/playback"
	"github.com/ManuGH/xg2g/internal/voice"
)

func newTestWorker(t *testing.T) *Worker {
	t.Helper()

	restore := playback.SetPlayerBinaryForTest(func() string { return "true" })
	t.Cleanup(restore)

	coordDir := t.TempDir()
	coord, err := coordination.New(coordDir, "worker-test", 5*time.Millisecond, time.Minute)
	if err != nil {
		t.Fatalf("coordination.New() error = %v", err)
	}
	t.Cleanup(func() { _ = coord.Close() })

	voiceDir := t.TempDir()
	catalog := voice.NewCatalog(nil, voiceDir, voiceDir, "")

	return New(Config{
		Coordinator:     coord,
		Loader:          model.ReferenceLoader,
		Catalog:         catalog,
		LockTimeout:     2 * time.Second,
		IdleUnloadAfter: time.Minute,
		TempDir:         t.TempDir(),
	})
}

// waitForTurnsDone blocks until every playback turn issued so far has been
// finished, by queueing a probe turn behind them.
func waitForTurnsDone(t *testing.T, w *Worker) {
	t.Helper()
	probe := w.order.Issue()
	done := make(chan struct{})
	go func() {
		w.order.WaitTurn(probe)
		w.order.FinishTurn()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("queued requests did not finish their playback turns in time")
	}
}

func TestSubmitRejectsEmptyText(t *testing.T) {
	w := newTestWorker(t)
	if _, err := w.Submit(context.Background(), Request{Text: "  "}); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestSubmitIssuesIncreasingTickets(t *testing.T) {
	w := newTestWorker(t)
	t1, err := w.Submit(context.Background(), Request{Text: "one"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	t2, err := w.Submit(context.Background(), Request{Text: "two"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if t2 != t1+1 {
		t.Errorf("tickets = %d, %d; want strictly increasing by 1", t1, t2)
	}
}

func TestRunProcessesQueuedRequestEndToEnd(t *testing.T) {
	w := newTestWorker(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if _, err := w.Submit(ctx, Request{Text: "hello world"}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	waitForTurnsDone(t, w)

	deadline := time.After(5 * time.Second)
	for {
		entries, err := os.ReadDir(w.tempDir)
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		if len(entries) == 0 {
			// The WAV file is deleted after playback, before the request
			// finishes its turn; with the turn finished and no leftover
			// files, the request has been fully processed.
			break
		}
		select {
		case <-deadline:
			t.Fatalf("request did not complete in time, leftover files: %v", entries)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestRunDrainsMultipleQueuedRequests(t *testing.T) {
	w := newTestWorker(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	texts := []string{"one", "two", "three"}
	for _, text := range texts {
		if _, err := w.Submit(ctx, Request{Text: text}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	waitForTurnsDone(t, w)

	deadline := time.After(5 * time.Second)
	for {
		entries, err := os.ReadDir(w.tempDir)
		if err != nil {
			t.Fatalf("ReadDir() error = %v", err)
		}
		if len(entries) == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("requests did not drain in time, leftover files: %v", entries)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestVoiceResolutionFailureStillFinishesTurn(t *testing.T) {
	w := newTestWorker(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	badPath := filepath.Join(t.TempDir(), "does-not-exist.wav")
	if _, err := w.Submit(ctx, Request{Text: "hello", VoicePath: badPath}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// A second, well-formed request must still be able to complete,
	// proving the failed request released the lock and advanced the
	// in-process ticket order exactly once: waitForTurnsDone returns only
	// after both requests have finished their turns.
	done := make(chan struct{})
	go func() {
		if _, err := w.Submit(ctx, Request{Text: "still works"}); err != nil {
			t.Errorf("Submit() error = %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("second request did not get submitted in time")
	}

	waitForTurnsDone(t, w)
}
