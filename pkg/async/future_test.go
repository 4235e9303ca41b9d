package async

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFutureSettlesOnce(t *testing.T) {
	f, settle := New[int]()
	if f.Settled() {
		t.Fatal("new future should not be settled")
	}

	if err := settle(1, nil); err != nil {
		t.Fatalf("first settle failed: %v", err)
	}
	if err := settle(2, nil); !errors.Is(err, ErrAlreadySettled) {
		t.Errorf("expected ErrAlreadySettled, got %v", err)
	}

	v, err := f.Await(context.Background())
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if v != 1 {
		t.Errorf("expected 1, got %d", v)
	}
}

func TestFutureGo(t *testing.T) {
	boom := errors.New("boom")
	f := Go(func() (string, error) {
		time.Sleep(10 * time.Millisecond)
		return "", boom
	})

	select {
	case <-f.Done():
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for future")
	}

	if _, err := f.Await(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestFutureAwaitContextCancelled(t *testing.T) {
	f, _ := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := f.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if f.Settled() {
		t.Error("cancelled await must not settle the future")
	}
}

func TestResolvedRejected(t *testing.T) {
	v, err := Resolved("ok").Await(context.Background())
	if err != nil || v != "ok" {
		t.Errorf("Resolved: got %q, %v", v, err)
	}

	boom := errors.New("boom")
	if _, err := Rejected[int](boom).Await(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Rejected: expected boom, got %v", err)
	}
}
