package chain

import (
	"context"
	"errors"
	"testing"
)

func TestSimulatorNetCollected(t *testing.T) {
	s := NewSimulator(nil)
	ctx := context.Background()

	if err := s.Collect(ctx, "alice", 100); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if err := s.Release(ctx, "alice", 30); err != nil {
		t.Fatalf("release: %v", err)
	}

	if got := s.NetCollected("alice"); got != 70 {
		t.Fatalf("expected net 70, got %d", got)
	}
	if got := s.NetCollected("bob"); got != 0 {
		t.Fatalf("expected zero for unknown address, got %d", got)
	}
}

func TestSimulatorRejectsNegativeAmounts(t *testing.T) {
	s := NewSimulator(nil)
	ctx := context.Background()

	if err := s.Collect(ctx, "alice", -1); err == nil {
		t.Fatal("expected error for negative collect")
	}
	if err := s.Release(ctx, "alice", -1); err == nil {
		t.Fatal("expected error for negative release")
	}
}

func TestSimulatorClosed(t *testing.T) {
	s := NewSimulator(nil)
	s.Close()

	if err := s.Collect(context.Background(), "alice", 1); !errors.Is(err, ErrBridgeClosed) {
		t.Fatalf("expected ErrBridgeClosed, got %v", err)
	}
	if err := s.Release(context.Background(), "alice", 1); !errors.Is(err, ErrBridgeClosed) {
		t.Fatalf("expected ErrBridgeClosed, got %v", err)
	}
}
