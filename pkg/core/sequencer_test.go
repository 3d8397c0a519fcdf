package core

import (
	"testing"
	"time"

	"github.com/jabolina/floatingtemple/pkg/types"
)

func TestTransactionSequencerReserveMarksPending(t *testing.T) {
	s := NewTransactionSequencer(NewTransactionIDGenerator())

	tid := s.Reserve()
	if s.IsReleased(tid) {
		t.Fatalf("expected a freshly reserved id to not be released yet")
	}
	if !s.HasOutstandingBefore(types.MaxTransactionID) {
		t.Fatalf("expected the reserved id to count as outstanding before MaxTransactionID")
	}
}

func TestTransactionSequencerReleaseUnblocksWaitReleased(t *testing.T) {
	s := NewTransactionSequencer(NewTransactionIDGenerator())
	tid := s.Reserve()

	done := make(chan struct{})
	woke := make(chan struct{})
	go func() {
		s.WaitReleased(done)
		close(woke)
	}()

	// Give the waiter time to register before releasing.
	time.Sleep(10 * time.Millisecond)
	s.Release(tid)

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for Release to wake WaitReleased")
	}

	if !s.IsReleased(tid) {
		t.Fatalf("expected the released id to report as released")
	}
}

func TestTransactionSequencerIsReleasedTreatsUnknownIDsAsReleased(t *testing.T) {
	s := NewTransactionSequencer(NewTransactionIDGenerator())

	foreign := types.TransactionID{Time: 42}
	if !s.IsReleased(foreign) {
		t.Fatalf("expected an id never reserved through this sequencer to be treated as released")
	}
}

func TestTransactionSequencerHasOutstandingBeforeIgnoresReleased(t *testing.T) {
	s := NewTransactionSequencer(NewTransactionIDGenerator())

	first := s.Reserve()
	second := s.Reserve()
	s.Release(first)

	if s.HasOutstandingBefore(first) {
		t.Fatalf("expected no outstanding ids before the already-released first id")
	}
	if !s.HasOutstandingBefore(types.TransactionID{Time: second.Time + 1, PeerHi: ^uint64(0), PeerLo: ^uint64(0)}) {
		t.Fatalf("expected the still-pending second id to count as outstanding before a later bound")
	}
}
