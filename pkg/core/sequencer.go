package core

import (
	"sync"

	"github.com/jabolina/floatingtemple/pkg/types"
)

// TransactionSequencer reserves transaction IDs for locally-originated
// commits and tracks which IDs have since been released for delivery,
// so that outgoing messages gated on an earlier, still-unreleased ID
// are held back rather than overtaking it (spec.md §4.6, part of C6).
// Grounded on peer/transaction_store.h's committed-but-not-yet-released
// bookkeeping around CommitTransaction.
type TransactionSequencer struct {
	mu sync.Mutex

	generator *TransactionIDGenerator
	pending   map[types.TransactionID]struct{}
	released  types.TransactionID
	hasReleased bool

	waiters []chan struct{}
}

// NewTransactionSequencer constructs a sequencer backed by generator.
func NewTransactionSequencer(generator *TransactionIDGenerator) *TransactionSequencer {
	return &TransactionSequencer{
		generator: generator,
		pending:   make(map[types.TransactionID]struct{}),
	}
}

// Reserve mints a fresh transaction ID and marks it pending.
func (s *TransactionSequencer) Reserve() types.TransactionID {
	tid := s.generator.Generate()

	s.mu.Lock()
	s.pending[tid] = struct{}{}
	s.mu.Unlock()

	return tid
}

// Release marks tid as released, waking anything blocked in
// WaitReleased. Other pending IDs, smaller or not, stay pending.
func (s *TransactionSequencer) Release(tid types.TransactionID) {
	s.mu.Lock()
	delete(s.pending, tid)
	if !s.hasReleased || types.Compare(tid, s.released) > 0 {
		s.released = tid
		s.hasReleased = true
	}
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}

// IsReleased reports whether tid has already been released, or was
// never reserved through this sequencer at all (an externally-stamped
// ID from another peer is always considered released from our side).
func (s *TransactionSequencer) IsReleased(tid types.TransactionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, stillPending := s.pending[tid]; stillPending {
		return false
	}
	return true
}

// WaitReleased blocks until the next call to Release, whichever ID it
// releases, or until done is closed.
func (s *TransactionSequencer) WaitReleased(done <-chan struct{}) {
	s.mu.Lock()
	ch := make(chan struct{})
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()

	select {
	case <-ch:
	case <-done:
	}
}

// HasOutstandingBefore reports whether any reserved-but-unreleased ID
// sorts strictly before tid; callers use this to decide whether an
// outgoing message gated on tid must still wait.
func (s *TransactionSequencer) HasOutstandingBefore(tid types.TransactionID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for outstanding := range s.pending {
		if types.Compare(outstanding, tid) < 0 {
			return true
		}
	}
	return false
}
