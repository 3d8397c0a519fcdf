package definition

import (
	"sync"

	"github.com/jabolina/floatingtemple/pkg/types"
)

// DefaultStorage is an in-memory types.Storage, used when an embedding
// does not configure its own journal. It is not durable across process
// restarts, consistent with spec.md §1's non-goals.
type DefaultStorage struct {
	mu      sync.Mutex
	entries []types.JournalEntry
}

// NewDefaultStorage returns an empty in-memory journal.
func NewDefaultStorage() *DefaultStorage {
	return &DefaultStorage{}
}

func (s *DefaultStorage) Append(entry types.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *DefaultStorage) Dump() ([]types.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.JournalEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

var _ types.Storage = (*DefaultStorage)(nil)
