package types

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// SharedObject is the canonical identity of a distributed object
// (spec.md §3.3). It owns its Object ID, the set of peers that have ever
// requested its contents, and a lifecycle cache of the most recently
// validated live value.
//
// The per-object committed-event log (C5) is owned separately by
// core.ObjectLog, keyed by ObjectID, so that types stays free of the
// replay machinery; SharedObject itself only carries identity and the
// cache.
type SharedObject struct {
	mu sync.Mutex

	ID         ObjectID
	Versioned  bool
	Interested mapset.Set[*CanonicalPeer]

	// cachedValue/cachedAt implement the lifecycle cache: the most recent
	// live value known to be correct, and the sequence point at which it
	// is valid. A nil cachedAt means the cache is empty/invalid.
	cachedValue VersionedLocalObject
	cachedAt    *SequencePoint

	// unversionedValue holds the single local live value for an
	// unversioned object, which is never replayed (spec.md §4.5).
	unversionedValue LocalObject
}

// NewSharedObject constructs a fresh shared object identity.
func NewSharedObject(id ObjectID, versioned bool) *SharedObject {
	return &SharedObject{
		ID:         id,
		Versioned:  versioned,
		Interested: mapset.NewSet[*CanonicalPeer](),
	}
}

// AddInterestedPeer records that peer has requested this object's
// contents (spec.md glossary "interested peer").
func (s *SharedObject) AddInterestedPeer(peer *CanonicalPeer) {
	s.Interested.Add(peer)
}

// InterestedPeers returns a snapshot slice of the interested-peer set.
func (s *SharedObject) InterestedPeers() []*CanonicalPeer {
	return s.Interested.ToSlice()
}

// CachedValue returns the cached live value and the sequence point at
// which it is valid, or (nil, nil) if the cache is empty.
func (s *SharedObject) CachedValue() (VersionedLocalObject, *SequencePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cachedValue, s.cachedAt
}

// SetCachedValue records value as valid at sequencePoint.
func (s *SharedObject) SetCachedValue(value VersionedLocalObject, sequencePoint *SequencePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cachedValue = value
	s.cachedAt = sequencePoint
}

// InvalidateCacheIfAtOrBefore drops the cache if its validity sequence
// point already contains tid from origin — i.e. a newly inserted
// transaction at or before the cache's sequence point invalidates it,
// while a later one leaves it in place (spec.md §4.5
// "Insert-transaction").
func (s *SharedObject) InvalidateCacheIfAtOrBefore(origin *CanonicalPeer, tid TransactionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cachedAt == nil {
		return
	}
	if s.cachedAt.Has(origin, tid) {
		s.cachedValue = nil
		s.cachedAt = nil
	}
}

// UnversionedValue returns the single local live value held for an
// unversioned object.
func (s *SharedObject) UnversionedValue() LocalObject {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unversionedValue
}

// SetUnversionedValue sets the single local live value for an unversioned
// object.
func (s *SharedObject) SetUnversionedValue(value LocalObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unversionedValue = value
}
