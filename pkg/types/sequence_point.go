package types

import "sort"

// SequencePoint is a snapshot of which remote transactions a reader
// considers visible: a MaxVersionMap, a PeerExclusionMap, and a map of
// peer to the set of transaction start-IDs rejected by this peer but not
// yet replaced (spec.md §3.2, §4.2).
//
// A transaction is visible at a sequence point iff the version map
// contains it, the exclusion map does not cover it, and it is not beyond
// the first rejected transaction of its origin — the exact three-part
// test implemented by SequencePointImpl::HasPeerTransactionId in the
// original engine/ tree.
type SequencePoint struct {
	VersionMap   *MaxVersionMap
	Exclusion    *PeerExclusionMap
	rejectedTIDs map[*CanonicalPeer][]TransactionID
}

// NewSequencePoint returns an empty sequence point.
func NewSequencePoint() *SequencePoint {
	return &SequencePoint{
		VersionMap:   NewMaxVersionMap(),
		Exclusion:    NewPeerExclusionMap(),
		rejectedTIDs: make(map[*CanonicalPeer][]TransactionID),
	}
}

// Has reports whether tid, originating from peer, is visible at this
// sequence point.
func (s *SequencePoint) Has(peer *CanonicalPeer, tid TransactionID) bool {
	if !s.VersionMap.HasPeerTransactionID(peer, tid) {
		return false
	}
	if s.Exclusion.IsTransactionExcluded(peer, tid) {
		return false
	}

	rejected, ok := s.rejectedTIDs[peer]
	if !ok || len(rejected) == 0 {
		return true
	}

	// rejected is kept sorted; the first entry is the lowest rejected
	// start-ID for this origin.
	return Less(tid, rejected[0])
}

// AddPeerTID advances the visible maximum for peer, monotonically.
func (s *SequencePoint) AddPeerTID(peer *CanonicalPeer, tid TransactionID) {
	s.VersionMap.AddPeerTransactionID(peer, tid)
}

// AddInvalidatedRange marks [start, end) as excluded for peer, and
// truncates any rejected-start entries for peer that fall inside the
// range, since they have now been superseded by the exclusion itself
// (spec.md §4.2).
func (s *SequencePoint) AddInvalidatedRange(peer *CanonicalPeer, start, end TransactionID) {
	s.Exclusion.AddExcludedRange(peer, start, end)

	rejected := s.rejectedTIDs[peer]
	if len(rejected) == 0 {
		return
	}

	kept := rejected[:0:0]
	for _, tid := range rejected {
		if !(!Less(tid, start) && Less(tid, end)) {
			kept = append(kept, tid)
		}
	}
	if len(kept) == 0 {
		delete(s.rejectedTIDs, peer)
	} else {
		s.rejectedTIDs[peer] = kept
	}
}

// AddRejectedPeer notes that transactions from peer at or after start are
// tentatively rejected.
func (s *SequencePoint) AddRejectedPeer(peer *CanonicalPeer, start TransactionID) {
	rejected := s.rejectedTIDs[peer]
	for _, existing := range rejected {
		if existing == start {
			return
		}
	}
	rejected = append(rejected, start)
	sort.Slice(rejected, func(i, j int) bool { return Less(rejected[i], rejected[j]) })
	s.rejectedTIDs[peer] = rejected
}

// RejectedPeers exposes the rejected-start map for inspection (used when
// broadcasting REJECT_TRANSACTION to remote peers).
func (s *SequencePoint) RejectedPeers() map[*CanonicalPeer][]TransactionID {
	return s.rejectedTIDs
}

// Clone deep-copies the sequence point; required because threads take
// snapshots that must evolve independently of the store's live state.
func (s *SequencePoint) Clone() *SequencePoint {
	clone := &SequencePoint{
		VersionMap:   s.VersionMap.Clone(),
		Exclusion:    s.Exclusion.Clone(),
		rejectedTIDs: make(map[*CanonicalPeer][]TransactionID, len(s.rejectedTIDs)),
	}
	for peer, tids := range s.rejectedTIDs {
		cp := make([]TransactionID, len(tids))
		copy(cp, tids)
		clone.rejectedTIDs[peer] = cp
	}
	return clone
}
