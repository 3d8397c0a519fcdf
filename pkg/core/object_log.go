package core

import (
	"sort"
	"sync"

	"github.com/jabolina/floatingtemple/pkg/types"
)

// RewindSink receives rewind notifications produced by conflict
// detection during get-working-version, so recording threads can be
// unwound past a rejected transaction.
type RewindSink interface {
	Rewind(origin *types.CanonicalPeer, rejectedTID types.TransactionID)
}

// RejectedTransaction names the origin peer and earliest offending
// transaction ID that get-working-version could not reconcile.
type RejectedTransaction struct {
	Origin *types.CanonicalPeer
	TID    types.TransactionID
}

// NewBinding records that a shared object newly encountered mid-replay
// was bound to a local handle supplied by the live interpreter.
type NewBinding struct {
	Handle *types.Handle
	Object *types.SharedObject
}

// ObjectLog is the per-shared-object ordered transaction log (spec.md
// §4.5, C5), grounded on peer/shared_object.cc and the
// get_working_version algorithm described in the accompanying
// transaction_store.h. Versioned objects keep a full ordered log and a
// version map of delivered prefixes; unversioned objects keep only the
// single current live value.
type ObjectLog struct {
	mu sync.Mutex

	object *types.SharedObject

	// order holds transaction IDs in ascending order; txns holds the
	// transaction keyed by ID. Kept as a parallel slice+map because
	// replay needs ordered iteration and insert-transaction needs
	// idempotent point lookups.
	order []types.TransactionID
	txns  map[types.TransactionID]types.Transaction

	delivered *types.MaxVersionMap

	replayer Replayer
}

// Replayer is the subset of playback-thread behavior ObjectLog depends
// on, so tests can substitute a deterministic fake without standing up
// a full goroutine-backed playback thread. The first event of a
// segment is always the OBJECT_CREATION that seeds it; the replayer is
// responsible for deserializing its InitialState through whatever
// Interpreter it was constructed with.
type Replayer interface {
	// Replay drives events (in order, first one being OBJECT_CREATION)
	// reporting the resulting live value, any new bindings discovered,
	// and, on conflict, the offending transaction.
	Replay(events []replaySegmentEvent) (result types.VersionedLocalObject, bindings []NewBinding, conflict *RejectedTransaction)
}

// replaySegmentEvent pairs a committed event with the transaction
// metadata get-working-version needs to build a rejection entry.
type replaySegmentEvent struct {
	TID    types.TransactionID
	Origin *types.CanonicalPeer
	Event  types.CommittedEvent
}

// NewObjectLog constructs an empty log for object, replayed via replayer.
func NewObjectLog(object *types.SharedObject, replayer Replayer) *ObjectLog {
	return &ObjectLog{
		object:    object,
		txns:      make(map[types.TransactionID]types.Transaction),
		delivered: types.NewMaxVersionMap(),
		replayer:  replayer,
	}
}

// InsertTransaction adds txn to the log in order, invalidating the
// cached live value if txn is not later than the cache's sequence
// point (spec.md §4.5 "Insert-transaction").
func (l *ObjectLog) InsertTransaction(txn types.Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.txns[txn.ID]; exists {
		return
	}
	l.insertLocked(txn)
	l.delivered.AddPeerTransactionID(txn.OriginPeer, txn.ID)

	l.object.InvalidateCacheIfAtOrBefore(txn.OriginPeer, txn.ID)
}

func (l *ObjectLog) insertLocked(txn types.Transaction) {
	l.txns[txn.ID] = txn
	i := sort.Search(len(l.order), func(i int) bool {
		return types.Compare(l.order[i], txn.ID) > 0
	})
	l.order = append(l.order, types.TransactionID{})
	copy(l.order[i+1:], l.order[i:])
	l.order[i] = txn.ID
}

// GetTransactions returns every transaction not already covered by
// caller's version map, plus the effective version: the pointwise max
// of this log's delivered map and a synthetic (localPeer → MAX) entry
// (spec.md §4.5 "Get-transactions").
func (l *ObjectLog) GetTransactions(caller *types.MaxVersionMap, localPeer *types.CanonicalPeer) ([]types.Transaction, *types.MaxVersionMap) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []types.Transaction
	for _, tid := range l.order {
		txn := l.txns[tid]
		if caller.HasPeerTransactionID(txn.OriginPeer, txn.ID) {
			continue
		}
		out = append(out, txn)
	}

	effective := l.delivered.Clone()
	effective.AddPeerTransactionID(localPeer, types.MaxTransactionID)
	return out, effective
}

// StoreTransactions merges a batch received via STORE_OBJECT: unknown
// transactions are inserted in order and the delivered version map is
// merged. Idempotent under repeated delivery (spec.md §4.5
// "Store-transactions").
func (l *ObjectLog) StoreTransactions(txns []types.Transaction, version *types.MaxVersionMap) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, txn := range txns {
		if _, exists := l.txns[txn.ID]; exists {
			continue
		}
		l.insertLocked(txn)
	}
	l.delivered.MergeFrom(version)
}

// GetWorkingVersion implements spec.md §4.5's central algorithm: it
// returns the object's live value as of sp, replaying the log through
// playback threads when the cache is stale, detecting conflicts
// against concurrently-committed transactions, and reporting any new
// handle bindings discovered mid-replay.
func (l *ObjectLog) GetWorkingVersion(sp *types.SequencePoint) (types.VersionedLocalObject, []NewBinding, []RejectedTransaction) {
	if cached, cachedAt := l.object.CachedValue(); cached != nil && sequencePointCovers(cachedAt, sp) {
		return cached, nil, nil
	}

	l.mu.Lock()
	order := append([]types.TransactionID(nil), l.order...)
	txns := make(map[types.TransactionID]types.Transaction, len(order))
	for _, tid := range order {
		txns[tid] = l.txns[tid]
	}
	l.mu.Unlock()

	var (
		bindings []NewBinding
		rejected []RejectedTransaction
		excluded = make(map[*types.CanonicalPeer]bool)
		segment  []replaySegmentEvent
		result   types.VersionedLocalObject
	)

	flush := func() {
		if len(segment) == 0 {
			return
		}
		value, newBindings, conflict := l.replayer.Replay(segment)
		bindings = append(bindings, newBindings...)
		if conflict != nil {
			rejected = append(rejected, *conflict)
			excluded[conflict.Origin] = true
		} else {
			result = value
		}
		segment = nil
	}

	for _, tid := range order {
		txn := txns[tid]
		if !sp.Has(txn.OriginPeer, tid) {
			continue
		}
		if excluded[txn.OriginPeer] {
			continue
		}

		for objectID, events := range txn.ObjectEvents {
			if objectID != l.object.ID {
				continue
			}
			for _, ev := range events {
				if ev.Kind == types.ObjectCreation {
					// A later OBJECT_CREATION restarts replay from here:
					// a peer that learned of the object from a snapshot.
					flush()
				}
				segment = append(segment, replaySegmentEvent{TID: tid, Origin: txn.OriginPeer, Event: ev})
			}
		}
	}
	flush()

	if result != nil {
		l.object.SetCachedValue(result, sp.Clone())
	}

	return result, bindings, rejected
}

// sequencePointCovers reports whether cachedAt is still valid to serve
// a request at sp: true when, for every peer in sp's version map,
// cachedAt's version map already reaches sp's entry for that peer.
// Exclusion ranges and rejected-peer entries are not compared.
func sequencePointCovers(cachedAt, sp *types.SequencePoint) bool {
	if cachedAt == nil || sp == nil {
		return false
	}
	for _, peer := range sp.VersionMap.Peers() {
		spTID := sp.VersionMap.Get(peer)
		if !cachedAt.VersionMap.HasPeerTransactionID(peer, spTID) {
			return false
		}
	}
	return true
}

