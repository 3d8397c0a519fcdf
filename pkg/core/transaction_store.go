package core

import (
	"context"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/go-version"

	"github.com/jabolina/floatingtemple/pkg/types"
)

// sharedObjectCacheSize bounds the fast-path lookaside cache of
// recently touched shared objects (spec.md §4.6); a miss just falls
// through to the authoritative map under the store's mutex.
const sharedObjectCacheSize = 4096

// TransactionStore is the single owner of everything spec.md §4.6 (C6)
// names: the canonical-peer registry handle, the interpreter callback,
// local peer identity, a transaction-ID generator, a transaction
// sequencer, the table of shared objects, the set of named objects,
// the store-wide current sequence point, and a monotonically
// increasing version counter. Grounded on peer/transaction_store.h.
type TransactionStore struct {
	mu sync.Mutex

	local       *types.CanonicalPeer
	registry    *PeerRegistry
	interpreter types.Interpreter
	logger      types.Logger

	generator  *TransactionIDGenerator
	sequencer  *TransactionSequencer
	connection *ConnectionManager

	objects  map[types.ObjectID]*types.SharedObject
	logs     map[types.ObjectID]*ObjectLog
	named    map[types.ObjectID]bool
	fastPath *lru.Cache[types.ObjectID, *types.SharedObject]

	sequencePoint *types.SequencePoint
	version       uint64
	versionCond   *sync.Cond

	rewindSinks []RewindSink
	metrics     *Metrics
}

// SetMetrics attaches a Metrics collector; calls before this are
// no-ops on the metrics side.
func (s *TransactionStore) SetMetrics(m *Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

// NewTransactionStore constructs the store for local, backed by the
// given registry, interpreter, and connection manager. The connection
// manager's Dispatch callback is wired to the store's peer-message
// handlers.
func NewTransactionStore(local *types.CanonicalPeer, registry *PeerRegistry, interpreter types.Interpreter, connection *ConnectionManager, logger types.Logger) *TransactionStore {
	cache, err := lru.New[types.ObjectID, *types.SharedObject](sharedObjectCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// sharedObjectCacheSize never is.
		panic(fmt.Sprintf("floatingtemple: building shared-object cache: %v", err))
	}

	generator := NewTransactionIDGenerator()

	store := &TransactionStore{
		local:         local,
		registry:      registry,
		interpreter:   interpreter,
		logger:        logger,
		generator:     generator,
		sequencer:     NewTransactionSequencer(generator),
		connection:    connection,
		objects:       make(map[types.ObjectID]*types.SharedObject),
		logs:          make(map[types.ObjectID]*ObjectLog),
		named:         make(map[types.ObjectID]bool),
		fastPath:      cache,
		sequencePoint: types.NewSequencePoint(),
	}
	store.versionCond = sync.NewCond(&store.mu)

	if connection != nil {
		connection.Dispatch = store.handlePeerMessage
		connection.SetReleaseChecker(store.sequencer)
	}

	return store
}

// AddRewindSink registers a recording thread to be notified when a
// conflict forces a rewind below some transaction ID.
func (s *TransactionStore) AddRewindSink(sink RewindSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rewindSinks = append(s.rewindSinks, sink)
}

// CurrentSequencePoint returns a snapshot of the store-wide sequence
// point.
func (s *TransactionStore) CurrentSequencePoint() *types.SequencePoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sequencePoint.Clone()
}

// objectFor returns (creating if necessary) the shared object and its
// log for id.
func (s *TransactionStore) objectFor(id types.ObjectID, versioned bool) (*types.SharedObject, *ObjectLog) {
	if cached, ok := s.fastPath.Get(id); ok {
		s.mu.Lock()
		log := s.logs[id]
		s.mu.Unlock()
		return cached, log
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	object, ok := s.objects[id]
	if !ok {
		object = types.NewSharedObject(id, versioned)
		s.objects[id] = object
		s.logs[id] = NewObjectLog(object, s.playbackReplayer())
	}
	s.fastPath.Add(id, object)
	return object, s.logs[id]
}

// playbackReplayer returns the Replayer used to drive get-working-version
// segments, adapting a PlaybackThread per call since each replay
// segment is independent (spec.md §4.8).
func (s *TransactionStore) playbackReplayer() Replayer {
	return &storeReplayer{store: s}
}

// CreateUnboundHandle mints a handle with no shared object attached.
func (s *TransactionStore) CreateUnboundHandle(versioned bool) *types.Handle {
	return types.NewUnboundHandle(versioned)
}

// GetOrCreateNamedObject resolves name to its shared object by hashed
// Object ID, inserting it into the named set on first use.
func (s *TransactionStore) GetOrCreateNamedObject(name string, versioned bool) *types.SharedObject {
	id := types.NewNamedObjectID(name)
	object, _ := s.objectFor(id, versioned)

	s.mu.Lock()
	wasNamed := s.named[id]
	s.named[id] = true
	s.mu.Unlock()

	if !wasNamed {
		s.announceNamedObject(object)
	}
	return object
}

// GetLiveObject returns the live value of handle's shared object at sp.
// If the object is unknown locally it broadcasts GET_OBJECT and, if
// wait is true, blocks until the object arrives or ctx is done.
func (s *TransactionStore) GetLiveObject(ctx context.Context, handle *types.Handle, sp *types.SequencePoint, wait bool) (types.VersionedLocalObject, error) {
	object := handle.Object()
	if object == nil {
		return nil, fmt.Errorf("floatingtemple: handle %q is unbound", handle.Name())
	}

	if !object.Versioned {
		return nil, fmt.Errorf("floatingtemple: object %s is unversioned, its live value is never replayed", object.ID)
	}

	_, log := s.objectFor(object.ID, object.Versioned)
	for {
		value, bindings, rejected := log.GetWorkingVersion(sp)
		s.applyNewBindings(bindings)

		if len(rejected) > 0 {
			s.rejectTransactions(rejected)
		}

		if value != nil {
			return value, nil
		}

		s.broadcastGetObject(object)

		if !wait {
			return nil, fmt.Errorf("floatingtemple: object %s not available locally", object.ID)
		}

		if err := s.waitForVersionChange(ctx); err != nil {
			return nil, err
		}
	}
}

func (s *TransactionStore) logFor(object *types.SharedObject) *ObjectLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logs[object.ID]
}

func (s *TransactionStore) waitForVersionChange(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.mu.Lock()
		s.versionCond.Wait()
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.bumpVersion() // wake the waiter goroutine so it doesn't leak
		return ctx.Err()
	}
}

func (s *TransactionStore) bumpVersion() {
	s.mu.Lock()
	s.version++
	metrics := s.metrics
	version := s.version
	s.mu.Unlock()
	if metrics != nil {
		metrics.Version.Set(float64(version))
	}
	s.versionCond.Broadcast()
}

// applyNewBindings binds each handle a replay discovered to the store's
// canonical SharedObject for that ID — not the throwaway one the
// playback thread constructed — so a sub-object correlated by
// SUB_OBJECT_CREATION (spec.md §4.8 "Object-identity matching") shares
// its cache and log with every other handle bound to the same ID.
func (s *TransactionStore) applyNewBindings(bindings []NewBinding) {
	for _, b := range bindings {
		canonical, _ := s.objectFor(b.Object.ID, b.Object.Versioned)
		if b.Object.Versioned {
			if cached, _ := canonical.CachedValue(); cached == nil {
				if v, at := b.Object.CachedValue(); v != nil {
					canonical.SetCachedValue(v, at)
				}
			}
		} else if uv := b.Object.UnversionedValue(); uv != nil {
			canonical.SetUnversionedValue(uv)
		}
		b.Handle.Bind(canonical)
	}
}

// Commit assembles a transaction from a recording thread's pending
// events, reserves a transaction ID, writes per-object subsequences to
// C5, releases the ID to the sequencer for broadcast, and updates
// cached live values on touched objects (spec.md §4.6 "commit").
func (s *TransactionStore) Commit(pendingEvents map[types.ObjectID][]types.CommittedEvent, modifiedLiveObjects map[types.ObjectID]types.VersionedLocalObject, prevSP *types.SequencePoint) types.TransactionID {
	tid := s.sequencer.Reserve()

	txn := *types.NewTransaction(tid, s.local)
	for objectID, events := range pendingEvents {
		for _, ev := range events {
			txn.AddEvent(objectID, ev)
		}
	}

	for objectID := range pendingEvents {
		object, log := s.objectFor(objectID, true)
		log.InsertTransaction(txn)
		if value, ok := modifiedLiveObjects[objectID]; ok {
			object.SetCachedValue(value, nil)
		}
	}

	s.mu.Lock()
	s.sequencePoint.AddPeerTID(s.local, tid)
	s.mu.Unlock()

	s.broadcastApplyTransaction(txn)
	s.sequencer.Release(tid)
	s.bumpVersion()

	if s.metrics != nil {
		s.metrics.Commits.Inc()
	}

	return tid
}

// ObjectsIdentical reports whether a and b are bound to the same
// shared object record (pointer identity).
func (s *TransactionStore) ObjectsIdentical(a, b *types.Handle) bool {
	return types.SameObject(a, b)
}

// --- Peer-message handlers (spec.md §4.6 "Peer-message handlers") ---

func (s *TransactionStore) handlePeerMessage(conn *PeerConnection, msg PeerMessage) {
	switch msg.Kind {
	case Hello:
		s.handleHello(conn, msg)
	case ApplyTransaction:
		s.handleApplyTransaction(msg)
	case GetObject:
		s.handleGetObject(conn, msg)
	case StoreObject:
		s.handleStoreObject(msg)
	case RejectTransaction:
		s.handleRejectTransaction(msg)
	case InvalidateTransactions:
		s.handleInvalidateTransactions(conn.Remote(), msg)
	}
}

func (s *TransactionStore) handleHello(conn *PeerConnection, msg PeerMessage) {
	conn.MarkHelloReceived()

	if !protocolVersionsCompatible(EngineProtocolVersion, msg.ProtocolVersion) {
		s.logger.Warnf("floatingtemple: peer %s speaks incompatible protocol version %q, draining connection",
			conn.Remote(), msg.ProtocolVersion)
		conn.RequestDrain()
		return
	}

	s.announceAllNamedObjectsTo(conn.Remote())
}

// protocolVersionsCompatible reports whether a remote HELLO's protocol
// version shares our major version, parsed via hashicorp/go-version so
// malformed or pre-release strings compare correctly instead of via a
// brittle string prefix check.
func protocolVersionsCompatible(ours, theirs string) bool {
	if theirs == "" {
		return false
	}
	mine, err := version.NewVersion(ours)
	if err != nil {
		return false
	}
	remote, err := version.NewVersion(theirs)
	if err != nil {
		return false
	}
	return mine.Segments()[0] == remote.Segments()[0]
}

func (s *TransactionStore) handleApplyTransaction(msg PeerMessage) {
	origin := s.registry.Get(msg.PeerID)
	txn := *types.NewTransaction(msg.TransactionID, origin)
	for _, ot := range msg.ObjectTransactions {
		for _, ev := range ot.Events {
			txn.AddEvent(ot.ObjectID, ev)
		}
	}

	for _, ot := range msg.ObjectTransactions {
		_, log := s.objectFor(ot.ObjectID, true)
		log.InsertTransaction(txn)
	}

	s.mu.Lock()
	s.sequencePoint.AddPeerTID(origin, msg.TransactionID)
	s.mu.Unlock()

	s.bumpVersion()
}

func (s *TransactionStore) handleGetObject(conn *PeerConnection, msg PeerMessage) {
	s.mu.Lock()
	object, ok := s.objects[msg.ObjectID]
	s.mu.Unlock()
	if !ok {
		s.send(conn, PeerMessage{Kind: StoreObject, ObjectID: msg.ObjectID})
		return
	}

	object.AddInterestedPeer(conn.Remote())
	log := s.logFor(object)
	txns, version := log.GetTransactions(types.NewMaxVersionMap(), s.local)

	interested := object.InterestedPeers()
	interestedIDs := make([]types.PeerID, 0, len(interested))
	for _, p := range interested {
		interestedIDs = append(interestedIDs, p.PeerID())
	}

	s.send(conn, PeerMessage{
		Kind:              StoreObject,
		ObjectID:          msg.ObjectID,
		Transactions:      toWireTransactions(txns),
		PeerVersions:      versionMapToWire(version),
		InterestedPeerIDs: interestedIDs,
	})
}

func (s *TransactionStore) handleStoreObject(msg PeerMessage) {
	object, log := s.objectFor(msg.ObjectID, true)

	for _, id := range msg.InterestedPeerIDs {
		object.AddInterestedPeer(s.registry.Get(id))
	}

	txns := fromWireTransactions(msg.Transactions, s.registry)
	version := versionMapFromWire(msg.PeerVersions, s.registry)
	log.StoreTransactions(txns, version)

	s.bumpVersion()
}

func (s *TransactionStore) handleRejectTransaction(msg PeerMessage) {
	s.mu.Lock()
	for _, entry := range msg.Rejected {
		peer := s.registry.Get(entry.PeerID)
		if peer == s.local {
			s.sequencePoint.AddInvalidatedRange(peer, entry.TransactionID, msg.NewTransactionID)
		} else {
			s.sequencePoint.AddRejectedPeer(peer, entry.TransactionID)
		}
	}
	s.mu.Unlock()

	for _, entry := range msg.Rejected {
		peer := s.registry.Get(entry.PeerID)
		if peer != s.local {
			continue
		}
		s.broadcastInvalidateTransactions(entry.TransactionID, msg.NewTransactionID)
		s.notifyRewind(peer, entry.TransactionID)
	}

	s.bumpVersion()
}

func (s *TransactionStore) handleInvalidateTransactions(origin *types.CanonicalPeer, msg PeerMessage) {
	s.mu.Lock()
	s.sequencePoint.AddInvalidatedRange(origin, msg.StartTransactionID, msg.EndTransactionID)
	s.mu.Unlock()
	s.bumpVersion()
}

// rejectTransactions implements the conflict-rejection protocol
// (spec.md §4.6 "Conflict rejection protocol").
func (s *TransactionStore) rejectTransactions(rejected []RejectedTransaction) {
	if len(rejected) == 0 {
		return
	}

	newTID := s.sequencer.Reserve()

	sort.Slice(rejected, func(i, j int) bool {
		return types.Compare(rejected[i].TID, rejected[j].TID) < 0
	})
	oldestByPeer := make(map[*types.CanonicalPeer]types.TransactionID)

	s.mu.Lock()
	for _, r := range rejected {
		if r.Origin == s.local {
			s.sequencePoint.AddInvalidatedRange(r.Origin, r.TID, newTID)
			if existing, ok := oldestByPeer[r.Origin]; !ok || types.Compare(r.TID, existing) < 0 {
				oldestByPeer[r.Origin] = r.TID
			}
		} else {
			s.sequencePoint.AddRejectedPeer(r.Origin, r.TID)
		}
	}
	s.sequencePoint.AddPeerTID(s.local, newTID)
	s.mu.Unlock()

	wireRejected := make([]WireRejectedEntry, 0, len(rejected))
	for _, r := range rejected {
		wireRejected = append(wireRejected, WireRejectedEntry{PeerID: r.Origin.PeerID(), TransactionID: r.TID})
	}
	s.broadcastToInterested(PeerMessage{Kind: RejectTransaction, NewTransactionID: newTID, Rejected: wireRejected})

	for origin, oldest := range oldestByPeer {
		s.broadcastInvalidateTransactions(oldest, newTID)
		s.notifyRewind(origin, oldest)
	}

	s.sequencer.Release(newTID)

	if s.metrics != nil {
		s.metrics.Rejects.Add(float64(len(rejected)))
	}
}

func (s *TransactionStore) notifyRewind(origin *types.CanonicalPeer, rejectedTID types.TransactionID) {
	s.mu.Lock()
	sinks := append([]RewindSink(nil), s.rewindSinks...)
	s.mu.Unlock()

	for _, sink := range sinks {
		sink.Rewind(origin, rejectedTID)
	}

	if s.metrics != nil {
		s.metrics.Rewinds.Inc()
	}
}

// --- outbound broadcast helpers ---

func (s *TransactionStore) broadcastApplyTransaction(txn types.Transaction) {
	objectTxns := make([]WireObjectTransaction, 0, len(txn.ObjectEvents))
	for objectID, events := range txn.ObjectEvents {
		objectTxns = append(objectTxns, WireObjectTransaction{ObjectID: objectID, Events: events})
	}

	msg := PeerMessage{
		Kind:               ApplyTransaction,
		PeerID:             s.local.PeerID(),
		TransactionID:      txn.ID,
		ObjectTransactions: objectTxns,
	}

	var interested []*types.CanonicalPeer
	for objectID := range txn.ObjectEvents {
		s.mu.Lock()
		object, ok := s.objects[objectID]
		s.mu.Unlock()
		if ok {
			interested = append(interested, object.InterestedPeers()...)
		}
	}
	s.sendToPeersGated(interested, msg, txn.ID)
}

func (s *TransactionStore) broadcastGetObject(object *types.SharedObject) {
	s.broadcastAll(PeerMessage{Kind: GetObject, ObjectID: object.ID})
}

func (s *TransactionStore) broadcastInvalidateTransactions(start, end types.TransactionID) {
	s.broadcastAll(PeerMessage{Kind: InvalidateTransactions, StartTransactionID: start, EndTransactionID: end})
}

func (s *TransactionStore) broadcastToInterested(msg PeerMessage) {
	s.broadcastAll(msg)
}

func (s *TransactionStore) broadcastAll(msg PeerMessage) {
	if s.connection == nil {
		return
	}
	for _, conn := range s.connection.All() {
		s.send(conn, msg)
	}
}

func (s *TransactionStore) sendToPeersGated(peers []*types.CanonicalPeer, msg PeerMessage, gate types.TransactionID) {
	if s.connection == nil {
		return
	}
	for _, peer := range peers {
		conn, ok := s.connection.Get(peer.PeerID())
		if !ok {
			continue
		}
		conn.Enqueue(msg, gate, true)
	}
}

func (s *TransactionStore) send(conn *PeerConnection, msg PeerMessage) {
	conn.Enqueue(msg, types.TransactionID{}, false)
}

func (s *TransactionStore) announceNamedObject(object *types.SharedObject) {
	s.broadcastGetObject(object)
}

func (s *TransactionStore) announceAllNamedObjectsTo(remote *types.CanonicalPeer) {
	s.mu.Lock()
	ids := make([]types.ObjectID, 0, len(s.named))
	for id, named := range s.named {
		if named {
			ids = append(ids, id)
		}
	}
	conn, ok := s.connection.Get(remote.PeerID())
	s.mu.Unlock()

	if !ok {
		return
	}
	for _, id := range ids {
		s.send(conn, PeerMessage{Kind: GetObject, ObjectID: id})
	}
}

// --- wire conversion helpers ---

func toWireTransactions(txns []types.Transaction) []WireTransaction {
	out := make([]WireTransaction, 0, len(txns))
	for _, t := range txns {
		out = append(out, WireTransaction{
			ID:           t.ID,
			OriginPeerID: t.OriginPeer.PeerID(),
			ObjectEvents: t.ObjectEvents,
		})
	}
	return out
}

func fromWireTransactions(wire []WireTransaction, registry *PeerRegistry) []types.Transaction {
	out := make([]types.Transaction, 0, len(wire))
	for _, w := range wire {
		txn := *types.NewTransaction(w.ID, registry.Get(w.OriginPeerID))
		for objectID, events := range w.ObjectEvents {
			for _, ev := range events {
				txn.AddEvent(objectID, ev)
			}
		}
		out = append(out, txn)
	}
	return out
}

func versionMapToWire(vm *types.MaxVersionMap) map[types.PeerID]types.TransactionID {
	out := make(map[types.PeerID]types.TransactionID)
	for _, peer := range vm.Peers() {
		out[peer.PeerID()] = vm.Get(peer)
	}
	return out
}

func versionMapFromWire(wire map[types.PeerID]types.TransactionID, registry *PeerRegistry) *types.MaxVersionMap {
	vm := types.NewMaxVersionMap()
	for peerID, tid := range wire {
		vm.AddPeerTransactionID(registry.Get(peerID), tid)
	}
	return vm
}

// storeReplayer adapts a PlaybackThread to the Replayer interface
// ObjectLog depends on, seeding it from the store's interpreter.
type storeReplayer struct {
	store *TransactionStore
}

func (r *storeReplayer) Replay(events []replaySegmentEvent) (types.VersionedLocalObject, []NewBinding, *RejectedTransaction) {
	pt := NewPlaybackThread(r.store.interpreter)
	return pt.Run(events)
}
