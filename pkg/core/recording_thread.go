package core

import (
	"context"
	"sync"

	"github.com/jabolina/floatingtemple/pkg/types"
)

// RecordingThread is the adapter between a single-threaded interpreter
// embedding and the transaction store (spec.md §4.7, C7). It implements
// types.Thread, observing every interpreter callback as a pending
// event, and flushes the pending list as a transaction either at an
// explicit end_transaction or implicitly as soon as an event occurs
// outside any explicit transaction scope.
type RecordingThread struct {
	mu sync.Mutex

	store  *TransactionStore
	linger bool

	// delayBinding selects which of the two anonymous-object-creation
	// event orderings spec.md §6 permits: off emits a new sub-object's
	// SUB_OBJECT_CREATION on the caller's log immediately at creation
	// (createObject); on defers it until the new object's handle first
	// appears in a later event (its own first CallMethod, or the
	// transaction's commit if it is never called).
	delayBinding bool

	// deferredCreations holds, for each object created while
	// delayBinding is set and not yet flushed, the caller whose log the
	// eventual SUB_OBJECT_CREATION belongs to.
	deferredCreations map[types.ObjectID]types.ObjectID

	// nesting is the current depth of explicit begin_transaction scopes.
	nesting int

	// pendingEvents holds, per touched object, the ordered event
	// subsequence accumulated since the last commit.
	pendingEvents map[types.ObjectID][]types.CommittedEvent

	// live holds each touched object's current speculative value.
	live map[types.ObjectID]types.VersionedLocalObject

	// fresh marks shared objects created (but not yet committed) during
	// the current transaction, so the first commit can emit their
	// OBJECT_CREATION event.
	fresh map[types.ObjectID]bool

	// caller is the object whose method is currently executing, or nil
	// at the top level.
	caller *types.Handle

	lastCommitted types.TransactionID
	prevSP        *types.SequencePoint

	// rewindBelow, when set, is the transaction ID the thread must
	// unwind past before resuming normal execution.
	rewindBelow   *types.TransactionID
	rewindCond    *sync.Cond
	blockingCount int
}

// NewRecordingThread constructs a recording thread against store. If
// linger is true, the thread blocks after its top-level program method
// returns instead of exiting, so a later rejection can still rewind it.
// delayBinding selects the deferred-SUB_OBJECT_CREATION ordering
// (spec.md §6 "delay_object_binding") over the immediate one.
func NewRecordingThread(store *TransactionStore, linger bool, delayBinding bool) *RecordingThread {
	t := &RecordingThread{
		store:             store,
		linger:            linger,
		delayBinding:      delayBinding,
		deferredCreations: make(map[types.ObjectID]types.ObjectID),
		pendingEvents:     make(map[types.ObjectID][]types.CommittedEvent),
		live:              make(map[types.ObjectID]types.VersionedLocalObject),
		fresh:             make(map[types.ObjectID]bool),
		prevSP:            store.CurrentSequencePoint(),
	}
	t.rewindCond = sync.NewCond(&t.mu)
	store.AddRewindSink(t)
	return t
}

// Run drives program to completion against this thread, retrying it
// from the top whenever a rewind unwinds it, so the program appears to
// run to completion regardless of conflicts (spec.md §4.7 "Rewind").
func (t *RecordingThread) Run(ctx context.Context, program func(thread types.Thread) (bool, types.CommittedValue)) types.CommittedValue {
	for {
		ok, result := program(t)

		t.mu.Lock()
		rewinding := t.rewindBelow != nil
		t.mu.Unlock()

		if !ok && rewinding {
			t.waitAndResume(ctx)
			continue
		}

		if !t.linger {
			return result
		}

		t.mu.Lock()
		for t.rewindBelow == nil {
			t.rewindCond.Wait()
		}
		t.mu.Unlock()
		t.waitAndResume(ctx)
	}
}

// waitAndResume blocks until the blocking-thread set is empty, then
// clears rewind state so the next loop iteration restarts the program.
func (t *RecordingThread) waitAndResume(ctx context.Context) {
	t.mu.Lock()
	for t.blockingCount > 0 {
		t.rewindCond.Wait()
	}
	t.rewindBelow = nil
	t.pendingEvents = make(map[types.ObjectID][]types.CommittedEvent)
	t.live = make(map[types.ObjectID]types.VersionedLocalObject)
	t.fresh = make(map[types.ObjectID]bool)
	t.deferredCreations = make(map[types.ObjectID]types.ObjectID)
	t.nesting = 0
	t.caller = nil
	t.prevSP = t.store.CurrentSequencePoint()
	t.mu.Unlock()
}

// Rewind implements RewindSink: a committed transaction at or after
// rejectedTID from this thread's own origin forces it to unwind.
func (t *RecordingThread) Rewind(origin *types.CanonicalPeer, rejectedTID types.TransactionID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if types.Compare(t.lastCommitted, rejectedTID) < 0 {
		return
	}
	if t.rewindBelow == nil || types.Compare(rejectedTID, *t.rewindBelow) < 0 {
		below := rejectedTID
		t.rewindBelow = &below
	}
	t.rewindCond.Broadcast()
}

func (t *RecordingThread) isRewinding() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rewindBelow != nil
}

// --- types.Thread implementation ---

func (t *RecordingThread) BeginTransaction() bool {
	if t.isRewinding() {
		return false
	}
	t.mu.Lock()
	t.nesting++
	t.mu.Unlock()

	caller := t.currentCaller()
	t.appendEvent(caller, types.NewBeginTransactionEvent())
	return true
}

func (t *RecordingThread) EndTransaction() bool {
	if t.isRewinding() {
		return false
	}
	caller := t.currentCaller()
	t.appendEvent(caller, types.NewEndTransactionEvent())

	t.mu.Lock()
	t.nesting--
	shouldCommit := t.nesting == 0
	t.mu.Unlock()

	if shouldCommit {
		t.commit()
	}
	return true
}

func (t *RecordingThread) currentCaller() types.ObjectID {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.caller == nil || t.caller.Object() == nil {
		return types.ZeroObjectID
	}
	return t.caller.Object().ID
}

func (t *RecordingThread) appendEvent(object types.ObjectID, ev types.CommittedEvent) {
	if object.IsZero() {
		return
	}
	t.mu.Lock()
	t.pendingEvents[object] = append(t.pendingEvents[object], ev)
	t.mu.Unlock()
}

// CreateVersionedObject mints a handle, a fresh shared object, and
// records that the first commit touching it must emit its
// OBJECT_CREATION event.
func (t *RecordingThread) CreateVersionedObject(initial types.VersionedLocalObject, name string) *types.Handle {
	return t.createObject(true, initial, nil, name)
}

func (t *RecordingThread) CreateUnversionedObject(initial types.LocalObject, name string) *types.Handle {
	return t.createObject(false, nil, initial, name)
}

func (t *RecordingThread) createObject(versioned bool, vinitial types.VersionedLocalObject, uinitial types.LocalObject, name string) *types.Handle {
	var handle *types.Handle
	var id types.ObjectID
	if name != "" {
		handle = types.NewNamedHandle(versioned, name)
		object := t.store.GetOrCreateNamedObject(name, versioned)
		handle.Bind(object)
		id = object.ID
	} else {
		handle = types.NewUnboundHandle(versioned)
		id = types.NewRandomObjectID()
		object := types.NewSharedObject(id, versioned)
		handle.Bind(object)
	}

	t.mu.Lock()
	t.fresh[id] = true
	if versioned {
		t.live[id] = vinitial
	}
	t.mu.Unlock()

	if versioned {
		data, _ := vinitial.Serialize()
		t.appendEvent(id, types.NewObjectCreationEvent(data))
	} else {
		handle.Object().SetUnversionedValue(uinitial)
	}

	// A mid-method creation also leaves a marker on the caller's own
	// pending list, at the exact point it happened, so replay can
	// correlate the object it re-creates with this same identity
	// instead of minting an unrelated one (spec.md §4.8 "Object-identity
	// matching"). With delayBinding set, that marker is withheld until
	// id's own handle first appears in a later event (flushDeferredCreation),
	// per spec.md §6 "delay_object_binding".
	caller := t.currentCaller()
	if !caller.IsZero() && caller != id {
		if t.delayBinding {
			t.mu.Lock()
			t.deferredCreations[id] = caller
			t.mu.Unlock()
		} else {
			t.appendEvent(caller, types.NewSubObjectCreationEvent(id))
		}
	}

	return handle
}

// flushDeferredCreation emits the withheld SUB_OBJECT_CREATION for id,
// if one is pending, the first time id's handle appears in an event of
// its own (spec.md §6 "delay_object_binding"). A no-op once flushed or
// if id was never created under delayBinding.
func (t *RecordingThread) flushDeferredCreation(id types.ObjectID) {
	t.mu.Lock()
	caller, pending := t.deferredCreations[id]
	if pending {
		delete(t.deferredCreations, id)
	}
	t.mu.Unlock()

	if pending {
		t.appendEvent(caller, types.NewSubObjectCreationEvent(id))
	}
}

// CallMethod implements one recorded call: BEGIN-less atomic call on
// handle's object from the current caller (spec.md §4.7 "Event
// construction").
func (t *RecordingThread) CallMethod(handle *types.Handle, methodName string, params []types.CommittedValue) (bool, types.CommittedValue) {
	if t.isRewinding() {
		return false, types.EmptyValue()
	}
	if handle == nil || handle.Object() == nil {
		return false, types.EmptyValue()
	}

	// Unversioned objects are never journaled or replayed (spec.md §3.3,
	// §4.5): their calls run directly against the single local live
	// value, bypassing event construction and the speculative-value
	// cache entirely.
	if !handle.Versioned() {
		return t.callUnversionedMethod(handle, methodName, params)
	}

	callee := handle.Object().ID
	t.flushDeferredCreation(callee)

	t.mu.Lock()
	caller := t.caller
	callerID := types.ZeroObjectID
	if caller != nil && caller.Object() != nil {
		callerID = caller.Object().ID
	}
	t.mu.Unlock()

	t.appendEvent(callee, types.NewMethodCallEvent(methodName, params))
	if !callerID.IsZero() {
		if callerID == callee {
			t.appendEvent(callerID, types.NewSelfMethodCallEvent(methodName, params))
		} else {
			t.appendEvent(callerID, types.NewSubMethodCallEvent(callee, methodName, params))
		}
	}

	live := t.liveValueFor(handle)
	if live == nil {
		return false, types.EmptyValue()
	}

	t.mu.Lock()
	prevCaller := t.caller
	t.caller = handle
	t.mu.Unlock()

	result, err := live.InvokeMethod(t, handle, methodName, params)

	t.mu.Lock()
	t.caller = prevCaller
	t.mu.Unlock()

	if err != nil {
		return false, types.EmptyValue()
	}

	t.appendEvent(callee, types.NewMethodReturnEvent(result))
	if !callerID.IsZero() {
		if callerID == callee {
			t.appendEvent(callerID, types.NewSelfMethodReturnEvent(result))
		} else {
			t.appendEvent(callerID, types.NewSubMethodReturnEvent(callee, result))
		}
	}

	t.mu.Lock()
	nesting := t.nesting
	t.mu.Unlock()
	if nesting == 0 {
		t.commit()
	}

	return true, result
}

// callUnversionedMethod invokes methodName directly on handle's
// unversioned live value, tracking caller identity for nested calls but
// recording no committed events.
func (t *RecordingThread) callUnversionedMethod(handle *types.Handle, methodName string, params []types.CommittedValue) (bool, types.CommittedValue) {
	t.flushDeferredCreation(handle.Object().ID)
	value := handle.Object().UnversionedValue()
	if value == nil {
		return false, types.EmptyValue()
	}

	t.mu.Lock()
	prevCaller := t.caller
	t.caller = handle
	t.mu.Unlock()

	result, err := value.InvokeMethod(t, handle, methodName, params)

	t.mu.Lock()
	t.caller = prevCaller
	t.mu.Unlock()

	if err != nil {
		return false, types.EmptyValue()
	}
	return true, result
}

// liveValueFor returns the current speculative value for handle's
// object, fetching it from the store if this thread has not touched it
// yet this transaction.
func (t *RecordingThread) liveValueFor(handle *types.Handle) types.VersionedLocalObject {
	object := handle.Object()
	if object == nil {
		return nil
	}

	t.mu.Lock()
	if live, ok := t.live[object.ID]; ok {
		t.mu.Unlock()
		return live.Clone()
	}
	t.mu.Unlock()

	value, err := t.store.GetLiveObject(context.Background(), handle, t.prevSP, true)
	if err != nil {
		return nil
	}

	t.mu.Lock()
	t.live[object.ID] = value
	t.mu.Unlock()
	return value.Clone()
}

func (t *RecordingThread) ObjectsIdentical(a, b *types.Handle) bool {
	return types.SameObject(a, b)
}

// commit flushes the pending event list as one transaction. An empty
// list is not committed, since it would be a degenerate transaction;
// events with a null caller never reach the list (spec.md §4.7
// "Implicit commits").
func (t *RecordingThread) commit() {
	t.mu.Lock()
	// Any creation still deferred at commit time never had its handle
	// touched again this transaction; flush it now so the marker is
	// never lost, just later than usual (spec.md §6 "delay_object_binding").
	stillDeferred := t.deferredCreations
	t.deferredCreations = make(map[types.ObjectID]types.ObjectID)
	t.mu.Unlock()

	for id, caller := range stillDeferred {
		t.appendEvent(caller, types.NewSubObjectCreationEvent(id))
	}

	t.mu.Lock()
	if len(t.pendingEvents) == 0 {
		t.mu.Unlock()
		return
	}
	pending := t.pendingEvents
	live := t.live
	t.pendingEvents = make(map[types.ObjectID][]types.CommittedEvent)
	prevSP := t.prevSP
	t.mu.Unlock()

	tid := t.store.Commit(pending, live, prevSP)

	t.mu.Lock()
	t.lastCommitted = tid
	t.prevSP = t.store.CurrentSequencePoint()
	t.mu.Unlock()
}
