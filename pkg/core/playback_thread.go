package core

import (
	"github.com/jabolina/floatingtemple/pkg/types"
)

// PlaybackState is the lifecycle of a playback thread (spec.md §4.8,
// C8), grounded on peer/playback_thread.h's
// NOT_STARTED → STARTING → RUNNING ⇌ PAUSED → STOPPING → STOPPED machine.
type PlaybackState int

const (
	PlaybackNotStarted PlaybackState = iota
	PlaybackStarting
	PlaybackRunning
	PlaybackPaused
	PlaybackStopping
	PlaybackStopped
)

// PlaybackThread is the inverse of a recording thread: it drives the
// same interpreter callback API (types.Thread) but *checks* the live
// interpreter's operations against a committed event queue instead of
// recording new ones (spec.md §4.8). One is created per replay segment
// by ObjectLog.GetWorkingVersion.
//
// This implementation drives the interpreter synchronously rather than
// through a background worker goroutine and a producer/consumer
// channel: ObjectLog already holds the full segment before replay
// starts, so there is no producer to decouple from, and the state
// machine collapses to RUNNING until the segment is exhausted, then
// PAUSED. There are no pause/resume or stop methods; only the
// PlaybackState lifecycle type is kept, so a streaming producer (e.g.
// segments arriving incrementally over the wire) can be wired in without
// changing the object-identity or conflict-detection logic below.
type PlaybackThread struct {
	state       PlaybackState
	interpreter types.Interpreter

	bindings []NewBinding
	conflict *RejectedTransaction

	events []replaySegmentEvent
	cursor int

	live   types.VersionedLocalObject
	caller *types.Handle

	// enclosing is the call event currently being replayed through
	// driveInterpreter, kept around so a nested consumption failure (an
	// object created mid-method with no matching recorded
	// SUB_OBJECT_CREATION) has something to attribute the conflict to.
	enclosing replaySegmentEvent
}

// NewPlaybackThread constructs a playback thread seeded from interpreter.
func NewPlaybackThread(interpreter types.Interpreter) *PlaybackThread {
	return &PlaybackThread{interpreter: interpreter, state: PlaybackNotStarted}
}

// Run replays events (whose first element must be an OBJECT_CREATION)
// against a freshly deserialized live object, reporting the resulting
// value, any new object-identity bindings discovered, and, on
// conflict, the offending transaction.
func (p *PlaybackThread) Run(events []replaySegmentEvent) (types.VersionedLocalObject, []NewBinding, *RejectedTransaction) {
	p.state = PlaybackStarting
	p.events = events
	p.cursor = 0

	if len(events) == 0 || events[0].Event.Kind != types.ObjectCreation {
		p.state = PlaybackStopped
		return nil, nil, nil
	}

	live, err := p.interpreter.DeserializeObject(events[0].Event.InitialState)
	if err != nil {
		p.state = PlaybackStopped
		return nil, nil, &RejectedTransaction{Origin: events[0].Origin, TID: events[0].TID}
	}

	versioned, ok := live.(types.VersionedLocalObject)
	if !ok {
		p.state = PlaybackStopped
		return nil, nil, &RejectedTransaction{Origin: events[0].Origin, TID: events[0].TID}
	}
	p.live = versioned
	p.cursor = 1
	p.state = PlaybackRunning

	for p.cursor < len(p.events) && p.conflict == nil {
		p.step()
	}

	p.state = PlaybackPaused
	return p.live, p.bindings, p.conflict
}

// step consumes one recorded event, driving the interpreter and
// checking the resulting callback sequence against what was recorded.
func (p *PlaybackThread) step() {
	ev := p.events[p.cursor]

	switch ev.Event.Kind {
	case types.MethodCall, types.SelfMethodCall, types.SubMethodCall:
		p.replayCall(ev)
	case types.BeginTransaction, types.EndTransaction:
		p.cursor++
	default:
		// SUB_OBJECT_CREATION is consumed inline by CreateVersionedObject/
		// CreateUnversionedObject while the enclosing call is being
		// replayed (see replayCall); METHOD_RETURN/SUB_METHOD_RETURN/
		// SELF_METHOD_RETURN are consumed as part of replayCall. Seeing
		// either here, at the top level, means the live re-execution
		// diverged from what was recorded.
		p.flagConflict(ev)
	}
}

// replayCall drives one recorded call event through the live
// interpreter and verifies that the next recorded event is the return
// kind matching the call and carries an equal return value; the return
// event's target object is not compared. The cursor is advanced past
// the call event before the interpreter runs so that any mid-method
// object creation the call performs consumes its recorded
// SUB_OBJECT_CREATION event from the correct position (spec.md §4.8
// "Object-identity matching").
func (p *PlaybackThread) replayCall(ev replaySegmentEvent) {
	p.cursor++
	p.enclosing = ev

	ok, ret := p.driveInterpreter(ev)
	if !ok {
		p.flagConflict(ev)
		return
	}

	if p.cursor >= len(p.events) {
		p.flagConflict(ev)
		return
	}

	next := p.events[p.cursor]
	if !returnKindMatches(ev.Event.Kind, next.Event.Kind) {
		p.flagConflict(ev)
		return
	}
	if !ret.Equal(next.Event.ReturnValue) {
		p.flagConflict(ev)
		return
	}
	p.cursor++
}

// driveInterpreter invokes InvokeMethod for the recorded call using
// the playback thread as the Thread callback target. Nested calls the
// method performs reach CallMethod below, which does not replay them.
func (p *PlaybackThread) driveInterpreter(ev replaySegmentEvent) (bool, types.CommittedValue) {
	if p.live == nil {
		return false, types.EmptyValue()
	}
	value, err := p.live.InvokeMethod(p, nil, ev.Event.MethodName, ev.Event.Parameters)
	if err != nil {
		return false, types.EmptyValue()
	}
	return true, value
}

func (p *PlaybackThread) flagConflict(ev replaySegmentEvent) {
	if p.conflict != nil {
		return
	}
	p.conflict = &RejectedTransaction{Origin: ev.Origin, TID: ev.TID}
}

func returnKindMatches(call, ret types.EventKind) bool {
	switch call {
	case types.MethodCall:
		return ret == types.MethodReturn
	case types.SubMethodCall:
		return ret == types.SubMethodReturn
	case types.SelfMethodCall:
		return ret == types.SelfMethodReturn
	default:
		return false
	}
}

// --- types.Thread implementation: the live interpreter's callbacks
// during replay land here. Object creation is matched against the
// recorded SUB_OBJECT_CREATION events; nested calls are not replayed
// (see CallMethod). ---

func (p *PlaybackThread) BeginTransaction() bool {
	return p.conflict == nil
}

func (p *PlaybackThread) EndTransaction() bool {
	return p.conflict == nil
}

// consumeSubObjectCreation consumes the SUB_OBJECT_CREATION event the
// recording thread appended to the caller's log at the exact point a
// mid-method object was created, returning the object ID it carries so
// replay binds the same identity the recording peer minted rather than
// a fresh, unrelated one. A missing or out-of-order event is a conflict:
// the live re-execution created an object the recorded log does not
// account for at this point.
func (p *PlaybackThread) consumeSubObjectCreation() (types.ObjectID, bool) {
	if p.conflict != nil {
		return types.ZeroObjectID, false
	}
	if p.cursor >= len(p.events) || p.events[p.cursor].Event.Kind != types.SubObjectCreation {
		p.flagConflict(p.enclosing)
		return types.ZeroObjectID, false
	}
	id := p.events[p.cursor].Event.Callee
	p.cursor++
	return id, true
}

// CreateVersionedObject binds the recorded SUB_OBJECT_CREATION's shared
// object to the handle the interpreter supplies (spec.md §4.8
// "Object-identity matching"); a conflict is already flagged by
// consumeSubObjectCreation if nothing matches.
func (p *PlaybackThread) CreateVersionedObject(initial types.VersionedLocalObject, name string) *types.Handle {
	id, ok := p.consumeSubObjectCreation()
	if !ok {
		id = types.NewRandomObjectID()
	}
	handle := types.NewUnboundHandle(true)
	object := types.NewSharedObject(id, true)
	object.SetCachedValue(initial, nil)
	handle.Bind(object)
	p.bindings = append(p.bindings, NewBinding{Handle: handle, Object: object})
	return handle
}

func (p *PlaybackThread) CreateUnversionedObject(initial types.LocalObject, name string) *types.Handle {
	id, ok := p.consumeSubObjectCreation()
	if !ok {
		id = types.NewRandomObjectID()
	}
	handle := types.NewUnboundHandle(false)
	object := types.NewSharedObject(id, false)
	object.SetUnversionedValue(initial)
	handle.Bind(object)
	p.bindings = append(p.bindings, NewBinding{Handle: handle, Object: object})
	return handle
}

// CallMethod does not replay nested calls: it returns the empty value
// without invoking the callee and without consuming the recorded
// SUB_METHOD_CALL or SELF_METHOD_CALL events, so a replayed method that
// made a nested call is flagged as a conflict when replayCall finds
// those events where it expects the return.
func (p *PlaybackThread) CallMethod(handle *types.Handle, methodName string, params []types.CommittedValue) (bool, types.CommittedValue) {
	if p.conflict != nil {
		return false, types.EmptyValue()
	}
	return true, types.EmptyValue()
}

func (p *PlaybackThread) ObjectsIdentical(a, b *types.Handle) bool {
	return types.SameObject(a, b)
}
