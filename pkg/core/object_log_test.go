package core

import (
	"testing"

	"github.com/jabolina/floatingtemple/pkg/types"
)

type recordingObject struct {
	calls int
}

func (r *recordingObject) Serialize() ([]byte, error) { return nil, nil }
func (r *recordingObject) InvokeMethod(types.Thread, *types.Handle, string, []types.CommittedValue) (types.CommittedValue, error) {
	return types.EmptyValue(), nil
}
func (r *recordingObject) Clone() types.VersionedLocalObject { return &recordingObject{calls: r.calls} }

// fakeReplayer returns a fresh recordingObject per segment and counts how
// many times it was invoked, standing in for PlaybackThread.Run.
type fakeReplayer struct {
	segments int
	reject   *RejectedTransaction
}

func (f *fakeReplayer) Replay(events []replaySegmentEvent) (types.VersionedLocalObject, []NewBinding, *RejectedTransaction) {
	f.segments++
	if f.reject != nil {
		return nil, nil, f.reject
	}
	return &recordingObject{calls: len(events)}, nil, nil
}

func TestObjectLogGetWorkingVersionReplaysOnce(t *testing.T) {
	origin := types.NewCanonicalPeer("ip/10.0.0.6/7000")
	object := types.NewSharedObject(types.NewRandomObjectID(), true)
	replayer := &fakeReplayer{}
	log := NewObjectLog(object, replayer)

	txn := *types.NewTransaction(types.TransactionID{Time: 1}, origin)
	txn.AddEvent(object.ID, types.NewObjectCreationEvent(nil))
	txn.AddEvent(object.ID, types.NewMethodCallEvent("Set", nil))
	log.InsertTransaction(txn)

	sp := types.NewSequencePoint()
	sp.AddPeerTID(origin, types.TransactionID{Time: 1})

	result, _, rejected := log.GetWorkingVersion(sp)
	if result == nil {
		t.Fatalf("expected a non-nil working version")
	}
	if len(rejected) != 0 {
		t.Fatalf("expected no rejections, got %v", rejected)
	}
	if replayer.segments != 1 {
		t.Fatalf("expected exactly one replay segment, got %d", replayer.segments)
	}

	// A second call at the same sequence point must hit the cache rather
	// than replay again.
	if _, _, _ = log.GetWorkingVersion(sp); replayer.segments != 1 {
		t.Fatalf("expected the cache to serve a repeated request at the same sequence point")
	}
}

func TestObjectLogGetWorkingVersionRestartsOnLaterCreation(t *testing.T) {
	origin := types.NewCanonicalPeer("ip/10.0.0.6/7000")
	object := types.NewSharedObject(types.NewRandomObjectID(), true)
	replayer := &fakeReplayer{}
	log := NewObjectLog(object, replayer)

	first := *types.NewTransaction(types.TransactionID{Time: 1}, origin)
	first.AddEvent(object.ID, types.NewObjectCreationEvent(nil))
	log.InsertTransaction(first)

	second := *types.NewTransaction(types.TransactionID{Time: 2}, origin)
	second.AddEvent(object.ID, types.NewObjectCreationEvent(nil))
	log.InsertTransaction(second)

	sp := types.NewSequencePoint()
	sp.AddPeerTID(origin, types.TransactionID{Time: 2})

	if _, _, _ = log.GetWorkingVersion(sp); replayer.segments != 2 {
		t.Fatalf("expected a later OBJECT_CREATION to flush and restart replay, got %d segments", replayer.segments)
	}
}

func TestObjectLogGetWorkingVersionReportsConflict(t *testing.T) {
	origin := types.NewCanonicalPeer("ip/10.0.0.6/7000")
	object := types.NewSharedObject(types.NewRandomObjectID(), true)
	reject := &RejectedTransaction{Origin: origin, TID: types.TransactionID{Time: 1}}
	replayer := &fakeReplayer{reject: reject}
	log := NewObjectLog(object, replayer)

	txn := *types.NewTransaction(types.TransactionID{Time: 1}, origin)
	txn.AddEvent(object.ID, types.NewObjectCreationEvent(nil))
	log.InsertTransaction(txn)

	sp := types.NewSequencePoint()
	sp.AddPeerTID(origin, types.TransactionID{Time: 1})

	_, _, rejected := log.GetWorkingVersion(sp)
	if len(rejected) != 1 || rejected[0].TID != reject.TID {
		t.Fatalf("expected the replayer's conflict to surface, got %v", rejected)
	}
}

func TestObjectLogGetTransactionsSkipsKnown(t *testing.T) {
	origin := types.NewCanonicalPeer("ip/10.0.0.7/7000")
	local := types.NewCanonicalPeer("ip/10.0.0.8/7000")
	object := types.NewSharedObject(types.NewRandomObjectID(), true)
	log := NewObjectLog(object, &fakeReplayer{})

	t1 := *types.NewTransaction(types.TransactionID{Time: 1}, origin)
	t2 := *types.NewTransaction(types.TransactionID{Time: 2}, origin)
	log.InsertTransaction(t1)
	log.InsertTransaction(t2)

	caller := types.NewMaxVersionMap()
	caller.AddPeerTransactionID(origin, types.TransactionID{Time: 1})

	txns, version := log.GetTransactions(caller, local)
	if len(txns) != 1 || txns[0].ID != t2.ID {
		t.Fatalf("expected only the unknown transaction t2, got %v", txns)
	}
	if got := version.Get(local); got != types.MaxTransactionID {
		t.Fatalf("expected the effective version to carry local peer at MAX, got %v", got)
	}
}
