package types_test

import (
	"testing"

	"github.com/jabolina/floatingtemple/pkg/types"
)

func TestSequencePointHasRespectsVersionMap(t *testing.T) {
	peer := types.NewCanonicalPeer("ip/10.0.0.1/7000")
	sp := types.NewSequencePoint()

	tid := types.TransactionID{Time: 10}
	if sp.Has(peer, tid) {
		t.Fatalf("a transaction never advanced into the version map must not be visible")
	}

	sp.AddPeerTID(peer, tid)
	if !sp.Has(peer, tid) {
		t.Fatalf("expected %v visible after AddPeerTID", tid)
	}

	later := types.TransactionID{Time: 11}
	if sp.Has(peer, later) {
		t.Fatalf("a transaction beyond the recorded maximum must not be visible")
	}
}

func TestSequencePointExclusionHidesRange(t *testing.T) {
	peer := types.NewCanonicalPeer("ip/10.0.0.1/7000")
	sp := types.NewSequencePoint()

	start := types.TransactionID{Time: 5}
	mid := types.TransactionID{Time: 7}
	end := types.TransactionID{Time: 10}
	sp.AddPeerTID(peer, end)

	if !sp.Has(peer, mid) {
		t.Fatalf("precondition: mid must be visible before exclusion")
	}

	sp.AddInvalidatedRange(peer, start, end)
	if sp.Has(peer, mid) {
		t.Fatalf("expected %v hidden by exclusion range [%v,%v)", mid, start, end)
	}
	if !sp.Has(peer, end) {
		t.Fatalf("exclusion range end is exclusive, expected %v still visible", end)
	}
}

func TestSequencePointRejectedPeerHidesAtOrAfterStart(t *testing.T) {
	peer := types.NewCanonicalPeer("ip/10.0.0.1/7000")
	sp := types.NewSequencePoint()

	max := types.TransactionID{Time: 100}
	sp.AddPeerTID(peer, max)

	rejectedStart := types.TransactionID{Time: 50}
	sp.AddRejectedPeer(peer, rejectedStart)

	before := types.TransactionID{Time: 49}
	if !sp.Has(peer, before) {
		t.Fatalf("expected transaction before the rejected start to remain visible")
	}
	if sp.Has(peer, rejectedStart) {
		t.Fatalf("expected the rejected start transaction itself to be hidden")
	}
}

func TestSequencePointCloneIsIndependent(t *testing.T) {
	peer := types.NewCanonicalPeer("ip/10.0.0.1/7000")
	sp := types.NewSequencePoint()
	sp.AddPeerTID(peer, types.TransactionID{Time: 1})

	clone := sp.Clone()
	clone.AddPeerTID(peer, types.TransactionID{Time: 2})

	if sp.VersionMap.Get(peer) != (types.TransactionID{Time: 1}) {
		t.Fatalf("mutating the clone must not affect the original")
	}
	if clone.VersionMap.Get(peer) != (types.TransactionID{Time: 2}) {
		t.Fatalf("expected clone to observe its own advance")
	}
}
