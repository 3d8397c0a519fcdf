package types_test

import (
	"testing"

	"github.com/jabolina/floatingtemple/pkg/types"
)

func TestMaxVersionMapAdvancesMonotonically(t *testing.T) {
	peer := types.NewCanonicalPeer("ip/10.0.0.2/7000")
	vm := types.NewMaxVersionMap()

	vm.AddPeerTransactionID(peer, types.TransactionID{Time: 5})
	vm.AddPeerTransactionID(peer, types.TransactionID{Time: 3})
	if got := vm.Get(peer); got != (types.TransactionID{Time: 5}) {
		t.Fatalf("expected advancing to a lower id to be a no-op, got %v", got)
	}

	vm.AddPeerTransactionID(peer, types.TransactionID{Time: 9})
	if got := vm.Get(peer); got != (types.TransactionID{Time: 9}) {
		t.Fatalf("expected advance to a higher id to take effect, got %v", got)
	}
}

func TestMaxVersionMapMergeFromIsPointwiseMax(t *testing.T) {
	p1 := types.NewCanonicalPeer("ip/10.0.0.1/7000")
	p2 := types.NewCanonicalPeer("ip/10.0.0.2/7000")

	a := types.NewMaxVersionMap()
	a.AddPeerTransactionID(p1, types.TransactionID{Time: 10})
	a.AddPeerTransactionID(p2, types.TransactionID{Time: 1})

	b := types.NewMaxVersionMap()
	b.AddPeerTransactionID(p1, types.TransactionID{Time: 2})
	b.AddPeerTransactionID(p2, types.TransactionID{Time: 20})

	a.MergeFrom(b)

	if got := a.Get(p1); got != (types.TransactionID{Time: 10}) {
		t.Fatalf("expected p1 to keep its higher value, got %v", got)
	}
	if got := a.Get(p2); got != (types.TransactionID{Time: 20}) {
		t.Fatalf("expected p2 to adopt the merged-in higher value, got %v", got)
	}
}

func TestPeerExclusionMapRangeIsHalfOpen(t *testing.T) {
	peer := types.NewCanonicalPeer("ip/10.0.0.3/7000")
	m := types.NewPeerExclusionMap()
	start := types.TransactionID{Time: 10}
	end := types.TransactionID{Time: 20}
	m.AddExcludedRange(peer, start, end)

	if !m.IsTransactionExcluded(peer, types.TransactionID{Time: 15}) {
		t.Fatalf("expected a transaction inside the range to be excluded")
	}
	if m.IsTransactionExcluded(peer, start) == false {
		t.Fatalf("range start is inclusive, expected it excluded")
	}
	if m.IsTransactionExcluded(peer, end) {
		t.Fatalf("range end is exclusive, expected it not excluded")
	}
}

func TestPeerExclusionMapCloneIsIndependent(t *testing.T) {
	peer := types.NewCanonicalPeer("ip/10.0.0.3/7000")
	m := types.NewPeerExclusionMap()
	m.AddExcludedRange(peer, types.TransactionID{Time: 1}, types.TransactionID{Time: 2})

	clone := m.Clone()
	clone.AddExcludedRange(peer, types.TransactionID{Time: 5}, types.TransactionID{Time: 6})

	if m.IsTransactionExcluded(peer, types.TransactionID{Time: 5}) {
		t.Fatalf("mutating the clone must not affect the original")
	}
}
