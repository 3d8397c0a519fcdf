package types_test

import (
	"testing"

	"github.com/jabolina/floatingtemple/pkg/types"
)

func TestTransactionIDCompareOrdersByTimeThenPeer(t *testing.T) {
	a := types.TransactionID{Time: 1, PeerHi: 5, PeerLo: 0}
	b := types.TransactionID{Time: 2, PeerHi: 0, PeerLo: 0}
	if !types.Less(a, b) {
		t.Fatalf("expected %v < %v on time alone", a, b)
	}

	c := types.TransactionID{Time: 1, PeerHi: 5, PeerLo: 1}
	if !types.Less(a, c) {
		t.Fatalf("expected %v < %v on peer-lo tiebreak", a, c)
	}

	if types.Compare(a, a) != 0 {
		t.Fatalf("expected a transaction id to compare equal to itself")
	}
}

func TestTransactionIDSentinels(t *testing.T) {
	if types.ZeroTransactionID.IsValid() {
		t.Fatalf("zero transaction id must not be valid")
	}
	if !types.Less(types.MinTransactionID, types.MaxTransactionID) {
		t.Fatalf("MinTransactionID must sort below MaxTransactionID")
	}
	some := types.TransactionID{Time: 42}
	if !some.IsValid() {
		t.Fatalf("a non-zero transaction id must be valid")
	}
}

func TestTransactionIDEqual(t *testing.T) {
	a := types.TransactionID{Time: 7, PeerHi: 1, PeerLo: 2}
	b := types.TransactionID{Time: 7, PeerHi: 1, PeerLo: 2}
	if !types.Equal(a, b) {
		t.Fatalf("expected equal transaction ids to compare equal")
	}
}
