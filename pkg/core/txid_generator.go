package core

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jabolina/floatingtemple/pkg/types"
)

// TransactionIDGenerator mints fresh, totally-ordered transaction IDs
// (spec.md §4.1, C1), grounded on engine/transaction_id_generator.cc:
// time is the current wall-clock nanosecond count, bumped to
// previous+1 whenever the clock does not move forward; peer-hi/lo are
// fixed at construction from a random UUID drawn per generator so two peers can
// never collide even under clock skew (spec.md §8 testable scenario 6).
type TransactionIDGenerator struct {
	mu           sync.Mutex
	lastTime     uint64
	peerHi       uint64
	peerLo       uint64
	now          func() uint64 // overridable for tests
}

// NewTransactionIDGenerator returns a generator salted with a fresh
// random UUID.
func NewTransactionIDGenerator() *TransactionIDGenerator {
	salt := uuid.New()
	return &TransactionIDGenerator{
		peerHi: binary.BigEndian.Uint64(salt[0:8]),
		peerLo: binary.BigEndian.Uint64(salt[8:16]),
		now:    func() uint64 { return uint64(time.Now().UnixNano()) },
	}
}

// Generate returns a fresh transaction ID. time is max(current wall time
// in ns, previous time + 1); peer fields are fixed at construction.
func (g *TransactionIDGenerator) Generate() types.TransactionID {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := g.now()
	if t <= g.lastTime {
		t = g.lastTime + 1
	}
	g.lastTime = t

	return types.TransactionID{Time: t, PeerHi: g.peerHi, PeerLo: g.peerLo}
}
