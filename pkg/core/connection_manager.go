package core

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/jabolina/floatingtemple/pkg/types"
)

// defaultMaxInFlightDials is used when NewConnectionManager is given a
// non-positive thread count, mirroring the teacher's use of a fixed
// worker pool around its transport in core/transport.go.
const defaultMaxInFlightDials = 8

// ReleaseChecker reports whether a gated transaction ID has been
// released for delivery, and lets a caller block until the next
// release. *TransactionSequencer implements this; ConnectionManager
// consults it to decide when a connection's gated head may be sent.
type ReleaseChecker interface {
	IsReleased(tid types.TransactionID) bool
	WaitReleased(done <-chan struct{})
}

// Transport is the minimal interface ConnectionManager needs from the
// underlying message substrate. The production implementation wraps a
// github.com/jabolina/relt exchange; tests substitute an in-memory
// fake. Framing below "deliver one whole message" is out of scope
// (spec.md §1 Non-goals) and is relt's concern, not ours.
type Transport interface {
	Dial(local, remote types.PeerID) (send func(PeerMessage) error, recv <-chan PeerMessage, err error)
	Close() error
}

// ConnectionManager owns every PeerConnection for the local peer
// (spec.md §4.4, C4), grounded on engine/connection_manager.cc's
// named/unnamed connection tables and duplicate-connection resolution
// by lexicographically comparing peer IDs so both ends independently
// agree on which of a simultaneous pair of dials survives.
type ConnectionManager struct {
	mu sync.Mutex

	local     *types.CanonicalPeer
	registry  *PeerRegistry
	transport Transport
	logger    types.Logger

	connections map[types.PeerID]*PeerConnection
	flushStop   map[types.PeerID]chan struct{}
	sem         *semaphore.Weighted

	released ReleaseChecker

	// Dispatch is invoked for every inbound message on any connection.
	// Set by TransactionStore once it constructs its ConnectionManager.
	Dispatch func(conn *PeerConnection, msg PeerMessage)
}

// NewConnectionManager constructs a manager for local, backed by
// transport and registry. transportThreads bounds the dial semaphore's
// size (SPEC_FULL.md §2 "Configuration"); a non-positive value falls
// back to defaultMaxInFlightDials.
func NewConnectionManager(local *types.CanonicalPeer, registry *PeerRegistry, transport Transport, logger types.Logger, transportThreads int) *ConnectionManager {
	if transportThreads <= 0 {
		transportThreads = defaultMaxInFlightDials
	}
	return &ConnectionManager{
		local:       local,
		registry:    registry,
		transport:   transport,
		logger:      logger,
		connections: make(map[types.PeerID]*PeerConnection),
		flushStop:   make(map[types.PeerID]chan struct{}),
		sem:         semaphore.NewWeighted(int64(transportThreads)),
	}
}

// SetReleaseChecker wires the sequencer the background flusher consults
// to decide whether a gated message may be sent. Calls before this
// treat every gated message as perpetually unreleased, which only
// matters in the brief window between constructing the connection
// manager and constructing the transaction store that owns the
// sequencer — no dial happens before that wiring completes.
func (m *ConnectionManager) SetReleaseChecker(released ReleaseChecker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = released
}

func (m *ConnectionManager) isReleased(tid types.TransactionID) bool {
	m.mu.Lock()
	released := m.released
	m.mu.Unlock()
	if released == nil {
		return false
	}
	return released.IsReleased(tid)
}

func (m *ConnectionManager) waitReleased(stop <-chan struct{}) {
	m.mu.Lock()
	released := m.released
	m.mu.Unlock()
	if released == nil {
		<-stop
		return
	}
	released.WaitReleased(stop)
}

// Connect establishes (or returns the existing) connection to remote.
// On a simultaneous mutual dial, the peer whose ID sorts lexicographically
// smaller keeps its outbound connection and drops the inbound one,
// matching the tie-break in engine/connection_manager.cc.
func (m *ConnectionManager) Connect(ctx context.Context, remote *types.CanonicalPeer) (*PeerConnection, error) {
	m.mu.Lock()
	if existing, ok := m.connections[remote.PeerID()]; ok {
		m.mu.Unlock()
		return existing, nil
	}
	m.mu.Unlock()

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("floatingtemple: acquiring dial slot: %w", err)
	}
	defer m.sem.Release(1)

	send, recv, err := m.transport.Dial(m.local.PeerID(), remote.PeerID())
	if err != nil {
		return nil, fmt.Errorf("floatingtemple: dialing %s: %w", remote, err)
	}

	conn := NewPeerConnection(remote, send)

	m.mu.Lock()
	if existing, ok := m.connections[remote.PeerID()]; ok && m.local.PeerID() > remote.PeerID() {
		// The smaller remote peer's connection survives; drop the one we
		// just dialed.
		m.mu.Unlock()
		conn.RequestDrain()
		return existing, nil
	} else if ok {
		// Our existing inbound one loses the tie and gets replaced.
		existing.RequestDrain()
	}
	m.mu.Unlock()

	m.registerConnection(conn, recv)
	m.sendHello(conn)

	return conn, nil
}

// Accept registers a connection that arrived from an inbound dial,
// applying the same tie-break rule as Connect.
func (m *ConnectionManager) Accept(remote *types.CanonicalPeer, send func(PeerMessage) error, recv <-chan PeerMessage) *PeerConnection {
	conn := NewPeerConnection(remote, send)

	m.mu.Lock()
	if existing, ok := m.connections[remote.PeerID()]; ok {
		if m.local.PeerID() < remote.PeerID() {
			m.mu.Unlock()
			conn.RequestDrain()
			return existing
		}
		existing.RequestDrain()
	}
	m.mu.Unlock()

	m.registerConnection(conn, recv)
	m.sendHello(conn)

	return conn
}

// registerConnection records conn as the current connection for its
// remote peer, retiring any previous flusher for that peer ID, and
// spawns the goroutines that service it: one forwarding inbound
// frames, one flushing the outgoing queue as messages become
// sendable.
func (m *ConnectionManager) registerConnection(conn *PeerConnection, recv <-chan PeerMessage) {
	stop := make(chan struct{})

	m.mu.Lock()
	if oldStop, ok := m.flushStop[conn.Remote().PeerID()]; ok {
		close(oldStop)
	}
	m.connections[conn.Remote().PeerID()] = conn
	m.flushStop[conn.Remote().PeerID()] = stop
	m.mu.Unlock()

	InvokerInstance().Spawn(func() {
		m.pump(conn, recv)
	})
	InvokerInstance().Spawn(func() {
		m.flusher(conn, stop)
	})
}

// sendHello enqueues an ungated HELLO frame carrying our protocol
// version, so the remote end can reject the connection on a major-version
// mismatch before any transaction traffic flows. Delivery is left to the
// connection's background flusher, same as every other outgoing frame.
func (m *ConnectionManager) sendHello(conn *PeerConnection) {
	conn.Enqueue(PeerMessage{
		Kind:            Hello,
		PeerID:          m.local.PeerID(),
		ProtocolVersion: EngineProtocolVersion,
	}, types.ZeroTransactionID, false)
	conn.MarkHelloSent()
}

// pump forwards inbound frames to the manager's dispatch callback. It
// runs for the lifetime of the connection.
func (m *ConnectionManager) pump(conn *PeerConnection, recv <-chan PeerMessage) {
	for msg := range recv {
		switch msg.Kind {
		case Hello:
			conn.MarkHelloReceived()
		case Goodbye:
			conn.MarkGoodbyeReceived()
		}
		if m.Dispatch != nil {
			m.Dispatch(conn, msg)
		}
	}
}

// flusher is the background pump that actually transmits conn's
// outgoing queue: it flushes everything currently sendable, then
// blocks until either a new message arrives (conn.WaitForSendable) or
// the sequencer releases a transaction ID that might unblock a gated
// head (m.waitReleased), retrying until stop fires or the connection
// closes. This is what makes ApplyTransaction/GetObject/StoreObject/
// RejectTransaction/InvalidateTransactions frames queued by the
// transaction store actually reach the wire during normal operation,
// rather than only at the HELLO handshake or final drain.
func (m *ConnectionManager) flusher(conn *PeerConnection, stop chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := conn.Flush(m.isReleased); err != nil {
			if m.logger != nil {
				m.logger.Warnf("floatingtemple: flushing to %s: %v", conn.Remote(), err)
			}
			return
		}

		if !conn.IsOpen() {
			return
		}

		if conn.Pending() == 0 {
			conn.WaitForSendable()
		} else {
			// The head is gated and not yet released; wait for the next
			// release before retrying rather than busy-spinning.
			m.waitReleased(stop)
		}
	}
}

// Get returns the existing connection to peerID, if any.
func (m *ConnectionManager) Get(peerID types.PeerID) (*PeerConnection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.connections[peerID]
	return conn, ok
}

// All returns every currently-known connection.
func (m *ConnectionManager) All() []*PeerConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	conns := make([]*PeerConnection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	return conns
}

// DrainAll requests every connection to drain and waits for all of them
// to finish concurrently, one errgroup goroutine per connection. Each
// connection's background flusher is stopped first, then a final forced
// flush — ignoring gating, since nothing is left to release an abandoned
// gate after shutdown begins — sends whatever remains, followed by a
// GOODBYE.
func (m *ConnectionManager) DrainAll(ctx context.Context) error {
	conns := m.All()

	m.mu.Lock()
	for _, c := range conns {
		if stop, ok := m.flushStop[c.Remote().PeerID()]; ok {
			close(stop)
			delete(m.flushStop, c.Remote().PeerID())
		}
	}
	m.mu.Unlock()

	group, _ := errgroup.WithContext(ctx)
	for _, c := range conns {
		c := c
		group.Go(func() error {
			c.RequestDrain()
			if err := c.Flush(func(types.TransactionID) bool { return true }); err != nil {
				return err
			}
			if err := c.send(PeerMessage{Kind: Goodbye, PeerID: m.local.PeerID()}); err != nil {
				return err
			}
			c.MarkGoodbyeSent()
			return nil
		})
	}
	return group.Wait()
}

// Close tears down the underlying transport.
func (m *ConnectionManager) Close() error {
	return m.transport.Close()
}
