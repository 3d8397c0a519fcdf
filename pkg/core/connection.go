package core

import (
	"container/heap"
	"sync"

	"github.com/jabolina/floatingtemple/pkg/types"
)

// ConnectionState tracks the lifecycle of a PeerConnection socket
// (spec.md §4.4, C4), grounded on engine/connection_manager.h.
type ConnectionState int

const (
	ConnectionOpen ConnectionState = iota
	ConnectionClosed
)

// HandshakeState tracks one direction (send or receive) of the
// HELLO/GOODBYE handshake independently, since a connection can be
// sending GOODBYE while still receiving ordinary traffic.
type HandshakeState int

const (
	HandshakeNone HandshakeState = iota
	HandshakeHelloDone
	HandshakeGoodbyeDone
)

// DrainMode indicates whether a connection has been asked to flush and
// close once its outgoing queue empties.
type DrainMode int

const (
	NoDrain DrainMode = iota
	DrainRequested
)

// pendingMessage is a queued outgoing frame, held back until its gating
// transaction ID has been released by the sequencer (zero value means
// not gated).
type pendingMessage struct {
	gate types.TransactionID
	gated bool
	msg  PeerMessage
}

// outgoingQueue is a min-heap of pendingMessage ordered by gate, so
// messages gated on an earlier transaction always flush first.
type outgoingQueue []pendingMessage

func (q outgoingQueue) Len() int { return len(q) }
func (q outgoingQueue) Less(i, j int) bool {
	if q[i].gated != q[j].gated {
		return !q[i].gated // ungated messages flush ahead of gated ones
	}
	return types.Compare(q[i].gate, q[j].gate) < 0
}
func (q outgoingQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *outgoingQueue) Push(x interface{}) {
	*q = append(*q, x.(pendingMessage))
}
func (q *outgoingQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// PeerConnection is one point-to-point channel to a remote peer
// (spec.md §4.4, C4), grounded on engine/connection_manager.h's
// PeerConnectionImpl and the teacher's transport.go send/receive split.
// It owns a blocking priority queue of outgoing messages gated on
// not-yet-released transaction IDs, and tracks handshake/drain state
// independently for each direction.
type PeerConnection struct {
	mu sync.Mutex

	remote *types.CanonicalPeer

	state        ConnectionState
	sendState    HandshakeState
	recvState    HandshakeState
	drain        DrainMode

	queue    outgoingQueue
	notEmpty *sync.Cond

	send func(PeerMessage) error
}

// NewPeerConnection wires a connection to the given remote peer, using
// send to actually deliver frames (backed by a relt exchange in
// production, a channel in tests).
func NewPeerConnection(remote *types.CanonicalPeer, send func(PeerMessage) error) *PeerConnection {
	c := &PeerConnection{
		remote: remote,
		state:  ConnectionOpen,
		send:   send,
	}
	c.notEmpty = sync.NewCond(&c.mu)
	return c
}

// Remote returns the canonical peer at the other end.
func (c *PeerConnection) Remote() *types.CanonicalPeer {
	return c.remote
}

// IsOpen reports whether the connection may still accept enqueues.
func (c *PeerConnection) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == ConnectionOpen
}

// MarkHelloSent/MarkHelloReceived/MarkGoodbyeSent/MarkGoodbyeReceived
// advance the independent per-direction handshake states.
func (c *PeerConnection) MarkHelloSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendState == HandshakeNone {
		c.sendState = HandshakeHelloDone
	}
}

func (c *PeerConnection) MarkHelloReceived() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recvState == HandshakeNone {
		c.recvState = HandshakeHelloDone
	}
}

func (c *PeerConnection) MarkGoodbyeSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendState = HandshakeGoodbyeDone
}

func (c *PeerConnection) MarkGoodbyeReceived() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recvState = HandshakeGoodbyeDone
	if c.drain == DrainRequested && len(c.queue) == 0 {
		c.state = ConnectionClosed
		c.notEmpty.Broadcast()
	}
}

// RequestDrain asks the connection to close once its outgoing queue has
// been fully flushed and a GOODBYE has been received from the remote; no
// further enqueues are accepted after this call.
func (c *PeerConnection) RequestDrain() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.drain = DrainRequested
	c.notEmpty.Broadcast()
}

// Enqueue places msg on the outgoing queue, gated on gate if gated is
// true. Gated messages only flush once the released callback passed to
// Flush reports gate as released.
func (c *PeerConnection) Enqueue(msg PeerMessage, gate types.TransactionID, gated bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != ConnectionOpen || c.drain == DrainRequested {
		return false
	}
	heap.Push(&c.queue, pendingMessage{gate: gate, gated: gated, msg: msg})
	c.notEmpty.Broadcast()
	return true
}

// Flush drains every currently-ungated (or gate-released) message in
// queue order, calling send for each. released reports whether a gated
// message's gate has been cleared to send.
func (c *PeerConnection) Flush(released func(types.TransactionID) bool) error {
	for {
		c.mu.Lock()
		if len(c.queue) == 0 {
			if c.drain == DrainRequested && c.recvState == HandshakeGoodbyeDone {
				c.state = ConnectionClosed
			}
			c.mu.Unlock()
			return nil
		}
		head := c.queue[0]
		if head.gated && !released(head.gate) {
			c.mu.Unlock()
			return nil
		}
		heap.Pop(&c.queue)
		c.mu.Unlock()

		if err := c.send(head.msg); err != nil {
			return err
		}
	}
}

// Pending reports how many messages are still queued for send.
func (c *PeerConnection) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// WaitForSendable blocks until the outgoing queue holds at least one
// message or the connection has closed, whichever comes first. The
// background flusher calls this when the queue is empty; Enqueue and
// RequestDrain are what wake it.
func (c *PeerConnection) WaitForSendable() {
	c.mu.Lock()
	for len(c.queue) == 0 && c.state == ConnectionOpen {
		c.notEmpty.Wait()
	}
	c.mu.Unlock()
}
