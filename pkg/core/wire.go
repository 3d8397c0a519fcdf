package core

import (
	"encoding/json"
	"fmt"

	"github.com/jabolina/floatingtemple/pkg/types"
)

// EngineProtocolVersion is sent in every HELLO so peers running
// incompatible major versions of the wire protocol can refuse the
// connection instead of misinterpreting each other's frames
// (SPEC_FULL.md §3 "HELLO protocol-version negotiation").
const EngineProtocolVersion = "1.0.0"

// MessageKind is the wire tag of a PeerMessage (spec.md §6.1).
type MessageKind int

const (
	Hello MessageKind = iota
	Goodbye
	ApplyTransaction
	GetObject
	StoreObject
	RejectTransaction
	InvalidateTransactions
	Test
)

func (k MessageKind) String() string {
	switch k {
	case Hello:
		return "HELLO"
	case Goodbye:
		return "GOODBYE"
	case ApplyTransaction:
		return "APPLY_TRANSACTION"
	case GetObject:
		return "GET_OBJECT"
	case StoreObject:
		return "STORE_OBJECT"
	case RejectTransaction:
		return "REJECT_TRANSACTION"
	case InvalidateTransactions:
		return "INVALIDATE_TRANSACTIONS"
	case Test:
		return "TEST"
	default:
		return "UNKNOWN"
	}
}

// WireObjectTransaction is one object's contribution to an
// APPLY_TRANSACTION message.
type WireObjectTransaction struct {
	ObjectID types.ObjectID
	Events   []types.CommittedEvent
}

// WireTransaction is a full transaction as carried inside a STORE_OBJECT
// reply: an origin peer ID (resolved through the registry on arrival)
// plus the per-object event subsequences.
type WireTransaction struct {
	ID           types.TransactionID
	OriginPeerID types.PeerID
	ObjectEvents map[types.ObjectID][]types.CommittedEvent
}

// WireRejectedEntry is one (peer, start-transaction) pair inside a
// REJECT_TRANSACTION message.
type WireRejectedEntry struct {
	PeerID        types.PeerID
	TransactionID types.TransactionID
}

// PeerMessage is the tagged union of every frame exchanged between peers
// (spec.md §6.1). Fields are populated according to Kind; the zero value
// of fields not relevant to Kind is simply ignored.
type PeerMessage struct {
	Kind MessageKind

	// HELLO
	PeerID          types.PeerID
	InterpreterType string
	ProtocolVersion string

	// APPLY_TRANSACTION
	TransactionID      types.TransactionID
	ObjectTransactions []WireObjectTransaction

	// GET_OBJECT
	ObjectID types.ObjectID

	// STORE_OBJECT
	Transactions      []WireTransaction
	PeerVersions      map[types.PeerID]types.TransactionID
	InterestedPeerIDs []types.PeerID

	// REJECT_TRANSACTION
	NewTransactionID types.TransactionID
	Rejected         []WireRejectedEntry

	// INVALIDATE_TRANSACTIONS
	StartTransactionID types.TransactionID
	EndTransactionID   types.TransactionID

	// TEST (test-only)
	Text string
}

// EncodeMessage serializes msg for transmission over a relt exchange.
func EncodeMessage(msg PeerMessage) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("floatingtemple: failed encoding peer message: %w", err)
	}
	return data, nil
}

// DecodeMessage parses a wire frame produced by EncodeMessage.
func DecodeMessage(data []byte) (PeerMessage, error) {
	var msg PeerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return PeerMessage{}, fmt.Errorf("floatingtemple: failed decoding peer message: %w", err)
	}
	return msg, nil
}
