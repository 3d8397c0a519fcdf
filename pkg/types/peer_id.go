package types

import (
	"fmt"
	"strconv"
	"strings"
)

// PeerID is the opaque string uniquely naming a peer, e.g.
// "ip/1.2.3.4/9000" (spec.md §3.1, §6.3).
type PeerID string

// MakePeerID formats a peer identifier from an address and port, mirroring
// the original engine's peer_id.h helper.
func MakePeerID(address string, port int) PeerID {
	return PeerID(fmt.Sprintf("ip/%s/%d", address, port))
}

// ParsePeerID strictly parses "ip/<address>/<port>" per spec.md §6.3.
// Malformed input, an out-of-range port, or a non-numeric port is an error.
func ParsePeerID(peerID PeerID) (address string, port int, err error) {
	parts := strings.Split(string(peerID), "/")
	if len(parts) != 3 || parts[0] != "ip" {
		return "", 0, fmt.Errorf("floatingtemple: malformed peer id %q", peerID)
	}

	address = parts[1]
	if address == "" {
		return "", 0, fmt.Errorf("floatingtemple: malformed peer id %q: empty address", peerID)
	}

	port, err = strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, fmt.Errorf("floatingtemple: malformed peer id %q: %w", peerID, err)
	}

	if port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("floatingtemple: malformed peer id %q: port out of range", peerID)
	}

	return address, port, nil
}

// CanonicalPeer is the interned, pointer-identity record for a peer
// (spec.md §3.1, §4.3). Two handles referring to the same peer compare
// equal by pointer, never by string.
type CanonicalPeer struct {
	peerID PeerID
}

// NewCanonicalPeer is exported only for use by core.PeerRegistry, the sole
// legitimate minter of CanonicalPeer records.
func NewCanonicalPeer(peerID PeerID) *CanonicalPeer {
	return &CanonicalPeer{peerID: peerID}
}

func (c *CanonicalPeer) PeerID() PeerID {
	return c.peerID
}

func (c *CanonicalPeer) String() string {
	return string(c.peerID)
}
