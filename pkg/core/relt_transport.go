package core

import (
	"context"
	"fmt"

	"github.com/jabolina/relt/pkg/relt"

	"github.com/jabolina/floatingtemple/pkg/types"
)

// ReltTransport is the production Transport (spec.md §4.4, C4),
// grounded on the teacher's core/transport.go ReliableTransport: one
// relt exchange per remote peer, each wrapping whole-message delivery.
// Framing below "deliver one whole message" is relt's concern and out
// of scope here (spec.md §1 Non-goals).
type ReltTransport struct {
	local  types.PeerID
	logger types.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewReltTransport constructs a transport identified as local.
func NewReltTransport(local types.PeerID, logger types.Logger) *ReltTransport {
	ctx, cancel := context.WithCancel(context.Background())
	return &ReltTransport{local: local, logger: logger, ctx: ctx, cancel: cancel}
}

// Dial opens a relt exchange named after the remote peer ID, returning
// a send function and a channel of decoded inbound messages. Grounded
// on NewTransport/poll/consume in the teacher's transport.go.
func (t *ReltTransport) Dial(local, remote types.PeerID) (func(PeerMessage) error, <-chan PeerMessage, error) {
	conf := relt.DefaultReltConfiguration()
	conf.Name = string(local)
	conf.Exchange = relt.GroupAddress(remote)

	r, err := relt.NewRelt(*conf)
	if err != nil {
		return nil, nil, fmt.Errorf("floatingtemple: opening relt exchange to %s: %w", remote, err)
	}

	out := make(chan PeerMessage, 100)

	listener, err := r.Consume()
	if err != nil {
		_ = r.Close()
		return nil, nil, fmt.Errorf("floatingtemple: consuming relt exchange to %s: %w", remote, err)
	}

	InvokerInstance().Spawn(func() {
		defer close(out)
		for {
			select {
			case <-t.ctx.Done():
				return
			case recv, ok := <-listener:
				if !ok {
					return
				}
				if recv.Error != nil {
					t.logger.Errorf("floatingtemple: relt recv from %s: %v", remote, recv.Error)
					continue
				}
				msg, err := DecodeMessage(recv.Data)
				if err != nil {
					t.logger.Errorf("floatingtemple: decoding message from %s: %v", remote, err)
					continue
				}
				out <- msg
			}
		}
	})

	send := func(msg PeerMessage) error {
		data, err := EncodeMessage(msg)
		if err != nil {
			return err
		}
		return r.Broadcast(t.ctx, relt.Send{Address: relt.GroupAddress(remote), Data: data})
	}

	return send, out, nil
}

// Close cancels every exchange spawned by this transport.
func (t *ReltTransport) Close() error {
	t.cancel()
	return nil
}

var _ Transport = (*ReltTransport)(nil)
