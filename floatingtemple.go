// Package floatingtemple is the embedding facade for the runtime
// engine: a causally-ordered multi-writer transaction log with
// cooperative optimistic replay, speculative execution, and
// rewind-and-resume conflict recovery (spec.md §1).
package floatingtemple

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jabolina/floatingtemple/pkg/core"
	"github.com/jabolina/floatingtemple/pkg/definition"
	"github.com/jabolina/floatingtemple/pkg/types"
)

// Peer is a single running instance of the engine: the local
// transaction store plus its network connections, if any (spec.md §1,
// §4.6 C6). A Peer created with CreateStandalonePeer never dials out;
// one created with CreateNetworkPeer immediately connects to its known
// peer, if configured.
type Peer struct {
	config *Config
	logger types.Logger

	local      *types.CanonicalPeer
	registry   *core.PeerRegistry
	connection *core.ConnectionManager
	store      *core.TransactionStore
	metrics    *core.Metrics
}

// CreateStandalonePeer constructs a peer with no network connectivity,
// useful for single-process embeddings and tests (spec.md §8 scenario 1).
func CreateStandalonePeer(config *Config, interpreter Interpreter, logger types.Logger) (*Peer, error) {
	if logger == nil {
		logger = definition.NewDefaultLogger()
	}

	localID := types.MakePeerID(config.LocalAddress, config.LocalPort)
	registry := core.NewPeerRegistry()
	local := registry.Get(localID)

	store := core.NewTransactionStore(local, registry, interpreter, nil, logger)

	return &Peer{
		config:   config,
		logger:   logger,
		local:    local,
		registry: registry,
		store:    store,
	}, nil
}

// CreateNetworkPeer constructs a peer backed by a relt transport and,
// if config.KnownPeerID names one, immediately dials it so named
// objects can synchronize (spec.md §4.6 "New connection").
func CreateNetworkPeer(ctx context.Context, config *Config, interpreter Interpreter, registerer prometheus.Registerer, logger types.Logger) (*Peer, error) {
	if logger == nil {
		logger = definition.NewDefaultLogger()
	}

	localID := types.MakePeerID(config.LocalAddress, config.LocalPort)
	registry := core.NewPeerRegistry()
	local := registry.Get(localID)

	transport := core.NewReltTransport(localID, logger)
	connection := core.NewConnectionManager(local, registry, transport, logger, config.TransportThreads)
	store := core.NewTransactionStore(local, registry, interpreter, connection, logger)

	var metrics *core.Metrics
	if registerer != nil {
		metrics = core.NewMetrics(registerer, string(localID))
		store.SetMetrics(metrics)
	}

	peer := &Peer{
		config:     config,
		logger:     logger,
		local:      local,
		registry:   registry,
		connection: connection,
		store:      store,
		metrics:    metrics,
	}

	if config.KnownPeerID != "" {
		known := registry.Get(types.PeerID(config.KnownPeerID))
		if _, err := connection.Connect(ctx, known); err != nil {
			return nil, fmt.Errorf("floatingtemple: connecting to known peer %s: %w", known, err)
		}
	}

	return peer, nil
}

// RunProgram drives program to completion on a fresh recording thread,
// retrying it across rewinds, optionally lingering afterward per
// p.config.Linger (spec.md §4.7).
func (p *Peer) RunProgram(ctx context.Context, program func(thread types.Thread) (bool, types.CommittedValue)) types.CommittedValue {
	thread := core.NewRecordingThread(p.store, p.config.Linger, p.config.DelayObjectBinding)
	return thread.Run(ctx, program)
}

// CreateVersionedObject mints a handle bound to a freshly-created
// shared object, via a one-off recording thread; embeddings that need
// finer control should drive their own RecordingThread through
// RunProgram instead.
func (p *Peer) CreateVersionedObject(ctx context.Context, initial types.VersionedLocalObject, name string) *types.Handle {
	var handle *types.Handle
	p.RunProgram(ctx, func(thread types.Thread) (bool, types.CommittedValue) {
		thread.BeginTransaction()
		handle = thread.CreateVersionedObject(initial, name)
		thread.EndTransaction()
		return true, types.EmptyValue()
	})
	return handle
}

// CreateUnversionedObject mirrors CreateVersionedObject for unversioned
// objects.
func (p *Peer) CreateUnversionedObject(ctx context.Context, initial types.LocalObject, name string) *types.Handle {
	var handle *types.Handle
	p.RunProgram(ctx, func(thread types.Thread) (bool, types.CommittedValue) {
		handle = thread.CreateUnversionedObject(initial, name)
		return true, types.EmptyValue()
	})
	return handle
}

// Stop tears down the peer's network connections, if any: every
// connection is drained (its queued frames sent, then a GOODBYE) before
// the underlying transport is closed.
func (p *Peer) Stop() error {
	if p.connection == nil {
		return nil
	}
	if err := p.connection.DrainAll(context.Background()); err != nil {
		p.logger.Warnf("floatingtemple: draining connections on stop: %v", err)
	}
	return p.connection.Close()
}

// LocalPeerID returns the canonical peer ID this instance identifies
// itself with on the wire.
func (p *Peer) LocalPeerID() types.PeerID {
	return p.local.PeerID()
}
