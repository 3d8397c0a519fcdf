package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jabolina/floatingtemple/pkg/core"
	"github.com/jabolina/floatingtemple/pkg/fake"
	"github.com/jabolina/floatingtemple/pkg/types"
)

// TestRecordingThreadSubObjectCreationReplaysWithSameIdentity proves
// the round trip the SUB_OBJECT_CREATION event exists for: a method
// that creates a second object mid-call must replay to the exact same
// object identity the recording peer minted (spec.md §4.8
// "Object-identity matching"), not an unrelated fresh one.
func TestRecordingThreadSubObjectCreationReplaysWithSameIdentity(t *testing.T) {
	store, _ := newStandaloneStore(t)
	thread := core.NewRecordingThread(store, false, false)

	var spawnerHandle *types.Handle
	var recorded types.CommittedValue

	thread.Run(context.Background(), func(th types.Thread) (bool, types.CommittedValue) {
		th.BeginTransaction()
		spawnerHandle = th.CreateVersionedObject(fake.NewSpawner(), "")
		ok, ret := th.CallMethod(spawnerHandle, "Spawn", nil)
		require.True(t, ok, "expected Spawn to succeed")
		recorded = ret
		th.EndTransaction()
		return true, ret
	})

	require.Equal(t, types.ValueObjectRef, recorded.Kind, "expected Spawn to record an object reference")
	require.False(t, recorded.ObjectRef.IsZero(), "expected Spawn to record a non-zero object reference")

	handle := types.NewUnboundHandle(true)
	handle.Bind(spawnerHandle.Object())

	live, err := store.GetLiveObject(context.Background(), handle, store.CurrentSequencePoint(), false)
	require.NoError(t, err, "replaying the spawner")

	replayed, err := live.InvokeMethod(nil, nil, "Spawned", nil)
	require.NoError(t, err, "querying the replayed spawner")
	require.True(t, replayed.Equal(recorded), "expected replay to mint the same sub-object identity %v, got %v", recorded, replayed)
}
