package types_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jabolina/floatingtemple/pkg/types"
)

// TestSubObjectCreationEventCarriesNewObject locks down the one field
// NewSubObjectCreationEvent exists for: the new object's ID must appear
// both as Callee and as the sole entry of NewObjects, so a consumer can
// read either depending on whether it cares about "what was created" or
// "what got introduced" (spec.md §4.8 "Object-identity matching").
func TestSubObjectCreationEventCarriesNewObject(t *testing.T) {
	newObject := types.NewRandomObjectID()
	got := types.NewSubObjectCreationEvent(newObject)

	want := types.CommittedEvent{
		Kind:       types.SubObjectCreation,
		Callee:     newObject,
		NewObjects: []types.ObjectID{newObject},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("NewSubObjectCreationEvent mismatch (-want +got):\n%s", diff)
	}
}

// TestEventKindStringIsExhaustive guards against a new EventKind being
// added to the const block without a matching String() case.
func TestEventKindStringIsExhaustive(t *testing.T) {
	kinds := []types.EventKind{
		types.ObjectCreation,
		types.SubObjectCreation,
		types.BeginTransaction,
		types.EndTransaction,
		types.MethodCall,
		types.MethodReturn,
		types.SubMethodCall,
		types.SubMethodReturn,
		types.SelfMethodCall,
		types.SelfMethodReturn,
	}
	for _, k := range kinds {
		if got := k.String(); got == "UNKNOWN_EVENT_KIND" {
			t.Fatalf("EventKind %d has no String() case", k)
		}
	}
}
