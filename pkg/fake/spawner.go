package fake

import (
	"encoding/json"
	"fmt"

	"github.com/jabolina/floatingtemple/pkg/types"
)

// Spawner is a versioned object whose one method, "Spawn", creates a
// fresh versioned Register mid-call and stashes the new object's ID as
// its own value, exercising SUB_OBJECT_CREATION (spec.md §4.8
// "Object-identity matching"): replaying a Spawn must mint the exact
// same sub-object identity the recording peer did, or the two peers'
// copies of the spawned register diverge.
type Spawner struct {
	spawned types.ObjectID
}

// NewSpawner returns a spawner that has not yet created anything.
func NewSpawner() *Spawner {
	return &Spawner{}
}

func (s *Spawner) Serialize() ([]byte, error) {
	return json.Marshal(spawnerWire{Type: "spawner", Spawned: s.spawned})
}

func (s *Spawner) Clone() types.VersionedLocalObject {
	return &Spawner{spawned: s.spawned}
}

// InvokeMethod dispatches "Spawn", which creates a new versioned
// Register through thread and records its ID, and "Spawned", which
// returns that ID as a committed value.
func (s *Spawner) InvokeMethod(thread types.Thread, self *types.Handle, methodName string, params []types.CommittedValue) (types.CommittedValue, error) {
	switch methodName {
	case "Spawn":
		handle := thread.CreateVersionedObject(NewRegister(), "")
		if handle == nil || handle.Object() == nil {
			return types.EmptyValue(), fmt.Errorf("fake: Spawn did not receive a bound handle")
		}
		s.spawned = handle.Object().ID
		return types.ObjectRefValue(s.spawned), nil
	case "Spawned":
		return types.ObjectRefValue(s.spawned), nil
	default:
		return types.EmptyValue(), fmt.Errorf("fake: Spawner has no method %q", methodName)
	}
}

type spawnerWire struct {
	Type    string
	Spawned types.ObjectID
}

// DeserializeSpawner reconstructs a Spawner from Serialize's output.
func DeserializeSpawner(data []byte) (types.LocalObject, error) {
	var wire spawnerWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("fake: deserializing spawner: %w", err)
	}
	return &Spawner{spawned: wire.Spawned}, nil
}

var _ types.VersionedLocalObject = (*Spawner)(nil)
