package fake

import (
	"encoding/json"
	"fmt"

	"github.com/jabolina/floatingtemple/pkg/types"
)

// Interpreter deserializes OBJECT_CREATION payloads produced by the
// versioned objects in this package (Register, Spawner), dispatching on
// each payload's envelope Type field; IOSink is unversioned and never
// deserialized from a log.
type Interpreter struct{}

func (Interpreter) DeserializeObject(data []byte) (types.LocalObject, error) {
	var envelope struct{ Type string }
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("fake: deserializing payload envelope: %w", err)
	}

	switch envelope.Type {
	case "register":
		return DeserializeRegister(data)
	case "spawner":
		return DeserializeSpawner(data)
	default:
		return nil, fmt.Errorf("fake: no interpreter object matches payload type %q", envelope.Type)
	}
}

var _ types.Interpreter = Interpreter{}
