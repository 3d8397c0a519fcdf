// Package fake supplies minimal interpreter objects standing in for a
// real toy-language embedding, used by the engine's own tests and by
// cmd/ft-peer's demo mode.
package fake

import (
	"encoding/json"
	"fmt"

	"github.com/jabolina/floatingtemple/pkg/types"
)

// Register is a versioned object holding a single opaque committed
// value, with Get/Set methods (SPEC_FULL.md §5). It is deliberately
// tiny: the engine's replay machinery is the thing under test, not the
// object's own logic.
type Register struct {
	value types.CommittedValue
}

// NewRegister returns a register initialized to the empty value.
func NewRegister() *Register {
	return &Register{value: types.EmptyValue()}
}

func (r *Register) Serialize() ([]byte, error) {
	return json.Marshal(registerWire{Type: "register", Kind: r.value.Kind, String: r.value.String, Int64: r.value.Int64})
}

func (r *Register) Clone() types.VersionedLocalObject {
	return &Register{value: r.value}
}

// InvokeMethod dispatches "Get" and "Set"; any other method name fails.
func (r *Register) InvokeMethod(thread types.Thread, self *types.Handle, methodName string, params []types.CommittedValue) (types.CommittedValue, error) {
	switch methodName {
	case "Get":
		return r.value, nil
	case "Set":
		if len(params) != 1 {
			return types.EmptyValue(), fmt.Errorf("fake: Set expects exactly one parameter, got %d", len(params))
		}
		r.value = params[0]
		return types.EmptyValue(), nil
	default:
		return types.EmptyValue(), fmt.Errorf("fake: Register has no method %q", methodName)
	}
}

type registerWire struct {
	Type   string
	Kind   types.ValueKind
	String string
	Int64  int64
}

// DeserializeRegister reconstructs a Register from Serialize's output.
func DeserializeRegister(data []byte) (types.LocalObject, error) {
	var wire registerWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("fake: deserializing register: %w", err)
	}

	reg := NewRegister()
	switch wire.Kind {
	case types.ValueString:
		reg.value = types.StringValue(wire.String)
	case types.ValueInt64:
		reg.value = types.Int64Value(wire.Int64)
	default:
		reg.value = types.EmptyValue()
	}
	return reg, nil
}

var _ types.VersionedLocalObject = (*Register)(nil)
