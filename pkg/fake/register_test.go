package fake_test

import (
	"testing"

	"github.com/jabolina/floatingtemple/pkg/fake"
	"github.com/jabolina/floatingtemple/pkg/types"
)

func TestRegisterGetSet(t *testing.T) {
	reg := fake.NewRegister()

	got, err := reg.InvokeMethod(nil, nil, "Get", nil)
	if err != nil {
		t.Fatalf("unexpected error on Get: %v", err)
	}
	if !got.Equal(types.EmptyValue()) {
		t.Fatalf("expected a fresh register to hold the empty value, got %+v", got)
	}

	if _, err := reg.InvokeMethod(nil, nil, "Set", []types.CommittedValue{types.StringValue("hi")}); err != nil {
		t.Fatalf("unexpected error on Set: %v", err)
	}

	got, _ = reg.InvokeMethod(nil, nil, "Get", nil)
	if !got.Equal(types.StringValue("hi")) {
		t.Fatalf("expected register to hold the set value, got %+v", got)
	}
}

func TestRegisterSetRejectsWrongArity(t *testing.T) {
	reg := fake.NewRegister()
	if _, err := reg.InvokeMethod(nil, nil, "Set", nil); err == nil {
		t.Fatalf("expected an error when Set is called with no parameters")
	}
}

func TestRegisterUnknownMethod(t *testing.T) {
	reg := fake.NewRegister()
	if _, err := reg.InvokeMethod(nil, nil, "Increment", nil); err == nil {
		t.Fatalf("expected an error for an unknown method name")
	}
}

func TestRegisterSerializeRoundTrip(t *testing.T) {
	reg := fake.NewRegister()
	if _, err := reg.InvokeMethod(nil, nil, "Set", []types.CommittedValue{types.Int64Value(42)}); err != nil {
		t.Fatalf("unexpected error on Set: %v", err)
	}

	data, err := reg.Serialize()
	if err != nil {
		t.Fatalf("unexpected error on Serialize: %v", err)
	}

	restored, err := fake.DeserializeRegister(data)
	if err != nil {
		t.Fatalf("unexpected error on DeserializeRegister: %v", err)
	}

	got, _ := restored.InvokeMethod(nil, nil, "Get", nil)
	if !got.Equal(types.Int64Value(42)) {
		t.Fatalf("expected restored register to hold 42, got %+v", got)
	}
}

func TestRegisterClone(t *testing.T) {
	reg := fake.NewRegister()
	if _, err := reg.InvokeMethod(nil, nil, "Set", []types.CommittedValue{types.Int64Value(7)}); err != nil {
		t.Fatalf("unexpected error on Set: %v", err)
	}

	clone := reg.Clone()
	if _, err := reg.InvokeMethod(nil, nil, "Set", []types.CommittedValue{types.Int64Value(8)}); err != nil {
		t.Fatalf("unexpected error on Set: %v", err)
	}

	got, _ := clone.InvokeMethod(nil, nil, "Get", nil)
	if !got.Equal(types.Int64Value(7)) {
		t.Fatalf("expected clone to be unaffected by later mutation of the original, got %+v", got)
	}
}
