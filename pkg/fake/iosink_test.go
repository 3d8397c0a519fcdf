package fake_test

import (
	"testing"

	"github.com/jabolina/floatingtemple/pkg/fake"
	"github.com/jabolina/floatingtemple/pkg/types"
)

func TestIOSinkPrintAppends(t *testing.T) {
	sink := fake.NewIOSink()

	if _, err := sink.InvokeMethod(nil, nil, "Print", []types.CommittedValue{types.StringValue("hello ")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := sink.InvokeMethod(nil, nil, "Print", []types.CommittedValue{types.StringValue("world")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, want := sink.Output(), "hello world"; got != want {
		t.Fatalf("got output %q, want %q", got, want)
	}
}

func TestIOSinkRejectsNonStringParam(t *testing.T) {
	sink := fake.NewIOSink()
	if _, err := sink.InvokeMethod(nil, nil, "Print", []types.CommittedValue{types.Int64Value(1)}); err == nil {
		t.Fatalf("expected an error for a non-string parameter")
	}
}

func TestIOSinkSerializeFails(t *testing.T) {
	sink := fake.NewIOSink()
	if _, err := sink.Serialize(); err == nil {
		t.Fatalf("expected Serialize to fail for an unversioned object")
	}
}
