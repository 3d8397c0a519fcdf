package fake

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jabolina/floatingtemple/pkg/types"
)

// IOSink is an unversioned object with a single Print method that
// appends to an in-memory buffer (SPEC_FULL.md §5), used to drive the
// "Hello world" end-to-end scenario: an unversioned object is never
// replayed, so its effects are local-only and side-effectful by design.
type IOSink struct {
	mu  sync.Mutex
	buf strings.Builder
}

// NewIOSink returns an empty sink.
func NewIOSink() *IOSink {
	return &IOSink{}
}

func (s *IOSink) Serialize() ([]byte, error) {
	return nil, fmt.Errorf("fake: IOSink is unversioned and never serialized")
}

// InvokeMethod dispatches "Print"; any other method name fails.
func (s *IOSink) InvokeMethod(thread types.Thread, self *types.Handle, methodName string, params []types.CommittedValue) (types.CommittedValue, error) {
	if methodName != "Print" {
		return types.EmptyValue(), fmt.Errorf("fake: IOSink has no method %q", methodName)
	}
	if len(params) != 1 || params[0].Kind != types.ValueString {
		return types.EmptyValue(), fmt.Errorf("fake: Print expects a single string parameter")
	}

	s.mu.Lock()
	s.buf.WriteString(params[0].String)
	s.mu.Unlock()

	return types.EmptyValue(), nil
}

// Output returns everything printed so far.
func (s *IOSink) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

var _ types.LocalObject = (*IOSink)(nil)
