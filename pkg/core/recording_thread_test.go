package core_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jabolina/floatingtemple/pkg/core"
	"github.com/jabolina/floatingtemple/pkg/fake"
	"github.com/jabolina/floatingtemple/pkg/types"
)

// TestRecordingThreadRewindRetriesProgram drives a thread that is
// already rewinding at the moment its program runs: the first attempt's
// CallMethod must fail, forcing Run to wait out the rewind and retry the
// whole program from the top (spec.md §4.7 "Rewind").
func TestRecordingThreadRewindRetriesProgram(t *testing.T) {
	store, local := newStandaloneStore(t)
	thread := core.NewRecordingThread(store, false, false)

	// Force rewindBelow to be set before the program ever runs, so the
	// first CallMethod observes isRewinding() and fails.
	thread.Rewind(local, types.ZeroTransactionID)

	var attempts int32
	program := func(th types.Thread) (bool, types.CommittedValue) {
		n := atomic.AddInt32(&attempts, 1)
		handle := th.CreateVersionedObject(fake.NewRegister(), "register")
		ok, result := th.CallMethod(handle, "Set", []types.CommittedValue{types.Int64Value(7)})
		if n == 1 {
			if ok {
				t.Errorf("expected the first attempt's CallMethod to fail while rewinding")
			}
			return false, types.EmptyValue()
		}
		if !ok {
			t.Errorf("expected the retried attempt's CallMethod to succeed")
		}
		return true, result
	}

	result := thread.Run(context.Background(), program)

	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Fatalf("expected the program to run twice (initial + retry), got %d", got)
	}
	if !result.Equal(types.EmptyValue()) {
		t.Fatalf("expected the Set call's empty return value, got %+v", result)
	}
}

// TestRecordingThreadLingerResumesAfterRewind exercises a lingering
// thread: after its program first completes, it parks instead of
// exiting, and only resumes the program once a later Rewind wakes it
// (spec.md §4.7 "Linger").
func TestRecordingThreadLingerResumesAfterRewind(t *testing.T) {
	store, local := newStandaloneStore(t)
	thread := core.NewRecordingThread(store, true, false)

	attempts := make(chan int32, 4)
	var n int32
	program := func(th types.Thread) (bool, types.CommittedValue) {
		cur := atomic.AddInt32(&n, 1)
		attempts <- cur
		return true, types.EmptyValue()
	}

	go thread.Run(context.Background(), program)

	select {
	case a := <-attempts:
		if a != 1 {
			t.Fatalf("expected the first attempt to run immediately, got %d", a)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the first program invocation")
	}

	thread.Rewind(local, types.ZeroTransactionID)

	select {
	case a := <-attempts:
		if a != 2 {
			t.Fatalf("expected a second attempt once the lingering thread resumed, got %d", a)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for the lingering thread to resume after rewind")
	}
}
