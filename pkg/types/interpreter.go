package types

// Interpreter deserializes the opaque bytes of an OBJECT_CREATION event
// back into a LocalObject (spec.md §6.2).
type Interpreter interface {
	DeserializeObject(data []byte) (LocalObject, error)
}

// LocalObject is the embedding's in-memory representation of an object
// that does not require log-based replay (spec.md §6.2, §3.3 "unversioned
// object"). It can serialize itself and respond to method invocations.
type LocalObject interface {
	// Serialize returns the opaque bytes recorded in an OBJECT_CREATION
	// event the first time this object is committed.
	Serialize() ([]byte, error)

	// InvokeMethod runs methodName against this object's current state,
	// using thread to make any nested calls the method performs. self is
	// the handle this object was reached through.
	InvokeMethod(thread Thread, self *Handle, methodName string, params []CommittedValue) (CommittedValue, error)
}

// VersionedLocalObject additionally supports Clone, required for objects
// whose state is recovered by replaying the log (spec.md §3.3, §6.2).
type VersionedLocalObject interface {
	LocalObject
	Clone() VersionedLocalObject
}

// Thread is the interpreter callback API implemented by both the
// recording thread (C7) and the playback thread (C8) (spec.md §4.7).
// BeginTransaction, EndTransaction and CallMethod return false while a
// rewind is in progress; the interpreter embedding convention is to treat
// that as "abort the current method and propagate".
type Thread interface {
	BeginTransaction() bool
	EndTransaction() bool
	CreateVersionedObject(initial VersionedLocalObject, name string) *Handle
	CreateUnversionedObject(initial LocalObject, name string) *Handle
	CallMethod(handle *Handle, methodName string, params []CommittedValue) (bool, CommittedValue)
	ObjectsIdentical(a, b *Handle) bool
}
