package types

import "sync/atomic"

var handleSeq uint64

// Handle is the per-process reference to a shared object handed out to
// the interpreter embedding (spec.md §3.3). Handles created through a
// recording thread are bound at creation, to a freshly minted
// SharedObject or, for named handles, to the store's named one; binding
// is not deferred to the handle's first transaction. A handle minted
// with NewUnboundHandle stays unbound until Bind is called.
//
// Identity rule: two handles are "the same object" iff Object() returns
// the same *SharedObject pointer. Unbound handles are unique from one
// another by construction (each carries its own sequence number), even
// though Object() returns nil for all of them.
type Handle struct {
	seq       uint64
	versioned bool

	object *SharedObject

	// name is non-empty for handles created via a stable name
	// (create_versioned_object/create_unversioned_object with a name, or
	// get_or_create_named_object); it lets the store resolve the same
	// SharedObject for every peer naming the same string.
	name string
}

// NewUnboundHandle mints a handle with no shared object attached yet.
func NewUnboundHandle(versioned bool) *Handle {
	return &Handle{seq: atomic.AddUint64(&handleSeq, 1), versioned: versioned}
}

// NewNamedHandle mints an unbound handle carrying a stable name.
func NewNamedHandle(versioned bool, name string) *Handle {
	h := NewUnboundHandle(versioned)
	h.name = name
	return h
}

func (h *Handle) Versioned() bool { return h.versioned }
func (h *Handle) Name() string    { return h.name }
func (h *Handle) IsBound() bool   { return h.object != nil }

// Object returns the bound SharedObject, or nil if the handle is unbound.
func (h *Handle) Object() *SharedObject {
	return h.object
}

// Bind attaches object to this handle. Binding is a one-way transition:
// an already-bound handle must not be rebound to an object with a
// different ID.
func (h *Handle) Bind(object *SharedObject) {
	h.object = object
}

// SameObject reports whether a and b are bound to the same SharedObject.
// Two unbound handles are never the same object, even if they carry the
// same name (the name is only resolved to an object once bound).
func SameObject(a, b *Handle) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.object == nil || b.object == nil {
		return a == b
	}
	return a.object == b.object
}
