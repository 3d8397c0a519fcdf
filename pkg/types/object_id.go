package types

import (
	"github.com/google/uuid"
)

// NamedObjectNamespace is the fixed namespace UUID used to derive Object
// IDs for objects declared with a stable name (spec.md §6.4). Any peer
// naming the same string inside this namespace derives the same ObjectID.
var NamedObjectNamespace = uuid.MustParse("ab2d0b40-fe62-11e2-bf8b-000c2949fc67")

// ObjectID is the 128-bit identifier of a shared object (spec.md §3.1).
type ObjectID uuid.UUID

// ZeroObjectID is the absent/invalid sentinel.
var ZeroObjectID ObjectID

// NewRandomObjectID mints an Object ID for an anonymous object.
func NewRandomObjectID() ObjectID {
	return ObjectID(uuid.New())
}

// NewNamedObjectID derives an Object ID from a stable name, hashed against
// NamedObjectNamespace. Any peer calling this with the same name obtains
// the same ObjectID (spec.md §6.4, testable property 7).
func NewNamedObjectID(name string) ObjectID {
	return ObjectID(uuid.NewSHA1(NamedObjectNamespace, []byte(name)))
}

// IsZero reports whether this is the absent-object sentinel.
func (o ObjectID) IsZero() bool {
	return o == ZeroObjectID
}

func (o ObjectID) String() string {
	return uuid.UUID(o).String()
}

// MarshalText implements encoding.TextMarshaler so ObjectID serializes as
// its canonical UUID string form over the wire and in JSON config/dumps.
func (o ObjectID) MarshalText() ([]byte, error) {
	return uuid.UUID(o).MarshalText()
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *ObjectID) UnmarshalText(data []byte) error {
	var u uuid.UUID
	if err := u.UnmarshalText(data); err != nil {
		return err
	}
	*o = ObjectID(u)
	return nil
}
