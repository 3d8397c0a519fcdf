package floatingtemple

import (
	"github.com/jabolina/floatingtemple/pkg/types"
)

// Interpreter, LocalObject, VersionedLocalObject, and Thread are
// re-exported at the root so an embedding only ever imports the
// top-level package, exactly as spec.md §6.2 describes the embedding
// surface. The types themselves live in pkg/types, where the rest of
// the engine's data model lives.
type (
	Interpreter          = types.Interpreter
	LocalObject          = types.LocalObject
	VersionedLocalObject = types.VersionedLocalObject
	Thread               = types.Thread
	Handle               = types.Handle
	CommittedValue       = types.CommittedValue
)

// Value constructors re-exported for embeddings that don't want to
// import pkg/types directly.
var (
	EmptyValue      = types.EmptyValue
	Float64Value    = types.Float64Value
	Int64Value      = types.Int64Value
	BoolValue       = types.BoolValue
	StringValue     = types.StringValue
	BytesValue      = types.BytesValue
	ObjectRefValue  = types.ObjectRefValue
)
