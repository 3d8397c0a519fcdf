package types

// Transaction is an atomic group: a transaction ID, the peer that
// originated it, and — per touched object — the ordered subsequence of
// events pertaining to that object (spec.md §3.5).
type Transaction struct {
	ID         TransactionID
	OriginPeer *CanonicalPeer

	// ObjectEvents maps each touched object to the ordered events this
	// transaction contributes to that object's log, preserving the
	// interleaving order within each object.
	ObjectEvents map[ObjectID][]CommittedEvent
}

// NewTransaction returns an empty transaction ready to be populated.
func NewTransaction(id TransactionID, origin *CanonicalPeer) *Transaction {
	return &Transaction{
		ID:           id,
		OriginPeer:   origin,
		ObjectEvents: make(map[ObjectID][]CommittedEvent),
	}
}

// AddEvent appends event to the subsequence for object, preserving order.
func (t *Transaction) AddEvent(object ObjectID, event CommittedEvent) {
	t.ObjectEvents[object] = append(t.ObjectEvents[object], event)
}

// EventsFor returns the ordered event subsequence this transaction
// contributes to object, or nil if the transaction does not touch it.
func (t *Transaction) EventsFor(object ObjectID) []CommittedEvent {
	return t.ObjectEvents[object]
}

// TouchesObject reports whether this transaction contributes any events
// to object.
func (t *Transaction) TouchesObject(object ObjectID) bool {
	_, ok := t.ObjectEvents[object]
	return ok
}

// TouchedObjects returns every object this transaction contributes events
// to, in no particular order.
func (t *Transaction) TouchedObjects() []ObjectID {
	objects := make([]ObjectID, 0, len(t.ObjectEvents))
	for object := range t.ObjectEvents {
		objects = append(objects, object)
	}
	return objects
}
