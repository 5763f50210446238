package wire

import "reflect"

// ClassRegistry maps wire class IDs to concrete message types. The mapping
// is ID -> factory (many IDs may alias to the same type, for backward
// compatibility with older clients) plus type -> preferred ID (used only
// when encoding, so a type that was registered under several IDs is always
// written back out under the first one it was registered under).
//
// A ClassRegistry is built once at process start and never mutated after
// that, so reads from concurrent session goroutines need no locking.
type ClassRegistry struct {
	factories map[int16]func() Decodable
	preferred map[reflect.Type]int16
}

// NewClassRegistry returns an empty registry.
func NewClassRegistry() *ClassRegistry {
	return &ClassRegistry{
		factories: make(map[int16]func() Decodable),
		preferred: make(map[reflect.Type]int16),
	}
}

// Register binds classID to a zero-value factory for sample's type. If the
// type was already registered under a different ID, that earlier ID remains
// the preferred encode-time ID — Register only ever arrives at the newest
// claim for decode, never steals the preferred slot back.
func (r *ClassRegistry) Register(classID int16, sample Decodable, factory func() Decodable) {
	r.factories[classID] = factory

	t := reflect.TypeOf(sample)
	if _, exists := r.preferred[t]; !exists {
		r.preferred[t] = classID
	}
}

// New constructs a zero-valued instance for classID, or (nil, false) if the
// ID is not registered.
func (r *ClassRegistry) New(classID int16) (Decodable, bool) {
	f, ok := r.factories[classID]
	if !ok {
		return nil, false
	}
	return f(), true
}

// PreferredID returns the class ID that obj's concrete type should be
// encoded under.
func (r *ClassRegistry) PreferredID(obj Encodable) (int16, bool) {
	id, ok := r.preferred[reflect.TypeOf(obj)]
	return id, ok
}
