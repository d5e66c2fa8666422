package registry

import (
	"errors"
	"fmt"

	"github.com/zeusync/entitystore/internal/core/models"
	"github.com/zeusync/entitystore/pkg/sequence"
)

var (
	ErrUnknownKind = errors.New("unknown component kind")
	ErrDuplicate   = errors.New("duplicate")
)

// ID is the dense handle assigned to a kind at registration. It doubles as
// the bit index of the kind inside a KindSet.
type ID uint32

// Factory produces a blank component of a registered kind.
type Factory func() models.Component

// Descriptor is what the registry knows about one kind.
type Descriptor struct {
	ID   ID
	Kind models.Kind
	New  Factory
}

// Registry maps component kinds to ids. It is populated once at startup,
// before any entity referencing its kinds is created, and then handed to the
// store. It is not safe for concurrent registration.
type Registry struct {
	byKind map[models.Kind]ID
	byID   []Descriptor
}

func New() *Registry {
	return &Registry{
		byKind: make(map[models.Kind]ID),
		byID:   make([]Descriptor, 0, 16),
	}
}

// Register assigns the next id to kind. factory may be nil when the kind is
// never built generically.
func (r *Registry) Register(kind models.Kind, factory Factory) (ID, error) {
	if kind == "" {
		return 0, fmt.Errorf("register: empty kind: %w", ErrUnknownKind)
	}
	if _, exists := r.byKind[kind]; exists {
		return 0, fmt.Errorf("register kind %q: %w", kind, ErrDuplicate)
	}

	id := ID(len(r.byID))
	r.byKind[kind] = id
	r.byID = append(r.byID, Descriptor{ID: id, Kind: kind, New: factory})
	return id, nil
}

// MustRegister is Register for init code paths; it panics on error.
func (r *Registry) MustRegister(kind models.Kind, factory Factory) ID {
	id, err := r.Register(kind, factory)
	if err != nil {
		panic(err)
	}
	return id
}

// RegisterType registers the kind reported by *T, with a factory returning a
// fresh zeroed *T.
func RegisterType[T any, PT interface {
	*T
	models.Component
}](r *Registry) (ID, error) {
	var probe PT = new(T)
	return r.Register(probe.Kind(), func() models.Component {
		return PT(new(T))
	})
}

// Lookup returns the id of a registered kind.
func (r *Registry) Lookup(kind models.Kind) (ID, error) {
	id, ok := r.byKind[kind]
	if !ok {
		return 0, fmt.Errorf("kind %q: %w", kind, ErrUnknownKind)
	}
	return id, nil
}

// Resolve is the reverse of Lookup.
func (r *Registry) Resolve(id ID) (Descriptor, error) {
	if int(id) >= len(r.byID) {
		return Descriptor{}, fmt.Errorf("kind id %d: %w", id, ErrUnknownKind)
	}
	return r.byID[id], nil
}

// New builds a blank component of the given kind through its factory.
func (r *Registry) New(kind models.Kind) (models.Component, error) {
	id, err := r.Lookup(kind)
	if err != nil {
		return nil, err
	}
	d := r.byID[id]
	if d.New == nil {
		return nil, fmt.Errorf("kind %q has no factory", kind)
	}
	return d.New(), nil
}

// Mask converts kinds into a KindSet, failing on the first unknown kind.
func (r *Registry) Mask(kinds ...models.Kind) (KindSet, error) {
	var set KindSet
	for _, kind := range kinds {
		id, err := r.Lookup(kind)
		if err != nil {
			return nil, err
		}
		set = set.Set(id)
	}
	return set, nil
}

func (r *Registry) Len() int {
	return len(r.byID)
}

// Kinds lists registered kinds sorted by name.
func (r *Registry) Kinds() []models.Kind {
	sorted := sequence.From(r.byID).Sort(func(a, b Descriptor) bool { return a.Kind < b.Kind })
	return sequence.ToArray(sorted, func(d Descriptor) models.Kind { return d.Kind })
}
