package store

import (
	"github.com/pkg/errors"

	"github.com/zeusync/entitystore/internal/core/models"
)

// Entity is a convenience handle pairing an id with its store. It holds no
// state of its own; every call goes through the store and fails with
// ErrNotFound once the entity is gone.
type Entity struct {
	store *Store
	id    models.EntityID
}

// Entity returns a handle for a live entity.
func (s *Store) Entity(id models.EntityID) (Entity, error) {
	if !s.Alive(id) {
		return Entity{}, errors.Wrapf(ErrNotFound, "entity %s", id)
	}
	return Entity{store: s, id: id}, nil
}

// Spawn creates an entity and returns its handle.
func (s *Store) Spawn(components ...models.Component) (Entity, error) {
	id, err := s.CreateEntity(WithComponents(components...))
	if err != nil && id.IsNil() {
		return Entity{}, err
	}
	return Entity{store: s, id: id}, err
}

func (e Entity) ID() models.EntityID { return e.id }

func (e Entity) String() string { return "Entity(" + e.id.String() + ")" }

func (e Entity) Alive() bool { return e.store != nil && e.store.Alive(e.id) }

// AddChild creates a child entity under e.
func (e Entity) AddChild(components ...models.Component) (Entity, error) {
	id, err := e.store.CreateEntity(WithParent(e.id), WithComponents(components...))
	if err != nil && id.IsNil() {
		return Entity{}, err
	}
	return Entity{store: e.store, id: id}, err
}

func (e Entity) Children() ([]Entity, error) {
	ids, err := e.store.ChildrenOf(e.id)
	if err != nil {
		return nil, err
	}
	out := make([]Entity, len(ids))
	for i, id := range ids {
		out[i] = Entity{store: e.store, id: id}
	}
	return out, nil
}

// Parent returns the parent handle; ok is false for roots.
func (e Entity) Parent() (parent Entity, ok bool, err error) {
	id, ok, err := e.store.ParentOf(e.id)
	if err != nil || !ok {
		return Entity{}, ok, err
	}
	return Entity{store: e.store, id: id}, true, nil
}

func (e Entity) Add(components ...models.Component) error {
	return e.store.AddComponents(e.id, components...)
}

func (e Entity) Get(kinds ...models.Kind) ([]models.Component, error) {
	return e.store.GetComponents(e.id, kinds...)
}

func (e Entity) Component(kind models.Kind) (models.Component, error) {
	return e.store.GetComponent(e.id, kind)
}

// RemoveComponents removes kinds now, or at the next Flush when deferred.
func (e Entity) RemoveComponents(deferred bool, kinds ...models.Kind) error {
	if deferred {
		return e.store.DeferRemoveComponents(e.id, kinds...)
	}
	return e.store.RemoveComponents(e.id, kinds...)
}

// Remove deletes the entity now, or at the next Flush when deferred.
func (e Entity) Remove(deferred bool) error {
	if deferred {
		return e.store.DeferRemoveEntity(e.id)
	}
	return e.store.RemoveEntity(e.id)
}
