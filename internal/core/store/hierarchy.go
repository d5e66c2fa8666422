package store

import (
	"github.com/pkg/errors"

	"github.com/zeusync/entitystore/internal/core/models"
	"github.com/zeusync/entitystore/internal/core/registry"
)

// ChildrenOf returns the direct children of id in creation order.
func (s *Store) ChildrenOf(id models.EntityID) ([]models.EntityID, error) {
	rec, ok := s.entities[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "entity %s", id)
	}
	out := make([]models.EntityID, len(rec.children))
	copy(out, rec.children)
	return out, nil
}

// ParentOf returns id's parent; ok is false for roots.
func (s *Store) ParentOf(id models.EntityID) (parent models.EntityID, ok bool, err error) {
	rec, live := s.entities[id]
	if !live {
		return models.NilEntity, false, errors.Wrapf(ErrNotFound, "entity %s", id)
	}
	return rec.parent, !rec.parent.IsNil(), nil
}

// removeEntity detaches id from its parent, removes its children depth
// first, then releases its own components. Every removed id is recorded in
// removed when it is non-nil. It returns the number of entities removed.
func (s *Store) removeEntity(id models.EntityID, removed map[models.EntityID]struct{}) int {
	rec, ok := s.entities[id]
	if !ok {
		return 0
	}

	if p, ok := s.entities[rec.parent]; ok {
		p.children = without(p.children, id)
	}

	count := 1
	children := append([]models.EntityID(nil), rec.children...)
	for _, child := range children {
		count += s.removeEntity(child, removed)
	}

	rec.kinds.Each(func(kid registry.ID) {
		delete(s.tables[kid], id)
	})
	delete(s.entities, id)
	if removed != nil {
		removed[id] = struct{}{}
	}
	s.queries.invalidate()
	s.notifyEntityRemoved(id, rec.kinds)
	return count
}

func without(ids []models.EntityID, id models.EntityID) []models.EntityID {
	for i, candidate := range ids {
		if candidate == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
