package store

import (
	"github.com/zeusync/entitystore/internal/core/models"
	"github.com/zeusync/entitystore/internal/core/registry"
)

// Observer is notified synchronously, inside the mutating call, after the
// store has applied the change. kinds is the entity's kind set after the
// change (before release, for EntityRemoved) and must not be retained.
type Observer interface {
	ComponentAdded(id models.EntityID, kind registry.ID, kinds registry.KindSet)
	ComponentRemoved(id models.EntityID, kind registry.ID, kinds registry.KindSet)
	EntityRemoved(id models.EntityID, kinds registry.KindSet)
	Cleared()
}

// Observe registers o for all future mutations.
func (s *Store) Observe(o Observer) {
	s.observers = append(s.observers, o)
}

func (s *Store) notifyAdded(id models.EntityID, kind registry.ID, kinds registry.KindSet) {
	for _, o := range s.observers {
		o.ComponentAdded(id, kind, kinds)
	}
}

func (s *Store) notifyRemoved(id models.EntityID, kind registry.ID, kinds registry.KindSet) {
	for _, o := range s.observers {
		o.ComponentRemoved(id, kind, kinds)
	}
}

func (s *Store) notifyEntityRemoved(id models.EntityID, kinds registry.KindSet) {
	for _, o := range s.observers {
		o.EntityRemoved(id, kinds)
	}
}

func (s *Store) notifyCleared() {
	for _, o := range s.observers {
		o.Cleared()
	}
}
