package store

import (
	"github.com/pkg/errors"

	"github.com/zeusync/entitystore/internal/core/models"
	"github.com/zeusync/entitystore/internal/core/observability/log"
	"github.com/zeusync/entitystore/internal/core/registry"
)

type componentRemoval struct {
	id   models.EntityID
	kind registry.ID
}

// deferred holds removals requested for later application. Nothing queued
// here is observable until Flush.
type deferred struct {
	entities   []models.EntityID
	components []componentRemoval
}

func (d *deferred) reset() {
	d.entities = d.entities[:0]
	d.components = d.components[:0]
}

// DeferRemoveEntity queues id for removal at the next Flush. The cascade to
// descendants happens at flush time.
func (s *Store) DeferRemoveEntity(id models.EntityID) error {
	if _, ok := s.entities[id]; !ok {
		return errors.Wrapf(ErrNotFound, "entity %s", id)
	}
	s.pending.entities = append(s.pending.entities, id)
	return nil
}

// DeferRemoveComponents validates like RemoveComponents, then queues the
// removals for the next Flush.
func (s *Store) DeferRemoveComponents(id models.EntityID, kinds ...models.Kind) error {
	kids, err := s.validateRemoval(id, kinds)
	if err != nil {
		return err
	}
	for _, kid := range kids {
		s.pending.components = append(s.pending.components, componentRemoval{id: id, kind: kid})
	}
	return nil
}

// Pending reports the number of queued entity and component removals.
func (s *Store) Pending() (entities, components int) {
	return len(s.pending.entities), len(s.pending.components)
}

// Flush applies queued removals: entity removals first, then component
// removals. An entry whose entity was already removed during this flush,
// directly or through a cascade, is skipped. Any other failure aborts the
// flush and is returned; the remaining entries are discarded either way.
func (s *Store) Flush() error {
	if len(s.pending.entities) == 0 && len(s.pending.components) == 0 {
		return nil
	}

	entities := append([]models.EntityID(nil), s.pending.entities...)
	components := append([]componentRemoval(nil), s.pending.components...)
	s.pending.reset()

	removed := make(map[models.EntityID]struct{})
	for _, id := range entities {
		if _, gone := removed[id]; gone {
			continue
		}
		if _, ok := s.entities[id]; !ok {
			return errors.Wrapf(ErrNotFound, "flush: entity %s", id)
		}
		s.removeEntity(id, removed)
	}

	for _, entry := range components {
		if _, gone := removed[entry.id]; gone {
			continue
		}
		rec, ok := s.entities[entry.id]
		if !ok {
			return errors.Wrapf(ErrNotFound, "flush: entity %s", entry.id)
		}
		if !rec.kinds.Has(entry.kind) {
			return errors.Wrapf(ErrNotFound, "flush: entity %s has no kind id %d", entry.id, entry.kind)
		}
		s.removeComponent(entry.id, entry.kind)
	}

	s.logger.Debug("deferred removals applied",
		log.Int("entities", len(removed)),
		log.Int("components", len(components)),
	)
	return nil
}

// ApplyRemovals is an alias of Flush.
func (s *Store) ApplyRemovals() error {
	return s.Flush()
}
