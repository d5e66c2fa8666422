package store

import (
	"github.com/pkg/errors"

	"github.com/zeusync/entitystore/internal/core/models"
	"github.com/zeusync/entitystore/internal/core/observability/log"
	"github.com/zeusync/entitystore/internal/core/registry"
	"github.com/zeusync/entitystore/pkg/sequence"
)

type record struct {
	kinds    registry.KindSet
	seq      uint64
	parent   models.EntityID
	children []models.EntityID
}

// Store owns every entity and component. It keeps per-kind component tables,
// the parent/child index, the ad hoc query cache and the deferred removal
// buffer consistent with each other, and notifies observers (the scheduler's
// match caches) on every structural change.
//
// Store is not safe for concurrent use. All mutation is expected to happen on
// one goroutine, normally the one driving the tick loop.
type Store struct {
	reg    *registry.Registry
	logger log.Log

	entities map[models.EntityID]*record
	tables   map[registry.ID]map[models.EntityID]models.Component
	nextSeq  uint64

	queries   *queryCache
	pending   deferred
	observers []Observer
}

type Option func(*Store)

func WithLogger(logger log.Log) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCapacity pre-sizes the entity index.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.entities = make(map[models.EntityID]*record, n)
		}
	}
}

// New creates an empty store over a populated registry.
func New(reg *registry.Registry, opts ...Option) *Store {
	s := &Store{
		reg:      reg,
		logger:   log.NewNop(),
		entities: make(map[models.EntityID]*record),
		tables:   make(map[registry.ID]map[models.EntityID]models.Component),
		queries:  newQueryCache(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Registry() *registry.Registry {
	return s.reg
}

type entityConfig struct {
	id         models.EntityID
	explicit   bool
	parent     models.EntityID
	components []models.Component
}

type EntityOption func(*entityConfig)

// WithID creates the entity under a caller-chosen id instead of a fresh one.
func WithID(id models.EntityID) EntityOption {
	return func(c *entityConfig) {
		c.id = id
		c.explicit = true
	}
}

// WithParent links the new entity under parent. Parentage cannot change later.
func WithParent(parent models.EntityID) EntityOption {
	return func(c *entityConfig) {
		c.parent = parent
	}
}

func WithComponents(components ...models.Component) EntityOption {
	return func(c *entityConfig) {
		c.components = append(c.components, components...)
	}
}

// CreateEntity allocates an entity, links it under its parent and attaches
// the initial components. Components are added one by one: if one fails, the
// entity stays live with the components added before it, and its id is
// returned alongside the error.
func (s *Store) CreateEntity(opts ...EntityOption) (models.EntityID, error) {
	var cfg entityConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.explicit {
		if cfg.id.IsNil() {
			return models.NilEntity, ErrInvalidEntity
		}
		if _, exists := s.entities[cfg.id]; exists {
			return models.NilEntity, errors.Wrapf(ErrDuplicate, "entity %s", cfg.id)
		}
	}

	var parent *record
	if !cfg.parent.IsNil() {
		p, ok := s.entities[cfg.parent]
		if !ok {
			return models.NilEntity, errors.Wrapf(ErrNotFound, "parent entity %s", cfg.parent)
		}
		parent = p
	}

	id := cfg.id
	if !cfg.explicit {
		id = models.NewEntityID()
		for s.Alive(id) {
			id = models.NewEntityID()
		}
	}

	s.nextSeq++
	s.entities[id] = &record{seq: s.nextSeq, parent: cfg.parent}
	if parent != nil {
		parent.children = append(parent.children, id)
	}
	s.queries.invalidate()

	if err := s.AddComponents(id, cfg.components...); err != nil {
		return id, err
	}
	return id, nil
}

// AddComponents attaches components to a live entity. It is not atomic: a
// failure leaves the components before it applied.
func (s *Store) AddComponents(id models.EntityID, components ...models.Component) error {
	for _, c := range components {
		if err := s.addComponent(id, c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) addComponent(id models.EntityID, c models.Component) error {
	rec, ok := s.entities[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "entity %s", id)
	}
	if c == nil {
		return errors.Wrapf(ErrInvalidComponent, "nil component for entity %s", id)
	}
	kind := c.Kind()
	kid, err := s.reg.Lookup(kind)
	if err != nil {
		return err
	}
	if rec.kinds.Has(kid) {
		return errors.Wrapf(ErrDuplicate, "entity %s already has %q", id, kind)
	}

	table, ok := s.tables[kid]
	if !ok {
		table = make(map[models.EntityID]models.Component)
		s.tables[kid] = table
	}
	table[id] = c
	rec.kinds = rec.kinds.Set(kid)
	s.queries.invalidate()
	s.notifyAdded(id, kid, rec.kinds)
	return nil
}

// GetComponent returns the component of the given kind held by id.
func (s *Store) GetComponent(id models.EntityID, kind models.Kind) (models.Component, error) {
	if _, ok := s.entities[id]; !ok {
		return nil, errors.Wrapf(ErrNotFound, "entity %s", id)
	}
	kid, err := s.reg.Lookup(kind)
	if err != nil {
		return nil, err
	}
	c, ok := s.tables[kid][id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "entity %s has no %q", id, kind)
	}
	return c, nil
}

// GetComponents returns components in the order the kinds were requested.
// With no kinds it returns every component of the entity, in no particular
// order.
func (s *Store) GetComponents(id models.EntityID, kinds ...models.Kind) ([]models.Component, error) {
	rec, ok := s.entities[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "entity %s", id)
	}

	if len(kinds) == 0 {
		out := make([]models.Component, 0, rec.kinds.Len())
		rec.kinds.Each(func(kid registry.ID) {
			out = append(out, s.tables[kid][id])
		})
		return out, nil
	}

	out := make([]models.Component, 0, len(kinds))
	for _, kind := range kinds {
		c, err := s.GetComponent(id, kind)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ComponentsByID is the allocation-free lookup used on the tick path: it
// appends the components for kids, in order, to dst.
func (s *Store) ComponentsByID(id models.EntityID, kids []registry.ID, dst []models.Component) ([]models.Component, error) {
	if _, ok := s.entities[id]; !ok {
		return dst, errors.Wrapf(ErrNotFound, "entity %s", id)
	}
	for _, kid := range kids {
		c, ok := s.tables[kid][id]
		if !ok {
			return dst, errors.Wrapf(ErrNotFound, "entity %s has no kind id %d", id, kid)
		}
		dst = append(dst, c)
	}
	return dst, nil
}

// Get is the typed accessor: it fetches the component whose kind is reported
// by T's zero value.
func Get[T models.Component](s *Store, id models.EntityID) (T, error) {
	var zero T
	c, err := s.GetComponent(id, zero.Kind())
	if err != nil {
		return zero, err
	}
	typed, ok := c.(T)
	if !ok {
		return zero, errors.Wrapf(ErrInvalidComponent, "kind %q holds %T, not %T", zero.Kind(), c, zero)
	}
	return typed, nil
}

func (s *Store) HasComponent(id models.EntityID, kind models.Kind) bool {
	rec, ok := s.entities[id]
	if !ok {
		return false
	}
	kid, err := s.reg.Lookup(kind)
	if err != nil {
		return false
	}
	return rec.kinds.Has(kid)
}

// Kinds lists the kinds id currently carries, in registration order.
func (s *Store) Kinds(id models.EntityID) ([]models.Kind, error) {
	rec, ok := s.entities[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "entity %s", id)
	}
	out := make([]models.Kind, 0, rec.kinds.Len())
	rec.kinds.Each(func(kid registry.ID) {
		d, _ := s.reg.Resolve(kid)
		out = append(out, d.Kind)
	})
	return out, nil
}

func (s *Store) Alive(id models.EntityID) bool {
	_, ok := s.entities[id]
	return ok
}

func (s *Store) Len() int {
	return len(s.entities)
}

// Entities lists live entities in creation order.
func (s *Store) Entities() []models.EntityID {
	return s.Matching(nil)
}

// Matching is the uncached ground truth: every live entity whose kind set
// contains mask, in creation order.
func (s *Store) Matching(mask registry.KindSet) []models.EntityID {
	type hit struct {
		id  models.EntityID
		rec *record
	}
	hits := sequence.FromSeq(func(yield func(hit) bool) {
		for id, rec := range s.entities {
			if !yield(hit{id: id, rec: rec}) {
				return
			}
		}
	})
	ordered := hits.
		Filter(func(h hit) bool { return h.rec.kinds.Contains(mask) }).
		Sort(func(a, b hit) bool { return a.rec.seq < b.rec.seq })
	return sequence.ToArray(ordered, func(h hit) models.EntityID { return h.id })
}

// RemoveComponents detaches kinds from id right away. Every kind is checked
// before anything is removed.
func (s *Store) RemoveComponents(id models.EntityID, kinds ...models.Kind) error {
	kids, err := s.validateRemoval(id, kinds)
	if err != nil {
		return err
	}
	for _, kid := range kids {
		if s.entities[id].kinds.Has(kid) {
			s.removeComponent(id, kid)
		}
	}
	return nil
}

func (s *Store) validateRemoval(id models.EntityID, kinds []models.Kind) ([]registry.ID, error) {
	rec, ok := s.entities[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "entity %s", id)
	}
	kids := make([]registry.ID, 0, len(kinds))
	for _, kind := range kinds {
		kid, err := s.reg.Lookup(kind)
		if err != nil {
			return nil, err
		}
		if !rec.kinds.Has(kid) {
			return nil, errors.Wrapf(ErrNotFound, "entity %s has no %q", id, kind)
		}
		kids = append(kids, kid)
	}
	return kids, nil
}

func (s *Store) removeComponent(id models.EntityID, kid registry.ID) {
	rec := s.entities[id]
	delete(s.tables[kid], id)
	rec.kinds = rec.kinds.Clear(kid)
	s.queries.invalidate()
	s.notifyRemoved(id, kid, rec.kinds)
}

// RemoveEntity deletes id and, depth first, all of its descendants.
func (s *Store) RemoveEntity(id models.EntityID) error {
	if _, ok := s.entities[id]; !ok {
		return errors.Wrapf(ErrNotFound, "entity %s", id)
	}
	removed := s.removeEntity(id, nil)
	s.logger.Debug("entity removed",
		log.Stringer("entity", id),
		log.Int("cascade", removed),
	)
	return nil
}

// Clear drops every entity, component, pending removal and cached query.
// Observers are told so they can reset their own indexes.
func (s *Store) Clear() {
	s.entities = make(map[models.EntityID]*record)
	s.tables = make(map[registry.ID]map[models.EntityID]models.Component)
	s.pending.reset()
	s.queries.invalidate()
	s.notifyCleared()
	s.logger.Debug("store cleared")
}
