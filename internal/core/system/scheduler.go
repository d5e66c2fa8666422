package system

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/zeusync/entitystore/internal/core/models"
	"github.com/zeusync/entitystore/internal/core/observability/log"
	"github.com/zeusync/entitystore/internal/core/registry"
	"github.com/zeusync/entitystore/internal/core/store"
	"github.com/zeusync/entitystore/pkg/sequence"
)

// DefaultTargetTick is the reference tick length used for fixed-step pacing.
const DefaultTargetTick = time.Second / 60

// Scheduler dispatches registered systems once per tick, ordered by group and
// then by registration order. It observes its store and keeps every system's
// match cache current as entities and components come and go.
type Scheduler struct {
	store  *store.Store
	logger log.Log
	clock  Clock
	bb     *Blackboard

	targetTick time.Duration
	fixedStep  bool

	byName  map[string]*entry
	byKind  map[registry.ID][]*entry
	ordered []*entry
	ticks   uint64
}

type entry struct {
	name   string
	group  int
	order  int
	kinds  []models.Kind
	kids   []registry.ID
	mask   registry.KindSet
	fn     Func
	global GlobalFunc
	cache  matchCache

	// per-tick scratch, reused between ticks
	snapshot   []models.EntityID
	matches    []Match
	components []models.Component

	runs uint64
	last time.Duration
}

// matchCache holds the entities satisfying a system, in the order they came
// to satisfy it.
type matchCache struct {
	ids     []models.EntityID
	members map[models.EntityID]struct{}
}

func (c *matchCache) reset(ids []models.EntityID) {
	c.ids = ids
	c.members = make(map[models.EntityID]struct{}, len(ids))
	for _, id := range ids {
		c.members[id] = struct{}{}
	}
}

func (c *matchCache) add(id models.EntityID) {
	if _, ok := c.members[id]; ok {
		return
	}
	c.members[id] = struct{}{}
	c.ids = append(c.ids, id)
}

func (c *matchCache) remove(id models.EntityID) {
	if _, ok := c.members[id]; !ok {
		return
	}
	delete(c.members, id)
	if i := slices.Index(c.ids, id); i >= 0 {
		c.ids = slices.Delete(c.ids, i, i+1)
	}
}

type Option func(*Scheduler)

func WithLogger(logger log.Log) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTargetTick sets the reference tick length. Non-positive values keep the
// default.
func WithTargetTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.targetTick = d
		}
	}
}

func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithFixedStep makes Run sleep away whatever is left of the target tick
// after each iteration.
func WithFixedStep(enabled bool) Option {
	return func(s *Scheduler) {
		s.fixedStep = enabled
	}
}

// NewScheduler creates a scheduler bound to st and subscribes it to st's
// mutations.
func NewScheduler(st *store.Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:      st,
		logger:     log.NewNop(),
		clock:      realClock{},
		bb:         NewBlackboard(),
		targetTick: DefaultTargetTick,
		byName:     make(map[string]*entry),
		byKind:     make(map[registry.ID][]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	st.Observe(s)
	return s
}

func (s *Scheduler) Store() *store.Store { return s.store }

func (s *Scheduler) Blackboard() *Blackboard { return s.bb }

func (s *Scheduler) TargetTick() time.Duration { return s.targetTick }

// Ticks reports how many ticks completed without error.
func (s *Scheduler) Ticks() uint64 { return s.ticks }

// Register adds a system. Its match cache is computed right away against the
// live entities, in creation order.
func (s *Scheduler) Register(spec Spec) error {
	if err := spec.validate(); err != nil {
		return err
	}
	if _, ok := s.byName[spec.Name]; ok {
		return fmt.Errorf("system %q: %w", spec.Name, ErrDuplicate)
	}

	reg := s.store.Registry()
	kids := make([]registry.ID, 0, len(spec.Kinds))
	var mask registry.KindSet
	for _, kind := range spec.Kinds {
		kid, err := reg.Lookup(kind)
		if err != nil {
			return fmt.Errorf("system %q: %w", spec.Name, err)
		}
		kids = append(kids, kid)
		mask = mask.Set(kid)
	}

	e := &entry{
		name:   spec.Name,
		group:  spec.Group,
		order:  len(s.ordered),
		kinds:  slices.Clone(spec.Kinds),
		kids:   kids,
		mask:   mask,
		fn:     spec.Fn,
		global: spec.Global,
	}
	if e.global == nil {
		e.cache.reset(s.store.Matching(mask))
		mask.Each(func(kid registry.ID) {
			s.byKind[kid] = append(s.byKind[kid], e)
		})
	}

	// A tick in progress keeps iterating the previous slice, so a system
	// registered from inside a tick first runs on the next one.
	ordered := append(slices.Clone(s.ordered), e)
	slices.SortStableFunc(ordered, func(a, b *entry) int {
		if c := cmp.Compare(a.group, b.group); c != 0 {
			return c
		}
		return cmp.Compare(a.order, b.order)
	})
	s.byName[e.name] = e
	s.ordered = ordered

	s.logger.Info("system registered",
		log.String("system", e.name),
		log.Int("group", e.group),
		log.Int("kinds", len(e.kinds)),
		log.Int("matched", len(e.cache.ids)),
	)
	return nil
}

// Systems lists system names in execution order.
func (s *Scheduler) Systems() []string {
	return sequence.ToArray(sequence.From(s.ordered), func(e *entry) string { return e.name })
}

// Matches returns a copy of a system's match cache. Global systems have an
// empty one.
func (s *Scheduler) Matches(name string) ([]models.EntityID, error) {
	e, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("system %q: %w", name, ErrUnknownSystem)
	}
	return slices.Clone(e.cache.ids), nil
}

// Stat is a per-system summary for diagnostics.
type Stat struct {
	Name    string        `json:"name"`
	Group   int           `json:"group"`
	Matched int           `json:"matched"`
	Runs    uint64        `json:"runs"`
	Last    time.Duration `json:"last"`
}

// Stats reports every system in execution order.
func (s *Scheduler) Stats() []Stat {
	return sequence.ToArray(sequence.From(s.ordered), func(e *entry) Stat {
		return Stat{Name: e.name, Group: e.group, Matched: len(e.cache.ids), Runs: e.runs, Last: e.last}
	})
}

// RunTick runs every system once with dt. The first failing system aborts the
// tick and its error is returned.
func (s *Scheduler) RunTick(dt time.Duration) error {
	systems := s.ordered
	for _, e := range systems {
		start := s.clock.Now()
		err := s.dispatch(e, dt)
		e.runs++
		e.last = s.clock.Now().Sub(start)
		if err != nil {
			s.logger.Error("system failed",
				log.String("system", e.name),
				log.Uint64("tick", s.ticks),
				log.Error(err),
			)
			return fmt.Errorf("system %q: %w", e.name, err)
		}
	}
	s.ticks++
	return nil
}

func (s *Scheduler) dispatch(e *entry, dt time.Duration) error {
	if e.global != nil {
		return e.global(dt, s.bb)
	}

	// The system may mutate the store while it runs; it sees the entities
	// that matched when it started.
	e.snapshot = append(e.snapshot[:0], e.cache.ids...)

	width := len(e.kids)
	e.components = e.components[:0]
	for _, id := range e.snapshot {
		var err error
		e.components, err = s.store.ComponentsByID(id, e.kids, e.components)
		if err != nil {
			return err
		}
	}

	e.matches = e.matches[:0]
	for i, id := range e.snapshot {
		lo := i * width
		e.matches = append(e.matches, Match{
			Entity:     id,
			Components: e.components[lo : lo+width : lo+width],
		})
	}
	err := e.fn(dt, s.bb, e.matches)
	clear(e.components)
	return err
}

// Flush applies the store's deferred removals.
func (s *Scheduler) Flush() error {
	return s.store.Flush()
}

func (s *Scheduler) ComponentAdded(id models.EntityID, kind registry.ID, kinds registry.KindSet) {
	for _, e := range s.byKind[kind] {
		if kinds.Contains(e.mask) {
			e.cache.add(id)
		}
	}
}

func (s *Scheduler) ComponentRemoved(id models.EntityID, kind registry.ID, _ registry.KindSet) {
	for _, e := range s.byKind[kind] {
		e.cache.remove(id)
	}
}

func (s *Scheduler) EntityRemoved(id models.EntityID, kinds registry.KindSet) {
	kinds.Each(func(kid registry.ID) {
		for _, e := range s.byKind[kid] {
			e.cache.remove(id)
		}
	})
}

func (s *Scheduler) Cleared() {
	for _, e := range s.ordered {
		if e.global == nil {
			e.cache.reset(nil)
		}
	}
}
