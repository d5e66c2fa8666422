package store

import (
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/entitystore/internal/core/models"
	"github.com/zeusync/entitystore/internal/core/registry"
)

type position struct{ X, Y float64 }

func (*position) Kind() models.Kind { return "position" }

type velocity struct{ X, Y float64 }

func (*velocity) Kind() models.Kind { return "velocity" }

type tag struct{ Name string }

func (*tag) Kind() models.Kind { return "tag" }

type ghost struct{}

func (*ghost) Kind() models.Kind { return "ghost" }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	reg := registry.New()
	for _, kind := range []models.Kind{"position", "velocity", "tag"} {
		_, err := reg.Register(kind, nil)
		require.NoError(t, err)
	}
	return New(reg)
}

func TestStore_Components(t *testing.T) {
	t.Run("Round trip", func(t *testing.T) {
		s := newTestStore(t)
		id, err := s.CreateEntity()
		require.NoError(t, err)

		p1 := &position{X: 1}
		require.NoError(t, s.AddComponents(id, p1))
		got, err := s.GetComponent(id, "position")
		require.NoError(t, err)
		require.Same(t, p1, got)

		require.NoError(t, s.RemoveComponents(id, "position"))
		_, err = s.GetComponent(id, "position")
		require.ErrorIs(t, err, ErrNotFound)

		p2 := &position{X: 2}
		require.NoError(t, s.AddComponents(id, p2))
		got, err = s.GetComponent(id, "position")
		require.NoError(t, err)
		require.Same(t, p2, got)
	})

	t.Run("Requested order", func(t *testing.T) {
		s := newTestStore(t)
		p, v := &position{}, &velocity{}
		id, err := s.CreateEntity(WithComponents(p, v))
		require.NoError(t, err)

		got, err := s.GetComponents(id, "velocity", "position")
		require.NoError(t, err)
		require.Equal(t, []models.Component{v, p}, got)

		got, err = s.GetComponents(id, "velocity", "velocity")
		require.NoError(t, err)
		require.Equal(t, []models.Component{v, v}, got)

		all, err := s.GetComponents(id)
		require.NoError(t, err)
		require.ElementsMatch(t, []models.Component{p, v}, all)

		kinds, err := s.Kinds(id)
		require.NoError(t, err)
		require.Equal(t, []models.Kind{"position", "velocity"}, kinds)
	})

	t.Run("Typed accessor", func(t *testing.T) {
		s := newTestStore(t)
		id, err := s.CreateEntity(WithComponents(&tag{Name: "hero"}))
		require.NoError(t, err)

		tg, err := Get[*tag](s, id)
		require.NoError(t, err)
		require.Equal(t, "hero", tg.Name)

		_, err = Get[*position](s, id)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Errors", func(t *testing.T) {
		s := newTestStore(t)
		id, err := s.CreateEntity(WithComponents(&position{}))
		require.NoError(t, err)

		require.ErrorIs(t, s.AddComponents(models.NewEntityID(), &position{}), ErrNotFound)
		require.ErrorIs(t, s.AddComponents(id, &ghost{}), ErrUnknownKind)
		require.ErrorIs(t, s.AddComponents(id, &position{}), ErrDuplicate)
		require.ErrorIs(t, s.AddComponents(id, nil), ErrInvalidComponent)

		_, err = s.GetComponents(models.NewEntityID(), "position")
		require.ErrorIs(t, err, ErrNotFound)
		_, err = s.GetComponents(id, "ghost")
		require.ErrorIs(t, err, ErrUnknownKind)
		_, err = s.GetComponents(id, "velocity")
		require.ErrorIs(t, err, ErrNotFound)

		require.ErrorIs(t, s.RemoveComponents(id, "velocity"), ErrNotFound)
		require.ErrorIs(t, s.RemoveComponents(id, "ghost"), ErrUnknownKind)
		require.True(t, s.HasComponent(id, "position"))
	})

	t.Run("AddComponents is not atomic", func(t *testing.T) {
		s := newTestStore(t)
		id, err := s.CreateEntity(WithComponents(&tag{}))
		require.NoError(t, err)

		err = s.AddComponents(id, &position{}, &velocity{}, &tag{}, &ghost{})
		require.ErrorIs(t, err, ErrDuplicate)
		assert.True(t, s.HasComponent(id, "position"))
		assert.True(t, s.HasComponent(id, "velocity"))
	})

	t.Run("RemoveComponents validates before removing", func(t *testing.T) {
		s := newTestStore(t)
		id, err := s.CreateEntity(WithComponents(&position{}))
		require.NoError(t, err)

		require.ErrorIs(t, s.RemoveComponents(id, "position", "velocity"), ErrNotFound)
		require.True(t, s.HasComponent(id, "position"))
	})
}

func TestStore_Entities(t *testing.T) {
	t.Run("Explicit id", func(t *testing.T) {
		s := newTestStore(t)
		want := models.NewEntityID()
		id, err := s.CreateEntity(WithID(want))
		require.NoError(t, err)
		require.Equal(t, want, id)

		_, err = s.CreateEntity(WithID(want))
		require.ErrorIs(t, err, ErrDuplicate)

		_, err = s.CreateEntity(WithID(models.NilEntity))
		require.ErrorIs(t, err, ErrInvalidEntity)
	})

	t.Run("Partial create keeps entity", func(t *testing.T) {
		s := newTestStore(t)
		id, err := s.CreateEntity(WithComponents(&position{}, &ghost{}))
		require.ErrorIs(t, err, ErrUnknownKind)
		require.True(t, s.Alive(id))
		require.True(t, s.HasComponent(id, "position"))
	})

	t.Run("Creation order", func(t *testing.T) {
		s := newTestStore(t)
		var ids []models.EntityID
		for i := 0; i < 20; i++ {
			id, err := s.CreateEntity()
			require.NoError(t, err)
			ids = append(ids, id)
		}
		require.Equal(t, ids, s.Entities())
		require.Equal(t, 20, s.Len())
	})

	t.Run("Dead id fails", func(t *testing.T) {
		s := newTestStore(t)
		id, err := s.CreateEntity(WithComponents(&position{}))
		require.NoError(t, err)
		require.NoError(t, s.RemoveEntity(id))

		require.ErrorIs(t, s.RemoveEntity(id), ErrNotFound)
		_, err = s.GetComponents(id)
		require.ErrorIs(t, err, ErrNotFound)
		_, err = s.ChildrenOf(id)
		require.ErrorIs(t, err, ErrNotFound)
		_, _, err = s.ParentOf(id)
		require.ErrorIs(t, err, ErrNotFound)
		require.ErrorIs(t, s.AddComponents(id, &tag{}), ErrNotFound)
		_, err = s.Entity(id)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Clear", func(t *testing.T) {
		s := newTestStore(t)
		parent, err := s.CreateEntity(WithComponents(&position{}))
		require.NoError(t, err)
		_, err = s.CreateEntity(WithParent(parent), WithComponents(&position{}))
		require.NoError(t, err)
		require.NoError(t, s.DeferRemoveEntity(parent))
		_, err = s.EntitiesWith("position")
		require.NoError(t, err)

		s.Clear()
		require.Equal(t, 0, s.Len())
		ents, comps := s.Pending()
		require.Zero(t, ents)
		require.Zero(t, comps)
		ids, err := s.EntitiesWith("position")
		require.NoError(t, err)
		require.Empty(t, ids)
		require.NoError(t, s.Flush())
	})
}

func TestStore_Hierarchy(t *testing.T) {
	t.Run("Links", func(t *testing.T) {
		s := newTestStore(t)
		root, err := s.CreateEntity()
		require.NoError(t, err)
		child, err := s.CreateEntity(WithParent(root))
		require.NoError(t, err)

		children, err := s.ChildrenOf(root)
		require.NoError(t, err)
		require.Equal(t, []models.EntityID{child}, children)

		parent, ok, err := s.ParentOf(child)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, root, parent)

		_, ok, err = s.ParentOf(root)
		require.NoError(t, err)
		require.False(t, ok)

		_, err = s.CreateEntity(WithParent(models.NewEntityID()))
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Removing a child keeps the parent", func(t *testing.T) {
		s := newTestStore(t)
		root, err := s.CreateEntity()
		require.NoError(t, err)
		child, err := s.CreateEntity(WithParent(root))
		require.NoError(t, err)

		require.NoError(t, s.RemoveEntity(child))
		require.True(t, s.Alive(root))
		children, err := s.ChildrenOf(root)
		require.NoError(t, err)
		require.Empty(t, children)
	})

	t.Run("Cascade", func(t *testing.T) {
		s := newTestStore(t)
		top, err := s.CreateEntity()
		require.NoError(t, err)
		p, err := s.CreateEntity(WithParent(top), WithComponents(&position{}))
		require.NoError(t, err)
		c1, err := s.CreateEntity(WithParent(p), WithComponents(&position{}))
		require.NoError(t, err)
		c2, err := s.CreateEntity(WithParent(p))
		require.NoError(t, err)
		g, err := s.CreateEntity(WithParent(c1), WithComponents(&velocity{}))
		require.NoError(t, err)

		require.NoError(t, s.RemoveEntity(p))

		for _, id := range []models.EntityID{p, c1, c2, g} {
			require.False(t, s.Alive(id))
			_, err = s.GetComponents(id)
			require.ErrorIs(t, err, ErrNotFound)
		}
		children, err := s.ChildrenOf(top)
		require.NoError(t, err)
		require.Empty(t, children)

		ids, err := s.EntitiesWith("position")
		require.NoError(t, err)
		require.Empty(t, ids)
		require.Equal(t, 1, s.Len())
	})
}

func TestStore_Deferred(t *testing.T) {
	t.Run("Nothing changes before flush", func(t *testing.T) {
		s := newTestStore(t)
		p := &position{}
		e1, err := s.CreateEntity(WithComponents(p))
		require.NoError(t, err)
		e2, err := s.CreateEntity()
		require.NoError(t, err)

		require.NoError(t, s.DeferRemoveComponents(e1, "position"))
		require.NoError(t, s.DeferRemoveEntity(e2))

		got, err := s.GetComponent(e1, "position")
		require.NoError(t, err)
		require.Same(t, p, got)
		require.True(t, s.Alive(e2))
		ents, comps := s.Pending()
		require.Equal(t, 1, ents)
		require.Equal(t, 1, comps)

		require.NoError(t, s.ApplyRemovals())
		_, err = s.GetComponent(e1, "position")
		require.ErrorIs(t, err, ErrNotFound)
		require.False(t, s.Alive(e2))
	})

	t.Run("Idempotent with entity removal", func(t *testing.T) {
		deferred := newTestStore(t)
		immediate := newTestStore(t)

		build := func(s *Store) (models.EntityID, models.EntityID) {
			keep, err := s.CreateEntity(WithComponents(&position{}))
			require.NoError(t, err)
			drop, err := s.CreateEntity(WithComponents(&position{}, &velocity{}))
			require.NoError(t, err)
			return keep, drop
		}
		keepD, dropD := build(deferred)
		keepI, dropI := build(immediate)

		require.NoError(t, deferred.DeferRemoveComponents(dropD, "velocity"))
		require.NoError(t, deferred.DeferRemoveEntity(dropD))
		require.NoError(t, deferred.Flush())

		require.NoError(t, immediate.RemoveEntity(dropI))

		require.False(t, deferred.Alive(dropD))
		require.True(t, deferred.Alive(keepD))
		require.True(t, immediate.Alive(keepI))
		require.Equal(t, immediate.Len(), deferred.Len())

		for _, kind := range []models.Kind{"position", "velocity"} {
			gotD, err := deferred.EntitiesWith(kind)
			require.NoError(t, err)
			gotI, err := immediate.EntitiesWith(kind)
			require.NoError(t, err)
			require.Len(t, gotD, len(gotI))
		}
	})

	t.Run("Cascade covers queued descendants", func(t *testing.T) {
		s := newTestStore(t)
		parent, err := s.CreateEntity()
		require.NoError(t, err)
		child, err := s.CreateEntity(WithParent(parent), WithComponents(&tag{}))
		require.NoError(t, err)

		require.NoError(t, s.DeferRemoveComponents(child, "tag"))
		require.NoError(t, s.DeferRemoveEntity(parent))
		require.NoError(t, s.DeferRemoveEntity(child))
		require.NoError(t, s.Flush())
		require.False(t, s.Alive(child))
	})

	t.Run("Other errors propagate", func(t *testing.T) {
		s := newTestStore(t)
		id, err := s.CreateEntity(WithComponents(&tag{}))
		require.NoError(t, err)

		require.NoError(t, s.DeferRemoveComponents(id, "tag"))
		require.NoError(t, s.DeferRemoveComponents(id, "tag"))
		require.ErrorIs(t, s.Flush(), ErrNotFound)

		ents, comps := s.Pending()
		require.Zero(t, ents)
		require.Zero(t, comps)

		other, err := s.CreateEntity()
		require.NoError(t, err)
		require.NoError(t, s.DeferRemoveEntity(other))
		require.NoError(t, s.RemoveEntity(other))
		require.ErrorIs(t, s.Flush(), ErrNotFound)
	})

	t.Run("Validation happens at enqueue", func(t *testing.T) {
		s := newTestStore(t)
		id, err := s.CreateEntity()
		require.NoError(t, err)
		require.ErrorIs(t, s.DeferRemoveComponents(id, "tag"), ErrNotFound)
		require.ErrorIs(t, s.DeferRemoveComponents(id, "ghost"), ErrUnknownKind)
		require.ErrorIs(t, s.DeferRemoveEntity(models.NewEntityID()), ErrNotFound)
	})
}

func TestStore_Query(t *testing.T) {
	t.Run("Unpacked", func(t *testing.T) {
		s := newTestStore(t)
		p, v := &position{X: 1}, &velocity{X: 2}
		_, err := s.CreateEntity(WithComponents(p, v))
		require.NoError(t, err)
		_, err = s.CreateEntity(WithComponents(&position{}))
		require.NoError(t, err)

		rows, err := s.EntitiesWithUnpacked("velocity", "position")
		require.NoError(t, err)
		require.Equal(t, [][]models.Component{{v, p}}, rows)

		rows[0][0] = nil
		again, err := s.EntitiesWithUnpacked("velocity", "position")
		require.NoError(t, err)
		require.Same(t, v, again[0][0])

		_, err = s.EntitiesWith("ghost")
		require.ErrorIs(t, err, ErrUnknownKind)

		all, err := s.EntitiesWith()
		require.NoError(t, err)
		require.Len(t, all, 2)
	})

	t.Run("Warm cache", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.CreateEntity(WithComponents(&position{}))
		require.NoError(t, err)

		_, err = s.EntitiesWith("position")
		require.NoError(t, err)
		_, err = s.EntitiesWith("position")
		require.NoError(t, err)
		stats := s.QueryStats()
		require.Equal(t, uint64(1), stats.Hits)
		require.Equal(t, 1, stats.Entries)

		_, err = s.CreateEntity()
		require.NoError(t, err)
		require.Zero(t, s.QueryStats().Entries)
	})

	t.Run("Cache never changes results", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		kinds := []models.Kind{"position", "velocity", "tag"}
		tuples := [][]models.Kind{
			{}, {"position"}, {"velocity"}, {"tag"},
			{"position", "velocity"}, {"velocity", "position"}, {"position", "velocity", "tag"},
		}

		s := newTestStore(t)
		// live is kept in creation order, so filtering it gives the
		// expected result order without consulting any query path.
		var live []models.EntityID
		expected := func(tuple []models.Kind) []models.EntityID {
			var out []models.EntityID
			for _, id := range live {
				if !s.Alive(id) {
					continue
				}
				carries := true
				for _, kind := range tuple {
					if !s.HasComponent(id, kind) {
						carries = false
						break
					}
				}
				if carries {
					out = append(out, id)
				}
			}
			return out
		}

		for step := 0; step < 200; step++ {
			switch op := rng.Intn(5); {
			case op == 0 || len(live) == 0:
				id, err := s.CreateEntity()
				require.NoError(t, err)
				live = append(live, id)
			case op == 1:
				id := live[rng.Intn(len(live))]
				_ = s.AddComponents(id, newComponent(kinds[rng.Intn(len(kinds))]))
			case op == 2:
				id := live[rng.Intn(len(live))]
				_ = s.RemoveComponents(id, kinds[rng.Intn(len(kinds))])
			case op == 3:
				type queued struct {
					id   models.EntityID
					kind models.Kind
				}
				seen := make(map[queued]struct{})
				for n := rng.Intn(4); n >= 0; n-- {
					id := live[rng.Intn(len(live))]
					if rng.Intn(3) == 0 {
						require.NoError(t, s.DeferRemoveEntity(id))
						continue
					}
					kind := kinds[rng.Intn(len(kinds))]
					if _, dup := seen[queued{id, kind}]; dup || !s.HasComponent(id, kind) {
						continue
					}
					seen[queued{id, kind}] = struct{}{}
					require.NoError(t, s.DeferRemoveComponents(id, kind))
				}
				require.NoError(t, s.Flush())
				live = slices.DeleteFunc(live, func(id models.EntityID) bool { return !s.Alive(id) })
			default:
				i := rng.Intn(len(live))
				require.NoError(t, s.RemoveEntity(live[i]))
				live = append(live[:i], live[i+1:]...)
			}

			for _, tuple := range tuples {
				want := expected(tuple)
				mask, err := s.Registry().Mask(tuple...)
				require.NoError(t, err)
				scanned := s.Matching(mask)

				cold, err := s.EntitiesWith(tuple...)
				require.NoError(t, err)
				warm, err := s.EntitiesWith(tuple...)
				require.NoError(t, err)
				if len(want) == 0 {
					require.Empty(t, scanned, "step %d tuple %v", step, tuple)
					require.Empty(t, cold, "step %d tuple %v", step, tuple)
					require.Empty(t, warm, "step %d tuple %v", step, tuple)
					continue
				}
				require.Equal(t, want, scanned, "step %d tuple %v", step, tuple)
				require.Equal(t, want, cold, "step %d tuple %v", step, tuple)
				require.Equal(t, want, warm, "step %d tuple %v", step, tuple)
			}
		}
	})
}

func newComponent(kind models.Kind) models.Component {
	switch kind {
	case "position":
		return &position{}
	case "velocity":
		return &velocity{}
	default:
		return &tag{}
	}
}

type recordingObserver struct {
	added, removed, entities, cleared int
}

func (o *recordingObserver) ComponentAdded(models.EntityID, registry.ID, registry.KindSet) {
	o.added++
}

func (o *recordingObserver) ComponentRemoved(models.EntityID, registry.ID, registry.KindSet) {
	o.removed++
}

func (o *recordingObserver) EntityRemoved(models.EntityID, registry.KindSet) { o.entities++ }

func (o *recordingObserver) Cleared() { o.cleared++ }

func TestStore_Observer(t *testing.T) {
	s := newTestStore(t)
	obs := &recordingObserver{}
	s.Observe(obs)

	parent, err := s.CreateEntity(WithComponents(&position{}, &velocity{}))
	require.NoError(t, err)
	_, err = s.CreateEntity(WithParent(parent))
	require.NoError(t, err)
	require.NoError(t, s.RemoveComponents(parent, "velocity"))
	require.NoError(t, s.RemoveEntity(parent))
	s.Clear()

	require.Equal(t, 2, obs.added)
	require.Equal(t, 1, obs.removed)
	require.Equal(t, 2, obs.entities)
	require.Equal(t, 1, obs.cleared)
}

func TestEntityHandle(t *testing.T) {
	s := newTestStore(t)
	p := &position{}
	root, err := s.Spawn(p)
	require.NoError(t, err)
	require.True(t, root.Alive())

	child, err := root.AddChild(&tag{Name: "leaf"})
	require.NoError(t, err)

	parent, ok, err := child.Parent()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, root.ID(), parent.ID())

	children, err := root.Children()
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.Equal(t, child.ID(), children[0].ID())

	require.NoError(t, root.Add(&velocity{}))
	got, err := root.Get("position")
	require.NoError(t, err)
	require.Same(t, p, got[0])

	require.NoError(t, root.RemoveComponents(true, "velocity"))
	c, err := root.Component("velocity")
	require.NoError(t, err)
	require.NotNil(t, c)

	require.NoError(t, root.Remove(true))
	require.True(t, child.Alive())
	require.NoError(t, s.Flush())
	require.False(t, root.Alive())
	require.False(t, child.Alive())
	require.Contains(t, root.String(), root.ID().String())
}
