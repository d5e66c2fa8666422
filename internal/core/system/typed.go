package system

import (
	"fmt"
	"time"

	"github.com/zeusync/entitystore/internal/core/models"
)

type Row1[A models.Component] struct {
	Entity models.EntityID
	First  A
}

type Row2[A, B models.Component] struct {
	Entity models.EntityID
	First  A
	Second B
}

type Row3[A, B, C models.Component] struct {
	Entity models.EntityID
	First  A
	Second B
	Third  C
}

func kindOf[T models.Component]() models.Kind {
	var zero T
	return zero.Kind()
}

func cast[T models.Component](m Match, i int) (T, error) {
	c, ok := m.Components[i].(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("entity %s: component %d is %T, want %T", m.Entity, i, m.Components[i], zero)
	}
	return c, nil
}

// Register1 registers a system over a single kind, taken from A's zero value.
// Rows are rebuilt for every call and must not be retained.
func Register1[A models.Component](s *Scheduler, name string, group int, fn func(dt time.Duration, bb *Blackboard, rows []Row1[A]) error) error {
	var rows []Row1[A]
	return s.Register(Spec{
		Name:  name,
		Group: group,
		Kinds: []models.Kind{kindOf[A]()},
		Fn: func(dt time.Duration, bb *Blackboard, matches []Match) error {
			rows = rows[:0]
			for _, m := range matches {
				a, err := cast[A](m, 0)
				if err != nil {
					return err
				}
				rows = append(rows, Row1[A]{Entity: m.Entity, First: a})
			}
			return fn(dt, bb, rows)
		},
	})
}

func Register2[A, B models.Component](s *Scheduler, name string, group int, fn func(dt time.Duration, bb *Blackboard, rows []Row2[A, B]) error) error {
	var rows []Row2[A, B]
	return s.Register(Spec{
		Name:  name,
		Group: group,
		Kinds: []models.Kind{kindOf[A](), kindOf[B]()},
		Fn: func(dt time.Duration, bb *Blackboard, matches []Match) error {
			rows = rows[:0]
			for _, m := range matches {
				a, err := cast[A](m, 0)
				if err != nil {
					return err
				}
				b, err := cast[B](m, 1)
				if err != nil {
					return err
				}
				rows = append(rows, Row2[A, B]{Entity: m.Entity, First: a, Second: b})
			}
			return fn(dt, bb, rows)
		},
	})
}

func Register3[A, B, C models.Component](s *Scheduler, name string, group int, fn func(dt time.Duration, bb *Blackboard, rows []Row3[A, B, C]) error) error {
	var rows []Row3[A, B, C]
	return s.Register(Spec{
		Name:  name,
		Group: group,
		Kinds: []models.Kind{kindOf[A](), kindOf[B](), kindOf[C]()},
		Fn: func(dt time.Duration, bb *Blackboard, matches []Match) error {
			rows = rows[:0]
			for _, m := range matches {
				a, err := cast[A](m, 0)
				if err != nil {
					return err
				}
				b, err := cast[B](m, 1)
				if err != nil {
					return err
				}
				c, err := cast[C](m, 2)
				if err != nil {
					return err
				}
				rows = append(rows, Row3[A, B, C]{Entity: m.Entity, First: a, Second: b, Third: c})
			}
			return fn(dt, bb, rows)
		},
	})
}
