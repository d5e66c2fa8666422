package system

import (
	"errors"
	"fmt"
	"time"

	"github.com/zeusync/entitystore/internal/core/models"
	"github.com/zeusync/entitystore/internal/core/registry"
)

var (
	ErrDuplicate     = registry.ErrDuplicate
	ErrUnknownKind   = registry.ErrUnknownKind
	ErrInvalidSystem = errors.New("invalid system")
	ErrUnknownSystem = errors.New("unknown system")
)

// Match is one entity of a system's match cache, with its components laid
// out in the order of the system's target kinds. Matches handed to a system
// are only valid for the duration of that call.
type Match struct {
	Entity     models.EntityID
	Components []models.Component
}

// Func is the body of a system that targets component kinds.
type Func func(dt time.Duration, bb *Blackboard, matches []Match) error

// GlobalFunc is the body of a system with no target kinds. It runs once per
// tick and only sees the blackboard.
type GlobalFunc func(dt time.Duration, bb *Blackboard) error

// Spec describes a system registration. Exactly one of Fn or Global must be
// set; Fn requires at least one kind, Global forbids them.
type Spec struct {
	Name   string
	Group  int
	Kinds  []models.Kind
	Fn     Func
	Global GlobalFunc
}

func (s Spec) validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("system name is required: %w", ErrInvalidSystem)
	case s.Fn != nil && s.Global != nil:
		return fmt.Errorf("system %q sets both Fn and Global: %w", s.Name, ErrInvalidSystem)
	case s.Fn == nil && s.Global == nil:
		return fmt.Errorf("system %q has no body: %w", s.Name, ErrInvalidSystem)
	case s.Fn != nil && len(s.Kinds) == 0:
		return fmt.Errorf("system %q targets no kinds, use Global: %w", s.Name, ErrInvalidSystem)
	case s.Global != nil && len(s.Kinds) > 0:
		return fmt.Errorf("global system %q cannot target kinds: %w", s.Name, ErrInvalidSystem)
	}
	return nil
}
