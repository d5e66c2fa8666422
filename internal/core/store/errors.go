package store

import (
	"github.com/pkg/errors"

	"github.com/zeusync/entitystore/internal/core/registry"
)

var (
	// ErrNotFound covers dead or unknown entities and missing components.
	ErrNotFound = errors.New("not found")

	// ErrUnknownKind is returned for kinds that were never registered.
	ErrUnknownKind = registry.ErrUnknownKind

	// ErrDuplicate is returned for id collisions and repeated component kinds.
	ErrDuplicate = registry.ErrDuplicate

	ErrInvalidEntity    = errors.New("invalid entity id")
	ErrInvalidComponent = errors.New("invalid component")
)
