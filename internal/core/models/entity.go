package models

import (
	"github.com/google/uuid"
)

// EntityID is an opaque, globally unique entity token. It carries no data;
// everything about an entity lives in the store.
type EntityID uuid.UUID

// NilEntity is the zero EntityID. It never names a live entity and is used
// as "no parent" for roots.
var NilEntity EntityID

// NewEntityID returns a fresh random id.
func NewEntityID() EntityID {
	return EntityID(uuid.New())
}

// ParseEntityID parses the canonical textual form produced by String.
func ParseEntityID(s string) (EntityID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return NilEntity, err
	}
	return EntityID(id), nil
}

func (id EntityID) String() string {
	return uuid.UUID(id).String()
}

func (id EntityID) IsNil() bool {
	return id == NilEntity
}

func (id EntityID) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

func (id *EntityID) UnmarshalText(text []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(text)
}

// Kind is the stable identifier of a component shape.
type Kind string

// Component is application data attached to an entity. Kind must return a
// constant: generic helpers call it on zero values to learn the kind of T.
type Component interface {
	Kind() Kind
}
