package physics

import (
	"github.com/zeusync/entitystore/internal/core/models"
	"github.com/zeusync/entitystore/internal/core/registry"
)

const (
	KindTransform2D   models.Kind = "transform2d"
	KindRigidbody2D   models.Kind = "rigidbody2d"
	KindBoxCollider2D models.Kind = "boxcollider2d"
)

// Transform2D places an entity in the plane. Rotation is in radians.
type Transform2D struct {
	Position Vec2    `json:"position"`
	Rotation float64 `json:"rotation"`
}

func (*Transform2D) Kind() models.Kind { return KindTransform2D }

// Rigidbody2D carries the motion state integrated by the physics system.
type Rigidbody2D struct {
	Velocity     Vec2 `json:"velocity"`
	Acceleration Vec2 `json:"acceleration"`
}

func (*Rigidbody2D) Kind() models.Kind { return KindRigidbody2D }

// BoxCollider2D is an axis aligned box relative to the entity's position.
type BoxCollider2D struct {
	XOffset float64 `json:"x_offset"`
	YOffset float64 `json:"y_offset"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

func (*BoxCollider2D) Kind() models.Kind { return KindBoxCollider2D }

// Bounds returns the collider's min and max corners for a transform.
func (b *BoxCollider2D) Bounds(t *Transform2D) (lo, hi Vec2) {
	lo = t.Position.Add(Vec2{X: b.XOffset, Y: b.YOffset})
	return lo, lo.Add(Vec2{X: b.Width, Y: b.Height})
}

// RegisterKinds adds the physics component kinds to reg.
func RegisterKinds(reg *registry.Registry) error {
	if _, err := registry.RegisterType[Transform2D](reg); err != nil {
		return err
	}
	if _, err := registry.RegisterType[Rigidbody2D](reg); err != nil {
		return err
	}
	if _, err := registry.RegisterType[BoxCollider2D](reg); err != nil {
		return err
	}
	return nil
}
