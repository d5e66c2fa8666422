package physics

import "math"

// Vec2 is a 2D vector value.
type Vec2 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }

func (v Vec2) Scale(k float64) Vec2 { return Vec2{X: v.X * k, Y: v.Y * k} }

func (v Vec2) Length() float64 { return math.Hypot(v.X, v.Y) }

// Distance computes Euclidean distance between two points.
func Distance(a, b Vec2) float64 { return b.Sub(a).Length() }
