package physics

import (
	"time"

	"github.com/zeusync/entitystore/internal/core/system"
)

// SystemName is the name the integrator registers under.
const SystemName = "basic_physics2d"

// Register installs the integrator in group. Each tick it applies
// velocity += acceleration*dt, then position += velocity*dt, so the position
// step sees the updated velocity.
func Register(s *system.Scheduler, group int) error {
	return system.Register2(s, SystemName, group, Integrate)
}

// Integrate advances every row by dt.
func Integrate(dt time.Duration, _ *system.Blackboard, rows []system.Row2[*Transform2D, *Rigidbody2D]) error {
	step := dt.Seconds()
	for _, r := range rows {
		body := r.Second
		body.Velocity = body.Velocity.Add(body.Acceleration.Scale(step))
		r.First.Position = r.First.Position.Add(body.Velocity.Scale(step))
	}
	return nil
}
