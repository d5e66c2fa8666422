package inspect

import (
	"fmt"
	"math"
	"time"

	"github.com/zeusync/entitystore/internal/core/models"
	"github.com/zeusync/entitystore/internal/core/system"
	"github.com/zeusync/entitystore/pkg/sequence"
)

// SystemName is the name of the global system installed by Register.
const SystemName = "inspect"

// Snapshot is the state published to inspector clients.
type Snapshot struct {
	Tick       uint64         `json:"tick"`
	Entities   int            `json:"entities"`
	Kinds      map[string]int `json:"kinds"`
	Systems    []SystemStat   `json:"systems"`
	Blackboard map[string]any `json:"blackboard"`
}

type SystemStat struct {
	Name     string `json:"name"`
	Group    int    `json:"group"`
	Matched  int    `json:"matched"`
	Runs     uint64 `json:"runs"`
	LastTook string `json:"last_took"`
}

// Take builds a snapshot of s. It reads the store, so it must run on the
// tick thread.
func Take(s *system.Scheduler) Snapshot {
	st := s.Store()
	kinds := sequence.ToMap(sequence.From(st.Registry().Kinds()),
		func(kind models.Kind) string { return string(kind) },
		func(kind models.Kind) int {
			ids, err := st.EntitiesWith(kind)
			if err != nil {
				return 0
			}
			return len(ids)
		},
	)

	return Snapshot{
		Tick:     s.Ticks(),
		Entities: st.Len(),
		Kinds:    kinds,
		Systems: sequence.ToArray(sequence.From(s.Stats()), func(stat system.Stat) SystemStat {
			return SystemStat{
				Name:     stat.Name,
				Group:    stat.Group,
				Matched:  stat.Matched,
				Runs:     stat.Runs,
				LastTook: stat.Last.String(),
			}
		}),
		Blackboard: s.Blackboard().Snapshot(),
	}
}

// Publisher receives snapshots from the tick thread. Publish must not block.
type Publisher interface {
	Publish(Snapshot) bool
}

// Register installs a global system that runs after every other group and
// publishes a snapshot every `every` ticks.
func Register(s *system.Scheduler, pub Publisher, every int) error {
	if every <= 0 {
		return fmt.Errorf("inspect: every must be positive, got %d: %w", every, system.ErrInvalidSystem)
	}
	count := 0
	return s.Register(system.Spec{
		Name:  SystemName,
		Group: math.MaxInt32,
		Global: func(_ time.Duration, _ *system.Blackboard) error {
			count++
			if count%every != 0 {
				return nil
			}
			pub.Publish(Take(s))
			return nil
		},
	})
}
