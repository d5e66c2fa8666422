package system

import (
	"context"
	"time"

	"github.com/zeusync/entitystore/internal/core/observability/log"
)

// Clock abstracts wall time for the run loop.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Run ticks until a system calls Blackboard.Stop, ctx ends, or a system or
// flush fails. Each iteration measures the time since the previous one,
// runs a tick with it and flushes deferred removals. A stop request is
// honored after the flush and makes Run return nil.
func (s *Scheduler) Run(ctx context.Context) error {
	s.bb.resetStop()
	s.logger.Info("run loop started",
		log.Duration("target_tick", s.targetTick),
		log.Bool("fixed_step", s.fixedStep),
		log.Int("systems", len(s.ordered)),
	)

	last := s.clock.Now()
	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("run loop cancelled", log.Uint64("ticks", s.ticks), log.Error(err))
			return err
		}

		now := s.clock.Now()
		dt := now.Sub(last)
		last = now

		if err := s.RunTick(dt); err != nil {
			return err
		}
		if err := s.Flush(); err != nil {
			s.logger.Error("flush failed", log.Uint64("tick", s.ticks), log.Error(err))
			return err
		}

		if s.bb.StopRequested() {
			s.logger.Info("run loop stopped", log.Uint64("ticks", s.ticks))
			return nil
		}

		if s.fixedStep {
			if spent := s.clock.Now().Sub(now); spent < s.targetTick {
				s.clock.Sleep(s.targetTick - spent)
			}
		}
	}
}
