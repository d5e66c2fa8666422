package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/entitystore/internal/core/config"
	"github.com/zeusync/entitystore/internal/core/observability/log"
	"github.com/zeusync/entitystore/internal/core/store"
	"github.com/zeusync/entitystore/internal/core/system"
	"github.com/zeusync/entitystore/internal/core/systems/physics"
	"github.com/zeusync/entitystore/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	ticks := flag.Int("ticks", 0, "stop after this many ticks (0 runs until interrupted)")
	particles := flag.Int("particles", 16, "number of particles per emitter")
	flag.Parse()

	if err := run(*configPath, *ticks, *particles); err != nil {
		fmt.Fprintln(os.Stderr, "sandbox:", err)
		os.Exit(1)
	}
}

func run(configPath string, ticks, particles int) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	engine, err := injector.InitializeEngine(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()
	logger := engine.Logger

	if err = spawnEmitter(engine.Store, particles); err != nil {
		return err
	}
	if err = physics.Register(engine.Scheduler, 0); err != nil {
		return err
	}
	if err = registerTickLimit(engine.Scheduler, ticks); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	if engine.Hub != nil {
		srv := &http.Server{Addr: cfg.Inspector.Addr, Handler: engine.Hub, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("inspector listening", log.String("addr", cfg.Inspector.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			return engine.Hub.Run(runCtx)
		})
		g.Go(func() error {
			<-runCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer cancelRun()
		err := engine.Scheduler.Run(runCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err = g.Wait()
	logger.Info("sandbox finished",
		log.Uint64("ticks", engine.Scheduler.Ticks()),
		log.Int("entities", engine.Store.Len()),
	)
	return err
}

// spawnEmitter creates an emitter entity with particles fanned out around it
// as children.
func spawnEmitter(st *store.Store, particles int) error {
	emitter, err := st.Spawn(&physics.Transform2D{})
	if err != nil {
		return err
	}
	for i := 0; i < particles; i++ {
		angle := 2 * math.Pi * float64(i) / float64(particles)
		dir := physics.Vec2{X: math.Cos(angle), Y: math.Sin(angle)}
		_, err = emitter.AddChild(
			&physics.Transform2D{Rotation: angle},
			&physics.Rigidbody2D{Velocity: dir.Scale(2), Acceleration: physics.Vec2{Y: -9.8}},
			&physics.BoxCollider2D{XOffset: -0.5, YOffset: -0.5, Width: 1, Height: 1},
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// registerTickLimit stops the run loop after limit ticks and despawns
// particles that fell below the floor.
func registerTickLimit(s *system.Scheduler, limit int) error {
	const floor = -100.0
	err := system.Register1(s, "despawn", 1, func(_ time.Duration, _ *system.Blackboard, rows []system.Row1[*physics.Transform2D]) error {
		for _, r := range rows {
			if r.First.Position.Y < floor {
				if err := s.Store().DeferRemoveEntity(r.Entity); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.Register(system.Spec{
		Name:  "tick_limit",
		Group: 2,
		Global: func(_ time.Duration, bb *system.Blackboard) error {
			n, _ := bb.GetInt("ticks")
			n++
			bb.Set("ticks", n)
			if limit > 0 && n >= limit {
				bb.Stop()
			}
			return nil
		},
	})
}
