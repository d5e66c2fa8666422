package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/entitystore/internal/core/config"
	"github.com/zeusync/entitystore/internal/core/observability/log"
	"github.com/zeusync/entitystore/internal/core/registry"
	"github.com/zeusync/entitystore/internal/core/store"
	"github.com/zeusync/entitystore/internal/core/system"
	"github.com/zeusync/entitystore/internal/core/systems/physics"
	"github.com/zeusync/entitystore/internal/inspect"
)

// EngineSet builds an Engine from a config.Config.
var EngineSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideStore,
	ProvideScheduler,
	ProvideHub,
	wire.Struct(new(Engine), "*"),
)

// Engine bundles the pieces a host needs to run a simulation.
type Engine struct {
	Config    config.Config
	Logger    log.Log
	Registry  *registry.Registry
	Store     *store.Store
	Scheduler *system.Scheduler
	// Hub is nil unless the inspector is enabled.
	Hub *inspect.Hub
}

// Close flushes buffered log entries.
func (e *Engine) Close() error {
	return e.Logger.Sync()
}

// ProvideLogger validates cfg, since every other provider depends on it
// through the logger.
func ProvideLogger(cfg config.Config) (log.Log, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return log.New(cfg.LogLevel), nil
}

// ProvideRegistry returns a registry holding the physics kinds.
func ProvideRegistry() (*registry.Registry, error) {
	reg := registry.New()
	if err := physics.RegisterKinds(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func ProvideStore(cfg config.Config, reg *registry.Registry, logger log.Log) *store.Store {
	return store.New(reg,
		store.WithLogger(logger.With(log.String("component", "store"))),
		store.WithCapacity(cfg.InitialCapacity),
	)
}

func ProvideScheduler(cfg config.Config, st *store.Store, logger log.Log) *system.Scheduler {
	return system.NewScheduler(st,
		system.WithLogger(logger.With(log.String("component", "scheduler"))),
		system.WithTargetTick(cfg.TargetTick),
		system.WithFixedStep(cfg.FixedStep),
	)
}

// ProvideHub creates the inspector hub and registers its snapshot system
// when the inspector is enabled.
func ProvideHub(cfg config.Config, sched *system.Scheduler, logger log.Log) (*inspect.Hub, error) {
	if !cfg.Inspector.Enabled {
		return nil, nil
	}
	hub := inspect.NewHub(logger)
	if err := inspect.Register(sched, hub, cfg.Inspector.Every); err != nil {
		return nil, err
	}
	return hub, nil
}
