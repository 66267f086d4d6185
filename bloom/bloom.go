package bloom

import (
	"context"

	mem "bloomfeed/adapters/memory"
	"bloomfeed/core"
	"bloomfeed/engine"
	"bloomfeed/realtime"
)

// Option configures the feed service builder.
type Option func(*config)

type config struct {
	storage  engine.Storage
	plants   engine.PlantStorage
	notifier engine.Notifier
	clock    core.Clock
	mode     engine.DispatchMode
	hub      *realtime.Hub
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithPlantStorage enables plant tracking and the health sweeper.
func WithPlantStorage(p engine.PlantStorage) Option { return func(c *config) { c.plants = p } }

// WithNotifier sets the push notifier.
func WithNotifier(n engine.Notifier) Option { return func(c *config) { c.notifier = n } }

// WithClock overrides the service clock.
func WithClock(clock core.Clock) Option { return func(c *config) { c.clock = clock } }

// WithDispatchMode selects sync or async activity dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all activities.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// New builds a configured FeedService. If not provided, defaults are used:
//   - storage: in-memory (plants included)
//   - dispatch: async
func New(opts ...Option) *engine.FeedService {
	cfg := &config{mode: engine.DispatchAsync}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		store := mem.New()
		cfg.storage = store
		if cfg.plants == nil {
			cfg.plants = store
		}
	}
	bus := engine.NewActivityBus(cfg.mode)

	svcOpts := []engine.ServiceOption{}
	if cfg.plants != nil {
		svcOpts = append(svcOpts, engine.WithPlantStorage(cfg.plants))
	}
	if cfg.notifier != nil {
		svcOpts = append(svcOpts, engine.WithNotifier(cfg.notifier))
	}
	if cfg.clock != nil {
		svcOpts = append(svcOpts, engine.WithServiceClock(cfg.clock))
	}
	svc := engine.NewFeedService(cfg.storage, bus, svcOpts...)

	if cfg.hub != nil {
		// Bridge every activity kind to realtime
		for _, kind := range []core.ActivityKind{core.KindAchievementEarned, core.KindPlantAdded, core.KindFriendAdded} {
			bus.Subscribe(kind, func(ctx context.Context, a core.Activity) { cfg.hub.Broadcast(ctx, a) })
		}
	}
	return svc
}
