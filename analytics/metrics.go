package analytics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"bloomfeed/core"
	"bloomfeed/engine"
)

// Attach subscribes a hook to every activity kind on the bus. Returns
// an unsubscribe func covering all kinds.
func Attach(bus *engine.ActivityBus, hook Hook) func() {
	kinds := []core.ActivityKind{core.KindAchievementEarned, core.KindPlantAdded, core.KindFriendAdded}
	cancels := make([]func(), 0, len(kinds))
	for _, kind := range kinds {
		cancels = append(cancels, bus.Subscribe(kind, func(_ context.Context, a core.Activity) {
			hook.OnActivity(a)
		}))
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// PromHook exposes activity counters to Prometheus.
type PromHook struct {
	activities   *prometheus.CounterVec
	achievements *prometheus.CounterVec
}

// NewPromHook builds the collectors and registers them. Pass
// prometheus.DefaultRegisterer outside of tests.
func NewPromHook(reg prometheus.Registerer) (*PromHook, error) {
	h := &PromHook{
		activities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bloomfeed",
			Name:      "activities_total",
			Help:      "Activities recorded, by kind.",
		}, []string{"kind"}),
		achievements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bloomfeed",
			Name:      "achievements_total",
			Help:      "Achievements earned, by type and level.",
		}, []string{"type", "level"}),
	}
	if err := reg.Register(h.activities); err != nil {
		return nil, err
	}
	if err := reg.Register(h.achievements); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *PromHook) OnActivity(a core.Activity) {
	h.activities.WithLabelValues(string(a.Kind())).Inc()
	if earned, ok := a.(core.AchievementEarned); ok {
		h.achievements.WithLabelValues(string(earned.Achievement), strconv.FormatInt(earned.Level, 10)).Inc()
	}
}
