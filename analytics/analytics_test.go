package analytics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloomfeed/core"
	"bloomfeed/engine"
)

var testNow = time.Date(2025, 10, 10, 12, 0, 0, 0, time.UTC)

func mustActivity(t *testing.T) func(core.Activity, error) core.Activity {
	t.Helper()
	return func(a core.Activity, err error) core.Activity {
		require.NoError(t, err)
		return a
	}
}

func TestFeedMetrics_OnActivity(t *testing.T) {
	metrics := NewFeedMetrics()

	earned := mustActivity(t)(core.NewAchievementEarned("alice", "Alice", core.AchievementPlantsNumber, 3, core.At(testNow)))
	plant := mustActivity(t)(core.NewPlantAdded("alice", "Alice", "fern", "Fern", core.At(testNow)))
	friend := mustActivity(t)(core.NewFriendAdded("bob", "Bob", "alice", "Alice", core.At(testNow)))

	metrics.OnActivity(earned)
	metrics.OnActivity(plant)
	metrics.OnActivity(friend)

	day := testNow.Format("2006-01-02")
	assert.Equal(t, 2, metrics.GetDailyActiveUsers(day))
	assert.Equal(t, int64(3), metrics.GetActivitiesByDay(day))
	assert.Equal(t, int64(1), metrics.GetActivitiesByKind(core.KindAchievementEarned))
	assert.Equal(t, int64(1), metrics.GetActivitiesByKind(core.KindPlantAdded))
	assert.Equal(t, int64(1), metrics.GetActivitiesByKind(core.KindFriendAdded))
	assert.Equal(t, int64(1), metrics.GetAchievementsByType(core.AchievementPlantsNumber))
	assert.Equal(t, 1, metrics.GetUniqueEarners(core.AchievementPlantsNumber))
	assert.Equal(t, 1, metrics.GetLevelCount(core.AchievementPlantsNumber, 3))

	assert.Equal(t, 2, metrics.GetWeeklyActiveUsers(getWeekKey(testNow)))
	assert.Equal(t, 2, metrics.GetMonthlyActiveUsers(testNow.Format("2006-01")))
}

func TestFeedMetrics_TopAchievements(t *testing.T) {
	metrics := NewFeedMetrics()
	for level := int64(1); level <= 3; level++ {
		metrics.OnActivity(mustActivity(t)(core.NewAchievementEarned("alice", "Alice", core.AchievementPlantsNumber, level, core.At(testNow))))
	}
	metrics.OnActivity(mustActivity(t)(core.NewAchievementEarned("alice", "Alice", core.AchievementFriendsNumber, 1, core.At(testNow))))

	top := metrics.GetTopAchievements(1)
	require.Len(t, top, 1)
	assert.Equal(t, core.AchievementPlantsNumber, top[0])
}

func TestDAU_CountsDistinctUsers(t *testing.T) {
	dau := NewDAU()
	dau.OnActivity(mustActivity(t)(core.NewPlantAdded("alice", "Alice", "fern", "Fern", core.At(testNow))))
	dau.OnActivity(mustActivity(t)(core.NewPlantAdded("alice", "Alice", "ivy", "Ivy", core.At(testNow))))
	dau.OnActivity(mustActivity(t)(core.NewPlantAdded("bob", "Bob", "rose", "Rose", core.At(testNow))))

	assert.Equal(t, 2, dau.Count(testNow.Format("2006-01-02")))
	assert.Equal(t, 0, dau.Count("1999-01-01"))
}

func TestBridgeFansOut(t *testing.T) {
	dau := NewDAU()
	metrics := NewFeedMetrics()
	bridge := NewBridge(dau, metrics)

	bridge.OnActivity(mustActivity(t)(core.NewFriendAdded("alice", "Alice", "bob", "Bob", core.At(testNow))))

	day := testNow.Format("2006-01-02")
	assert.Equal(t, 1, dau.Count(day))
	assert.Equal(t, int64(1), metrics.GetActivitiesByDay(day))
}

func TestAttachSubscribesAllKinds(t *testing.T) {
	bus := engine.NewActivityBus(engine.DispatchSync)
	defer bus.Close()

	metrics := NewFeedMetrics()
	detach := Attach(bus, metrics)
	defer detach()

	ctx := context.Background()
	bus.Publish(ctx, mustActivity(t)(core.NewAchievementEarned("alice", "Alice", core.AchievementHealthyStreak, 1, core.At(testNow))))
	bus.Publish(ctx, mustActivity(t)(core.NewPlantAdded("alice", "Alice", "fern", "Fern", core.At(testNow))))
	bus.Publish(ctx, mustActivity(t)(core.NewFriendAdded("alice", "Alice", "bob", "Bob", core.At(testNow))))

	assert.Equal(t, int64(3), metrics.GetActivitiesByDay(testNow.Format("2006-01-02")))
}

func TestPromHookCountsActivities(t *testing.T) {
	reg := prometheus.NewRegistry()
	hook, err := NewPromHook(reg)
	require.NoError(t, err)

	hook.OnActivity(mustActivity(t)(core.NewAchievementEarned("alice", "Alice", core.AchievementPlantsNumber, 2, core.At(testNow))))
	hook.OnActivity(mustActivity(t)(core.NewPlantAdded("alice", "Alice", "fern", "Fern", core.At(testNow))))

	expected := `
		# HELP bloomfeed_achievements_total Achievements earned, by type and level.
		# TYPE bloomfeed_achievements_total counter
		bloomfeed_achievements_total{level="2",type="PLANTS_NUMBER"} 1
	`
	require.NoError(t, testutil.CollectAndCompare(hook.achievements, strings.NewReader(expected)))
	assert.Equal(t, float64(1), testutil.ToFloat64(hook.activities.WithLabelValues(string(core.KindPlantAdded))))
	assert.Equal(t, float64(1), testutil.ToFloat64(hook.activities.WithLabelValues(string(core.KindAchievementEarned))))
}
