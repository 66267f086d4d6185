package analytics

import (
	"fmt"
	"sync"
	"time"

	"bloomfeed/core"
)

// Hook receives activities for KPI aggregation.
type Hook interface {
	OnActivity(a core.Activity)
}

// BridgeHook fans an activity out to multiple hooks.
type BridgeHook struct{ hooks []Hook }

func NewBridge(hooks ...Hook) *BridgeHook { return &BridgeHook{hooks: hooks} }

func (b *BridgeHook) OnActivity(a core.Activity) {
	for _, h := range b.hooks {
		h.OnActivity(a)
	}
}

// DAU tracks daily active users.
type DAU struct {
	mu   sync.Mutex
	days map[string]map[core.UserID]struct{}
}

func NewDAU() *DAU { return &DAU{days: map[string]map[core.UserID]struct{}{}} }

func (d *DAU) OnActivity(a core.Activity) {
	day := a.Common().CreatedAt.UTC().Format("2006-01-02")
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[core.UserID]struct{}{}
		d.days[day] = m
	}
	m[a.Common().UserID] = struct{}{}
}

func (d *DAU) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}

// FeedMetrics aggregates feed activity for reporting.
type FeedMetrics struct {
	mu sync.RWMutex

	// User engagement metrics
	dailyActiveUsers   map[string]map[core.UserID]struct{}
	weeklyActiveUsers  map[string]map[core.UserID]struct{}
	monthlyActiveUsers map[string]map[core.UserID]struct{}

	// Activity metrics
	activitiesByDay  map[string]int64
	activitiesByKind map[core.ActivityKind]int64

	// Achievement metrics
	achievementsByDay    map[string]int64
	achievementsByType   map[core.AchievementType]int64
	uniqueEarners        map[core.AchievementType]map[core.UserID]struct{}
	levelDistribution    map[core.AchievementType]map[int64]int
	plantsAddedByDay     map[string]int64
	friendsAddedByDay    map[string]int64
}

func NewFeedMetrics() *FeedMetrics {
	return &FeedMetrics{
		dailyActiveUsers:   make(map[string]map[core.UserID]struct{}),
		weeklyActiveUsers:  make(map[string]map[core.UserID]struct{}),
		monthlyActiveUsers: make(map[string]map[core.UserID]struct{}),
		activitiesByDay:    make(map[string]int64),
		activitiesByKind:   make(map[core.ActivityKind]int64),
		achievementsByDay:  make(map[string]int64),
		achievementsByType: make(map[core.AchievementType]int64),
		uniqueEarners:      make(map[core.AchievementType]map[core.UserID]struct{}),
		levelDistribution:  make(map[core.AchievementType]map[int64]int),
		plantsAddedByDay:   make(map[string]int64),
		friendsAddedByDay:  make(map[string]int64),
	}
}

func (m *FeedMetrics) OnActivity(a core.Activity) {
	m.mu.Lock()
	defer m.mu.Unlock()

	env := a.Common()
	day := env.CreatedAt.UTC().Format("2006-01-02")
	week := getWeekKey(env.CreatedAt)
	month := getMonthKey(env.CreatedAt)

	m.trackUserEngagement(env.UserID, day, week, month)

	m.activitiesByDay[day]++
	m.activitiesByKind[a.Kind()]++

	switch v := a.(type) {
	case core.AchievementEarned:
		m.achievementsByDay[day]++
		m.achievementsByType[v.Achievement]++
		if m.uniqueEarners[v.Achievement] == nil {
			m.uniqueEarners[v.Achievement] = make(map[core.UserID]struct{})
		}
		m.uniqueEarners[v.Achievement][env.UserID] = struct{}{}
		if m.levelDistribution[v.Achievement] == nil {
			m.levelDistribution[v.Achievement] = make(map[int64]int)
		}
		m.levelDistribution[v.Achievement][v.Level]++
	case core.PlantAdded:
		m.plantsAddedByDay[day]++
	case core.FriendAdded:
		m.friendsAddedByDay[day]++
	}
}

func (m *FeedMetrics) trackUserEngagement(userID core.UserID, day, week, month string) {
	if m.dailyActiveUsers[day] == nil {
		m.dailyActiveUsers[day] = make(map[core.UserID]struct{})
	}
	m.dailyActiveUsers[day][userID] = struct{}{}

	if m.weeklyActiveUsers[week] == nil {
		m.weeklyActiveUsers[week] = make(map[core.UserID]struct{})
	}
	m.weeklyActiveUsers[week][userID] = struct{}{}

	if m.monthlyActiveUsers[month] == nil {
		m.monthlyActiveUsers[month] = make(map[core.UserID]struct{})
	}
	m.monthlyActiveUsers[month][userID] = struct{}{}
}

// GetDailyActiveUsers returns the count of daily active users for a specific day
func (m *FeedMetrics) GetDailyActiveUsers(day string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.dailyActiveUsers[day])
}

// GetWeeklyActiveUsers returns the count of weekly active users for a specific week
func (m *FeedMetrics) GetWeeklyActiveUsers(week string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.weeklyActiveUsers[week])
}

// GetMonthlyActiveUsers returns the count of monthly active users for a specific month
func (m *FeedMetrics) GetMonthlyActiveUsers(month string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.monthlyActiveUsers[month])
}

// GetActivitiesByDay returns how many activities were recorded on a day
func (m *FeedMetrics) GetActivitiesByDay(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activitiesByDay[day]
}

// GetActivitiesByKind returns how many activities of a kind were recorded
func (m *FeedMetrics) GetActivitiesByKind(kind core.ActivityKind) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activitiesByKind[kind]
}

// GetAchievementsByType returns how many achievements of a type were earned
func (m *FeedMetrics) GetAchievementsByType(t core.AchievementType) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.achievementsByType[t]
}

// GetUniqueEarners returns the count of distinct users who earned a type
func (m *FeedMetrics) GetUniqueEarners(t core.AchievementType) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.uniqueEarners[t])
}

// GetLevelCount returns how many times a level of a type was reached
func (m *FeedMetrics) GetLevelCount(t core.AchievementType, level int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.levelDistribution[t][level]
}

// GetTopAchievements returns the most earned achievement types
func (m *FeedMetrics) GetTopAchievements(limit int) []core.AchievementType {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.topAchievementsLocked(limit)
}

// topAchievementsLocked requires m.mu held.
func (m *FeedMetrics) topAchievementsLocked(limit int) []core.AchievementType {
	type entry struct {
		t     core.AchievementType
		count int64
	}
	entries := make([]entry, 0, len(m.achievementsByType))
	for t, count := range m.achievementsByType {
		entries = append(entries, entry{t, count})
	}
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			if entries[i].count < entries[j].count {
				entries[i], entries[j] = entries[j], entries[i]
			}
		}
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]core.AchievementType, len(entries))
	for i, e := range entries {
		out[i] = e.t
	}
	return out
}

func getWeekKey(t time.Time) string {
	tt := t.UTC()
	year, week := tt.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func getMonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
