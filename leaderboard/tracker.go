package leaderboard

import (
	"context"
	"sync"

	"bloomfeed/core"
	"bloomfeed/engine"
)

// Tracker folds achievement activities into a board. A user's total is
// the sum of their current level per achievement type, so replayed or
// out-of-order activities never inflate the score.
type Tracker struct {
	mu     sync.Mutex
	board  Board
	levels map[core.UserID]map[core.AchievementType]int64
}

func NewTracker(board Board) *Tracker {
	return &Tracker{
		board:  board,
		levels: map[core.UserID]map[core.AchievementType]int64{},
	}
}

// Observe applies a single achievement to the board.
func (t *Tracker) Observe(earned core.AchievementEarned) {
	t.mu.Lock()
	defer t.mu.Unlock()

	user := earned.UserID
	byType := t.levels[user]
	if byType == nil {
		byType = map[core.AchievementType]int64{}
		t.levels[user] = byType
	}
	if earned.Level <= byType[earned.Achievement] {
		return
	}
	byType[earned.Achievement] = earned.Level

	var total int64
	for _, level := range byType {
		total += level
	}
	t.board.Update(user, total)
}

// Attach subscribes the tracker to achievement activities on the bus.
func (t *Tracker) Attach(bus *engine.ActivityBus) func() {
	return bus.Subscribe(core.KindAchievementEarned, func(_ context.Context, a core.Activity) {
		if earned, ok := a.(core.AchievementEarned); ok {
			t.Observe(earned)
		}
	})
}
