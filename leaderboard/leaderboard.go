package leaderboard

import "bloomfeed/core"

// Entry ranks a gardener by accumulated achievement levels.
type Entry struct {
	User   core.UserID
	Levels int64
}

// Board abstracts leaderboard operations.
type Board interface {
	Update(user core.UserID, levels int64)
	Remove(user core.UserID)
	TopN(n int) []Entry
	Get(user core.UserID) (Entry, bool)
	Rank(user core.UserID) (int, bool)
}
