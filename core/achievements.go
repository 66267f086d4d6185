package core

// AchievementType names a progress counter tracked per user.
type AchievementType string

const (
	AchievementPlantsNumber  AchievementType = "PLANTS_NUMBER"
	AchievementFriendsNumber AchievementType = "FRIENDS_NUMBER"
	AchievementHealthyStreak AchievementType = "HEALTHY_STREAK"
)

// LevelMax is the highest reachable achievement level.
const LevelMax = 10

var achievementThresholds = map[AchievementType][]int64{
	AchievementPlantsNumber:  {1, 3, 5, 10, 15, 20, 30, 40, 50},
	AchievementFriendsNumber: {1, 3, 5, 10, 15, 20, 25, 30, 40},
	AchievementHealthyStreak: {1, 3, 5, 7, 10, 20, 30, 40, 50},
}

// Thresholds returns the ordered level thresholds for an achievement
// type, or false when the type is unknown.
func Thresholds(t AchievementType) ([]int64, bool) {
	th, ok := achievementThresholds[t]
	return th, ok
}

// ComputeLevel maps a progress value onto a level: 1+i for the first
// threshold the value falls below, LevelMax once all are passed.
func ComputeLevel(value int64, thresholds []int64) int64 {
	for i, t := range thresholds {
		if value < t {
			return int64(1 + i)
		}
	}
	return LevelMax
}
