package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bloomfeed/core"
)

// SweepReport summarizes one pass over all tracked plants.
type SweepReport struct {
	PlantsSeen    int
	Transitions   int
	RemindersSent int
}

// SweepPlants walks every user's plants, recomputes health status,
// persists transitions, maintains healthy streaks, and hands watering
// reminders to the notifier. Per-plant failures are logged and skipped
// so one bad record never stalls the sweep.
func (s *FeedService) SweepPlants(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	if s.plants == nil {
		return report, errors.New("plant storage not configured")
	}
	users, err := s.plants.ListUsers(ctx)
	if err != nil {
		return report, err
	}
	now := s.clock.Now()

	for _, user := range users {
		plants, err := s.plants.ListPlants(ctx, user)
		if err != nil {
			slog.Error("sweep: list plants failed", "user", user, "error", err)
			continue
		}
		for _, plant := range plants {
			report.PlantsSeen++
			if err := s.sweepPlant(ctx, user, plant, now, &report); err != nil {
				slog.Error("sweep: plant update failed", "user", user, "plant", plant.ID, "error", err)
			}
		}
	}
	return report, nil
}

func (s *FeedService) sweepPlant(ctx context.Context, user core.UserID, plant core.Plant, now time.Time, report *SweepReport) error {
	if plant.WateringFrequencyDays <= 0 || plant.LastWatered.IsZero() {
		return nil
	}

	// Healthy streak progress is tracked even without a transition: the
	// running streak grows a day at a time while the plant stays healthy.
	if !plant.HealthySince.IsZero() {
		streak := int64(now.Sub(plant.HealthySince).Hours() / 24)
		if streak > 0 {
			if _, err := s.RecordProgress(ctx, user, core.AchievementHealthyStreak, streak); err != nil {
				return err
			}
		}
	}

	newStatus := core.ComputeStatus(plant.LastWatered, plant.WateringFrequencyDays, plant.PreviousLastWatered, now)
	if newStatus == plant.HealthStatus {
		return nil
	}

	wasHealthy := plant.HealthStatus.IsHealthy()
	plant.HealthStatus = newStatus
	switch {
	case !wasHealthy && newStatus.IsHealthy():
		plant.HealthySince = now
	case wasHealthy && !newStatus.IsHealthy():
		plant.HealthySince = time.Time{}
	}
	if err := s.plants.SavePlant(ctx, user, plant); err != nil {
		return err
	}
	report.Transitions++

	if newStatus.NeedsWater() && s.notifier != nil {
		profile, err := s.storage.GetProfile(ctx, user)
		if err != nil {
			if errors.Is(err, core.ErrProfileNotFound) {
				return nil
			}
			return err
		}
		if err := s.notifier.SendWaterReminder(ctx, profile, plant, newStatus); err != nil {
			slog.Warn("sweep: reminder failed", "user", user, "plant", plant.ID, "error", err)
		} else {
			report.RemindersSent++
		}
	}
	return nil
}

// StartSweeper runs SweepPlants on the given interval until ctx is
// cancelled.
func (s *FeedService) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if report, err := s.SweepPlants(ctx); err != nil {
					slog.Error("sweep failed", "error", err)
				} else {
					slog.Info("sweep complete",
						"plants", report.PlantsSeen,
						"transitions", report.Transitions,
						"reminders", report.RemindersSent)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
