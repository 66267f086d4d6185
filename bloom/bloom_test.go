package bloom

import (
	"context"
	"testing"

	mem "bloomfeed/adapters/memory"
	"bloomfeed/core"
	"bloomfeed/engine"
	"bloomfeed/realtime"
)

func TestNewDefaultsAndOptions(t *testing.T) {
	hub := realtime.NewHub()
	store := mem.New()
	svc := New(
		WithRealtime(hub),
		WithStorage(store),
		WithPlantStorage(store),
		WithDispatchMode(engine.DispatchSync),
	)
	defer svc.Close()

	ctx := context.Background()
	if err := svc.SaveProfile(ctx, core.Profile{UserID: "alice", DisplayName: "Alice"}); err != nil {
		t.Fatalf("save profile: %v", err)
	}

	// realtime bridge should receive the achievement
	_, ch := hub.Subscribe(4)
	activity, err := svc.RecordProgress(ctx, "alice", core.AchievementPlantsNumber, 1)
	if err != nil {
		t.Fatalf("record progress: %v", err)
	}
	if activity == nil {
		t.Fatal("expected an achievement activity")
	}
	got := <-ch
	if got.Common().UserID != "alice" || got.Kind() != core.KindAchievementEarned {
		t.Fatalf("unexpected activity: %#v", got)
	}
}

func TestInMemoryDefault(t *testing.T) {
	svc := New(WithDispatchMode(engine.DispatchSync))
	defer svc.Close()

	ctx := context.Background()
	if err := svc.SaveProfile(ctx, core.Profile{UserID: "bob", DisplayName: "Bob"}); err != nil {
		t.Fatalf("save profile: %v", err)
	}
	plant := core.Plant{Name: "Fern", WateringFrequencyDays: 5}
	saved, err := svc.AddPlant(ctx, "bob", plant)
	if err != nil {
		t.Fatalf("add plant: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected generated plant ID")
	}
	feed, err := svc.Feed(ctx, "bob", 0)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("expected plant added plus achievement, got %d entries", len(feed))
	}
}
