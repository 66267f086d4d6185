package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bloomfeed/core"
)

func TestStorePersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	store, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	if err := store.SaveProfile(ctx, core.Profile{UserID: "alice", DisplayName: "Alice"}); err != nil {
		t.Fatalf("save profile: %v", err)
	}
	if err := store.SetProgress(ctx, "alice", core.AchievementPlantsNumber, 3); err != nil {
		t.Fatalf("set progress: %v", err)
	}
	when := time.Date(2025, 10, 10, 12, 0, 0, 0, time.UTC)
	earned, err := core.NewAchievementEarned("alice", "Alice", core.AchievementPlantsNumber, 2, core.At(when))
	if err != nil {
		t.Fatalf("build activity: %v", err)
	}
	if err := store.AppendActivity(ctx, earned); err != nil {
		t.Fatalf("append activity: %v", err)
	}
	if err := store.SavePlant(ctx, "alice", core.Plant{ID: "fern", Name: "Fern", WateringFrequencyDays: 5}); err != nil {
		t.Fatalf("save plant: %v", err)
	}

	// ensure file written
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file at %s", path)
	}

	// reload
	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	profile, err := reloaded.GetProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.DisplayName != "Alice" {
		t.Fatalf("expected display name Alice, got %q", profile.DisplayName)
	}
	progress, err := reloaded.GetProgress(ctx, "alice", core.AchievementPlantsNumber)
	if err != nil || progress != 3 {
		t.Fatalf("expected progress 3, got %d err=%v", progress, err)
	}
	feed, err := reloaded.ListActivities(ctx, "alice", 0)
	if err != nil {
		t.Fatalf("list activities: %v", err)
	}
	if len(feed) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(feed))
	}
	got, ok := feed[0].(core.AchievementEarned)
	if !ok || got != earned {
		t.Fatalf("reloaded activity mismatch: %#v", feed[0])
	}
	plants, err := reloaded.ListPlants(ctx, "alice")
	if err != nil || len(plants) != 1 || plants[0].ID != "fern" {
		t.Fatalf("expected fern plant, got %#v err=%v", plants, err)
	}
}

func TestAppendActivityDeduplicatesAfterReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")
	ctx := context.Background()

	store, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	earned, err := core.NewAchievementEarned("bob", "Bob", core.AchievementFriendsNumber, 1)
	if err != nil {
		t.Fatalf("build activity: %v", err)
	}
	if err := store.AppendActivity(ctx, earned); err != nil {
		t.Fatalf("append: %v", err)
	}

	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := reloaded.AppendActivity(ctx, earned); err != nil {
		t.Fatalf("replay append: %v", err)
	}
	feed, err := reloaded.ListActivities(ctx, "bob", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(feed) != 1 {
		t.Fatalf("expected replayed append to dedupe, got %d entries", len(feed))
	}
}
