package sdk

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	mem "bloomfeed/adapters/memory"
	"bloomfeed/api/httpapi"
	"bloomfeed/core"
	"bloomfeed/engine"
	"bloomfeed/realtime"
)

func newTestServer(t *testing.T) (*httptest.Server, *realtime.Hub) {
	t.Helper()
	store := mem.New()
	bus := engine.NewActivityBus(engine.DispatchSync)
	svc := engine.NewFeedService(store, bus, engine.WithPlantStorage(store))
	hub := realtime.NewHub()

	for _, kind := range []core.ActivityKind{core.KindAchievementEarned, core.KindPlantAdded, core.KindFriendAdded} {
		bus.Subscribe(kind, func(ctx context.Context, a core.Activity) { hub.Broadcast(ctx, a) })
	}

	handler := httpapi.NewMux(svc, hub, httpapi.Options{PathPrefix: "/api"})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, hub
}

func TestClient_ProgressPlantFeedHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx := context.Background()

	if err := client.SaveProfile(ctx, core.Profile{UserID: "alice", DisplayName: "Alice"}); err != nil {
		t.Fatalf("save profile: %v", err)
	}

	activity, err := client.RecordProgress(ctx, "alice", "PLANTS_NUMBER", 1)
	if err != nil {
		t.Fatalf("record progress: %v", err)
	}
	earned, ok := activity.(core.AchievementEarned)
	if !ok {
		t.Fatalf("expected AchievementEarned, got %T", activity)
	}
	if earned.Achievement != core.AchievementPlantsNumber || earned.Level != 2 {
		t.Fatalf("unexpected achievement: %+v", earned)
	}

	// Repeating the same value crosses no new level.
	activity, err = client.RecordProgress(ctx, "alice", "PLANTS_NUMBER", 1)
	if err != nil {
		t.Fatalf("record progress repeat: %v", err)
	}
	if activity != nil {
		t.Fatalf("expected no activity on repeat, got %+v", activity)
	}

	plant, err := client.AddPlant(ctx, "alice", core.Plant{
		Name:                  "Fern",
		WateringFrequencyDays: 5,
		LastWatered:           time.Date(2025, 10, 9, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("add plant: %v", err)
	}
	if plant.ID == "" || plant.Name != "Fern" {
		t.Fatalf("unexpected plant: %+v", plant)
	}

	feed, err := client.Feed(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("expected 2 feed entries, got %d", len(feed))
	}
	if feed[0].Kind() != core.KindPlantAdded {
		t.Fatalf("expected newest entry first, got %s", feed[0].Kind())
	}

	profile, err := client.GetProfile(ctx, "alice")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if profile.DisplayName != "Alice" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	health, err := client.Health(ctx)
	if err != nil || health.Status != "healthy" {
		t.Fatalf("health: %+v err=%v", health, err)
	}
}

func TestClient_AddFriend(t *testing.T) {
	srv, _ := newTestServer(t)

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx := context.Background()
	if err := client.SaveProfile(ctx, core.Profile{UserID: "alice", DisplayName: "Alice"}); err != nil {
		t.Fatalf("save alice: %v", err)
	}
	if err := client.SaveProfile(ctx, core.Profile{UserID: "bob", DisplayName: "Bob"}); err != nil {
		t.Fatalf("save bob: %v", err)
	}

	if err := client.AddFriend(ctx, "alice", "bob"); err != nil {
		t.Fatalf("add friend: %v", err)
	}

	feed, err := client.Feed(ctx, "alice", 10)
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(feed) != 1 || feed[0].Kind() != core.KindFriendAdded {
		t.Fatalf("unexpected feed: %+v", feed)
	}

	// Missing friend profile surfaces an error.
	if err := client.AddFriend(ctx, "alice", "ghost"); err == nil {
		t.Fatal("expected error for unknown friend")
	}
}

func TestClient_SubscribeActivities(t *testing.T) {
	srv, _ := newTestServer(t)

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.SaveProfile(ctx, core.Profile{UserID: "alice", DisplayName: "Alice"}); err != nil {
		t.Fatalf("save profile: %v", err)
	}

	activities, err := client.SubscribeActivities(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if _, err := client.RecordProgress(ctx, "alice", "FRIENDS_NUMBER", 1); err != nil {
		t.Fatalf("record progress: %v", err)
	}

	select {
	case a := <-activities:
		if a.Kind() != core.KindAchievementEarned {
			t.Fatalf("unexpected activity kind: %s", a.Kind())
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for activity")
	}
}
