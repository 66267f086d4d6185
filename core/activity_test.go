package core

import (
	"errors"
	"testing"
	"time"
)

func TestNewAchievementEarned(t *testing.T) {
	at := time.Date(2025, 10, 10, 12, 0, 0, 0, time.UTC)
	a, err := NewAchievementEarned("uid-42", "alice", AchievementPlantsNumber, 2, At(at))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if a.Kind() != KindAchievementEarned {
		t.Fatalf("unexpected kind: %s", a.Kind())
	}
	if a.UserID != "uid-42" || a.DisplayName != "alice" || a.Level != 2 {
		t.Fatalf("unexpected fields: %+v", a)
	}
	if !a.CreatedAt.Equal(at) {
		t.Fatalf("explicit timestamp not honored: %v", a.CreatedAt)
	}
}

func TestNewAchievementEarnedRejectsEmptyFields(t *testing.T) {
	cases := []struct {
		name        string
		user        UserID
		displayName string
		achievement AchievementType
	}{
		{"empty user", "", "alice", AchievementPlantsNumber},
		{"empty display name", "uid-42", "  ", AchievementPlantsNumber},
		{"empty achievement", "uid-42", "alice", ""},
	}
	for _, tc := range cases {
		_, err := NewAchievementEarned(tc.user, tc.displayName, tc.achievement, 1)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		var inv *InvalidEventError
		if !errors.As(err, &inv) {
			t.Fatalf("%s: expected InvalidEventError, got %T", tc.name, err)
		}
	}
}

func TestDefaultTimestampUsesClock(t *testing.T) {
	fixed := time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC)
	a, err := NewAchievementEarned("u", "alice", AchievementHealthyStreak, 3, WithClock(FixedClock(fixed)))
	if err != nil {
		t.Fatal(err)
	}
	if !a.CreatedAt.Equal(fixed) {
		t.Fatalf("expected clock time, got %v", a.CreatedAt)
	}
}

func TestDefaultTimestampNearNow(t *testing.T) {
	before := time.Now().UTC()
	a, err := NewPlantAdded("u", "alice", "p1", "Rose")
	if err != nil {
		t.Fatal(err)
	}
	if a.CreatedAt.Before(before.Add(-time.Second)) || a.CreatedAt.After(time.Now().UTC().Add(time.Second)) {
		t.Fatalf("timestamp not near now: %v", a.CreatedAt)
	}
}

// Two activities identical except for their timestamp are distinct
// values: the timestamp participates in equality.
func TestTimestampParticipatesInEquality(t *testing.T) {
	t1 := time.Date(2025, 10, 10, 0, 0, 0, 0, time.UTC)
	a, _ := NewAchievementEarned("u", "alice", AchievementPlantsNumber, 2, At(t1))
	b, _ := NewAchievementEarned("u", "alice", AchievementPlantsNumber, 2, At(t1.Add(time.Minute)))
	if a == b {
		t.Fatal("activities at different instants must not be equal")
	}
	c, _ := NewAchievementEarned("u", "alice", AchievementPlantsNumber, 2, At(t1))
	if a != c {
		t.Fatal("identical activities must be equal")
	}
}

func TestDeterministicAchievementID(t *testing.T) {
	a, _ := NewAchievementEarned("u", "alice", AchievementFriendsNumber, 4)
	if a.ID() != "ACHIEVEMENT_FRIENDS_NUMBER_LEVEL_4" {
		t.Fatalf("unexpected id: %s", a.ID())
	}
}

func TestVariantConstructorsValidatePayload(t *testing.T) {
	if _, err := NewPlantAdded("u", "alice", "", "Rose"); err == nil {
		t.Fatal("expected error for empty plant id")
	}
	if _, err := NewFriendAdded("u", "alice", "", "bob"); err == nil {
		t.Fatal("expected error for empty friend id")
	}
	if _, err := NewFriendAdded("u", "alice", "u2", ""); err == nil {
		t.Fatal("expected error for empty friend name")
	}
}

func TestDiscriminateOverFamily(t *testing.T) {
	ach, _ := NewAchievementEarned("u", "alice", AchievementPlantsNumber, 1)
	plant, _ := NewPlantAdded("u", "alice", "p1", "Rose")
	friend, _ := NewFriendAdded("u", "alice", "u2", "bob")

	for _, tc := range []struct {
		activity Activity
		want     ActivityKind
	}{
		{ach, KindAchievementEarned},
		{plant, KindPlantAdded},
		{friend, KindFriendAdded},
	} {
		if tc.activity.Kind() != tc.want {
			t.Fatalf("want %s got %s", tc.want, tc.activity.Kind())
		}
		if tc.activity.Common().UserID != "u" {
			t.Fatalf("envelope not shared for %s", tc.want)
		}
	}
}
