package webhook

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bloomfeed/core"
)

func TestSink_OnActivityPostsToEndpoints(t *testing.T) {
	var hits int32
	var lastBody atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		body, _ := io.ReadAll(r.Body)
		lastBody.Store(body)
		_ = r.Body.Close()
	}))
	defer srv.Close()

	earned, err := core.NewAchievementEarned("u1", "User One", core.AchievementPlantsNumber, 1)
	if err != nil {
		t.Fatalf("build activity: %v", err)
	}

	sink := New([]string{srv.URL})
	sink.OnActivity(context.Background(), earned)

	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", hits)
	}
	decoded, err := core.UnmarshalActivity(lastBody.Load().([]byte))
	if err != nil {
		t.Fatalf("decode posted body: %v", err)
	}
	if decoded.Kind() != core.KindAchievementEarned {
		t.Fatalf("expected achievement activity, got %s", decoded.Kind())
	}
}

func TestSink_NoEndpointsIsNoop(t *testing.T) {
	earned, err := core.NewAchievementEarned("u1", "User One", core.AchievementPlantsNumber, 1)
	if err != nil {
		t.Fatalf("build activity: %v", err)
	}
	sink := New(nil)
	sink.OnActivity(context.Background(), earned)
}

func TestSink_RetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	var backoffs []time.Duration
	sink := New([]string{srv.URL}, WithSleep(func(d time.Duration) { backoffs = append(backoffs, d) }))

	earned, err := core.NewAchievementEarned("u1", "User One", core.AchievementPlantsNumber, 1)
	if err != nil {
		t.Fatalf("build activity: %v", err)
	}
	sink.OnActivity(context.Background(), earned)

	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
	if len(backoffs) != 2 || backoffs[0] != time.Second || backoffs[1] != 2*time.Second {
		t.Fatalf("unexpected backoffs: %v", backoffs)
	}
}

func TestSink_DoesNotRetryClientErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	sink := New([]string{srv.URL}, WithSleep(func(time.Duration) {}))

	earned, err := core.NewAchievementEarned("u1", "User One", core.AchievementPlantsNumber, 1)
	if err != nil {
		t.Fatalf("build activity: %v", err)
	}
	sink.OnActivity(context.Background(), earned)

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}
