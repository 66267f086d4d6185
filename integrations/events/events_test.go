package events

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"bloomfeed/core"
	"bloomfeed/engine"
)

// startTestNATS starts an embedded NATS server and returns its client URL.
func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestSubjectFor(t *testing.T) {
	if got := SubjectFor(core.KindAchievementEarned); got != SubjectAchievementEarned {
		t.Fatalf("expected %s, got %s", SubjectAchievementEarned, got)
	}
	if got := SubjectFor(core.KindPlantAdded); got != SubjectPlantAdded {
		t.Fatalf("expected %s, got %s", SubjectPlantAdded, got)
	}
	if got := SubjectFor(core.KindFriendAdded); got != SubjectFriendAdded {
		t.Fatalf("expected %s, got %s", SubjectFriendAdded, got)
	}
}

func TestNoopPublisher(t *testing.T) {
	var _ Publisher = (*NoopPublisher)(nil)
	pub := &NoopPublisher{}
	a, err := core.NewAchievementEarned("u1", "User One", core.AchievementPlantsNumber, 1)
	if err != nil {
		t.Fatalf("build activity: %v", err)
	}
	if err := pub.Publish(context.Background(), SubjectAchievementEarned, a); err != nil {
		t.Fatalf("noop publish: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("noop close: %v", err)
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	var _ Publisher = (*NATSPublisher)(nil)
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	// Subscribe to capture published messages.
	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(SubjectAchievementEarned, ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	earned, err := core.NewAchievementEarned("alice", "Alice", core.AchievementPlantsNumber, 2)
	if err != nil {
		t.Fatalf("build activity: %v", err)
	}
	if err := pub.Publish(context.Background(), SubjectAchievementEarned, earned); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	pub.conn.Flush()

	select {
	case msg := <-ch:
		got, err := core.UnmarshalActivity(msg.Data)
		if err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Common().UserID != "alice" || got.Kind() != core.KindAchievementEarned {
			t.Fatalf("unexpected activity: %#v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}

func TestAttachForwardsBusActivities(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	nc, err := nats.Connect(url)
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer nc.Close()

	ch := make(chan *nats.Msg, 4)
	sub, err := nc.ChanSubscribe("activities.>", ch)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe() //nolint:errcheck
	nc.Flush()

	bus := engine.NewActivityBus(engine.DispatchSync)
	defer bus.Close()
	detach := Attach(bus, pub)
	defer detach()

	plant, err := core.NewPlantAdded("alice", "Alice", "fern", "Fern")
	if err != nil {
		t.Fatalf("build activity: %v", err)
	}
	bus.Publish(context.Background(), plant)
	pub.conn.Flush()

	select {
	case msg := <-ch:
		if msg.Subject != SubjectPlantAdded {
			t.Fatalf("expected subject %s, got %s", SubjectPlantAdded, msg.Subject)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for forwarded activity")
	}
}

func TestNATSPublisher_Close(t *testing.T) {
	url := startTestNATS(t)

	pub, err := NewNATSPublisher(url)
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	a, err := core.NewFriendAdded("alice", "Alice", "bob", "Bob")
	if err != nil {
		t.Fatalf("build activity: %v", err)
	}
	if err := pub.Publish(context.Background(), SubjectFriendAdded, a); err == nil {
		t.Error("expected error publishing after close")
	}
}
