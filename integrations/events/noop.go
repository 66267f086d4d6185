package events

import (
	"context"

	"bloomfeed/core"
)

// NoopPublisher is a Publisher that does nothing (used when NATS is not configured).
type NoopPublisher struct{}

func (n *NoopPublisher) Publish(ctx context.Context, subject string, a core.Activity) error {
	return nil
}

func (n *NoopPublisher) Close() error {
	return nil
}
