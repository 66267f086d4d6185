package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"bloomfeed/core"
)

const (
	maxRetryAttempts = 3
	backoffBase      = time.Second
	backoffCap       = 8 * time.Second
)

// ErrEndpointGone signals a push endpoint the provider no longer
// recognizes. The stored endpoint is cleared when this happens.
var ErrEndpointGone = errors.New("push endpoint gone")

var needWaterTitles = []string{
	"Time to give your plant a drink 🌱",
	"Your plant is feeling a bit thirsty 🌿",
	"Hey, your green friend needs some water 🌱",
	"Don't forget to water your plant today 🌿",
	"A little hydration goes a long way 🌱",
	"Your plant could use a refreshing sip 🌿",
	"It's watering time for your plant 🌱",
	"Your plant's leaves are calling for water 🌿",
	"Keep your plant happy, water it now 🌱",
	"Looks like your plant needs a bit of care 🌿",
}

var criticallyDryTitles = []string{
	"Your plant is really thirsty ⚠️",
	"Emergency hydration needed 🚨",
	"Your plant is drying out fast ⚠️",
	"Uh oh...your plant needs water ASAP 🚨",
}

// Message is the JSON payload posted to a user's push endpoint.
type Message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// ProfileSaver persists profile updates. Used to clear endpoints the
// provider reports as gone.
type ProfileSaver interface {
	SaveProfile(ctx context.Context, p core.Profile) error
}

// Pusher delivers push messages over HTTP with retry and backoff.
type Pusher struct {
	client   *http.Client
	profiles ProfileSaver
	sleep    func(time.Duration)
	pick     func(n int) int
}

// Option configures a Pusher.
type Option func(*Pusher)

// WithClient overrides the HTTP client (defaults to 5s timeout).
func WithClient(c *http.Client) Option {
	return func(p *Pusher) {
		if c != nil {
			p.client = c
		}
	}
}

// WithSleep overrides the backoff sleep between retries.
func WithSleep(fn func(time.Duration)) Option {
	return func(p *Pusher) {
		if fn != nil {
			p.sleep = fn
		}
	}
}

// New creates a Pusher. Profiles may be nil, in which case gone
// endpoints are reported but not cleared.
func New(profiles ProfileSaver, opts ...Option) *Pusher {
	p := &Pusher{
		client:   &http.Client{Timeout: 5 * time.Second},
		profiles: profiles,
		sleep:    time.Sleep,
		pick:     rand.Intn,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SendWaterReminder notifies a user that one of their plants needs
// water. Users without a push endpoint are skipped.
func (p *Pusher) SendWaterReminder(ctx context.Context, profile core.Profile, plant core.Plant, status core.PlantHealthStatus) error {
	if profile.PushEndpoint == "" {
		return nil
	}

	titles := criticallyDryTitles
	body := fmt.Sprintf("%s is severely dry and needs immediate watering to recover!", plant.Name)
	if status == core.StatusNeedsWater {
		titles = needWaterTitles
		body = fmt.Sprintf("%s needs water!", plant.Name)
	}

	msg := Message{
		Title: titles[p.pick(len(titles))],
		Body:  body,
		Data:  map[string]string{"type": "WATER_PLANT", "plantId": plant.ID},
	}
	return p.post(ctx, profile, msg)
}

// SendFriendRequest notifies a user that someone added them.
func (p *Pusher) SendFriendRequest(ctx context.Context, target core.Profile, fromName string) error {
	if target.PushEndpoint == "" {
		return nil
	}

	msg := Message{
		Title: "New Friend Request 🤝",
		Body:  fmt.Sprintf("%s wants to be your friend!", fromName),
		Data:  map[string]string{"type": "FRIEND_REQUEST", "fromName": fromName},
	}
	return p.post(ctx, target, msg)
}

func (p *Pusher) post(ctx context.Context, profile core.Profile, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, profile.PushEndpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			lastErr = err
		} else {
			_ = resp.Body.Close()
			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return nil
			case resp.StatusCode == http.StatusGone:
				p.clearEndpoint(ctx, profile)
				return ErrEndpointGone
			case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
				lastErr = fmt.Errorf("push endpoint returned %d", resp.StatusCode)
			default:
				return fmt.Errorf("push endpoint returned %d", resp.StatusCode)
			}
		}

		if attempt < maxRetryAttempts {
			backoff := backoffBase << (attempt - 1)
			if backoff > backoffCap {
				backoff = backoffCap
			}
			p.sleep(backoff)
		}
	}
	return fmt.Errorf("push failed after %d attempts: %w", maxRetryAttempts, lastErr)
}

// clearEndpoint drops the stored endpoint so the sweeper stops
// retrying a dead registration.
func (p *Pusher) clearEndpoint(ctx context.Context, profile core.Profile) {
	if p.profiles == nil {
		return
	}
	profile.PushEndpoint = ""
	profile.Updated = time.Now().UTC()
	if err := p.profiles.SaveProfile(ctx, profile); err != nil {
		slog.Warn("failed to clear push endpoint", "user", profile.UserID, "error", err)
	}
}
