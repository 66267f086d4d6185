package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"bloomfeed/core"
)

// Option configures the Client.
type Option func(*Client)

// Client provides typed access to the Bloomfeed HTTP + WebSocket API.
type Client struct {
	baseURL    string
	wsURL      string
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a new SDK client targeting the given baseURL (e.g., http://localhost:8080/api).
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("baseURL is required")
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	c := &Client{
		baseURL:    baseURL,
		wsURL:      deriveWSURL(baseURL),
		httpClient: http.DefaultClient,
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithAuthToken adds an Authorization: Bearer token header to all requests (HTTP + WS).
func WithAuthToken(token string) Option {
	return func(c *Client) {
		if strings.TrimSpace(token) != "" {
			c.headers.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithAPIKey adds an X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if strings.TrimSpace(key) != "" {
			c.headers.Set("X-API-Key", key)
		}
	}
}

// WithHeader sets an arbitrary header applied to HTTP and WS calls.
func WithHeader(k, v string) Option {
	return func(c *Client) {
		if k != "" {
			c.headers.Set(k, v)
		}
	}
}

// RecordProgress advances an achievement counter for a user. Returns the
// earned achievement activity, or nil when the update crossed no new level.
func (c *Client) RecordProgress(ctx context.Context, userID string, achievement string, value int64) (core.Activity, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}

	u, err := url.Parse(fmt.Sprintf("%s/users/%s/progress", c.baseURL, url.PathEscape(userID)))
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("achievement", achievement)
	q.Set("value", fmt.Sprintf("%d", value))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), nil)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Earned   bool            `json:"earned"`
		Activity json.RawMessage `json:"activity"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}
	if !body.Earned {
		return nil, nil
	}
	return core.UnmarshalActivity(body.Activity)
}

// AddPlant registers a plant for a user and returns the saved plant,
// including its server-assigned ID.
func (c *Client) AddPlant(ctx context.Context, userID string, plant core.Plant) (core.Plant, error) {
	if strings.TrimSpace(userID) == "" {
		return core.Plant{}, ErrEmptyUserID
	}

	payload, err := json.Marshal(plant)
	if err != nil {
		return core.Plant{}, err
	}
	u := fmt.Sprintf("%s/users/%s/plants", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return core.Plant{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.Plant{}, err
	}
	defer resp.Body.Close()

	var saved core.Plant
	if err := decodeJSON(resp, &saved); err != nil {
		return core.Plant{}, err
	}
	return saved, nil
}

// AddFriend records a friendship between two users.
func (c *Client) AddFriend(ctx context.Context, userID, friendID string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(friendID) == "" {
		return ErrEmptyUserID
	}
	u := fmt.Sprintf("%s/users/%s/friends/%s", c.baseURL, url.PathEscape(userID), url.PathEscape(friendID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		OK bool `json:"ok"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return err
	}
	if !body.OK {
		return errors.New("friend not added")
	}
	return nil
}

// Feed fetches a user's activity feed, newest first. A zero limit
// returns the server default.
func (c *Client) Feed(ctx context.Context, userID string, limit int) ([]core.Activity, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrEmptyUserID
	}

	u, err := url.Parse(fmt.Sprintf("%s/users/%s/feed", c.baseURL, url.PathEscape(userID)))
	if err != nil {
		return nil, err
	}
	if limit > 0 {
		q := u.Query()
		q.Set("limit", fmt.Sprintf("%d", limit))
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Activities []json.RawMessage `json:"activities"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return nil, err
	}
	feed := make([]core.Activity, 0, len(body.Activities))
	for _, raw := range body.Activities {
		a, err := core.UnmarshalActivity(raw)
		if err != nil {
			return nil, err
		}
		feed = append(feed, a)
	}
	return feed, nil
}

// GetProfile fetches a user's profile.
func (c *Client) GetProfile(ctx context.Context, userID string) (core.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return core.Profile{}, ErrEmptyUserID
	}
	u := fmt.Sprintf("%s/users/%s", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return core.Profile{}, err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.Profile{}, err
	}
	defer resp.Body.Close()

	var profile core.Profile
	if err := decodeJSON(resp, &profile); err != nil {
		return core.Profile{}, err
	}
	return profile, nil
}

// SaveProfile creates or replaces a user's profile.
func (c *Client) SaveProfile(ctx context.Context, profile core.Profile) error {
	if strings.TrimSpace(string(profile.UserID)) == "" {
		return ErrEmptyUserID
	}

	payload, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	u := fmt.Sprintf("%s/users/%s", c.baseURL, url.PathEscape(string(profile.UserID)))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		OK bool `json:"ok"`
	}
	if err := decodeJSON(resp, &body); err != nil {
		return err
	}
	if !body.OK {
		return errors.New("profile not saved")
	}
	return nil
}

// Health probes /healthz and returns status + storage check.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	u := c.baseURL + "/healthz"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return HealthStatus{}, err
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return HealthStatus{}, err
	}
	defer resp.Body.Close()

	var hs HealthStatus
	if err := decodeJSON(resp, &hs); err != nil {
		return HealthStatus{}, err
	}
	return hs, nil
}

// SubscribeActivities connects to the WebSocket stream and emits decoded
// activities. The returned channel closes when ctx is done or the
// connection drops.
func (c *Client) SubscribeActivities(ctx context.Context) (<-chan core.Activity, error) {
	if c.wsURL == "" {
		return nil, errors.New("wsURL is not set; ensure baseURL is http/https")
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, c.wsURL, c.headers)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Activity, 32)
	go func() {
		defer close(out)
		defer conn.Close()
		for {
			select {
			case <-ctx.Done():
				return
			default:
				_, raw, err := conn.ReadMessage()
				if err != nil {
					return
				}
				a, err := core.UnmarshalActivity(raw)
				if err != nil {
					continue
				}
				select {
				case out <- a:
				default:
					// drop if consumer is slow
				}
			}
		}
	}()
	return out, nil
}

func (c *Client) applyHeaders(r *http.Request) {
	for k, vals := range c.headers {
		for _, v := range vals {
			r.Header.Add(k, v)
		}
	}
}

func deriveWSURL(httpBase string) string {
	u, err := url.Parse(httpBase)
	if err != nil {
		return ""
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		// leave as-is for custom schemes
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String()
}
