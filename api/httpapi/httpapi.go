package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	wsadapter "bloomfeed/adapters/websocket"
	"bloomfeed/core"
	"bloomfeed/engine"
	"bloomfeed/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
}

// NewMux builds an http.Handler exposing the feed REST API and WebSocket stream.
// Routes:
//   - POST {prefix}/users/{id}/progress?achievement=PLANTS_NUMBER&value=3
//   - POST {prefix}/users/{id}/plants
//   - POST {prefix}/users/{id}/friends/{fid}
//   - GET  {prefix}/users/{id}
//   - PUT  {prefix}/users/{id}
//   - GET  {prefix}/users/{id}/feed?limit=20
//   - GET  {prefix}/healthz
//   - WS   {prefix}/ws
func NewMux(svc *engine.FeedService, hub *realtime.Hub, opts Options) http.Handler {
	mux := http.NewServeMux()

	// health
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/healthz"), func(w http.ResponseWriter, r *http.Request) {
		healthCheck(w, r, svc)
	})

	// WebSocket activity stream
	if hub != nil {
		mux.Handle(withPrefix(opts.PathPrefix, "/ws"), wsadapter.Handler(hub))
	}

	// Users API
	mux.HandleFunc(withPrefix(opts.PathPrefix, "/users/"), func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, opts.PathPrefix)
		if path == "" || path[0] != '/' {
			path = "/" + path
		}
		parts := split(path, '/')
		if len(parts) < 2 {
			writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
			return
		}
		user, err := core.NormalizeUserID(core.UserID(parts[1]))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_user", err.Error(), nil)
			return
		}
		switch r.Method {
		case http.MethodPost:
			if len(parts) >= 3 && parts[2] == "progress" {
				handleProgress(w, r, svc, user)
				return
			}
			if len(parts) >= 3 && parts[2] == "plants" {
				handleAddPlant(w, r, svc, user)
				return
			}
			if len(parts) >= 4 && parts[2] == "friends" {
				handleAddFriend(w, r, svc, user, core.UserID(parts[3]))
				return
			}
		case http.MethodGet:
			if len(parts) >= 3 && parts[2] == "feed" {
				handleFeed(w, r, svc, user)
				return
			}
			if len(parts) == 2 {
				handleGetProfile(w, r, svc, user)
				return
			}
		case http.MethodPut:
			if len(parts) == 2 {
				handlePutProfile(w, r, svc, user)
				return
			}
		}
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	})

	var handler http.Handler = mux
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if len(opts.APIKeys) > 0 {
		handler = withAPIKeyAuth(handler, opts.APIKeys)
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst)
	}
	return handler
}

func handleProgress(w http.ResponseWriter, r *http.Request, svc *engine.FeedService, user core.UserID) {
	achievement := core.AchievementType(r.URL.Query().Get("achievement"))
	value, err := strconv.ParseInt(r.URL.Query().Get("value"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_value", "value must be an integer", nil)
		return
	}
	activity, err := svc.RecordProgress(r.Context(), user, achievement, value)
	if errors.Is(err, engine.ErrUnknownAchievement) {
		writeError(w, http.StatusBadRequest, "invalid_achievement", err.Error(), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	if activity == nil {
		writeJSON(w, map[string]any{"earned": false})
		return
	}
	payload, err := core.MarshalActivity(activity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	writeJSON(w, map[string]any{"earned": true, "activity": json.RawMessage(payload)})
}

func handleAddPlant(w http.ResponseWriter, r *http.Request, svc *engine.FeedService, user core.UserID) {
	var plant core.Plant
	if err := json.NewDecoder(r.Body).Decode(&plant); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "body must be a plant JSON object", nil)
		return
	}
	saved, err := svc.AddPlant(r.Context(), user, plant)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	writeJSON(w, saved)
}

func handleAddFriend(w http.ResponseWriter, r *http.Request, svc *engine.FeedService, user, friend core.UserID) {
	if err := svc.AddFriend(r.Context(), user, friend); err != nil {
		status := http.StatusBadRequest
		code := "invalid_input"
		if errors.Is(err, core.ErrProfileNotFound) {
			status = http.StatusNotFound
			code = "profile_not_found"
		}
		writeError(w, status, code, err.Error(), nil)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func handleFeed(w http.ResponseWriter, r *http.Request, svc *engine.FeedService, user core.UserID) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer", nil)
			return
		}
		limit = n
	}
	feed, err := svc.Feed(r.Context(), user, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	items := make([]json.RawMessage, 0, len(feed))
	for _, a := range feed {
		payload, err := core.MarshalActivity(a)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
			return
		}
		items = append(items, payload)
	}
	writeJSON(w, map[string]any{"activities": items})
}

func handleGetProfile(w http.ResponseWriter, r *http.Request, svc *engine.FeedService, user core.UserID) {
	profile, err := svc.Profile(r.Context(), user)
	if errors.Is(err, core.ErrProfileNotFound) {
		writeError(w, http.StatusNotFound, "profile_not_found", "no profile for user", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	writeJSON(w, profile)
}

func handlePutProfile(w http.ResponseWriter, r *http.Request, svc *engine.FeedService, user core.UserID) {
	var profile core.Profile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "body must be a profile JSON object", nil)
		return
	}
	profile.UserID = user
	if err := svc.SaveProfile(r.Context(), profile); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

// Helpers

// healthCheck verifies the service is working properly
func healthCheck(w http.ResponseWriter, r *http.Request, svc *engine.FeedService) {
	ctx := r.Context()

	// Verify storage works with a lightweight probe read that doesn't
	// affect real data.
	probe := core.UserID("healthcheck_probe")
	_, err := svc.Feed(ctx, probe, 1)

	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"storage": "ok",
		},
	}

	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, status)
}

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func split(p string, sep rune) []string {
	var parts []string
	cur := make([]rune, 0, len(p))
	// trim leading '/'
	for len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	for _, r := range p {
		if r == sep {
			if len(cur) > 0 {
				parts = append(parts, string(cur))
				cur = cur[:0]
			}
			continue
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		parts = append(parts, string(cur))
	}
	return parts
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: msg, Details: details})
}

// withCORS wraps a handler with a minimal CORS policy.
func withCORS(next http.Handler, origin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAPIKeyAuth enforces a shared API key list.
func withAPIKeyAuth(next http.Handler, apiKeys []string) http.Handler {
	allowed := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		k = strings.TrimSpace(k)
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing API key", nil)
			return
		}
		if _, ok := allowed[key]; !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies a simple token-bucket limiter per client key.
func withRateLimit(next http.Handler, rpm int, burst int) http.Handler {
	limiter := newRateLimiter(rpm, burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !limiter.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractAPIKey(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return ""
}

// clientKey uses API key if present, otherwise remote IP.
func clientKey(r *http.Request) string {
	if key := extractAPIKey(r); key != "" {
		return key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type rateLimiter struct {
	rpm   float64
	burst float64
	mu    sync.Mutex
	b     map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newRateLimiter(rpm, burst int) *rateLimiter {
	return &rateLimiter{
		rpm:   float64(rpm),
		burst: float64(burst),
		b:     make(map[string]*bucket),
	}
}

func (l *rateLimiter) allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.b[key]
	if !ok {
		l.b[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}

	elapsed := now.Sub(b.last).Minutes()
	b.tokens += elapsed * l.rpm
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	if b.tokens < 1 {
		b.last = now
		return false
	}
	b.tokens--
	b.last = now
	return true
}
