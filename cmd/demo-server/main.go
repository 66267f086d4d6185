package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	mem "bloomfeed/adapters/memory"
	ws "bloomfeed/adapters/websocket"
	"bloomfeed/core"
	"bloomfeed/engine"
	"bloomfeed/realtime"
)

func main() {
	// Use readable text logging for development/demo
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(textHandler))

	ctx := context.Background()
	store := mem.New()
	bus := engine.NewActivityBus(engine.DispatchAsync)
	svc := engine.NewFeedService(store, bus, engine.WithPlantStorage(store))
	hub := realtime.NewHub()

	// Forward activities to WebSocket clients
	bus.Subscribe(core.KindAchievementEarned, func(ctx context.Context, a core.Activity) { hub.Broadcast(ctx, a) })
	bus.Subscribe(core.KindPlantAdded, func(ctx context.Context, a core.Activity) { hub.Broadcast(ctx, a) })
	bus.Subscribe(core.KindFriendAdded, func(ctx context.Context, a core.Activity) { hub.Broadcast(ctx, a) })

	http.Handle("/ws", ws.Handler(hub))
	http.HandleFunc("/users/", func(w http.ResponseWriter, r *http.Request) {
		// routes: POST /users/{id}/progress?achievement=PLANTS_NUMBER&value=3,
		// POST /users/{id}/plants, POST /users/{id}/friends/{fid},
		// GET /users/{id}/feed
		parts := split(r.URL.Path, '/')
		if len(parts) < 2 {
			http.NotFound(w, r)
			return
		}
		user := core.UserID(parts[1])
		switch r.Method {
		case http.MethodPost:
			if len(parts) >= 3 && parts[2] == "progress" {
				achievement := core.AchievementType(r.URL.Query().Get("achievement"))
				value, _ := strconv.ParseInt(r.URL.Query().Get("value"), 10, 64)
				activity, err := svc.RecordProgress(ctx, user, achievement, value)
				writeJSON(w, map[string]any{"earned": activity != nil, "err": errString(err)})
				return
			}
			if len(parts) >= 3 && parts[2] == "plants" {
				var plant core.Plant
				if err := json.NewDecoder(r.Body).Decode(&plant); err != nil {
					http.Error(w, err.Error(), 400)
					return
				}
				saved, err := svc.AddPlant(ctx, user, plant)
				writeJSON(w, map[string]any{"plant": saved, "err": errString(err)})
				return
			}
			if len(parts) >= 4 && parts[2] == "friends" {
				err := svc.AddFriend(ctx, user, core.UserID(parts[3]))
				writeJSON(w, map[string]any{"ok": err == nil, "err": errString(err)})
				return
			}
		case http.MethodGet:
			if len(parts) >= 3 && parts[2] == "feed" {
				feed, err := svc.Feed(ctx, user, 50)
				if err != nil {
					http.Error(w, err.Error(), 500)
					return
				}
				out := make([]json.RawMessage, 0, len(feed))
				for _, a := range feed {
					raw, err := core.MarshalActivity(a)
					if err != nil {
						http.Error(w, err.Error(), 500)
						return
					}
					out = append(out, raw)
				}
				writeJSON(w, out)
				return
			}
		}
		http.NotFound(w, r)
	})

	slog.Info("starting demo server on :8080")

	if err := http.ListenAndServe(":8080", nil); err != nil {
		slog.Error("demo server crashed", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func errString(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}

func split(p string, sep rune) []string {
	var parts []string
	current := make([]rune, 0, len(p))

	for _, r := range p {
		if r == sep {
			if len(current) > 0 {
				parts = append(parts, string(current))
				current = current[:0]
			}
			continue
		}
		current = append(current, r)
	}

	if len(current) > 0 {
		parts = append(parts, string(current))
	}

	return parts
}
