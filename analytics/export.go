package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"bloomfeed/core"
)

// Snapshot is a point-in-time summary of feed activity for one day,
// suitable for shipping to external analytics sinks.
type Snapshot struct {
	Day                string                         `json:"day"`
	CreatedAt          time.Time                      `json:"created_at"`
	ActiveUsers        int                            `json:"active_users"`
	Activities         int64                          `json:"activities"`
	ActivitiesByKind   map[core.ActivityKind]int64    `json:"activities_by_kind"`
	AchievementsByType map[core.AchievementType]int64 `json:"achievements_by_type"`
	TopAchievements    []core.AchievementType         `json:"top_achievements"`
}

// Snapshot summarizes the tracked metrics for the given day key.
func (m *FeedMetrics) Snapshot(day string) *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byKind := make(map[core.ActivityKind]int64, len(m.activitiesByKind))
	for kind, n := range m.activitiesByKind {
		byKind[kind] = n
	}
	byType := make(map[core.AchievementType]int64, len(m.achievementsByType))
	for t, n := range m.achievementsByType {
		byType[t] = n
	}

	return &Snapshot{
		Day:                day,
		CreatedAt:          time.Now().UTC(),
		ActiveUsers:        len(m.dailyActiveUsers[day]),
		Activities:         m.activitiesByDay[day],
		ActivitiesByKind:   byKind,
		AchievementsByType: byType,
		TopAchievements:    m.topAchievementsLocked(3),
	}
}

// Exporter defines the interface for exporting analytics snapshots
type Exporter interface {
	Export(ctx context.Context, snap *Snapshot) error
	Flush(ctx context.Context) error
	Close() error
}

// HTTPExporter exports snapshots to an external HTTP endpoint
type HTTPExporter struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	buffer     []*Snapshot
	batchSize  int
}

func NewHTTPExporter(endpoint, apiKey string, batchSize int) *HTTPExporter {
	return &HTTPExporter{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		buffer:    make([]*Snapshot, 0, batchSize),
		batchSize: batchSize,
	}
}

func (e *HTTPExporter) Export(ctx context.Context, snap *Snapshot) error {
	e.buffer = append(e.buffer, snap)

	if len(e.buffer) >= e.batchSize {
		return e.Flush(ctx)
	}

	return nil
}

func (e *HTTPExporter) Flush(ctx context.Context) error {
	if len(e.buffer) == 0 {
		return nil
	}

	payload, err := json.Marshal(e.buffer)
	if err != nil {
		return fmt.Errorf("failed to marshal analytics snapshots: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send analytics snapshots: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("analytics export failed with status %d: %s", resp.StatusCode, string(body))
	}

	// Clear buffer on successful export
	e.buffer = e.buffer[:0]
	return nil
}

func (e *HTTPExporter) Close() error {
	// Flush any remaining data
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return e.Flush(ctx)
}

// WriterExporter writes snapshots as indented JSON (for debugging and logs)
type WriterExporter struct {
	out    io.Writer
	prefix string
}

func NewWriterExporter(out io.Writer, prefix string) *WriterExporter {
	return &WriterExporter{out: out, prefix: prefix}
}

func (e *WriterExporter) Export(ctx context.Context, snap *Snapshot) error {
	jsonData, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(e.out, "%s %s\n", e.prefix, jsonData)
	return err
}

func (e *WriterExporter) Flush(ctx context.Context) error {
	return nil
}

func (e *WriterExporter) Close() error {
	return nil
}

// MultiExporter fans snapshots out to several exporters, continuing
// past individual failures.
type MultiExporter struct {
	exporters []Exporter
}

func NewMultiExporter(exporters ...Exporter) *MultiExporter {
	return &MultiExporter{exporters: exporters}
}

func (e *MultiExporter) Export(ctx context.Context, snap *Snapshot) error {
	for _, exporter := range e.exporters {
		if err := exporter.Export(ctx, snap); err != nil {
			fmt.Printf("Export error: %v\n", err)
		}
	}
	return nil
}

func (e *MultiExporter) Flush(ctx context.Context) error {
	for _, exporter := range e.exporters {
		if err := exporter.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (e *MultiExporter) Close() error {
	var lastErr error
	for _, exporter := range e.exporters {
		if err := exporter.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
