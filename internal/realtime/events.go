package realtime

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/seuros/kohort/internal/logging"
	"github.com/seuros/kohort/internal/models"
)

// ChannelName is the PostgreSQL notification channel shared by every process
// attached to the same database.
const ChannelName = "kohort_upload_events"

// Event types.
const (
	UploadCompleted = "upload.completed"
	UploadFailed    = "upload.failed"
)

// EventPayload is the message pushed to websocket clients.
type EventPayload struct {
	Type       string    `json:"type"`
	UploadID   string    `json:"upload_id"`
	File       string    `json:"file"`
	Accepted   int       `json:"accepted"`
	Duplicates int       `json:"duplicates"`
	Invalid    int       `json:"invalid"`
	Summary    string    `json:"summary,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewEventPayload describes a finished upload.
func NewEventPayload(u models.Upload) EventPayload {
	eventType := UploadCompleted
	if u.Status == models.UploadFailed {
		eventType = UploadFailed
	}
	created := u.StartedAt
	if u.FinishedAt != nil {
		created = *u.FinishedAt
	}
	return EventPayload{
		Type:       eventType,
		UploadID:   u.ID,
		File:       u.File,
		Accepted:   u.Records,
		Duplicates: u.Duplicates,
		Invalid:    u.Invalid,
		Summary:    u.Summary,
		CreatedAt:  created,
	}
}

// HubPublisher broadcasts uploads to the local hub. After, when set, runs
// once per published upload.
type HubPublisher struct {
	Hub   *Hub
	After func(models.Upload)
}

// Publish implements ingest.Publisher.
func (p *HubPublisher) Publish(_ context.Context, u models.Upload) error {
	if p.After != nil {
		p.After(u)
	}
	return p.Hub.BroadcastJSON(NewEventPayload(u))
}

// PGPublisher sends uploads through pg_notify so every listening process
// can relay them.
type PGPublisher struct {
	DB *sql.DB
}

// Publish implements ingest.Publisher.
func (p *PGPublisher) Publish(ctx context.Context, u models.Upload) error {
	data, err := json.Marshal(NewEventPayload(u))
	if err != nil {
		return fmt.Errorf("failed to encode upload event: %w", err)
	}
	if _, err := p.DB.ExecContext(ctx, "SELECT pg_notify($1, $2)", ChannelName, string(data)); err != nil {
		return fmt.Errorf("failed to send upload notification: %w", err)
	}
	return nil
}

// StartListener relays notifications on ChannelName to hub until ctx is
// done. onEvent, when set, sees each decoded payload first.
func StartListener(ctx context.Context, databaseURL string, hub *Hub, onEvent func(EventPayload)) error {
	log := logging.Component("realtime")
	listener := pq.NewListener(databaseURL, 5*time.Second, time.Minute, func(event pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("realtime listener event", "event", event, "error", err)
		}
	})

	if err := listener.Listen(ChannelName); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to listen on %s: %w", ChannelName, err)
	}

	go func() {
		defer func() {
			_ = listener.Close()
		}()

		ping := time.NewTicker(time.Minute)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				// nil after a reconnect
				if n == nil {
					continue
				}
				relay(hub, []byte(n.Extra), onEvent)
			case <-ping.C:
				if err := listener.Ping(); err != nil {
					log.Warn("realtime listener ping failed", "error", err)
				}
			}
		}
	}()

	return nil
}

func relay(hub *Hub, raw []byte, onEvent func(EventPayload)) {
	if onEvent != nil {
		var payload EventPayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			logging.Component("realtime").Warn("ignoring malformed notification", "error", err)
			return
		}
		onEvent(payload)
	}
	hub.Broadcast(raw)
}
