package assessment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event types emitted by the generator.
const (
	EventTestGenerated       = "test_generated"
	EventGenerationFailed    = "test_generation_failed"
	EventShortfallRemediated = "shortfall_remediated"
)

const dbTimeout = 5 * time.Second

// Event is an analytics record of a generation run.
type Event struct {
	SessionReference string         `json:"session_reference,omitempty"`
	UserID           string         `json:"user_id"`
	EventType        string         `json:"event_type"`
	Data             map[string]any `json:"data,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// EventLogger defines event logging behavior.
type EventLogger interface {
	LogEvent(ctx context.Context, event Event) error
}

// NopEventLogger ignores all events.
type NopEventLogger struct{}

func (NopEventLogger) LogEvent(context.Context, Event) error {
	return nil
}

// MemoryEventLogger stores events in memory for tests.
type MemoryEventLogger struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryEventLogger() *MemoryEventLogger {
	return &MemoryEventLogger{
		events: []Event{},
	}
}

func (l *MemoryEventLogger) LogEvent(_ context.Context, event Event) error {
	if event.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()

	return nil
}

func (l *MemoryEventLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event{}, l.events...)
}

// PostgresEventLogger inserts events into the generation_events table.
type PostgresEventLogger struct {
	pool *pgxpool.Pool
}

func NewPostgresEventLogger(pool *pgxpool.Pool) *PostgresEventLogger {
	return &PostgresEventLogger{pool: pool}
}

func (l *PostgresEventLogger) LogEvent(ctx context.Context, event Event) error {
	if l == nil || l.pool == nil {
		return fmt.Errorf("event logger pool is nil")
	}
	if event.EventType == "" {
		return fmt.Errorf("event_type is required")
	}

	payload := event.Data
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err = l.pool.Exec(ctx,
		`INSERT INTO generation_events (session_reference, user_id, event_type, data, created_at)
		 VALUES ($1::uuid, $2, $3, $4::jsonb, $5)`,
		nullIfEmpty(event.SessionReference),
		event.UserID,
		event.EventType,
		string(data),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	slog.Debug("event logged",
		"type", event.EventType,
		"session_reference", event.SessionReference,
		"user_id", event.UserID,
	)
	return nil
}

// Publisher sends raw messages to a subject. *messaging.Bus satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSEventLogger publishes events as JSON on <subject>.<event_type>.
type NATSEventLogger struct {
	pub     Publisher
	subject string
}

func NewNATSEventLogger(pub Publisher, subject string) *NATSEventLogger {
	return &NATSEventLogger{pub: pub, subject: subject}
}

func (l *NATSEventLogger) LogEvent(ctx context.Context, event Event) error {
	if l == nil || l.pub == nil {
		return fmt.Errorf("event publisher is nil")
	}
	if event.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return l.pub.Publish(ctx, l.subject+"."+event.EventType, data)
}

// MultiEventLogger fans each event out to every logger and joins their errors.
type MultiEventLogger []EventLogger

func (m MultiEventLogger) LogEvent(ctx context.Context, event Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	var errs []error
	for _, l := range m {
		if err := l.LogEvent(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
