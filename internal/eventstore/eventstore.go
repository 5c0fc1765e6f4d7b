// internal/eventstore/eventstore.go
package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
	ErrEmptyAggregate      = errors.New("aggregate id is required")
)

const eventsSchema = `
	CREATE TABLE IF NOT EXISTS circulation_events (
		id           UUID PRIMARY KEY,
		aggregate_id TEXT NOT NULL,
		event_type   TEXT NOT NULL,
		event_data   JSONB NOT NULL,
		metadata     JSONB,
		version      INT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (aggregate_id, version)
	)
`

// Event is one entry in a book's circulation history. AggregateID is the
// book's ISBN.
type Event struct {
	ID          uuid.UUID         `json:"id"`
	AggregateID string            `json:"aggregate_id"`
	EventType   string            `json:"event_type"`
	EventData   []byte            `json:"event_data"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Version     int               `json:"version"`
	CreatedAt   time.Time         `json:"created_at"`
}

// EventStore appends circulation events to PostgreSQL.
type EventStore struct {
	db     *sql.DB
	tracer trace.Tracer
	now    func() time.Time
}

func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{
		db:     db,
		tracer: otel.Tracer("libralyze/eventstore"),
		now:    time.Now,
	}
}

// EnsureSchema creates the events table when it does not exist yet.
func (es *EventStore) EnsureSchema(ctx context.Context) error {
	if _, err := es.db.ExecContext(ctx, eventsSchema); err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	return nil
}

// Append stores events after the aggregate's current version. Versions are
// assigned here; a concurrent writer that claims the same version makes the
// append fail with ErrConcurrencyConflict.
func (es *EventStore) Append(ctx context.Context, aggregateID string, events ...Event) error {
	ctx, span := es.tracer.Start(ctx, "eventstore.append",
		trace.WithAttributes(
			attribute.String("aggregate.id", aggregateID),
			attribute.Int("event.count", len(events)),
		),
	)
	defer span.End()

	if aggregateID == "" {
		return fail(span, ErrEmptyAggregate)
	}
	if len(events) == 0 {
		return nil
	}

	tx, err := es.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelSerializable,
	})
	if err != nil {
		return fail(span, fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback()

	var currentVersion int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM circulation_events
		WHERE aggregate_id = $1
	`, aggregateID).Scan(&currentVersion)
	if err != nil {
		return fail(span, fmt.Errorf("query current version: %w", err))
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO circulation_events (id, aggregate_id, event_type, event_data, metadata, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fail(span, fmt.Errorf("prepare statement: %w", err))
	}
	defer stmt.Close()

	for i, event := range events {
		if event.ID == uuid.Nil {
			event.ID = uuid.New()
		}
		version := currentVersion + i + 1

		metadataJSON, err := json.Marshal(event.Metadata)
		if err != nil {
			return fail(span, fmt.Errorf("marshal metadata for event %d: %w", i, err))
		}

		_, err = stmt.ExecContext(ctx,
			event.ID,
			aggregateID,
			event.EventType,
			string(event.EventData),
			string(metadataJSON),
			version,
			es.now().UTC(),
		)
		if err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" {
				span.SetAttributes(attribute.Bool("conflict.detected", true))
				return fail(span, ErrConcurrencyConflict)
			}
			return fail(span, fmt.Errorf("insert event %d: %w", i, err))
		}

		span.AddEvent("event.appended", trace.WithAttributes(
			attribute.String("event.id", event.ID.String()),
			attribute.Int("event.version", version),
			attribute.String("event.type", event.EventType),
		))
	}

	if err := tx.Commit(); err != nil {
		return fail(span, fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// Load returns every event of an aggregate in version order.
func (es *EventStore) Load(ctx context.Context, aggregateID string) ([]Event, error) {
	ctx, span := es.tracer.Start(ctx, "eventstore.load",
		trace.WithAttributes(attribute.String("aggregate.id", aggregateID)),
	)
	defer span.End()

	rows, err := es.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, event_data, metadata, version, created_at
		FROM circulation_events
		WHERE aggregate_id = $1
		ORDER BY version ASC
	`, aggregateID)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query events: %w", err))
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var data, metadataJSON []byte

		err := rows.Scan(
			&event.ID,
			&event.AggregateID,
			&event.EventType,
			&data,
			&metadataJSON,
			&event.Version,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fail(span, fmt.Errorf("scan event: %w", err))
		}
		event.EventData = data

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &event.Metadata); err != nil {
				return nil, fail(span, fmt.Errorf("decode metadata of event %s: %w", event.ID, err))
			}
		}

		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate events: %w", err))
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
