package eventstore

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"libralyze/internal/pgtest"
)

// setupTestDB attempts to connect to a PostgreSQL database for testing.
// It skips the test if the connection cannot be established.
func setupTestDB(t testing.TB) *sql.DB {
	t.Helper()

	db := pgtest.Open(t, pgtest.ConnString())
	store := NewEventStore(db)
	require.NoError(t, store.EnsureSchema(context.Background()))

	return db
}

type issued struct {
	ISBN     string `json:"isbn"`
	Quantity int    `json:"quantity"`
}

func TestAppendAndLoad(t *testing.T) {
	db := setupTestDB(t)
	store := NewEventStore(db)
	ctx := context.Background()
	isbn := "test-" + uuid.NewString()

	first, _ := json.Marshal(issued{ISBN: isbn, Quantity: 1})
	second, _ := json.Marshal(issued{ISBN: isbn, Quantity: 0})

	require.NoError(t, store.Append(ctx, isbn, Event{EventType: "BookIssued", EventData: first, Metadata: map[string]string{"username": "ada"}}))
	require.NoError(t, store.Append(ctx, isbn, Event{EventType: "BookIssued", EventData: second}))

	events, err := store.Load(ctx, isbn)
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, 1, events[0].Version)
	assert.Equal(t, 2, events[1].Version)
	assert.Equal(t, "ada", events[0].Metadata["username"])
	assert.NotEqual(t, uuid.Nil, events[0].ID)

	var payload issued
	require.NoError(t, json.Unmarshal(events[1].EventData, &payload))
	assert.Equal(t, 0, payload.Quantity)
}

func TestAppendDuplicateIDConflicts(t *testing.T) {
	db := setupTestDB(t)
	store := NewEventStore(db)
	ctx := context.Background()
	isbn := "test-" + uuid.NewString()
	id := uuid.New()

	require.NoError(t, store.Append(ctx, isbn, Event{ID: id, EventType: "BookReturned", EventData: []byte(`{}`)}))
	err := store.Append(ctx, isbn, Event{ID: id, EventType: "BookReturned", EventData: []byte(`{}`)})
	assert.ErrorIs(t, err, ErrConcurrencyConflict)
}

func TestAppendValidation(t *testing.T) {
	store := NewEventStore(nil)

	err := store.Append(context.Background(), "", Event{EventType: "BookIssued"})
	assert.ErrorIs(t, err, ErrEmptyAggregate)

	assert.NoError(t, store.Append(context.Background(), "978-0"))
}

func TestFailuresAreRecordedOnSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	store := NewEventStore(nil)
	store.tracer = tp.Tracer("test")

	err := store.Append(context.Background(), "", Event{EventType: "BookIssued"})
	require.ErrorIs(t, err, ErrEmptyAggregate)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "eventstore.append", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, ErrEmptyAggregate.Error(), spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func BenchmarkAppend(b *testing.B) {
	db := setupTestDB(b)
	store := NewEventStore(db)
	isbn := "bench-" + uuid.NewString()
	data, _ := json.Marshal(issued{ISBN: isbn, Quantity: 1})

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := store.Append(context.Background(), isbn, Event{EventType: "BookIssued", EventData: data}); err != nil {
			b.Fatalf("Append failed: %v", err)
		}
	}
}
