// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"libralyze/internal/catalog"
	"libralyze/internal/eventstore"
	"libralyze/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// service implements the Service interface.
type service struct {
	catalogue  *catalog.Catalogue
	store      store.Store
	journal    Journal
	username   string
	logger     *slog.Logger
	tracer     trace.Tracer
	operations metric.Int64Counter
	now        func() time.Time
}

type Option func(*service)

// WithJournal records every successful operation in j.
func WithJournal(j Journal) Option {
	return func(s *service) { s.journal = j }
}

// WithUsername sets the identity stamped on journaled events.
func WithUsername(username string) Option {
	return func(s *service) { s.username = username }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *service) { s.logger = logger }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *service) { s.tracer = tp.Tracer("libralyze/circulation") }
}

func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *service) { s.operations = newOperationsCounter(mp.Meter("libralyze/circulation")) }
}

// NewService creates a new circulation service working on c and saving
// through st.
func NewService(c *catalog.Catalogue, st store.Store, opts ...Option) Service {
	s := &service{
		catalogue: c,
		store:     st,
		logger:    slog.Default(),
		tracer:    otel.Tracer("libralyze/circulation"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.operations == nil {
		s.operations = newOperationsCounter(otel.Meter("libralyze/circulation"))
	}
	return s
}

func newOperationsCounter(meter metric.Meter) metric.Int64Counter {
	counter, err := meter.Int64Counter("libralyze.circulation.operations",
		metric.WithDescription("Circulation operations by type and outcome"),
	)
	if err != nil {
		return noop.Int64Counter{}
	}
	return counter
}

// Issue lends out one copy of isbn.
func (s *service) Issue(ctx context.Context, isbn string) (catalog.Book, error) {
	return s.mutate(ctx, "issue", isbn,
		func() (catalog.Book, error) { return s.catalogue.Issue(isbn) },
		func() error {
			_, err := s.catalogue.Return(isbn)
			return err
		},
		func(b catalog.Book) (string, any) {
			return EventBookIssued, BookIssuedEvent{
				ISBN:      b.ISBN,
				Title:     b.Title,
				Remaining: b.Quantity,
				IssuedBy:  s.username,
				IssuedAt:  s.now().UTC(),
			}
		},
	)
}

// Return takes back one copy of isbn.
func (s *service) Return(ctx context.Context, isbn string) (catalog.Book, error) {
	return s.mutate(ctx, "return", isbn,
		func() (catalog.Book, error) { return s.catalogue.Return(isbn) },
		func() error {
			_, err := s.catalogue.Issue(isbn)
			return err
		},
		func(b catalog.Book) (string, any) {
			return EventBookReturned, BookReturnedEvent{
				ISBN:       b.ISBN,
				Title:      b.Title,
				Available:  b.Quantity,
				ReturnedBy: s.username,
				ReturnedAt: s.now().UTC(),
			}
		},
	)
}

// Register adds a new book to the catalogue.
func (s *service) Register(ctx context.Context, book catalog.Book) (catalog.Book, error) {
	isbn := strings.TrimSpace(book.ISBN)
	return s.mutate(ctx, "register", isbn,
		func() (catalog.Book, error) { return s.catalogue.Register(book) },
		func() error {
			_, err := s.catalogue.Remove(isbn)
			return err
		},
		func(b catalog.Book) (string, any) {
			return EventBookRegistered, BookRegisteredEvent{
				ISBN:         b.ISBN,
				Title:        b.Title,
				Author:       b.Author,
				Genre:        b.Genre,
				Year:         b.Year,
				Quantity:     b.Quantity,
				RegisteredBy: s.username,
				RegisteredAt: s.now().UTC(),
			}
		},
	)
}

// mutate applies a catalogue change, saves it, and journals it. A failed save
// undoes the change so memory never runs ahead of the store.
func (s *service) mutate(
	ctx context.Context,
	op string,
	isbn string,
	apply func() (catalog.Book, error),
	compensate func() error,
	event func(catalog.Book) (string, any),
) (catalog.Book, error) {
	ctx, span := s.tracer.Start(ctx, "circulation."+op,
		trace.WithAttributes(
			attribute.String("book.isbn", isbn),
			attribute.String("user.name", s.username),
		),
	)
	defer span.End()

	book, err := apply()
	if err != nil {
		s.count(ctx, op, outcome(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome(err))
		return catalog.Book{}, err
	}

	if err := s.store.Save(ctx, s.catalogue); err != nil {
		s.logger.WarnContext(ctx, "save failed, rolling back catalogue change",
			"operation", op, "isbn", isbn, "error", err)
		if cerr := compensate(); cerr != nil {
			s.logger.ErrorContext(ctx, "failed to compensate catalogue change",
				"operation", op, "isbn", isbn, "error", cerr)
		}
		s.count(ctx, op, "storage_error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage_error")
		return catalog.Book{}, fmt.Errorf("%s %s: %w", op, isbn, err)
	}

	eventType, payload := event(book)
	s.appendEvent(ctx, book.ISBN, eventType, payload)

	s.count(ctx, op, "ok")
	span.SetAttributes(attribute.Int("book.quantity", book.Quantity))
	s.logger.DebugContext(ctx, "circulation operation applied",
		"operation", op, "isbn", book.ISBN, "quantity", book.Quantity)
	return book, nil
}

// appendEvent writes to the journal. The catalogue is already saved at this
// point, so a journal failure is logged and not returned.
func (s *service) appendEvent(ctx context.Context, isbn, eventType string, payload any) {
	if s.journal == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to marshal event", "event", eventType, "isbn", isbn, "error", err)
		return
	}

	event := eventstore.Event{
		ID:          uuid.New(),
		AggregateID: isbn,
		EventType:   eventType,
		EventData:   data,
		Metadata:    map[string]string{"username": s.username},
	}
	if err := s.journal.Append(ctx, isbn, event); err != nil {
		s.logger.WarnContext(ctx, "failed to journal circulation event",
			"event", eventType, "isbn", isbn, "error", err)
	}
}

func (s *service) count(ctx context.Context, op, result string) {
	s.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", result),
	))
}

func outcome(err error) string {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return "not_found"
	case errors.Is(err, catalog.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, catalog.ErrDuplicateISBN):
		return "duplicate"
	case errors.Is(err, catalog.ErrInvalidBook):
		return "invalid"
	}
	return "error"
}
