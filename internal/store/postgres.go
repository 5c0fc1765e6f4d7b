// internal/store/postgres.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"libralyze/internal/catalog"
)

const booksSchema = `
	CREATE TABLE IF NOT EXISTS books (
		isbn       TEXT PRIMARY KEY,
		title      TEXT NOT NULL DEFAULT '',
		author     TEXT NOT NULL DEFAULT '',
		genre      TEXT NOT NULL DEFAULT '',
		year       INT NOT NULL DEFAULT 0,
		quantity   INT NOT NULL CHECK (quantity >= 0),
		position   INT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)
`

// PostgresStore keeps the catalogue in a single books table. Position
// preserves the display order across sessions.
type PostgresStore struct {
	db     *sql.DB
	tracer trace.Tracer
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:     db,
		tracer: otel.Tracer("libralyze/store"),
	}
}

// EnsureSchema creates the books table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, booksSchema); err != nil {
		return fmt.Errorf("%w: create books table: %w", ErrStorage, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (*catalog.Catalogue, error) {
	ctx, span := s.tracer.Start(ctx, "store.postgres.load")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT isbn, title, author, genre, year, quantity
		FROM books
		ORDER BY position ASC, isbn ASC
	`)
	if err != nil {
		return nil, s.fail(span, "query books", err)
	}
	defer rows.Close()

	var books []catalog.Book
	for rows.Next() {
		var b catalog.Book
		if err := rows.Scan(&b.ISBN, &b.Title, &b.Author, &b.Genre, &b.Year, &b.Quantity); err != nil {
			return nil, s.fail(span, "scan book", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(span, "iterate books", err)
	}

	c, err := catalog.FromBooks(books)
	if err != nil {
		return nil, s.fail(span, "build catalogue", err)
	}

	span.SetAttributes(attribute.Int("books.loaded", c.Len()))
	return c, nil
}

// Save writes every record and drops rows that are no longer in the
// catalogue, all in one transaction.
func (s *PostgresStore) Save(ctx context.Context, c *catalog.Catalogue) error {
	ctx, span := s.tracer.Start(ctx, "store.postgres.save",
		trace.WithAttributes(attribute.Int("books.count", c.Len())),
	)
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail(span, "begin transaction", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO books (isbn, title, author, genre, year, quantity, position, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (isbn) DO UPDATE
		SET title = EXCLUDED.title,
		    author = EXCLUDED.author,
		    genre = EXCLUDED.genre,
		    year = EXCLUDED.year,
		    quantity = EXCLUDED.quantity,
		    position = EXCLUDED.position,
		    updated_at = NOW()
	`)
	if err != nil {
		return s.fail(span, "prepare upsert", err)
	}
	defer stmt.Close()

	books := c.Books()
	isbns := make([]string, 0, len(books))
	for i, b := range books {
		if _, err := stmt.ExecContext(ctx, b.ISBN, b.Title, b.Author, b.Genre, b.Year, b.Quantity, i); err != nil {
			return s.fail(span, "upsert "+b.ISBN, err)
		}
		isbns = append(isbns, b.ISBN)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM books WHERE NOT (isbn = ANY($1))`, pq.Array(isbns)); err != nil {
		return s.fail(span, "delete stale books", err)
	}

	if err := tx.Commit(); err != nil {
		return s.fail(span, "commit transaction", err)
	}
	return nil
}

func (s *PostgresStore) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
