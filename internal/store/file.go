// internal/store/file.go
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"libralyze/internal/catalog"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// record is the persisted book object. The ISBN lives in the pair key only.
type record struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Genre    string `json:"genre"`
	Year     int    `json:"year"`
	Quantity int    `json:"quantity"`
}

// FileStore keeps the catalogue in a JSON file holding an array of
// [isbn, book] pairs.
type FileStore struct {
	path   string
	tracer trace.Tracer
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:   path,
		tracer: otel.Tracer("libralyze/store"),
	}
}

func (s *FileStore) Path() string {
	return s.path
}

// Load reads the file. A missing, unreadable or malformed file, or one that
// repeats an ISBN, fails with ErrStorage.
func (s *FileStore) Load(ctx context.Context) (*catalog.Catalogue, error) {
	_, span := s.tracer.Start(ctx, "store.file.load",
		trace.WithAttributes(attribute.String("file.path", s.path)),
	)
	defer span.End()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, s.fail(span, "read", err)
	}

	books, err := decodePairs(data)
	if err != nil {
		return nil, s.fail(span, "decode", err)
	}

	c, err := catalog.FromBooks(books)
	if err != nil {
		return nil, s.fail(span, "decode", err)
	}

	span.SetAttributes(attribute.Int("books.loaded", c.Len()))
	return c, nil
}

// Save replaces the file with the current catalogue. The data is written to
// a temporary file in the same directory and renamed over the old one.
func (s *FileStore) Save(ctx context.Context, c *catalog.Catalogue) error {
	_, span := s.tracer.Start(ctx, "store.file.save",
		trace.WithAttributes(
			attribute.String("file.path", s.path),
			attribute.Int("books.count", c.Len()),
		),
	)
	defer span.End()

	data, err := encodePairs(c.Books())
	if err != nil {
		return s.fail(span, "encode", err)
	}

	if err := writeFileAtomic(s.path, data); err != nil {
		return s.fail(span, "write", err)
	}
	return nil
}

func (s *FileStore) fail(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, op)
	return fmt.Errorf("%w: %s %s: %w", ErrStorage, op, s.path, err)
}

func decodePairs(data []byte) ([]catalog.Book, error) {
	var pairs [][]jsoniter.RawMessage
	if err := json.Unmarshal(data, &pairs); err != nil {
		return nil, err
	}

	books := make([]catalog.Book, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, fmt.Errorf("entry %d: want [isbn, book] pair, got %d elements", i, len(pair))
		}
		var isbn string
		if err := json.Unmarshal(pair[0], &isbn); err != nil {
			return nil, fmt.Errorf("entry %d: isbn: %w", i, err)
		}
		var rec record
		if err := json.Unmarshal(pair[1], &rec); err != nil {
			return nil, fmt.Errorf("entry %d: book %s: %w", i, isbn, err)
		}
		books = append(books, catalog.Book{
			ISBN:     isbn,
			Title:    rec.Title,
			Author:   rec.Author,
			Genre:    rec.Genre,
			Year:     rec.Year,
			Quantity: rec.Quantity,
		})
	}
	return books, nil
}

func encodePairs(books []catalog.Book) ([]byte, error) {
	pairs := make([][]any, 0, len(books))
	for _, b := range books {
		pairs = append(pairs, []any{b.ISBN, record{
			Title:    b.Title,
			Author:   b.Author,
			Genre:    b.Genre,
			Year:     b.Year,
			Quantity: b.Quantity,
		}})
	}
	return json.MarshalIndent(pairs, "", "  ")
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
