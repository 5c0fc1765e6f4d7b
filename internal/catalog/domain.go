// internal/catalog/domain.go
package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidField  = errors.New("invalid search field")
	ErrNotFound      = errors.New("book not found")
	ErrOutOfStock    = errors.New("book is out of stock")
	ErrInvalidBook   = errors.New("invalid book record")
	ErrDuplicateISBN = errors.New("isbn already registered")
)

// Book is a single catalogue record. ISBN is the identity and never changes
// once the record is registered.
type Book struct {
	ISBN     string `json:"isbn"`
	Title    string `json:"title"`
	Author   string `json:"author"`
	Genre    string `json:"genre"`
	Year     int    `json:"year"`
	Quantity int    `json:"quantity"`
}

// SearchField selects which attribute a search query is matched against.
type SearchField string

const (
	FieldISBN   SearchField = "ISBN"
	FieldAuthor SearchField = "AUTHOR"
	FieldTitle  SearchField = "TITLE"
	FieldGenre  SearchField = "GENRE"
)

// SearchFields lists the recognised fields in menu order.
var SearchFields = []SearchField{FieldISBN, FieldAuthor, FieldTitle, FieldGenre}

// ParseSearchField accepts exactly the literal field names.
func ParseSearchField(s string) (SearchField, error) {
	f := SearchField(s)
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidField, s)
	}
	return f, nil
}

func (f SearchField) Valid() bool {
	switch f {
	case FieldISBN, FieldAuthor, FieldTitle, FieldGenre:
		return true
	}
	return false
}

func (f SearchField) String() string {
	return string(f)
}

func validate(b Book) error {
	if b.ISBN == "" {
		return fmt.Errorf("%w: isbn is required", ErrInvalidBook)
	}
	if b.Quantity < 0 {
		return fmt.Errorf("%w: quantity %d for %s is negative", ErrInvalidBook, b.Quantity, b.ISBN)
	}
	return nil
}
