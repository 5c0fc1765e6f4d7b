// internal/catalog/catalogue.go
package catalog

import (
	"fmt"
	"strings"
)

// Catalogue maps ISBN to book record and remembers insertion order for
// display. It is owned by a single session and is not safe for concurrent use.
type Catalogue struct {
	books map[string]*Book
	order []string
}

// New returns an empty catalogue.
func New() *Catalogue {
	return &Catalogue{books: make(map[string]*Book)}
}

// FromBooks builds a catalogue in the given order. ISBNs are kept exactly as
// given. It rejects duplicate ISBNs and records that break the quantity
// invariant.
func FromBooks(books []Book) (*Catalogue, error) {
	c := New()
	for _, b := range books {
		if _, err := c.add(b); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalogue) Len() int {
	return len(c.order)
}

// Books returns copies of every record in insertion order.
func (c *Catalogue) Books() []Book {
	out := make([]Book, 0, len(c.order))
	for _, isbn := range c.order {
		out = append(out, *c.books[isbn])
	}
	return out
}

// Get returns a copy of the record stored under isbn.
func (c *Catalogue) Get(isbn string) (Book, error) {
	b, ok := c.books[isbn]
	if !ok {
		return Book{}, fmt.Errorf("%w: %s", ErrNotFound, isbn)
	}
	return *b, nil
}

// Register adds a new record at the end of the display order. Surrounding
// whitespace is stripped from the ISBN before it becomes the key.
func (c *Catalogue) Register(b Book) (Book, error) {
	b.ISBN = strings.TrimSpace(b.ISBN)
	return c.add(b)
}

func (c *Catalogue) add(b Book) (Book, error) {
	if err := validate(b); err != nil {
		return Book{}, err
	}
	if _, exists := c.books[b.ISBN]; exists {
		return Book{}, fmt.Errorf("%w: %s", ErrDuplicateISBN, b.ISBN)
	}

	rec := b
	c.books[b.ISBN] = &rec
	c.order = append(c.order, b.ISBN)
	return b, nil
}

// Remove deletes the record stored under isbn and returns it.
func (c *Catalogue) Remove(isbn string) (Book, error) {
	b, ok := c.books[isbn]
	if !ok {
		return Book{}, fmt.Errorf("%w: %s", ErrNotFound, isbn)
	}
	delete(c.books, isbn)
	for i, key := range c.order {
		if key == isbn {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return *b, nil
}
