// internal/catalog/lending.go
package catalog

import "fmt"

// Issue lends out one copy of isbn. Every call takes one more copy off the
// shelf. The catalogue is left untouched when the book is unknown or has no
// copies left.
func (c *Catalogue) Issue(isbn string) (Book, error) {
	b, ok := c.books[isbn]
	if !ok {
		return Book{}, fmt.Errorf("%w: %s", ErrNotFound, isbn)
	}
	if b.Quantity <= 0 {
		return Book{}, fmt.Errorf("%w: %s", ErrOutOfStock, isbn)
	}
	b.Quantity--
	return *b, nil
}

// Return puts one copy of isbn back on the shelf. Unknown books are rejected;
// use Register to add a new record.
func (c *Catalogue) Return(isbn string) (Book, error) {
	b, ok := c.books[isbn]
	if !ok {
		return Book{}, fmt.Errorf("%w: %s", ErrNotFound, isbn)
	}
	b.Quantity++
	return *b, nil
}
