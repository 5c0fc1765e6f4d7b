// internal/catalog/search.go
package catalog

import (
	"fmt"
	"strings"
)

// Search returns copies of the records matching query on field, in insertion
// order. ISBN is matched exactly against the key; the other fields match
// case-insensitively anywhere in the attribute. No match yields an empty,
// non-nil slice.
func (c *Catalogue) Search(field SearchField, query string) ([]Book, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidField, string(field))
	}

	out := []Book{}
	if field == FieldISBN {
		if b, ok := c.books[query]; ok {
			out = append(out, *b)
		}
		return out, nil
	}

	needle := strings.ToLower(query)
	for _, isbn := range c.order {
		b := c.books[isbn]
		if strings.Contains(strings.ToLower(attribute(b, field)), needle) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func attribute(b *Book, field SearchField) string {
	switch field {
	case FieldAuthor:
		return b.Author
	case FieldTitle:
		return b.Title
	case FieldGenre:
		return b.Genre
	}
	return b.ISBN
}
