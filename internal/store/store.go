// internal/store/store.go
package store

import (
	"context"
	"errors"

	"libralyze/internal/catalog"
)

// ErrStorage wraps every failure to read or write persisted catalogue state.
var ErrStorage = errors.New("storage error")

// Store loads and saves the whole catalogue.
type Store interface {
	Load(ctx context.Context) (*catalog.Catalogue, error)
	Save(ctx context.Context, c *catalog.Catalogue) error
}
