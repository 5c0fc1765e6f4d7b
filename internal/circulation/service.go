// internal/circulation/service.go
package circulation

import (
	"context"

	"libralyze/internal/catalog"
	"libralyze/internal/eventstore"
)

// Service defines the interface for the circulation service. Every successful
// call has been saved to the catalogue store by the time it returns.
type Service interface {
	Issue(ctx context.Context, isbn string) (catalog.Book, error)
	Return(ctx context.Context, isbn string) (catalog.Book, error)
	Register(ctx context.Context, book catalog.Book) (catalog.Book, error)
}

// Journal records circulation events per ISBN.
type Journal interface {
	Append(ctx context.Context, aggregateID string, events ...eventstore.Event) error
}
