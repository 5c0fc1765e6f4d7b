// internal/circulation/domain.go
package circulation

import (
	"time"
)

const (
	EventBookIssued     = "BookIssued"
	EventBookReturned   = "BookReturned"
	EventBookRegistered = "BookRegistered"
)

// BookIssuedEvent is journaled when a copy leaves the library.
type BookIssuedEvent struct {
	ISBN      string    `json:"isbn"`
	Title     string    `json:"title"`
	Remaining int       `json:"remaining"`
	IssuedBy  string    `json:"issued_by"`
	IssuedAt  time.Time `json:"issued_at"`
}

// BookReturnedEvent is journaled when a copy comes back.
type BookReturnedEvent struct {
	ISBN       string    `json:"isbn"`
	Title      string    `json:"title"`
	Available  int       `json:"available"`
	ReturnedBy string    `json:"returned_by"`
	ReturnedAt time.Time `json:"returned_at"`
}

// BookRegisteredEvent is journaled when a new record enters the catalogue.
type BookRegisteredEvent struct {
	ISBN         string    `json:"isbn"`
	Title        string    `json:"title"`
	Author       string    `json:"author"`
	Genre        string    `json:"genre"`
	Year         int       `json:"year"`
	Quantity     int       `json:"quantity"`
	RegisteredBy string    `json:"registered_by"`
	RegisteredAt time.Time `json:"registered_at"`
}
