package book

import (
	"context"
	"errors"
)

// ErrBookNotFound is returned when a book cannot be found by ID.
var ErrBookNotFound = errors.New("book not found")

// Repository defines the interface for book persistence.
type Repository interface {
	// Save persists a book. If the book already exists, it is updated.
	Save(ctx context.Context, book *Book) error

	// FindByID retrieves a book by its unique identifier.
	// Returns ErrBookNotFound if the book does not exist.
	FindByID(ctx context.Context, id string) (*Book, error)

	// List returns all books ordered by Seq.
	List(ctx context.Context) ([]*Book, error)
}
