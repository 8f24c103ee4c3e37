package book

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// It holds the books of a single run.
type MemoryRepository struct {
	mu    sync.RWMutex
	books map[string]*Book
}

// NewMemoryRepository creates a new in-memory book repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		books: make(map[string]*Book),
	}
}

// Save stores a clone of the book.
func (r *MemoryRepository) Save(_ context.Context, book *Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.books[book.ID] = book.Clone()
	return nil
}

// FindByID returns a clone of the stored book.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	book, ok := r.books[id]
	if !ok {
		return nil, ErrBookNotFound
	}
	return book.Clone(), nil
}

// List returns clones of all books ordered by Seq.
func (r *MemoryRepository) List(_ context.Context) ([]*Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Book, 0, len(r.books))
	for _, book := range r.books {
		result = append(result, book.Clone())
	}
	slices.SortFunc(result, func(a, b *Book) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return result, nil
}
