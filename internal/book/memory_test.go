package book

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryRepository_SaveAndFind(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	b := New(0, "a.epub")

	if err := repo.Save(ctx, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	saved, err := repo.FindByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.ID != b.ID || saved.Name != "a" {
		t.Errorf("unexpected saved book: %+v", saved)
	}
}

func TestMemoryRepository_Save_Update(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	b := New(0, "a.epub")

	_ = repo.Save(ctx, b)
	_ = b.StartExtraction()
	_ = repo.Save(ctx, b)

	saved, _ := repo.FindByID(ctx, b.ID)
	if saved.Status != StatusExtracting {
		t.Errorf("expected status %s, got %s", StatusExtracting, saved.Status)
	}
}

func TestMemoryRepository_StoresCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	b := New(0, "a.epub")
	_ = repo.Save(ctx, b)

	_ = b.StartExtraction()

	saved, _ := repo.FindByID(ctx, b.ID)
	if saved.Status != StatusPending {
		t.Error("mutating the original after Save changed the stored book")
	}

	saved.Name = "changed"
	again, _ := repo.FindByID(ctx, b.ID)
	if again.Name != "a" {
		t.Error("mutating a returned book changed the stored book")
	}
}

func TestMemoryRepository_FindByID_NotFound(t *testing.T) {
	repo := NewMemoryRepository()

	_, err := repo.FindByID(context.Background(), "missing")
	if !errors.Is(err, ErrBookNotFound) {
		t.Errorf("expected ErrBookNotFound, got %v", err)
	}
}

func TestMemoryRepository_List_OrderedBySeq(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for _, seq := range []int{2, 0, 3, 1} {
		_ = repo.Save(ctx, New(seq, "book.epub"))
	}

	books, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(books) != 4 {
		t.Fatalf("expected 4 books, got %d", len(books))
	}
	for i, b := range books {
		if b.Seq != i {
			t.Errorf("position %d has Seq %d", i, b.Seq)
		}
	}
}
