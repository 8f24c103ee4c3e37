// Package book provides the Book aggregate that tracks the conversion of one
// EPUB file and the outcome of each of its chapters.
package book

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

// Status represents the current state of a Book.
type Status string

const (
	// StatusPending indicates the book has been discovered but not opened.
	StatusPending Status = "PENDING"
	// StatusExtracting indicates chapter text is being extracted.
	StatusExtracting Status = "EXTRACTING"
	// StatusConverting indicates chapters are being synthesized.
	StatusConverting Status = "CONVERTING"
	// StatusCompleted indicates every chapter has been attempted.
	StatusCompleted Status = "COMPLETED"
	// StatusSkipped indicates the book had no qualifying chapters.
	StatusSkipped Status = "SKIPPED"
	// StatusFailed indicates the book could not be processed at all.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

var validTransitions = map[Status][]Status{
	StatusPending:    {StatusExtracting, StatusFailed},
	StatusExtracting: {StatusConverting, StatusSkipped, StatusFailed},
	StatusConverting: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusSkipped:    {},
	StatusFailed:     {},
}

func canTransition(from, to Status) bool {
	return slices.Contains(validTransitions[from], to)
}

// ChapterStatus represents the status of a single chapter.
type ChapterStatus string

const (
	// ChapterPending indicates the chapter is waiting to be converted.
	ChapterPending ChapterStatus = "PENDING"
	// ChapterProcessing indicates the chapter is being converted.
	ChapterProcessing ChapterStatus = "PROCESSING"
	// ChapterCompleted indicates the chapter MP3 was written.
	ChapterCompleted ChapterStatus = "COMPLETED"
	// ChapterFailed indicates the chapter produced no MP3.
	ChapterFailed ChapterStatus = "FAILED"
)

// Chapter records the conversion of one extracted chapter.
type Chapter struct {
	// Index is the 1-based position in extraction order; it names the output file.
	Index int
	// Href is the archive entry the text came from.
	Href string
	// Chars is the length of the cleaned text in code points.
	Chars int
	// Chunks is the number of segments the text was split into.
	Chunks int
	// Synthesized is the number of segments that produced audio.
	Synthesized int
	// SkippedChunks holds the 0-based positions of segments with no audio.
	SkippedChunks []int
	// Status is the current conversion status.
	Status ChapterStatus
	// OutputPath is the MP3 path once written.
	OutputPath string
	// Duration is the playing time of the MP3.
	Duration time.Duration
	// URL is set when the MP3 was published.
	URL string
	// PublishError holds the upload failure, if any. It does not fail the chapter.
	PublishError string
	// Error contains the failure message if the chapter failed.
	Error string
	// StartedAt is when conversion started.
	StartedAt time.Time
	// CompletedAt is when conversion finished.
	CompletedAt time.Time
}

// Book is the conversion aggregate for one EPUB file.
type Book struct {
	mu sync.RWMutex

	// ID identifies the book within a run: its 1-based input position and name.
	ID string
	// Seq is the position of the book in the input listing.
	Seq int
	// Name is the source file name without its extension.
	Name string
	// SourcePath is the EPUB file path.
	SourcePath string
	// OutputDir is the directory chapter files are written to.
	OutputDir string
	// Status is the current book state.
	Status Status
	// Chapters holds one record per extracted chapter, in extraction order.
	Chapters []Chapter
	// Error contains the failure message if the book failed.
	Error string
	// CreatedAt is when the book was discovered.
	CreatedAt time.Time
	// UpdatedAt is when the book was last updated.
	UpdatedAt time.Time
	// StartedAt is when extraction started.
	StartedAt time.Time
	// CompletedAt is when the book reached a terminal state.
	CompletedAt time.Time
}

// New creates a PENDING book for the EPUB at sourcePath. seq is the 0-based
// position of the file in the input listing.
func New(seq int, sourcePath string) *Book {
	return NewWithID(IDFor(seq, NameFromPath(sourcePath)), seq, sourcePath)
}

// IDFor returns the ID of the book at input position seq, e.g. "002-Dune".
// A re-run over the same directory yields the same IDs.
func IDFor(seq int, name string) string {
	return fmt.Sprintf("%03d-%s", seq+1, name)
}

// NewWithID creates a PENDING book with the given ID.
func NewWithID(bookID string, seq int, sourcePath string) *Book {
	now := time.Now()
	return &Book{
		ID:         bookID,
		Seq:        seq,
		Name:       NameFromPath(sourcePath),
		SourcePath: sourcePath,
		Status:     StatusPending,
		Chapters:   make([]Chapter, 0),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// NameFromPath returns the file name of path without its extension.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// TransitionTo attempts to change the book status.
// Returns ErrInvalidTransition if the transition is not allowed.
func (b *Book) TransitionTo(status Status) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !canTransition(b.Status, status) {
		return ErrInvalidTransition
	}

	b.Status = status
	b.UpdatedAt = time.Now()

	switch status {
	case StatusExtracting:
		b.StartedAt = b.UpdatedAt
	case StatusCompleted, StatusSkipped, StatusFailed:
		b.CompletedAt = b.UpdatedAt
	}

	return nil
}

// StartExtraction transitions the book from PENDING to EXTRACTING.
func (b *Book) StartExtraction() error {
	return b.TransitionTo(StatusExtracting)
}

// StartConversion transitions the book from EXTRACTING to CONVERTING.
func (b *Book) StartConversion() error {
	return b.TransitionTo(StatusConverting)
}

// Complete transitions the book to COMPLETED.
func (b *Book) Complete() error {
	return b.TransitionTo(StatusCompleted)
}

// Skip transitions the book to SKIPPED.
func (b *Book) Skip() error {
	return b.TransitionTo(StatusSkipped)
}

// Fail transitions the book to FAILED with an error message.
func (b *Book) Fail(errMsg string) error {
	b.mu.Lock()
	b.Error = errMsg
	b.mu.Unlock()
	return b.TransitionTo(StatusFailed)
}

// GetStatus returns the current book status (thread-safe).
func (b *Book) GetStatus() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.Status
}

// IsTerminal returns true if the book is in a terminal state.
func (b *Book) IsTerminal() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(validTransitions[b.Status]) == 0
}

// SetOutputDir records the directory chapter files are written to.
func (b *Book) SetOutputDir(dir string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.OutputDir = dir
	b.UpdatedAt = time.Now()
}

// SetChapters replaces the chapter records.
func (b *Book) SetChapters(chapters []Chapter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Chapters = chapters
	b.UpdatedAt = time.Now()
}

// UpdateChapter replaces the chapter record at position pos (0-based).
// Out-of-range positions are ignored.
func (b *Book) UpdateChapter(pos int, chapter Chapter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pos >= 0 && pos < len(b.Chapters) {
		b.Chapters[pos] = chapter
		b.UpdatedAt = time.Now()
	}
}

// Counts returns the number of completed and failed chapters.
func (b *Book) Counts() (completed, failed int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.Chapters {
		switch ch.Status {
		case ChapterCompleted:
			completed++
		case ChapterFailed:
			failed++
		}
	}
	return completed, failed
}

// Clone creates a deep copy of the book for safe reads.
func (b *Book) Clone() *Book {
	b.mu.RLock()
	defer b.mu.RUnlock()

	chapters := make([]Chapter, len(b.Chapters))
	for i, ch := range b.Chapters {
		ch.SkippedChunks = slices.Clone(ch.SkippedChunks)
		chapters[i] = ch
	}

	return &Book{
		ID:          b.ID,
		Seq:         b.Seq,
		Name:        b.Name,
		SourcePath:  b.SourcePath,
		OutputDir:   b.OutputDir,
		Status:      b.Status,
		Chapters:    chapters,
		Error:       b.Error,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
		StartedAt:   b.StartedAt,
		CompletedAt: b.CompletedAt,
	}
}
