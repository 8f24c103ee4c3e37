// Package epub extracts narrative chapter text from EPUB containers.
package epub

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"
)

// DefaultMinChapterLength is the number of characters a cleaned document must
// exceed to count as a chapter.
const DefaultMinChapterLength = 100

// Chapter is one narrative unit extracted from a book.
type Chapter struct {
	// Index is the 1-based position among accepted chapters.
	Index int
	// Href is the manifest href of the source document.
	Href string
	// Text is the cleaned, whitespace-normalized narrative text.
	Text string
}

// Extractor reads chapters out of EPUB files.
type Extractor struct {
	minLength int
	logger    *slog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithMinChapterLength sets the minimum length threshold. A document is
// accepted only if its cleaned text is strictly longer than n characters.
func WithMinChapterLength(n int) ExtractorOption {
	return func(e *Extractor) {
		if n >= 0 {
			e.minLength = n
		}
	}
}

// NewExtractor creates a new Extractor.
func NewExtractor(logger *slog.Logger, opts ...ExtractorOption) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Extractor{
		minLength: DefaultMinChapterLength,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the chapters of the book at path in manifest order.
// Documents whose cleaned text is too short are dropped. An empty result is
// not an error; a container that cannot be read is.
func (e *Extractor) Extract(ctx context.Context, path string) ([]Chapter, error) {
	a, err := openArchive(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = a.Close() }()

	docs, err := a.documents()
	if err != nil {
		return nil, err
	}

	var chapters []Chapter
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("epub: extraction cancelled: %w", err)
		}

		raw, err := a.read(doc.name)
		if err != nil {
			e.logger.Warn("skipping unreadable document",
				slog.String("href", doc.href),
				slog.String("error", err.Error()),
			)
			continue
		}

		text, err := CleanHTML(bytes.NewReader(raw))
		if err != nil {
			e.logger.Warn("skipping unparsable document",
				slog.String("href", doc.href),
				slog.String("error", err.Error()),
			)
			continue
		}

		length := utf8.RuneCountInString(text)
		if length <= e.minLength {
			e.logger.Info("skipping short or empty document",
				slog.String("href", doc.href),
				slog.Int("chars", length),
			)
			continue
		}

		chapters = append(chapters, Chapter{
			Index: len(chapters) + 1,
			Href:  doc.href,
			Text:  text,
		})
		e.logger.Info("found chapter",
			slog.Int("chapter", len(chapters)),
			slog.String("href", doc.href),
			slog.Int("chars", length),
		)
	}

	e.logger.Info("extracted chapters",
		slog.String("path", path),
		slog.Int("documents", len(docs)),
		slog.Int("chapters", len(chapters)),
	)

	return chapters, nil
}
