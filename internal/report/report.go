// Package report renders a YAML summary of a conversion run.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maauso/epub2audio/internal/book"
)

// Report is the document written to REPORT_FILE.
type Report struct {
	GeneratedAt time.Time `yaml:"generated_at"`
	Totals      Totals    `yaml:"totals"`
	Books       []Book    `yaml:"books"`
}

// Totals aggregates outcomes over all books.
type Totals struct {
	Books           int `yaml:"books"`
	BooksCompleted  int `yaml:"books_completed"`
	BooksSkipped    int `yaml:"books_skipped"`
	BooksFailed     int `yaml:"books_failed"`
	ChaptersWritten int `yaml:"chapters_written"`
	ChaptersFailed  int `yaml:"chapters_failed"`
	SkippedChunks   int `yaml:"skipped_chunks"`
}

// Book is the per-book section of the report.
type Book struct {
	Name      string    `yaml:"name"`
	Source    string    `yaml:"source"`
	OutputDir string    `yaml:"output_dir,omitempty"`
	Status    string    `yaml:"status"`
	Error     string    `yaml:"error,omitempty"`
	Chapters  []Chapter `yaml:"chapters,omitempty"`
}

// Chapter is the per-chapter section of the report.
type Chapter struct {
	Index         int    `yaml:"index"`
	Href          string `yaml:"href"`
	Status        string `yaml:"status"`
	Chars         int    `yaml:"chars"`
	Chunks        int    `yaml:"chunks"`
	Synthesized   int    `yaml:"synthesized"`
	SkippedChunks []int  `yaml:"skipped_chunks,flow,omitempty"`
	Output        string `yaml:"output,omitempty"`
	Duration      string `yaml:"duration,omitempty"`
	URL           string `yaml:"url,omitempty"`
	PublishError  string `yaml:"publish_error,omitempty"`
	Error         string `yaml:"error,omitempty"`
}

// Build creates a report from book snapshots, keeping their order.
func Build(books []*book.Book, generatedAt time.Time) Report {
	r := Report{
		GeneratedAt: generatedAt.UTC(),
		Books:       make([]Book, 0, len(books)),
	}

	for _, b := range books {
		entry := Book{
			Name:      b.Name,
			Source:    b.SourcePath,
			OutputDir: b.OutputDir,
			Status:    string(b.Status),
			Error:     b.Error,
		}

		switch b.Status {
		case book.StatusCompleted:
			r.Totals.BooksCompleted++
		case book.StatusSkipped:
			r.Totals.BooksSkipped++
		case book.StatusFailed:
			r.Totals.BooksFailed++
		}

		for _, ch := range b.Chapters {
			c := Chapter{
				Index:         ch.Index,
				Href:          ch.Href,
				Status:        string(ch.Status),
				Chars:         ch.Chars,
				Chunks:        ch.Chunks,
				Synthesized:   ch.Synthesized,
				SkippedChunks: ch.SkippedChunks,
				Output:        ch.OutputPath,
				URL:           ch.URL,
				PublishError:  ch.PublishError,
				Error:         ch.Error,
			}
			if ch.Duration > 0 {
				c.Duration = ch.Duration.Round(time.Millisecond).String()
			}
			switch ch.Status {
			case book.ChapterCompleted:
				r.Totals.ChaptersWritten++
			case book.ChapterFailed:
				r.Totals.ChaptersFailed++
			}
			r.Totals.SkippedChunks += len(ch.SkippedChunks)
			entry.Chapters = append(entry.Chapters, c)
		}

		r.Books = append(r.Books, entry)
	}
	r.Totals.Books = len(r.Books)

	return r
}

// Encode writes r as YAML.
func Encode(w io.Writer, r Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

// Write encodes r to the file at path, creating parent directories.
func Write(path string, r Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 - path comes from operator configuration
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}

	if err := Encode(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
