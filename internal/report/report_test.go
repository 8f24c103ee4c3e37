package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/maauso/epub2audio/internal/book"
)

func sampleBooks() []*book.Book {
	done := book.NewWithID("book-1", 0, "/in/dune.epub")
	done.Status = book.StatusCompleted
	done.OutputDir = "/out/dune"
	done.Chapters = []book.Chapter{
		{
			Index: 1, Href: "text/ch1.xhtml", Status: book.ChapterCompleted,
			Chars: 812, Chunks: 3, Synthesized: 3,
			OutputPath: "/out/dune/chapter_001.mp3", Duration: 61234 * time.Millisecond,
			URL: "https://cdn.example.com/dune/chapter_001.mp3",
		},
		{
			Index: 2, Href: "text/ch2.xhtml", Status: book.ChapterCompleted,
			Chars: 1200, Chunks: 4, Synthesized: 3, SkippedChunks: []int{2},
			OutputPath: "/out/dune/chapter_002.mp3",
		},
		{
			Index: 3, Href: "text/ch3.xhtml", Status: book.ChapterFailed,
			Chars: 300, Chunks: 1, Error: "concatenate clips: no audio clips to join",
			SkippedChunks: []int{0},
		},
	}

	skipped := book.NewWithID("book-2", 1, "/in/empty.epub")
	skipped.Status = book.StatusSkipped

	failed := book.NewWithID("book-3", 2, "/in/broken.epub")
	failed.Status = book.StatusFailed
	failed.Error = "extract chapters: open epub: zip: not a valid zip file"

	return []*book.Book{done, skipped, failed}
}

func TestBuild(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.FixedZone("CET", 3600))
	r := Build(sampleBooks(), at)

	assert.Equal(t, at.UTC(), r.GeneratedAt)
	assert.Equal(t, Totals{
		Books:           3,
		BooksCompleted:  1,
		BooksSkipped:    1,
		BooksFailed:     1,
		ChaptersWritten: 2,
		ChaptersFailed:  1,
		SkippedChunks:   2,
	}, r.Totals)

	require.Len(t, r.Books, 3)
	assert.Equal(t, []string{"dune", "empty", "broken"}, []string{r.Books[0].Name, r.Books[1].Name, r.Books[2].Name})
	assert.Equal(t, "COMPLETED", r.Books[0].Status)
	assert.Equal(t, "1m1.234s", r.Books[0].Chapters[0].Duration)
	assert.Empty(t, r.Books[0].Chapters[1].Duration)
	assert.Equal(t, []int{2}, r.Books[0].Chapters[1].SkippedChunks)
	assert.Empty(t, r.Books[1].Chapters)
	assert.Contains(t, r.Books[2].Error, "not a valid zip file")
}

func TestBuild_Empty(t *testing.T) {
	r := Build(nil, time.Now())

	assert.Zero(t, r.Totals.Books)
	assert.NotNil(t, r.Books)
}

func TestEncode(t *testing.T) {
	r := Build(sampleBooks(), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, r))

	out := buf.String()
	assert.Contains(t, out, "generated_at: 2026-01-02T03:04:05Z")
	assert.Contains(t, out, "skipped_chunks: [2]")
	assert.Contains(t, out, "url: https://cdn.example.com/dune/chapter_001.mp3")
	assert.NotContains(t, out, "publish_error")

	var decoded Report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, r.Totals, decoded.Totals)
	assert.Len(t, decoded.Books, 3)
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "run.yaml")
	r := Build(sampleBooks(), time.Now())

	require.NoError(t, Write(path, r))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: dune")
	assert.Contains(t, string(data), "status: SKIPPED")
}

func TestWrite_Unwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	err := Write(filepath.Join(blocker, "run.yaml"), Build(nil, time.Now()))
	assert.Error(t, err)
}
