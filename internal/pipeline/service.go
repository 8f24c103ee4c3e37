// Package pipeline drives the conversion of a directory of EPUB files into
// per-chapter MP3 audiobooks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/epub2audio/internal/audio"
	"github.com/maauso/epub2audio/internal/book"
	"github.com/maauso/epub2audio/internal/epub"
	"github.com/maauso/epub2audio/internal/media"
	"github.com/maauso/epub2audio/internal/storage"
	"github.com/maauso/epub2audio/internal/text"
	"github.com/maauso/epub2audio/internal/tts"
)

// MissingChunkPolicy decides what happens to a chapter when some of its
// segments produced no audio file even though synthesis reported success.
// A synthesis error always fails the chapter.
type MissingChunkPolicy string

const (
	// PolicySkip assembles the chapter from the clips that exist.
	PolicySkip MissingChunkPolicy = "skip"
	// PolicyFail fails the chapter if any clip is missing.
	PolicyFail MissingChunkPolicy = "fail"
)

// IsValid returns true if the policy is known.
func (p MissingChunkPolicy) IsValid() bool {
	return p == PolicySkip || p == PolicyFail
}

// ErrMissingChunks is returned under PolicyFail for a chapter where the
// synthesizer reported success for a segment but left no audio behind.
var ErrMissingChunks = errors.New("chapter has chunks without audio")

// ChapterExtractor yields the chapters of one EPUB file.
type ChapterExtractor interface {
	Extract(ctx context.Context, path string) ([]epub.Chapter, error)
}

// Summary is the outcome of a Run.
type Summary struct {
	// Books holds a snapshot of every book in input order.
	Books []*book.Book

	BooksCompleted  int
	BooksSkipped    int
	BooksFailed     int
	ChaptersWritten int
	ChaptersFailed  int
}

func (s *Summary) add(b *book.Book) {
	s.Books = append(s.Books, b)
	switch b.Status {
	case book.StatusCompleted:
		s.BooksCompleted++
	case book.StatusSkipped:
		s.BooksSkipped++
	case book.StatusFailed:
		s.BooksFailed++
	}
	completed, failed := b.Counts()
	s.ChaptersWritten += completed
	s.ChaptersFailed += failed
}

// Service converts books chapter by chapter.
type Service struct {
	extractor ChapterExtractor
	synth     tts.Synthesizer
	assembler audio.Assembler
	store     storage.Storage
	repo      book.Repository
	publisher storage.Publisher
	prober    media.Prober
	logger    *slog.Logger

	voice       string
	maxChunkLen int
	workers     int
	policy      MissingChunkPolicy
}

// Option configures a Service.
type Option func(*Service)

// WithVoice sets the speaker passed to the synthesizer.
func WithVoice(voice string) Option {
	return func(s *Service) {
		s.voice = voice
	}
}

// WithMaxChunkLength sets the segment length limit in characters.
func WithMaxChunkLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxChunkLen = n
		}
	}
}

// WithChapterWorkers sets how many chapters of a book are converted at once.
func WithChapterWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithMissingChunkPolicy sets the policy for segments that produced no audio.
// Unknown policies are ignored.
func WithMissingChunkPolicy(p MissingChunkPolicy) Option {
	return func(s *Service) {
		if p.IsValid() {
			s.policy = p
		}
	}
}

// WithPublisher uploads every finished chapter.
func WithPublisher(p storage.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithProber replaces the MP3 duration probe.
func WithProber(p media.Prober) Option {
	return func(s *Service) {
		if p != nil {
			s.prober = p
		}
	}
}

// NewService creates a new Service.
func NewService(
	extractor ChapterExtractor,
	synth tts.Synthesizer,
	assembler audio.Assembler,
	store storage.Storage,
	repo book.Repository,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		extractor:   extractor,
		synth:       synth,
		assembler:   assembler,
		store:       store,
		repo:        repo,
		prober:      media.MP3Prober{},
		logger:      logger,
		maxChunkLen: text.DefaultMaxChunkLength,
		workers:     1,
		policy:      PolicySkip,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListEPUBs returns the .epub files directly inside dir, sorted by name.
func ListEPUBs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".epub") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	slices.Sort(files)
	return files, nil
}

// Run converts every EPUB in inputDir into outputDir/<book name>/.
// Book and chapter failures are recorded and logged; the only error
// returned is the context's once it is cancelled.
func (s *Service) Run(ctx context.Context, inputDir, outputDir string) (*Summary, error) {
	summary := &Summary{}

	files, err := ListEPUBs(inputDir)
	if err != nil {
		s.logger.Warn("cannot read input directory",
			slog.String("dir", inputDir),
			slog.String("error", err.Error()),
		)
		return summary, nil
	}
	if len(files) == 0 {
		s.logger.Warn("no EPUB files found", slog.String("dir", inputDir))
		return summary, nil
	}

	s.logger.Info("starting conversion",
		slog.Int("books", len(files)),
		slog.String("input", inputDir),
		slog.String("output", outputDir),
	)

	for i, file := range files {
		b, err := s.ConvertBook(ctx, i, file, outputDir)
		summary.add(b)
		if err != nil {
			return summary, err
		}
	}

	s.logger.Info("conversion finished",
		slog.Int("books_completed", summary.BooksCompleted),
		slog.Int("books_skipped", summary.BooksSkipped),
		slog.Int("books_failed", summary.BooksFailed),
		slog.Int("chapters_written", summary.ChaptersWritten),
		slog.Int("chapters_failed", summary.ChaptersFailed),
	)
	return summary, nil
}

// ConvertBook converts one EPUB file. seq is the book's position in the
// run. It returns a snapshot of the book and a non-nil error only when ctx
// is cancelled.
func (s *Service) ConvertBook(ctx context.Context, seq int, sourcePath, outputDir string) (*book.Book, error) {
	b := book.New(seq, sourcePath)
	logger := s.logger.With(slog.String("book", b.Name))
	s.save(ctx, b)

	if err := ctx.Err(); err != nil {
		s.failBook(ctx, b, logger, err)
		return b.Clone(), err
	}

	logger.Info("processing book", slog.String("path", sourcePath))
	_ = b.StartExtraction()
	s.save(ctx, b)

	bookDir := filepath.Join(outputDir, b.Name)
	if err := os.MkdirAll(bookDir, 0o750); err != nil {
		s.failBook(ctx, b, logger, fmt.Errorf("create book directory: %w", err))
		return b.Clone(), nil
	}
	b.SetOutputDir(bookDir)

	chapters, err := s.extractor.Extract(ctx, sourcePath)
	if err != nil {
		s.failBook(ctx, b, logger, fmt.Errorf("extract chapters: %w", err))
		return b.Clone(), ctx.Err()
	}
	if len(chapters) == 0 {
		logger.Warn("no chapters found, skipping book")
		_ = b.Skip()
		s.save(ctx, b)
		return b.Clone(), nil
	}

	_ = b.StartConversion()
	records := make([]book.Chapter, len(chapters))
	for i, ch := range chapters {
		records[i] = book.Chapter{
			Index:  ch.Index,
			Href:   ch.Href,
			Chars:  utf8.RuneCountInString(ch.Text),
			Status: book.ChapterPending,
		}
	}
	b.SetChapters(records)
	s.save(ctx, b)

	if err := s.convertChapters(ctx, b, chapters); err != nil {
		s.failBook(ctx, b, logger, err)
		return b.Clone(), err
	}

	_ = b.Complete()
	s.save(ctx, b)

	completed, failed := b.Counts()
	logger.Info("book finished",
		slog.Int("chapters_written", completed),
		slog.Int("chapters_failed", failed),
	)
	return b.Clone(), nil
}

// convertChapters runs convertChapter over every chapter with at most
// s.workers in flight. It only fails when ctx is cancelled.
func (s *Service) convertChapters(ctx context.Context, b *book.Book, chapters []epub.Chapter) error {
	g := new(errgroup.Group)
	g.SetLimit(s.workers)

	for pos, ch := range chapters {
		if ctx.Err() != nil {
			break
		}
		pos, ch := pos, ch
		g.Go(func() error {
			if ctx.Err() == nil {
				s.convertChapter(ctx, b, pos, ch)
			}
			return nil
		})
	}
	_ = g.Wait()

	return ctx.Err()
}

// convertChapter produces chapter_NNN.mp3 for one chapter and records the
// outcome on b. Failures are confined to the chapter.
func (s *Service) convertChapter(ctx context.Context, b *book.Book, pos int, ch epub.Chapter) {
	snapshot := b.Clone()
	rec := snapshot.Chapters[pos]
	rec.Status = book.ChapterProcessing
	rec.StartedAt = time.Now()
	b.UpdateChapter(pos, rec)

	logger := s.logger.With(
		slog.String("book", snapshot.Name),
		slog.Int("chapter", ch.Index),
	)
	logger.Info("converting chapter", slog.Int("chars", rec.Chars))

	err := s.renderChapter(ctx, snapshot.Name, snapshot.OutputDir, &rec, ch.Text, logger)
	rec.CompletedAt = time.Now()
	if err != nil {
		rec.Status = book.ChapterFailed
		rec.Error = err.Error()
		logger.Error("chapter failed", slog.String("error", err.Error()))
	} else {
		rec.Status = book.ChapterCompleted
		logger.Info("chapter written",
			slog.String("path", rec.OutputPath),
			slog.Duration("duration", rec.Duration),
			slog.Int("chunks", rec.Chunks),
			slog.Int("skipped_chunks", len(rec.SkippedChunks)),
		)
	}

	b.UpdateChapter(pos, rec)
	s.save(ctx, b)
}

// renderChapter synthesizes, assembles and encodes one chapter, filling in
// rec as it goes.
func (s *Service) renderChapter(ctx context.Context, bookName, bookDir string, rec *book.Chapter, content string, logger *slog.Logger) error {
	chunks := text.Split(content, s.maxChunkLen)
	rec.Chunks = len(chunks)

	workDir, err := s.store.NewWorkDir(ctx, fmt.Sprintf("chapter_%03d", rec.Index))
	if err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}
	defer func() {
		if err := s.store.CleanupTemp(context.WithoutCancel(ctx), []string{workDir}); err != nil {
			logger.Warn("failed to clean up work directory", slog.String("error", err.Error()))
		}
	}()

	clips := make([]string, len(chunks))
	var missing []int
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		clips[i] = filepath.Join(workDir, fmt.Sprintf("chunk_%03d.wav", i))
		if err := s.synth.Synthesize(ctx, chunk, s.voice, clips[i]); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			rec.Synthesized = i - len(missing)
			rec.SkippedChunks = missing
			return fmt.Errorf("synthesize chunk %d: %w", i, err)
		}
		if !hasAudio(clips[i]) {
			missing = append(missing, i)
			logger.Warn("chunk produced no audio", slog.Int("chunk", i))
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(missing) > 0 && s.policy == PolicyFail {
		rec.Synthesized = len(chunks) - len(missing)
		rec.SkippedChunks = missing
		return fmt.Errorf("%w: %v", ErrMissingChunks, missing)
	}

	base := filepath.Join(bookDir, fmt.Sprintf("chapter_%03d", rec.Index))
	wavPath := base + ".wav"
	mp3Path := base + ".mp3"

	result, err := s.assembler.Concat(ctx, clips, wavPath)
	rec.Synthesized = result.Included
	rec.SkippedChunks = result.Missing
	if err != nil {
		_ = os.Remove(wavPath)
		return fmt.Errorf("concatenate clips: %w", err)
	}
	if len(result.Missing) > 0 && s.policy == PolicyFail {
		_ = os.Remove(wavPath)
		return fmt.Errorf("%w: %v", ErrMissingChunks, result.Missing)
	}

	if err := s.assembler.Transcode(ctx, wavPath, mp3Path); err != nil {
		_ = os.Remove(wavPath)
		return fmt.Errorf("transcode to mp3: %w", err)
	}
	if err := os.Remove(wavPath); err != nil {
		logger.Warn("failed to remove chapter wav", slog.String("error", err.Error()))
	}
	rec.OutputPath = mp3Path

	if d, err := s.prober.Duration(mp3Path); err != nil {
		logger.Warn("failed to probe duration", slog.String("error", err.Error()))
	} else {
		rec.Duration = d
	}

	if s.publisher != nil {
		key := path.Join(bookName, filepath.Base(mp3Path))
		url, err := s.publisher.Publish(ctx, key, mp3Path)
		if err != nil {
			rec.PublishError = err.Error()
			logger.Warn("failed to publish chapter", slog.String("error", err.Error()))
		} else {
			rec.URL = url
		}
	}

	return nil
}

// hasAudio reports whether the synthesizer left a non-empty clip at path.
func hasAudio(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func (s *Service) failBook(ctx context.Context, b *book.Book, logger *slog.Logger, err error) {
	_ = b.Fail(err.Error())
	s.save(ctx, b)
	logger.Error("book failed", slog.String("error", err.Error()))
}

func (s *Service) save(ctx context.Context, b *book.Book) {
	if err := s.repo.Save(context.WithoutCancel(ctx), b); err != nil {
		s.logger.Warn("failed to save book",
			slog.String("book", b.Name),
			slog.String("error", err.Error()),
		)
	}
}
