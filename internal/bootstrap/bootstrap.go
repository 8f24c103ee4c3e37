// Package bootstrap wires the converter's dependencies from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/maauso/epub2audio/internal/audio"
	"github.com/maauso/epub2audio/internal/book"
	"github.com/maauso/epub2audio/internal/config"
	"github.com/maauso/epub2audio/internal/epub"
	"github.com/maauso/epub2audio/internal/pipeline"
	"github.com/maauso/epub2audio/internal/storage"
	"github.com/maauso/epub2audio/internal/tts"
)

// ErrUnknownEngine is returned for a TTS_ENGINE without a backend.
var ErrUnknownEngine = errors.New("unknown TTS engine")

// Dependencies holds everything the CLI needs for one run.
type Dependencies struct {
	Service *pipeline.Service
	Books   book.Repository

	closers []io.Closer
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, publisher, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	synth, closer, err := newSynthesizer(cfg)
	if err != nil {
		return nil, err
	}
	deps := &Dependencies{}
	if closer != nil {
		deps.closers = append(deps.closers, closer)
	}
	logger.Info("speech synthesizer configured",
		slog.String("engine", cfg.TTSEngine),
		slog.String("voice", cfg.TTSVoice),
	)

	assembler, err := audio.NewFFmpegAssembler(cfg.FFmpegPath)
	if err != nil {
		_ = deps.Close()
		return nil, fmt.Errorf("create audio assembler: %w", err)
	}

	extractor := epub.NewExtractor(logger, epub.WithMinChapterLength(cfg.MinChapterChars))
	repo := book.NewMemoryRepository()

	opts := []pipeline.Option{
		pipeline.WithVoice(cfg.TTSVoice),
		pipeline.WithMaxChunkLength(cfg.ChunkMaxChars),
		pipeline.WithChapterWorkers(cfg.ChapterWorkers),
		pipeline.WithMissingChunkPolicy(pipeline.MissingChunkPolicy(cfg.MissingChunkPolicy)),
	}
	if publisher != nil {
		opts = append(opts, pipeline.WithPublisher(publisher))
	}

	deps.Service = pipeline.NewService(extractor, synth, assembler, store, repo, logger, opts...)
	deps.Books = repo
	return deps, nil
}

// Close releases connections held by the synthesizer.
func (d *Dependencies) Close() error {
	var errs []error
	for _, c := range d.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// newSynthesizer builds the backend selected by TTS_ENGINE. The returned
// closer is nil for backends without connections.
func newSynthesizer(cfg *config.Config) (tts.Synthesizer, io.Closer, error) {
	switch tts.Engine(cfg.TTSEngine) {
	case tts.EngineCoqui:
		opts := []tts.CoquiOption{
			tts.WithTimeout(cfg.SynthTimeout),
			tts.WithMaxRetries(cfg.SynthMaxRetries),
		}
		if cfg.SynthRateLimit > 0 {
			opts = append(opts, tts.WithRateLimit(cfg.SynthRateLimit))
		}
		client, err := tts.NewCoquiClient(cfg.CoquiURL, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create Coqui client: %w", err)
		}
		return client, nil, nil

	case tts.EnginePiper:
		p, err := tts.NewPiperSynthesizer(cfg.PiperPath, cfg.PiperModel)
		if err != nil {
			return nil, nil, fmt.Errorf("create Piper synthesizer: %w", err)
		}
		return p, nil, nil

	case tts.EngineYandex:
		client, err := tts.NewYandexClient(tts.YandexConfig{
			APIKey:   cfg.YandexAPIKey,
			FolderID: cfg.YandexFolderID,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create Yandex client: %w", err)
		}
		return client, client, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.TTSEngine)
	}
}

// initStorage creates local scratch storage and, when configured, an S3
// publisher on top of it.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, storage.Publisher, error) {
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Storage(ctx, cfg.TempDir, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 publishing configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("prefix", cfg.S3Prefix),
		)
		return s3Store, s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil, nil
}
