// Package main provides the epub2audio command, which converts a directory
// of EPUB books into per-chapter MP3 audiobooks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maauso/epub2audio/internal/book"
	"github.com/maauso/epub2audio/internal/bootstrap"
	"github.com/maauso/epub2audio/internal/config"
	"github.com/maauso/epub2audio/internal/report"
)

// errUsage signals a command-line mistake; usage has already been printed.
var errUsage = errors.New("invalid usage")

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("epub2audio", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env-file", config.DefaultEnvFile, "dotenv file read before the environment")
	reportFile := fs.String("report", "", "write a YAML run report to this path (overrides REPORT_FILE)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: epub2audio [flags] <input_dir> <output_dir>")
		fmt.Fprintln(stderr)
		fmt.Fprintln(stderr, "Converts every .epub in input_dir into output_dir/<book>/chapter_NNN.mp3.")
		fmt.Fprintln(stderr, "Speech engine, voice and limits are read from the environment.")
		fmt.Fprintln(stderr)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return errUsage
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errUsage
	}
	inputDir, outputDir := fs.Arg(0), fs.Arg(1)

	cfg, err := config.LoadFrom(*envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *reportFile != "" {
		cfg.ReportFile = *reportFile
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting epub2audio",
		slog.String("input", inputDir),
		slog.String("output", outputDir),
		slog.String("engine", cfg.TTSEngine),
		slog.String("log_level", cfg.LogLevel),
		slog.String("temp_dir", cfg.TempDir),
		slog.Int("chunk_max_chars", cfg.ChunkMaxChars),
		slog.Int("chapter_workers", cfg.ChapterWorkers),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("failed to release dependencies", slog.String("error", err.Error()))
		}
	}()

	_, runErr := deps.Service.Run(ctx, inputDir, outputDir)

	if cfg.ReportFile != "" {
		if err := writeReport(context.WithoutCancel(ctx), deps.Books, cfg.ReportFile, time.Now()); err != nil {
			logger.Error("failed to write report", slog.String("error", err.Error()))
		} else {
			logger.Info("report written", slog.String("path", cfg.ReportFile))
		}
	}

	if runErr != nil {
		return fmt.Errorf("conversion interrupted: %w", runErr)
	}
	return nil
}

// writeReport renders every book recorded during the run, in input order.
func writeReport(ctx context.Context, books book.Repository, path string, now time.Time) error {
	recorded, err := books.List(ctx)
	if err != nil {
		return fmt.Errorf("list books: %w", err)
	}
	return report.Write(path, report.Build(recorded, now))
}
