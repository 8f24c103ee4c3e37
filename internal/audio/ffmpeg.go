package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Static errors for audio assembly.
var (
	// ErrNoClips is returned when none of the given clips can be joined.
	ErrNoClips = errors.New("no audio clips to join")
	// ErrInvalidQuality is returned for an out-of-range MP3 VBR quality.
	ErrInvalidQuality = errors.New("invalid mp3 quality: must be between 0 and 9")
)

// DefaultMP3Quality is the LAME VBR quality used for chapter files.
const DefaultMP3Quality = 4

// FFmpegAssembler implements Assembler using the ffmpeg CLI.
type FFmpegAssembler struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	quality    int
}

// AssemblerOption configures an FFmpegAssembler.
type AssemblerOption func(*FFmpegAssembler)

// WithMP3Quality sets the LAME VBR quality (0 best, 9 smallest).
func WithMP3Quality(q int) AssemblerOption {
	return func(a *FFmpegAssembler) {
		a.quality = q
	}
}

// NewFFmpegAssembler creates a new FFmpegAssembler.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegAssembler(ffmpegPath string, opts ...AssemblerOption) (*FFmpegAssembler, error) {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	a := &FFmpegAssembler{ffmpegPath: ffmpegPath, quality: DefaultMP3Quality}
	for _, opt := range opts {
		opt(a)
	}
	if a.quality < 0 || a.quality > 9 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuality, a.quality)
	}
	return a, nil
}

// Concat joins the available clips in order. It first tries a stream copy
// and re-encodes to 16-bit PCM if the clips do not share a format.
func (a *FFmpegAssembler) Concat(ctx context.Context, clips []string, output string) (ConcatResult, error) {
	var result ConcatResult
	present := make([]string, 0, len(clips))
	for i, clip := range clips {
		info, err := os.Stat(clip)
		if err != nil || info.Size() == 0 {
			result.Missing = append(result.Missing, i)
			continue
		}
		present = append(present, clip)
	}
	result.Included = len(present)

	if len(present) == 0 {
		return result, ErrNoClips
	}

	if len(present) == 1 {
		return result, copyFile(present[0], output)
	}

	listFile, err := createConcatList(present)
	if err != nil {
		return result, fmt.Errorf("create concat list: %w", err)
	}
	defer func() { _ = os.Remove(listFile) }()

	if err := a.joinWithCopy(ctx, listFile, output); err == nil {
		return result, nil
	} else if ctx.Err() != nil {
		return result, err
	}

	if err := a.joinWithReencode(ctx, listFile, output); err != nil {
		_ = os.Remove(output)
		return result, err
	}
	return result, nil
}

// Transcode encodes wavPath into an MP3 at mp3Path with libmp3lame.
func (a *FFmpegAssembler) Transcode(ctx context.Context, wavPath, mp3Path string) error {
	args := []string{
		"-y",
		"-i", wavPath,
		"-vn",
		"-codec:a", "libmp3lame",
		"-qscale:a", fmt.Sprintf("%d", a.quality),
		mp3Path,
	}
	if err := a.runFFmpeg(ctx, args); err != nil {
		_ = os.Remove(mp3Path)
		return err
	}
	return nil
}

func (a *FFmpegAssembler) joinWithCopy(ctx context.Context, listFile, output string) error {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		output,
	}
	return a.runFFmpeg(ctx, args)
}

func (a *FFmpegAssembler) joinWithReencode(ctx context.Context, listFile, output string) error {
	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c:a", "pcm_s16le",
		output,
	}
	return a.runFFmpeg(ctx, args)
}

// createConcatList writes the clip list in the concat demuxer format.
func createConcatList(paths []string) (string, error) {
	f, err := os.CreateTemp("", "epub2audio-concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("get absolute path for %s: %w", path, err)
		}
		escapedPath := strings.ReplaceAll(absPath, "'", "'\\''")
		if _, err := fmt.Fprintf(f, "file '%s'\n", escapedPath); err != nil {
			return "", fmt.Errorf("write to concat list: %w", err)
		}
	}

	return f.Name(), nil
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src) // #nosec G304 - src is a clip path produced by the pipeline
	if err != nil {
		return fmt.Errorf("read source file: %w", err)
	}
	if err := os.WriteFile(dst, input, 0600); err != nil {
		return fmt.Errorf("write destination file: %w", err)
	}
	return nil
}

// runFFmpeg executes ffmpeg and wraps failures in an FFmpegError.
func (a *FFmpegAssembler) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, a.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}
	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// Verify interface implementation at compile time.
var _ Assembler = (*FFmpegAssembler)(nil)
