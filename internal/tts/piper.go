package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Static errors for Piper synthesis.
var (
	// ErrModelRequired is returned when no voice model is configured.
	ErrModelRequired = errors.New("piper: model path is required")
	// ErrInvalidSpeaker is returned when the voice is not a numeric speaker id.
	ErrInvalidSpeaker = errors.New("piper: voice must be a numeric speaker id")
	// ErrNoOutput is returned when piper exits cleanly without writing audio.
	ErrNoOutput = errors.New("piper: no audio written")
)

// PiperSynthesizer renders speech with the piper CLI. The voice model is
// fixed at construction; the voice argument selects a speaker of a
// multi-speaker model.
type PiperSynthesizer struct {
	// piperPath is the path to the piper binary. Defaults to "piper".
	piperPath string
	modelPath string
}

// NewPiperSynthesizer creates a new PiperSynthesizer.
// If piperPath is empty, it defaults to "piper" (found via PATH).
func NewPiperSynthesizer(piperPath, modelPath string) (*PiperSynthesizer, error) {
	if modelPath == "" {
		return nil, ErrModelRequired
	}
	if piperPath == "" {
		piperPath = "piper"
	}
	return &PiperSynthesizer{piperPath: piperPath, modelPath: modelPath}, nil
}

// Synthesize pipes text into piper and lets it write the WAV to outputPath.
func (p *PiperSynthesizer) Synthesize(ctx context.Context, text, voice, outputPath string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	args := []string{
		"--model", p.modelPath,
		"--output_file", outputPath,
	}
	if voice != "" {
		if _, err := strconv.Atoi(voice); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidSpeaker, voice)
		}
		args = append(args, "--speaker", voice)
	}

	// #nosec G204 - piperPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.piperPath, args...)
	cmd.Stdin = strings.NewReader(text)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(outputPath)
		if ctx.Err() != nil {
			return fmt.Errorf("piper cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("piper error: %w, stderr: %s", err, stderr.String())
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(outputPath)
		return ErrNoOutput
	}

	return nil
}

// Compile-time check that PiperSynthesizer implements Synthesizer.
var _ Synthesizer = (*PiperSynthesizer)(nil)
