// Package tts provides the speech synthesis port and its engine adapters.
// Coqui TTS (HTTP), Piper (CLI) and Yandex SpeechKit (gRPC) implement the
// Synthesizer interface.
package tts

import (
	"context"
	"errors"
	"os"
)

// Engine names a speech synthesis backend.
type Engine string

const (
	// EngineCoqui renders speech through a Coqui TTS server.
	EngineCoqui Engine = "coqui"
	// EnginePiper renders speech with the piper command line tool.
	EnginePiper Engine = "piper"
	// EngineYandex renders speech with Yandex SpeechKit v3.
	EngineYandex Engine = "yandex"
)

// IsValid returns true if the engine is known.
func (e Engine) IsValid() bool {
	return e == EngineCoqui || e == EnginePiper || e == EngineYandex
}

// ErrEmptyText is returned when there is nothing to synthesize.
var ErrEmptyText = errors.New("tts: text is empty")

// Synthesizer renders text to a WAV file.
//
// A single instance is created at startup and shared by every chunk of every
// chapter. On error no file is left at outputPath.
type Synthesizer interface {
	// Synthesize renders text spoken by voice into a WAV file at outputPath.
	Synthesize(ctx context.Context, text, voice, outputPath string) error
}

// writeAudio writes data to path. A partially written file is removed.
func writeAudio(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o600); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}
