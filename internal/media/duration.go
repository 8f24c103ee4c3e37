// Package media inspects encoded audio files.
package media

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// ErrNoAudio is returned when an MP3 decodes to zero samples.
var ErrNoAudio = errors.New("mp3 contains no audio")

// Prober reports the playing time of an audio file.
type Prober interface {
	Duration(path string) (time.Duration, error)
}

// MP3Prober implements Prober by decoding MP3 frame headers.
type MP3Prober struct{}

// Duration implements Prober.
func (MP3Prober) Duration(path string) (time.Duration, error) {
	return MP3Duration(path)
}

// MP3Duration returns the playing time of the MP3 at path.
func MP3Duration(path string) (time.Duration, error) {
	f, err := os.Open(path) // #nosec G304 - path is an output file written by the pipeline
	if err != nil {
		return 0, fmt.Errorf("open mp3: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, fmt.Errorf("decode mp3: %w", err)
	}

	// Decoded output is 16-bit stereo, four bytes per sample frame.
	samples := dec.Length() / 4
	if samples <= 0 || dec.SampleRate() <= 0 {
		return 0, ErrNoAudio
	}

	return time.Duration(samples) * time.Second / time.Duration(dec.SampleRate()), nil
}

var _ Prober = MP3Prober{}
