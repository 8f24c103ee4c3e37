// Package audio joins synthesized clips into chapter audio and encodes it.
package audio

import "context"

// ConcatResult reports which clips made it into a concatenated file.
type ConcatResult struct {
	// Included is the number of clips joined into the output.
	Included int
	// Missing holds the positions of clips that were absent or empty.
	Missing []int
}

// Assembler builds chapter audio from per-chunk clips.
type Assembler interface {
	// Concat joins clips in order into a single WAV at output. Clips that do
	// not exist or are empty are skipped and reported in ConcatResult.Missing.
	// It returns ErrNoClips when nothing is left to join.
	Concat(ctx context.Context, clips []string, output string) (ConcatResult, error)

	// Transcode encodes a WAV file into an MP3 file.
	Transcode(ctx context.Context, wavPath, mp3Path string) error
}
