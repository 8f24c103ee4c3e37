package tts

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePiper writes a shell script that mimics the piper CLI: it copies stdin
// to the --output_file argument and records its arguments next to it.
func fakePiper(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake is not supported on windows")
	}

	script := `#!/bin/sh
out=""
args="$*"
while [ $# -gt 0 ]; do
  case "$1" in
    --output_file) out="$2"; shift ;;
  esac
  shift
done
` + body
	path := filepath.Join(t.TempDir(), "piper")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o700))
	return path
}

func TestNewPiperSynthesizer(t *testing.T) {
	_, err := NewPiperSynthesizer("", "")
	assert.ErrorIs(t, err, ErrModelRequired)

	p, err := NewPiperSynthesizer("", "/models/en.onnx")
	require.NoError(t, err)
	assert.Equal(t, "piper", p.piperPath)
	assert.Equal(t, "/models/en.onnx", p.modelPath)
}

func TestPiperSynthesizer_Synthesize(t *testing.T) {
	bin := fakePiper(t, `cat > "$out"
echo "$args" > "$out.args"
`)
	p, err := NewPiperSynthesizer(bin, "/models/en.onnx")
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, p.Synthesize(context.Background(), "Read this aloud.", "3", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "Read this aloud.", string(data))

	args, err := os.ReadFile(out + ".args")
	require.NoError(t, err)
	assert.Equal(t, "--model /models/en.onnx --output_file "+out+" --speaker 3", strings.TrimSpace(string(args)))
}

func TestPiperSynthesizer_InvalidSpeaker(t *testing.T) {
	p, err := NewPiperSynthesizer("piper", "/models/en.onnx")
	require.NoError(t, err)

	err = p.Synthesize(context.Background(), "text", "p225", filepath.Join(t.TempDir(), "a.wav"))
	assert.ErrorIs(t, err, ErrInvalidSpeaker)
}

func TestPiperSynthesizer_EmptyText(t *testing.T) {
	p, err := NewPiperSynthesizer("piper", "/models/en.onnx")
	require.NoError(t, err)

	err = p.Synthesize(context.Background(), "", "", filepath.Join(t.TempDir(), "a.wav"))
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestPiperSynthesizer_CommandFails(t *testing.T) {
	bin := fakePiper(t, `printf 'partial' > "$out"
echo "model not found" >&2
exit 1
`)
	p, err := NewPiperSynthesizer(bin, "/models/missing.onnx")
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "clip.wav")
	err = p.Synthesize(context.Background(), "text", "", out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "partial output must be removed")
}

func TestPiperSynthesizer_NoOutput(t *testing.T) {
	bin := fakePiper(t, "exit 0\n")
	p, err := NewPiperSynthesizer(bin, "/models/en.onnx")
	require.NoError(t, err)

	err = p.Synthesize(context.Background(), "text", "", filepath.Join(t.TempDir(), "clip.wav"))
	assert.ErrorIs(t, err, ErrNoOutput)
}
