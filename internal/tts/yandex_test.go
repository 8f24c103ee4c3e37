package tts

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ttspb "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"
)

func TestNewYandexClient_MissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		cfg  YandexConfig
	}{
		{"empty", YandexConfig{}},
		{"no folder", YandexConfig{APIKey: "key"}},
		{"no key", YandexConfig{FolderID: "folder"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewYandexClient(tt.cfg)
			assert.ErrorIs(t, err, ErrYandexCredentials)
		})
	}
}

func TestNewYandexClient_Defaults(t *testing.T) {
	c, err := NewYandexClient(YandexConfig{APIKey: "key", FolderID: "folder", Endpoint: "localhost:0"})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	assert.Equal(t, "general", c.model)
	assert.Equal(t, "key", c.apiKey)
	assert.Equal(t, "folder", c.folderID)
}

func TestYandexClient_EmptyText(t *testing.T) {
	c, err := NewYandexClient(YandexConfig{APIKey: "key", FolderID: "folder", Endpoint: "localhost:0"})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	err = c.Synthesize(context.Background(), " ", "marina", filepath.Join(t.TempDir(), "a.wav"))
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestBuildRequest(t *testing.T) {
	req := buildRequest("Hello.", "marina", "general")

	assert.Equal(t, "Hello.", req.GetText())
	assert.Equal(t, "general", req.GetModel())
	require.Len(t, req.GetHints(), 1)
	assert.Equal(t, "marina", req.GetHints()[0].GetVoice())
	assert.Equal(t, ttspb.ContainerAudio_WAV, req.GetOutputAudioSpec().GetContainerAudio().GetContainerAudioType())
	assert.Equal(t, ttspb.UtteranceSynthesisRequest_LUFS, req.GetLoudnessNormalizationType())
}

func TestBuildRequest_NoVoice(t *testing.T) {
	req := buildRequest("Hello.", "", "general")

	assert.Empty(t, req.GetHints())
}
