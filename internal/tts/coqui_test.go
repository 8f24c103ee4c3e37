package tts

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fakeWAV = []byte("RIFF\x24\x00\x00\x00WAVEfmt ")

func TestEngine_IsValid(t *testing.T) {
	tests := []struct {
		engine Engine
		want   bool
	}{
		{EngineCoqui, true},
		{EnginePiper, true},
		{EngineYandex, true},
		{Engine("espeak"), false},
		{Engine(""), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.engine), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.engine.IsValid())
		})
	}
}

func TestNewCoquiClient_MissingBaseURL(t *testing.T) {
	_, err := NewCoquiClient("")
	assert.ErrorIs(t, err, ErrBaseURLRequired)
}

func TestNewCoquiClient_Defaults(t *testing.T) {
	c, err := NewCoquiClient("http://localhost:5002/")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5002", c.baseURL)
	assert.Equal(t, 0, c.maxRetries)
	assert.Nil(t, c.limiter)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
}

func TestNewCoquiClient_Options(t *testing.T) {
	c, err := NewCoquiClient("http://localhost:5002",
		WithTimeout(10*time.Second),
		WithMaxRetries(2),
		WithBaseBackoff(time.Millisecond),
		WithRateLimit(4),
	)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, c.httpClient.Timeout)
	assert.Equal(t, 2, c.maxRetries)
	assert.Equal(t, time.Millisecond, c.baseBackoff)
	require.NotNil(t, c.limiter)
	assert.InDelta(t, 4.0, float64(c.limiter.Limit()), 0.001)
}

func TestNewCoquiClient_TimeoutAppliesToCustomClient(t *testing.T) {
	custom := &http.Client{Timeout: time.Second}

	c, err := NewCoquiClient("http://localhost:5002",
		WithTimeout(30*time.Second),
		WithHTTPClient(custom),
	)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
	assert.Equal(t, time.Second, custom.Timeout, "caller's client must not be modified")

	c, err = NewCoquiClient("http://localhost:5002", WithHTTPClient(custom))
	require.NoError(t, err)
	assert.Same(t, custom, c.httpClient)
}

func TestNewCoquiClient_NilHTTPClient(t *testing.T) {
	c, err := NewCoquiClient("http://localhost:5002",
		WithHTTPClient(nil),
		WithTimeout(10*time.Second),
	)
	require.NoError(t, err)
	require.NotNil(t, c.httpClient)
	assert.Equal(t, 10*time.Second, c.httpClient.Timeout)
}

func TestCoquiClient_Synthesize(t *testing.T) {
	var gotText, gotSpeaker, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotText = r.URL.Query().Get("text")
		gotSpeaker = r.URL.Query().Get("speaker_id")
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(fakeWAV)
	}))
	defer server.Close()

	c, err := NewCoquiClient(server.URL)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "clip.wav")
	err = c.Synthesize(context.Background(), "Hello there & goodbye.", "p225", out)
	require.NoError(t, err)

	assert.Equal(t, "/api/tts", gotPath)
	assert.Equal(t, "Hello there & goodbye.", gotText)
	assert.Equal(t, "p225", gotSpeaker)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, fakeWAV, data)
}

func TestCoquiClient_Synthesize_NoVoice(t *testing.T) {
	var hasSpeaker bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasSpeaker = r.URL.Query().Has("speaker_id")
		_, _ = w.Write(fakeWAV)
	}))
	defer server.Close()

	c, err := NewCoquiClient(server.URL)
	require.NoError(t, err)

	require.NoError(t, c.Synthesize(context.Background(), "text", "", filepath.Join(t.TempDir(), "a.wav")))
	assert.False(t, hasSpeaker)
}

func TestCoquiClient_Synthesize_EmptyText(t *testing.T) {
	c, err := NewCoquiClient("http://127.0.0.1:1")
	require.NoError(t, err)

	err = c.Synthesize(context.Background(), "   ", "p225", filepath.Join(t.TempDir(), "a.wav"))
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestCoquiClient_Synthesize_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    []byte
		wantErr error
	}{
		{"bad request", http.StatusBadRequest, []byte("unknown speaker"), ErrRequestFailed},
		{"server error", http.StatusInternalServerError, []byte("boom"), ErrServerError},
		{"rate limited", http.StatusTooManyRequests, nil, ErrRateLimited},
		{"empty body", http.StatusOK, nil, ErrEmptyAudio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write(tt.body)
			}))
			defer server.Close()

			c, err := NewCoquiClient(server.URL)
			require.NoError(t, err)

			out := filepath.Join(t.TempDir(), "clip.wav")
			err = c.Synthesize(context.Background(), "text", "p225", out)
			assert.ErrorIs(t, err, tt.wantErr)

			_, statErr := os.Stat(out)
			assert.True(t, os.IsNotExist(statErr), "no file should be written on error")
		})
	}
}

func TestCoquiClient_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write(fakeWAV)
	}))
	defer server.Close()

	c, err := NewCoquiClient(server.URL, WithMaxRetries(3), WithBaseBackoff(time.Millisecond))
	require.NoError(t, err)

	err = c.Synthesize(context.Background(), "text", "p225", filepath.Join(t.TempDir(), "a.wav"))
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCoquiClient_MaxRetriesExceeded(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c, err := NewCoquiClient(server.URL, WithMaxRetries(2), WithBaseBackoff(time.Millisecond))
	require.NoError(t, err)

	err = c.Synthesize(context.Background(), "text", "p225", filepath.Join(t.TempDir(), "a.wav"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServerError)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Equal(t, int32(3), calls.Load())
}

func TestCoquiClient_NoRetryByDefault(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c, err := NewCoquiClient(server.URL)
	require.NoError(t, err)

	err = c.Synthesize(context.Background(), "text", "p225", filepath.Join(t.TempDir(), "a.wav"))
	assert.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCoquiClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(fakeWAV)
	}))
	defer server.Close()

	c, err := NewCoquiClient(server.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = c.Synthesize(ctx, "text", "p225", filepath.Join(t.TempDir(), "a.wav"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
