package tts

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"

	ttspb "github.com/yandex-cloud/go-genproto/yandex/cloud/ai/tts/v3"
)

// YandexEndpoint is the SpeechKit v3 gRPC endpoint.
const YandexEndpoint = "tts.api.cloud.yandex.net:443"

// Static errors for Yandex synthesis.
var (
	// ErrYandexCredentials is returned when the API key or folder is missing.
	ErrYandexCredentials = errors.New("yandex: api key and folder id are required")
	// ErrYandexEmptyAudio is returned when the stream carries no audio.
	ErrYandexEmptyAudio = errors.New("yandex: empty audio response")
)

// YandexConfig holds the SpeechKit credentials.
type YandexConfig struct {
	APIKey   string
	FolderID string
	// Endpoint overrides YandexEndpoint.
	Endpoint string
	// Model is the synthesis model name. Defaults to "general".
	Model string
}

// YandexClient synthesizes speech with Yandex SpeechKit v3 over gRPC.
type YandexClient struct {
	client   ttspb.SynthesizerClient
	conn     *grpc.ClientConn
	apiKey   string
	folderID string
	model    string
}

// NewYandexClient dials SpeechKit and returns a ready client.
func NewYandexClient(cfg YandexConfig) (*YandexClient, error) {
	if cfg.APIKey == "" || cfg.FolderID == "" {
		return nil, ErrYandexCredentials
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = YandexEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = "general"
	}

	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	conn, err := grpc.Dial(endpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("yandex: connect to TTS service: %w", err)
	}

	return &YandexClient{
		client:   ttspb.NewSynthesizerClient(conn),
		conn:     conn,
		apiKey:   cfg.APIKey,
		folderID: cfg.FolderID,
		model:    model,
	}, nil
}

// Synthesize streams a WAV rendering of text into outputPath.
func (c *YandexClient) Synthesize(ctx context.Context, text, voice, outputPath string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	ctx = metadata.AppendToOutgoingContext(ctx,
		"authorization", "Api-Key "+c.apiKey,
		"x-folder-id", c.folderID,
	)

	stream, err := c.client.UtteranceSynthesis(ctx, buildRequest(text, voice, c.model))
	if err != nil {
		return fmt.Errorf("yandex: start synthesis: %w", err)
	}

	var audio bytes.Buffer
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("yandex: receive audio: %w", err)
		}
		if chunk := resp.GetAudioChunk(); chunk != nil {
			audio.Write(chunk.GetData())
		}
	}

	if audio.Len() == 0 {
		return ErrYandexEmptyAudio
	}
	if err := writeAudio(outputPath, audio.Bytes()); err != nil {
		return fmt.Errorf("yandex: write audio: %w", err)
	}
	return nil
}

// buildRequest assembles an utterance request producing a WAV container.
func buildRequest(text, voice, model string) *ttspb.UtteranceSynthesisRequest {
	req := &ttspb.UtteranceSynthesisRequest{}
	req.SetModel(model)
	req.SetText(text)

	var hints []*ttspb.Hints
	if voice != "" {
		voiceHint := &ttspb.Hints{}
		voiceHint.SetVoice(voice)
		hints = append(hints, voiceHint)
	}
	req.SetHints(hints)

	containerAudio := &ttspb.ContainerAudio{}
	containerAudio.SetContainerAudioType(ttspb.ContainerAudio_WAV)
	audioSpec := &ttspb.AudioFormatOptions{}
	audioSpec.SetContainerAudio(containerAudio)
	req.SetOutputAudioSpec(audioSpec)

	req.SetLoudnessNormalizationType(ttspb.UtteranceSynthesisRequest_LUFS)

	return req
}

// Close releases the gRPC connection.
func (c *YandexClient) Close() error {
	return c.conn.Close()
}

// Compile-time check that YandexClient implements Synthesizer.
var _ Synthesizer = (*YandexClient)(nil)
