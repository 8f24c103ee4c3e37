// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// DefaultEnvFile is the dotenv file read by Load when present.
const DefaultEnvFile = ".env"

// Static errors for configuration validation.
var (
	// ErrPiperModelRequired is returned when TTS_ENGINE=piper without PIPER_MODEL.
	ErrPiperModelRequired = errors.New("config: PIPER_MODEL is required for the piper engine")
	// ErrYandexCredentialsRequired is returned when TTS_ENGINE=yandex without credentials.
	ErrYandexCredentialsRequired = errors.New("config: YANDEX_API_KEY and YANDEX_FOLDER_ID are required for the yandex engine")
	// ErrS3RegionRequired is returned when S3_BUCKET is set without S3_REGION.
	ErrS3RegionRequired = errors.New("config: S3_REGION is required when S3_BUCKET is set")
)

// Config holds all configuration for the application.
type Config struct {
	// Speech synthesis
	TTSEngine       string        `env:"TTS_ENGINE, default=coqui" validate:"oneof=coqui piper yandex" json:"tts_engine"`
	TTSVoice        string        `env:"TTS_VOICE, default=p225" json:"tts_voice"`
	CoquiURL        string        `env:"COQUI_URL, default=http://localhost:5002" validate:"omitempty,url" json:"coqui_url"`
	PiperPath       string        `env:"PIPER_PATH, default=piper" json:"piper_path"`
	PiperModel      string        `env:"PIPER_MODEL" json:"piper_model,omitempty"`
	YandexAPIKey    string        `env:"YANDEX_API_KEY" json:"-"` // Masked in JSON
	YandexFolderID  string        `env:"YANDEX_FOLDER_ID" json:"yandex_folder_id,omitempty"`
	SynthTimeout    time.Duration `env:"SYNTH_TIMEOUT, default=5m" validate:"gt=0" json:"synth_timeout"`
	SynthMaxRetries int           `env:"SYNTH_MAX_RETRIES, default=0" validate:"gte=0,lte=10" json:"synth_max_retries"`
	SynthRateLimit  float64       `env:"SYNTH_RATE_LIMIT, default=0" validate:"gte=0" json:"synth_rate_limit"`

	// Text processing
	ChunkMaxChars   int `env:"CHUNK_MAX_CHARS, default=400" validate:"min=1" json:"chunk_max_chars"`
	MinChapterChars int `env:"MIN_CHAPTER_CHARS, default=100" validate:"gte=0" json:"min_chapter_chars"`

	// Pipeline
	ChapterWorkers     int    `env:"CHAPTER_WORKERS, default=1" validate:"min=1,max=64" json:"chapter_workers"`
	MissingChunkPolicy string `env:"MISSING_CHUNK_POLICY, default=skip" validate:"oneof=skip fail" json:"missing_chunk_policy"`
	FFmpegPath         string `env:"FFMPEG_PATH, default=ffmpeg" validate:"required" json:"ffmpeg_path"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/epub2audio" validate:"required" json:"temp_dir"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" validate:"omitempty,url" json:"s3_endpoint,omitempty"`
	S3Prefix           string `env:"S3_PREFIX" json:"s3_prefix,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Optional run report
	ReportFile string `env:"REPORT_FILE" json:"report_file,omitempty"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" validate:"oneof=text json TEXT JSON" json:"log_format"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"` // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads DefaultEnvFile if it exists, then the environment, and
// validates the result.
func Load() (*Config, error) {
	return LoadFrom(DefaultEnvFile)
}

// LoadFrom is Load with an explicit dotenv path. Variables already set in
// the environment take precedence over the file. A missing file is ignored.
func LoadFrom(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and the settings each engine needs.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: invalid %s: failed %q constraint", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}

	switch c.TTSEngine {
	case "piper":
		if c.PiperModel == "" {
			return ErrPiperModelRequired
		}
	case "yandex":
		if c.YandexAPIKey == "" || c.YandexFolderID == "" {
			return ErrYandexCredentialsRequired
		}
	}

	if c.S3Bucket != "" && c.S3Region == "" {
		return ErrS3RegionRequired
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for log shipping.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	return c.newLogger(os.Stdout)
}

func (c *Config) newLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{TTSEngine: %s, TTSVoice: %s, CoquiURL: %s, ChunkMaxChars: %d, MinChapterChars: %d, ChapterWorkers: %d, MissingChunkPolicy: %s, TempDir: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.TTSEngine,
		c.TTSVoice,
		c.CoquiURL,
		c.ChunkMaxChars,
		c.MinChapterChars,
		c.ChapterWorkers,
		c.MissingChunkPolicy,
		c.TempDir,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
