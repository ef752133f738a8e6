// Package config provides the configuration structure for the narration pipeline.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/book-expert/narration-pipeline/internal/civicday"
)

// Environment variables overlaid on the file configuration.
const (
	EnvOpenAIKey   = "OPENAI_API_KEY"
	EnvDatabaseURL = "DATABASE_URL"
	EnvNATSURL     = "NATS_URL"
)

// Backend and provider names.
const (
	StorageNATS = "nats"
	StorageS3   = "s3"
	StorageNone = "none"

	ProviderOpenAI = "openai"
	ProviderHTTP   = "http"
	ProviderNone   = "none"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// CivicConfig names the timezone all calendar arithmetic happens in.
type CivicConfig struct {
	Zone string `toml:"zone" validate:"required"`
}

// ScheduleConfig holds the daily job times.
type ScheduleConfig struct {
	Verification  civicday.ClockTime `toml:"verification"`
	Pregeneration civicday.ClockTime `toml:"pregeneration"`
	RunOnStart    bool               `toml:"run_on_start"`
	LockFile      string             `toml:"lock_file" validate:"required"`
}

// GenerationConfig tunes the batch generator.
type GenerationConfig struct {
	LeadDays             int    `toml:"lead_days" validate:"gte=0"`
	Voice                string `toml:"voice" validate:"required"`
	ThrottleMillis       int    `toml:"throttle_ms" validate:"gte=0"`
	BatchCooldownSeconds int    `toml:"batch_cooldown_seconds" validate:"gte=0"`
	BulkBatchSize        int    `toml:"bulk_batch_size" validate:"gte=1"`
}

// VerificationConfig tunes the verifier's retry loop.
type VerificationConfig struct {
	MaxRetries        int `toml:"max_retries" validate:"gte=1,lte=10"`
	BackoffBaseMillis int `toml:"backoff_base_ms" validate:"gte=1"`
}

// StorageConfig selects the artifact store.
type StorageConfig struct {
	Backend       string `toml:"backend" validate:"oneof=nats s3 none"`
	Bucket        string `toml:"bucket" validate:"required_if=Backend s3"`
	Region        string `toml:"region"`
	Prefix        string `toml:"prefix"`
	Endpoint      string `toml:"endpoint"`
	PublicBaseURL string `toml:"public_base_url"`
}

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                    string `toml:"url"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
	AudioCreatedSubject    string `toml:"audio_created_subject"`
	TriggerSubject         string `toml:"trigger_subject"`
}

// TTSConfig selects the speech provider.
type TTSConfig struct {
	Provider       string `toml:"provider" validate:"oneof=openai http none"`
	Model          string `toml:"model"`
	Format         string `toml:"format" validate:"oneof=mp3 wav opus aac flac"`
	BaseURL        string `toml:"base_url" validate:"required_if=Provider http"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"gte=1"`
	MaxRetries     int    `toml:"max_retries" validate:"gte=0"`
}

// ContentConfig locates the content repository.
type ContentConfig struct {
	Driver string `toml:"driver" validate:"oneof=postgres sqlite"`
	DSN    string `toml:"dsn"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir" validate:"required"`
}

// Config is the root configuration structure.
type Config struct {
	Civic        CivicConfig        `toml:"civic"`
	Schedule     ScheduleConfig     `toml:"schedule"`
	Generation   GenerationConfig   `toml:"generation"`
	Verification VerificationConfig `toml:"verification"`
	Storage      StorageConfig      `toml:"storage"`
	NATS         NATSConfig         `toml:"nats"`
	TTS          TTSConfig          `toml:"tts"`
	Content      ContentConfig      `toml:"content"`
	Paths        PathsConfig        `toml:"paths"`
}

// Default returns the configuration used for keys absent from the file.
func Default() Config {
	return Config{
		Civic: CivicConfig{Zone: "Europe/London"},
		Schedule: ScheduleConfig{
			Verification:  civicday.MustClockTime("21:00"),
			Pregeneration: civicday.MustClockTime("23:30"),
			RunOnStart:    true,
			LockFile:      filepath.Join(os.TempDir(), "narration-pipeline.lock"),
		},
		Generation: GenerationConfig{
			LeadDays:             7,
			Voice:                "alloy",
			ThrottleMillis:       1000,
			BatchCooldownSeconds: 30,
			BulkBatchSize:        25,
		},
		Verification: VerificationConfig{
			MaxRetries:        3,
			BackoffBaseMillis: 2000,
		},
		Storage: StorageConfig{Backend: StorageNATS},
		NATS: NATSConfig{
			URL:                    "nats://127.0.0.1:4222",
			AudioObjectStoreBucket: "NARRATION_AUDIO",
			AudioCreatedSubject:    "narration.audio.created",
			TriggerSubject:         "narration.trigger",
		},
		TTS: TTSConfig{
			Provider:       ProviderOpenAI,
			Model:          "tts-1",
			Format:         "mp3",
			TimeoutSeconds: 60,
			MaxRetries:     2,
		},
		Content: ContentConfig{Driver: "postgres"},
		Paths:   PathsConfig{BaseLogsDir: os.TempDir()},
	}
}

// Load loads the configuration through the central configurator, then
// overlays secrets from the environment.
func Load(log *logger.Logger) (*Config, error) {
	cfg := Default()

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finish(&cfg)
}

// LoadFile loads the configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}

	return Parse(data)
}

// Parse decodes TOML on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	err := toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnv(os.LookupEnv)

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overlays secrets and endpoints found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if value, ok := lookup(EnvOpenAIKey); ok && value != "" {
		c.TTS.APIKey = value
	}

	if value, ok := lookup(EnvDatabaseURL); ok && value != "" && c.Content.Driver == "postgres" {
		c.Content.DSN = value
	}

	if value, ok := lookup(EnvNATSURL); ok && value != "" {
		c.NATS.URL = value
	}
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if _, err := time.LoadLocation(c.Civic.Zone); err != nil {
		return fmt.Errorf("%w: civic.zone %q: %w", ErrInvalidConfig, c.Civic.Zone, err)
	}

	if c.Storage.Backend == StorageNATS && c.NATS.AudioObjectStoreBucket == "" {
		return fmt.Errorf("%w: nats.audio_object_store_bucket is required for nats storage", ErrInvalidConfig)
	}

	if !c.Schedule.Verification.Before(c.Schedule.Pregeneration) {
		return fmt.Errorf("%w: schedule.verification (%s) must be earlier than schedule.pregeneration (%s)",
			ErrInvalidConfig, c.Schedule.Verification, c.Schedule.Pregeneration)
	}

	return nil
}

// Throttle is the pause after each processed item.
func (g GenerationConfig) Throttle() time.Duration {
	return time.Duration(g.ThrottleMillis) * time.Millisecond
}

// BatchCooldown is the pause between bulk batches.
func (g GenerationConfig) BatchCooldown() time.Duration {
	return time.Duration(g.BatchCooldownSeconds) * time.Second
}

// BackoffBase is the wait after the first failed repair attempt.
func (v VerificationConfig) BackoffBase() time.Duration {
	return time.Duration(v.BackoffBaseMillis) * time.Millisecond
}

// Timeout bounds a single synthesis call.
func (t TTSConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}
