// Package config_test tests the configuration loading for the narration pipeline.
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/narration-pipeline/internal/civicday"
	"github.com/book-expert/narration-pipeline/internal/config"
)

const tomlData = `
[civic]
zone = "America/New_York"

[schedule]
verification = "20:15"
pregeneration = "23:45"
run_on_start = false
lock_file = "/var/run/narration.lock"

[generation]
lead_days = 10
voice = "nova"
throttle_ms = 1500
batch_cooldown_seconds = 45
bulk_batch_size = 20

[verification]
max_retries = 4
backoff_base_ms = 500

[storage]
backend = "s3"
bucket = "narration"
region = "us-east-1"
prefix = "audio"
public_base_url = "https://cdn.example.org"

[nats]
url = "nats://127.0.0.1:4222"
audio_created_subject = "audio.created"
trigger_subject = "audio.trigger"

[tts]
provider = "openai"
model = "tts-1-hd"
format = "opus"
timeout_seconds = 90

[content]
driver = "sqlite"
dsn = "content.db"

[paths]
base_logs_dir = "/var/log/narration"
`

func noEnv(string) (string, bool) { return "", false }

func TestParse(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte(tomlData))
	require.NoError(t, err)

	assert.Equal(t, "America/New_York", cfg.Civic.Zone)
	assert.Equal(t, civicday.ClockTime{Hour: 20, Minute: 15}, cfg.Schedule.Verification)
	assert.Equal(t, civicday.ClockTime{Hour: 23, Minute: 45}, cfg.Schedule.Pregeneration)
	assert.False(t, cfg.Schedule.RunOnStart)
	assert.Equal(t, 10, cfg.Generation.LeadDays)
	assert.Equal(t, "nova", cfg.Generation.Voice)
	assert.Equal(t, 1500*time.Millisecond, cfg.Generation.Throttle())
	assert.Equal(t, 45*time.Second, cfg.Generation.BatchCooldown())
	assert.Equal(t, 4, cfg.Verification.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Verification.BackoffBase())
	assert.Equal(t, config.StorageS3, cfg.Storage.Backend)
	assert.Equal(t, "narration", cfg.Storage.Bucket)
	assert.Equal(t, "audio.trigger", cfg.NATS.TriggerSubject)
	assert.Equal(t, "opus", cfg.TTS.Format)
	assert.Equal(t, 90*time.Second, cfg.TTS.Timeout())
	assert.Equal(t, "sqlite", cfg.Content.Driver)
	assert.Equal(t, "/var/log/narration", cfg.Paths.BaseLogsDir)
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]byte("[paths]\nbase_logs_dir = \"/tmp/logs\"\n"))
	require.NoError(t, err)

	assert.Equal(t, "Europe/London", cfg.Civic.Zone)
	assert.Equal(t, "21:00", cfg.Schedule.Verification.String())
	assert.Equal(t, "23:30", cfg.Schedule.Pregeneration.String())
	assert.True(t, cfg.Schedule.RunOnStart)
	assert.Equal(t, 7, cfg.Generation.LeadDays)
	assert.Equal(t, time.Second, cfg.Generation.Throttle())
	assert.Equal(t, 3, cfg.Verification.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Verification.BackoffBase())
	assert.Equal(t, config.StorageNATS, cfg.Storage.Backend)
	assert.Equal(t, "NARRATION_AUDIO", cfg.NATS.AudioObjectStoreBucket)
	assert.Equal(t, config.ProviderOpenAI, cfg.TTS.Provider)
	assert.Equal(t, "mp3", cfg.TTS.Format)
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown zone":        "[civic]\nzone = \"Mars/Olympus\"\n",
		"bad clock":           "[schedule]\nverification = \"25:00\"\n",
		"verify after pregen": "[schedule]\nverification = \"23:45\"\npregeneration = \"23:30\"\n",
		"unknown backend":     "[storage]\nbackend = \"ftp\"\n",
		"s3 without bucket":   "[storage]\nbackend = \"s3\"\n",
		"http without url":    "[tts]\nprovider = \"http\"\n",
		"bad format":          "[tts]\nformat = \"ogg\"\n",
		"zero retries":        "[verification]\nmax_retries = 0\n",
		"negative lead":       "[generation]\nlead_days = -1\n",
		"empty voice":         "[generation]\nvoice = \"\"\n",
		"unknown driver":      "[content]\ndriver = \"mysql\"\n",
		"malformed":           "[civic\n",
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := config.Parse([]byte(data))
			require.Error(t, err)
		})
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		config.EnvOpenAIKey:   "sk-test",
		config.EnvDatabaseURL: "postgres://localhost/content",
		config.EnvNATSURL:     "nats://nats:4222",
	}
	lookup := func(key string) (string, bool) {
		value, ok := env[key]

		return value, ok
	}

	cfg := config.Default()
	cfg.ApplyEnv(lookup)

	assert.Equal(t, "sk-test", cfg.TTS.APIKey)
	assert.Equal(t, "postgres://localhost/content", cfg.Content.DSN)
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)

	sqlite := config.Default()
	sqlite.Content.Driver = "sqlite"
	sqlite.Content.DSN = "local.db"
	sqlite.ApplyEnv(lookup)

	assert.Equal(t, "local.db", sqlite.Content.DSN)

	untouched := config.Default()
	untouched.ApplyEnv(noEnv)
	assert.Equal(t, config.Default(), untouched)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "narration.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlData), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "nova", cfg.Generation.Voice)

	_, err = config.LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidate_WrapsSentinel(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Paths.BaseLogsDir = ""

	require.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
}
