package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/narration-pipeline/internal/app"
	"github.com/book-expert/narration-pipeline/internal/civicday"
	"github.com/book-expert/narration-pipeline/internal/config"
	"github.com/book-expert/narration-pipeline/internal/content"
	"github.com/book-expert/narration-pipeline/internal/core"
	"github.com/book-expert/narration-pipeline/internal/objectstore"
)

func newLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "app-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	return log
}

func seedDatabase(t *testing.T, items ...core.ContentItem) string {
	t.Helper()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "content.db")

	repo, err := content.OpenSQLite(ctx, path)
	require.NoError(t, err)

	defer func() { _ = repo.Close() }()

	require.NoError(t, repo.Migrate(ctx))

	for _, item := range items {
		require.NoError(t, repo.Upsert(ctx, item))
	}

	return path
}

func localConfig(t *testing.T, dsn string) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Content.Driver = content.DriverSQLite
	cfg.Content.DSN = dsn
	cfg.Storage.Backend = config.StorageNone
	cfg.TTS.Provider = config.ProviderNone
	cfg.NATS.URL = ""
	cfg.Generation.ThrottleMillis = 0
	cfg.Schedule.LockFile = filepath.Join(t.TempDir(), "narration.lock")
	cfg.Paths.BaseLogsDir = t.TempDir()

	return &cfg
}

func today(t *testing.T) core.ContentItem {
	t.Helper()

	clock, err := civicday.New("Europe/London")
	require.NoError(t, err)

	return core.ContentItem{
		ID:       "today",
		Kind:     core.KindSpark,
		Title:    "Morning Light",
		Teaching: "Rise and shine.",
		Date:     clock.Today(),
	}
}

func TestBuild_UnconfiguredDegrades(t *testing.T) {
	t.Parallel()

	cfg := localConfig(t, seedDatabase(t, today(t)))

	application, err := app.Build(context.Background(), cfg, newLogger(t))
	require.NoError(t, err)
	defer application.Close()

	assert.Nil(t, application.NATS)
	assert.False(t, application.Store.Configured())

	result := application.Generator.GenerateWindow(context.Background(), 7)
	assert.Equal(t, []string{objectstore.ErrNotConfigured.Error()}, result.Errors)

	report := application.Verifier.Verify(context.Background())
	assert.Len(t, report.Errors, 1)
	assert.False(t, report.NeedsAttention())
}

func TestBuild_FindItem(t *testing.T) {
	t.Parallel()

	item := today(t)
	cfg := localConfig(t, seedDatabase(t, item))

	application, err := app.Build(context.Background(), cfg, newLogger(t))
	require.NoError(t, err)
	defer application.Close()

	found, err := application.FindItem(context.Background(), "today")
	require.NoError(t, err)
	assert.Equal(t, item.Title, found.Title)
	assert.Equal(t, "spark-today.mp3", application.Key(found))

	_, err = application.FindItem(context.Background(), "missing")
	require.ErrorIs(t, err, app.ErrItemNotFound)
}

func TestBuild_UnknownContentDriver(t *testing.T) {
	t.Parallel()

	cfg := localConfig(t, "")
	cfg.Content.Driver = "oracle"

	_, err := app.Build(context.Background(), cfg, newLogger(t))
	require.ErrorIs(t, err, content.ErrUnsupportedDriver)
}

func TestBuild_EndToEndOverNATSAndHTTP(t *testing.T) {
	t.Parallel()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	server := test.RunServer(&opts)
	t.Cleanup(server.Shutdown)

	speech := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/generate/speech" {
			http.NotFound(w, r)

			return
		}

		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3 narration"))
	}))
	t.Cleanup(speech.Close)

	cfg := localConfig(t, seedDatabase(t, today(t)))
	cfg.NATS.URL = server.ClientURL()
	cfg.NATS.AudioObjectStoreBucket = "E2E_AUDIO"
	cfg.Storage.Backend = config.StorageNATS
	cfg.TTS.Provider = config.ProviderHTTP
	cfg.TTS.BaseURL = speech.URL

	application, err := app.Build(context.Background(), cfg, newLogger(t))
	require.NoError(t, err)
	defer application.Close()

	sub, err := application.NATS.SubscribeSync(cfg.NATS.AudioCreatedSubject)
	require.NoError(t, err)
	require.NoError(t, application.NATS.Flush())

	result := application.Generator.GenerateWindow(context.Background(), 7)
	require.Empty(t, result.Errors)
	assert.Equal(t, []string{"today"}, result.GeneratedIDs)

	exists, err := application.Store.Exists(context.Background(), "spark-today.mp3")
	require.NoError(t, err)
	assert.True(t, exists)

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)

	var event events.AudioChunkCreatedEvent
	require.NoError(t, json.Unmarshal(msg.Data, &event))
	assert.Equal(t, "spark-today.mp3", event.AudioKey)
	assert.Equal(t, result.RunID, event.Header.WorkflowID)

	report := application.Verifier.Verify(context.Background())
	assert.Equal(t, 1, report.Checked)
	assert.Equal(t, 1, report.Ready)
}
