// Package app assembles the pipeline's collaborators from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/narration-pipeline/internal/civicday"
	"github.com/book-expert/narration-pipeline/internal/config"
	"github.com/book-expert/narration-pipeline/internal/content"
	"github.com/book-expert/narration-pipeline/internal/core"
	"github.com/book-expert/narration-pipeline/internal/notify"
	"github.com/book-expert/narration-pipeline/internal/objectstore"
	"github.com/book-expert/narration-pipeline/internal/pipeline"
	"github.com/book-expert/narration-pipeline/internal/runlock"
	"github.com/book-expert/narration-pipeline/internal/tts"
)

// ErrItemNotFound indicates no content item has the requested id.
var ErrItemNotFound = errors.New("content item not found")

// App holds the wired pipeline.
type App struct {
	Config    *config.Config
	Clock     *civicday.Clock
	Repo      core.ContentRepository
	Store     core.AudioStore
	Synth     core.Synthesizer
	Generator *pipeline.Generator
	Verifier  *pipeline.Verifier
	Lock      *runlock.Lock
	// NATS is nil when no NATS feature is in use.
	NATS *nats.Conn

	log     *logger.Logger
	closers []func()
}

// Build connects every collaborator named by cfg. The caller must Close the result.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	clock, err := civicday.New(cfg.Civic.Zone)
	if err != nil {
		return nil, err
	}

	application := &App{
		Config: cfg,
		Clock:  clock,
		Lock:   runlock.New(cfg.Schedule.LockFile),
		log:    log,
	}

	err = application.wire(ctx)
	if err != nil {
		application.Close()

		return nil, err
	}

	return application, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config

	repo, closeRepo, err := content.Open(ctx, cfg.Content.Driver, cfg.Content.DSN)
	if err != nil {
		return fmt.Errorf("failed to open content repository: %w", err)
	}

	a.Repo = repo
	a.closers = append(a.closers, closeRepo)

	if needsNATS(cfg) {
		conn, err := nats.Connect(cfg.NATS.URL, nats.Name("narration-pipeline"))
		if err != nil {
			return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
		}

		a.NATS = conn
		a.closers = append(a.closers, conn.Close)
	}

	a.Store, err = a.openStore(ctx)
	if err != nil {
		return err
	}

	a.Synth = newSynthesizer(cfg.TTS)

	if !a.Store.Configured() {
		a.log.Warn("Audio storage is not configured; passes will be skipped")
	}

	if !a.Synth.Configured() {
		a.log.Warn("Speech synthesis is not configured; passes will be skipped")
	}

	deps := pipeline.Deps{
		Repo:  a.Repo,
		Store: a.Store,
		Synth: a.Synth,
		Clock: a.Clock,
		Log:   a.log,
	}

	if a.NATS != nil && cfg.NATS.AudioCreatedSubject != "" {
		deps.Notifier = notify.NewNats(a.NATS, cfg.NATS.AudioCreatedSubject)
	}

	a.Generator = pipeline.NewGenerator(deps, pipeline.GeneratorOptions{
		Voice:         cfg.Generation.Voice,
		Throttle:      cfg.Generation.Throttle(),
		BatchCooldown: cfg.Generation.BatchCooldown(),
	})
	a.Verifier = pipeline.NewVerifier(deps, pipeline.VerifierOptions{
		Voice:       cfg.Generation.Voice,
		MaxRetries:  cfg.Verification.MaxRetries,
		BackoffBase: cfg.Verification.BackoffBase(),
	})

	return nil
}

func needsNATS(cfg *config.Config) bool {
	if cfg.NATS.URL == "" {
		return false
	}

	return cfg.Storage.Backend == config.StorageNATS ||
		cfg.NATS.AudioCreatedSubject != "" ||
		cfg.NATS.TriggerSubject != ""
}

func (a *App) openStore(ctx context.Context) (core.AudioStore, error) {
	cfg := a.Config

	switch cfg.Storage.Backend {
	case config.StorageNATS:
		if a.NATS == nil {
			return objectstore.Disabled{}, nil
		}

		js, err := a.NATS.JetStream()
		if err != nil {
			return nil, fmt.Errorf("failed to get JetStream context: %w", err)
		}

		store, err := objectstore.NewNats(js, cfg.NATS.AudioObjectStoreBucket)
		if err != nil {
			return nil, err
		}

		return store, nil
	case config.StorageS3:
		store, err := objectstore.NewS3(ctx, objectstore.S3Options{
			Bucket:   cfg.Storage.Bucket,
			Region:   cfg.Storage.Region,
			Prefix:   cfg.Storage.Prefix,
			Endpoint: cfg.Storage.Endpoint,
		})
		if err != nil {
			return nil, err
		}

		return store, nil
	default:
		return objectstore.Disabled{}, nil
	}
}

func newSynthesizer(cfg config.TTSConfig) core.Synthesizer {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		speech := tts.NewOpenAISpeech(tts.OpenAIOptions{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Format:     cfg.Format,
			Timeout:    cfg.Timeout(),
			MaxRetries: cfg.MaxRetries,
		})

		return tts.Chunk(speech, tts.OpenAIMaxInput)
	case config.ProviderHTTP:
		return tts.NewHTTPClient(cfg.BaseURL, cfg.Format, cfg.Timeout())
	default:
		return tts.Disabled{}
	}
}

// FindItem returns the content item with the given id.
func (a *App) FindItem(ctx context.Context, id string) (core.ContentItem, error) {
	items, err := a.Repo.AllItems(ctx)
	if err != nil {
		return core.ContentItem{}, fmt.Errorf("failed to load content: %w", err)
	}

	for _, item := range items {
		if item.ID == id {
			return item, nil
		}
	}

	return core.ContentItem{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
}

// Key returns the artifact key of item in the configured format.
func (a *App) Key(item core.ContentItem) string {
	return objectstore.KeyWithFormat(item, a.Synth.Format())
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}

	a.closers = nil
}
