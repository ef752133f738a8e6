package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/book-expert/logger"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/narration-pipeline/internal/civicday"
	"github.com/book-expert/narration-pipeline/internal/core"
	"github.com/book-expert/narration-pipeline/internal/objectstore"
	"github.com/book-expert/narration-pipeline/internal/pipeline"
)

var errProvider = errors.New("provider unavailable")

// fakeRepo serves a fixed item list.
type fakeRepo struct {
	items []core.ContentItem
	err   error
}

func (r *fakeRepo) ItemsByDateRange(_ context.Context, start, end civil.Date) ([]core.ContentItem, error) {
	if r.err != nil {
		return nil, r.err
	}

	var out []core.ContentItem

	for _, item := range r.items {
		if item.Date.IsZero() || item.Date.Before(start) || item.Date.After(end) {
			continue
		}

		out = append(out, item)
	}

	return out, nil
}

func (r *fakeRepo) AllItems(context.Context) ([]core.ContentItem, error) {
	if r.err != nil {
		return nil, r.err
	}

	return r.items, nil
}

// fakeStore is an in-memory audio store.
type fakeStore struct {
	unconfigured bool
	objects      map[string][]byte
	types        map[string]string
	existsErr    map[string]error
	puts         []string
}

func newFakeStore(existing ...string) *fakeStore {
	store := &fakeStore{
		objects:   make(map[string][]byte),
		types:     make(map[string]string),
		existsErr: make(map[string]error),
	}

	for _, key := range existing {
		store.objects[key] = []byte("old")
	}

	return store
}

func (s *fakeStore) Configured() bool { return !s.unconfigured }

func (s *fakeStore) Exists(_ context.Context, key string) (bool, error) {
	if err := s.existsErr[key]; err != nil {
		return false, err
	}

	_, ok := s.objects[key]

	return ok, nil
}

func (s *fakeStore) Put(_ context.Context, key string, data []byte, contentType string) error {
	s.objects[key] = data
	s.types[key] = contentType
	s.puts = append(s.puts, key)

	return nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	delete(s.objects, key)

	return nil
}

// fakeSynth records every call and fails when failWhen returns an error.
type fakeSynth struct {
	unconfigured bool
	calls        []string
	voices       []string
	failWhen     func(call int, text string) error
}

func (s *fakeSynth) Configured() bool { return !s.unconfigured }

func (s *fakeSynth) Format() string { return objectstore.FormatMP3 }

func (s *fakeSynth) Synthesize(_ context.Context, text, voice string) ([]byte, error) {
	s.calls = append(s.calls, text)
	s.voices = append(s.voices, voice)

	if s.failWhen != nil {
		if err := s.failWhen(len(s.calls), text); err != nil {
			return nil, err
		}
	}

	return []byte("audio:" + text), nil
}

// recordingSleeper records requested waits without sleeping.
type recordingSleeper struct {
	waits  []time.Duration
	failAt int
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)

	if r.failAt > 0 && len(r.waits) == r.failAt {
		return context.Canceled
	}

	return ctx.Err()
}

type fakeNotifier struct {
	keys []string
	err  error
}

func (n *fakeNotifier) ArtifactStored(_ context.Context, _ string, _ core.ContentItem, key string) error {
	n.keys = append(n.keys, key)

	return n.err
}

func day(offset int) civil.Date {
	return civil.Date{Year: 2026, Month: time.October, Day: 16}.AddDays(offset)
}

func spark(id string, dayOffset int) core.ContentItem {
	return core.ContentItem{
		ID:       id,
		Kind:     core.KindSpark,
		Title:    "Title " + id,
		Teaching: "Teaching for " + id + ".",
		Date:     day(dayOffset),
	}
}

func emptySpark(id string, dayOffset int) core.ContentItem {
	item := spark(id, dayOffset)
	item.Teaching = "   "

	return item
}

func sparkKey(id string) string {
	return fmt.Sprintf("spark-%s.mp3", id)
}

func newClock(t *testing.T) *civicday.Clock {
	t.Helper()

	location, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	now := time.Date(2026, time.October, 16, 12, 0, 0, 0, location)

	return civicday.NewWithNow(location, func() time.Time { return now })
}

func newLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "pipeline-test.log")
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	return log
}

type fixture struct {
	repo     *fakeRepo
	store    *fakeStore
	synth    *fakeSynth
	sleeper  *recordingSleeper
	notifier *fakeNotifier
	deps     pipeline.Deps
}

func newFixture(t *testing.T, items []core.ContentItem, existing ...string) *fixture {
	t.Helper()

	f := &fixture{
		repo:     &fakeRepo{items: items},
		store:    newFakeStore(existing...),
		synth:    &fakeSynth{},
		sleeper:  &recordingSleeper{},
		notifier: &fakeNotifier{},
	}

	f.deps = pipeline.Deps{
		Repo:     f.repo,
		Store:    f.store,
		Synth:    f.synth,
		Notifier: f.notifier,
		Clock:    newClock(t),
		Log:      newLogger(t),
		Sleep:    f.sleeper.sleep,
	}

	return f
}

const (
	testVoice    = "alloy"
	testThrottle = time.Second
	testCooldown = 30 * time.Second
)

func (f *fixture) generator() *pipeline.Generator {
	return pipeline.NewGenerator(f.deps, pipeline.GeneratorOptions{
		Voice:         testVoice,
		Throttle:      testThrottle,
		BatchCooldown: testCooldown,
	})
}

func (f *fixture) verifier() *pipeline.Verifier {
	return pipeline.NewVerifier(f.deps, pipeline.VerifierOptions{
		Voice:       testVoice,
		MaxRetries:  3,
		BackoffBase: 2 * time.Second,
	})
}
