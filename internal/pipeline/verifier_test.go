package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/narration-pipeline/internal/core"
	"github.com/book-expert/narration-pipeline/internal/objectstore"
	"github.com/book-expert/narration-pipeline/internal/pipeline"
)

func TestVerify_CountsReadyAndRepairsMissing(t *testing.T) {
	t.Parallel()

	items := []core.ContentItem{
		spark("ready", 0),
		spark("missing", 1),
		emptySpark("empty", 1),
		spark("later", 2),
	}
	f := newFixture(t, items, sparkKey("ready"))

	report := f.verifier().Verify(context.Background())

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Ready)
	assert.Equal(t, 1, report.Missing)
	assert.Equal(t, 1, report.Repaired)
	assert.Empty(t, report.FailedRepairs)
	assert.False(t, report.NeedsAttention())

	assert.Equal(t, []string{sparkKey("missing")}, f.store.puts)
	assert.Empty(t, f.sleeper.waits)
	assert.Equal(t, []string{sparkKey("missing")}, f.notifier.keys)
}

func TestVerify_PersistentFailureIsEscalated(t *testing.T) {
	t.Parallel()

	item := spark("doomed", 0)
	item.Title = "Doomed Day"
	f := newFixture(t, []core.ContentItem{item})
	f.synth.failWhen = func(int, string) error { return errProvider }

	report := f.verifier().Verify(context.Background())

	assert.Len(t, f.synth.calls, 3)
	assert.Equal(t, 1, report.Missing)
	assert.Equal(t, 0, report.Repaired)
	require.Len(t, report.FailedRepairs, 1)
	assert.True(t, report.NeedsAttention())

	failed := report.FailedRepairs[0]
	assert.Equal(t, "doomed", failed.ID)
	assert.Equal(t, core.KindSpark, failed.Kind)
	assert.Equal(t, "Doomed Day", failed.Title)
	assert.Equal(t, day(0), failed.Date)
	assert.Equal(t, sparkKey("doomed"), failed.Key)
	assert.Equal(t, 3, failed.Attempts)
	assert.Contains(t, failed.LastError, errProvider.Error())

	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, f.sleeper.waits)
	assert.Empty(t, f.store.puts)
}

func TestVerify_RecoversOnRetry(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []core.ContentItem{spark("flaky", 1)})
	f.synth.failWhen = func(call int, _ string) error {
		if call == 1 {
			return errProvider
		}

		return nil
	}

	report := f.verifier().Verify(context.Background())

	assert.Equal(t, 1, report.Repaired)
	assert.Empty(t, report.FailedRepairs)
	assert.Len(t, f.synth.calls, 2)
	assert.Equal(t, []time.Duration{2 * time.Second}, f.sleeper.waits)
}

func TestVerify_ExistenceCheckErrorTreatedAsMissing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []core.ContentItem{spark("a", 0)})
	f.store.existsErr[sparkKey("a")] = errors.New("timeout")

	report := f.verifier().Verify(context.Background())

	assert.Equal(t, 1, report.Missing)
	assert.Equal(t, 1, report.Repaired)
}

func TestVerify_UnconfiguredStorage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []core.ContentItem{spark("a", 0)})
	f.store.unconfigured = true

	report := f.verifier().Verify(context.Background())

	assert.Equal(t, pipeline.Report{RunID: report.RunID, Errors: []string{objectstore.ErrNotConfigured.Error()}}, report)
	assert.Empty(t, f.synth.calls)
}

func TestVerify_RepositoryError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.repo.err = errors.New("no route to host")

	report := f.verifier().Verify(context.Background())

	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "no route to host")
	assert.Equal(t, 0, report.Checked)
}

func TestVerify_InterruptedBackoffStopsRetrying(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []core.ContentItem{spark("a", 0)})
	f.synth.failWhen = func(int, string) error { return errProvider }
	f.sleeper.failAt = 1

	report := f.verifier().Verify(context.Background())

	assert.Len(t, f.synth.calls, 1)
	require.Len(t, report.FailedRepairs, 1)
	assert.Equal(t, 1, report.FailedRepairs[0].Attempts)
}

func TestNewVerifier_Defaults(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []core.ContentItem{spark("a", 0)})
	f.synth.failWhen = func(int, string) error { return errProvider }

	report := pipeline.NewVerifier(f.deps, pipeline.VerifierOptions{}).Verify(context.Background())

	require.Len(t, report.FailedRepairs, 1)
	assert.Equal(t, pipeline.DefaultMaxRetries, report.FailedRepairs[0].Attempts)
	assert.Equal(t, []time.Duration{pipeline.DefaultBackoffBase, 2 * pipeline.DefaultBackoffBase}, f.sleeper.waits)
}

func TestBackoffDelay_StrictlyIncreasing(t *testing.T) {
	t.Parallel()

	base := 500 * time.Millisecond

	assert.Equal(t, time.Duration(0), pipeline.BackoffDelay(base, 0))
	assert.Equal(t, base, pipeline.BackoffDelay(base, 1))
	assert.Equal(t, 2*base, pipeline.BackoffDelay(base, 2))
	assert.Equal(t, 4*base, pipeline.BackoffDelay(base, 3))

	for attempt := 1; attempt < 10; attempt++ {
		assert.Greater(t, pipeline.BackoffDelay(base, attempt+1), pipeline.BackoffDelay(base, attempt))
	}
}
