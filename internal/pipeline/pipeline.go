// Package pipeline generates and verifies narration artifacts for scheduled
// content.
//
// A pass is strictly sequential: one item's synthesis and upload completes
// before the next item starts, with a fixed throttle in between to respect the
// provider's rate limit. Failures are folded into the returned Result or Report
// and never abort a pass.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/google/uuid"

	"github.com/book-expert/narration-pipeline/internal/civicday"
	"github.com/book-expert/narration-pipeline/internal/core"
	"github.com/book-expert/narration-pipeline/internal/narration"
	"github.com/book-expert/narration-pipeline/internal/objectstore"
	"github.com/book-expert/narration-pipeline/internal/tts"
)

var (
	// ErrInvalidLimit indicates a non-positive batch limit.
	ErrInvalidLimit = errors.New("limit must be a positive integer")
	// ErrInvalidBatchSize indicates a non-positive bulk batch size.
	ErrInvalidBatchSize = errors.New("batch size must be a positive integer")
	// ErrInvalidOffset indicates a negative bulk offset.
	ErrInvalidOffset = errors.New("offset must not be negative")
)

const (
	logPassStarted      = "%s run %s started: %d items"
	logPassFinished     = "%s run %s finished: generated=%d skipped=%d failed=%d"
	logPassInterrupted  = "%s run %s interrupted after %d items"
	logNotConfigured    = "%s run %s skipped: %v"
	logFetchFailed      = "%s run %s could not load content: %v"
	logItemGenerated    = "Generated narration for %s %s as %s"
	logItemFailed       = "Failed to generate narration for %s %s: %v"
	logNotifyFailed     = "Failed to publish artifact event for %s: %v"
	logCooldown         = "Bulk run %s cooling down for %s after %d generations"
	logVerifyStarted    = "Verify run %s started: %d items between %s and %s"
	logVerifyFinished   = "Verify run %s finished: checked=%d ready=%d missing=%d repaired=%d failed=%d"
	logRepairAttempt    = "Repair attempt %d/%d for %s %s failed: %v"
	logRepairBackoff    = "Waiting %s before repair attempt %d for %s"
	logRepaired         = "Repaired %s %s on attempt %d"
	logCriticalUnrepair = "CRITICAL: narration missing for %s %s %q scheduled %s (key %s) after %d attempts: %v"
)

// Sleeper suspends for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Deps are the collaborators shared by the generator and the verifier.
type Deps struct {
	Repo  core.ContentRepository
	Store core.AudioStore
	Synth core.Synthesizer
	// Notifier is optional.
	Notifier core.Notifier
	Clock    *civicday.Clock
	Log      *logger.Logger
	// Sleep defaults to a timer that honours cancellation.
	Sleep Sleeper
}

func (d Deps) withDefaults() Deps {
	if d.Store == nil {
		d.Store = objectstore.Disabled{}
	}

	if d.Synth == nil {
		d.Synth = tts.Disabled{}
	}

	d.Synth = tts.Guard(d.Synth)

	if d.Sleep == nil {
		d.Sleep = SleepContext
	}

	return d
}

// SleepContext waits for d, returning early with ctx.Err() on cancellation.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// preflight reports the configuration error that makes a pass pointless.
func (d Deps) preflight() error {
	if !d.Store.Configured() {
		return objectstore.ErrNotConfigured
	}

	if !d.Synth.Configured() {
		return tts.ErrNotConfigured
	}

	return nil
}

// key returns the artifact key for item in the synthesizer's format.
func (d Deps) key(item core.ContentItem) string {
	return objectstore.KeyWithFormat(item, d.Synth.Format())
}

// narrate composes, synthesizes and stores the artifact for item under key.
func (d Deps) narrate(ctx context.Context, voice string, item core.ContentItem, key string) error {
	text, err := narration.ComposeItem(item)
	if err != nil {
		return err
	}

	audio, err := d.Synth.Synthesize(ctx, text, voice)
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	if err := d.Store.Put(ctx, key, audio, objectstore.ContentTypeFor(d.Synth.Format())); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	return nil
}

func (d Deps) notify(ctx context.Context, runID string, item core.ContentItem, key string) {
	if d.Notifier == nil {
		return
	}

	if err := d.Notifier.ArtifactStored(ctx, runID, item, key); err != nil {
		d.Log.Warn(logNotifyFailed, key, err)
	}
}

func newRunID() string {
	return uuid.NewString()
}
