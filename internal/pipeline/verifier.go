package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/narration-pipeline/internal/core"
)

// Verifier defaults.
const (
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 2 * time.Second
)

// VerifierOptions tune a Verifier.
type VerifierOptions struct {
	Voice       string
	MaxRetries  int
	BackoffBase time.Duration
}

// Verifier checks that content going live today or tomorrow has narration
// and repairs what is missing.
type Verifier struct {
	deps Deps
	opts VerifierOptions
}

// NewVerifier creates a verifier. deps.Repo, deps.Clock and deps.Log are required.
func NewVerifier(deps Deps, opts VerifierOptions) *Verifier {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}

	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}

	return &Verifier{deps: deps.withDefaults(), opts: opts}
}

// BackoffDelay is the wait after failed attempt number attempt (1-based):
// base, 2*base, 4*base and so on.
func BackoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}

	return base << (attempt - 1)
}

// Verify checks the verification window and repairs missing artifacts.
func (v *Verifier) Verify(ctx context.Context) Report {
	report := Report{RunID: newRunID()}

	if err := v.deps.preflight(); err != nil {
		v.deps.Log.Warn(logNotConfigured, "Verify", report.RunID, err)
		report.Errors = append(report.Errors, err.Error())

		return report
	}

	start, end := v.deps.Clock.VerificationWindow()

	items, err := v.deps.Repo.ItemsByDateRange(ctx, start, end)
	if err != nil {
		v.deps.Log.Error(logFetchFailed, "Verify", report.RunID, err)
		report.Errors = append(report.Errors, fmt.Sprintf("failed to load content between %s and %s: %v", start, end, err))

		return report
	}

	v.deps.Log.Info(logVerifyStarted, report.RunID, len(items), start, end)

	for _, item := range items {
		if ctx.Err() != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("verification interrupted: %v", ctx.Err()))

			break
		}

		v.check(ctx, item, &report)
	}

	v.deps.Log.Info(logVerifyFinished, report.RunID, report.Checked, report.Ready,
		report.Missing, report.Repaired, len(report.FailedRepairs))

	return report
}

func (v *Verifier) check(ctx context.Context, item core.ContentItem, report *Report) {
	if !item.HasTeaching() {
		return
	}

	report.Checked++

	key := v.deps.key(item)

	// A failed existence check counts as missing.
	exists, err := v.deps.Store.Exists(ctx, key)
	if err == nil && exists {
		report.Ready++

		return
	}

	report.Missing++

	last := v.repair(ctx, item, key)
	if !last.Failed() {
		report.Repaired++
		v.deps.Log.Info(logRepaired, item.Kind, item.ID, last.Number)
		v.deps.notify(ctx, report.RunID, item, key)

		return
	}

	report.FailedRepairs = append(report.FailedRepairs, FailedRepair{
		ID:        item.ID,
		Kind:      item.Kind,
		Title:     item.Title,
		Date:      item.Date,
		Key:       key,
		LastError: last.Err.Error(),
		Attempts:  last.Number,
	})
	report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", item.ID, last.Err))
	v.deps.Log.Error(logCriticalUnrepair, item.Kind, item.ID, item.Title, item.Date, key, last.Number, last.Err)
}

// repair makes up to MaxRetries attempts, backing off between failures, and
// returns the last one.
func (v *Verifier) repair(ctx context.Context, item core.ContentItem, key string) Attempt {
	attempt := Attempt{ItemID: item.ID}

	for number := 1; number <= v.opts.MaxRetries; number++ {
		attempt.Number = number
		attempt.Err = v.deps.narrate(ctx, v.opts.Voice, item, key)

		if !attempt.Failed() {
			return attempt
		}

		v.deps.Log.Warn(logRepairAttempt, number, v.opts.MaxRetries, item.Kind, item.ID, attempt.Err)

		if number == v.opts.MaxRetries {
			break
		}

		delay := BackoffDelay(v.opts.BackoffBase, number)
		v.deps.Log.Info(logRepairBackoff, delay, number+1, item.ID)

		if err := v.deps.Sleep(ctx, delay); err != nil {
			attempt.Err = fmt.Errorf("%w (backoff interrupted: %v)", attempt.Err, err)

			break
		}
	}

	return attempt
}
