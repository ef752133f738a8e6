package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/book-expert/narration-pipeline/internal/core"
)

// Pass names used in log lines.
const (
	passWindow = "Window"
	passBatch  = "Batch"
	passBulk   = "Bulk"
)

// GeneratorOptions tune a Generator.
type GeneratorOptions struct {
	Voice string
	// Throttle is the pause after every processed item.
	Throttle time.Duration
	// BatchCooldown is the pause after every BatchSize generations of a bulk run.
	BatchCooldown time.Duration
}

// BatchOptions select a limited batch.
type BatchOptions struct {
	Limit int
	Force bool
}

// BulkOptions select a full regeneration.
type BulkOptions struct {
	BatchSize int
	Offset    int
	Force     bool
}

// Generator produces missing narration artifacts.
type Generator struct {
	deps Deps
	opts GeneratorOptions
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeGenerated
	outcomeFailed
)

// NewGenerator creates a generator. deps.Repo, deps.Clock and deps.Log are required.
func NewGenerator(deps Deps, opts GeneratorOptions) *Generator {
	return &Generator{deps: deps.withDefaults(), opts: opts}
}

// GenerateWindow narrates every item scheduled between today and today+leadDays.
func (g *Generator) GenerateWindow(ctx context.Context, leadDays int) Result {
	result := Result{RunID: newRunID()}

	start, end, err := g.deps.Clock.Window(leadDays)
	if err != nil {
		result.addError(err)

		return result
	}

	if !g.ready(passWindow, &result) {
		return result
	}

	items, err := g.deps.Repo.ItemsByDateRange(ctx, start, end)
	if err != nil {
		g.deps.Log.Error(logFetchFailed, passWindow, result.RunID, err)
		result.addError(fmt.Errorf("failed to load content between %s and %s: %w", start, end, err))

		return result
	}

	g.deps.Log.Info(logPassStarted, passWindow, result.RunID, len(items))

	for _, item := range items {
		if g.stopped(ctx, passWindow, &result) {
			break
		}

		result.Total++

		if g.processItem(ctx, nil, item, false, &result) != outcomeSkipped && g.pause(ctx, g.opts.Throttle, &result) {
			break
		}
	}

	g.finish(passWindow, &result)

	return result
}

// GenerateBatch narrates items in repository order until opts.Limit artifacts
// have been generated. Skipped items do not count towards the limit. Under
// force, existing artifacts are regenerated unless run already holds them.
func (g *Generator) GenerateBatch(ctx context.Context, run *RunContext, opts BatchOptions) Result {
	result := Result{RunID: newRunID()}

	if opts.Limit <= 0 {
		result.addError(fmt.Errorf("%w: got %d", ErrInvalidLimit, opts.Limit))

		return result
	}

	items, ok := g.loadAll(ctx, passBatch, &result)
	if !ok {
		return result
	}

	for _, item := range items {
		if result.Generated >= opts.Limit || g.stopped(ctx, passBatch, &result) {
			break
		}

		result.Total++

		if g.processItem(ctx, run, item, opts.Force, &result) != outcomeSkipped && g.pause(ctx, g.opts.Throttle, &result) {
			break
		}
	}

	g.finish(passBatch, &result)

	return result
}

// GenerateAll narrates every item from opts.Offset onwards, cooling down after
// every opts.BatchSize generations. Result.NextOffset is where a resumed run
// should start.
func (g *Generator) GenerateAll(ctx context.Context, opts BulkOptions) Result {
	result := Result{RunID: newRunID(), NextOffset: opts.Offset}

	switch {
	case opts.BatchSize <= 0:
		result.addError(fmt.Errorf("%w: got %d", ErrInvalidBatchSize, opts.BatchSize))

		return result
	case opts.Offset < 0:
		result.addError(fmt.Errorf("%w: got %d", ErrInvalidOffset, opts.Offset))
		result.NextOffset = 0

		return result
	}

	items, ok := g.loadAll(ctx, passBulk, &result)
	if !ok {
		return result
	}

	if opts.Offset >= len(items) {
		result.NextOffset = len(items)
		g.finish(passBulk, &result)

		return result
	}

	remaining := items[opts.Offset:]
	run := NewRunContext()

	for index, item := range remaining {
		if g.stopped(ctx, passBulk, &result) {
			break
		}

		result.Total++

		state := g.processItem(ctx, run, item, opts.Force, &result)
		result.NextOffset = opts.Offset + index + 1

		if state == outcomeSkipped {
			continue
		}

		if g.pause(ctx, g.opts.Throttle, &result) {
			break
		}

		last := index == len(remaining)-1
		if state == outcomeGenerated && result.Generated%opts.BatchSize == 0 && !last {
			g.deps.Log.Info(logCooldown, result.RunID, g.opts.BatchCooldown, result.Generated)

			if g.pause(ctx, g.opts.BatchCooldown, &result) {
				break
			}
		}
	}

	g.finish(passBulk, &result)

	return result
}

// processItem applies the shared per-item decision and records the outcome.
func (g *Generator) processItem(ctx context.Context, run *RunContext, item core.ContentItem, force bool, result *Result) outcome {
	if !item.HasTeaching() {
		result.Skipped++

		return outcomeSkipped
	}

	key := g.deps.key(item)

	exists, err := g.deps.Store.Exists(ctx, key)
	if err != nil {
		g.deps.Log.Error(logItemFailed, item.Kind, item.ID, err)
		result.fail(item, fmt.Errorf("existence check for %s failed: %w", key, err))

		return outcomeFailed
	}

	if exists && (!force || run.Seen(key)) {
		result.Skipped++

		return outcomeSkipped
	}

	if err := g.deps.narrate(ctx, g.opts.Voice, item, key); err != nil {
		g.deps.Log.Error(logItemFailed, item.Kind, item.ID, err)
		result.fail(item, err)

		return outcomeFailed
	}

	if force {
		run.Mark(key)
	}

	result.Generated++
	result.GeneratedIDs = append(result.GeneratedIDs, item.ID)
	g.deps.Log.Info(logItemGenerated, item.Kind, item.ID, key)
	g.deps.notify(ctx, result.RunID, item, key)

	return outcomeGenerated
}

// ready short-circuits a pass whose storage or synthesizer is unconfigured.
func (g *Generator) ready(pass string, result *Result) bool {
	if err := g.deps.preflight(); err != nil {
		g.deps.Log.Warn(logNotConfigured, pass, result.RunID, err)
		result.addError(err)

		return false
	}

	return true
}

func (g *Generator) loadAll(ctx context.Context, pass string, result *Result) ([]core.ContentItem, bool) {
	if !g.ready(pass, result) {
		return nil, false
	}

	items, err := g.deps.Repo.AllItems(ctx)
	if err != nil {
		g.deps.Log.Error(logFetchFailed, pass, result.RunID, err)
		result.addError(fmt.Errorf("failed to load content: %w", err))

		return nil, false
	}

	g.deps.Log.Info(logPassStarted, pass, result.RunID, len(items))

	return items, true
}

// stopped reports whether ctx was cancelled before the next item.
func (g *Generator) stopped(ctx context.Context, pass string, result *Result) bool {
	if ctx.Err() == nil {
		return false
	}

	result.Interrupted = true
	g.deps.Log.Warn(logPassInterrupted, pass, result.RunID, result.Total)

	return true
}

// pause sleeps for d and reports whether the pass was interrupted meanwhile.
func (g *Generator) pause(ctx context.Context, d time.Duration, result *Result) bool {
	if err := g.deps.Sleep(ctx, d); err != nil {
		result.Interrupted = true
		g.deps.Log.Warn(logPassInterrupted, "Pass", result.RunID, result.Total)

		return true
	}

	return false
}

func (g *Generator) finish(pass string, result *Result) {
	g.deps.Log.Info(logPassFinished, pass, result.RunID, result.Generated, result.Skipped, result.Failed)
}
