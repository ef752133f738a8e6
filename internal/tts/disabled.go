package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/narration-pipeline/internal/core"
	"github.com/book-expert/narration-pipeline/internal/objectstore"
)

// ErrNotConfigured is returned when no synthesis provider is configured.
var ErrNotConfigured = errors.New("speech synthesis is not configured")

// Disabled is the synthesizer used when no provider credentials are present.
type Disabled struct{}

// Configured always reports false.
func (Disabled) Configured() bool { return false }

// Format returns the default artifact format.
func (Disabled) Format() string { return objectstore.FormatMP3 }

// Synthesize always fails with ErrNotConfigured.
func (Disabled) Synthesize(context.Context, string, string) ([]byte, error) {
	return nil, ErrNotConfigured
}

// Guarded wraps a synthesizer so a panicking provider SDK surfaces as an error.
type Guarded struct {
	inner core.Synthesizer
}

// Guard wraps inner.
func Guard(inner core.Synthesizer) *Guarded {
	return &Guarded{inner: inner}
}

// Configured delegates to the wrapped synthesizer.
func (g *Guarded) Configured() bool { return g.inner.Configured() }

// Format delegates to the wrapped synthesizer.
func (g *Guarded) Format() string { return g.inner.Format() }

// Synthesize delegates to the wrapped synthesizer, recovering panics.
func (g *Guarded) Synthesize(ctx context.Context, text, voice string) (audio []byte, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			audio = nil
			err = fmt.Errorf("speech provider panicked: %v", recovered)
		}
	}()

	return g.inner.Synthesize(ctx, text, voice)
}
