// Package core defines the domain types and collaborator interfaces for the
// narration pipeline.
package core

import (
	"context"

	"cloud.google.com/go/civil"
)

// ContentRepository is the read-only view of the content store.
type ContentRepository interface {
	// ItemsByDateRange returns the items scheduled between start and end, both inclusive.
	ItemsByDateRange(ctx context.Context, start, end civil.Date) ([]ContentItem, error)
	AllItems(ctx context.Context) ([]ContentItem, error)
}

// AudioStore defines the interface for the key-addressed artifact store.
//
// An unconfigured store reports Configured() == false, answers Exists with
// false and rejects writes, so callers can treat "no storage" as "not found".
type AudioStore interface {
	Configured() bool
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Synthesizer defines the interface for a text-to-speech provider.
type Synthesizer interface {
	Configured() bool
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
	// Format is the audio container produced, e.g. "mp3".
	Format() string
}

// Notifier announces newly stored artifacts to downstream consumers.
type Notifier interface {
	ArtifactStored(ctx context.Context, runID string, item ContentItem, key string) error
}
