// Package objectstore provides the artifact stores used by the narration
// pipeline and the deterministic key scheme they share.
package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/book-expert/narration-pipeline/internal/core"
)

// Audio formats and their content types.
const (
	FormatMP3  = "mp3"
	FormatWAV  = "wav"
	FormatOpus = "opus"
	FormatAAC  = "aac"
	FormatFLAC = "flac"

	contentTypeMP3  = "audio/mpeg"
	contentTypeWAV  = "audio/wav"
	contentTypeOgg  = "audio/ogg"
	contentTypeAAC  = "audio/aac"
	contentTypeFLAC = "audio/flac"
	contentTypeBin  = "application/octet-stream"
)

const (
	publicAudioPath        = "/audio/"
	invalidCharReplacement = "_"
)

// ErrNotConfigured is returned by writes against a store with no backend.
var ErrNotConfigured = errors.New("audio storage is not configured")

// Key returns the storage key for an item's artifact in the default mp3 format.
func Key(item core.ContentItem) string {
	return KeyWithFormat(item, FormatMP3)
}

// KeyWithFormat returns the storage key for an item's artifact.
//
// Sparks map to "spark-{id}.{ext}" and reading-plan days to
// "reading-plan-{parentId}-day-{n}.{ext}".
func KeyWithFormat(item core.ContentItem, format string) string {
	if item.Kind == core.KindReadingPlan {
		parent := item.ParentID
		if parent == "" {
			parent = item.ID
		}

		return fmt.Sprintf("%s-%s-day-%d.%s", item.Kind, sanitize(parent), item.DayNumber, format)
	}

	kind := item.Kind
	if kind == "" {
		kind = core.KindSpark
	}

	return fmt.Sprintf("%s-%s.%s", kind, sanitize(item.ID), format)
}

// ContentTypeFor maps an audio format to its MIME type.
func ContentTypeFor(format string) string {
	switch strings.ToLower(format) {
	case FormatMP3:
		return contentTypeMP3
	case FormatWAV:
		return contentTypeWAV
	case FormatOpus:
		return contentTypeOgg
	case FormatAAC:
		return contentTypeAAC
	case FormatFLAC:
		return contentTypeFLAC
	default:
		return contentTypeBin
	}
}

// PublicURL returns the serving URL for a key under baseURL.
func PublicURL(baseURL, key string) string {
	return strings.TrimSuffix(baseURL, "/") + publicAudioPath + key
}

// sanitize replaces characters that are unsafe in object names and URLs.
func sanitize(value string) string {
	replacer := strings.NewReplacer(
		"<", invalidCharReplacement,
		">", invalidCharReplacement,
		":", invalidCharReplacement,
		"\"", invalidCharReplacement,
		"/", invalidCharReplacement,
		"\\", invalidCharReplacement,
		"|", invalidCharReplacement,
		"?", invalidCharReplacement,
		"*", invalidCharReplacement,
		"#", invalidCharReplacement,
		" ", invalidCharReplacement,
	)

	return replacer.Replace(value)
}
