// Package narration assembles the spoken text for a content item.
//
// Sections always appear in the same order: title announcement, scripture
// reading, teaching body, closing prayer. A missing optional field drops its
// section entirely; the teaching body is mandatory.
package narration

import (
	"errors"
	"strings"

	"github.com/book-expert/narration-pipeline/internal/core"
)

// Spoken framing phrases.
const (
	readingIntro = "A reading from "
	prayerIntro  = "Let us pray."
	sectionBreak = "\n\n"
	sentenceEnd  = "."
	quote        = "\""
)

// ErrMissingTeaching indicates that the payload has no teaching body.
var ErrMissingTeaching = errors.New("narration requires a teaching body")

// Payload holds the narrated fields of a content item.
type Payload struct {
	Title         string
	ScriptureRef  string
	ScriptureText string
	Teaching      string
	Prayer        string
}

// PayloadFromItem extracts the narrated fields from a content item.
func PayloadFromItem(item core.ContentItem) Payload {
	return Payload{
		Title:         item.Title,
		ScriptureRef:  item.ScriptureRef,
		ScriptureText: item.ScriptureText,
		Teaching:      item.Teaching,
		Prayer:        item.Prayer,
	}
}

// Compose builds the narration string for the payload.
func Compose(payload Payload) (string, error) {
	teaching := strings.TrimSpace(payload.Teaching)
	if teaching == "" {
		return "", ErrMissingTeaching
	}

	sections := make([]string, 0, 4)

	if title := strings.TrimSpace(payload.Title); title != "" {
		sections = append(sections, sentence(title))
	}

	ref := strings.TrimSpace(payload.ScriptureRef)
	passage := strings.TrimSpace(payload.ScriptureText)

	if ref != "" && passage != "" {
		sections = append(sections, sentence(readingIntro+ref)+"\n"+quote+passage+quote)
	}

	sections = append(sections, teaching)

	if prayer := strings.TrimSpace(payload.Prayer); prayer != "" {
		sections = append(sections, prayerIntro+"\n"+prayer)
	}

	return strings.Join(sections, sectionBreak), nil
}

// ComposeItem is Compose applied to a content item.
func ComposeItem(item core.ContentItem) (string, error) {
	return Compose(PayloadFromItem(item))
}

// sentence terminates text with a period unless it already ends in punctuation.
func sentence(text string) string {
	if strings.HasSuffix(text, sentenceEnd) || strings.HasSuffix(text, "!") || strings.HasSuffix(text, "?") {
		return text
	}

	return text + sentenceEnd
}
