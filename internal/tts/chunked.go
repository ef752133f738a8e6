package tts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/book-expert/narration-pipeline/internal/core"
	"github.com/book-expert/narration-pipeline/internal/objectstore"
)

// OpenAIMaxInput is the speech endpoint's input limit in characters.
const OpenAIMaxInput = 4096

// ErrInputTooLong indicates narration longer than the provider accepts in a
// format whose streams cannot be joined.
var ErrInputTooLong = errors.New("narration exceeds provider input limit")

// Chunked splits long narration at paragraph and sentence boundaries,
// synthesizes the pieces in order and joins the audio. Only frame-based
// formats (mp3, aac) are joined; other formats must fit in one request.
type Chunked struct {
	inner    core.Synthesizer
	maxChars int
}

// Chunk wraps inner with a per-request character limit.
func Chunk(inner core.Synthesizer, maxChars int) *Chunked {
	return &Chunked{inner: inner, maxChars: maxChars}
}

// Configured delegates to the wrapped synthesizer.
func (c *Chunked) Configured() bool { return c.inner.Configured() }

// Format delegates to the wrapped synthesizer.
func (c *Chunked) Format() string { return c.inner.Format() }

// Synthesize synthesizes text, in pieces when it exceeds the limit.
func (c *Chunked) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if c.maxChars <= 0 || utf8.RuneCountInString(text) <= c.maxChars {
		return c.inner.Synthesize(ctx, text, voice)
	}

	switch c.inner.Format() {
	case objectstore.FormatMP3, objectstore.FormatAAC:
	default:
		return nil, fmt.Errorf("%w: %d characters in %s", ErrInputTooLong, utf8.RuneCountInString(text), c.inner.Format())
	}

	chunks := SplitText(text, c.maxChars)

	var audio []byte

	for index, chunk := range chunks {
		part, err := c.inner.Synthesize(ctx, chunk, voice)
		if err != nil {
			return nil, fmt.Errorf("chunk %d/%d: %w", index+1, len(chunks), err)
		}

		audio = append(audio, part...)
	}

	return audio, nil
}

// SplitText breaks text into pieces of at most maxChars runes, preferring
// paragraph breaks, then sentence ends, then spaces.
func SplitText(text string, maxChars int) []string {
	var chunks []string

	current := ""

	flush := func() {
		if trimmed := strings.TrimSpace(current); trimmed != "" {
			chunks = append(chunks, trimmed)
		}

		current = ""
	}

	for _, paragraph := range strings.Split(text, "\n\n") {
		for _, piece := range splitPiece(paragraph, maxChars) {
			joined := piece
			if current != "" {
				joined = current + "\n\n" + piece
			}

			if utf8.RuneCountInString(joined) <= maxChars {
				current = joined

				continue
			}

			flush()
			current = piece
		}
	}

	flush()

	return chunks
}

// splitPiece splits one paragraph so that no piece exceeds maxChars.
func splitPiece(paragraph string, maxChars int) []string {
	if utf8.RuneCountInString(paragraph) <= maxChars {
		return []string{paragraph}
	}

	var pieces []string

	rest := []rune(paragraph)

	for len(rest) > maxChars {
		cut := lastBreak(rest[:maxChars])
		pieces = append(pieces, strings.TrimSpace(string(rest[:cut])))
		rest = []rune(strings.TrimLeft(string(rest[cut:]), " \n"))
	}

	if len(rest) > 0 {
		pieces = append(pieces, string(rest))
	}

	return pieces
}

// lastBreak returns the cut position after the last sentence end, else the
// last space, else len(window).
func lastBreak(window []rune) int {
	space := -1

	for i := len(window) - 1; i > 0; i-- {
		switch window[i] {
		case '.', '!', '?':
			if i+1 == len(window) || window[i+1] == ' ' || window[i+1] == '\n' {
				return i + 1
			}
		case ' ', '\n':
			if space < 0 {
				space = i
			}
		}
	}

	if space > 0 {
		return space
	}

	return len(window)
}
