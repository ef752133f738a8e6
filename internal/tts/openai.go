package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/book-expert/narration-pipeline/internal/objectstore"
)

const defaultSpeechModel = "tts-1"

// OpenAIOptions configures OpenAISpeech.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	Model      string
	Format     string
	Timeout    time.Duration
	MaxRetries int
}

// OpenAISpeech synthesizes narration with the OpenAI speech endpoint.
type OpenAISpeech struct {
	client  openai.Client
	apiKey  string
	model   string
	format  string
	timeout time.Duration
}

// NewOpenAISpeech builds a speech client. An empty API key yields a client
// that reports itself unconfigured.
func NewOpenAISpeech(opts OpenAIOptions) *OpenAISpeech {
	requestOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(opts.MaxRetries),
	}
	if opts.BaseURL != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(opts.BaseURL))
	}

	model := opts.Model
	if model == "" {
		model = defaultSpeechModel
	}

	format := opts.Format
	if format == "" {
		format = objectstore.FormatMP3
	}

	return &OpenAISpeech{
		client:  openai.NewClient(requestOpts...),
		apiKey:  opts.APIKey,
		model:   model,
		format:  format,
		timeout: opts.Timeout,
	}
}

// Configured reports whether an API key is set.
func (o *OpenAISpeech) Configured() bool {
	return o.apiKey != ""
}

// Format returns the audio container requested from the provider.
func (o *OpenAISpeech) Format() string {
	return o.format
}

// Synthesize implements core.Synthesizer.
func (o *OpenAISpeech) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if !o.Configured() {
		return nil, ErrNotConfigured
	}

	if text == "" {
		return nil, ErrEmptyText
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	resp, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(o.model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(o.format),
	})
	if err != nil {
		return nil, fmt.Errorf("openai speech request failed: %w", err)
	}
	defer resp.Body.Close()

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, errors.New(errReceivedEmptyAudio)
	}

	return audioData, nil
}
