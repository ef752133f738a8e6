// Package tts provides the speech-synthesis clients used to narrate content.
//
// Every client satisfies core.Synthesizer: text and a voice go in, audio bytes
// or an error come out. Provider failures, timeouts and malformed responses are
// all reported as errors at this boundary.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/book-expert/narration-pipeline/internal/objectstore"
)

// API endpoints and paths.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
)

// Default values.
const (
	defaultTemperature = 0.75
	defaultLanguage    = "en"
)

// Error messages.
const (
	errTextCannotBeEmpty       = "text cannot be empty"
	errUnexpectedContentType   = "unexpected content type: expected %s, got %s"
	errReceivedEmptyAudio      = "received empty audio data"
	errFmtServiceErrorWithCode = "TTS service error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus   = "TTS service returned non-OK status: %s, body: %s"
)

// ErrEmptyText is returned when synthesis is requested for blank text.
var ErrEmptyText = errors.New(errTextCannotBeEmpty)

// HTTPClient is a client for a self-hosted TTS HTTP service.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	format     string
}

// Request defines the JSON payload of a speech generation request.
type Request struct {
	// Text contains the input text to convert to speech.
	Text string `json:"text"`

	// Voice names the speaker preset on the service.
	Voice string `json:"voice,omitempty"`

	// Language specifies the target language code (e.g., "en", "es").
	Language string `json:"language"`

	// Temperature controls randomness in speech generation.
	Temperature float64 `json:"temperature"`

	// Format is the requested audio container, e.g. "mp3".
	Format string `json:"format"`
}

// ErrorResponse represents a structured error response from the TTS service.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewHTTPClient creates a client for the TTS service at baseURL.
// The timeout applies to every request, so a stalled provider surfaces as an error.
func NewHTTPClient(baseURL, format string, timeout time.Duration) *HTTPClient {
	if format == "" {
		format = objectstore.FormatMP3
	}

	return &HTTPClient{
		baseURL: baseURL,
		format:  format,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Configured reports whether a service URL is set.
func (c *HTTPClient) Configured() bool {
	return c.baseURL != ""
}

// Format returns the audio container the client requests.
func (c *HTTPClient) Format() string {
	return c.format
}

// Synthesize implements core.Synthesizer.
func (c *HTTPClient) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	return c.GenerateSpeech(ctx, Request{
		Text:        text,
		Voice:       voice,
		Language:    defaultLanguage,
		Temperature: defaultTemperature,
		Format:      c.format,
	})
}

// GenerateSpeech sends a generation request and returns the raw audio data.
func (c *HTTPClient) GenerateSpeech(ctx context.Context, req Request) ([]byte, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}

	if req.Temperature == 0 {
		req.Temperature = defaultTemperature
	}

	if req.Language == "" {
		req.Language = defaultLanguage
	}

	if req.Format == "" {
		req.Format = c.format
	}

	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiGenerateSpeech,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	expectedType := objectstore.ContentTypeFor(req.Format)
	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, expectedType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to send request to TTS service at %s: %w",
			c.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != expectedType {
		return nil, fmt.Errorf(errUnexpectedContentType, expectedType, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, errors.New(errReceivedEmptyAudio)
	}

	return audioData, nil
}

// HealthCheck verifies that the TTS service is running.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf(
			"health check failed for service at %s: %w",
			c.baseURL,
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

// parseErrorResponse decodes a structured JSON error, falling back to the raw body.
func (c *HTTPClient) parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var errorResp ErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode,
			resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf(
		errFmtServiceNonOKStatus,
		resp.Status,
		string(body),
	)
}
