package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"xispeech.dev/pkg/elevenlabs/voices"
	"xispeech.dev/pkg/object"
	"xispeech.dev/pkg/types/tts"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io/v1"

	headerAPIKey = "xi-api-key"
)

// Client talks to the ElevenLabs API. It holds no per-request state and is
// safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type ClientOption func(*Client)

// WithBaseURL overrides the API root, e.g. for tests or enterprise endpoints.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// TextToSpeech starts a request for text.
func (c *Client) TextToSpeech(text string) *TextToSpeechBuilder {
	return &TextToSpeechBuilder{
		client: c,
		text:   text,
	}
}

// ExecuteRequest sends req and returns the audio bytes exactly as received.
func (c *Client) ExecuteRequest(ctx context.Context, req *TTSRequest) ([]byte, error) {
	resp, err := c.ExecuteRequestWithResponse(ctx, req)
	if err != nil {
		return nil, err
	}

	return resp.Audio, nil
}

// ExecuteRequestWithResponse is ExecuteRequest, also returning the request-id
// and character count headers of the response.
func (c *Client) ExecuteRequestWithResponse(ctx context.Context, req *TTSRequest) (*tts.AudioResponse, error) {
	if req == nil {
		return nil, object.NewValidationError("request must not be nil")
	}

	err := req.Validate()
	if err != nil {
		return nil, err
	}

	endpoint, err := req.URL(c.baseURL)
	if err != nil {
		return nil, object.NewRequestError(err)
	}

	body, err := req.Body()
	if err != nil {
		return nil, object.NewValidationErrorWithCause(fmt.Errorf("failed to encode request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, object.NewRequestError(err)
	}

	httpReq.Header.Set(headerAPIKey, c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/*")

	c.logger.DebugContext(ctx, "sending text-to-speech request",
		slog.String("voice_id", req.VoiceID),
		slog.String("model_id", req.ModelID),
		slog.String("output_format", req.OutputFormat),
		slog.Int("text_length", len(req.Text)),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, tts.ClassifyTransportError(err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		classified := tts.ReadBodyError(resp)

		c.logger.DebugContext(ctx, "text-to-speech request failed",
			slog.Int("status", resp.StatusCode),
			slog.Any("error", classified),
		)

		return nil, classified
	}

	defer func() { _ = resp.Body.Close() }()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, tts.ClassifyTransportError(err)
	}

	audioResp := tts.NewAudioResponseFromHTTP(resp, req.ModelID, req.VoiceID)
	audioResp.Audio = audio

	c.logger.DebugContext(ctx, "text-to-speech request succeeded",
		slog.String("request_id", audioResp.RequestID),
		slog.Int("size", len(audio)),
	)

	return audioResp, nil
}

// ListVoices returns the voices available to the API key.
func (c *Client) ListVoices(ctx context.Context) ([]voices.Voice, error) {
	endpoint, err := url.JoinPath(c.baseURL, "voices")
	if err != nil {
		return nil, object.NewRequestError(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, object.NewRequestError(err)
	}

	httpReq.Header.Set(headerAPIKey, c.apiKey)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, tts.ClassifyTransportError(err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, tts.ReadBodyError(resp)
	}

	defer func() { _ = resp.Body.Close() }()

	var listed voices.ListVoicesResponse

	err = json.NewDecoder(resp.Body).Decode(&listed)
	if err != nil {
		return nil, object.NewParseError(err)
	}

	return listed.Voices, nil
}
