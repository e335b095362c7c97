package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xispeech.dev/config"
	"xispeech.dev/pkg/bootkit"
	"xispeech.dev/pkg/elevenlabs"
	"xispeech.dev/pkg/elevenlabs/models"
	"xispeech.dev/pkg/elevenlabs/voices"
	"xispeech.dev/pkg/filters/usage"
	"xispeech.dev/pkg/listener"
	"xispeech.dev/pkg/registry"
	v1 "xispeech.dev/pkg/types/elevenlabs/v1"
)

type lifeCycleRecorder struct {
	hooks []bootkit.LifeCycleHook
}

func (l *lifeCycleRecorder) Append(hook bootkit.LifeCycleHook) {
	l.hooks = append(l.hooks, hook)
}

type upstreamCall struct {
	path   string
	format string
	apiKey string
	body   map[string]any
}

type fakeUpstream struct {
	mutex  sync.Mutex
	calls  []upstreamCall
	status int
	body   string
	header map[string]string
}

func (u *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bs, _ := io.ReadAll(r.Body)

	call := upstreamCall{
		path:   r.URL.Path,
		format: r.URL.Query().Get("output_format"),
		apiKey: r.Header.Get("xi-api-key"),
	}
	_ = json.Unmarshal(bs, &call.body)

	u.mutex.Lock()
	u.calls = append(u.calls, call)
	u.mutex.Unlock()

	for k, v := range u.header {
		w.Header().Set(k, v)
	}

	if u.status != 0 && u.status != http.StatusOK {
		w.WriteHeader(u.status)
		_, _ = w.Write([]byte(u.body))

		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("request-id", "req-upstream")
	w.Header().Set("x-character-count", "11")
	_, _ = w.Write([]byte(u.body))
}

func (u *fakeUpstream) lastCall(t *testing.T) upstreamCall {
	t.Helper()

	u.mutex.Lock()
	defer u.mutex.Unlock()

	require.NotEmpty(t, u.calls)

	return u.calls[len(u.calls)-1]
}

func (u *fakeUpstream) callCount() int {
	u.mutex.Lock()
	defer u.mutex.Unlock()

	return len(u.calls)
}

type gateway struct {
	url      string
	upstream *fakeUpstream
	usage    *usage.UsageFilter
	listener *OpenAITextToSpeechListener
}

func newGateway(t *testing.T, upstream *fakeUpstream, mutate func(cfg *config.GatewayConfig)) *gateway {
	t.Helper()

	upstreamServer := httptest.NewServer(upstream)
	t.Cleanup(upstreamServer.Close)

	cfg := config.GatewayConfig{
		DefaultModel: models.DefaultModel,
		DefaultVoice: voices.Default.Name(),
		APIKeys: []config.APIKeyConfig{
			{ID: "team-a", Key: "sk-team-a"},
			{ID: "team-b", Key: "sk-team-b", DenyModels: []string{"tts-1-hd"}, AllowVoices: []string{"Rachel"}},
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	lc := &lifeCycleRecorder{}
	usageFilter := usage.New()

	fs, err := registry.NewRequestFiltersWithConfig(cfg, usageFilter, lc)
	require.NoError(t, err)

	client := elevenlabs.NewClient("xi-upstream-key", elevenlabs.WithBaseURL(upstreamServer.URL))
	provider := v1.NewSpeechProvider(client, v1.ProviderConfig{
		DefaultVoice: cfg.DefaultVoice,
		DefaultModel: cfg.DefaultModel,
	})

	l, err := NewOpenAITextToSpeechListener(cfg, provider, fs, lc)
	require.NoError(t, err)

	mux := listener.NewMux()
	mux.Register(l, nil)

	server, err := mux.BuildServer(&http.Server{ReadHeaderTimeout: time.Second})
	require.NoError(t, err)

	gatewayServer := httptest.NewServer(server.Handler)
	t.Cleanup(gatewayServer.Close)

	return &gateway{
		url:      gatewayServer.URL,
		upstream: upstream,
		usage:    usageFilter,
		listener: l.(*OpenAITextToSpeechListener),
	}
}

func (g *gateway) client(apiKey string) *goopenai.Client {
	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = g.url + "/v1"

	return goopenai.NewClientWithConfig(cfg)
}

func (g *gateway) post(t *testing.T, apiKey string, body string) *http.Response {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, g.url+"/v1/audio/speech", bytes.NewBufferString(body))
	require.NoError(t, err)

	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func requireAPIError(t *testing.T, err error, status int) *goopenai.APIError {
	t.Helper()

	require.Error(t, err)

	var apiErr *goopenai.APIError
	require.True(t, errors.As(err, &apiErr), "unexpected error %T: %v", err, err)
	assert.Equal(t, status, apiErr.HTTPStatusCode)

	return apiErr
}

func TestOpenAITextToSpeechListener(t *testing.T) {
	t.Parallel()

	t.Run("Success", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t, &fakeUpstream{body: "ID3-audio"}, nil)

		resp, err := g.client("sk-team-a").CreateSpeech(context.Background(), goopenai.CreateSpeechRequest{
			Model:          goopenai.TTSModel1,
			Input:          "Hello world",
			Voice:          "Rachel",
			ResponseFormat: goopenai.SpeechResponseFormatMp3,
			Speed:          1.1,
		})
		require.NoError(t, err)

		defer func() { _ = resp.Close() }()

		audio, err := io.ReadAll(resp)
		require.NoError(t, err)
		assert.Equal(t, []byte("ID3-audio"), audio)
		assert.Equal(t, "req-upstream", resp.Header().Get("request-id"))
		assert.NotEmpty(t, resp.Header().Get("X-Request-Id"))

		rachel, ok := voices.ByName("Rachel")
		require.True(t, ok)

		call := g.upstream.lastCall(t)
		assert.Equal(t, "/text-to-speech/"+rachel.ID(), call.path)
		assert.Equal(t, models.FormatMP3_44100_128, call.format)
		assert.Equal(t, "xi-upstream-key", call.apiKey)
		assert.Equal(t, models.ElevenTurboV2_5, call.body["model_id"])
		assert.Equal(t, "Hello world", call.body["text"])
		assert.InDelta(t, 1.1, call.body["voice_settings"].(map[string]any)["speed"], 0.0001)

		records := g.usage.Snapshot()
		require.Len(t, records, 1)
		assert.Equal(t, usage.Record{APIKeyID: "team-a", Model: "tts-1", Requests: 1, Characters: 11}, records[0])
	})

	t.Run("DefaultsApplied", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t, &fakeUpstream{body: "audio"}, nil)

		resp := g.post(t, "sk-team-a", `{"input":"hi"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		call := g.upstream.lastCall(t)
		assert.Equal(t, "/text-to-speech/"+voices.Default.ID(), call.path)
		assert.Equal(t, models.DefaultModel, call.body["model_id"])
	})

	t.Run("OverrideAndRemoveParams", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t, &fakeUpstream{body: "audio"}, func(cfg *config.GatewayConfig) {
			cfg.OverrideParams = map[string]any{"model": models.ElevenFlashV2_5}
			cfg.RemoveParamKeys = []string{"speed"}
		})

		resp := g.post(t, "sk-team-a", `{"model":"tts-1-hd","input":"hi","voice":"Rachel","speed":2}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		call := g.upstream.lastCall(t)
		assert.Equal(t, models.ElevenFlashV2_5, call.body["model_id"])
		assert.InDelta(t, 1.0, call.body["voice_settings"].(map[string]any)["speed"], 0.0001)
	})

	t.Run("MissingAPIKey", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t, &fakeUpstream{}, nil)

		resp := g.post(t, "", `{"model":"tts-1","input":"hi","voice":"Rachel"}`)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Zero(t, g.upstream.callCount())
	})

	t.Run("IncorrectAPIKey", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t, &fakeUpstream{}, nil)

		_, err := g.client("sk-unknown-key").CreateSpeech(context.Background(), goopenai.CreateSpeechRequest{
			Model: goopenai.TTSModel1,
			Input: "hi",
			Voice: goopenai.VoiceAlloy,
		})

		apiErr := requireAPIError(t, err, http.StatusUnauthorized)
		assert.Equal(t, "invalid_api_key", apiErr.Code)
		assert.NotContains(t, apiErr.Message, "sk-unknown-key")
		assert.Zero(t, g.upstream.callCount())
	})

	t.Run("ModelDenied", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t, &fakeUpstream{}, nil)

		_, err := g.client("sk-team-b").CreateSpeech(context.Background(), goopenai.CreateSpeechRequest{
			Model: goopenai.TTSModel1HD,
			Input: "hi",
			Voice: "Rachel",
		})

		apiErr := requireAPIError(t, err, http.StatusForbidden)
		assert.Equal(t, "model_access_denied", apiErr.Code)
	})

	t.Run("VoiceNotAllowed", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t, &fakeUpstream{}, nil)

		_, err := g.client("sk-team-b").CreateSpeech(context.Background(), goopenai.CreateSpeechRequest{
			Model: goopenai.TTSModel1,
			Input: "hi",
			Voice: "Domi",
		})

		apiErr := requireAPIError(t, err, http.StatusNotFound)
		assert.Equal(t, "voice_not_found", apiErr.Code)
	})

	t.Run("UnsupportedResponseFormat", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t, &fakeUpstream{}, nil)

		_, err := g.client("sk-team-a").CreateSpeech(context.Background(), goopenai.CreateSpeechRequest{
			Model:          goopenai.TTSModel1,
			Input:          "hi",
			Voice:          "Rachel",
			ResponseFormat: goopenai.SpeechResponseFormatAac,
		})

		apiErr := requireAPIError(t, err, http.StatusBadRequest)
		assert.Contains(t, apiErr.Message, "response_format")
		assert.Zero(t, g.upstream.callCount())
	})

	t.Run("MissingInput", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t, &fakeUpstream{}, nil)

		resp := g.post(t, "sk-team-a", `{"model":"tts-1","input":"  "}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("InvalidExtraBody", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t, &fakeUpstream{}, nil)

		resp := g.post(t, "sk-team-a", `{"model":"tts-1","input":"hi","voice":"Rachel","extra_body":{"seed":-1}}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Contains(t, body.Error.Message, "extra_body.seed")
		assert.Zero(t, g.upstream.callCount())
	})

	t.Run("ExtraBodyNotAnObject", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t, &fakeUpstream{}, nil)

		resp := g.post(t, "sk-team-a", `{"model":"tts-1","input":"hi","voice":"Rachel","extra_body":"seed=1"}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Zero(t, g.upstream.callCount())
	})

	t.Run("UpstreamRateLimited", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t, &fakeUpstream{
			status: http.StatusTooManyRequests,
			body:   `{"detail":{"status":"too_many_concurrent_requests","message":"slow down"}}`,
			header: map[string]string{"Retry-After": "2"},
		}, nil)

		_, err := g.client("sk-team-a").CreateSpeech(context.Background(), goopenai.CreateSpeechRequest{
			Model: goopenai.TTSModel1,
			Input: "hi",
			Voice: "Rachel",
		})

		apiErr := requireAPIError(t, err, http.StatusTooManyRequests)
		assert.Equal(t, "rate_limit_exceeded", apiErr.Code)
		assert.Contains(t, apiErr.Message, "2s")
		assert.Empty(t, g.usage.Snapshot())
	})

	t.Run("UpstreamAuthenticationFailed", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t, &fakeUpstream{
			status: http.StatusUnauthorized,
			body:   `{"detail":{"status":"invalid_api_key","message":"Invalid API key"}}`,
		}, nil)

		resp := g.post(t, "sk-team-a", `{"model":"tts-1","input":"hi","voice":"Rachel"}`)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})

	t.Run("GatewayRateLimited", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t, &fakeUpstream{body: "audio"}, func(cfg *config.GatewayConfig) {
			cfg.RateLimit = config.RateLimitConfig{
				Mode:     config.RateLimitModeLocal,
				Policies: []config.RateLimitPolicy{{Limit: 1, Window: time.Hour}},
			}
		})

		body := `{"model":"tts-1","input":"hi","voice":"Rachel"}`

		assert.Equal(t, http.StatusOK, g.post(t, "sk-team-a", body).StatusCode)
		assert.Equal(t, http.StatusTooManyRequests, g.post(t, "sk-team-a", body).StatusCode)
		assert.Equal(t, 1, g.upstream.callCount())
	})

	t.Run("RejectAfterDrained", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t, &fakeUpstream{body: "audio"}, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.NoError(t, g.listener.Drain(ctx))
		assert.True(t, g.listener.HasDrained())

		resp := g.post(t, "sk-team-a", `{"model":"tts-1","input":"hi","voice":"Rachel"}`)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		t.Parallel()

		g := newGateway(t, &fakeUpstream{}, nil)

		resp, err := http.Get(g.url + "/v1/audio/speech") //nolint:noctx
		require.NoError(t, err)

		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}
