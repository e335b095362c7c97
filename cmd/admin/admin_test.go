package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"xispeech.dev/config"
	"xispeech.dev/pkg/elevenlabs/models"
	"xispeech.dev/pkg/elevenlabs/voices"
	"xispeech.dev/pkg/filters/usage"
	"xispeech.dev/pkg/object"
)

type fakeLister struct {
	voices []voices.Voice
	err    error
}

func (f fakeLister) ListVoices(context.Context) ([]voices.Voice, error) {
	return f.voices, f.err
}

func newRouter(t *testing.T, lister VoiceLister) *mux.Router {
	t.Helper()

	cfg := &config.Config{
		ElevenLabs: config.ElevenLabsConfig{
			APIKey:    "xi-1234567890abcdef",
			Upstreams: []config.UpstreamConfig{{Name: "backup", APIKey: "xi-backup-secret-key", Weight: 2}},
		},
		Gateway: config.GatewayConfig{
			APIKeys: []config.APIKeyConfig{{ID: "team-a", Key: "sk-team-a-secret-key"}},
		},
	}

	l, err := NewAdminListener(cfg, lister, usage.New())
	require.NoError(t, err)

	router := mux.NewRouter()
	require.NoError(t, l.RegisterRoutes(router))

	return router
}

func get(t *testing.T, router *mux.Router, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	return rec
}

func TestAdminListener(t *testing.T) {
	t.Parallel()

	t.Run("StaticVoices", func(t *testing.T) {
		t.Parallel()

		rec := get(t, newRouter(t, nil), "/v1/voices")
		require.Equal(t, http.StatusOK, rec.Code)

		var list VoiceList
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Len(t, list.Voices, len(voices.All()))
		assert.Equal(t, voices.Rachel.ID(), list.Voices[0].VoiceID)
	})

	t.Run("RemoteVoices", func(t *testing.T) {
		t.Parallel()

		rec := get(t, newRouter(t, fakeLister{voices: []voices.Voice{{VoiceID: "custom", Name: "Custom"}}}), "/v1/voices?remote=true")
		require.Equal(t, http.StatusOK, rec.Code)

		var list VoiceList
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list.Voices, 1)
		assert.Equal(t, "custom", list.Voices[0].VoiceID)
	})

	t.Run("RemoteVoicesUpstreamError", func(t *testing.T) {
		t.Parallel()

		rec := get(t, newRouter(t, fakeLister{err: object.NewAPIError(http.StatusInternalServerError, "down")}), "/v1/voices?remote=1")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("Models", func(t *testing.T) {
		t.Parallel()

		rec := get(t, newRouter(t, nil), "/v1/models")
		require.Equal(t, http.StatusOK, rec.Code)

		var list ModelList
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Equal(t, "list", list.Object)
		assert.Len(t, list.Data, len(models.All())+3)
		assert.Contains(t, list.Data, Model{ID: "tts-1", Object: "model", OwnedBy: "elevenlabs", Target: models.ElevenTurboV2_5})
	})

	t.Run("Usage", func(t *testing.T) {
		t.Parallel()

		rec := get(t, newRouter(t, nil), "/usage")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"data":[]}`, rec.Body.String())
	})

	t.Run("ConfigDumpMasksSecrets", func(t *testing.T) {
		t.Parallel()

		rec := get(t, newRouter(t, nil), "/config_dump")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "xi-1234567890abcdef")
		assert.NotContains(t, rec.Body.String(), "sk-team-a-secret-key")
		assert.NotContains(t, rec.Body.String(), "xi-backup-secret-key")

		var dumped config.Config
		require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &dumped))
		assert.Equal(t, "xi-1***********cdef", dumped.ElevenLabs.APIKey)
		assert.Equal(t, "team-a", dumped.Gateway.APIKeys[0].ID)
		require.Len(t, dumped.ElevenLabs.Upstreams, 1)
		assert.Equal(t, "backup", dumped.ElevenLabs.Upstreams[0].Name)
		assert.Equal(t, int32(2), dumped.ElevenLabs.Upstreams[0].Weight)
	})
}

func TestNewAdminListenerRequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := NewAdminListener(nil, nil, nil)
	require.Error(t, err)
}
