package tts

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAudioResponseFromHTTP(t *testing.T) {
	t.Parallel()

	resp := newResponse(http.StatusOK, "", map[string]string{
		"Content-Type":      "audio/mpeg",
		"request-id":        "req-1",
		"x-character-count": "42",
	})

	audio := NewAudioResponseFromHTTP(resp, "eleven_v3", "voice")
	assert.Equal(t, http.StatusOK, audio.GetStatus())
	assert.Equal(t, "eleven_v3", audio.GetModel())
	assert.Equal(t, "voice", audio.VoiceID)
	assert.Equal(t, "req-1", audio.GetRequestID())
	assert.Equal(t, "audio/mpeg", audio.ContentType)
	assert.Equal(t, 42, audio.GetCharacterCount())

	resp.Header.Set("x-character-count", "many")
	assert.Zero(t, NewAudioResponseFromHTTP(resp, "", "").GetCharacterCount())
}

func TestAudioResponseWriteTo(t *testing.T) {
	t.Parallel()

	t.Run("Full", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		resp := &AudioResponse{
			Status:         http.StatusOK,
			RequestID:      "req-2",
			ContentType:    "audio/opus",
			CharacterCount: 3,
			Audio:          []byte{1, 2, 3},
		}

		require.NoError(t, resp.WriteTo(rec))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "audio/opus", rec.Header().Get("Content-Type"))
		assert.Equal(t, "3", rec.Header().Get("Content-Length"))
		assert.Equal(t, "req-2", rec.Header().Get("request-id"))
		assert.Equal(t, "3", rec.Header().Get("x-character-count"))
		assert.Equal(t, []byte{1, 2, 3}, rec.Body.Bytes())
	})

	t.Run("Defaults", func(t *testing.T) {
		t.Parallel()

		rec := httptest.NewRecorder()
		resp := &AudioResponse{Audio: []byte("x")}

		require.NoError(t, resp.WriteTo(rec))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
		assert.Empty(t, rec.Header().Get("request-id"))
	})

	t.Run("Nil", func(t *testing.T) {
		t.Parallel()

		var resp *AudioResponse
		require.NoError(t, resp.WriteTo(httptest.NewRecorder()))
	})
}

func TestAudioResponseMarshalJSON(t *testing.T) {
	t.Parallel()

	bs, err := json.Marshal(&AudioResponse{Model: "m", VoiceID: "v", RequestID: "r", Audio: []byte{1, 2}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":200,"model":"m","voice_id":"v","request_id":"r","content_type":"","character_count":0,"size":2}`, string(bs))

	var nilResp *AudioResponse

	bs, err = json.Marshal(nilResp)
	require.NoError(t, err)
	assert.Equal(t, "null", string(bs))
}
