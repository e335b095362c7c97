package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xispeech.dev/config"
	"xispeech.dev/pkg/elevenlabs/voices"
	"xispeech.dev/pkg/metadata"
	"xispeech.dev/pkg/types/openai"
)

func newAuthFilter(t *testing.T) *AuthFilter {
	t.Helper()

	f, err := NewWithConfig([]config.APIKeyConfig{
		{ID: "team-a", Key: "sk-team-a-0123456789", AllowModels: []string{"eleven_*"}, DenyVoices: []string{"Adam"}},
		{ID: "team-b", Key: "sk-team-b-0123456789", DenyModels: []string{"eleven_v3"}, AllowVoices: []string{"Rachel", "Bella"}},
	})
	require.NoError(t, err)

	return f
}

func newHTTPRequest(authorization string, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/audio/speech", strings.NewReader(body))
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	return req.WithContext(metadata.InitMetadataContext(req))
}

func errorStatus(t *testing.T, err error) int {
	t.Helper()

	resp := openai.NewErrorFromServiceError(err)

	return resp.Status
}

func TestNewWithConfig(t *testing.T) {
	t.Parallel()

	_, err := NewWithConfig(nil)
	require.Error(t, err)
}

func TestAuthFilterOnRequestPre(t *testing.T) {
	t.Parallel()

	f := newAuthFilter(t)

	t.Run("Valid", func(t *testing.T) {
		t.Parallel()

		req := newHTTPRequest("Bearer sk-team-a-0123456789", "")

		result := f.OnRequestPre(req.Context(), req)
		require.True(t, result.IsOK())

		rMeta := metadata.RequestMetadataFromCtx(req.Context())
		assert.True(t, rMeta.EnabledAuthFilter)
		assert.Equal(t, "team-a", rMeta.AuthInfo.GetAPIKeyID())
		assert.Equal(t, []string{"eleven_*"}, rMeta.AuthInfo.AllowModels)
	})

	t.Run("Missing", func(t *testing.T) {
		t.Parallel()

		req := newHTTPRequest("", "")

		result := f.OnRequestPre(req.Context(), req)
		require.True(t, result.IsFailed())
		assert.Equal(t, http.StatusUnauthorized, errorStatus(t, result.Error))
	})

	t.Run("Incorrect", func(t *testing.T) {
		t.Parallel()

		req := newHTTPRequest("Bearer sk-unknown-0123456789", "")

		result := f.OnRequestPre(req.Context(), req)
		require.True(t, result.IsFailed())
		assert.Equal(t, http.StatusUnauthorized, errorStatus(t, result.Error))
		assert.Contains(t, result.Error.Error(), "sk-u"+strings.Repeat("*", 13)+"6789")
		assert.NotContains(t, result.Error.Error(), "sk-unknown-0123456789")
	})
}

func TestAuthFilterOnSpeechRequest(t *testing.T) {
	t.Parallel()

	f := newAuthFilter(t)

	testCases := []struct {
		name   string
		apiKey string
		body   string
		status int
	}{
		{"Allowed", "sk-team-a-0123456789", `{"model":"eleven_v3","voice":"Rachel","input":"hi"}`, 0},
		{"ModelNotGranted", "sk-team-a-0123456789", `{"model":"tts-1","voice":"Rachel","input":"hi"}`, http.StatusNotFound},
		{"VoiceDeniedByName", "sk-team-a-0123456789", `{"model":"eleven_v3","voice":"adam","input":"hi"}`, http.StatusForbidden},
		{"VoiceDeniedByID", "sk-team-a-0123456789", `{"model":"eleven_v3","voice":"` + voices.Adam.ID() + `","input":"hi"}`, http.StatusForbidden},
		{"ModelDenied", "sk-team-b-0123456789", `{"model":"eleven_v3","voice":"Rachel","input":"hi"}`, http.StatusForbidden},
		{"VoiceGrantedByID", "sk-team-b-0123456789", `{"model":"eleven_turbo_v2_5","voice":"` + voices.Bella.ID() + `","input":"hi"}`, 0},
		{"VoiceNotGranted", "sk-team-b-0123456789", `{"model":"eleven_turbo_v2_5","voice":"Josh","input":"hi"}`, http.StatusNotFound},
		{"MissingModel", "sk-team-b-0123456789", `{"voice":"Rachel","input":"hi"}`, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			httpReq := newHTTPRequest("Bearer "+tc.apiKey, tc.body)
			require.True(t, f.OnRequestPre(httpReq.Context(), httpReq).IsOK())

			speechReq, err := openai.NewTextToSpeechRequest(httpReq)
			require.NoError(t, err)

			result := f.OnSpeechRequest(httpReq.Context(), speechReq, httpReq)
			if tc.status == 0 {
				assert.True(t, result.IsOK())
				return
			}

			require.True(t, result.IsFailed())
			assert.Equal(t, tc.status, errorStatus(t, result.Error))
		})
	}

	t.Run("WithoutAuthInfo", func(t *testing.T) {
		t.Parallel()

		httpReq := newHTTPRequest("", `{"model":"eleven_v3","input":"hi"}`)

		speechReq, err := openai.NewTextToSpeechRequest(httpReq)
		require.NoError(t, err)

		assert.True(t, f.OnSpeechRequest(httpReq.Context(), speechReq, httpReq).IsFailed())
	})
}

func TestBearerMarshal(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodPost, "/", nil)

	_, err := BearerMarshal(req)
	require.EqualError(t, err, "missing Authorization header")

	req.Header.Set("Authorization", "Basic abc")
	_, err = BearerMarshal(req)
	require.EqualError(t, err, "invalid Authorization header format")

	req.Header.Set("Authorization", "Bearer  ")
	_, err = BearerMarshal(req)
	require.EqualError(t, err, "missing API Key in Authorization header")

	req.Header.Set("Authorization", "Bearer sk-1")
	token, err := BearerMarshal(req)
	require.NoError(t, err)
	assert.Equal(t, "sk-1", token)
}

func TestMaskAPIKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "****", MaskAPIKey("abcd"))
	assert.Equal(t, "sk-a****wxyz", MaskAPIKey("sk-a1234wxyz"))
}

func TestVoiceCandidates(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"rachel", "Rachel", voices.Rachel.ID()}, VoiceCandidates("rachel"))
	assert.Equal(t, []string{voices.Rachel.ID(), "Rachel"}, VoiceCandidates(voices.Rachel.ID()))
	assert.Equal(t, []string{"custom"}, VoiceCandidates("custom"))
}

func TestCanAccessModel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		allowModels  []string
		deniedModels []string
		requestModel string
		want         bool
	}{
		{name: "EmptyAllowsAll", requestModel: "eleven_v3", want: true},
		{name: "DoubleStar", allowModels: []string{"**"}, requestModel: "team/custom/model", want: true},
		{name: "Prefix", allowModels: []string{"eleven_*"}, requestModel: "eleven_flash_v2_5", want: true},
		{name: "PrefixMiss", allowModels: []string{"eleven_*"}, requestModel: "tts-1", want: false},
		{name: "SingleStarNoSlash", allowModels: []string{"*"}, requestModel: "team/model", want: false},
		{name: "SingleStar", allowModels: []string{"*"}, requestModel: "eleven_v3", want: true},
		{name: "DenyWins", allowModels: []string{"*"}, deniedModels: []string{"eleven_v3"}, requestModel: "eleven_v3", want: false},
		{name: "DenyOther", allowModels: []string{"*"}, deniedModels: []string{"eleven_v3"}, requestModel: "eleven_turbo_v2", want: true},
		{name: "Namespace", allowModels: []string{"team/*"}, requestModel: "team/voice:v2", want: true},
		{name: "NestedNamespace", allowModels: []string{"team/**"}, requestModel: "team/a/b", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equalf(t, tt.want, CanAccessModel(tt.requestModel, tt.allowModels, tt.deniedModels), "CanAccessModel(%v, %v)", tt.allowModels, tt.requestModel)
		})
	}
}
