package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/samber/lo"

	"xispeech.dev/config"
	"xispeech.dev/pkg/elevenlabs/voices"
	"xispeech.dev/pkg/filters"
	"xispeech.dev/pkg/metadata"
	"xispeech.dev/pkg/object"
	"xispeech.dev/pkg/types/openai"
)

var (
	_ filters.RequestFilter         = (*AuthFilter)(nil)
	_ filters.OnRequestPreFilter    = (*AuthFilter)(nil)
	_ filters.OnSpeechRequestFilter = (*AuthFilter)(nil)
)

// AuthFilter authenticates gateway callers against the statically configured
// API keys and enforces their model and voice allow/deny rules.
type AuthFilter struct {
	filters.IsRequestFilter

	keys []config.APIKeyConfig
}

func NewWithConfig(keys []config.APIKeyConfig) (*AuthFilter, error) {
	if len(keys) == 0 {
		return nil, errors.New("auth filter requires at least one api key")
	}

	return &AuthFilter{keys: keys}, nil
}

func (a *AuthFilter) lookup(apiKey string) (config.APIKeyConfig, bool) {
	return lo.Find(a.keys, func(k config.APIKeyConfig) bool {
		return subtle.ConstantTimeCompare([]byte(k.Key), []byte(apiKey)) == 1
	})
}

func (a *AuthFilter) OnRequestPre(ctx context.Context, sourceHTTPRequest *http.Request) filters.RequestFilterResult {
	rMeta := metadata.RequestMetadataFromCtx(ctx)
	rMeta.EnabledAuthFilter = true

	apiKey, err := BearerMarshal(sourceHTTPRequest)
	if err != nil {
		slog.Debug("auth filter: missing api key", "error", err)
		return filters.NewFailed(openai.NewErrorMissingAPIKey())
	}

	key, ok := a.lookup(apiKey)
	if !ok {
		slog.Debug("auth filter: unknown api key", "apikey", MaskAPIKey(apiKey))
		return filters.NewFailed(openai.NewErrorIncorrectAPIKey(MaskAPIKey(apiKey)))
	}

	rMeta.AuthInfo = &metadata.AuthInfo{
		APIKeyID:    key.ID,
		AllowModels: key.AllowModels,
		DenyModels:  key.DenyModels,
		AllowVoices: key.AllowVoices,
		DenyVoices:  key.DenyVoices,
	}

	return filters.NewOK()
}

func (a *AuthFilter) OnSpeechRequest(ctx context.Context, request object.SpeechRequest, _ *http.Request) filters.RequestFilterResult {
	authInfo := metadata.RequestMetadataFromCtx(ctx).AuthInfo
	if authInfo == nil {
		return filters.NewFailed(errors.New("missing auth info in context"))
	}

	accessModel := request.GetModel()
	if accessModel == "" {
		return filters.NewFailed(openai.NewErrorMissingModel())
	}

	denied := IsDenied(accessModel, authInfo.DenyModels)
	granted := IsGranted(accessModel, authInfo.AllowModels)

	if !CanAccessModelFromValues(denied, granted) {
		slog.Debug("auth filter: model not accessible", "apikey_id", authInfo.APIKeyID, "model", accessModel, "denied", denied)

		if denied {
			return filters.NewFailed(openai.NewErrorModelAccessDenied(accessModel))
		}

		return filters.NewFailed(openai.NewErrorModelNotFoundOrNotAccessible(accessModel))
	}

	accessVoice := request.GetVoice()
	candidates := VoiceCandidates(accessVoice)

	denied = lo.SomeBy(candidates, func(v string) bool { return IsDenied(v, authInfo.DenyVoices) })
	granted = lo.SomeBy(candidates, func(v string) bool { return IsGranted(v, authInfo.AllowVoices) })

	if !CanAccessModelFromValues(denied, granted) {
		slog.Debug("auth filter: voice not accessible", "apikey_id", authInfo.APIKeyID, "voice", accessVoice, "denied", denied)

		if denied {
			return filters.NewFailed(openai.NewErrorVoiceAccessDenied(accessVoice))
		}

		return filters.NewFailed(openai.NewErrorVoiceNotFoundOrNotAccessible(accessVoice))
	}

	return filters.NewOK()
}

// VoiceCandidates lists the names a voice rule may match: the value as sent
// plus, for premade voices, the canonical name and ID.
func VoiceCandidates(voice string) []string {
	candidates := []string{voice}

	if v, ok := voices.ByName(voice); ok {
		candidates = append(candidates, v.Name(), v.ID())
	} else if v, ok := voices.ByID(voice); ok {
		candidates = append(candidates, v.Name())
	}

	return lo.Uniq(candidates)
}

func BearerMarshal(request *http.Request) (string, error) {
	authHeader := request.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("missing Authorization header")
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return "", errors.New("invalid Authorization header format")
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
	if token == "" {
		return "", errors.New("missing API Key in Authorization header")
	}

	return token, nil
}

// MaskAPIKey keeps the first and last four characters of long keys.
func MaskAPIKey(apiKey string) string {
	const visible = 4
	if len(apiKey) <= visible*2 {
		return strings.Repeat("*", len(apiKey))
	}

	return apiKey[:visible] + strings.Repeat("*", len(apiKey)-visible*2) + apiKey[len(apiKey)-visible:]
}

func matchAny(value string, rules []string) bool {
	return lo.SomeBy(rules, func(rule string) bool {
		matched, err := doublestar.Match(rule, value)
		if err != nil {
			return false
		}

		return matched
	})
}

func IsDenied(value string, denyRules []string) bool {
	if len(denyRules) == 0 {
		return false
	}

	return matchAny(value, denyRules)
}

// IsGranted treats an empty allow list as allowing everything.
func IsGranted(value string, allowRules []string) bool {
	if len(allowRules) == 0 {
		return true
	}

	return matchAny(value, allowRules)
}

/*
CanAccessModel determines whether the caller can use the model. Rules are
doublestar globs:

- * matches any name without a /, e.g. eleven_*.

- ns/* matches the names directly under ns.

- ** matches everything.

A deny rule always wins over an allow rule.
*/
func CanAccessModel(requestModel string, allowModels []string, denyModels []string) bool {
	return CanAccessModelFromValues(IsDenied(requestModel, denyModels), IsGranted(requestModel, allowModels))
}

func CanAccessModelFromValues(isDenied bool, isGranted bool) bool {
	return !isDenied && isGranted
}
