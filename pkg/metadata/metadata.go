package metadata

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type metadataContextKey struct{}

// AuthInfo describes the gateway API key that authenticated a request.
type AuthInfo struct {
	APIKeyID    string
	AllowModels []string
	DenyModels  []string
	AllowVoices []string
	DenyVoices  []string
}

func (a *AuthInfo) GetAPIKeyID() string {
	if a == nil {
		return ""
	}

	return a.APIKeyID
}

// RequestMetadata collects what the gateway learns about a request while it
// flows through listeners, filters and the provider.
type RequestMetadata struct {
	RequestID string
	RequestAt time.Time
	RespondAt time.Time

	EnabledAuthFilter bool
	AuthInfo          *AuthInfo

	RequestModel string
	RequestVoice string
	StatusCode   int
	ErrorMessage string

	UpstreamProvider           string
	UpstreamName               string
	UpstreamRequestModel       string
	UpstreamRequestVoice       string
	UpstreamRequestID          string
	UpstreamRequestAt          time.Time
	UpstreamRespondAt          time.Time
	UpstreamResponseStatusCode int
	UpstreamCharacterCount     int
}

// InitMetadataContext attaches a fresh RequestMetadata to the request context,
// reusing the caller's X-Request-Id when present.
func InitMetadataContext(request *http.Request) context.Context {
	requestID := request.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = uuid.NewString()
	}

	return context.WithValue(request.Context(), metadataContextKey{}, &RequestMetadata{
		RequestID: requestID,
	})
}

// RequestMetadataFromCtx never returns nil. Without an initialized context a
// throwaway value is returned so that callers can write to it unconditionally.
func RequestMetadataFromCtx(ctx context.Context) *RequestMetadata {
	rMeta, ok := ctx.Value(metadataContextKey{}).(*RequestMetadata)
	if !ok || rMeta == nil {
		return &RequestMetadata{}
	}

	return rMeta
}
