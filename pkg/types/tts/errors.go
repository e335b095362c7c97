package tts

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samber/mo"

	"xispeech.dev/pkg/object"
	"xispeech.dev/pkg/utils"
)

// ClassifyTransportError turns a failure that happened before any HTTP status
// was known into a RequestError. Errors that are already classified pass
// through unchanged.
func ClassifyTransportError(err error) error {
	if err == nil {
		return nil
	}

	if ttsErr, ok := object.AsTTSError(err); ok {
		return ttsErr
	}

	return object.NewRequestError(err)
}

// ParseUpstreamError classifies a non-2xx response: 401, 402 and 429 map to
// their dedicated kinds, every other status to ApiError. The returned error
// keeps body verbatim in Body.
func ParseUpstreamError(resp *http.Response, body []byte) error {
	if resp == nil {
		return object.NewRequestError(errors.New("upstream response is nil"))
	}

	message := ExtractErrorMessage(body)
	if message == "" {
		message = strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	}

	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	var classified *object.TTSError

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		classified = object.NewAuthenticationError(message)
	case http.StatusPaymentRequired:
		classified = object.NewQuotaExceededError(message)
	case http.StatusTooManyRequests:
		classified = object.NewRateLimitError(ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now()), message)
	default:
		classified = object.NewAPIError(resp.StatusCode, message)
	}

	return classified.WithBody(string(body))
}

// ReadBodyError drains and closes the body of a failed response before
// classifying it. An unreadable body counts as empty.
func ReadBodyError(resp *http.Response) error {
	if resp == nil {
		return ParseUpstreamError(nil, nil)
	}

	var body []byte

	if resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()

		body, _ = io.ReadAll(resp.Body)
	}

	return ParseUpstreamError(resp, body)
}

// ExtractErrorMessage pulls a human readable message out of an error body.
// Recognized shapes are {"detail":{"message":...}}, {"detail":"..."},
// {"detail":[{"msg":...}]} and {"message":...}; anything else is returned as
// trimmed text.
func ExtractErrorMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}

	var parsed map[string]any

	err := json.Unmarshal(body, &parsed)
	if err != nil {
		return text
	}

	candidates := []string{
		utils.GetByJSONPath[string](parsed, "{ .detail.message }"),
		utils.GetByJSONPath[string](parsed, "{ .detail[0].msg }"),
		utils.GetByJSONPath[string](parsed, "{ .message }"),
		utils.GetByJSONPath[string](parsed, "{ .error.message }"),
	}

	if detail, ok := parsed["detail"].(string); ok {
		candidates = append([]string{detail}, candidates...)
	}

	for _, candidate := range candidates {
		if candidate != "" {
			return candidate
		}
	}

	return text
}

// ParseRetryAfter reads a Retry-After header given either as delay seconds or
// as an HTTP date.
func ParseRetryAfter(value string, now time.Time) mo.Option[uint64] {
	value = strings.TrimSpace(value)
	if value == "" {
		return mo.None[uint64]()
	}

	seconds, err := strconv.ParseUint(value, 10, 64)
	if err == nil {
		return mo.Some(seconds)
	}

	at, err := http.ParseTime(value)
	if err != nil {
		return mo.None[uint64]()
	}

	if !at.After(now) {
		return mo.Some(uint64(0))
	}

	return mo.Some(uint64(at.Sub(now).Round(time.Second) / time.Second))
}
