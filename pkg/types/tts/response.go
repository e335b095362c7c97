package tts

import (
	"encoding/json"
	"net/http"
	"strconv"

	"xispeech.dev/pkg/object"
	"xispeech.dev/pkg/utils"
)

const (
	HeaderRequestID      = "request-id"
	HeaderCharacterCount = "x-character-count"
)

var _ object.SpeechResponse = (*AudioResponse)(nil)

// AudioResponse is a successful synthesis result together with the response
// metadata callers use for continuity and accounting.
type AudioResponse struct {
	Status         int
	Model          string
	VoiceID        string
	RequestID      string
	ContentType    string
	CharacterCount int
	Audio          []byte
}

// NewAudioResponseFromHTTP copies the metadata of resp. The body is not read.
func NewAudioResponseFromHTTP(resp *http.Response, model string, voiceID string) *AudioResponse {
	return &AudioResponse{
		Status:         resp.StatusCode,
		Model:          model,
		VoiceID:        voiceID,
		RequestID:      resp.Header.Get(HeaderRequestID),
		ContentType:    resp.Header.Get("Content-Type"),
		CharacterCount: utils.FromStringOrEmpty[int](resp.Header.Get(HeaderCharacterCount)),
	}
}

func (r *AudioResponse) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}

	return json.Marshal(map[string]any{
		"status":          r.GetStatus(),
		"model":           r.Model,
		"voice_id":        r.VoiceID,
		"request_id":      r.RequestID,
		"content_type":    r.ContentType,
		"character_count": r.CharacterCount,
		"size":            len(r.Audio),
	})
}

func (r *AudioResponse) GetRequestID() string {
	return r.RequestID
}

func (r *AudioResponse) GetModel() string {
	return r.Model
}

func (r *AudioResponse) GetCharacterCount() int {
	return r.CharacterCount
}

func (r *AudioResponse) GetStatus() int {
	if r == nil || r.Status == 0 {
		return http.StatusOK
	}

	return r.Status
}

// WriteTo writes the audio to writer, forwarding the upstream request ID and
// character count headers.
func (r *AudioResponse) WriteTo(writer http.ResponseWriter) error {
	if r == nil {
		return nil
	}

	contentType := r.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	writer.Header().Set("Content-Type", contentType)
	writer.Header().Set("Content-Length", strconv.Itoa(len(r.Audio)))

	if r.RequestID != "" {
		writer.Header().Set(HeaderRequestID, r.RequestID)
	}

	if r.CharacterCount > 0 {
		writer.Header().Set(HeaderCharacterCount, strconv.Itoa(r.CharacterCount))
	}

	writer.WriteHeader(r.GetStatus())

	_, err := writer.Write(r.Audio)
	if err != nil {
		return err
	}

	utils.SafeFlush(writer)

	return nil
}
