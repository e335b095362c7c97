package object

import (
	"encoding/json"
	"net/http"
)

type RequestType string

const (
	RequestTypeTextToSpeech RequestType = "text_to_speech"
)

// SpeechRequest is an incoming speech request whose JSON body can be patched
// before it is handed to a provider.
type SpeechRequest interface {
	GetModel() string
	SetModel(modelName string) error
	GetVoice() string
	SetVoice(voice string) error
	GetInput() string

	SetOverrideParams(params map[string]any) error
	SetDefaultParams(params map[string]any) error
	RemoveParamKeys(keys []string) error

	GetRequestType() RequestType
	GetRawRequest() *http.Request
}

// SpeechResponse is a synthesized result that knows how to write itself.
type SpeechResponse interface {
	json.Marshaler

	GetRequestID() string
	GetModel() string
	GetStatus() int
	GetCharacterCount() int
	WriteTo(writer http.ResponseWriter) error
}
