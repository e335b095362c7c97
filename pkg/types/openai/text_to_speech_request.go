package openai

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"xispeech.dev/pkg/object"
	"xispeech.dev/pkg/types/tts"
	"xispeech.dev/pkg/utils"
)

var (
	_ object.SpeechRequest = (*TextToSpeechRequest)(nil)
	_ tts.Request          = (*TextToSpeechRequest)(nil)
)

// TextToSpeechRequest is an OpenAI-compatible /v1/audio/speech body. The raw
// buffer is kept in sync with the typed fields so that patched requests can be
// forwarded or logged as the caller would have sent them.
type TextToSpeechRequest struct {
	Model          string         `json:"model,omitempty"`
	Input          string         `json:"input,omitempty"`
	Voice          string         `json:"voice,omitempty"`
	ResponseFormat *string        `json:"response_format,omitempty"`
	Speed          *float64       `json:"speed,omitempty"`
	Instructions   *string        `json:"instructions,omitempty"`
	ExtraBody      map[string]any `json:"extra_body,omitempty"`

	bodyParsed      map[string]any
	bodyBuffer      *bytes.Buffer
	incomingRequest *http.Request
}

func NewTextToSpeechRequest(httpRequest *http.Request) (*TextToSpeechRequest, error) {
	buffer, parsed, err := utils.ReadAsJSONWithClose(httpRequest.Body)
	if err != nil {
		return nil, NewErrorInvalidBody()
	}

	req := &TextToSpeechRequest{
		Model:           utils.GetByJSONPath[string](parsed, "{ .model }"),
		Input:           utils.GetByJSONPath[string](parsed, "{ .input }"),
		Voice:           utils.GetByJSONPath[string](parsed, "{ .voice }"),
		ResponseFormat:  utils.GetByJSONPath[*string](parsed, "{ .response_format }"),
		Speed:           utils.GetByJSONPath[*float64](parsed, "{ .speed }"),
		Instructions:    utils.GetByJSONPath[*string](parsed, "{ .instructions }"),
		ExtraBody:       utils.GetByJSONPath[map[string]any](parsed, "{ .extra_body }"),
		bodyParsed:      parsed,
		bodyBuffer:      buffer,
		incomingRequest: httpRequest,
	}

	if strings.TrimSpace(req.Input) == "" {
		return nil, NewErrorMissingParameter("input")
	}

	if extra := parsed["extra_body"]; extra != nil {
		if _, isObject := extra.(map[string]any); !isObject {
			return nil, NewErrorInvalidType("extra_body", "an object", jsonTypeName(extra))
		}
	}

	return req, nil
}

func (r *TextToSpeechRequest) MarshalJSON() ([]byte, error) {
	return r.bodyBuffer.Bytes(), nil
}

func (r *TextToSpeechRequest) GetModel() string {
	return r.Model
}

func (r *TextToSpeechRequest) GetInput() string {
	return r.Input
}

func (r *TextToSpeechRequest) GetVoice() string {
	return r.Voice
}

func (r *TextToSpeechRequest) GetResponseFormat() *string {
	return r.ResponseFormat
}

func (r *TextToSpeechRequest) GetSpeed() *float64 {
	return r.Speed
}

func (r *TextToSpeechRequest) GetInstructions() *string {
	return r.Instructions
}

func (r *TextToSpeechRequest) GetExtraBody() map[string]any {
	return r.ExtraBody
}

func (r *TextToSpeechRequest) SetModel(model string) error {
	var err error

	r.bodyBuffer, r.bodyParsed, err = modifyBufferBodyAndParsed(r.bodyBuffer, nil, NewAdd("/model", model))
	if err != nil {
		return err
	}

	r.Model = model

	return nil
}

func (r *TextToSpeechRequest) SetVoice(voice string) error {
	var err error

	r.bodyBuffer, r.bodyParsed, err = modifyBufferBodyAndParsed(r.bodyBuffer, nil, NewAdd("/voice", voice))
	if err != nil {
		return err
	}

	r.Voice = voice

	return nil
}

// SetDefaultParams adds the keys of params that the caller did not send.
func (r *TextToSpeechRequest) SetDefaultParams(params map[string]any) error {
	for k, v := range params {
		if _, exists := r.bodyParsed[k]; exists {
			continue
		}

		var err error

		r.bodyBuffer, r.bodyParsed, err = modifyBufferBodyAndParsed(r.bodyBuffer, nil, NewAdd("/"+k, v))
		if err != nil {
			return fmt.Errorf("failed to add key %s: %w", k, err)
		}
	}

	r.syncFromParsed()

	return nil
}

// SetOverrideParams writes every key of params, replacing what the caller sent.
func (r *TextToSpeechRequest) SetOverrideParams(params map[string]any) error {
	applyOpt := jsonpatch.NewApplyOptions()
	applyOpt.EnsurePathExistsOnAdd = true

	for k, v := range params {
		var err error

		r.bodyBuffer, r.bodyParsed, err = modifyBufferBodyAndParsed(r.bodyBuffer, applyOpt, NewAdd("/"+k, v))
		if err != nil {
			return fmt.Errorf("failed to override key %s: %w", k, err)
		}
	}

	r.syncFromParsed()

	return nil
}

func (r *TextToSpeechRequest) RemoveParamKeys(keys []string) error {
	applyOpt := jsonpatch.NewApplyOptions()
	applyOpt.AllowMissingPathOnRemove = true

	for _, v := range keys {
		var err error

		r.bodyBuffer, r.bodyParsed, err = modifyBufferBodyAndParsed(r.bodyBuffer, applyOpt, NewRemove("/"+v))
		if err != nil {
			return err
		}
	}

	r.syncFromParsed()

	return nil
}

func (r *TextToSpeechRequest) syncFromParsed() {
	r.Model = utils.GetByJSONPath[string](r.bodyParsed, "{ .model }")
	r.Voice = utils.GetByJSONPath[string](r.bodyParsed, "{ .voice }")
	r.ResponseFormat = utils.GetByJSONPath[*string](r.bodyParsed, "{ .response_format }")
	r.Speed = utils.GetByJSONPath[*float64](r.bodyParsed, "{ .speed }")
	r.Instructions = utils.GetByJSONPath[*string](r.bodyParsed, "{ .instructions }")
	r.ExtraBody = utils.GetByJSONPath[map[string]any](r.bodyParsed, "{ .extra_body }")
}

func (r *TextToSpeechRequest) GetRequestType() object.RequestType {
	return object.RequestTypeTextToSpeech
}

func (r *TextToSpeechRequest) GetRawRequest() *http.Request {
	return r.incomingRequest
}

func (r *TextToSpeechRequest) GetBodyParsed() map[string]any {
	return r.bodyParsed
}

func (r *TextToSpeechRequest) GetBodyBuffer() *bytes.Buffer {
	return r.bodyBuffer
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case string:
		return "a string"
	case bool:
		return "a boolean"
	case float64:
		return "a number"
	case []any:
		return "an array"
	default:
		return "an object"
	}
}
