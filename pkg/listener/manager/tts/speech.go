package tts

import (
	"maps"
	"net/http"

	"xispeech.dev/pkg/listener"
	"xispeech.dev/pkg/metadata"
	"xispeech.dev/pkg/types/openai"
)

// unmarshalTextToSpeechRequest applies the configured body rewrites in the
// order remove, default, override.
func (l *OpenAITextToSpeechListener) unmarshalTextToSpeechRequest(request *http.Request) (listener.SpeechRequest, error) {
	speechRequest, err := openai.NewTextToSpeechRequest(request)
	if err != nil {
		return nil, err
	}

	if len(l.cfg.RemoveParamKeys) > 0 {
		err = speechRequest.RemoveParamKeys(l.cfg.RemoveParamKeys)
		if err != nil {
			return nil, openai.NewErrorInternalError().WithCause(err)
		}
	}

	defaults := make(map[string]any, len(l.cfg.DefaultParams)+2)
	if l.cfg.DefaultModel != "" {
		defaults["model"] = l.cfg.DefaultModel
	}

	if l.cfg.DefaultVoice != "" {
		defaults["voice"] = l.cfg.DefaultVoice
	}

	maps.Copy(defaults, l.cfg.DefaultParams)

	err = speechRequest.SetDefaultParams(defaults)
	if err != nil {
		return nil, openai.NewErrorInternalError().WithCause(err)
	}

	err = speechRequest.SetOverrideParams(l.cfg.OverrideParams)
	if err != nil {
		return nil, openai.NewErrorInternalError().WithCause(err)
	}

	if speechRequest.GetModel() == "" {
		return nil, openai.NewErrorMissingModel()
	}

	rMeta := metadata.RequestMetadataFromCtx(request.Context())
	rMeta.RequestModel = speechRequest.GetModel()
	rMeta.RequestVoice = speechRequest.GetVoice()

	return speechRequest, nil
}
