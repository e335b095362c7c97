package elevenlabs

import (
	"context"
	"slices"

	"github.com/samber/mo"

	"xispeech.dev/pkg/elevenlabs/models"
	"xispeech.dev/pkg/elevenlabs/voices"
	"xispeech.dev/pkg/object"
	"xispeech.dev/pkg/types/tts"
)

// TextToSpeechBuilder accumulates the options of one request. It is owned by a
// single caller and is consumed by the first Build or Execute, whether or not
// that call succeeds.
type TextToSpeechBuilder struct {
	client *Client

	text                           string
	voiceID                        mo.Option[string]
	modelID                        mo.Option[string]
	outputFormat                   mo.Option[string]
	languageCode                   mo.Option[string]
	seed                           mo.Option[uint32]
	previousText                   mo.Option[string]
	nextText                       mo.Option[string]
	previousRequestIDs             mo.Option[[]string]
	nextRequestIDs                 mo.Option[[]string]
	applyTextNormalization         mo.Option[string]
	applyLanguageTextNormalization mo.Option[bool]
	voiceSettings                  mo.Option[VoiceSettings]
	settingsVersion                mo.Option[SettingsVersion]

	finalized bool
}

// NewTextToSpeechBuilder returns a builder that is not bound to a client and
// can therefore only Build.
func NewTextToSpeechBuilder(text string) *TextToSpeechBuilder {
	return &TextToSpeechBuilder{text: text}
}

func (b *TextToSpeechBuilder) Voice(voice voices.StaticVoice) *TextToSpeechBuilder {
	b.voiceID = mo.Some(voice.ID())
	return b
}

// VoiceID selects a voice by its raw ID, e.g. a cloned voice.
func (b *TextToSpeechBuilder) VoiceID(voiceID string) *TextToSpeechBuilder {
	b.voiceID = mo.Some(voiceID)
	return b
}

func (b *TextToSpeechBuilder) Model(modelID string) *TextToSpeechBuilder {
	b.modelID = mo.Some(modelID)
	return b
}

func (b *TextToSpeechBuilder) OutputFormat(format string) *TextToSpeechBuilder {
	b.outputFormat = mo.Some(format)
	return b
}

// LanguageCode sets an ISO 639-1 code. Only turbo and flash v2.5 models accept it.
func (b *TextToSpeechBuilder) LanguageCode(code string) *TextToSpeechBuilder {
	b.languageCode = mo.Some(code)
	return b
}

func (b *TextToSpeechBuilder) Seed(seed uint32) *TextToSpeechBuilder {
	b.seed = mo.Some(seed)
	return b
}

func (b *TextToSpeechBuilder) PreviousText(text string) *TextToSpeechBuilder {
	b.previousText = mo.Some(text)
	return b
}

func (b *TextToSpeechBuilder) NextText(text string) *TextToSpeechBuilder {
	b.nextText = mo.Some(text)
	return b
}

func (b *TextToSpeechBuilder) PreviousRequestIDs(ids ...string) *TextToSpeechBuilder {
	b.previousRequestIDs = mo.Some(slices.Clone(ids))
	return b
}

func (b *TextToSpeechBuilder) NextRequestIDs(ids ...string) *TextToSpeechBuilder {
	b.nextRequestIDs = mo.Some(slices.Clone(ids))
	return b
}

// ApplyTextNormalization sets one of auto, on or off.
func (b *TextToSpeechBuilder) ApplyTextNormalization(mode string) *TextToSpeechBuilder {
	b.applyTextNormalization = mo.Some(mode)
	return b
}

func (b *TextToSpeechBuilder) ApplyLanguageTextNormalization(enabled bool) *TextToSpeechBuilder {
	b.applyLanguageTextNormalization = mo.Some(enabled)
	return b
}

func (b *TextToSpeechBuilder) VoiceSettings(settings VoiceSettings) *TextToSpeechBuilder {
	b.voiceSettings = mo.Some(settings)
	return b
}

// SettingsVersion pins the settings contract instead of deriving it from the model.
func (b *TextToSpeechBuilder) SettingsVersion(version SettingsVersion) *TextToSpeechBuilder {
	b.settingsVersion = mo.Some(version)
	return b
}

// Build finalizes the builder: unset fields take their defaults and the result
// is validated. Only the first call can succeed.
func (b *TextToSpeechBuilder) Build() (*TTSRequest, error) {
	if b.finalized {
		return nil, object.NewValidationError("builder has already been finalized")
	}

	b.finalized = true

	modelID := b.modelID.OrElse(models.DefaultModel)

	req := &TTSRequest{
		Text:                           b.text,
		VoiceID:                        b.voiceID.OrElse(voices.Default.ID()),
		OutputFormat:                   b.outputFormat.OrElse(models.DefaultOutputFormat),
		ModelID:                        modelID,
		LanguageCode:                   b.languageCode.ToPointer(),
		Seed:                           b.seed.ToPointer(),
		PreviousText:                   b.previousText.ToPointer(),
		NextText:                       b.nextText.ToPointer(),
		PreviousRequestIDs:             b.previousRequestIDs.OrEmpty(),
		NextRequestIDs:                 b.nextRequestIDs.OrEmpty(),
		ApplyTextNormalization:         b.applyTextNormalization.OrElse(models.DefaultTextNormalization),
		ApplyLanguageTextNormalization: b.applyLanguageTextNormalization.OrElse(false),
		VoiceSettings:                  b.voiceSettings.OrElse(DefaultVoiceSettings()),
		SettingsVersion:                b.settingsVersion.OrElse(SettingsVersionForModel(modelID)),
	}

	err := req.Validate()
	if err != nil {
		return nil, err
	}

	return req, nil
}

// Execute builds the request and sends it, returning the audio bytes.
func (b *TextToSpeechBuilder) Execute(ctx context.Context) ([]byte, error) {
	req, err := b.build()
	if err != nil {
		return nil, err
	}

	return b.client.ExecuteRequest(ctx, req)
}

// ExecuteWithResponse is Execute, also returning the response metadata.
func (b *TextToSpeechBuilder) ExecuteWithResponse(ctx context.Context) (*tts.AudioResponse, error) {
	req, err := b.build()
	if err != nil {
		return nil, err
	}

	return b.client.ExecuteRequestWithResponse(ctx, req)
}

func (b *TextToSpeechBuilder) build() (*TTSRequest, error) {
	if b.client == nil {
		return nil, object.NewValidationError("builder is not bound to a client")
	}

	return b.Build()
}
