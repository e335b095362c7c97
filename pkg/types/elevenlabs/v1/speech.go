package v1

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"

	"xispeech.dev/pkg/elevenlabs"
	"xispeech.dev/pkg/elevenlabs/models"
	"xispeech.dev/pkg/elevenlabs/voices"
	"xispeech.dev/pkg/metadata"
	"xispeech.dev/pkg/object"
	"xispeech.dev/pkg/types/tts"
)

const ProviderName = "elevenlabs"

var _ tts.SpeechProvider = (*SpeechProvider)(nil)

// OpenAI model names are accepted so that stock OpenAI SDKs work unchanged.
var openAIModelAliases = map[string]string{
	"tts-1":           models.ElevenTurboV2_5,
	"tts-1-hd":        models.ElevenMultilingualV2,
	"gpt-4o-mini-tts": models.ElevenV3,
}

var openAIResponseFormats = map[string]string{
	"mp3":  models.FormatMP3_44100_128,
	"opus": models.FormatOpus_48000_64,
	"pcm":  models.FormatPCM_24000,
}

// ModelAliases returns the accepted OpenAI model names and the ElevenLabs
// models they map to.
func ModelAliases() map[string]string {
	return maps.Clone(openAIModelAliases)
}

type ProviderConfig struct {
	DefaultVoice string
	DefaultModel string
	// Timeout bounds a single synthesis. Zero leaves the caller's deadline alone.
	Timeout time.Duration
}

// SpeechProvider serves OpenAI-shaped speech requests with a pool of
// ElevenLabs clients.
type SpeechProvider struct {
	pool   *ClientPool
	config ProviderConfig
}

func NewSpeechProvider(client *elevenlabs.Client, cfg ProviderConfig) *SpeechProvider {
	return NewSpeechProviderWithPool(NewSingleClientPool(client), cfg)
}

func NewSpeechProviderWithPool(pool *ClientPool, cfg ProviderConfig) *SpeechProvider {
	cfg.DefaultVoice = lo.CoalesceOrEmpty(cfg.DefaultVoice, voices.Default.ID())
	cfg.DefaultModel = lo.CoalesceOrEmpty(cfg.DefaultModel, models.DefaultModel)

	return &SpeechProvider{
		pool:   pool,
		config: cfg,
	}
}

func (p *SpeechProvider) Name() string {
	return ProviderName
}

// ResolveModel maps an incoming model name onto an ElevenLabs model ID. Empty
// names get the configured default; unknown names are passed through for the
// upstream to judge.
func (p *SpeechProvider) ResolveModel(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return p.config.DefaultModel
	}

	if alias, ok := openAIModelAliases[model]; ok {
		return alias
	}

	return model
}

func (p *SpeechProvider) ResolveVoice(voice string) string {
	return voices.Resolve(lo.CoalesceOrEmpty(strings.TrimSpace(voice), p.config.DefaultVoice))
}

// ResolveOutputFormat accepts both the OpenAI response_format names it can
// honor and native ElevenLabs output formats.
func ResolveOutputFormat(format string) (string, error) {
	if format == "" {
		return models.DefaultOutputFormat, nil
	}

	if native, ok := openAIResponseFormats[format]; ok {
		return native, nil
	}

	if models.IsOutputFormat(format) {
		return format, nil
	}

	return "", object.NewValidationError(fmt.Sprintf("response_format %q is not supported, use one of mp3, opus, pcm or a native output format", format))
}

// NewBuilder translates req into an unbound request builder. Keys of
// extra_body map onto the ElevenLabs fields of the same name; a key whose
// value has the wrong type is rejected rather than ignored.
func (p *SpeechProvider) NewBuilder(req tts.Request) (*elevenlabs.TextToSpeechBuilder, error) {
	extra := newExtraParams(req.GetExtraBody())

	outputFormat := extraParam[string](extra, "output_format")
	languageCode := extraParam[string](extra, "language_code")
	seed := extraParam[uint32](extra, "seed")
	previousText := extraParam[string](extra, "previous_text")
	nextText := extraParam[string](extra, "next_text")
	previousRequestIDs := extraParam[[]string](extra, "previous_request_ids")
	nextRequestIDs := extraParam[[]string](extra, "next_request_ids")
	textNormalization := extraParam[string](extra, "apply_text_normalization")
	languageTextNormalization := extraParam[bool](extra, "apply_language_text_normalization")
	settings, settingsChanged := voiceSettingsFromRequest(req, extra)

	err := extra.err()
	if err != nil {
		return nil, err
	}

	format, err := ResolveOutputFormat(lo.CoalesceOrEmpty(lo.FromPtr(outputFormat), lo.FromPtr(req.GetResponseFormat())))
	if err != nil {
		return nil, err
	}

	builder := elevenlabs.NewTextToSpeechBuilder(req.GetInput()).
		VoiceID(p.ResolveVoice(req.GetVoice())).
		Model(p.ResolveModel(req.GetModel())).
		OutputFormat(format)

	if languageCode != nil {
		builder.LanguageCode(*languageCode)
	}

	if seed != nil {
		builder.Seed(*seed)
	}

	if previousText != nil {
		builder.PreviousText(*previousText)
	}

	if nextText != nil {
		builder.NextText(*nextText)
	}

	if previousRequestIDs != nil {
		builder.PreviousRequestIDs(*previousRequestIDs...)
	}

	if nextRequestIDs != nil {
		builder.NextRequestIDs(*nextRequestIDs...)
	}

	if textNormalization != nil {
		builder.ApplyTextNormalization(*textNormalization)
	}

	if languageTextNormalization != nil {
		builder.ApplyLanguageTextNormalization(*languageTextNormalization)
	}

	if settingsChanged {
		builder.VoiceSettings(settings)
	}

	if req.GetInstructions() != nil {
		slog.Debug("elevenlabs: instructions are not supported and were ignored")
	}

	return builder, nil
}

func voiceSettingsFromRequest(req tts.Request, extra *extraParams) (elevenlabs.VoiceSettings, bool) {
	settings := elevenlabs.DefaultVoiceSettings()
	changed := false

	if v := extraParam[float64](extra, "stability"); v != nil {
		settings, changed = settings.WithStability(*v), true
	}

	if v := extraParam[float64](extra, "similarity_boost"); v != nil {
		settings, changed = settings.WithSimilarityBoost(*v), true
	}

	if v := extraParam[float64](extra, "style"); v != nil {
		settings, changed = settings.WithStyle(*v), true
	}

	if v := extraParam[bool](extra, "use_speaker_boost"); v != nil {
		settings, changed = settings.WithSpeakerBoost(*v), true
	}

	speed := lo.CoalesceOrEmpty(extraParam[float64](extra, "speed"), req.GetSpeed())
	if speed != nil {
		settings, changed = settings.WithSpeed(*speed), true
	}

	return settings, changed
}

// extraParams decodes extra_body keys and collects every key that does not
// decode into its field type.
type extraParams struct {
	values map[string]any
	errs   *multierror.Error
}

func newExtraParams(values map[string]any) *extraParams {
	return &extraParams{values: values}
}

// extraParam returns nil for an absent or null key.
func extraParam[T any](p *extraParams, key string) *T {
	raw, ok := p.values[key]
	if !ok || raw == nil {
		return nil
	}

	bs, err := json.Marshal(raw)
	if err == nil {
		var value T

		err = json.Unmarshal(bs, &value)
		if err == nil {
			return &value
		}
	}

	p.errs = multierror.Append(p.errs, fmt.Errorf("extra_body.%s has an invalid value %s", key, string(bs)))

	return nil
}

func (p *extraParams) err() error {
	if p.errs == nil {
		return nil
	}

	p.errs.ErrorFormat = func(errs []error) string {
		return strings.Join(lo.Map(errs, func(err error, _ int) string { return err.Error() }), "; ")
	}

	return object.NewValidationErrorWithCause(p.errs)
}

func (p *SpeechProvider) Speak(ctx context.Context, req tts.Request) (*tts.AudioResponse, error) {
	builder, err := p.NewBuilder(req)
	if err != nil {
		return nil, err
	}

	request, err := builder.Build()
	if err != nil {
		return nil, err
	}

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	upstream := p.pool.Pick(ctx)
	defer p.pool.Release(ctx, upstream)

	rMeta := metadata.RequestMetadataFromCtx(ctx)
	rMeta.UpstreamProvider = ProviderName
	rMeta.UpstreamName = upstream.Name
	rMeta.UpstreamRequestModel = request.ModelID
	rMeta.UpstreamRequestVoice = request.VoiceID
	rMeta.UpstreamRequestAt = time.Now()

	resp, err := upstream.Client.ExecuteRequestWithResponse(ctx, request)

	rMeta.UpstreamRespondAt = time.Now()

	if err != nil {
		if serviceErr := object.AsServiceError(err); serviceErr != nil {
			rMeta.UpstreamResponseStatusCode = serviceErr.GetStatus()
		}

		return nil, err
	}

	rMeta.UpstreamResponseStatusCode = resp.GetStatus()
	rMeta.UpstreamRequestID = resp.GetRequestID()
	rMeta.UpstreamCharacterCount = resp.GetCharacterCount()

	return resp, nil
}
