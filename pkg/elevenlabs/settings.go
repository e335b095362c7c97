package elevenlabs

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/samber/lo"
	"github.com/samber/mo"

	"xispeech.dev/pkg/elevenlabs/models"
)

const (
	MinSpeed = 0.7
	MaxSpeed = 1.2

	defaultStability       = 0.5
	defaultSimilarityBoost = 0.8
	defaultStyle           = 0.0
	defaultSpeakerBoost    = true
	defaultSpeed           = 1.0

	// NewVoiceSettings falls back to a lower similarity boost than
	// DefaultVoiceSettings.
	fallbackSimilarityBoost = 0.75
)

// SettingsVersion selects how voice_settings are validated at Build time.
type SettingsVersion int

const (
	// SettingsV1 accepts any stability in [0, 1].
	SettingsV1 SettingsVersion = 1
	// SettingsV3 only accepts the discrete stability levels 0.0 (creative),
	// 0.5 (natural) and 1.0 (robust).
	SettingsV3 SettingsVersion = 3
)

func (v SettingsVersion) String() string {
	switch v {
	case SettingsV1:
		return "v1"
	case SettingsV3:
		return "v3"
	default:
		return fmt.Sprintf("SettingsVersion(%d)", int(v))
	}
}

// SettingsVersionForModel returns the settings contract a model expects.
func SettingsVersionForModel(modelID string) SettingsVersion {
	if modelID == models.ElevenV3 {
		return SettingsV3
	}

	return SettingsV1
}

var discreteStabilityLevels = []float64{0.0, 0.5, 1.0}

// VoiceSettings overrides the stored settings of a voice for one request. It
// is a value type: every With* method returns a modified copy, and every
// numeric value is clamped into its valid range before it is stored.
type VoiceSettings struct {
	stability       mo.Option[float64]
	similarityBoost mo.Option[float64]
	style           mo.Option[float64]
	useSpeakerBoost mo.Option[bool]
	speed           mo.Option[float64]
}

// DefaultVoiceSettings matches the provider documented defaults.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		stability:       mo.Some(defaultStability),
		similarityBoost: mo.Some(defaultSimilarityBoost),
		style:           mo.Some(defaultStyle),
		useSpeakerBoost: mo.Some(defaultSpeakerBoost),
		speed:           mo.Some(defaultSpeed),
	}
}

// NewVoiceSettings fills every field, substituting 0.5, 0.75, 0.0, true and
// 1.0 for absent values.
func NewVoiceSettings(
	stability mo.Option[float64],
	similarityBoost mo.Option[float64],
	style mo.Option[float64],
	useSpeakerBoost mo.Option[bool],
	speed mo.Option[float64],
) VoiceSettings {
	return VoiceSettings{
		stability:       mo.Some(clampUnit(stability.OrElse(defaultStability))),
		similarityBoost: mo.Some(clampUnit(similarityBoost.OrElse(fallbackSimilarityBoost))),
		style:           mo.Some(clampUnit(style.OrElse(defaultStyle))),
		useSpeakerBoost: mo.Some(useSpeakerBoost.OrElse(defaultSpeakerBoost)),
		speed:           mo.Some(clampSpeed(speed.OrElse(defaultSpeed))),
	}
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}

	return lo.Clamp(v, 0, 1)
}

func clampSpeed(v float64) float64 {
	if math.IsNaN(v) {
		return MinSpeed
	}

	return lo.Clamp(v, MinSpeed, MaxSpeed)
}

func (s VoiceSettings) WithStability(stability float64) VoiceSettings {
	s.stability = mo.Some(clampUnit(stability))
	return s
}

func (s VoiceSettings) WithSimilarityBoost(similarityBoost float64) VoiceSettings {
	s.similarityBoost = mo.Some(clampUnit(similarityBoost))
	return s
}

func (s VoiceSettings) WithStyle(style float64) VoiceSettings {
	s.style = mo.Some(clampUnit(style))
	return s
}

func (s VoiceSettings) WithSpeakerBoost(enabled bool) VoiceSettings {
	s.useSpeakerBoost = mo.Some(enabled)
	return s
}

func (s VoiceSettings) WithSpeed(speed float64) VoiceSettings {
	s.speed = mo.Some(clampSpeed(speed))
	return s
}

func (s VoiceSettings) Stability() mo.Option[float64] {
	return s.stability
}

func (s VoiceSettings) SimilarityBoost() mo.Option[float64] {
	return s.similarityBoost
}

func (s VoiceSettings) Style() mo.Option[float64] {
	return s.style
}

func (s VoiceSettings) SpeakerBoost() mo.Option[bool] {
	return s.useSpeakerBoost
}

func (s VoiceSettings) Speed() mo.Option[float64] {
	return s.speed
}

// IsZero reports whether no field is set.
func (s VoiceSettings) IsZero() bool {
	return s.stability.IsAbsent() &&
		s.similarityBoost.IsAbsent() &&
		s.style.IsAbsent() &&
		s.useSpeakerBoost.IsAbsent() &&
		s.speed.IsAbsent()
}

// HasDiscreteStability reports whether stability is either unset or one of
// the levels SettingsV3 accepts.
func (s VoiceSettings) HasDiscreteStability() bool {
	stability, ok := s.stability.Get()
	if !ok {
		return true
	}

	return lo.Contains(discreteStabilityLevels, stability)
}

func (s VoiceSettings) validate(version SettingsVersion) error {
	if version == SettingsV3 && !s.HasDiscreteStability() {
		return fmt.Errorf("stability %v is not one of 0.0, 0.5 or 1.0 required by settings %s", s.stability.MustGet(), version)
	}

	return nil
}

type voiceSettingsJSON struct {
	Stability       *float64 `json:"stability,omitempty"`
	SimilarityBoost *float64 `json:"similarity_boost,omitempty"`
	Style           *float64 `json:"style,omitempty"`
	UseSpeakerBoost *bool    `json:"use_speaker_boost,omitempty"`
	Speed           *float64 `json:"speed,omitempty"`
}

func (s VoiceSettings) MarshalJSON() ([]byte, error) {
	return json.Marshal(voiceSettingsJSON{
		Stability:       s.stability.ToPointer(),
		SimilarityBoost: s.similarityBoost.ToPointer(),
		Style:           s.style.ToPointer(),
		UseSpeakerBoost: s.useSpeakerBoost.ToPointer(),
		Speed:           s.speed.ToPointer(),
	})
}

// UnmarshalJSON decodes the wire form, clamping out of range values the same
// way the setters do.
func (s *VoiceSettings) UnmarshalJSON(data []byte) error {
	var decoded voiceSettingsJSON

	err := json.Unmarshal(data, &decoded)
	if err != nil {
		return fmt.Errorf("failed to unmarshal voice settings: %w", err)
	}

	*s = VoiceSettings{
		stability:       clampOption(mo.PointerToOption(decoded.Stability), clampUnit),
		similarityBoost: clampOption(mo.PointerToOption(decoded.SimilarityBoost), clampUnit),
		style:           clampOption(mo.PointerToOption(decoded.Style), clampUnit),
		useSpeakerBoost: mo.PointerToOption(decoded.UseSpeakerBoost),
		speed:           clampOption(mo.PointerToOption(decoded.Speed), clampSpeed),
	}

	return nil
}

func clampOption(o mo.Option[float64], clamp func(float64) float64) mo.Option[float64] {
	if v, ok := o.Get(); ok {
		return mo.Some(clamp(v))
	}

	return mo.None[float64]()
}
