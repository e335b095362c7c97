package models

import (
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Text-to-speech model identifiers, as accepted by the model_id field.
const (
	ElevenV3                 = "eleven_v3"
	ElevenFlashV2_5          = "eleven_flash_v2_5"
	ElevenFlashV2            = "eleven_flash_v2"
	ElevenTurboV2_5          = "eleven_turbo_v2_5"
	ElevenTurboV2            = "eleven_turbo_v2"
	ElevenMultilingualV2     = "eleven_multilingual_v2"
	ElevenMultilingualV1     = "eleven_multilingual_v1"
	ElevenMultilingualSTSV2  = "eleven_multilingual_sts_v2"
	ElevenEnglishSTSV2       = "eleven_english_sts_v2"
	ElevenMonolingualV1      = "eleven_monolingual_v1"
	DefaultModel             = ElevenMultilingualV2
	DefaultOutputFormat      = FormatMP3_44100_128
	DefaultTextNormalization = "auto"
)

// Output formats, formatted as codec_samplerate[_bitrate].
const (
	FormatMP3_22050_32  = "mp3_22050_32"
	FormatMP3_44100_32  = "mp3_44100_32"
	FormatMP3_44100_64  = "mp3_44100_64"
	FormatMP3_44100_96  = "mp3_44100_96"
	FormatMP3_44100_128 = "mp3_44100_128"
	FormatMP3_44100_192 = "mp3_44100_192"
	FormatPCM_8000      = "pcm_8000"
	FormatPCM_16000     = "pcm_16000"
	FormatPCM_22050     = "pcm_22050"
	FormatPCM_24000     = "pcm_24000"
	FormatPCM_44100     = "pcm_44100"
	FormatPCM_48000     = "pcm_48000"
	FormatULaw_8000     = "ulaw_8000"
	FormatALaw_8000     = "alaw_8000"
	FormatOpus_48000_32 = "opus_48000_32"
	FormatOpus_48000_64 = "opus_48000_64"
	FormatOpus_48000_96 = "opus_48000_96"
)

var allModels = []string{
	ElevenV3,
	ElevenFlashV2_5,
	ElevenFlashV2,
	ElevenTurboV2_5,
	ElevenTurboV2,
	ElevenMultilingualV2,
	ElevenMultilingualV1,
	ElevenMultilingualSTSV2,
	ElevenEnglishSTSV2,
	ElevenMonolingualV1,
}

var outputFormats = []string{
	FormatMP3_22050_32,
	FormatMP3_44100_32,
	FormatMP3_44100_64,
	FormatMP3_44100_96,
	FormatMP3_44100_128,
	FormatMP3_44100_192,
	FormatPCM_8000,
	FormatPCM_16000,
	FormatPCM_22050,
	FormatPCM_24000,
	FormatPCM_44100,
	FormatPCM_48000,
	FormatULaw_8000,
	FormatALaw_8000,
	FormatOpus_48000_32,
	FormatOpus_48000_64,
	FormatOpus_48000_96,
}

// Only these models accept language_code; the API rejects it for the rest.
var languageCodeModels = []string{
	ElevenTurboV2_5,
	ElevenFlashV2_5,
}

func All() []string {
	return slices.Clone(allModels)
}

func OutputFormats() []string {
	return slices.Clone(outputFormats)
}

func IsOutputFormat(format string) bool {
	return lo.Contains(outputFormats, format)
}

func IsKnown(modelID string) bool {
	return lo.Contains(allModels, modelID)
}

// SupportsLanguageCode reports whether modelID enforces a language_code.
func SupportsLanguageCode(modelID string) bool {
	return lo.Contains(languageCodeModels, strings.ToLower(modelID))
}

// Codec returns the codec part of an output format, e.g. "mp3" for mp3_44100_128.
func Codec(format string) string {
	codec, _, _ := strings.Cut(format, "_")

	return codec
}

// ContentType returns the MIME type the API responds with for format.
func ContentType(format string) string {
	switch Codec(format) {
	case "mp3":
		return "audio/mpeg"
	case "pcm":
		return "audio/pcm"
	case "ulaw":
		return "audio/basic"
	case "alaw":
		return "audio/x-alaw-basic"
	case "opus":
		return "audio/opus"
	default:
		return "application/octet-stream"
	}
}
