package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAll(t *testing.T) {
	t.Parallel()

	all := All()
	assert.Len(t, all, 10)
	assert.Contains(t, all, ElevenV3)
	assert.Contains(t, all, DefaultModel)
	assert.True(t, IsKnown(ElevenTurboV2_5))
	assert.False(t, IsKnown("tts-1"))
}

func TestOutputFormats(t *testing.T) {
	t.Parallel()

	assert.Len(t, OutputFormats(), 17)
	assert.True(t, IsOutputFormat(DefaultOutputFormat))
	assert.True(t, IsOutputFormat("opus_48000_96"))
	assert.False(t, IsOutputFormat("wav_44100"))
	assert.False(t, IsOutputFormat(""))
}

func TestSupportsLanguageCode(t *testing.T) {
	t.Parallel()

	assert.True(t, SupportsLanguageCode(ElevenTurboV2_5))
	assert.True(t, SupportsLanguageCode(ElevenFlashV2_5))
	assert.False(t, SupportsLanguageCode(ElevenMultilingualV2))
}

func TestContentType(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		format   string
		expected string
	}{
		{FormatMP3_44100_128, "audio/mpeg"},
		{FormatPCM_24000, "audio/pcm"},
		{FormatULaw_8000, "audio/basic"},
		{FormatALaw_8000, "audio/x-alaw-basic"},
		{FormatOpus_48000_64, "audio/opus"},
		{"unknown", "application/octet-stream"},
	}

	for _, tc := range testCases {
		t.Run(tc.format, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, ContentType(tc.format))
		})
	}
}
