package tts

import (
	"context"
)

// SpeechProvider synthesizes a Request with one upstream call.
type SpeechProvider interface {
	Name() string
	Speak(ctx context.Context, req Request) (*AudioResponse, error)
}
