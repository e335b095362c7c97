package tts

// Request is a provider neutral speech request as received by the gateway.
type Request interface {
	GetModel() string
	GetInput() string
	GetVoice() string
	GetResponseFormat() *string
	GetSpeed() *float64
	GetInstructions() *string
	GetExtraBody() map[string]any
}
