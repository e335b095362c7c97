package tts

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/gorilla/mux"

	"xispeech.dev/config"
	"xispeech.dev/pkg/bootkit"
	"xispeech.dev/pkg/filters"
	"xispeech.dev/pkg/listener"
	"xispeech.dev/pkg/types/openai"
	ttstypes "xispeech.dev/pkg/types/tts"
)

var _ listener.Listener = (*OpenAITextToSpeechListener)(nil)
var _ listener.Drainable = (*OpenAITextToSpeechListener)(nil)

// OpenAITextToSpeechListener serves the OpenAI /v1/audio/speech endpoint.
type OpenAITextToSpeechListener struct {
	cfg             config.GatewayConfig
	provider        ttstypes.SpeechProvider
	filters         filters.RequestFilters
	reversedFilters filters.RequestFilters
	cancellable     *listener.CancellableRequestMap

	mutex   sync.RWMutex
	drained bool
}

func NewOpenAITextToSpeechListener(
	cfg config.GatewayConfig,
	provider ttstypes.SpeechProvider,
	fs filters.RequestFilters,
	lifecycle bootkit.LifeCycle,
) (listener.Listener, error) {
	l := &OpenAITextToSpeechListener{
		cfg:         cfg,
		provider:    provider,
		filters:     fs,
		cancellable: listener.NewCancellableRequestMap(),
	}

	lifecycle.Append(bootkit.LifeCycleHook{
		OnStop: l.Drain,
	})

	l.reversedFilters = slices.Clone(l.filters)
	slices.Reverse(l.reversedFilters)

	return l, nil
}

func (l *OpenAITextToSpeechListener) RegisterRoutes(mux *mux.Router) error {
	middlewares := listener.WithMiddlewares(
		listener.WithCancellable(l.cancellable),
		listener.WithInitMetadata(),
		listener.WithAccessLog(l.cfg.AccessLog),
		listener.WithRequestTimer(),
		listener.WithOptions(),
		listener.WithResponseHandler(openai.ResponseHandler()),
		listener.WithRecoverWithError(),
		listener.WithRejectAfterDrainedWithError(l),
	)

	mux.HandleFunc("/v1/audio/speech", listener.HTTPHandlerFunc(middlewares(listener.CommonListenerHandler(l.filters, l.reversedFilters, l.unmarshalTextToSpeechRequest, l.provider)))).
		Methods(http.MethodPost, http.MethodOptions)

	return nil
}

func (l *OpenAITextToSpeechListener) HasDrained() bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	return l.drained
}

func (l *OpenAITextToSpeechListener) Drain(ctx context.Context) error {
	l.mutex.Lock()
	l.drained = true
	l.mutex.Unlock()

	slog.InfoContext(ctx, "draining text-to-speech listener", "in_flight", l.cancellable.Len())

	l.cancellable.CancelAllAfterWithContext(ctx, listener.DefaultDrainWaitTime)

	return nil
}
