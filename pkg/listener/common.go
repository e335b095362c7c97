package listener

import (
	"log/slog"
	"net/http"

	"github.com/samber/lo"

	"xispeech.dev/pkg/filters"
	"xispeech.dev/pkg/object"
	"xispeech.dev/pkg/types/tts"
)

// SpeechRequest is a parsed request that filters may patch and a provider
// can synthesize.
type SpeechRequest interface {
	object.SpeechRequest
	tts.Request
}

// CommonListenerHandler runs one speech request through the filter phases and
// the provider. Post filters always run, in reverse registration order.
func CommonListenerHandler(
	listenerFilters filters.RequestFilters,
	reversedFilters filters.RequestFilters,
	parseRequest func(request *http.Request) (SpeechRequest, error),
	provider tts.SpeechProvider,
) HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) (any, error) {
		var (
			resp *tts.AudioResponse
			err  error
		)

		defer func() {
			for _, f := range reversedFilters.OnResponsePostFilters() {
				f.OnResponsePost(request.Context(), request, resp, err)
			}
		}()

		for _, f := range listenerFilters.OnRequestPreFilters() {
			fResult := f.OnRequestPre(request.Context(), request)
			if fResult.IsFailed() {
				err = fResult.Error
				return nil, err
			}
		}

		speechRequest, err := parseRequest(request)
		if err != nil {
			return nil, err
		}

		for _, f := range listenerFilters.OnSpeechRequestFilters() {
			fResult := f.OnSpeechRequest(request.Context(), speechRequest, request)
			if fResult.IsFailed() {
				err = fResult.Error
				return nil, err
			}
		}

		resp, err = provider.Speak(request.Context(), speechRequest)
		if err != nil {
			return nil, err
		}

		if !lo.IsNil(resp) {
			for _, f := range reversedFilters.OnSpeechResponseFilters() {
				fResult := f.OnSpeechResponse(request.Context(), speechRequest, resp)
				if fResult.IsFailed() {
					slog.Error("error occurred during invoking of OnSpeechResponse filters", "error", fResult.Error)
				}
			}
		}

		return resp, nil
	}
}
