package filters

import (
	"context"
	"net/http"

	"xispeech.dev/pkg/object"
)

// RequestFilter is a marker implemented by embedding IsRequestFilter. A
// filter takes part in a phase by implementing the matching On* interface.
type RequestFilter interface {
	isRequestFilter()
}

type IsRequestFilter struct{}

func (IsRequestFilter) isRequestFilter() {}

type OnRequestPreFilter interface {
	RequestFilter

	OnRequestPre(ctx context.Context, sourceHTTPRequest *http.Request) RequestFilterResult
}

type OnSpeechRequestFilter interface {
	RequestFilter

	OnSpeechRequest(ctx context.Context, request object.SpeechRequest, sourceHTTPRequest *http.Request) RequestFilterResult
}

type OnSpeechResponseFilter interface {
	RequestFilter

	OnSpeechResponse(ctx context.Context, request object.SpeechRequest, response object.SpeechResponse) RequestFilterResult
}

type OnResponsePostFilter interface {
	RequestFilter

	OnResponsePost(ctx context.Context, sourceHTTPRequest *http.Request, response any, err error)
}

type RequestFilters []RequestFilter

func collect[T RequestFilter](fs RequestFilters) []T {
	res := make([]T, 0, len(fs))

	for _, f := range fs {
		if typed, ok := f.(T); ok {
			res = append(res, typed)
		}
	}

	return res
}

func (fs RequestFilters) OnRequestPreFilters() []OnRequestPreFilter {
	return collect[OnRequestPreFilter](fs)
}

func (fs RequestFilters) OnSpeechRequestFilters() []OnSpeechRequestFilter {
	return collect[OnSpeechRequestFilter](fs)
}

func (fs RequestFilters) OnSpeechResponseFilters() []OnSpeechResponseFilter {
	return collect[OnSpeechResponseFilter](fs)
}

func (fs RequestFilters) OnResponsePostFilters() []OnResponsePostFilter {
	return collect[OnResponsePostFilter](fs)
}

type RequestFilterResultType int

const (
	RequestFilterResultTypeOK RequestFilterResultType = iota
	RequestFilterResultTypeFailed
)

type RequestFilterResult struct {
	Type  RequestFilterResultType
	Error error
}

func (r RequestFilterResult) IsOK() bool {
	return r.Type == RequestFilterResultTypeOK
}

func (r RequestFilterResult) IsFailed() bool {
	return r.Type == RequestFilterResultTypeFailed
}

func NewOK() RequestFilterResult {
	return RequestFilterResult{Type: RequestFilterResultTypeOK}
}

func NewFailed(err error) RequestFilterResult {
	return RequestFilterResult{Type: RequestFilterResultTypeFailed, Error: err}
}
