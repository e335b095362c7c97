package listener

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/nekomeowww/fo"

	"xispeech.dev/pkg/metadata"
	"xispeech.dev/pkg/types/openai"
)

func WithAccessLog(enable bool) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(writer http.ResponseWriter, request *http.Request) (any, error) {
			resp, err := next(writer, request)
			if !enable {
				return resp, err
			}

			rMeta := metadata.RequestMetadataFromCtx(request.Context())

			attrs := []any{
				slog.String("request_id", rMeta.RequestID),
				slog.String("method", request.Method),
				slog.String("uri", request.RequestURI),
				slog.String("remote_address", request.RemoteAddr),
				slog.String("x_forwarded_for", request.Header.Get("X-Forwarded-For")),
				slog.Duration("response_duration", rMeta.RespondAt.Sub(rMeta.RequestAt)),
				slog.String("auth_info_api_key_id", rMeta.AuthInfo.GetAPIKeyID()),
				slog.String("request_model", rMeta.RequestModel),
				slog.String("request_voice", rMeta.RequestVoice),
				slog.Int("response_status", rMeta.StatusCode),
			}

			if rMeta.UpstreamProvider != "" {
				attrs = append(attrs,
					slog.String("upstream_provider", rMeta.UpstreamProvider),
					slog.String("upstream_name", rMeta.UpstreamName),
					slog.String("upstream_request_model", rMeta.UpstreamRequestModel),
					slog.String("upstream_request_voice", rMeta.UpstreamRequestVoice),
					slog.String("upstream_request_id", rMeta.UpstreamRequestID),
					slog.Int("upstream_response_status_code", rMeta.UpstreamResponseStatusCode),
					slog.Int("upstream_character_count", rMeta.UpstreamCharacterCount),
					slog.Duration("upstream_duration", rMeta.UpstreamRespondAt.Sub(rMeta.UpstreamRequestAt)),
				)
			}

			if rMeta.ErrorMessage != "" {
				attrs = append(attrs, slog.String("error", rMeta.ErrorMessage))
			}

			slog.Info("", attrs...)

			return resp, err
		}
	}
}

// WithInitMetadata attaches request metadata and echoes the request ID.
func WithInitMetadata() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(writer http.ResponseWriter, request *http.Request) (any, error) {
			ctx := metadata.InitMetadataContext(request)
			writer.Header().Set("X-Request-Id", metadata.RequestMetadataFromCtx(ctx).RequestID)

			return next(writer, request.WithContext(ctx))
		}
	}
}

func WithOptions() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(writer http.ResponseWriter, request *http.Request) (any, error) {
			if request.Method == http.MethodOptions {
				writer.WriteHeader(http.StatusNoContent)
				return nil, nil
			}

			return next(writer, request)
		}
	}
}

// WithRecoverWithError turns a panic into an internal error result.
func WithRecoverWithError() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(writer http.ResponseWriter, request *http.Request) (resp any, err error) {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Recovered from panic",
						slog.Any("panic", r),
						slog.String("url", request.URL.String()),
						slog.String("stack", string(debug.Stack())),
					)

					resp, err = nil, openai.NewErrorInternalError()
				}
			}()

			return next(writer, request)
		}
	}
}

type CancellableRequestMap struct {
	mutex            sync.Mutex
	requestCancelMap map[*http.Request]context.CancelFunc
}

func NewCancellableRequestMap() *CancellableRequestMap {
	return &CancellableRequestMap{
		requestCancelMap: make(map[*http.Request]context.CancelFunc),
	}
}

func (l *CancellableRequestMap) Add(req *http.Request, cancel context.CancelFunc) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.requestCancelMap[req] = cancel
}

func (l *CancellableRequestMap) Remove(req *http.Request) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	delete(l.requestCancelMap, req)
}

func (l *CancellableRequestMap) Len() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return len(l.requestCancelMap)
}

func (l *CancellableRequestMap) CancelAll() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	for _, cancel := range l.requestCancelMap {
		cancel()
	}
}

// CancelAllAfter blocks for timeout, then cancels whatever is still in flight.
func (l *CancellableRequestMap) CancelAllAfter(timeout time.Duration) {
	<-time.After(timeout)
	l.CancelAll()
}

// CancelAllAfterWithContext cancels the in-flight requests after timeout, or
// as soon as ctx is done, whichever comes first.
func (l *CancellableRequestMap) CancelAllAfterWithContext(ctx context.Context, timeout time.Duration) {
	err := fo.Invoke0(ctx, func() error {
		l.CancelAllAfter(timeout)

		return nil
	})
	if err != nil {
		l.CancelAll()
	}
}

func WithCancellable(cancellable *CancellableRequestMap) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(writer http.ResponseWriter, request *http.Request) (any, error) {
			ctx, cancel := context.WithCancel(request.Context())
			defer cancel()

			cancellable.Add(request, cancel)
			defer cancellable.Remove(request)

			return next(writer, request.WithContext(ctx))
		}
	}
}

func WithRejectAfterDrainedWithError(d Drainable) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(writer http.ResponseWriter, request *http.Request) (any, error) {
			if d.HasDrained() {
				return nil, openai.NewErrorServiceUnavailable()
			}

			return next(writer, request)
		}
	}
}

func WithRequestTimer() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(writer http.ResponseWriter, request *http.Request) (any, error) {
			metadata.RequestMetadataFromCtx(request.Context()).RequestAt = time.Now()
			resp, err := next(writer, request)
			metadata.RequestMetadataFromCtx(request.Context()).RespondAt = time.Now()

			return resp, err
		}
	}
}

func WithResponseHandler(fn func(resp any, err error, writer http.ResponseWriter, request *http.Request)) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(writer http.ResponseWriter, request *http.Request) (any, error) {
			resp, err := next(writer, request)
			fn(resp, err, writer, request)

			return nil, nil
		}
	}
}
