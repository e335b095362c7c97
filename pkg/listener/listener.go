package listener

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"xispeech.dev/pkg/types/openai"
)

// DefaultDrainWaitTime is how long in-flight requests may keep running after
// a listener starts draining before they are cancelled.
const DefaultDrainWaitTime = 10 * time.Second

type Listener interface {
	RegisterRoutes(mux *mux.Router) error
}

type Drainable interface {
	HasDrained() bool
	Drain(ctx context.Context) error
}

// HandlerFunc returns the response object instead of writing it, so that
// middlewares can observe and render both results and errors.
type HandlerFunc func(writer http.ResponseWriter, request *http.Request) (any, error)

type Middleware func(next HandlerFunc) HandlerFunc

// WithMiddlewares composes middlewares; the first one is the outermost.
func WithMiddlewares(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}

		return next
	}
}

func HTTPHandlerFunc(fn HandlerFunc) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		_, _ = fn(writer, request)
	}
}

type Mux struct {
	listeners []Listener
	errs      []error
}

func NewMux() *Mux {
	return &Mux{}
}

// Register accepts the result of a listener constructor directly; errors are
// reported by BuildServer.
func (m *Mux) Register(l Listener, err error) {
	if err != nil {
		m.errs = append(m.errs, err)
		return
	}

	m.listeners = append(m.listeners, l)
}

func (m *Mux) Drainables() []Drainable {
	res := make([]Drainable, 0, len(m.listeners))

	for _, l := range m.listeners {
		if d, ok := l.(Drainable); ok {
			res = append(res, d)
		}
	}

	return res
}

func notFound(_ http.ResponseWriter, request *http.Request) (any, error) {
	return nil, openai.NewErrorNotFound(request.Method, request.URL.Path)
}

func (m *Mux) BuildServer(server *http.Server) (*http.Server, error) {
	if len(m.errs) > 0 {
		return nil, errors.Join(m.errs...)
	}

	router := mux.NewRouter()
	router.NotFoundHandler = HTTPHandlerFunc(WithMiddlewares(
		WithInitMetadata(),
		WithResponseHandler(openai.ResponseHandler()),
	)(notFound))

	for _, l := range m.listeners {
		err := l.RegisterRoutes(router)
		if err != nil {
			return nil, err
		}
	}

	server.Handler = router

	return server, nil
}
