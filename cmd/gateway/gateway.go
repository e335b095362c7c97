package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/samber/lo"

	"xispeech.dev/config"
	"xispeech.dev/pkg/bootkit"
	"xispeech.dev/pkg/elevenlabs"
	"xispeech.dev/pkg/filters/usage"
	"xispeech.dev/pkg/listener"
	"xispeech.dev/pkg/listener/manager/tts"
	"xispeech.dev/pkg/registry"
	v1 "xispeech.dev/pkg/types/elevenlabs/v1"
)

// NewClientPool builds one client per configured upstream account.
func NewClientPool(cfg config.ElevenLabsConfig, opts ...elevenlabs.ClientOption) (*v1.ClientPool, error) {
	upstreams := lo.Map(cfg.ResolvedUpstreams(), func(u config.UpstreamConfig, _ int) v1.Upstream {
		clientOpts := append([]elevenlabs.ClientOption{elevenlabs.WithBaseURL(cfg.BaseURL)}, opts...)

		return v1.Upstream{
			Name:   u.Name,
			Weight: u.Weight,
			Client: elevenlabs.NewClient(u.APIKey, clientOpts...),
		}
	})

	return v1.NewClientPool(cfg.LoadBalance, upstreams...)
}

func StartGateway(_ context.Context, lifecycle bootkit.LifeCycle, cfg *config.Config, pool *v1.ClientPool, usageFilter *usage.UsageFilter) error {
	listenerAddr := cfg.Gateway.ListenAddress
	if listenerAddr == "" {
		listenerAddr = config.DefaultListenAddress
	}

	fs, err := registry.NewRequestFiltersWithConfig(cfg.Gateway, usageFilter, lifecycle)
	if err != nil {
		return err
	}

	provider := v1.NewSpeechProviderWithPool(pool, v1.ProviderConfig{
		DefaultVoice: cfg.Gateway.DefaultVoice,
		DefaultModel: cfg.Gateway.DefaultModel,
		Timeout:      cfg.ElevenLabs.Timeout,
	})

	mux := listener.NewMux()
	mux.Register(tts.NewOpenAITextToSpeechListener(cfg.Gateway, provider, fs, lifecycle))

	server, err := mux.BuildServer(&http.Server{Addr: listenerAddr, ReadTimeout: time.Minute})
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", listenerAddr)
	if err != nil {
		return err
	}

	lifecycle.Append(bootkit.LifeCycleHook{
		OnStart: func(ctx context.Context) error {
			slog.Info("Starting gateway ...", "addr", ln.Addr().String(), "upstream", pool.Primary().BaseURL(), "upstreams", pool.Len())

			err := server.Serve(ln)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			return nil
		},
		OnStop: func(ctx context.Context) error {
			slog.Info("Stopping gateway ...")

			err := server.Shutdown(ctx)
			if err != nil {
				return err
			}

			slog.Info("Gateway stopped gracefully.")

			return nil
		},
	})

	return nil
}
