package admin

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"xispeech.dev/config"
	"xispeech.dev/pkg/bootkit"
	"xispeech.dev/pkg/elevenlabs/models"
	"xispeech.dev/pkg/elevenlabs/voices"
	"xispeech.dev/pkg/filters/auth"
	"xispeech.dev/pkg/filters/usage"
	"xispeech.dev/pkg/listener"
	v1 "xispeech.dev/pkg/types/elevenlabs/v1"
	"xispeech.dev/pkg/types/openai"
)

// VoiceLister lists the voices available to the configured upstream key.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]voices.Voice, error)
}

type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
	// Target is the ElevenLabs model an alias resolves to.
	Target string `json:"target,omitempty"`
}

type ModelList struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

type VoiceList struct {
	Voices []voices.Voice `json:"voices"`
}

type UsageList struct {
	Data []usage.Record `json:"data"`
}

type debugListener struct {
	cfg    *config.Config
	lister VoiceLister
	usage  *usage.UsageFilter
}

func NewAdminListener(cfg *config.Config, lister VoiceLister, usageFilter *usage.UsageFilter) (listener.Listener, error) {
	if cfg == nil {
		return nil, errors.New("admin listener requires a config")
	}

	return &debugListener{cfg: cfg, lister: lister, usage: usageFilter}, nil
}

// voices returns the premade voices, or the upstream listing with ?remote=true.
func (d *debugListener) voices(_ http.ResponseWriter, request *http.Request) (any, error) {
	remote, _ := strconv.ParseBool(request.URL.Query().Get("remote"))
	if !remote || d.lister == nil {
		return VoiceList{Voices: lo.Map(voices.All(), func(v voices.StaticVoice, _ int) voices.Voice {
			return voices.FromStatic(v)
		})}, nil
	}

	list, err := d.lister.ListVoices(request.Context())
	if err != nil {
		return nil, err
	}

	return VoiceList{Voices: list}, nil
}

func (d *debugListener) models(http.ResponseWriter, *http.Request) (any, error) {
	data := lo.Map(models.All(), func(id string, _ int) Model {
		return Model{ID: id, Object: "model", OwnedBy: v1.ProviderName}
	})

	aliases := v1.ModelAliases()
	for _, alias := range slices.Sorted(maps.Keys(aliases)) {
		data = append(data, Model{ID: alias, Object: "model", OwnedBy: v1.ProviderName, Target: aliases[alias]})
	}

	return ModelList{Object: "list", Data: data}, nil
}

func (d *debugListener) usageDump(http.ResponseWriter, *http.Request) (any, error) {
	if d.usage == nil {
		return UsageList{Data: []usage.Record{}}, nil
	}

	return UsageList{Data: d.usage.Snapshot()}, nil
}

// configDump writes the effective configuration as YAML with every secret
// masked.
func (d *debugListener) configDump(writer http.ResponseWriter, _ *http.Request) {
	cfg := *d.cfg
	cfg.ElevenLabs.APIKey = auth.MaskAPIKey(cfg.ElevenLabs.APIKey)
	cfg.Gateway.APIKeys = lo.Map(cfg.Gateway.APIKeys, func(k config.APIKeyConfig, _ int) config.APIKeyConfig {
		k.Key = auth.MaskAPIKey(k.Key)
		return k
	})
	cfg.ElevenLabs.Upstreams = lo.Map(cfg.ElevenLabs.Upstreams, func(u config.UpstreamConfig, _ int) config.UpstreamConfig {
		u.APIKey = auth.MaskAPIKey(u.APIKey)
		return u
	})

	bs := lo.Must1(yaml.Marshal(cfg))

	writer.Header().Set("Content-Type", "application/yaml")
	_, _ = writer.Write(bs)
}

func (d *debugListener) RegisterRoutes(mux *mux.Router) error {
	middlewares := listener.WithMiddlewares(
		listener.WithInitMetadata(),
		listener.WithResponseHandler(openai.ResponseHandler()),
		listener.WithRecoverWithError(),
	)

	mux.HandleFunc("/v1/voices", listener.HTTPHandlerFunc(middlewares(d.voices))).Methods(http.MethodGet)
	mux.HandleFunc("/v1/models", listener.HTTPHandlerFunc(middlewares(d.models))).Methods(http.MethodGet)
	mux.HandleFunc("/usage", listener.HTTPHandlerFunc(middlewares(d.usageDump))).Methods(http.MethodGet)
	mux.HandleFunc("/config_dump", d.configDump).Methods(http.MethodGet)

	return nil
}

func NewAdminServer(_ context.Context, cfg *config.Config, lister VoiceLister, usageFilter *usage.UsageFilter, lifecycle bootkit.LifeCycle) error {
	addr := cfg.Gateway.AdminAddress
	if addr == "" {
		addr = config.DefaultAdminAddress
	}

	m := listener.NewMux()
	m.Register(NewAdminListener(cfg, lister, usageFilter))

	server, err := m.BuildServer(&http.Server{Addr: addr, ReadTimeout: time.Minute})
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	lifecycle.Append(bootkit.LifeCycleHook{
		OnStart: func(ctx context.Context) error {
			slog.Info("Starting admin server ...", "addr", ln.Addr().String())

			err := server.Serve(ln)
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			return nil
		},
		OnStop: func(ctx context.Context) error {
			slog.Info("Stopping admin server ...")

			err := server.Shutdown(ctx)
			if err != nil {
				return err
			}

			slog.Info("Admin server stopped gracefully.")

			return nil
		},
	})

	return nil
}
