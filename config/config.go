package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"xispeech.dev/pkg/elevenlabs"
	"xispeech.dev/pkg/elevenlabs/models"
	"xispeech.dev/pkg/elevenlabs/voices"
	"xispeech.dev/pkg/loadbalance"
)

const (
	DefaultListenAddress = ":8080"
	DefaultAdminAddress  = "127.0.0.1:9080"

	DefaultUpstreamName = "default"

	RateLimitModeLocal = "local"
	RateLimitModeRedis = "redis"
)

type ElevenLabsConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	APIKey  string `yaml:"api_key" json:"-"`
	// Timeout bounds a whole upstream call. Zero means no timeout.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// Upstreams replaces APIKey with several accounts that share the load.
	Upstreams   []UpstreamConfig `yaml:"upstreams" json:"upstreams"`
	LoadBalance string           `yaml:"load_balance" json:"load_balance"`
}

type UpstreamConfig struct {
	Name   string `yaml:"name" json:"name"`
	APIKey string `yaml:"api_key" json:"-"`
	Weight int32  `yaml:"weight" json:"weight"`
}

// ResolvedUpstreams returns the configured upstreams, or a single one named
// "default" built from api_key.
func (e ElevenLabsConfig) ResolvedUpstreams() []UpstreamConfig {
	if len(e.Upstreams) > 0 {
		return e.Upstreams
	}

	return []UpstreamConfig{{Name: DefaultUpstreamName, APIKey: e.APIKey, Weight: 1}}
}

type APIKeyConfig struct {
	ID          string   `yaml:"id" json:"id"`
	Key         string   `yaml:"key" json:"-"`
	AllowModels []string `yaml:"allow_models" json:"allow_models"`
	DenyModels  []string `yaml:"deny_models" json:"deny_models"`
	AllowVoices []string `yaml:"allow_voices" json:"allow_voices"`
	DenyVoices  []string `yaml:"deny_voices" json:"deny_voices"`
}

type RateLimitMatch struct {
	Exact  string `yaml:"exact" json:"exact"`
	Prefix string `yaml:"prefix" json:"prefix"`
}

// RateLimitPolicy applies to API key IDs selected by Match; a nil Match
// selects every key. A zero Limit disables limiting for the selected keys.
type RateLimitPolicy struct {
	Match  *RateLimitMatch `yaml:"match" json:"match"`
	Limit  int             `yaml:"limit" json:"limit"`
	Window time.Duration   `yaml:"window" json:"window"`
}

type RateLimitConfig struct {
	Mode         string            `yaml:"mode" json:"mode"`
	ServerPrefix string            `yaml:"server_prefix" json:"server_prefix"`
	RedisAddress string            `yaml:"redis_address" json:"redis_address"`
	Policies     []RateLimitPolicy `yaml:"policies" json:"policies"`
}

type GatewayConfig struct {
	ListenAddress string `yaml:"listen_address" json:"listen_address"`
	AdminAddress  string `yaml:"admin_address" json:"admin_address"`
	AccessLog     bool   `yaml:"access_log" json:"access_log"`

	DefaultVoice    string         `yaml:"default_voice" json:"default_voice"`
	DefaultModel    string         `yaml:"default_model" json:"default_model"`
	DefaultParams   map[string]any `yaml:"default_params" json:"default_params"`
	OverrideParams  map[string]any `yaml:"override_params" json:"override_params"`
	RemoveParamKeys []string       `yaml:"remove_param_keys" json:"remove_param_keys"`

	APIKeys   []APIKeyConfig  `yaml:"api_keys" json:"api_keys"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

type Config struct {
	Debug      bool             `yaml:"debug" json:"debug"`
	ElevenLabs ElevenLabsConfig `yaml:"elevenlabs" json:"elevenlabs"`
	Gateway    GatewayConfig    `yaml:"gateway" json:"gateway"`
}

// LoadConfig loads the YAML file at path. ${VAR} references are expanded from
// the environment before decoding, so secrets can stay out of the file.
func LoadConfig(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	return Parse(content)
}

func Parse(content []byte) (*Config, error) {
	var cfg Config

	err := yaml.Unmarshal([]byte(os.ExpandEnv(string(content))), &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.applyDefaults()

	err = cfg.Validate()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	c.ElevenLabs.BaseURL = strings.TrimSuffix(lo.CoalesceOrEmpty(c.ElevenLabs.BaseURL, elevenlabs.DefaultBaseURL), "/")
	c.Gateway.ListenAddress = lo.CoalesceOrEmpty(c.Gateway.ListenAddress, DefaultListenAddress)
	c.Gateway.AdminAddress = lo.CoalesceOrEmpty(c.Gateway.AdminAddress, DefaultAdminAddress)
	c.Gateway.DefaultModel = lo.CoalesceOrEmpty(c.Gateway.DefaultModel, models.DefaultModel)
	c.Gateway.DefaultVoice = lo.CoalesceOrEmpty(c.Gateway.DefaultVoice, voices.Default.Name())
	c.Gateway.RateLimit.Mode = lo.CoalesceOrEmpty(c.Gateway.RateLimit.Mode, RateLimitModeLocal)
	c.ElevenLabs.LoadBalance = lo.CoalesceOrEmpty(c.ElevenLabs.LoadBalance, loadbalance.PolicyWeightedRoundRobin)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if c.ElevenLabs.APIKey == "" && len(c.ElevenLabs.Upstreams) == 0 {
		errs = multierror.Append(errs, errors.New("elevenlabs.api_key or elevenlabs.upstreams must be set"))
	}

	errs = multierror.Append(errs, c.ElevenLabs.validateUpstreams()...)

	if u, err := url.Parse(c.ElevenLabs.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = multierror.Append(errs, fmt.Errorf("elevenlabs.base_url %q is not an absolute URL", c.ElevenLabs.BaseURL))
	}

	if c.ElevenLabs.Timeout < 0 {
		errs = multierror.Append(errs, errors.New("elevenlabs.timeout must not be negative"))
	}

	if voices.Resolve(c.Gateway.DefaultVoice) == "" {
		errs = multierror.Append(errs, errors.New("gateway.default_voice must not be blank"))
	}

	if !models.IsKnown(c.Gateway.DefaultModel) {
		errs = multierror.Append(errs, fmt.Errorf("gateway.default_model %q is not a known model", c.Gateway.DefaultModel))
	}

	errs = multierror.Append(errs, c.Gateway.validateAPIKeys()...)
	errs = multierror.Append(errs, c.Gateway.RateLimit.validate()...)

	if errs != nil {
		errs.ErrorFormat = joinErrors
	}

	return errs.ErrorOrNil()
}

func (e ElevenLabsConfig) validateUpstreams() []error {
	var errs []error

	switch e.LoadBalance {
	case loadbalance.PolicyWeightedRoundRobin, loadbalance.PolicyWeightedLeastRequest:
	default:
		errs = append(errs, fmt.Errorf("elevenlabs.load_balance %q must be one of %s or %s",
			e.LoadBalance, loadbalance.PolicyWeightedRoundRobin, loadbalance.PolicyWeightedLeastRequest))
	}

	seen := make(map[string]struct{}, len(e.Upstreams))

	for i, u := range e.Upstreams {
		if u.Name == "" {
			errs = append(errs, fmt.Errorf("elevenlabs.upstreams[%d].name must be set", i))
		} else if _, ok := seen[u.Name]; ok {
			errs = append(errs, fmt.Errorf("elevenlabs.upstreams[%d].name %q is duplicated", i, u.Name))
		}

		if u.APIKey == "" {
			errs = append(errs, fmt.Errorf("elevenlabs.upstreams[%d].api_key must be set", i))
		}

		if u.Weight < 0 {
			errs = append(errs, fmt.Errorf("elevenlabs.upstreams[%d].weight must not be negative", i))
		}

		seen[u.Name] = struct{}{}
	}

	return errs
}

func (g GatewayConfig) validateAPIKeys() []error {
	var errs []error

	seenIDs := make(map[string]struct{}, len(g.APIKeys))
	seenKeys := make(map[string]struct{}, len(g.APIKeys))

	for i, k := range g.APIKeys {
		if k.ID == "" {
			errs = append(errs, fmt.Errorf("gateway.api_keys[%d].id must be set", i))
		} else if _, ok := seenIDs[k.ID]; ok {
			errs = append(errs, fmt.Errorf("gateway.api_keys[%d].id %q is duplicated", i, k.ID))
		}

		if k.Key == "" {
			errs = append(errs, fmt.Errorf("gateway.api_keys[%d].key must be set", i))
		} else if _, ok := seenKeys[k.Key]; ok {
			errs = append(errs, fmt.Errorf("gateway.api_keys[%d].key is duplicated", i))
		}

		seenIDs[k.ID] = struct{}{}
		seenKeys[k.Key] = struct{}{}
	}

	return errs
}

func (r RateLimitConfig) validate() []error {
	var errs []error

	switch r.Mode {
	case RateLimitModeLocal:
	case RateLimitModeRedis:
		if r.RedisAddress == "" {
			errs = append(errs, errors.New("gateway.rate_limit.redis_address must be set in redis mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("gateway.rate_limit.mode %q must be one of local or redis", r.Mode))
	}

	for i, p := range r.Policies {
		if p.Limit < 0 {
			errs = append(errs, fmt.Errorf("gateway.rate_limit.policies[%d].limit must not be negative", i))
		}

		if p.Window < 0 {
			errs = append(errs, fmt.Errorf("gateway.rate_limit.policies[%d].window must not be negative", i))
		}
	}

	return errs
}

func joinErrors(errs []error) string {
	return strings.Join(lo.Map(errs, func(err error, _ int) string { return err.Error() }), "; ")
}
