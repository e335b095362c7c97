package registry

import (
	"fmt"

	"xispeech.dev/config"
	"xispeech.dev/pkg/bootkit"
	"xispeech.dev/pkg/filters"
	"xispeech.dev/pkg/filters/auth"
	"xispeech.dev/pkg/filters/ratelimit"
	"xispeech.dev/pkg/filters/usage"
)

// NewRequestFiltersWithConfig builds the gateway filter chain in the order
// auth, rate limit, usage. Auth is only installed when API keys are
// configured and rate limiting only when at least one policy exists. A nil
// usageFilter leaves usage accounting out.
func NewRequestFiltersWithConfig(cfg config.GatewayConfig, usageFilter *usage.UsageFilter, lifecycle bootkit.LifeCycle) (filters.RequestFilters, error) {
	var fs filters.RequestFilters

	if len(cfg.APIKeys) > 0 {
		f, err := auth.NewWithConfig(cfg.APIKeys)
		if err != nil {
			return nil, fmt.Errorf("failed to create auth filter: %w", err)
		}

		fs = append(fs, f)
	}

	if len(cfg.RateLimit.Policies) > 0 {
		f, err := ratelimit.NewWithConfig(cfg.RateLimit, lifecycle)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limit filter: %w", err)
		}

		fs = append(fs, f)
	}

	if usageFilter != nil {
		fs = append(fs, usageFilter)
	}

	return fs, nil
}
