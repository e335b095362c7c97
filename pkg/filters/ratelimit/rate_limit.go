package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/rueidis"

	"xispeech.dev/config"
	"xispeech.dev/pkg/bootkit"
	"xispeech.dev/pkg/filters"
	"xispeech.dev/pkg/metadata"
	"xispeech.dev/pkg/object"
	"xispeech.dev/pkg/types/openai"
)

const (
	cleanupInterval = 30 * time.Minute
	minBucketTTL    = 5 * time.Minute
	ttlRate         = 2

	numShards          = 64
	maxBucketsPerShard = 10000

	precision           = 1000
	defaultWindow       = time.Minute
	defaultServerPrefix = "xispeech-rate-limit"
)

var (
	_ filters.RequestFilter         = (*RateLimiter)(nil)
	_ filters.OnSpeechRequestFilter = (*RateLimiter)(nil)
)

// RateLimiter limits speech requests per API key and model with token
// buckets, kept either in process or in Redis.
type RateLimiter struct {
	filters.IsRequestFilter

	shards []*rateLimitShard
	cancel context.CancelFunc
	now    func() time.Time

	policies     []config.RateLimitPolicy
	mode         string
	serverPrefix string

	redisClient rueidis.Client
}

func (rl *RateLimiter) logCommonAttrs() []any {
	return []any{
		slog.String("filter", "rate_limit"),
		slog.String("server_prefix", rl.serverPrefix),
		slog.String("mode", rl.mode),
	}
}

func NewWithConfig(cfg config.RateLimitConfig, lifecycle bootkit.LifeCycle) (*RateLimiter, error) {
	ctx, cancel := context.WithCancel(context.Background())

	rl := &RateLimiter{
		cancel:       cancel,
		now:          time.Now,
		policies:     cfg.Policies,
		mode:         cfg.Mode,
		serverPrefix: cfg.ServerPrefix,
	}

	if rl.serverPrefix == "" {
		rl.serverPrefix = defaultServerPrefix
	}

	if rl.mode == "" {
		rl.mode = config.RateLimitModeLocal
	}

	slog.Info("initializing rate limiter", append(rl.logCommonAttrs(), slog.Int("policies", len(rl.policies)))...)

	switch rl.mode {
	case config.RateLimitModeRedis:
		redisClient, err := NewRedisClient(cfg.RedisAddress)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create redis client: %w", err)
		}

		rl.redisClient = redisClient
	case config.RateLimitModeLocal:
		rl.shards = newShards(numShards)

		go rl.cleanupLoop(ctx)
	default:
		cancel()
		return nil, fmt.Errorf("unknown rate limit mode %q", rl.mode)
	}

	lifecycle.Append(bootkit.LifeCycleHook{
		OnStop: func(context.Context) error {
			slog.Info("stopping rate limiter", rl.logCommonAttrs()...)
			rl.cancel()

			if rl.redisClient != nil {
				rl.redisClient.Close()
			}

			return nil
		},
	})

	return rl, nil
}

func (rl *RateLimiter) OnSpeechRequest(ctx context.Context, request object.SpeechRequest, _ *http.Request) filters.RequestFilterResult {
	apiKeyID := metadata.RequestMetadataFromCtx(ctx).AuthInfo.GetAPIKeyID()
	if apiKeyID == "" {
		return filters.NewOK()
	}

	policy, ok := rl.findMatchingPolicy(apiKeyID)
	if !ok || policy.Limit == 0 {
		return filters.NewOK()
	}

	window := policy.Window
	if window <= 0 {
		window = defaultWindow
	}

	allow, err := rl.checkBucket(ctx, rl.buildKey(apiKeyID, request.GetModel()), window, policy.Limit)
	if err != nil {
		slog.Error("failed to check rate limit", append(rl.logCommonAttrs(), slog.Any("error", err))...)
		return filters.NewFailed(err)
	}

	if !allow {
		slog.Debug("rate limit exceeded", append(rl.logCommonAttrs(),
			slog.String("apikey_id", apiKeyID),
			slog.String("model", request.GetModel()),
			slog.Int("limit", policy.Limit),
			slog.Duration("window", window),
		)...)

		return filters.NewFailed(openai.NewErrorRateLimitExceeded())
	}

	return filters.NewOK()
}

func (rl *RateLimiter) buildKey(apiKeyID string, model string) string {
	return fmt.Sprintf("%s:api_key:%s:%s", rl.serverPrefix, apiKeyID, model)
}

// findMatchingPolicy returns the first policy whose match selects apiKeyID.
func (rl *RateLimiter) findMatchingPolicy(apiKeyID string) (config.RateLimitPolicy, bool) {
	for _, policy := range rl.policies {
		if policy.Match == nil {
			return policy, true
		}

		if policy.Match.Exact != "" && policy.Match.Exact == apiKeyID {
			return policy, true
		}

		if policy.Match.Prefix != "" && strings.HasPrefix(apiKeyID, policy.Match.Prefix) {
			return policy, true
		}
	}

	return config.RateLimitPolicy{}, false
}

func (rl *RateLimiter) checkBucket(ctx context.Context, key string, window time.Duration, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	if rl.mode == config.RateLimitModeRedis {
		return rl.checkBucketRedis(ctx, key, window, limit)
	}

	return rl.checkBucketLocal(key, window, limit), nil
}
