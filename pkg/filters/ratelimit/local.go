package ratelimit

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// tokenBucket stores every quantity multiplied by precision so that partial
// refills survive integer arithmetic.
type tokenBucket struct {
	tokens     atomic.Int64
	capacity   atomic.Int64
	rate       atomic.Int64 // tokens*precision per second
	lastUpdate atomic.Int64
	limit      atomic.Int64
	expireAt   atomic.Int64
}

type rateLimitShard struct {
	mu             sync.Mutex
	buckets        map[string]*tokenBucket
	lastAccessTime map[string]time.Time
}

func newShards(n int) []*rateLimitShard {
	shards := make([]*rateLimitShard, n)

	for i := range shards {
		shards[i] = &rateLimitShard{
			buckets:        make(map[string]*tokenBucket),
			lastAccessTime: make(map[string]time.Time),
		}
	}

	return shards
}

func (rl *RateLimiter) getShard(key string) *rateLimitShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))

	return rl.shards[h.Sum32()%uint32(len(rl.shards))]
}

func (rl *RateLimiter) checkBucketLocal(key string, window time.Duration, limit int) bool {
	shard := rl.getShard(key)

	shard.mu.Lock()
	defer shard.mu.Unlock()

	now := rl.now()
	shard.lastAccessTime[key] = now

	expireAt := now.Add(max(minBucketTTL, window*ttlRate)).UnixNano()
	capacity := int64(limit) * precision
	rate := int64(float64(capacity) / window.Seconds())

	bucket := shard.buckets[key]
	if bucket == nil || now.UnixNano() > bucket.expireAt.Load() {
		bucket = rl.initBucket(shard, key, limit, capacity, rate, now)
	} else if bucket.limit.Load() != int64(limit) {
		slog.Debug("updating bucket limit", append(rl.logCommonAttrs(), slog.String("key", key), slog.Int64("old_limit", bucket.limit.Load()), slog.Int("new_limit", limit))...)
		bucket.limit.Store(int64(limit))
		bucket.capacity.Store(capacity)
		bucket.rate.Store(rate)
	}

	bucket.expireAt.Store(expireAt)

	return rl.tryConsume(bucket, now, key)
}

func (rl *RateLimiter) initBucket(shard *rateLimitShard, key string, limit int, capacity, rate int64, now time.Time) *tokenBucket {
	if _, exists := shard.buckets[key]; !exists && len(shard.buckets) >= maxBucketsPerShard {
		rl.evictOldestBucket(shard, now)
	}

	bucket := &tokenBucket{}
	bucket.capacity.Store(capacity)
	bucket.rate.Store(rate)
	bucket.tokens.Store(capacity)
	bucket.lastUpdate.Store(now.UnixNano())
	bucket.limit.Store(int64(limit))
	shard.buckets[key] = bucket

	slog.Debug("created new token bucket", append(rl.logCommonAttrs(), slog.String("key", key), slog.Int("limit", limit))...)

	return bucket
}

func (rl *RateLimiter) evictOldestBucket(shard *rateLimitShard, now time.Time) {
	var oldestKey string

	oldestTime := now

	for k, t := range shard.lastAccessTime {
		if t.Before(oldestTime) {
			oldestTime = t
			oldestKey = k
		}
	}

	slog.Debug("evicting oldest bucket", append(rl.logCommonAttrs(), slog.String("key", oldestKey))...)
	delete(shard.buckets, oldestKey)
	delete(shard.lastAccessTime, oldestKey)
}

func (rl *RateLimiter) tryConsume(bucket *tokenBucket, now time.Time, key string) bool {
	elapsed := now.Sub(time.Unix(0, bucket.lastUpdate.Load())).Seconds()

	tokensToAdd := int64(elapsed * float64(bucket.rate.Load()))
	if tokensToAdd > 0 {
		bucket.tokens.Store(min(bucket.tokens.Load()+tokensToAdd, bucket.capacity.Load()))
		bucket.lastUpdate.Store(now.UnixNano())
	}

	if bucket.tokens.Load() >= precision {
		bucket.tokens.Add(-precision)
		return true
	}

	slog.Debug("rate limit exceeded", append(rl.logCommonAttrs(), slog.String("key", key), slog.Int64("tokens", bucket.tokens.Load()))...)

	return false
}

func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-ctx.Done():
			slog.Debug("stopping cleanup loop", rl.logCommonAttrs()...)
			return
		}
	}
}

// cleanup drops buckets whose TTL has passed.
func (rl *RateLimiter) cleanup() {
	now := rl.now().UnixNano()

	for i, shard := range rl.shards {
		shard.mu.Lock()

		removed := 0

		for key, bucket := range shard.buckets {
			if now > bucket.expireAt.Load() {
				delete(shard.buckets, key)
				delete(shard.lastAccessTime, key)

				removed++
			}
		}

		shard.mu.Unlock()

		if removed > 0 {
			slog.Debug("cleaned shard", append(rl.logCommonAttrs(), slog.Int("shard", i), slog.Int("removed", removed))...)
		}
	}
}
