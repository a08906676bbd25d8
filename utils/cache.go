package utils

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

const (
	defaultCacheTTL = time.Hour
	cacheOpTimeout  = 2 * time.Second
	// scanRounds bounds InvalidateByPrefix on a large keyspace.
	scanRounds = 10
)

// CacheGetBytes returns a cached response body. A disabled or failing Redis is a miss.
func CacheGetBytes(ctx context.Context, key string) ([]byte, bool) {
	rc := GetRedis()
	if rc == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	b, err := rc.Get(ctx, key).Bytes()
	if err != nil {
		L().Debug("cache miss", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return b, true
}

// CacheSetBytes stores b under key; ttl <= 0 means defaultCacheTTL.
func CacheSetBytes(ctx context.Context, key string, b []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	if err := rc.Set(ctx, key, b, ttl).Err(); err != nil {
		L().Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// CacheSetEnvelope caches data wrapped in the success envelope, so a hit can be
// written back verbatim.
func CacheSetEnvelope(ctx context.Context, key string, data interface{}, ttl time.Duration) {
	b, err := json.Marshal(JSONResponse{Code: CodeOK, Message: "success", Data: data})
	if err != nil {
		L().Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	CacheSetBytes(ctx, key, b, ttl)
}

// InvalidateByPrefix drops every key under prefix, e.g. all novel list pages after a write.
func InvalidateByPrefix(ctx context.Context, prefix string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var cursor uint64
	for i := 0; i < scanRounds; i++ {
		keys, next, err := rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			L().Warn("cache invalidate failed", zap.String("prefix", prefix), zap.Error(err))
			return
		}
		if len(keys) > 0 {
			if err := rc.Unlink(ctx, keys...).Err(); err != nil {
				L().Warn("cache invalidate failed", zap.String("prefix", prefix), zap.Error(err))
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
