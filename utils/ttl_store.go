package utils

import (
	"context"
	"sync"
	"time"
)

// ttlSet is the in-memory fallback used when Redis is disabled (single instance only).
type ttlSet struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newTTLSet() *ttlSet {
	return &ttlSet{entries: map[string]time.Time{}}
}

func (s *ttlSet) add(key string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, exp := range s.entries {
		if now.After(exp) {
			delete(s.entries, k)
		}
	}
	s.entries[key] = expiresAt
}

func (s *ttlSet) has(key string, consume bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.entries[key]
	if !ok {
		return false
	}
	if consume || time.Now().After(exp) {
		delete(s.entries, key)
	}
	return time.Now().Before(exp)
}

var (
	revokedTokens = newTTLSet()
	oauthStates   = newTTLSet()
)

const (
	blacklistPrefix  = "jwt:blacklist:"
	oauthStatePrefix = "oauth:state:"
)

// BlacklistToken revokes a token until its natural expiration to support logout semantics.
func BlacklistToken(ctx context.Context, token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, blacklistPrefix+token, "1", ttl).Err(); err == nil {
			return
		}
	}
	revokedTokens.add(token, expiresAt)
}

// IsTokenBlacklisted checks if a token was revoked before natural expiration.
// Redis errors fail open to avoid locking everybody out.
func IsTokenBlacklisted(ctx context.Context, token string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		n, err := rc.Exists(ctx, blacklistPrefix+token).Result()
		if err == nil && n > 0 {
			return true
		}
	}
	return revokedTokens.has(token, false)
}

// SaveState stores an OAuth state token with TTL to mitigate CSRF.
func SaveState(ctx context.Context, state string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rc.Set(ctx, oauthStatePrefix+state, "1", ttl).Err(); err == nil {
			return
		}
	}
	oauthStates.add(state, time.Now().Add(ttl))
}

// ConsumeState validates and removes a state token; each state is single-use.
func ConsumeState(ctx context.Context, state string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if v, err := rc.GetDel(ctx, oauthStatePrefix+state).Result(); err == nil && v != "" {
			return true
		}
	}
	return oauthStates.has(state, true)
}
