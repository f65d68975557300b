package config

import "time"

// RateLimitConfig tunes the token bucket in front of login and refresh.
type RateLimitConfig struct {
	Enabled        bool          `env:"RATE_LIMIT_ENABLED,default=true"`
	Capacity       int           `env:"RATE_LIMIT_CAPACITY,default=10"`
	RefillTokens   int           `env:"RATE_LIMIT_REFILL_TOKENS,default=1"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=6s"`
	TTL            time.Duration `env:"RATE_LIMIT_TTL,default=10m"`
	KeyStrategy    string        `env:"RATE_LIMIT_KEY_STRATEGY,default=ip_route"`
	Prefix         string        `env:"RATE_LIMIT_PREFIX,default=rl"`
	Debug          bool          `env:"RATE_LIMIT_DEBUG,default=false"`
}

// Normalize clamps values that would make the bucket useless. Load applies
// it; limiters built from a hand-made config apply it again.
func (r RateLimitConfig) Normalize() RateLimitConfig {
	if r.Capacity < 1 {
		r.Capacity = 1
	}
	if r.RefillTokens < 1 {
		r.RefillTokens = 1
	}
	if r.RefillInterval <= 0 {
		r.RefillInterval = time.Second
	}
	// keys must outlive a full refill or buckets reset early
	if minTTL := 5 * r.RefillInterval; r.TTL < minTTL {
		r.TTL = minTTL
	}
	if r.Prefix == "" {
		r.Prefix = "rl"
	}
	return r
}
