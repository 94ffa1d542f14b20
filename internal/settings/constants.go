package settings

// DB config keys and defaults for settings.
const (
	// RateLimitKey is the number of auth requests allowed per client IP per window.
	RateLimitKey = "RATE_LIMIT"
	// RateLimitPerEmailKey is the number of login and OTP requests allowed per
	// email address per window, counted across every client IP.
	RateLimitPerEmailKey = "RATE_LIMIT_PER_EMAIL"
	// RateLimitWindowSecondsKey is the rate limit window length in seconds.
	RateLimitWindowSecondsKey = "RATE_LIMIT_WINDOW_SECONDS"
	// RateLimitRedisEnabledKey toggles Redis-backed rate limiting.
	RateLimitRedisEnabledKey = "RATE_LIMIT_REDIS_ENABLED"
	// RateLimitRedisAddrKey defines the Redis address for rate limiting.
	RateLimitRedisAddrKey = "RATE_LIMIT_REDIS_ADDR"
	// RateLimitRedisPasswordKey defines the Redis password for rate limiting.
	RateLimitRedisPasswordKey = "RATE_LIMIT_REDIS_PASSWORD"
	// RateLimitRedisDBKey defines the Redis DB index for rate limiting.
	RateLimitRedisDBKey = "RATE_LIMIT_REDIS_DB"
	// RateLimitRedisPrefixKey defines the Redis key prefix for rate limiting.
	RateLimitRedisPrefixKey = "RATE_LIMIT_REDIS_PREFIX"
	// ProfileListPageSizeKey is the default page size for staff profile listings.
	ProfileListPageSizeKey = "PROFILE_LIST_PAGE_SIZE"
	// DefaultRateLimit is the fallback rate limit (0 means unlimited).
	DefaultRateLimit = 10
	// DefaultRateLimitPerEmail is the fallback per-email limit (0 means unlimited).
	DefaultRateLimitPerEmail = 5
	// DefaultRateLimitWindowSeconds is the fallback window length.
	DefaultRateLimitWindowSeconds = 60
	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultRateLimitRedisPrefix = "ngb:rl"
	// DefaultProfileListPageSize is the fallback profile page size.
	DefaultProfileListPageSize = 20
)
