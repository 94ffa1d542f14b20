package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// redisCooldown is how long the manager stays on the in-memory counters
// after Redis fails.
const redisCooldown = 30 * time.Second

// SettingsProvider returns the settings to apply to the next check.
type SettingsProvider func() SettingsConfig

// RedisClientFactory opens a Redis client. Tests swap it out.
type RedisClientFactory func(options *redis.Options) *redis.Client

type redisTarget struct {
	addr     string
	password string
	db       int
	prefix   string
}

// Manager counts requests against the shared Redis counters when they are
// enabled and reachable, and against process-local counters otherwise.
type Manager struct {
	settings  SettingsProvider
	now       func() time.Time
	local     Limiter
	dialRedis RedisClientFactory

	mu            sync.Mutex
	shared        *RedisLimiter
	sharedTarget  redisTarget
	redisDownTill time.Time
}

// NewManager builds a Manager. A nil settings provider reads the settings
// table, a nil clock uses time.Now and a nil factory uses redis.NewClient.
func NewManager(settings SettingsProvider, now func() time.Time, dialRedis RedisClientFactory) *Manager {
	if settings == nil {
		settings = LoadSettingsConfig
	}
	if now == nil {
		now = time.Now
	}
	if dialRedis == nil {
		dialRedis = redis.NewClient
	}
	return &Manager{
		settings:  settings,
		now:       now,
		local:     NewMemoryLimiter(),
		dialRedis: dialRedis,
	}
}

// Allow counts one request against a per-client key using the IP limit.
func (m *Manager) Allow(ctx context.Context, key string) (Result, error) {
	if m == nil {
		return Result{Allowed: true}, nil
	}
	cfg := m.settings()
	return m.count(ctx, key, cfg.Limit, cfg)
}

// AllowEmail counts one request against a per-email key using the email limit.
func (m *Manager) AllowEmail(ctx context.Context, key string) (Result, error) {
	if m == nil {
		return Result{Allowed: true}, nil
	}
	cfg := m.settings()
	return m.count(ctx, key, cfg.EmailLimit, cfg)
}

func (m *Manager) count(ctx context.Context, key string, limit int, cfg SettingsConfig) (Result, error) {
	if key == "" || limit <= 0 {
		return Result{Allowed: true}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.now()
	if cfg.RedisEnabled {
		if result, ok := m.countShared(ctx, key, limit, cfg, now); ok {
			return result, nil
		}
	}
	return m.local.Allow(ctx, key, limit, cfg.Window, now)
}

// countShared reports ok=false when Redis cannot be used for this request.
func (m *Manager) countShared(ctx context.Context, key string, limit int, cfg SettingsConfig, now time.Time) (Result, bool) {
	if m.redisCoolingDown(now) {
		return Result{}, false
	}
	limiter, errConnect := m.sharedLimiter(ctx, cfg)
	if errConnect != nil {
		m.markRedisDown(errConnect, now)
		return Result{}, false
	}
	result, errAllow := limiter.Allow(ctx, key, limit, cfg.Window, now)
	if errAllow != nil {
		m.markRedisDown(errAllow, now)
		return Result{}, false
	}
	return result, true
}

func (m *Manager) redisCoolingDown(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now.Before(m.redisDownTill) {
		return true
	}
	m.redisDownTill = time.Time{}
	return false
}

func (m *Manager) markRedisDown(err error, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now.Before(m.redisDownTill) {
		return
	}
	m.redisDownTill = now.Add(redisCooldown)
	log.WithError(err).WithField("cooldown", redisCooldown).Warn("rate limit: redis unavailable, counting in memory")
}

// sharedLimiter returns the Redis limiter for cfg, reconnecting when the
// target changed since the last call.
func (m *Manager) sharedLimiter(ctx context.Context, cfg SettingsConfig) (*RedisLimiter, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("rate limit redis: missing address")
	}
	target := redisTarget{addr: cfg.RedisAddr, password: cfg.RedisPassword, db: cfg.RedisDB, prefix: cfg.RedisPrefix}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shared != nil && m.sharedTarget == target {
		return m.shared, nil
	}
	if m.shared != nil {
		_ = m.shared.client.Close()
		m.shared = nil
	}

	client := m.dialRedis(&redis.Options{Addr: target.addr, Password: target.password, DB: target.db})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.shared = NewRedisLimiter(client, target.prefix)
	m.sharedTarget = target
	return m.shared, nil
}
