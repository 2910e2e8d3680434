package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	redisBreakerDuration = 30 * time.Second
	redisPingTimeout     = 2 * time.Second
)

// SettingsProvider supplies the latest throttle settings.
type SettingsProvider func() SettingsConfig

// RedisClientFactory constructs a Redis client.
type RedisClientFactory func(options *redis.Options) *redis.Client

// Manager enforces the per-account generation throttle. It prefers Redis
// when enabled and falls back to memory for redisBreakerDuration after a
// Redis failure.
type Manager struct {
	provider       SettingsProvider
	now            func() time.Time
	memory         Limiter
	newRedisClient RedisClientFactory

	mu           sync.Mutex
	redis        *RedisLimiter
	redisOptions redis.Options
	redisPrefix  string
	breakerUntil time.Time
}

// NewManager constructs a Manager; nil arguments use the defaults.
func NewManager(provider SettingsProvider, now func() time.Time, newRedisClient RedisClientFactory) *Manager {
	if provider == nil {
		provider = LoadSettingsConfig
	}
	if now == nil {
		now = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &Manager{
		provider:       provider,
		now:            now,
		memory:         NewMemoryLimiter(),
		newRedisClient: newRedisClient,
	}
}

// AllowAccount checks the configured per-minute limit for accountID.
func (m *Manager) AllowAccount(ctx context.Context, accountID string) (Result, error) {
	if m == nil {
		return Result{Allowed: true}, nil
	}
	cfg := m.provider()
	key := KeyForAccount(accountID)
	if cfg.Limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	now := m.now()
	if cfg.RedisEnabled {
		if res, ok := m.allowRedis(ctx, cfg, key, now); ok {
			return res, nil
		}
	}
	return m.memory.Allow(ctx, key, cfg.Limit, now)
}

// Now returns the manager clock.
func (m *Manager) Now() time.Time { return m.now() }

// Close releases the Redis connection, if any.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redis == nil {
		return nil
	}
	err := m.redis.Close()
	m.redis = nil
	return err
}

func (m *Manager) allowRedis(ctx context.Context, cfg SettingsConfig, key string, now time.Time) (Result, bool) {
	if m.breakerOpen(now) {
		return Result{}, false
	}
	limiter, errConnect := m.connect(ctx, cfg)
	if errConnect != nil {
		m.trip(errConnect, now)
		return Result{}, false
	}
	res, errAllow := limiter.Allow(ctx, key, cfg.Limit, now)
	if errAllow != nil {
		m.trip(errAllow, now)
		return Result{}, false
	}
	return res, true
}

func (m *Manager) breakerOpen(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	return false
}

func (m *Manager) trip(err error, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	log.WithError(err).Warn("rate limit: redis unavailable, using in-memory counters")
}

func (m *Manager) connect(ctx context.Context, cfg SettingsConfig) (*RedisLimiter, error) {
	if cfg.RedisAddr == "" {
		return nil, errors.New("rate limit redis: missing address")
	}
	opts := redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redis != nil && m.redisOptions.Addr == opts.Addr && m.redisOptions.Password == opts.Password && m.redisOptions.DB == opts.DB && m.redisPrefix == cfg.RedisPrefix {
		return m.redis, nil
	}
	if m.redis != nil {
		_ = m.redis.Close()
		m.redis = nil
	}

	client := m.newRedisClient(&opts)
	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redis = NewRedisLimiter(client, cfg.RedisPrefix)
	m.redisOptions = opts
	m.redisPrefix = cfg.RedisPrefix
	return m.redis, nil
}
