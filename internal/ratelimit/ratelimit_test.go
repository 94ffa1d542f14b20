package ratelimit

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	internalsettings "github.com/nextgenbank/backoffice/internal/settings"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 5, 0, time.UTC)

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, "k", 3, time.Minute, now)
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !result.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if result.Remaining != 2-i {
			t.Fatalf("request %d: expected remaining=%d, got %d", i+1, 2-i, result.Remaining)
		}
	}
	result, _ := limiter.Allow(ctx, "k", 3, time.Minute, now.Add(10*time.Second))
	if result.Allowed {
		t.Fatalf("fourth request in the window should be rejected")
	}
	if want := time.Date(2025, 3, 1, 10, 1, 0, 0, time.UTC); !result.Reset.Equal(want) {
		t.Fatalf("expected reset=%s, got %s", want, result.Reset)
	}

	other, _ := limiter.Allow(ctx, "other", 3, time.Minute, now)
	if !other.Allowed {
		t.Fatalf("keys must be counted separately")
	}

	next, _ := limiter.Allow(ctx, "k", 3, time.Minute, now.Add(time.Minute))
	if !next.Allowed || next.Remaining != 2 {
		t.Fatalf("expected a fresh window, got %+v", next)
	}
}

func TestMemoryLimiter_ZeroLimitAllows(t *testing.T) {
	limiter := NewMemoryLimiter()
	for i := 0; i < 5; i++ {
		result, _ := limiter.Allow(context.Background(), "k", 0, time.Minute, time.Now())
		if !result.Allowed {
			t.Fatalf("limit 0 means unlimited")
		}
	}
}

func TestKeyForClient(t *testing.T) {
	if got := KeyForClient("login", "10.0.0.1"); got != "ip:10.0.0.1:login" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := KeyForClient("", "10.0.0.1"); got != "" {
		t.Fatalf("expected empty key for empty group, got %q", got)
	}
	if got := KeyForClient("login", " "); got != "" {
		t.Fatalf("expected empty key for empty ip, got %q", got)
	}
}

func TestKeyForEmail(t *testing.T) {
	key := KeyForEmail("login", " Grace@Bank.test ")
	if key == "" || key != KeyForEmail("login", "grace@bank.test") {
		t.Fatalf("expected case-insensitive key, got %q", key)
	}
	if strings.Contains(key, "grace") {
		t.Fatalf("key must not carry the address, got %q", key)
	}
	if key == KeyForEmail("reset", "grace@bank.test") {
		t.Fatalf("groups must be counted separately")
	}
	if got := KeyForEmail("login", "  "); got != "" {
		t.Fatalf("expected empty key for empty email, got %q", got)
	}
}

func TestLoadSettingsConfig(t *testing.T) {
	t.Cleanup(func() { internalsettings.StoreDBConfig(time.Time{}, nil) })

	internalsettings.StoreDBConfig(time.Now(), nil)
	cfg := LoadSettingsConfig()
	if cfg.Limit != internalsettings.DefaultRateLimit {
		t.Fatalf("expected default limit, got %d", cfg.Limit)
	}
	if cfg.Window != time.Minute {
		t.Fatalf("expected default window, got %s", cfg.Window)
	}
	if cfg.RedisPrefix != internalsettings.DefaultRateLimitRedisPrefix {
		t.Fatalf("expected default prefix, got %q", cfg.RedisPrefix)
	}
	if cfg.EmailLimit != internalsettings.DefaultRateLimitPerEmail {
		t.Fatalf("expected default email limit, got %d", cfg.EmailLimit)
	}

	internalsettings.StoreDBConfig(time.Now(), map[string]json.RawMessage{
		internalsettings.RateLimitKey:              json.RawMessage(`"25"`),
		internalsettings.RateLimitPerEmailKey:      json.RawMessage(`-3`),
		internalsettings.RateLimitWindowSecondsKey: json.RawMessage(`30`),
		internalsettings.RateLimitRedisEnabledKey:  json.RawMessage(`"on"`),
		internalsettings.RateLimitRedisAddrKey:     json.RawMessage(`" redis:6379 "`),
		internalsettings.RateLimitRedisPrefixKey:   json.RawMessage(`"  "`),
		internalsettings.RateLimitRedisDBKey:       json.RawMessage(`2.5`),
	})
	cfg = LoadSettingsConfig()
	if cfg.Limit != 25 || cfg.Window != 30*time.Second {
		t.Fatalf("unexpected limit/window: %+v", cfg)
	}
	if cfg.EmailLimit != internalsettings.DefaultRateLimitPerEmail {
		t.Fatalf("negative email limit should keep the default, got %d", cfg.EmailLimit)
	}
	if !cfg.RedisEnabled || cfg.RedisAddr != "redis:6379" {
		t.Fatalf("unexpected redis settings: %+v", cfg)
	}
	if cfg.RedisPrefix != internalsettings.DefaultRateLimitRedisPrefix {
		t.Fatalf("blank prefix should fall back, got %q", cfg.RedisPrefix)
	}
	if cfg.RedisDB != 0 {
		t.Fatalf("fractional db index should be ignored, got %d", cfg.RedisDB)
	}

	internalsettings.StoreDBConfig(time.Now(), map[string]json.RawMessage{
		internalsettings.RateLimitWindowSecondsKey: json.RawMessage(`0`),
	})
	if cfg = LoadSettingsConfig(); cfg.Window != time.Minute {
		t.Fatalf("zero window should keep the default, got %s", cfg.Window)
	}
}

func TestManager_FallsBackToMemoryWithoutRedisAddr(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	m := NewManager(func() SettingsConfig {
		return SettingsConfig{Limit: 1, Window: time.Minute, RedisEnabled: true}
	}, func() time.Time { return now }, nil)

	first, err := m.Allow(context.Background(), "ip:1.2.3.4:login")
	if err != nil || !first.Allowed {
		t.Fatalf("first request should pass, got %+v err=%v", first, err)
	}
	second, err := m.Allow(context.Background(), "ip:1.2.3.4:login")
	if err != nil || second.Allowed {
		t.Fatalf("second request should be limited, got %+v err=%v", second, err)
	}
	if !m.redisCoolingDown(now) {
		t.Fatalf("expected redis cooldown to start")
	}
	if m.redisCoolingDown(now.Add(redisCooldown)) {
		t.Fatalf("expected cooldown to end after its duration")
	}
}

func TestManager_NilAndEmptyKeyAllow(t *testing.T) {
	var m *Manager
	if result, _ := m.Allow(context.Background(), "k"); !result.Allowed {
		t.Fatalf("nil manager should allow")
	}
	m = NewManager(func() SettingsConfig { return SettingsConfig{Limit: 1} }, nil, nil)
	for i := 0; i < 3; i++ {
		if result, _ := m.Allow(context.Background(), ""); !result.Allowed {
			t.Fatalf("empty key should allow")
		}
	}
}

func TestMiddleware_RejectsWithRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2025, 3, 1, 10, 0, 45, 0, time.UTC)
	m := NewManager(func() SettingsConfig {
		return SettingsConfig{Limit: 2, Window: time.Minute}
	}, func() time.Time { return now }, nil)

	router := gin.New()
	router.POST("/login", m.Middleware("login"), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.POST("/other", m.Middleware("other"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	send := func(path, addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send("/login", "198.51.100.7:5000"); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i+1, rec.Code)
		}
	}
	rec := send("/login", "198.51.100.7:5001")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "15" {
		t.Fatalf("expected Retry-After=15, got %q", got)
	}
	var body struct {
		Error struct {
			Code       string `json:"code"`
			RetryAfter int    `json:"retry_after_seconds"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error.Code != "rate_limited" || body.Error.RetryAfter != 15 {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}

	if rec = send("/login", "198.51.100.8:5000"); rec.Code != http.StatusNoContent {
		t.Fatalf("other clients are counted separately, got %d", rec.Code)
	}
	if rec = send("/other", "198.51.100.7:5000"); rec.Code != http.StatusNoContent {
		t.Fatalf("other groups are counted separately, got %d", rec.Code)
	}
}

func TestEmailMiddleware_LimitsAcrossClients(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	m := NewManager(func() SettingsConfig {
		return SettingsConfig{Limit: 100, EmailLimit: 2, Window: time.Minute}
	}, func() time.Time { return now }, nil)

	var seen []string
	router := gin.New()
	router.POST("/login", m.EmailMiddleware("login"), func(c *gin.Context) {
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		seen = append(seen, body.Password)
		c.Status(http.StatusNoContent)
	})

	send := func(body, addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	if rec := send(`{"email":"grace@bank.test","password":"first-pass"}`, "198.51.100.1:1000"); rec.Code != http.StatusNoContent {
		t.Fatalf("first request: expected 204, got %d", rec.Code)
	}
	if rec := send(`{"email":"GRACE@bank.test","password":"second-pass"}`, "198.51.100.2:1000"); rec.Code != http.StatusNoContent {
		t.Fatalf("second request: expected 204, got %d", rec.Code)
	}
	rec := send(`{"email":"grace@bank.test","password":"third-pass"}`, "198.51.100.3:1000")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request from a new ip: expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After=60, got %q", rec.Header().Get("Retry-After"))
	}
	if len(seen) != 2 || seen[0] != "first-pass" || seen[1] != "second-pass" {
		t.Fatalf("handler should read the restored body, got %v", seen)
	}

	if rec = send(`{"email":"ada@bank.test","password":"other-pass"}`, "198.51.100.3:1000"); rec.Code != http.StatusNoContent {
		t.Fatalf("other addresses are counted separately, got %d", rec.Code)
	}
	if rec = send(`not json`, "198.51.100.3:1000"); rec.Code != http.StatusBadRequest {
		t.Fatalf("bodies without an email reach the handler, got %d", rec.Code)
	}
}
