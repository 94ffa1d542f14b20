package ratelimit

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	internalsettings "github.com/nextgenbank/backoffice/internal/settings"
)

// SettingsConfig is one snapshot of the throttling settings.
type SettingsConfig struct {
	Limit         int // Requests per client IP per window.
	EmailLimit    int // Login and OTP requests per email per window.
	Window        time.Duration
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// settingField applies one stored value to cfg and reports whether it was usable.
type settingField func(cfg *SettingsConfig, raw json.RawMessage) bool

var settingFields = map[string]settingField{
	internalsettings.RateLimitKey: func(cfg *SettingsConfig, raw json.RawMessage) bool {
		return decodeCount(raw, &cfg.Limit)
	},
	internalsettings.RateLimitPerEmailKey: func(cfg *SettingsConfig, raw json.RawMessage) bool {
		return decodeCount(raw, &cfg.EmailLimit)
	},
	internalsettings.RateLimitWindowSecondsKey: func(cfg *SettingsConfig, raw json.RawMessage) bool {
		var seconds int
		if !decodeCount(raw, &seconds) || seconds == 0 {
			return false
		}
		cfg.Window = time.Duration(seconds) * time.Second
		return true
	},
	internalsettings.RateLimitRedisEnabledKey: func(cfg *SettingsConfig, raw json.RawMessage) bool {
		return decodeSwitch(raw, &cfg.RedisEnabled)
	},
	internalsettings.RateLimitRedisAddrKey: func(cfg *SettingsConfig, raw json.RawMessage) bool {
		return decodeText(raw, &cfg.RedisAddr)
	},
	internalsettings.RateLimitRedisPasswordKey: func(cfg *SettingsConfig, raw json.RawMessage) bool {
		return decodeText(raw, &cfg.RedisPassword)
	},
	internalsettings.RateLimitRedisDBKey: func(cfg *SettingsConfig, raw json.RawMessage) bool {
		return decodeCount(raw, &cfg.RedisDB)
	},
	internalsettings.RateLimitRedisPrefixKey: func(cfg *SettingsConfig, raw json.RawMessage) bool {
		var prefix string
		if !decodeText(raw, &prefix) || prefix == "" {
			return false
		}
		cfg.RedisPrefix = prefix
		return true
	},
}

// LoadSettingsConfig reads the cached settings table. Values that do not
// decode keep their defaults.
func LoadSettingsConfig() SettingsConfig {
	cfg := SettingsConfig{
		Limit:       internalsettings.DefaultRateLimit,
		EmailLimit:  internalsettings.DefaultRateLimitPerEmail,
		Window:      time.Duration(internalsettings.DefaultRateLimitWindowSeconds) * time.Second,
		RedisPrefix: internalsettings.DefaultRateLimitRedisPrefix,
	}
	for key, apply := range settingFields {
		raw, ok := internalsettings.DBConfigValue(key)
		if !ok {
			continue
		}
		_ = apply(&cfg, raw)
	}
	return cfg
}

// decodeCount accepts a non-negative whole number stored as a JSON number or
// a numeric string. dst is untouched on failure.
func decodeCount(raw json.RawMessage, dst *int) bool {
	raw = bytes.TrimSpace(raw)
	var text string
	if errText := json.Unmarshal(raw, &text); errText == nil {
		n, errAtoi := strconv.Atoi(strings.TrimSpace(text))
		if errAtoi != nil || n < 0 {
			return false
		}
		*dst = n
		return true
	}
	var number float64
	if errNumber := json.Unmarshal(raw, &number); errNumber != nil {
		return false
	}
	if math.IsNaN(number) || math.IsInf(number, 0) || number < 0 || number != math.Trunc(number) || number > math.MaxInt32 {
		return false
	}
	*dst = int(number)
	return true
}

// decodeSwitch accepts a JSON bool, 0 or 1, or an on/off style string.
func decodeSwitch(raw json.RawMessage, dst *bool) bool {
	raw = bytes.TrimSpace(raw)
	var flag bool
	if errFlag := json.Unmarshal(raw, &flag); errFlag == nil {
		*dst = flag
		return true
	}
	var text string
	if errText := json.Unmarshal(raw, &text); errText != nil {
		var number float64
		if errNumber := json.Unmarshal(raw, &number); errNumber != nil || (number != 0 && number != 1) {
			return false
		}
		*dst = number == 1
		return true
	}
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "1", "true", "yes", "y", "on":
		*dst = true
	case "0", "false", "no", "n", "off":
		*dst = false
	default:
		return false
	}
	return true
}

func decodeText(raw json.RawMessage, dst *string) bool {
	var text string
	if errText := json.Unmarshal(bytes.TrimSpace(raw), &text); errText != nil {
		return false
	}
	*dst = strings.TrimSpace(text)
	return true
}
