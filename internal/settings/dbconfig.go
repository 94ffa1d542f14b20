package settings

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"
)

type dbConfigSnapshot struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

var globalDBConfig atomic.Value

func init() {
	globalDBConfig.Store(dbConfigSnapshot{values: make(map[string]json.RawMessage)})
}

// StoreDBConfig replaces the in-memory settings snapshot.
func StoreDBConfig(updatedAt time.Time, values map[string]json.RawMessage) {
	next := make(map[string]json.RawMessage, len(values))
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		copied := make(json.RawMessage, len(value))
		copy(copied, value)
		next[key] = copied
	}
	globalDBConfig.Store(dbConfigSnapshot{updatedAt: updatedAt.UTC(), values: next})
}

// DBConfigValue returns the raw JSON value for key from the snapshot.
func DBConfigValue(key string) (json.RawMessage, bool) {
	snap := loadDBConfig()
	value, ok := snap.values[strings.TrimSpace(key)]
	if !ok || len(value) == 0 {
		return nil, false
	}
	return value, true
}

// DBConfigUpdatedAt returns the newest settings timestamp seen in the snapshot.
func DBConfigUpdatedAt() time.Time {
	return loadDBConfig().updatedAt
}

func loadDBConfig() dbConfigSnapshot {
	snap, ok := globalDBConfig.Load().(dbConfigSnapshot)
	if !ok || snap.values == nil {
		return dbConfigSnapshot{values: make(map[string]json.RawMessage)}
	}
	return snap
}

// IntValue returns the positive integer stored under key, or fallback.
func IntValue(key string, fallback int) int {
	raw, ok := DBConfigValue(key)
	if !ok {
		return fallback
	}
	var value int
	if errUnmarshal := json.Unmarshal(raw, &value); errUnmarshal != nil || value <= 0 {
		return fallback
	}
	return value
}
