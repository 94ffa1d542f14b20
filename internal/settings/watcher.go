package settings

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nextgenbank/backoffice/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// defaultPollInterval controls how often the settings snapshot is refreshed.
	defaultPollInterval = 5 * time.Second
	// defaultQueryTimeout bounds DB query duration.
	defaultQueryTimeout = 10 * time.Second
)

// Watcher polls the settings table and refreshes the in-memory snapshot on change.
type Watcher struct {
	db           *gorm.DB
	pollInterval time.Duration

	latestAt  time.Time
	latestKey string
	hasLatest bool
}

// NewWatcher constructs a settings watcher; interval <= 0 uses the default.
func NewWatcher(db *gorm.DB, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Watcher{db: db, pollInterval: interval}
}

// Run loads the snapshot once and then polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	if w == nil || w.db == nil {
		return
	}
	w.Poll(ctx, true)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll(ctx, false)
		}
	}
}

// Poll refreshes the snapshot when the newest settings row changed, or always when force is set.
func (w *Watcher) Poll(ctx context.Context, force bool) {
	qctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	// latestRow captures the newest setting timestamp for change detection.
	type latestRow struct {
		Key       string     `gorm:"column:key"`        // Latest settings key.
		UpdatedAt *time.Time `gorm:"column:updated_at"` // Latest settings update time.
	}
	var latest latestRow
	hasLatest := true
	errLatest := w.db.WithContext(qctx).
		Model(&models.Setting{}).
		Select("key", "updated_at").
		Order("updated_at DESC, key DESC").
		Limit(1).
		Take(&latest).Error
	if errLatest != nil {
		if errors.Is(errLatest, context.Canceled) {
			return
		}
		if !errors.Is(errLatest, gorm.ErrRecordNotFound) {
			log.WithError(errLatest).Warn("settings watcher: query latest row failed")
			return
		}
		hasLatest = false
	}

	latestKey := strings.TrimSpace(latest.Key)
	latestAt := time.Time{}
	if hasLatest && latest.UpdatedAt != nil {
		latestAt = latest.UpdatedAt.UTC()
	}
	if !force && hasLatest == w.hasLatest && latestAt.Equal(w.latestAt) && latestKey == w.latestKey {
		return
	}

	if errReload := Reload(qctx, w.db); errReload != nil {
		if errors.Is(errReload, context.Canceled) {
			return
		}
		log.WithError(errReload).Warn("settings watcher: reload failed")
		return
	}
	if !force {
		log.Infof("settings watcher: settings changed (latest_key=%s)", latestKey)
	}
	w.latestAt = latestAt
	w.latestKey = latestKey
	w.hasLatest = hasLatest
}

// Reload rebuilds the in-memory settings snapshot from the DB.
func Reload(ctx context.Context, db *gorm.DB) error {
	var rows []models.Setting
	if errFind := db.WithContext(ctx).
		Select("key", "value", "updated_at").
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		return errFind
	}

	values := make(map[string]json.RawMessage, len(rows))
	maxUpdatedAt := time.Time{}
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = json.RawMessage(row.Value)
		if rowUpdatedAt := row.UpdatedAt.UTC(); rowUpdatedAt.After(maxUpdatedAt) {
			maxUpdatedAt = rowUpdatedAt
		}
	}

	StoreDBConfig(maxUpdatedAt, values)
	return nil
}
