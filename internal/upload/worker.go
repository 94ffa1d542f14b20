package upload

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/db"
	"github.com/nextgenbank/backoffice/internal/metrics"
	"github.com/nextgenbank/backoffice/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 10
	defaultMaxRetries   = 3
	defaultLease        = 2 * time.Minute
	maxRetryDelay       = 60 * time.Second
)

// ImageSetter records the stored URL on the owner's profile.
type ImageSetter interface {
	UpdateImageURL(ctx context.Context, userID uint64, imageType models.ImageType, url string) (*models.Profile, error)
}

// WorkerConfig tunes the upload worker.
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxRetries   int
	Lease        time.Duration
}

// Worker stores pending uploads and attaches their URLs to profiles.
type Worker struct {
	db      *gorm.DB
	storage Storage
	images  ImageSetter
	cfg     WorkerConfig
	now     func() time.Time
}

// NewWorker constructs a Worker with defaults for zero config values.
func NewWorker(conn *gorm.DB, storage Storage, images ImageSetter, cfg WorkerConfig, now func() time.Time) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Lease <= 0 {
		cfg.Lease = defaultLease
	}
	if now == nil {
		now = time.Now
	}
	return &Worker{db: conn, storage: storage, images: images, cfg: cfg, now: now}
}

// RetryDelay returns the wait before retry number attempt: 1s, 2s, 4s, ... capped at 60s.
func RetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return time.Second
	}
	if attempt > 7 {
		return maxRetryDelay
	}
	return min(time.Second<<uint(attempt-1), maxRetryDelay)
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if _, errProcess := w.ProcessDue(ctx); errProcess != nil && !errors.Is(errProcess, context.Canceled) {
			log.WithError(errProcess).Warn("upload worker: poll failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessDue claims one batch of due uploads and attempts each.
func (w *Worker) ProcessDue(ctx context.Context) (int, error) {
	jobs, errClaim := w.claim(ctx)
	if errClaim != nil {
		return 0, errClaim
	}
	for i := range jobs {
		w.process(ctx, &jobs[i])
	}
	return len(jobs), nil
}

func (w *Worker) claim(ctx context.Context) ([]models.UploadJob, error) {
	now := w.now().UTC()
	var jobs []models.UploadJob
	errTx := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := db.LockDue(tx).
			Where("status = ? AND next_attempt_at <= ?", models.JobStatusPending, now).
			Order("next_attempt_at ASC").
			Limit(w.cfg.BatchSize).
			Find(&jobs).Error; errFind != nil {
			return errFind
		}
		if len(jobs) == 0 {
			return nil
		}
		ids := make([]string, 0, len(jobs))
		for _, job := range jobs {
			ids = append(ids, job.ID)
		}
		return tx.Model(&models.UploadJob{}).
			Where("id IN ?", ids).
			Update("next_attempt_at", now.Add(w.cfg.Lease)).Error
	})
	if errTx != nil {
		return nil, fmt.Errorf("upload: claim jobs: %w", errTx)
	}
	return jobs, nil
}

func (w *Worker) process(ctx context.Context, job *models.UploadJob) {
	logger := log.WithFields(log.Fields{"upload_id": job.ID, "image_type": job.ImageType, "user_id": job.OwnerID})
	attempts := job.Attempts + 1

	key := path.Join("profiles", fmt.Sprint(job.OwnerID), job.ImageType+"_"+job.ID+extension(job.ContentType))
	url, errPut := w.storage.Put(ctx, key, job.ContentType, job.Payload)
	if errPut == nil {
		_, errPut = w.images.UpdateImageURL(ctx, job.OwnerID, models.ImageType(job.ImageType), url)
		if errors.Is(errPut, apperr.ErrProfileNotFound) {
			w.fail(ctx, job, attempts, errPut)
			return
		}
	}
	if errPut == nil {
		if errUpdate := w.db.WithContext(ctx).Model(&models.UploadJob{}).Where("id = ?", job.ID).Updates(map[string]any{
			"status":   models.JobStatusCompleted,
			"attempts": attempts,
			"url":      url,
			"error":    "",
			"payload":  nil,
		}).Error; errUpdate != nil {
			logger.WithError(errUpdate).Error("upload worker: mark completed failed")
			return
		}
		metrics.Upload(job.ImageType, "completed")
		logger.Infof("stored upload at %s", url)
		return
	}

	if attempts > w.cfg.MaxRetries {
		w.fail(ctx, job, attempts, errPut)
		return
	}
	next := w.now().UTC().Add(RetryDelay(attempts))
	if errUpdate := w.db.WithContext(ctx).Model(&models.UploadJob{}).Where("id = ?", job.ID).Updates(map[string]any{
		"attempts":        attempts,
		"next_attempt_at": next,
		"error":           errPut.Error(),
	}).Error; errUpdate != nil {
		logger.WithError(errUpdate).Error("upload worker: schedule retry failed")
	}
	logger.WithError(errPut).Warnf("upload worker: attempt %d/%d failed", attempts, w.cfg.MaxRetries+1)
	metrics.Upload(job.ImageType, "retry")
}

func (w *Worker) fail(ctx context.Context, job *models.UploadJob, attempts int, cause error) {
	if errUpdate := w.db.WithContext(ctx).Model(&models.UploadJob{}).Where("id = ?", job.ID).Updates(map[string]any{
		"status":   models.JobStatusFailed,
		"attempts": attempts,
		"error":    cause.Error(),
		"payload":  nil,
	}).Error; errUpdate != nil {
		log.WithError(errUpdate).WithField("upload_id", job.ID).Error("upload worker: mark failed failed")
	}
	log.WithError(cause).WithFields(log.Fields{"upload_id": job.ID, "user_id": job.OwnerID}).Error("upload worker: upload failed permanently")
	metrics.Upload(job.ImageType, "failed")
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	default:
		return ""
	}
}
