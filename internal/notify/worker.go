package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nextgenbank/backoffice/internal/db"
	"github.com/nextgenbank/backoffice/internal/metrics"
	"github.com/nextgenbank/backoffice/internal/models"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Default worker tuning.
const (
	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 20
	defaultMaxRetries   = 3
	defaultLease        = 2 * time.Minute
	maxBackoff          = 60 * time.Second
)

// WorkerConfig tunes the delivery workers.
type WorkerConfig struct {
	Workers      int
	PollInterval time.Duration
	BatchSize    int
	MaxRetries   int
	Lease        time.Duration
}

// Worker drains due notification jobs, renders and delivers them.
type Worker struct {
	db       *gorm.DB
	renderer *Renderer
	sender   Sender
	cfg      WorkerConfig
	now      func() time.Time
}

// NewWorker constructs a Worker, filling zero config values with defaults.
func NewWorker(conn *gorm.DB, renderer *Renderer, sender Sender, cfg WorkerConfig, now func() time.Time) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
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
	return &Worker{db: conn, renderer: renderer, sender: sender, cfg: cfg, now: now}
}

// Backoff returns the delay before retry number attempt (1-based): 1s, 2s, 4s, ... capped at 60s.
func Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return time.Second
	}
	if attempt > 7 {
		return maxBackoff
	}
	delay := time.Second << uint(attempt-1)
	if delay > maxBackoff {
		return maxBackoff
	}
	return delay
}

// Run starts the configured number of pollers and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Workers; i++ {
		group.Go(func() error {
			ticker := time.NewTicker(w.cfg.PollInterval)
			defer ticker.Stop()
			for {
				if _, errProcess := w.ProcessDue(groupCtx); errProcess != nil && !errors.Is(errProcess, context.Canceled) {
					log.WithError(errProcess).Warn("notify worker: poll failed")
				}
				select {
				case <-groupCtx.Done():
					return nil
				case <-ticker.C:
				}
			}
		})
	}
	return group.Wait()
}

// ProcessDue claims one batch of due jobs and attempts each. It returns the number attempted.
func (w *Worker) ProcessDue(ctx context.Context) (int, error) {
	jobs, errClaim := w.claim(ctx)
	if errClaim != nil {
		return 0, errClaim
	}
	for i := range jobs {
		w.deliver(ctx, &jobs[i])
	}
	return len(jobs), nil
}

// claim selects due jobs and pushes their next attempt out by the lease so
// concurrent pollers skip them while they are being delivered.
func (w *Worker) claim(ctx context.Context) ([]models.NotificationJob, error) {
	now := w.now().UTC()
	var jobs []models.NotificationJob
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
		return tx.Model(&models.NotificationJob{}).
			Where("id IN ?", ids).
			Update("next_attempt_at", now.Add(w.cfg.Lease)).Error
	})
	if errTx != nil {
		return nil, fmt.Errorf("notify: claim jobs: %w", errTx)
	}
	return jobs, nil
}

func (w *Worker) deliver(ctx context.Context, job *models.NotificationJob) {
	start := time.Now()
	logger := log.WithFields(log.Fields{"job_id": job.ID, "template": job.Template})

	var data Data
	if len(job.Context) > 0 {
		if errUnmarshal := json.Unmarshal(job.Context, &data); errUnmarshal != nil {
			w.markFailed(ctx, job, fmt.Errorf("decode context: %w", errUnmarshal))
			return
		}
	}
	msg, errRender := w.renderer.Render(Template(job.Template), data)
	if errRender != nil {
		w.markFailed(ctx, job, errRender)
		return
	}

	errSend := w.sender.Deliver(ctx, job.Recipient, msg)
	metrics.ObserveNotification(job.Template, time.Since(start))
	attempts := job.Attempts + 1
	now := w.now().UTC()

	if errSend == nil {
		if errUpdate := w.db.WithContext(ctx).Model(&models.NotificationJob{}).Where("id = ?", job.ID).Updates(map[string]any{
			"status":     models.JobStatusSent,
			"attempts":   attempts,
			"sent_at":    now,
			"last_error": "",
		}).Error; errUpdate != nil {
			logger.WithError(errUpdate).Error("notify worker: mark sent failed")
		}
		metrics.Notification(job.Template, "sent")
		return
	}

	if attempts > w.cfg.MaxRetries {
		job.Attempts = attempts
		w.markFailed(ctx, job, errSend)
		return
	}
	next := now.Add(Backoff(attempts))
	if errUpdate := w.db.WithContext(ctx).Model(&models.NotificationJob{}).Where("id = ?", job.ID).Updates(map[string]any{
		"attempts":        attempts,
		"next_attempt_at": next,
		"last_error":      errSend.Error(),
	}).Error; errUpdate != nil {
		logger.WithError(errUpdate).Error("notify worker: schedule retry failed")
	}
	logger.WithError(errSend).Warnf("notify worker: delivery failed, retry %d at %s", attempts, next.Format(time.RFC3339))
	metrics.Notification(job.Template, "retry")
}

func (w *Worker) markFailed(ctx context.Context, job *models.NotificationJob, cause error) {
	if errUpdate := w.db.WithContext(ctx).Model(&models.NotificationJob{}).Where("id = ?", job.ID).Updates(map[string]any{
		"status":     models.JobStatusFailed,
		"attempts":   job.Attempts,
		"last_error": cause.Error(),
	}).Error; errUpdate != nil {
		log.WithError(errUpdate).WithField("job_id", job.ID).Error("notify worker: mark failed failed")
	}
	log.WithError(cause).WithFields(log.Fields{"job_id": job.ID, "template": job.Template}).Error("notify worker: job failed permanently")
	metrics.Notification(job.Template, "failed")
}
