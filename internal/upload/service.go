package upload

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nextgenbank/backoffice/internal/apperr"
	"github.com/nextgenbank/backoffice/internal/metrics"
	"github.com/nextgenbank/backoffice/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Service schedules uploads and reports their progress.
type Service struct {
	db     *gorm.DB
	limits Limits
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(conn *gorm.DB, limits Limits, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{db: conn, limits: limits, now: now}
}

// Status is the polling view of an upload job.
type Status struct {
	TaskID    string           `json:"task_id"`
	Status    models.JobStatus `json:"status"`
	ImageType string           `json:"image_type"`
	ImageURL  string           `json:"image_url,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Schedule validates data and queues it for storage. The owner must already
// have a profile to attach the image to.
func (s *Service) Schedule(ctx context.Context, ownerID uint64, imageType models.ImageType, data []byte) (string, error) {
	if !imageType.Valid() {
		return "", apperr.ErrInvalidImage.WithMessage("Invalid image type")
	}
	contentType, errValidate := s.limits.Validate(data)
	if errValidate != nil {
		return "", errValidate
	}

	var profiles int64
	if errCount := s.db.WithContext(ctx).Model(&models.Profile{}).Where("user_id = ?", ownerID).Count(&profiles).Error; errCount != nil {
		return "", apperr.Internal("check profile", errCount)
	}
	if profiles == 0 {
		return "", apperr.ErrProfileNotFound
	}

	job := models.UploadJob{
		ID:            uuid.NewString(),
		OwnerID:       ownerID,
		ImageType:     string(imageType),
		ContentType:   contentType,
		Payload:       data,
		Status:        models.JobStatusPending,
		NextAttemptAt: s.now().UTC(),
	}
	if errCreate := s.db.WithContext(ctx).Create(&job).Error; errCreate != nil {
		return "", apperr.ErrUploadDispatch.Wrap(errCreate)
	}
	metrics.Upload(job.ImageType, "scheduled")
	log.Infof("scheduled %s upload %s for user %d", job.ImageType, job.ID, ownerID)
	return job.ID, nil
}

// Status returns the job state. Jobs of other users are reported as not found.
func (s *Service) Status(ctx context.Context, ownerID uint64, taskID string) (*Status, error) {
	if _, errParse := uuid.Parse(taskID); errParse != nil {
		return nil, apperr.ErrUploadNotFound
	}
	var job models.UploadJob
	errFind := s.db.WithContext(ctx).
		Select("id", "owner_id", "image_type", "status", "url", "error").
		Where("id = ? AND owner_id = ?", taskID, ownerID).
		First(&job).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrUploadNotFound
		}
		return nil, apperr.Internal("find upload", errFind)
	}
	out := &Status{TaskID: job.ID, Status: job.Status, ImageType: job.ImageType}
	switch job.Status {
	case models.JobStatusCompleted:
		out.ImageURL = job.URL
	case models.JobStatusFailed:
		out.Error = job.Error
	}
	return out, nil
}
