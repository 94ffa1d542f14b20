package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nextgenbank/backoffice/internal/metrics"
	"github.com/nextgenbank/backoffice/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Outbox implements Dispatcher by persisting a NotificationJob for the Worker.
type Outbox struct {
	db  *gorm.DB
	now func() time.Time
}

// NewOutbox constructs an outbox dispatcher.
func NewOutbox(db *gorm.DB, now func() time.Time) *Outbox {
	if now == nil {
		now = time.Now
	}
	return &Outbox{db: db, now: now}
}

// Send stores the job and returns its id.
func (o *Outbox) Send(ctx context.Context, template Template, recipient string, data Data) (string, error) {
	if !Known(template) {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, template)
	}
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return "", fmt.Errorf("notify: empty recipient")
	}
	payload, errMarshal := json.Marshal(data)
	if errMarshal != nil {
		return "", fmt.Errorf("notify: marshal context: %w", errMarshal)
	}

	job := models.NotificationJob{
		ID:            uuid.NewString(),
		Template:      string(template),
		Recipient:     recipient,
		Context:       datatypes.JSON(payload),
		Status:        models.JobStatusPending,
		NextAttemptAt: o.now().UTC(),
	}
	if errCreate := o.db.WithContext(ctx).Create(&job).Error; errCreate != nil {
		return "", fmt.Errorf("notify: enqueue %s: %w", template, errCreate)
	}
	metrics.Notification(string(template), "enqueued")
	return job.ID, nil
}
