package models

import (
	"time"

	"gorm.io/datatypes"
)

// JobStatus is the processing state of a background job.
type JobStatus string

const (
	// JobStatusPending waits for a worker.
	JobStatusPending JobStatus = "pending"
	// JobStatusSent marks a delivered notification.
	JobStatusSent JobStatus = "sent"
	// JobStatusCompleted marks a stored upload.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed marks a job that exhausted its retries.
	JobStatusFailed JobStatus = "failed"
)

// NotificationJob is an outbox row for an email awaiting delivery.
type NotificationJob struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID.

	Template  string         `gorm:"type:varchar(50);not null"`  // Template identifier.
	Recipient string         `gorm:"type:varchar(255);not null"` // Destination email.
	Context   datatypes.JSON `gorm:"type:text"`                  // Template variables.

	Status        JobStatus  `gorm:"type:varchar(20);not null;default:pending;index:idx_notification_jobs_due,priority:1"` // Delivery state.
	Attempts      int        `gorm:"not null;default:0"`                                                                   // Delivery attempts so far.
	NextAttemptAt time.Time  `gorm:"not null;index:idx_notification_jobs_due,priority:2"`                                  // Earliest next delivery.
	LastError     string     `gorm:"type:text"`                                                                            // Last delivery error.
	SentAt        *time.Time                                                                                                // Delivery time.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// UploadJob tracks an image upload processed in the background.
type UploadJob struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // UUID.

	OwnerID     uint64 `gorm:"not null;index"`            // Uploading user.
	ImageType   string `gorm:"type:varchar(20);not null"` // Target profile slot.
	ContentType string `gorm:"type:varchar(50);not null"` // Sniffed MIME type.
	Payload     []byte                                     // Raw bytes, cleared once stored.

	Status        JobStatus `gorm:"type:varchar(20);not null;default:pending;index:idx_upload_jobs_due,priority:1"` // Processing state.
	Attempts      int       `gorm:"not null;default:0"`                                                             // Store attempts so far.
	NextAttemptAt time.Time `gorm:"not null;index:idx_upload_jobs_due,priority:2"`                                  // Earliest next attempt.
	URL           string    `gorm:"type:text"`                                                                      // Public URL once stored.
	Error         string    `gorm:"type:text"`                                                                      // Last failure.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
