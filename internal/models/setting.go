package models

import (
	"time"

	"gorm.io/datatypes"
)

// Setting is a runtime-tunable key/value pair.
type Setting struct {
	Key       string         `gorm:"type:varchar(100);primaryKey"` // Setting key.
	Value     datatypes.JSON `gorm:"type:text"`                    // JSON value.
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime"`      // Last update timestamp.
}
