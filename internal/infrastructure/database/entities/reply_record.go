package entities

import (
	"time"

	"gorm.io/datatypes"
)

// ReplyRecord persists the outcome of one processed notification.
type ReplyRecord struct {
	ID              uint           `gorm:"primaryKey"`
	NotificationURI string         `gorm:"size:512;uniqueIndex"`
	ThreadRootURI   string         `gorm:"size:512;index"`
	AuthorHandle    string         `gorm:"size:256;index"`
	Outcome         string         `gorm:"size:32;index"`
	ReplyURI        string         `gorm:"size:512"`
	RunID           string         `gorm:"size:64"`
	ErrorMessage    string         `gorm:"type:text"`
	ConsumeError    string         `gorm:"type:text"`
	Executions      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
