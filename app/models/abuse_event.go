package models

import (
	"time"
)

// AbuseEvent is one free-tier consumption keyed by hashed request
// fingerprints. Rows are append-only: never updated or deleted by the
// application, which is what makes the sliding window immune to clients
// resetting their own identifiers.
type AbuseEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	IPHash     string    `gorm:"type:varchar(64);not null;index:idx_abuse_ip" json:"ip_hash"`
	DeviceHash string    `gorm:"type:varchar(64);default:'';index:idx_abuse_device" json:"device_hash"`
	UsedAt     time.Time `gorm:"not null;index" json:"used_at"`
}

func (AbuseEvent) TableName() string {
	return "abuse_events"
}
