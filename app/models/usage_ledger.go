package models

import (
	"time"
)

// GuestUsageLedger tracks free-tier token consumption for an anonymous
// visitor. A row is created lazily on the first deduction; a missing row
// means nothing has been consumed yet.
type GuestUsageLedger struct {
	GuestID    string    `gorm:"primaryKey;type:varchar(64)" json:"guest_id"`
	TokensUsed int       `gorm:"type:int unsigned;not null;default:0" json:"tokens_used"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (GuestUsageLedger) TableName() string {
	return "guest_usage_ledgers"
}

// UserUsageLedger tracks free-tier token consumption for a signed-in user,
// kept separate from purchased pack credits.
type UserUsageLedger struct {
	UserID     uint      `gorm:"primaryKey" json:"user_id"`
	TokensUsed int       `gorm:"type:int unsigned;not null;default:0" json:"tokens_used"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserUsageLedger) TableName() string {
	return "user_usage_ledgers"
}
