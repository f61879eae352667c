package models

import (
	"time"
)

// PackTier identifies a purchasable credit pack.
type PackTier string

const (
	PackTierStarter PackTier = "starter"
	PackTierClassic PackTier = "classic"
	PackTierStudio  PackTier = "studio"
)

// PackPurchase is one confirmed credit-pack purchase. An owner can hold many
// purchases; credits are consumed FIFO by creation time. Only the used
// counters are mutated after creation, and used never exceeds granted.
type PackPurchase struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	OwnerType          string    `gorm:"type:varchar(10);not null;index:idx_pack_owner" json:"owner_type"`
	OwnerID            string    `gorm:"type:varchar(64);not null;index:idx_pack_owner" json:"owner_id"`
	Tier               PackTier  `gorm:"type:varchar(20);not null" json:"tier"`
	GenerationsGranted int       `gorm:"type:int unsigned;not null" json:"generations_granted"`
	GenerationsUsed    int       `gorm:"type:int unsigned;not null;default:0" json:"generations_used"`
	DownloadsGranted   int       `gorm:"type:int unsigned;not null" json:"downloads_granted"`
	DownloadsUsed      int       `gorm:"type:int unsigned;not null;default:0" json:"downloads_used"`
	ProviderOrderRef   string    `gorm:"type:varchar(100);uniqueIndex" json:"provider_order_ref"`
	CreatedAt          time.Time `gorm:"autoCreateTime;index:idx_pack_created_at" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (PackPurchase) TableName() string {
	return "pack_purchases"
}

// GenerationsRemaining returns the unconsumed generation credits on this purchase.
func (p *PackPurchase) GenerationsRemaining() int {
	remaining := p.GenerationsGranted - p.GenerationsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// DownloadsRemaining returns the unconsumed download credits on this purchase.
func (p *PackPurchase) DownloadsRemaining() int {
	remaining := p.DownloadsGranted - p.DownloadsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}
