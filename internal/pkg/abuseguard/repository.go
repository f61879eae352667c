package abuseguard

import (
	"time"

	"gorm.io/gorm"

	"github.com/portraitforge/portraitforge/app/models"
)

// Repository provides DB operations used by the abuse guard.
type Repository interface {
	CountByIPHashSince(ipHash string, since time.Time) (int64, error)
	CountByDeviceHashSince(deviceHash string, since time.Time) (int64, error)
	InsertEvent(event *models.AbuseEvent) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an abuse guard repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CountByIPHashSince(ipHash string, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.AbuseEvent{}).
		Where("ip_hash = ? AND used_at >= ?", ipHash, since).
		Count(&count).Error
	return count, err
}

func (r *gormRepository) CountByDeviceHashSince(deviceHash string, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.AbuseEvent{}).
		Where("device_hash = ? AND used_at >= ?", deviceHash, since).
		Count(&count).Error
	return count, err
}

func (r *gormRepository) InsertEvent(event *models.AbuseEvent) error {
	return r.db.Create(event).Error
}
