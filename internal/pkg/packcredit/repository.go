package packcredit

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/portraitforge/portraitforge/app/models"
	"github.com/portraitforge/portraitforge/internal/pkg/cas"
)

// Repository provides DB operations used by the pack credit service.
type Repository interface {
	ListPurchases(ownerType, ownerID string) ([]models.PackPurchase, error)
	CompareAndSwapCounter(purchaseID uint, column string, expected, next int) (bool, error)
	CreatePurchaseIfNotExists(p *models.PackPurchase) (bool, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a pack credit repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// ListPurchases returns all purchases for an owner, oldest first. FIFO
// consumption depends on this ordering.
func (r *gormRepository) ListPurchases(ownerType, ownerID string) ([]models.PackPurchase, error) {
	var purchases []models.PackPurchase
	err := r.db.
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		Order("created_at ASC, id ASC").
		Find(&purchases).Error
	return purchases, err
}

func (r *gormRepository) CompareAndSwapCounter(purchaseID uint, column string, expected, next int) (bool, error) {
	return cas.UpdateCounter(r.db, &models.PackPurchase{}, column, expected, next, "id = ?", purchaseID)
}

// CreatePurchaseIfNotExists inserts a purchase keyed by provider order ref.
// Returns false when the ref was already recorded, which makes payment
// webhook delivery idempotent.
func (r *gormRepository) CreatePurchaseIfNotExists(p *models.PackPurchase) (bool, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_order_ref"}},
		DoNothing: true,
	}).Create(p)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}
