package accountlink

import (
	"gorm.io/gorm"

	"github.com/portraitforge/portraitforge/app/models"
	"github.com/portraitforge/portraitforge/internal/pkg/principal"
)

// Repository provides DB operations used by the account linker.
type Repository interface {
	// ReassignOwnership moves guest-owned jobs and purchases to the user and
	// returns how many rows of each were moved.
	ReassignOwnership(guestID, userOwnerID string) (int64, int64, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an account link repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) ReassignOwnership(guestID, userOwnerID string) (int64, int64, error) {
	owner := map[string]interface{}{
		"owner_type": string(principal.KindUser),
		"owner_id":   userOwnerID,
	}

	jobs := r.db.Model(&models.GenerationJob{}).
		Where("owner_type = ? AND owner_id = ?", string(principal.KindGuest), guestID).
		Updates(owner)
	if jobs.Error != nil {
		return 0, 0, jobs.Error
	}

	purchases := r.db.Model(&models.PackPurchase{}).
		Where("owner_type = ? AND owner_id = ?", string(principal.KindGuest), guestID).
		Updates(owner)
	if purchases.Error != nil {
		return jobs.RowsAffected, 0, purchases.Error
	}

	return jobs.RowsAffected, purchases.RowsAffected, nil
}
