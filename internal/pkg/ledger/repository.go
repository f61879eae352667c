package ledger

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/portraitforge/portraitforge/app/models"
	"github.com/portraitforge/portraitforge/internal/pkg/cas"
)

// Repository provides DB operations used by the balance ledger service.
type Repository interface {
	GetGuestTokensUsed(guestID string) (int, bool, error)
	GetUserTokensUsed(userID uint) (int, bool, error)
	EnsureGuestLedger(guestID string) error
	EnsureUserLedger(userID uint) error
	CompareAndSwapGuestTokens(guestID string, expected, next int) (bool, error)
	CompareAndSwapUserTokens(userID uint, expected, next int) (bool, error)
	SetUserTokensUsed(userID uint, tokensUsed int) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a ledger repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetGuestTokensUsed(guestID string) (int, bool, error) {
	var row models.GuestUsageLedger
	err := r.db.Where("guest_id = ?", guestID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return row.TokensUsed, true, nil
}

func (r *gormRepository) GetUserTokensUsed(userID uint) (int, bool, error) {
	var row models.UserUsageLedger
	err := r.db.Where("user_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return row.TokensUsed, true, nil
}

func (r *gormRepository) EnsureGuestLedger(guestID string) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.GuestUsageLedger{GuestID: guestID, TokensUsed: 0}).Error
}

func (r *gormRepository) EnsureUserLedger(userID uint) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.UserUsageLedger{UserID: userID, TokensUsed: 0}).Error
}

func (r *gormRepository) CompareAndSwapGuestTokens(guestID string, expected, next int) (bool, error) {
	return cas.UpdateCounter(r.db, &models.GuestUsageLedger{}, "tokens_used", expected, next, "guest_id = ?", guestID)
}

func (r *gormRepository) CompareAndSwapUserTokens(userID uint, expected, next int) (bool, error) {
	return cas.UpdateCounter(r.db, &models.UserUsageLedger{}, "tokens_used", expected, next, "user_id = ?", userID)
}

func (r *gormRepository) SetUserTokensUsed(userID uint, tokensUsed int) error {
	return r.db.Model(&models.UserUsageLedger{}).
		Where("user_id = ?", userID).
		UpdateColumn("tokens_used", tokensUsed).Error
}
