package accountlink

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/portraitforge/portraitforge/internal/pkg/ledger"
)

// Service merges a guest's resources and free-tier consumption into a user
// account. It runs once, when a visitor who generated as a guest signs in.
type Service struct {
	repo       Repository
	ledgerRepo ledger.Repository
}

// NewService creates an account linker from injected repositories.
func NewService(repo Repository, ledgerRepo ledger.Repository) *Service {
	return &Service{repo: repo, ledgerRepo: ledgerRepo}
}

// NewServiceFromDB creates an account linker from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), ledger.NewRepository(db))
}

// Link reassigns guest-owned jobs and pack purchases to the user, then sets
// the user's free-tier consumption to max(user, guest). Taking the max --
// never the sum -- stops a heavily-used guest ledger from being laundered
// into a fresh user allowance, and keeps the user's own prior consumption.
// The guest ledger row is left untouched for audit.
func (s *Service) Link(userID uint, guestID string) error {
	if userID == 0 || guestID == "" {
		return errors.New("user id and guest id are required")
	}

	userOwnerID := strconv.FormatUint(uint64(userID), 10)
	jobs, purchases, err := s.repo.ReassignOwnership(guestID, userOwnerID)
	if err != nil {
		return fmt.Errorf("reassign guest resources: %w", err)
	}

	guestUsed, _, err := s.ledgerRepo.GetGuestTokensUsed(guestID)
	if err != nil {
		return fmt.Errorf("read guest ledger: %w", err)
	}
	userUsed, _, err := s.ledgerRepo.GetUserTokensUsed(userID)
	if err != nil {
		return fmt.Errorf("read user ledger: %w", err)
	}

	merged := userUsed
	if guestUsed > merged {
		merged = guestUsed
	}
	if err := s.ledgerRepo.EnsureUserLedger(userID); err != nil {
		return fmt.Errorf("ensure user ledger: %w", err)
	}
	if merged != userUsed || merged > 0 {
		if err := s.ledgerRepo.SetUserTokensUsed(userID, merged); err != nil {
			return fmt.Errorf("merge ledger usage: %w", err)
		}
	}

	log.Infof("[AccountLink] Linked guest %s to user %d (jobs=%d, purchases=%d, tokens_used=%d)",
		guestID, userID, jobs, purchases, merged)
	return nil
}
