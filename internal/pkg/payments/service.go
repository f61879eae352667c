package payments

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/portraitforge/portraitforge/app/models"
	"github.com/portraitforge/portraitforge/internal/pkg/packcredit"
	"github.com/portraitforge/portraitforge/internal/pkg/principal"
)

// OrderCompletedEvent is the normalized shape of a confirmed payment,
// whatever provider it came from.
type OrderCompletedEvent struct {
	Provider         string
	ProviderOrderRef string
	Owner            principal.Principal
	Tier             string
}

// Service turns confirmed payment events into pack purchases. Pack rows are
// created here and only their used counters change afterwards.
type Service struct {
	repo packcredit.Repository
}

// NewService creates a payments service over the pack credit repository.
func NewService(repo packcredit.Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a payments service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(packcredit.NewRepository(db))
}

// HandleOrderCompleted records a purchase for a confirmed order. Delivery is
// idempotent on the provider order ref: a redelivered webhook returns the
// stored purchase with created=false and grants nothing twice.
func (s *Service) HandleOrderCompleted(evt OrderCompletedEvent) (*models.PackPurchase, bool, error) {
	ref := strings.TrimSpace(evt.ProviderOrderRef)
	if ref == "" {
		return nil, false, errors.New("provider order ref is required")
	}
	if evt.Owner.IsZero() {
		return nil, false, errors.New("purchase owner is required")
	}

	tier, grant := packcredit.GrantForTier(evt.Tier)
	ownerType, ownerID := evt.Owner.OwnerColumns()
	purchase := &models.PackPurchase{
		OwnerType:          ownerType,
		OwnerID:            ownerID,
		Tier:               tier,
		GenerationsGranted: grant.Generations,
		DownloadsGranted:   grant.Downloads,
		ProviderOrderRef:   ref,
	}

	created, err := s.repo.CreatePurchaseIfNotExists(purchase)
	if err != nil {
		return nil, false, err
	}
	if !created {
		log.Infof("[Payments] Duplicate webhook for order %s ignored", ref)
		return purchase, false, nil
	}

	log.Infof("[Payments] Granted %s pack to %s %s (order %s)", tier, ownerType, ownerID, ref)
	return purchase, true, nil
}
