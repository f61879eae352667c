package packcredit

import (
	"gorm.io/gorm"

	"github.com/portraitforge/portraitforge/app/models"
	"github.com/portraitforge/portraitforge/internal/pkg/principal"
)

const (
	columnGenerationsUsed = "generations_used"
	columnDownloadsUsed   = "downloads_used"
)

// PackBalance summarizes the purchased credits an owner still holds.
type PackBalance struct {
	Generations int               `json:"generations"`
	Downloads   int               `json:"downloads"`
	Tiers       []models.PackTier `json:"tiers"`
}

// Service is the purchased-credit ledger. Each owner can hold several pack
// purchases; credits are drawn from the oldest purchase with remaining
// capacity, using the same conditional-write pattern as the free ledger but
// scoped to the single purchase row.
//
// There is no cross-row transaction around the FIFO scan, so under heavy
// concurrency for one owner two callers can briefly race across two purchase
// rows. Each row's counters stay correct regardless; only the draw order can
// skew. Known limitation.
type Service struct {
	repo Repository
}

// NewService creates a pack credit service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// NewServiceFromDB creates a pack credit service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// GetPackBalance sums remaining credits across all purchases of an owner and
// reports the distinct tiers owned.
func (s *Service) GetPackBalance(owner principal.Principal) (PackBalance, error) {
	ownerType, ownerID := owner.OwnerColumns()
	purchases, err := s.repo.ListPurchases(ownerType, ownerID)
	if err != nil {
		return PackBalance{}, err
	}

	balance := PackBalance{Tiers: []models.PackTier{}}
	seen := make(map[models.PackTier]struct{}, len(purchases))
	for i := range purchases {
		p := &purchases[i]
		balance.Generations += p.GenerationsRemaining()
		balance.Downloads += p.DownloadsRemaining()
		if _, ok := seen[p.Tier]; !ok {
			seen[p.Tier] = struct{}{}
			balance.Tiers = append(balance.Tiers, p.Tier)
		}
	}
	return balance, nil
}

// DeductGeneration consumes one generation credit from the oldest purchase
// with remaining capacity. Returns false when every purchase is exhausted or
// a concurrent caller won the race on the targeted row.
func (s *Service) DeductGeneration(owner principal.Principal) (bool, error) {
	return s.deduct(owner, columnGenerationsUsed)
}

// DeductDownload consumes one download credit, same FIFO rules as
// DeductGeneration.
func (s *Service) DeductDownload(owner principal.Principal) (bool, error) {
	return s.deduct(owner, columnDownloadsUsed)
}

func (s *Service) deduct(owner principal.Principal, column string) (bool, error) {
	ownerType, ownerID := owner.OwnerColumns()
	purchases, err := s.repo.ListPurchases(ownerType, ownerID)
	if err != nil {
		return false, err
	}

	for i := range purchases {
		p := &purchases[i]
		granted, used := p.GenerationsGranted, p.GenerationsUsed
		if column == columnDownloadsUsed {
			granted, used = p.DownloadsGranted, p.DownloadsUsed
		}
		if granted-used <= 0 {
			continue
		}
		ok, err := s.repo.CompareAndSwapCounter(p.ID, column, used, used+1)
		if err != nil {
			return false, err
		}
		// A lost race on this row is not retried against the next one; the
		// caller sees insufficient credits and decides what to do.
		return ok, nil
	}
	return false, nil
}
