package ledger

import (
	"errors"

	"gorm.io/gorm"

	"github.com/portraitforge/portraitforge/internal/pkg/principal"
)

// DefaultFreeCap is the number of free generations every principal gets.
const DefaultFreeCap = 2

// ErrInsufficientCredits signals the free tier is exhausted for this
// principal. A lost write race surfaces as this same outcome because the two
// are indistinguishable to the caller.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Balance is the free-tier standing of one principal.
type Balance struct {
	Balance    int `json:"balance"`
	TokensUsed int `json:"tokens_used"`
	Cap        int `json:"cap"`
}

// Service is the free-tier credit ledger for guests and users. Deductions
// are conditional single-row writes, safe across any number of concurrent
// handler instances.
type Service struct {
	repo Repository
	cap  int
}

// NewService creates a ledger service from an injected repository.
func NewService(repo Repository, cap int) *Service {
	if cap <= 0 {
		cap = DefaultFreeCap
	}
	return &Service{repo: repo, cap: cap}
}

// NewServiceFromDB creates a ledger service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, cap int) *Service {
	return NewService(NewRepository(db), cap)
}

// Cap returns the configured free-tier cap.
func (s *Service) Cap() int {
	return s.cap
}

// GetBalance returns the current free-tier balance. A missing ledger row
// means nothing has been consumed yet.
func (s *Service) GetBalance(p principal.Principal) (Balance, error) {
	used, _, err := s.tokensUsed(p)
	if err != nil {
		return Balance{}, err
	}
	balance := s.cap - used
	if balance < 0 {
		balance = 0
	}
	return Balance{Balance: balance, TokensUsed: used, Cap: s.cap}, nil
}

// Deduct consumes one free-tier token. It returns false when the cap is
// reached or when a concurrent deduction won the race; both come back to the
// caller as insufficient credits, never as an internal error.
func (s *Service) Deduct(p principal.Principal) (bool, error) {
	if p.IsZero() {
		return false, errors.New("principal is required")
	}

	used, exists, err := s.tokensUsed(p)
	if err != nil {
		return false, err
	}
	if used >= s.cap {
		return false, nil
	}
	if !exists {
		if err := s.ensureLedger(p); err != nil {
			return false, err
		}
	}

	// Conditional write: succeeds only if tokens_used still equals the value
	// just read. Zero affected rows means another caller won; that outcome
	// must not be retried here.
	if p.IsUser() {
		return s.repo.CompareAndSwapUserTokens(p.UserID, used, used+1)
	}
	return s.repo.CompareAndSwapGuestTokens(p.GuestID, used, used+1)
}

func (s *Service) tokensUsed(p principal.Principal) (int, bool, error) {
	if p.IsUser() {
		return s.repo.GetUserTokensUsed(p.UserID)
	}
	return s.repo.GetGuestTokensUsed(p.GuestID)
}

func (s *Service) ensureLedger(p principal.Principal) error {
	if p.IsUser() {
		return s.repo.EnsureUserLedger(p.UserID)
	}
	return s.repo.EnsureGuestLedger(p.GuestID)
}
