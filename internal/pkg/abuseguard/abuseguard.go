package abuseguard

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/portraitforge/portraitforge/app/models"
)

const (
	// DefaultWindow is the trailing period the cap applies to.
	DefaultWindow = 30 * 24 * time.Hour
	// DefaultCap is how many free-tier uses each fingerprint gets inside the
	// window. Configured separately from the free ledger cap; the two do not
	// have to match.
	DefaultCap = 2
)

// Guard enforces the sliding-window free-tier cap on hashed request
// fingerprints. Its keys are derived from the client IP and device, never
// from the principal id, so rotating a guest cookie does not reset the
// allowance. The balance ledger remains the authoritative gate; this check
// runs first because it is cheaper than burning a ledger slot on a request
// that would be denied anyway.
type Guard struct {
	repo   Repository
	secret []byte
	cap    int64
	window time.Duration
}

// NewGuard creates an abuse guard from an injected repository. The secret
// keys the fingerprint hash so raw IPs and device ids never touch storage.
func NewGuard(repo Repository, secret string, cap int, window time.Duration) (*Guard, error) {
	if secret == "" {
		return nil, errors.New("fingerprint secret is required")
	}
	if cap <= 0 {
		cap = DefaultCap
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Guard{repo: repo, secret: []byte(secret), cap: int64(cap), window: window}, nil
}

// NewGuardFromDB creates an abuse guard from a GORM DB handle.
func NewGuardFromDB(db *gorm.DB, secret string, cap int, window time.Duration) (*Guard, error) {
	return NewGuard(NewRepository(db), secret, cap, window)
}

// Fingerprint derives the one-way hashed key for a raw IP or device value.
// Empty input yields an empty key, which the guard treats as absent.
func (g *Guard) Fingerprint(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// IsAllowed reports whether another free-tier use is permitted for these
// fingerprints. Either key reaching the cap inside the trailing window
// denies the request.
func (g *Guard) IsAllowed(ipKey, deviceKey string) (bool, error) {
	since := time.Now().Add(-g.window)

	if ipKey != "" {
		count, err := g.repo.CountByIPHashSince(ipKey, since)
		if err != nil {
			return false, err
		}
		if count >= g.cap {
			return false, nil
		}
	}
	if deviceKey != "" {
		count, err := g.repo.CountByDeviceHashSince(deviceKey, since)
		if err != nil {
			return false, err
		}
		if count >= g.cap {
			return false, nil
		}
	}
	return true, nil
}

// RecordUse appends one immutable event after a successful free-tier
// consumption.
func (g *Guard) RecordUse(ipKey, deviceKey string) error {
	if ipKey == "" && deviceKey == "" {
		return errors.New("at least one fingerprint key is required")
	}
	return g.repo.InsertEvent(&models.AbuseEvent{
		IPHash:     ipKey,
		DeviceHash: deviceKey,
		UsedAt:     time.Now(),
	})
}
