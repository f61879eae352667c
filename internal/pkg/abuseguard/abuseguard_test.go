package abuseguard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/portraitforge/portraitforge/app/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.AbuseEvent{}))
	return db
}

func newTestGuard(t *testing.T, db *gorm.DB) *Guard {
	t.Helper()
	guard, err := NewGuardFromDB(db, "test-secret", 2, DefaultWindow)
	require.NoError(t, err)
	return guard
}

func TestNewGuardRequiresSecret(t *testing.T) {
	_, err := NewGuardFromDB(newTestDB(t), "", 2, DefaultWindow)
	assert.Error(t, err)
}

func TestFingerprintIsDeterministicAndOpaque(t *testing.T) {
	guard := newTestGuard(t, newTestDB(t))

	a := guard.Fingerprint("203.0.113.7")
	b := guard.Fingerprint("203.0.113.7")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotContains(t, a, "203.0.113.7")

	assert.NotEqual(t, a, guard.Fingerprint("203.0.113.8"))
	assert.Empty(t, guard.Fingerprint(""))
	assert.Empty(t, guard.Fingerprint("   "))
}

func TestFingerprintDependsOnSecret(t *testing.T) {
	db := newTestDB(t)
	guardA, err := NewGuardFromDB(db, "secret-a", 2, DefaultWindow)
	require.NoError(t, err)
	guardB, err := NewGuardFromDB(db, "secret-b", 2, DefaultWindow)
	require.NoError(t, err)

	assert.NotEqual(t, guardA.Fingerprint("203.0.113.7"), guardB.Fingerprint("203.0.113.7"))
}

func TestIsAllowedUpToCap(t *testing.T) {
	guard := newTestGuard(t, newTestDB(t))
	ip := guard.Fingerprint("203.0.113.7")
	device := guard.Fingerprint("device-1")

	for i := 0; i < 2; i++ {
		allowed, err := guard.IsAllowed(ip, device)
		require.NoError(t, err)
		assert.True(t, allowed, "use %d should be allowed", i+1)
		require.NoError(t, guard.RecordUse(ip, device))
	}

	allowed, err := guard.IsAllowed(ip, device)
	require.NoError(t, err)
	assert.False(t, allowed, "cap reached inside the window")
}

func TestCapSurvivesGuestIdentityReset(t *testing.T) {
	// Events are keyed by fingerprints only; a visitor clearing cookies and
	// returning with a fresh guest id is still recognized by IP.
	guard := newTestGuard(t, newTestDB(t))
	ip := guard.Fingerprint("203.0.113.7")

	require.NoError(t, guard.RecordUse(ip, guard.Fingerprint("device-1")))
	require.NoError(t, guard.RecordUse(ip, guard.Fingerprint("device-2")))

	allowed, err := guard.IsAllowed(ip, guard.Fingerprint("device-3"))
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestEitherKeyReachingCapDenies(t *testing.T) {
	guard := newTestGuard(t, newTestDB(t))
	device := guard.Fingerprint("device-1")

	// Same device across rotating IPs.
	require.NoError(t, guard.RecordUse(guard.Fingerprint("203.0.113.1"), device))
	require.NoError(t, guard.RecordUse(guard.Fingerprint("203.0.113.2"), device))

	allowed, err := guard.IsAllowed(guard.Fingerprint("203.0.113.3"), device)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestEventsOutsideWindowDoNotCount(t *testing.T) {
	db := newTestDB(t)
	guard := newTestGuard(t, db)
	ip := guard.Fingerprint("203.0.113.7")

	require.NoError(t, guard.RecordUse(ip, ""))
	require.NoError(t, guard.RecordUse(ip, ""))

	// Age one event past the window; the cap frees up one slot.
	old := time.Now().Add(-DefaultWindow - time.Hour)
	require.NoError(t, db.Model(&models.AbuseEvent{}).
		Where("id = (SELECT MIN(id) FROM abuse_events)").
		UpdateColumn("used_at", old).Error)

	allowed, err := guard.IsAllowed(ip, "")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestMissingDeviceKeyIsSkipped(t *testing.T) {
	guard := newTestGuard(t, newTestDB(t))
	ip := guard.Fingerprint("203.0.113.7")

	allowed, err := guard.IsAllowed(ip, "")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRecordUseRequiresAKey(t *testing.T) {
	guard := newTestGuard(t, newTestDB(t))
	assert.Error(t, guard.RecordUse("", ""))
}

func TestEventsAreAppendOnlyRows(t *testing.T) {
	db := newTestDB(t)
	guard := newTestGuard(t, db)
	ip := guard.Fingerprint("203.0.113.7")

	require.NoError(t, guard.RecordUse(ip, ""))
	require.NoError(t, guard.RecordUse(ip, ""))

	var count int64
	require.NoError(t, db.Model(&models.AbuseEvent{}).Count(&count).Error)
	assert.EqualValues(t, 2, count, "each use appends its own row")
}
