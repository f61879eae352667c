package accountlink

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/portraitforge/portraitforge/app/models"
	"github.com/portraitforge/portraitforge/internal/pkg/ledger"
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

	require.NoError(t, db.AutoMigrate(
		&models.GuestUsageLedger{},
		&models.UserUsageLedger{},
		&models.GenerationJob{},
		&models.PackPurchase{},
	))
	return db
}

func TestLinkMergesUsageByMax(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.GuestUsageLedger{GuestID: "guest-1", TokensUsed: 2}).Error)
	require.NoError(t, db.Create(&models.UserUsageLedger{UserID: 7, TokensUsed: 0}).Error)

	require.NoError(t, NewServiceFromDB(db).Link(7, "guest-1"))

	used, exists, err := ledger.NewRepository(db).GetUserTokensUsed(7)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 2, used, "max(0, 2): guest consumption is not forgiven")
}

func TestLinkKeepsHigherUserUsage(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.GuestUsageLedger{GuestID: "guest-1", TokensUsed: 1}).Error)
	require.NoError(t, db.Create(&models.UserUsageLedger{UserID: 7, TokensUsed: 2}).Error)

	require.NoError(t, NewServiceFromDB(db).Link(7, "guest-1"))

	used, _, err := ledger.NewRepository(db).GetUserTokensUsed(7)
	require.NoError(t, err)
	assert.Equal(t, 2, used, "max, never sum: linking must not double-charge")
}

func TestLinkCreatesUserLedgerWhenAbsent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.GuestUsageLedger{GuestID: "guest-1", TokensUsed: 2}).Error)

	require.NoError(t, NewServiceFromDB(db).Link(7, "guest-1"))

	used, exists, err := ledger.NewRepository(db).GetUserTokensUsed(7)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 2, used)
}

func TestLinkWithUntouchedGuest(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, NewServiceFromDB(db).Link(7, "guest-never-seen"))

	used, exists, err := ledger.NewRepository(db).GetUserTokensUsed(7)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Zero(t, used)
}

func TestLinkReassignsJobsAndPurchases(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.GenerationJob{
		ID: "job-1", OwnerType: "guest", OwnerID: "guest-1",
		Style: "oil", Subject: "dog", Status: models.JobStatusCompleted,
	}).Error)
	require.NoError(t, db.Create(&models.PackPurchase{
		OwnerType: "guest", OwnerID: "guest-1", Tier: models.PackTierStarter,
		GenerationsGranted: 5, DownloadsGranted: 1, ProviderOrderRef: "order-1",
	}).Error)
	require.NoError(t, db.Create(&models.GenerationJob{
		ID: "job-2", OwnerType: "guest", OwnerID: "guest-other",
		Style: "oil", Subject: "cat", Status: models.JobStatusPending,
	}).Error)

	require.NoError(t, NewServiceFromDB(db).Link(7, "guest-1"))

	var job models.GenerationJob
	require.NoError(t, db.First(&job, "id = ?", "job-1").Error)
	assert.Equal(t, "user", job.OwnerType)
	assert.Equal(t, "7", job.OwnerID)

	var purchase models.PackPurchase
	require.NoError(t, db.First(&purchase, "provider_order_ref = ?", "order-1").Error)
	assert.Equal(t, "user", purchase.OwnerType)
	assert.Equal(t, "7", purchase.OwnerID)

	// Other guests are untouched.
	var otherJob models.GenerationJob
	require.NoError(t, db.First(&otherJob, "id = ?", "job-2").Error)
	assert.Equal(t, "guest", otherJob.OwnerType)
	assert.Equal(t, "guest-other", otherJob.OwnerID)
}

func TestLinkLeavesGuestLedgerForAudit(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.GuestUsageLedger{GuestID: "guest-1", TokensUsed: 2}).Error)

	require.NoError(t, NewServiceFromDB(db).Link(7, "guest-1"))

	used, exists, err := ledger.NewRepository(db).GetGuestTokensUsed("guest-1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 2, used)
}

func TestLinkValidatesArguments(t *testing.T) {
	svc := NewServiceFromDB(newTestDB(t))
	assert.Error(t, svc.Link(0, "guest-1"))
	assert.Error(t, svc.Link(7, ""))
}
