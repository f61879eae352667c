package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/portraitforge/portraitforge/app/models"
	"github.com/portraitforge/portraitforge/internal/pkg/principal"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps the in-memory database shared across goroutines.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.GuestUsageLedger{}, &models.UserUsageLedger{}))
	return db
}

func TestGetBalanceWithoutRow(t *testing.T) {
	svc := NewServiceFromDB(newTestDB(t), 2)

	balance, err := svc.GetBalance(principal.Guest("guest-1"))
	require.NoError(t, err)
	assert.Equal(t, 2, balance.Balance)
	assert.Equal(t, 0, balance.TokensUsed)
	assert.Equal(t, 2, balance.Cap)
}

func TestDeductCreatesRowLazily(t *testing.T) {
	db := newTestDB(t)
	svc := NewServiceFromDB(db, 2)

	var count int64
	require.NoError(t, db.Model(&models.GuestUsageLedger{}).Count(&count).Error)
	assert.Zero(t, count)

	ok, err := svc.Deduct(principal.Guest("guest-1"))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, db.Model(&models.GuestUsageLedger{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDeductStopsAtCap(t *testing.T) {
	svc := NewServiceFromDB(newTestDB(t), 2)
	g := principal.Guest("guest-1")

	for i := 0; i < 2; i++ {
		ok, err := svc.Deduct(g)
		require.NoError(t, err)
		assert.True(t, ok, "deduction %d should succeed", i+1)
	}

	ok, err := svc.Deduct(g)
	require.NoError(t, err)
	assert.False(t, ok, "third deduction must be refused")

	balance, err := svc.GetBalance(g)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Balance)
	assert.Equal(t, 2, balance.TokensUsed)
}

func TestDeductUserAndGuestAreIndependent(t *testing.T) {
	svc := NewServiceFromDB(newTestDB(t), 1)

	ok, err := svc.Deduct(principal.Guest("guest-1"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Deduct(principal.User(7))
	require.NoError(t, err)
	assert.True(t, ok, "user allowance is separate from the guest's")
}

func TestCompareAndSwapLosesStaleWrite(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepository(db)
	require.NoError(t, repo.EnsureGuestLedger("guest-1"))

	// Two writers read tokens_used=0; only the first conditional write may
	// land, the second sees zero affected rows.
	ok, err := repo.CompareAndSwapGuestTokens("guest-1", 0, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CompareAndSwapGuestTokens("guest-1", 0, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	used, exists, err := repo.GetGuestTokensUsed("guest-1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 1, used)
}

func TestConcurrentDeductionsNeverExceedCap(t *testing.T) {
	db := newTestDB(t)
	svc := NewServiceFromDB(db, 2)
	g := principal.Guest("guest-1")

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := svc.Deduct(g)
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	granted := 0
	for ok := range results {
		if ok {
			granted++
		}
	}
	assert.LessOrEqual(t, granted, 2, "grants above the cap mean the conditional write failed")

	used, _, err := NewRepository(db).GetGuestTokensUsed("guest-1")
	require.NoError(t, err)
	assert.LessOrEqual(t, used, 2)
	assert.Equal(t, granted, used)
}

func TestDeductRejectsZeroPrincipal(t *testing.T) {
	svc := NewServiceFromDB(newTestDB(t), 2)

	_, err := svc.Deduct(principal.Principal{})
	assert.Error(t, err)
}
