package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
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
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.PackPurchase{}))
	return db
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"event_type":"order.completed"}`)

	assert.True(t, VerifyWebhookSignature(payload, sign(payload, "hook-secret"), "hook-secret"))
	assert.True(t, VerifyWebhookSignature(payload, " "+sign(payload, "hook-secret")+" ", "hook-secret"),
		"surrounding whitespace in the header is tolerated")
}

func TestVerifyWebhookSignatureRejects(t *testing.T) {
	payload := []byte(`{"event_type":"order.completed"}`)

	assert.False(t, VerifyWebhookSignature(payload, sign(payload, "wrong-secret"), "hook-secret"))
	assert.False(t, VerifyWebhookSignature([]byte("tampered"), sign(payload, "hook-secret"), "hook-secret"))
	assert.False(t, VerifyWebhookSignature(payload, "not-hex!", "hook-secret"))
	assert.False(t, VerifyWebhookSignature(payload, "", "hook-secret"))
	assert.False(t, VerifyWebhookSignature(payload, sign(payload, "hook-secret"), ""))
}

func TestHandleOrderCompletedGrantsPack(t *testing.T) {
	svc := NewServiceFromDB(newTestDB(t))

	purchase, created, err := svc.HandleOrderCompleted(OrderCompletedEvent{
		Provider:         "webhook",
		ProviderOrderRef: "order-1",
		Owner:            principal.User(7),
		Tier:             "classic",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.PackTierClassic, purchase.Tier)
	assert.Equal(t, 15, purchase.GenerationsGranted)
	assert.Equal(t, 3, purchase.DownloadsGranted)
	assert.Equal(t, "user", purchase.OwnerType)
	assert.Equal(t, "7", purchase.OwnerID)
}

func TestHandleOrderCompletedIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewServiceFromDB(db)

	evt := OrderCompletedEvent{
		Provider:         "webhook",
		ProviderOrderRef: "order-1",
		Owner:            principal.Guest("guest-1"),
		Tier:             "starter",
	}
	_, created, err := svc.HandleOrderCompleted(evt)
	require.NoError(t, err)
	require.True(t, created)

	_, created, err = svc.HandleOrderCompleted(evt)
	require.NoError(t, err)
	assert.False(t, created, "redelivered webhook grants nothing twice")

	var count int64
	require.NoError(t, db.Model(&models.PackPurchase{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestHandleOrderCompletedUnknownTierFallsBack(t *testing.T) {
	svc := NewServiceFromDB(newTestDB(t))

	purchase, created, err := svc.HandleOrderCompleted(OrderCompletedEvent{
		Provider:         "webhook",
		ProviderOrderRef: "order-1",
		Owner:            principal.User(7),
		Tier:             "mystery",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.PackTierStarter, purchase.Tier)
}

func TestHandleOrderCompletedValidation(t *testing.T) {
	svc := NewServiceFromDB(newTestDB(t))

	_, _, err := svc.HandleOrderCompleted(OrderCompletedEvent{
		Owner: principal.User(7), Tier: "starter",
	})
	assert.Error(t, err, "order ref is required")

	_, _, err = svc.HandleOrderCompleted(OrderCompletedEvent{
		ProviderOrderRef: "order-1", Tier: "starter",
	})
	assert.Error(t, err, "owner is required")
}
