package controllers

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/portraitforge/portraitforge/internal/pkg/env"
	metrics "github.com/portraitforge/portraitforge/internal/pkg/metrics/counter"
	"github.com/portraitforge/portraitforge/internal/pkg/payments"
	"github.com/portraitforge/portraitforge/internal/pkg/principal"
)

// orderWebhookPayload is the normalized order-completed event the payment
// provider posts to us.
type orderWebhookPayload struct {
	EventType string `json:"event_type"`
	OrderRef  string `json:"order_ref"`
	Tier      string `json:"tier"`
	UserID    uint   `json:"user_id,omitempty"`
	GuestID   string `json:"guest_id,omitempty"`
}

// HandlePaymentWebhook verifies and processes payment provider callbacks.
// Signature verification runs over the raw body before any parsing.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	secret := env.GetEnv("PAYMENT_WEBHOOK_SECRET", "")
	body := c.Body()

	if !payments.VerifyWebhookSignature(body, c.Get("X-Webhook-Signature"), secret) {
		log.Warnf("[Payments] Webhook with invalid signature from %s", c.IP())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid_signature",
		})
	}

	var payload orderWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad_request", "message": "invalid webhook payload",
		})
	}

	if payload.EventType != "order.completed" {
		// Acknowledge events we do not act on so the provider stops retrying.
		return c.JSON(fiber.Map{"status": "ignored"})
	}

	var owner principal.Principal
	switch {
	case payload.UserID != 0:
		owner = principal.User(payload.UserID)
	case payload.GuestID != "":
		owner = principal.Guest(payload.GuestID)
	}

	purchase, created, err := paymentService.HandleOrderCompleted(payments.OrderCompletedEvent{
		Provider:         "webhook",
		ProviderOrderRef: payload.OrderRef,
		Owner:            owner,
		Tier:             payload.Tier,
	})
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad_request", "message": err.Error(),
		})
	}

	status := "duplicate"
	if created {
		status = "granted"
	}
	return c.JSON(fiber.Map{
		"status": status,
		"tier":   purchase.Tier,
	})
}

// HandleUsageStats reports the operational counters. Mounted behind the
// admin basic-auth group.
func HandleUsageStats(c *fiber.Ctx) error {
	totals, err := metrics.Totals()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error",
		})
	}
	return c.JSON(totals)
}
