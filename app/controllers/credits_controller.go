package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/portraitforge/portraitforge/internal/pkg/principal"
)

// HandleGetCredits returns the caller's free-tier and pack balances.
func HandleGetCredits(c *fiber.Ctx) error {
	pc := principal.FromFiber(c)
	if pc.Principal.IsZero() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "no_principal", "message": "no guest or user identity on request",
		})
	}

	free, err := ledgerService.GetBalance(pc.Principal)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error", "message": "failed to read balance",
		})
	}

	packs, err := packService.GetPackBalance(pc.Principal)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error", "message": "failed to read pack balance",
		})
	}

	return c.JSON(fiber.Map{
		"free":  free,
		"packs": packs,
	})
}
