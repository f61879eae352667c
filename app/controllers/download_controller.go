package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/portraitforge/portraitforge/app/models"
	"github.com/portraitforge/portraitforge/internal/pkg/database"
	"github.com/portraitforge/portraitforge/internal/pkg/env"
	"github.com/portraitforge/portraitforge/internal/pkg/ledger"
	metrics "github.com/portraitforge/portraitforge/internal/pkg/metrics/counter"
	"github.com/portraitforge/portraitforge/internal/pkg/principal"
	"github.com/portraitforge/portraitforge/internal/pkg/security"
)

const (
	downloadTokenTTL = 7 * 24 * time.Hour
	downloadURLTTL   = 15 * time.Minute
	previewURLTTL    = time.Hour
)

type createDownloadRequest struct {
	JobID string `json:"job_id"`
}

// HandleCreateDownload charges one download credit and issues a capability
// token for the job's final asset.
func HandleCreateDownload(c *fiber.Ctx) error {
	pc := principal.FromFiber(c)
	if pc.Principal.IsZero() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "no_principal", "message": "no guest or user identity on request",
		})
	}

	var req createDownloadRequest
	if err := c.BodyParser(&req); err != nil || req.JobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad_request", "message": "job_id is required",
		})
	}

	job, err := models.FindGenerationJobByID(database.GetDB(), req.JobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "not_found", "message": "unknown job",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error", "message": "lookup failed",
		})
	}

	ownerType, ownerID := pc.Principal.OwnerColumns()
	if job.OwnerType != ownerType || job.OwnerID != ownerID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not_found", "message": "unknown job",
		})
	}
	if job.Status != models.JobStatusCompleted || job.FinalAssetRef == "" {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "not_ready", "message": "generation is not completed yet",
		})
	}

	ok, err := packService.DeductDownload(pc.Principal)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error", "message": "credit check failed",
		})
	}
	if !ok {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error": "insufficient_credits", "message": ledger.ErrInsufficientCredits.Error(),
		})
	}

	token, err := security.GenerateDownloadToken(job.FinalAssetRef, downloadTokenTTL, env.GetEnv("DOWNLOAD_TOKEN_SECRET", ""))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error", "message": "failed to issue download token",
		})
	}

	if err := metrics.AddDownloadIssued(); err != nil {
		log.Warnf("[Download] Counter update failed: %v", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token":      token,
		"expires_at": time.Now().Add(downloadTokenTTL).UTC(),
	})
}

// HandleRedeemDownload validates a capability token and hands out a
// temporary read URL for the asset it grants. The error payload is the same
// for every failure mode on purpose.
func HandleRedeemDownload(c *fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad_request", "message": "token missing",
		})
	}

	resourceID, err := security.VerifyDownloadToken(token, env.GetEnv("DOWNLOAD_TOKEN_SECRET", ""))
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "invalid_token", "message": security.ErrInvalidToken.Error(),
		})
	}

	url, err := objectStore.PresignGet(c.Context(), resourceID, downloadURLTTL)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error", "message": "failed to prepare download",
		})
	}

	return c.JSON(fiber.Map{"url": url})
}
