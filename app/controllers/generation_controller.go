package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/portraitforge/portraitforge/app/models"
	"github.com/portraitforge/portraitforge/internal/pkg/generation"
	"github.com/portraitforge/portraitforge/internal/pkg/ledger"
	metrics "github.com/portraitforge/portraitforge/internal/pkg/metrics/counter"
	"github.com/portraitforge/portraitforge/internal/pkg/principal"
	"gorm.io/gorm"
)

type submitGenerationRequest struct {
	Style          string `json:"style"`
	Subject        string `json:"subject"`
	SourceAssetRef string `json:"source_asset_ref"`
	Provider       string `json:"provider"`
}

// HandleSubmitGeneration charges one generation credit and opens a job.
// The checks run cheapest-first: the abuse window, then the free ledger,
// then purchased packs. The conditional ledger writes remain the
// authoritative gate under concurrency.
func HandleSubmitGeneration(c *fiber.Ctx) error {
	pc := principal.FromFiber(c)
	if pc.Principal.IsZero() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "no_principal", "message": "no guest or user identity on request",
		})
	}

	var req submitGenerationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad_request", "message": "invalid request body",
		})
	}

	charged, err := chargeGeneration(pc)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error", "message": "credit check failed",
		})
	}
	if !charged {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"error": "insufficient_credits", "message": ledger.ErrInsufficientCredits.Error(),
		})
	}

	job, err := orchestrator.Submit(c.Context(), generation.SubmitRequest{
		Owner:          pc.Principal,
		Style:          req.Style,
		Subject:        req.Subject,
		SourceAssetRef: req.SourceAssetRef,
		Provider:       models.ProviderKind(req.Provider),
	})
	if err != nil {
		if job != nil && errors.Is(err, generation.ErrProvider) {
			// Job stays pending; the client may retry submission.
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "provider_unavailable", "message": "generation backend unavailable, please retry",
				"job_id": job.ID,
			})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "validation_error", "message": err.Error(),
		})
	}

	if err := metrics.AddGenerationSubmitted(); err != nil {
		log.Warnf("[Generation] Counter update failed: %v", err)
	}
	if err := generation.SetJobStatusHint(job.ID, job.Status); err != nil {
		log.Warnf("[Generation] Status hint update failed: %v", err)
	}

	return c.Status(fiber.StatusCreated).JSON(jobResponse(c, job))
}

// chargeGeneration spends one credit for the request, free tier first.
func chargeGeneration(pc principal.Context) (bool, error) {
	allowed, err := abuseGuard.IsAllowed(pc.IPKey, pc.DeviceKey)
	if err != nil {
		return false, err
	}
	if allowed {
		ok, err := ledgerService.Deduct(pc.Principal)
		if err != nil {
			return false, err
		}
		if ok {
			if err := abuseGuard.RecordUse(pc.IPKey, pc.DeviceKey); err != nil {
				log.Errorf("[Generation] Failed to record abuse event: %v", err)
			}
			return true, nil
		}
	}
	// Free tier denied or exhausted; purchased credits are not subject to
	// the abuse window.
	return packService.DeductGeneration(pc.Principal)
}

// HandlePollGeneration advances a job and returns its snapshot.
func HandlePollGeneration(c *fiber.Ctx) error {
	pc := principal.FromFiber(c)
	jobID := c.Params("id")
	if jobID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "bad_request", "message": "job id missing",
		})
	}

	job, err := orchestrator.Poll(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "not_found", "message": "unknown job",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal_error", "message": "poll failed",
		})
	}

	ownerType, ownerID := pc.Principal.OwnerColumns()
	if job.OwnerType != ownerType || job.OwnerID != ownerID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "not_found", "message": "unknown job",
		})
	}

	recordJobTransition(job)
	return c.JSON(jobResponse(c, job))
}

// recordJobTransition bumps the terminal counters once per job, using the
// cached status hint to spot the first poll that observed the transition.
func recordJobTransition(job *models.GenerationJob) {
	prev, err := generation.GetJobStatusHint(job.ID)
	if err == nil && prev == job.Status {
		return
	}
	if err := generation.SetJobStatusHint(job.ID, job.Status); err != nil {
		log.Warnf("[Generation] Status hint update failed: %v", err)
		return
	}
	switch job.Status {
	case models.JobStatusCompleted:
		if err := metrics.AddGenerationCompleted(); err != nil {
			log.Warnf("[Generation] Counter update failed: %v", err)
		}
	case models.JobStatusFailed:
		if err := metrics.AddGenerationFailed(); err != nil {
			log.Warnf("[Generation] Counter update failed: %v", err)
		}
	}
}

// jobResponse shapes the public job snapshot, attaching a short-lived
// preview URL when one exists.
func jobResponse(c *fiber.Ctx, job *models.GenerationJob) fiber.Map {
	resp := fiber.Map{
		"id":         job.ID,
		"status":     job.Status,
		"style":      job.Style,
		"subject":    job.Subject,
		"created_at": job.CreatedAt,
	}
	if job.Status == models.JobStatusFailed {
		resp["error_message"] = job.ErrorMessage
	}
	if job.PreviewAssetRef != "" {
		if url, err := objectStore.PresignGet(c.Context(), job.PreviewAssetRef, previewURLTTL); err == nil {
			resp["preview_url"] = url
		}
	}
	return resp
}
