package generation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/portraitforge/portraitforge/app/models"
	"github.com/portraitforge/portraitforge/internal/pkg/preview"
	"github.com/portraitforge/portraitforge/internal/pkg/principal"
)

// DefaultDeadline is how long a job may stay non-terminal before polls fail
// it with a timeout.
const DefaultDeadline = 10 * time.Minute

// ErrProvider wraps upstream generation failures. The wrapped message also
// lands in the job's error_message column.
var ErrProvider = errors.New("generation provider error")

// SubmitRequest carries everything needed to open a generation job.
// Style/subject catalog validation happens at the storefront edge; the
// orchestrator only checks shape.
type SubmitRequest struct {
	Owner          principal.Principal `validate:"-"`
	Style          string              `validate:"required,max=50"`
	Subject        string              `validate:"required,max=50"`
	SourceAssetRef string              `validate:"required,max=500"`
	Provider       models.ProviderKind `validate:"omitempty,oneof=inline remote"`
}

// Orchestrator drives generation jobs through their state machine. All
// correctness rests on single-row conditional writes (the claim and the
// guarded terminal transitions); the orchestrator holds no cross-request
// state of its own and can run on any number of instances.
type Orchestrator struct {
	repo     Repository
	inline   InlineProvider
	remote   RemoteProvider
	store    ObjectStore
	renderer PreviewRenderer
	deadline time.Duration
	validate *validator.Validate
}

// NewOrchestrator wires an orchestrator from its collaborators. The preview
// renderer may be nil; previews are then skipped entirely.
func NewOrchestrator(repo Repository, inline InlineProvider, remote RemoteProvider, store ObjectStore, renderer PreviewRenderer, deadline time.Duration) *Orchestrator {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Orchestrator{
		repo:     repo,
		inline:   inline,
		remote:   remote,
		store:    store,
		renderer: renderer,
		deadline: deadline,
		validate: validator.New(),
	}
}

// NewOrchestratorFromDB wires an orchestrator over a GORM DB handle.
func NewOrchestratorFromDB(db *gorm.DB, inline InlineProvider, remote RemoteProvider, store ObjectStore, renderer PreviewRenderer, deadline time.Duration) *Orchestrator {
	return NewOrchestrator(NewRepository(db), inline, remote, store, renderer, deadline)
}

// Submit validates the request, creates a pending job and provisions it.
// A remote provisioning failure leaves the job pending and surfaces an
// ErrProvider the caller may retry with a fresh Submit.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*models.GenerationJob, error) {
	if err := o.validate.Struct(req); err != nil {
		return nil, err
	}
	if req.Owner.IsZero() {
		return nil, errors.New("job owner is required")
	}

	ownerType, ownerID := req.Owner.OwnerColumns()
	job := &models.GenerationJob{
		ID:             uuid.New().String(),
		OwnerType:      ownerType,
		OwnerID:        ownerID,
		Style:          req.Style,
		Subject:        req.Subject,
		SourceAssetRef: req.SourceAssetRef,
		Provider:       req.Provider,
		Status:         models.JobStatusPending,
	}
	if job.Provider == "" {
		job.Provider = models.ProviderKindInline
	}
	if err := o.repo.CreateJob(job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	switch job.Provider {
	case models.ProviderKindInline:
		// Nothing to provision; execution happens under the poll claim.
		if err := o.repo.MarkGenerating(job, ""); err != nil {
			return nil, err
		}
	case models.ProviderKindRemote:
		externalID, err := o.remote.Submit(ctx, job)
		if err != nil {
			log.Warnf("[Generation] Provisioning failed for job %s: %v", job.ID, err)
			return job, fmt.Errorf("%w: %v", ErrProvider, err)
		}
		if err := o.repo.MarkGenerating(job, externalID); err != nil {
			return nil, err
		}
	}

	log.Infof("[Generation] Submitted job %s (provider=%s, style=%s)", job.ID, job.Provider, job.Style)
	return job, nil
}

// Poll advances a job and returns its current snapshot. Terminal jobs are
// returned as stored, any number of times. For inline jobs exactly one
// concurrent poller wins the claim and executes the generation; all others
// get the in-progress snapshot immediately, with zero side effects.
func (o *Orchestrator) Poll(ctx context.Context, jobID string) (*models.GenerationJob, error) {
	job, err := o.repo.GetJob(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.IsTerminal() {
		return job, nil
	}

	// Timeout policy applies before any provider branch.
	if time.Since(job.CreatedAt) > o.deadline {
		msg := fmt.Sprintf("generation timed out after %s", o.deadline)
		if err := o.repo.MarkFailed(job, msg); err != nil {
			return nil, err
		}
		log.Warnf("[Generation] Job %s failed: %s", job.ID, msg)
		return job, nil
	}

	switch job.Provider {
	case models.ProviderKindInline:
		return o.pollInline(ctx, job)
	case models.ProviderKindRemote:
		return o.pollRemote(ctx, job)
	default:
		return nil, fmt.Errorf("unknown provider kind %q on job %s", job.Provider, job.ID)
	}
}

// pollInline runs the exactly-once execution path. The conditional write on
// claimed_at decides the sole executor; this request then blocks for the
// duration of the external call while concurrent pollers return immediately.
func (o *Orchestrator) pollInline(ctx context.Context, job *models.GenerationJob) (*models.GenerationJob, error) {
	claimed, err := o.repo.ClaimJob(job)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Another poller holds the claim; report in-progress.
		return job, nil
	}

	if o.inline == nil {
		return o.failJob(job, "no inline provider configured")
	}

	image, err := o.inline.Generate(ctx, job)
	if err != nil {
		return o.failJob(job, fmt.Sprintf("%v: %v", ErrProvider, err))
	}
	return o.finishJob(ctx, job, image)
}

// pollRemote mirrors remote state into the local row.
func (o *Orchestrator) pollRemote(ctx context.Context, job *models.GenerationJob) (*models.GenerationJob, error) {
	if o.remote == nil {
		return o.failJob(job, "no remote provider configured")
	}

	status, err := o.remote.Status(ctx, job.ExternalJobID)
	if err != nil {
		// Transient read failure; the row is untouched and the next poll
		// tries again.
		log.Warnf("[Generation] Remote status read failed for job %s: %v", job.ID, err)
		return job, nil
	}

	switch status.State {
	case RemoteStateCompleted:
		return o.finishJob(ctx, job, status.Image)
	case RemoteStateFailed:
		message := status.Message
		if message == "" {
			message = "generation failed upstream"
		}
		return o.failJob(job, message)
	default:
		return job, nil
	}
}

// finishJob persists the final asset, marks the job completed and then
// attempts the preview. Asset presence is the completion contract; the
// preview is an enhancement and its failure never reverts completion.
func (o *Orchestrator) finishJob(ctx context.Context, job *models.GenerationJob, image []byte) (*models.GenerationJob, error) {
	finalRef := fmt.Sprintf("artworks/%s/final.png", job.ID)
	if err := o.store.Put(ctx, finalRef, image, "image/png"); err != nil {
		return o.failJob(job, fmt.Sprintf("failed to store final asset: %v", err))
	}
	if err := o.repo.MarkCompleted(job, finalRef); err != nil {
		return nil, err
	}
	log.Infof("[Generation] Job %s completed (%d bytes)", job.ID, len(image))

	o.renderPreview(ctx, job, image)
	return job, nil
}

func (o *Orchestrator) renderPreview(ctx context.Context, job *models.GenerationJob, image []byte) {
	if o.renderer == nil {
		return
	}
	rendered, err := o.renderer.Render(ctx, image)
	if err != nil {
		log.Warnf("[Generation] Preview render failed for job %s: %v", job.ID, err)
		return
	}
	previewRef := fmt.Sprintf("artworks/%s/preview.webp", job.ID)
	if err := o.store.Put(ctx, previewRef, rendered, preview.ContentType); err != nil {
		log.Warnf("[Generation] Preview upload failed for job %s: %v", job.ID, err)
		return
	}
	if err := o.repo.SetPreviewRef(job, previewRef); err != nil {
		log.Warnf("[Generation] Preview ref update failed for job %s: %v", job.ID, err)
	}
}

func (o *Orchestrator) failJob(job *models.GenerationJob, message string) (*models.GenerationJob, error) {
	if err := o.repo.MarkFailed(job, message); err != nil {
		return nil, err
	}
	log.Warnf("[Generation] Job %s failed: %s", job.ID, message)
	return job, nil
}
