package generation

import (
	"time"

	"gorm.io/gorm"

	"github.com/portraitforge/portraitforge/app/models"
)

// Repository provides DB operations used by the orchestrator.
type Repository interface {
	CreateJob(job *models.GenerationJob) error
	GetJob(id string) (*models.GenerationJob, error)
	ClaimJob(job *models.GenerationJob) (bool, error)
	MarkGenerating(job *models.GenerationJob, externalJobID string) error
	MarkCompleted(job *models.GenerationJob, finalAssetRef string) error
	MarkFailed(job *models.GenerationJob, message string) error
	SetPreviewRef(job *models.GenerationJob, ref string) error
	ListOverdueJobs(cutoff time.Time) ([]models.GenerationJob, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a generation repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateJob(job *models.GenerationJob) error {
	return r.db.Create(job).Error
}

func (r *gormRepository) GetJob(id string) (*models.GenerationJob, error) {
	return models.FindGenerationJobByID(r.db, id)
}

func (r *gormRepository) ClaimJob(job *models.GenerationJob) (bool, error) {
	return job.ClaimForExecution(r.db)
}

func (r *gormRepository) MarkGenerating(job *models.GenerationJob, externalJobID string) error {
	return job.MarkGenerating(r.db, externalJobID)
}

func (r *gormRepository) MarkCompleted(job *models.GenerationJob, finalAssetRef string) error {
	return job.MarkCompleted(r.db, finalAssetRef)
}

func (r *gormRepository) MarkFailed(job *models.GenerationJob, message string) error {
	return job.MarkFailed(r.db, message)
}

func (r *gormRepository) SetPreviewRef(job *models.GenerationJob, ref string) error {
	return job.SetPreviewAssetRef(r.db, ref)
}

// ListOverdueJobs returns non-terminal jobs created before the cutoff.
func (r *gormRepository) ListOverdueJobs(cutoff time.Time) ([]models.GenerationJob, error) {
	var jobs []models.GenerationJob
	err := r.db.
		Where("status IN ? AND created_at < ?",
			[]models.JobStatus{models.JobStatusPending, models.JobStatusGenerating}, cutoff).
		Find(&jobs).Error
	return jobs, err
}
