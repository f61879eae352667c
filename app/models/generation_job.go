package models

import (
	"time"

	"gorm.io/gorm"
)

// ProviderKind selects how a generation job is executed. It is chosen at
// submission time and stored on the job, never re-derived from id formats.
type ProviderKind string

const (
	// ProviderKindInline jobs are executed by this system exactly once,
	// guarded by the claim protocol.
	ProviderKindInline ProviderKind = "inline"
	// ProviderKindRemote jobs run on the provider's own job system; polls
	// only mirror remote status into the local row.
	ProviderKindRemote ProviderKind = "remote"
)

// JobStatus defines the status of a generation job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusGenerating JobStatus = "generating"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the status is absorbing.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// GenerationJob represents one portrait generation. Jobs move strictly
// forward through pending -> generating -> completed/failed and are never
// revisited after a terminal state.
type GenerationJob struct {
	ID             string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OwnerType      string       `gorm:"type:varchar(10);not null;index:idx_job_owner" json:"owner_type"`
	OwnerID        string       `gorm:"type:varchar(64);not null;index:idx_job_owner" json:"owner_id"`
	Style          string       `gorm:"type:varchar(50);not null" json:"style"`
	Subject        string       `gorm:"type:varchar(50);not null" json:"subject"`
	Provider       ProviderKind `gorm:"type:varchar(20);not null;default:'inline'" json:"provider"`
	Status         JobStatus    `gorm:"type:varchar(20);not null;default:'pending';index:idx_job_status" json:"status"`
	ExternalJobID  string       `gorm:"type:varchar(100);default:''" json:"external_job_id"`
	SourceAssetRef string       `gorm:"type:varchar(500)" json:"source_asset_ref"`
	FinalAssetRef  string       `gorm:"type:varchar(500)" json:"final_asset_ref"`
	PreviewAssetRef string      `gorm:"type:varchar(500)" json:"preview_asset_ref"`
	ErrorMessage   string       `gorm:"type:text" json:"error_message"`
	ClaimedAt      *time.Time   `json:"claimed_at"`
	CompletedAt    *time.Time   `json:"completed_at"`
	CreatedAt      time.Time    `gorm:"autoCreateTime;index:idx_job_created_at" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GenerationJob
func (GenerationJob) TableName() string {
	return "generation_jobs"
}

// BeforeCreate sets default values before creating a new job record
func (j *GenerationJob) BeforeCreate(tx *gorm.DB) error {
	if j.Provider == "" {
		j.Provider = ProviderKindInline
	}
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	return nil
}

// ClaimForExecution attempts to atomically claim this job for execution.
// Returns true if the claim succeeded, false if another poller already
// claimed it. The claimed_at column is written at most once per job.
func (j *GenerationJob) ClaimForExecution(db *gorm.DB) (bool, error) {
	now := time.Now()
	tx := db.Model(&GenerationJob{}).
		Where("id = ? AND claimed_at IS NULL", j.ID).
		Updates(map[string]interface{}{
			"claimed_at": now,
			"updated_at": now,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	if tx.RowsAffected == 0 {
		return false, nil
	}
	j.ClaimedAt = &now
	return true, nil
}

// MarkCompleted transitions the job to completed with its final asset.
// Guarded so a terminal row is never rewritten.
func (j *GenerationJob) MarkCompleted(db *gorm.DB, finalAssetRef string) error {
	now := time.Now()
	tx := db.Model(&GenerationJob{}).
		Where("id = ? AND status IN ?", j.ID, []JobStatus{JobStatusPending, JobStatusGenerating}).
		Updates(map[string]interface{}{
			"status":          JobStatusCompleted,
			"final_asset_ref": finalAssetRef,
			"completed_at":    now,
			"error_message":   "",
			"updated_at":      now,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected > 0 {
		j.Status = JobStatusCompleted
		j.FinalAssetRef = finalAssetRef
		j.CompletedAt = &now
	}
	return nil
}

// MarkFailed transitions the job to failed with the captured message.
// Guarded so a terminal row is never rewritten.
func (j *GenerationJob) MarkFailed(db *gorm.DB, message string) error {
	now := time.Now()
	tx := db.Model(&GenerationJob{}).
		Where("id = ? AND status IN ?", j.ID, []JobStatus{JobStatusPending, JobStatusGenerating}).
		Updates(map[string]interface{}{
			"status":        JobStatusFailed,
			"error_message": message,
			"completed_at":  now,
			"updated_at":    now,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected > 0 {
		j.Status = JobStatusFailed
		j.ErrorMessage = message
		j.CompletedAt = &now
	}
	return nil
}

// MarkGenerating moves a pending job to generating, storing the external
// job id obtained from provisioning.
func (j *GenerationJob) MarkGenerating(db *gorm.DB, externalJobID string) error {
	tx := db.Model(&GenerationJob{}).
		Where("id = ? AND status = ?", j.ID, JobStatusPending).
		Updates(map[string]interface{}{
			"status":          JobStatusGenerating,
			"external_job_id": externalJobID,
			"updated_at":      time.Now(),
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected > 0 {
		j.Status = JobStatusGenerating
		j.ExternalJobID = externalJobID
	}
	return nil
}

// SetPreviewAssetRef records the best-effort preview asset.
func (j *GenerationJob) SetPreviewAssetRef(db *gorm.DB, ref string) error {
	if err := db.Model(&GenerationJob{}).
		Where("id = ?", j.ID).
		UpdateColumn("preview_asset_ref", ref).Error; err != nil {
		return err
	}
	j.PreviewAssetRef = ref
	return nil
}

// FindGenerationJobByID loads a job by its id.
func FindGenerationJobByID(db *gorm.DB, id string) (*GenerationJob, error) {
	var job GenerationJob
	if err := db.Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}
