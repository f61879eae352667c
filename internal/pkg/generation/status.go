package generation

import (
	"fmt"
	"time"

	"github.com/portraitforge/portraitforge/app/models"
	"github.com/portraitforge/portraitforge/internal/pkg/cache"
)

// Cache key format for generation status hints
const (
	jobStatusKeyFormat = "generation:status:%s" // generation:status:<job id>
	jobStatusTTL       = 24 * time.Hour
)

// SetJobStatusHint mirrors a job status into the cache. The hint is a read
// optimization for busy poll endpoints; the database row stays authoritative
// and callers must tolerate the hint being stale or missing.
func SetJobStatusHint(jobID string, status models.JobStatus) error {
	key := fmt.Sprintf(jobStatusKeyFormat, jobID)
	return cache.Set(key, string(status), jobStatusTTL)
}

// GetJobStatusHint retrieves the cached status hint for a job.
func GetJobStatusHint(jobID string) (models.JobStatus, error) {
	key := fmt.Sprintf(jobStatusKeyFormat, jobID)
	val, err := cache.Get(key)
	if err != nil {
		return "", err
	}
	return models.JobStatus(val), nil
}
