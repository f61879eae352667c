package counter

import (
	"context"
	"strconv"

	"github.com/portraitforge/portraitforge/internal/pkg/cache"
)

const (
	generationsSubmittedKey = "generation:counters:submitted"
	generationsCompletedKey = "generation:counters:completed"
	generationsFailedKey    = "generation:counters:failed"
	downloadsIssuedKey      = "download:counters:issued"
)

// The counters here are operational hints kept in Redis. They are not part
// of the credit accounting; losing them costs nothing but a dashboard blip.

// AddGenerationSubmitted increments the submitted-jobs counter
func AddGenerationSubmitted() error {
	return cache.Incr(generationsSubmittedKey)
}

// AddGenerationCompleted increments the completed-jobs counter
func AddGenerationCompleted() error {
	return cache.Incr(generationsCompletedKey)
}

// AddGenerationFailed increments the failed-jobs counter
func AddGenerationFailed() error {
	return cache.Incr(generationsFailedKey)
}

// AddDownloadIssued increments the issued-download-tokens counter
func AddDownloadIssued() error {
	return cache.Incr(downloadsIssuedKey)
}

// Totals reads all counters in one pass for the admin surface.
func Totals() (map[string]int64, error) {
	ctx := context.Background()
	keys := map[string]string{
		"generations_submitted": generationsSubmittedKey,
		"generations_completed": generationsCompletedKey,
		"generations_failed":    generationsFailedKey,
		"downloads_issued":      downloadsIssuedKey,
	}

	totals := make(map[string]int64, len(keys))
	for name, key := range keys {
		val, err := cache.GetClient().Get(ctx, key).Result()
		if err != nil {
			totals[name] = 0
			continue
		}
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			n = 0
		}
		totals[name] = n
	}
	return totals, nil
}
