package generation

import (
	"context"
	"time"

	"github.com/portraitforge/portraitforge/app/models"
)

// InlineProvider executes a generation synchronously. The call is metered
// and non-idempotent, which is why exactly one poller may run it per job --
// enforced by the claim protocol, not by the provider.
type InlineProvider interface {
	Generate(ctx context.Context, job *models.GenerationJob) ([]byte, error)
}

// RemoteState is the provider-side status of a remotely executed job.
type RemoteState string

const (
	RemoteStateRunning   RemoteState = "running"
	RemoteStateCompleted RemoteState = "completed"
	RemoteStateFailed    RemoteState = "failed"
)

// RemoteStatus is what a remote provider reports for a submitted job. Image
// is only set once State is completed.
type RemoteStatus struct {
	State   RemoteState
	Image   []byte
	Message string
}

// RemoteProvider runs generations on its own job system. We provision at
// submit and mirror status on poll; the poll path never mutates remote
// state, which keeps it idempotent.
type RemoteProvider interface {
	Submit(ctx context.Context, job *models.GenerationJob) (string, error)
	Status(ctx context.Context, externalJobID string) (RemoteStatus, error)
}

// ObjectStore persists generated assets. Satisfied by storage.Client.
type ObjectStore interface {
	Put(ctx context.Context, objectKey string, data []byte, contentType string) error
	Get(ctx context.Context, objectKey string) ([]byte, error)
	PresignGet(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
}

// PreviewRenderer derives a watermark-grade preview from a final asset.
// Satisfied by preview.Renderer.
type PreviewRenderer interface {
	Render(ctx context.Context, source []byte) ([]byte, error)
}
