package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/portraitforge/portraitforge/app/models"
)

// httpProvider talks to the image-generation service over its HTTP API. The
// same backend serves both execution styles: a blocking /generate call for
// inline jobs and /jobs provisioning plus status reads for remote jobs.
type httpProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProviders builds the inline and remote provider adapters for the
// configured generation backend.
func NewHTTPProviders(baseURL, apiKey string) (InlineProvider, RemoteProvider) {
	p := &httpProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			// Inline generations block for the full render; keep this above
			// the worst-case provider latency but below the job deadline.
			Timeout: 5 * time.Minute,
		},
	}
	return p, p
}

type generateParams struct {
	Style          string `json:"style"`
	Subject        string `json:"subject"`
	SourceAssetRef string `json:"source_asset_ref"`
}

// Generate performs the blocking, metered render call for inline jobs.
func (p *httpProvider) Generate(ctx context.Context, job *models.GenerationJob) ([]byte, error) {
	body, err := json.Marshal(generateParams{
		Style:          job.Style,
		Subject:        job.Subject,
		SourceAssetRef: job.SourceAssetRef,
	})
	if err != nil {
		return nil, err
	}

	resp, err := p.do(ctx, http.MethodPost, "/v1/generate", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generation backend returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Submit provisions a job on the backend's own queue.
func (p *httpProvider) Submit(ctx context.Context, job *models.GenerationJob) (string, error) {
	body, err := json.Marshal(generateParams{
		Style:          job.Style,
		Subject:        job.Subject,
		SourceAssetRef: job.SourceAssetRef,
	})
	if err != nil {
		return "", err
	}

	resp, err := p.do(ctx, http.MethodPost, "/v1/jobs", body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("generation backend returned status %d", resp.StatusCode)
	}

	var out struct {
		JobID string `json:"job_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode provisioning response: %w", err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("generation backend returned no job id")
	}
	return out.JobID, nil
}

// Status reads remote job state. When the backend reports done it returns
// the rendered image inline so the caller can persist it.
func (p *httpProvider) Status(ctx context.Context, externalJobID string) (RemoteStatus, error) {
	resp, err := p.do(ctx, http.MethodGet, "/v1/jobs/"+externalJobID, nil)
	if err != nil {
		return RemoteStatus{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return RemoteStatus{}, fmt.Errorf("generation backend returned status %d", resp.StatusCode)
	}

	var out struct {
		Status string `json:"status"`
		Image  []byte `json:"image,omitempty"`
		Error  string `json:"error,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return RemoteStatus{}, fmt.Errorf("failed to decode status response: %w", err)
	}

	switch out.Status {
	case "done":
		return RemoteStatus{State: RemoteStateCompleted, Image: out.Image}, nil
	case "error":
		return RemoteStatus{State: RemoteStateFailed, Message: out.Error}, nil
	default:
		return RemoteStatus{State: RemoteStateRunning}, nil
	}
}

func (p *httpProvider) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	return p.client.Do(req)
}
