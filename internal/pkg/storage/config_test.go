package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setStorageEnv(t *testing.T) {
	t.Helper()
	t.Setenv("S3_ACCESS_KEY_ID", "test-key")
	t.Setenv("S3_SECRET_ACCESS_KEY", "test-secret")
	t.Setenv("S3_BUCKET_NAME", "portraitforge-assets")
}

func TestLoadConfig(t *testing.T) {
	setStorageEnv(t)
	t.Setenv("S3_REGION", "eu-central-1")
	t.Setenv("S3_ENDPOINT_URL", "https://minio.local:9000")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "test-key", cfg.AccessKeyID)
	assert.Equal(t, "test-secret", cfg.SecretAccessKey)
	assert.Equal(t, "portraitforge-assets", cfg.BucketName)
	assert.Equal(t, "eu-central-1", cfg.Region)
	assert.Equal(t, "https://minio.local:9000", cfg.EndpointURL)
}

func TestLoadConfigDefaults(t *testing.T) {
	setStorageEnv(t)
	t.Setenv("S3_REGION", "")
	t.Setenv("S3_ENDPOINT_URL", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Empty(t, cfg.EndpointURL)
}

func TestLoadConfigMissingRequired(t *testing.T) {
	tests := []string{"S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "S3_BUCKET_NAME"}
	for _, missing := range tests {
		t.Run(missing, func(t *testing.T) {
			setStorageEnv(t)
			t.Setenv(missing, "")

			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}
