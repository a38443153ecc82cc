package s3backup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
)

func withEnv(t *testing.T, values map[string]string) {
	t.Helper()
	t.Cleanup(env.Use(values))
}

func TestLoadConfig_Disabled(t *testing.T) {
	withEnv(t, map[string]string{})
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.IsEnabled())
	assert.Equal(t, "us-east-1", cfg.Region)
}

func TestLoadConfig_EnabledRequiresCredentials(t *testing.T) {
	withEnv(t, map[string]string{"S3_BACKUP_ENABLED": "true", "S3_ACCESS_KEY_ID": "key"})
	_, err := LoadConfig()
	assert.EqualError(t, err, "S3_SECRET_ACCESS_KEY is required when S3 backup is enabled")

	withEnv(t, map[string]string{
		"S3_BACKUP_ENABLED":    "true",
		"S3_ACCESS_KEY_ID":     "key",
		"S3_SECRET_ACCESS_KEY": "secret",
		"S3_BUCKET_NAME":       "hangar-photos",
	})
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.IsEnabled())
}

func TestObjectKey(t *testing.T) {
	cfg := &Config{}
	at := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "listings/42/2025/03/20250309_101010_abcd1234_front.jpg",
		cfg.ObjectKey(42, "sub/../20250309_101010_abcd1234_front.jpg", at))
}

func TestGetContentType(t *testing.T) {
	tests := map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".gif":  "image/gif",
		".webp": "image/webp",
		".exe":  "application/octet-stream",
	}
	for ext, want := range tests {
		if got := photoContentType(ext); got != want {
			t.Fatalf("getContentType(%q) = %q, want %q", ext, got, want)
		}
	}
}
