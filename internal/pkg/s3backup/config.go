package s3backup

import (
	"fmt"
	"path"
	"time"

	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
)

// Config is the S3_* environment. EndpointURL is set for S3-compatible providers.
type Config struct {
	Enabled         bool
	Region          string
	BucketName      string
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
}

// LoadConfig reads the S3_* keys. Credentials are only required when enabled.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AccessKeyID:     env.GetEnv("S3_ACCESS_KEY_ID", ""),
		SecretAccessKey: env.GetEnv("S3_SECRET_ACCESS_KEY", ""),
		Region:          env.GetEnv("S3_REGION", "us-east-1"),
		BucketName:      env.GetEnv("S3_BUCKET_NAME", ""),
		EndpointURL:     env.GetEnv("S3_ENDPOINT_URL", ""),
		Enabled:         env.GetEnvBool("S3_BACKUP_ENABLED", false),
	}

	if !cfg.Enabled {
		return cfg, nil
	}
	for _, req := range []struct{ key, val string }{
		{"S3_ACCESS_KEY_ID", cfg.AccessKeyID},
		{"S3_SECRET_ACCESS_KEY", cfg.SecretAccessKey},
		{"S3_BUCKET_NAME", cfg.BucketName},
	} {
		if req.val == "" {
			return nil, fmt.Errorf("%s is required when S3 backup is enabled", req.key)
		}
	}
	return cfg, nil
}

func (c *Config) IsEnabled() bool {
	return c.Enabled
}

// ObjectKey returns the key of a listing photo backup.
// Format: listings/<listing id>/YYYY/MM/<file name>
func (c *Config) ObjectKey(listingID uint, fileName string, uploaded time.Time) string {
	return fmt.Sprintf("listings/%d/%04d/%02d/%s", listingID, uploaded.Year(), int(uploaded.Month()), path.Base(fileName))
}
