package app

import (
	"fmt"
	"os"
	"time"

	"github.com/mx-space/forms/internal/config"
	"github.com/mx-space/forms/internal/modules/submission"
	"github.com/mx-space/forms/internal/pkg/nativelog"
)

func applyRuntimeSettings(cfg *config.AppConfig) error {
	_ = os.Setenv(nativelog.EnvLogDir, cfg.LogDir())
	if _, err := config.EnsureDir(cfg.LogDir()); err != nil {
		return fmt.Errorf("log dir: %w", err)
	}
	return nil
}

// exportUploader prefers the S3 bucket and falls back to the local exports
// directory.
func exportUploader(cfg *config.AppConfig) submission.Uploader {
	s3 := cfg.Exports.S3
	if s3.Enabled() {
		return submission.NewS3Uploader(submission.S3Config{
			Bucket:          s3.Bucket,
			Region:          s3.Region,
			Endpoint:        s3.Endpoint,
			AccessKeyID:     s3.AccessKeyID,
			SecretAccessKey: s3.SecretAccessKey,
			PathStyle:       s3.PathStyle,
			Prefix:          s3.Prefix,
		})
	}
	if dir := cfg.ExportDir(); dir != "" {
		return submission.NewDirUploader(dir)
	}
	return nil
}

func humanizeDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Truncate(time.Second).String()
	}
	if d < time.Hour {
		return d.Truncate(time.Minute).String()
	}
	if d < 24*time.Hour {
		return d.Truncate(time.Hour).String()
	}
	return d.Truncate(24 * time.Hour).String()
}
