package cloud

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid"
	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/models"
)

// Uploader stores a snapshot and returns the reference it can be found
// under.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) (string, error)
}

// ImageUploader is the subset of the API client used to post snapshots.
type ImageUploader interface {
	UploadImage(ctx context.Context, filename string, data []byte) (string, error)
}

// ImageName returns a unique snapshot file name: YYYYmmdd_HHMMSS_<8 hex>.jpg.
func ImageName(now time.Time) string {
	id := "00000000"
	if u, err := uuid.NewV4(); err == nil {
		id = u.String()[:8]
	}
	return fmt.Sprintf("%s_%s.jpg", now.Format("20060102_150405"), id)
}

// New returns the uploader selected by storage.cloud: "s3", "local" or,
// by default, "api".
func New(config models.StorageConfig, client ImageUploader) (Uploader, error) {
	switch config.Cloud {
	case "s3":
		return NewS3Uploader(config.S3)
	case "local":
		return NewDiskUploader(config.ImageDirectory), nil
	}
	return NewAPIUploader(client), nil
}

// APIUploader posts snapshots to the backend's upload route.
type APIUploader struct {
	client ImageUploader
}

func NewAPIUploader(client ImageUploader) *APIUploader {
	return &APIUploader{client: client}
}

func (u *APIUploader) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	reference, err := u.client.UploadImage(ctx, filename, data)
	if err != nil {
		return "", err
	}
	log.Log.Debug("cloud.APIUploader.Upload(): " + filename + " stored as " + reference)
	return reference, nil
}

// DiskUploader writes snapshots into a directory and returns their path.
type DiskUploader struct {
	Directory string
}

func NewDiskUploader(directory string) *DiskUploader {
	return &DiskUploader{Directory: directory}
}

func (u *DiskUploader) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(u.Directory, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(u.Directory, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
