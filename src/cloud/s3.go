package cloud

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/huyquang-bka/ptz-chp/src/log"
	"github.com/huyquang-bka/ptz-chp/src/models"
	"github.com/minio/minio-go/v6"
)

// S3Uploader puts snapshots into a bucket of an S3 compatible store.
type S3Uploader struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewS3Uploader(config models.S3Config) (*S3Uploader, error) {
	if config.Bucket == "" {
		return nil, errors.New("cloud.NewS3Uploader(): no bucket configured")
	}
	if config.AccessKey == "" || config.SecretKey == "" {
		return nil, errors.New("cloud.NewS3Uploader(): no credentials found")
	}
	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	}
	secure := config.Secure != "false"
	client, err := minio.NewWithRegion(endpoint, config.AccessKey, config.SecretKey, secure, config.Region)
	if err != nil {
		return nil, errors.New("cloud.NewS3Uploader(): " + err.Error())
	}
	publicURL := strings.TrimSuffix(config.PublicURL, "/")
	return &S3Uploader{client: client, bucket: config.Bucket, publicURL: publicURL}, nil
}

// Upload stores the snapshot under its file name. The reference is the
// public URL of the object when one is configured, otherwise bucket/name.
func (u *S3Uploader) Upload(ctx context.Context, filename string, data []byte) (string, error) {
	n, err := u.client.PutObjectWithContext(ctx, u.bucket, filename, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{
			ContentType: "image/jpeg",
			UserMetadata: map[string]string{
				"uploadtime": "now",
			},
		})
	if err != nil {
		log.Log.Error("cloud.S3Uploader.Upload(): uploading failed, " + err.Error())
		return "", err
	}
	log.Log.Info("cloud.S3Uploader.Upload(): upload finished, " + strconv.FormatInt(n, 10) + " bytes put in " + u.bucket)
	if u.publicURL != "" {
		return u.publicURL + "/" + filename, nil
	}
	return u.bucket + "/" + filename, nil
}
