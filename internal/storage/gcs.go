package storage

import (
	"context"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
)

// GCSUploader writes objects to one bucket. With Public set, uploaded objects
// get an allUsers reader ACL so the browser can play recordings directly.
type GCSUploader struct {
	client *gcs.Client
	bucket string
	Public bool
}

func NewGCSUploader(ctx context.Context, bucket string, public bool) (*GCSUploader, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs: bucket is required")
	}
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSUploader{client: c, bucket: bucket, Public: public}, nil
}

func (u *GCSUploader) Close() error { return u.client.Close() }

func (u *GCSUploader) URL(objectName string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", u.bucket, objectName)
}

func (u *GCSUploader) Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (string, error) {
	obj := u.client.Bucket(u.bucket).Object(objectName)

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "private, max-age=0"

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs: write %s: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs: finalize %s: %w", objectName, err)
	}

	if u.Public {
		if err := obj.ACL().Set(ctx, gcs.AllUsers, gcs.RoleReader); err != nil {
			return "", fmt.Errorf("gcs: set acl %s: %w", objectName, err)
		}
	}
	return u.URL(objectName), nil
}
