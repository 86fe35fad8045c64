package storage

import (
	"context"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type GCSUploader struct {
	client *gcs.Client
	bucket string
	prefix string
}

// NewGCSUploader writes objects under prefix in bucket, ex: prefix "audio/".
func NewGCSUploader(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*GCSUploader, error) {
	c, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCSUploader{client: c, bucket: bucket, prefix: prefix}, nil
}

func (u *GCSUploader) Close() error { return u.client.Close() }

// Upload returns the gs:// URI of the stored object, the form the Speech API
// accepts as an audio source.
func (u *GCSUploader) Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (string, error) {
	name := u.prefix + objectName
	obj := u.client.Bucket(u.bucket).Object(name)

	w := obj.NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	return GSURI(u.bucket, name), nil
}

func GSURI(bucket, object string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, object)
}
