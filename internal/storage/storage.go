package storage

import (
	"context"
	"io"
)

// Uploader stores audio so that it can be referenced by a recognition
// request instead of being sent inline.
type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (sourceURI string, err error)
}
