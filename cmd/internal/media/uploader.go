// Package media is the image-upload collaborator for the chat pipeline.
//
// The uploader is an external, possibly-slow, possibly-failing dependency:
// the pipeline awaits every upload of a message before the message is
// persisted or broadcast, and aborts the whole message on any failure.
package media

import (
	"context"
	"errors"
)

// ErrUploadFailed wraps every uploader failure so callers can classify
// without knowing the backing store.
var ErrUploadFailed = errors.New("upload failed")

// Image is a raw inline image payload.
type Image struct {
	Data        []byte
	ContentType string
}

// Uploader accepts a raw image payload and returns a stable content URL.
type Uploader interface {
	Upload(ctx context.Context, img Image) (url string, err error)
}
