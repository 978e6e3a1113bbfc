package media

import (
	"context"
	"fmt"
	"sync"
)

// MemoryUploader keeps payloads in a map and hands out mem:// URLs.
// Dev fallback and test double; FailNext makes the next upload fail once.
type MemoryUploader struct {
	mu       sync.Mutex
	next     int
	objects  map[string][]byte
	failNext bool
}

// NewMemoryUploader constructs an in-memory Uploader implementation.
func NewMemoryUploader() *MemoryUploader {
	return &MemoryUploader{objects: make(map[string][]byte)}
}

// FailNext arms a one-shot failure for the next Upload call.
func (u *MemoryUploader) FailNext() {
	u.mu.Lock()
	u.failNext = true
	u.mu.Unlock()
}

// Len reports the number of stored payloads.
func (u *MemoryUploader) Len() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.objects)
}

// Upload stores the payload and returns a mem:// URL.
func (u *MemoryUploader) Upload(ctx context.Context, img Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(img.Data) == 0 {
		return "", fmt.Errorf("%w: empty payload", ErrUploadFailed)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if u.failNext {
		u.failNext = false
		return "", fmt.Errorf("%w: injected failure", ErrUploadFailed)
	}

	u.next++
	url := fmt.Sprintf("mem://images/%d", u.next)
	u.objects[url] = append([]byte(nil), img.Data...)
	return url, nil
}
