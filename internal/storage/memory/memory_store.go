// Package memory is an in-process ObjectStorage for previews when no object store is configured.
package memory

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"sync"
	"time"

	"permitflow/internal/port"
)

// Object is a stored preview.
type Object struct {
	Data        []byte
	ContentType string
	ExpiresAt   time.Time
}

// Store keeps objects in memory. URLs it hands out point at baseURL, where a handler serves Get.
type Store struct {
	mu      sync.RWMutex
	objects map[string]*Object
	baseURL string
	now     func() time.Time
}

var _ port.ObjectStorage = (*Store)(nil)

// NewStore creates an empty Store whose preview URLs are rooted at baseURL.
func NewStore(baseURL string) *Store {
	return &Store{objects: make(map[string]*Object), baseURL: baseURL, now: time.Now}
}

func objectKey(bucket, key string) string { return bucket + "/" + key }

func (s *Store) Upload(_ context.Context, input port.UploadInput) (*port.UploadOutput, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, fmt.Errorf("memory upload: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectKey(input.Bucket, input.Key)] = &Object{Data: data, ContentType: input.ContentType}
	return &port.UploadOutput{Location: objectKey(input.Bucket, input.Key)}, nil
}

func (s *Store) Delete(_ context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectKey(bucket, key))
	return nil
}

// GetPresignedURL returns baseURL/bucket/key with an expiry stamp; Get enforces the expiry.
func (s *Store) GetPresignedURL(_ context.Context, bucket, key string, expirySeconds int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return "", fmt.Errorf("memory presign: object %s/%s not found", bucket, key)
	}
	obj.ExpiresAt = s.now().Add(time.Duration(expirySeconds) * time.Second)
	return fmt.Sprintf("%s/%s/%s?expires=%s", s.baseURL, url.PathEscape(bucket), url.PathEscape(key),
		strconv.FormatInt(obj.ExpiresAt.Unix(), 10)), nil
}

// Get returns an object that exists and has not expired.
func (s *Store) Get(bucket, key string) (*Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[objectKey(bucket, key)]
	if !ok || (!obj.ExpiresAt.IsZero() && s.now().After(obj.ExpiresAt)) {
		return nil, false
	}
	return obj, true
}

// Len returns the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
