// Package storage persists user avatar images in an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ObjectStorage defines the object operations used for avatars.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Bucket() string
}

var allowedImageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// ErrUnsupportedImageType is returned for content types that are not
// accepted as avatars.
var ErrUnsupportedImageType = errors.New("unsupported image type")

// AvatarStore stores avatar images under per-user keys.
type AvatarStore struct {
	backend ObjectStorage
}

// NewAvatarStore constructs an AvatarStore for the provided backend.
func NewAvatarStore(backend ObjectStorage) *AvatarStore {
	return &AvatarStore{backend: backend}
}

// EnsureBucket ensures the configured bucket exists.
func (s *AvatarStore) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Save uploads the avatar image for the given user and returns its object key.
// The previous avatar, if any, is overwritten by key.
func (s *AvatarStore) Save(ctx context.Context, userID string, r io.Reader, size int64, contentType string) (string, error) {
	ext, ok := allowedImageTypes[contentType]
	if !ok {
		return "", ErrUnsupportedImageType
	}
	key := fmt.Sprintf("avatars/%s%s", userID, ext)
	if err := s.backend.Put(ctx, key, r, size, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// Remove deletes the avatar object at the given key.
func (s *AvatarStore) Remove(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *AvatarStore) Bucket() string {
	return s.backend.Bucket()
}
