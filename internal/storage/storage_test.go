package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

type memoryBackend struct {
	objects map[string][]byte
	types   map[string]string
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{objects: map[string][]byte{}, types: map[string]string{}}
}

func (b *memoryBackend) EnsureBucket(context.Context) error { return nil }

func (b *memoryBackend) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.objects[key] = data
	b.types[key] = contentType
	return nil
}

func (b *memoryBackend) Delete(_ context.Context, key string) error {
	delete(b.objects, key)
	return nil
}

func (b *memoryBackend) Bucket() string { return "avatars-test" }

func TestAvatarStoreSave(t *testing.T) {
	t.Parallel()

	backend := newMemoryBackend()
	avatars := NewAvatarStore(backend)
	ctx := context.Background()

	payload := []byte{0x89, 'P', 'N', 'G'}
	key, err := avatars.Save(ctx, "user-1", bytes.NewReader(payload), int64(len(payload)), "image/png")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if key != "avatars/user-1.png" {
		t.Fatalf("unexpected key %q", key)
	}
	if !bytes.Equal(backend.objects[key], payload) {
		t.Fatal("stored object does not match the upload")
	}
	if backend.types[key] != "image/png" {
		t.Fatalf("content type %q", backend.types[key])
	}

	// A re-upload with a different type lands on a type-specific key.
	key, err = avatars.Save(ctx, "user-1", strings.NewReader("jpegdata"), 8, "image/jpeg")
	if err != nil {
		t.Fatalf("save jpeg: %v", err)
	}
	if key != "avatars/user-1.jpg" {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestAvatarStoreRejectsUnsupportedType(t *testing.T) {
	t.Parallel()

	avatars := NewAvatarStore(newMemoryBackend())
	_, err := avatars.Save(context.Background(), "user-1", strings.NewReader("GIF89a"), 6, "image/gif")
	if !errors.Is(err, ErrUnsupportedImageType) {
		t.Fatalf("expected ErrUnsupportedImageType, got %v", err)
	}
}

func TestAvatarStoreRemove(t *testing.T) {
	t.Parallel()

	backend := newMemoryBackend()
	avatars := NewAvatarStore(backend)
	ctx := context.Background()

	key, err := avatars.Save(ctx, "user-1", strings.NewReader("webpdata"), 8, "image/webp")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := avatars.Remove(ctx, key); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := backend.objects[key]; ok {
		t.Fatal("object still present after remove")
	}
}
