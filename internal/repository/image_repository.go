package repository

import (
	"context"
	"io"
)

// ImageRepository is the object-storage boundary for property photos.
// Upload returns a durable fetchable path namespaced by property id and
// image index.
type ImageRepository interface {
	Upload(ctx context.Context, propertyID string, index int, r io.Reader) (string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}
