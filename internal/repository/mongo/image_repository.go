package repository

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
)

// GridFSImageRepository stores property photos in GridFS under
// properties/{id}/image_{index}_{ts}; the returned name doubles as the
// fetch path served by the images endpoint.
type GridFSImageRepository struct {
	bucket *gridfs.Bucket
}

func NewGridFSImageRepository(db *mongo.Database) (*GridFSImageRepository, error) {
	bucket, err := gridfs.NewBucket(db)
	if err != nil {
		return nil, fmt.Errorf("failed to open gridfs bucket: %w", err)
	}
	return &GridFSImageRepository{bucket: bucket}, nil
}

func (r *GridFSImageRepository) Upload(ctx context.Context, propertyID string, index int, src io.Reader) (string, error) {
	name := fmt.Sprintf("properties/%s/image_%d_%d", propertyID, index, time.Now().UnixMilli())

	stream, err := r.bucket.OpenUploadStream(name)
	if err != nil {
		slog.Error("failed to open upload stream", "method", "Upload", "name", name, "error", err)
		return "", fmt.Errorf("failed to open upload stream: %w", err)
	}
	defer stream.Close()

	if _, err := io.Copy(stream, src); err != nil {
		slog.Error("image upload failed", "method", "Upload", "name", name, "error", err)
		return "", fmt.Errorf("image upload failed: %w", err)
	}

	slog.Info("image uploaded", "method", "Upload", "name", name, "property_id", propertyID)
	return name, nil
}

func (r *GridFSImageRepository) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	stream, err := r.bucket.OpenDownloadStreamByName(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", name, err)
	}
	return stream, nil
}

func (r *GridFSImageRepository) Delete(ctx context.Context, name string) error {
	cursor, err := r.bucket.Find(bson.M{"filename": name})
	if err != nil {
		return fmt.Errorf("failed to find image %s: %w", name, err)
	}
	defer cursor.Close(ctx)

	var file struct {
		ID interface{} `bson:"_id"`
	}
	for cursor.Next(ctx) {
		if err := cursor.Decode(&file); err != nil {
			return fmt.Errorf("failed to decode image record: %w", err)
		}
		if err := r.bucket.Delete(file.ID); err != nil {
			slog.Error("failed to delete image", "method", "Delete", "name", name, "error", err)
			return fmt.Errorf("failed to delete image %s: %w", name, err)
		}
	}

	slog.Info("image deleted", "method", "Delete", "name", name)
	return nil
}
