package repository

import (
	"context"
	"time"

	"github.com/AgutuSam/houseTreePWA/internal/models"
	"github.com/AgutuSam/houseTreePWA/internal/query"
)

type PropertyRepository interface {
	Create(ctx context.Context, p *models.Property) (string, error)
	GetByID(ctx context.Context, id string) (*models.Property, error)
	// Update applies a partial document update; defaulting happens at this
	// boundary, not in consumers.
	Update(ctx context.Context, id string, updates map[string]interface{}) error
	Delete(ctx context.Context, id string) error

	Find(ctx context.Context, q query.Query) ([]models.Property, error)
	FindByOwner(ctx context.Context, ownerID string) ([]models.Property, error)
	FindFeatured(ctx context.Context, limit int) ([]models.Property, error)
	// Search runs title and city prefix queries and de-duplicates across them.
	Search(ctx context.Context, term string, limit int) ([]models.Property, error)

	// Increment mutates an engagement counter (views, saves, inquiries).
	Increment(ctx context.Context, id, field string, delta int64) error
	SetFeatured(ctx context.Context, id string, until time.Time) error

	CreateInquiry(ctx context.Context, inq *models.PropertyInquiry) (string, error)
	ListInquiriesByOwner(ctx context.Context, ownerID string) ([]models.PropertyInquiry, error)
}
