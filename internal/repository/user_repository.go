package repository

import (
	"context"

	"github.com/AgutuSam/houseTreePWA/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, u *models.UserProfile) error
	GetByUID(ctx context.Context, uid string) (*models.UserProfile, error)
	GetByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	Update(ctx context.Context, uid string, updates map[string]interface{}) error

	// Saved properties carry set semantics: adding an already-saved id or
	// removing a missing one is a no-op.
	AddSavedProperty(ctx context.Context, uid, propertyID string) error
	RemoveSavedProperty(ctx context.Context, uid, propertyID string) error

	SetSubscription(ctx context.Context, uid string, sub models.SubscriptionInfo) error
}
