package repository

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AgutuSam/houseTreePWA/internal/models"
	pkgerrors "github.com/AgutuSam/houseTreePWA/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type MongoUserRepository struct {
	coll *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{coll: db.Collection("users")}
}

func (r *MongoUserRepository) Create(ctx context.Context, u *models.UserProfile) error {
	if u == nil {
		return pkgerrors.ErrNilUser
	}
	if u.UID == "" || u.Email == "" {
		return fmt.Errorf("%w: uid and email are required", pkgerrors.ErrInvalidInput)
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = models.RoleHunter
	}

	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return pkgerrors.ErrEmailExists
		}
		slog.Error("failed to create user", "method", "Create", "uid", u.UID, "error", err)
		return fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created", "method", "Create", "uid", u.UID, "role", u.Role)
	return nil
}

func (r *MongoUserRepository) GetByUID(ctx context.Context, uid string) (*models.UserProfile, error) {
	var u models.UserProfile
	err := r.coll.FindOne(ctx, bson.M{"_id": uid}).Decode(&u)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, pkgerrors.ErrUserNotFound
	}
	if err != nil {
		slog.Error("failed to get user", "method", "GetByUID", "uid", uid, "error", err)
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	var u models.UserProfile
	err := r.coll.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, pkgerrors.ErrUserNotFound
	}
	if err != nil {
		slog.Error("failed to get user by email", "method", "GetByEmail", "error", err)
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

func (r *MongoUserRepository) Update(ctx context.Context, uid string, updates map[string]interface{}) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	for k, v := range updates {
		set[k] = v
	}

	res, err := r.coll.UpdateByID(ctx, uid, bson.M{"$set": set})
	if err != nil {
		slog.Error("failed to update user", "method", "Update", "uid", uid, "error", err)
		return fmt.Errorf("failed to update user: %w", err)
	}
	if res.MatchedCount == 0 {
		return pkgerrors.ErrUserNotFound
	}
	return nil
}

// AddSavedProperty uses $addToSet, so a duplicate save leaves the set
// unchanged.
func (r *MongoUserRepository) AddSavedProperty(ctx context.Context, uid, propertyID string) error {
	res, err := r.coll.UpdateByID(ctx, uid, bson.M{
		"$addToSet": bson.M{"savedProperties": propertyID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		slog.Error("failed to save property", "method", "AddSavedProperty", "uid", uid, "property_id", propertyID, "error", err)
		return fmt.Errorf("failed to save property: %w", err)
	}
	if res.MatchedCount == 0 {
		return pkgerrors.ErrUserNotFound
	}
	return nil
}

func (r *MongoUserRepository) RemoveSavedProperty(ctx context.Context, uid, propertyID string) error {
	res, err := r.coll.UpdateByID(ctx, uid, bson.M{
		"$pull": bson.M{"savedProperties": propertyID},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		slog.Error("failed to unsave property", "method", "RemoveSavedProperty", "uid", uid, "property_id", propertyID, "error", err)
		return fmt.Errorf("failed to unsave property: %w", err)
	}
	if res.MatchedCount == 0 {
		return pkgerrors.ErrUserNotFound
	}
	return nil
}

func (r *MongoUserRepository) SetSubscription(ctx context.Context, uid string, sub models.SubscriptionInfo) error {
	res, err := r.coll.UpdateByID(ctx, uid, bson.M{"$set": bson.M{
		"subscription": sub,
		"updatedAt":    time.Now().UTC(),
	}})
	if err != nil {
		slog.Error("failed to set subscription", "method", "SetSubscription", "uid", uid, "error", err)
		return fmt.Errorf("failed to set subscription: %w", err)
	}
	if res.MatchedCount == 0 {
		return pkgerrors.ErrUserNotFound
	}
	slog.Info("subscription updated", "method", "SetSubscription", "uid", uid, "plan", sub.Plan, "active", sub.IsActive)
	return nil
}
