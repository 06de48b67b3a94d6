package repository

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AgutuSam/houseTreePWA/internal/infrastructure/observability"
	"github.com/AgutuSam/houseTreePWA/internal/models"
	"github.com/AgutuSam/houseTreePWA/internal/query"
	pkgerrors "github.com/AgutuSam/houseTreePWA/pkg/errors"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type MongoPropertyRepository struct {
	coll      *mongo.Collection
	inquiries *mongo.Collection
}

func NewMongoPropertyRepository(db *mongo.Database) *MongoPropertyRepository {
	return &MongoPropertyRepository{
		coll:      db.Collection("properties"),
		inquiries: db.Collection("inquiries"),
	}
}

// Collection exposes the underlying collection for the change-stream
// backend.
func (r *MongoPropertyRepository) Collection() *mongo.Collection {
	return r.coll
}

func (r *MongoPropertyRepository) Create(ctx context.Context, p *models.Property) (string, error) {
	var err error
	tracer := otel.Tracer("property-repository")
	ctx, span := tracer.Start(ctx, "CreateProperty")
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("CreateProperty", status).Inc()
		observability.RepositoryDuration.WithLabelValues("CreateProperty").Observe(time.Since(start).Seconds())
	}()

	if p == nil {
		err = pkgerrors.ErrNilProperty
		slog.Error("failed to create property", "method", "Create", "error", err)
		return "", err
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	// Engagement counters always start at zero at this boundary.
	p.Views, p.Saves, p.Inquiries = 0, 0, 0
	p.ReviewCount = 0
	if p.Currency == "" {
		p.Currency = "KES"
	}

	span.SetAttributes(attribute.String("property_id", p.ID), attribute.String("owner_id", p.OwnerID))

	if _, insertErr := r.coll.InsertOne(ctx, p); insertErr != nil {
		err = fmt.Errorf("failed to insert property: %w", insertErr)
		slog.Error("failed to insert property", "method", "Create", "property_id", p.ID, "error", insertErr)
		return "", err
	}

	slog.Info("property created", "method", "Create", "property_id", p.ID, "owner_id", p.OwnerID)
	return p.ID, nil
}

func (r *MongoPropertyRepository) GetByID(ctx context.Context, id string) (*models.Property, error) {
	var p models.Property
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, pkgerrors.ErrPropertyNotFound
	}
	if err != nil {
		slog.Error("failed to get property", "method", "GetByID", "property_id", id, "error", err)
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return &p, nil
}

func (r *MongoPropertyRepository) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	for k, v := range updates {
		set[k] = v
	}

	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		slog.Error("failed to update property", "method", "Update", "property_id", id, "error", err)
		return fmt.Errorf("failed to update property: %w", err)
	}
	if res.MatchedCount == 0 {
		return pkgerrors.ErrPropertyNotFound
	}

	slog.Info("property updated", "method", "Update", "property_id", id)
	return nil
}

func (r *MongoPropertyRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		slog.Error("failed to delete property", "method", "Delete", "property_id", id, "error", err)
		return fmt.Errorf("failed to delete property: %w", err)
	}
	if res.DeletedCount == 0 {
		return pkgerrors.ErrPropertyNotFound
	}
	slog.Info("property deleted", "method", "Delete", "property_id", id)
	return nil
}

func (r *MongoPropertyRepository) Find(ctx context.Context, q query.Query) ([]models.Property, error) {
	var err error
	tracer := otel.Tracer("property-repository")
	ctx, span := tracer.Start(ctx, "FindProperties")
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("FindProperties", status).Inc()
		observability.RepositoryDuration.WithLabelValues("FindProperties").Observe(time.Since(start).Seconds())
	}()

	filter, opts := query.ToMongo(q)
	props, findErr := r.findAll(ctx, filter, opts)
	if findErr != nil {
		err = findErr
		slog.Error("failed to find properties", "method", "Find", "error", findErr)
		return nil, err
	}
	return props, nil
}

func (r *MongoPropertyRepository) FindByOwner(ctx context.Context, ownerID string) ([]models.Property, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	props, err := r.findAll(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		slog.Error("failed to find owner properties", "method", "FindByOwner", "owner_id", ownerID, "error", err)
		return nil, err
	}
	return props, nil
}

func (r *MongoPropertyRepository) FindFeatured(ctx context.Context, limit int) ([]models.Property, error) {
	filter := bson.M{"isFeatured": true, "isAvailable": true}
	opts := options.Find().
		SetSort(bson.D{{Key: "featuredUntil", Value: -1}}).
		SetLimit(int64(limit))
	props, err := r.findAll(ctx, filter, opts)
	if err != nil {
		slog.Error("failed to find featured properties", "method", "FindFeatured", "error", err)
		return nil, err
	}
	return props, nil
}

// Search runs prefix queries against title and city and merges the results,
// dropping duplicates by id.
func (r *MongoPropertyRepository) Search(ctx context.Context, term string, limit int) ([]models.Property, error) {
	var err error
	tracer := otel.Tracer("property-repository")
	ctx, span := tracer.Start(ctx, "SearchProperties")
	span.SetAttributes(attribute.String("term", term))
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("SearchProperties", status).Inc()
		observability.RepositoryDuration.WithLabelValues("SearchProperties").Observe(time.Since(start).Seconds())
	}()

	filters := []bson.M{
		{"title": bson.M{"$gte": term, "$lte": term + query.PrefixSentinel}},
		{"location.city": bson.M{"$gte": term, "$lte": term + query.PrefixSentinel}},
	}

	seen := make(map[string]bool)
	var merged []models.Property
	for _, f := range filters {
		props, findErr := r.findAll(ctx, f, options.Find().SetLimit(int64(limit)))
		if findErr != nil {
			err = findErr
			slog.Error("search query failed", "method", "Search", "term", term, "error", findErr)
			return nil, err
		}
		for _, p := range props {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			merged = append(merged, p)
		}
	}
	return merged, nil
}

func (r *MongoPropertyRepository) Increment(ctx context.Context, id, field string, delta int64) error {
	switch field {
	case "views", "saves", "inquiries":
	default:
		return fmt.Errorf("%w: counter %q", pkgerrors.ErrInvalidInput, field)
	}

	res, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$inc": bson.M{field: delta},
		"$set": bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		slog.Error("failed to increment counter", "method", "Increment", "property_id", id, "field", field, "error", err)
		return fmt.Errorf("failed to increment %s: %w", field, err)
	}
	if res.MatchedCount == 0 {
		return pkgerrors.ErrPropertyNotFound
	}
	return nil
}

func (r *MongoPropertyRepository) SetFeatured(ctx context.Context, id string, until time.Time) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"isFeatured":    true,
		"featuredUntil": until,
		"updatedAt":     time.Now().UTC(),
	}})
	if err != nil {
		slog.Error("failed to mark property featured", "method", "SetFeatured", "property_id", id, "error", err)
		return fmt.Errorf("failed to mark property featured: %w", err)
	}
	if res.MatchedCount == 0 {
		return pkgerrors.ErrPropertyNotFound
	}
	slog.Info("property featured", "method", "SetFeatured", "property_id", id, "until", until)
	return nil
}

func (r *MongoPropertyRepository) CreateInquiry(ctx context.Context, inq *models.PropertyInquiry) (string, error) {
	if inq.ID == "" {
		inq.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	inq.CreatedAt = now
	inq.UpdatedAt = now
	if inq.Status == "" {
		inq.Status = models.InquiryPending
	}

	if _, err := r.inquiries.InsertOne(ctx, inq); err != nil {
		slog.Error("failed to create inquiry", "method", "CreateInquiry", "property_id", inq.PropertyID, "error", err)
		return "", fmt.Errorf("failed to create inquiry: %w", err)
	}
	slog.Info("inquiry created", "method", "CreateInquiry", "inquiry_id", inq.ID, "property_id", inq.PropertyID)
	return inq.ID, nil
}

func (r *MongoPropertyRepository) ListInquiriesByOwner(ctx context.Context, ownerID string) ([]models.PropertyInquiry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.inquiries.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		slog.Error("failed to list inquiries", "method", "ListInquiriesByOwner", "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("failed to list inquiries: %w", err)
	}
	defer cursor.Close(ctx)

	var inqs []models.PropertyInquiry
	if err := cursor.All(ctx, &inqs); err != nil {
		return nil, fmt.Errorf("cursor decode failed: %w", err)
	}
	return inqs, nil
}

func (r *MongoPropertyRepository) findAll(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Property, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find failed: %w", err)
	}
	defer cursor.Close(ctx)

	var props []models.Property
	if err := cursor.All(ctx, &props); err != nil {
		return nil, fmt.Errorf("cursor decode failed: %w", err)
	}
	return props, nil
}
