package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	stderrors "errors"

	"github.com/AgutuSam/houseTreePWA/internal/infrastructure/redis"
	"github.com/AgutuSam/houseTreePWA/internal/models"
	"github.com/AgutuSam/houseTreePWA/internal/query"
	"github.com/AgutuSam/houseTreePWA/internal/repository"
	pkgerrors "github.com/AgutuSam/houseTreePWA/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 100
	propertyCacheTTL  = 5 * time.Minute
	propertyCacheKeyF = "property:%s"
)

// PropertyPage is one page of filter results together with the cursor for
// the next page. NextCursor is nil on the last page.
type PropertyPage struct {
	Properties []models.Property `json:"properties"`
	NextCursor *query.Cursor     `json:"nextCursor,omitempty"`
}

type PropertyService interface {
	Create(ctx context.Context, ownerUID string, property *models.Property) (*models.Property, error)
	Get(ctx context.Context, id string) (*models.Property, error)
	Update(ctx context.Context, uid, id string, updates map[string]interface{}) error
	Delete(ctx context.Context, uid, id string) error
	List(ctx context.Context, filter models.PropertyFilter, limit int, cursor *query.Cursor) (*PropertyPage, error)
	ListByOwner(ctx context.Context, ownerUID string) ([]models.Property, error)
	Search(ctx context.Context, term string, limit int) ([]models.Property, error)
	Featured(ctx context.Context, limit int) ([]models.Property, error)
	RecordView(ctx context.Context, id string) error
	CreateInquiry(ctx context.Context, hunterID, id, message string) (*models.PropertyInquiry, error)
	ListInquiries(ctx context.Context, ownerID string) ([]models.PropertyInquiry, error)
	UploadImage(ctx context.Context, uid, id string, index int, r io.Reader) (string, error)
	OpenImage(ctx context.Context, name string) (io.ReadCloser, error)
	DeleteImage(ctx context.Context, uid, id, name string) error
}

type propertyService struct {
	propertyRepo repository.PropertyRepository
	userRepo     repository.UserRepository
	imageRepo    repository.ImageRepository
	redisClient  redis.RedisClient
}

func NewPropertyService(propertyRepo repository.PropertyRepository, userRepo repository.UserRepository, imageRepo repository.ImageRepository, redisClient redis.RedisClient) *propertyService {
	return &propertyService{
		propertyRepo: propertyRepo,
		userRepo:     userRepo,
		imageRepo:    imageRepo,
		redisClient:  redisClient,
	}
}

func (s *propertyService) Create(ctx context.Context, ownerUID string, property *models.Property) (*models.Property, error) {
	tracer := otel.Tracer("property-service")
	ctx, span := tracer.Start(ctx, "CreateProperty")
	defer span.End()

	if property == nil {
		return nil, pkgerrors.ErrNilProperty
	}
	if property.Title == "" || property.Price <= 0 {
		span.SetStatus(codes.Error, "invalid property payload")
		return nil, pkgerrors.ErrInvalidInput
	}

	owner, err := s.userRepo.GetByUID(ctx, ownerUID)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to load owner", "uid", ownerUID, "error", err)
		return nil, err
	}

	property.OwnerID = owner.UID
	property.OwnerInfo = models.OwnerInfo{
		Name:  owner.DisplayName,
		Phone: owner.PhoneNumber,
		Email: owner.Email,
	}

	id, err := s.propertyRepo.Create(ctx, property)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "property creation failed")
		slog.Error("failed to create property", "owner_uid", ownerUID, "error", err)
		return nil, err
	}
	property.ID = id

	slog.Info("property created", "property_id", id, "owner_uid", ownerUID)
	return property, nil
}

func (s *propertyService) Get(ctx context.Context, id string) (*models.Property, error) {
	cacheKey := fmt.Sprintf(propertyCacheKeyF, id)
	if cached, err := s.redisClient.Get(ctx, cacheKey); err == nil {
		var property models.Property
		if err := json.Unmarshal([]byte(cached), &property); err == nil {
			return &property, nil
		}
	} else if !stderrors.Is(err, redis.ErrKeyNotFound) {
		slog.Error("failed to read property cache", "property_id", id, "error", err)
	}

	property, err := s.propertyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(property); err == nil {
		if err := s.redisClient.Set(ctx, cacheKey, string(data), propertyCacheTTL); err != nil {
			slog.Error("failed to cache property", "property_id", id, "error", err)
		}
	}
	return property, nil
}

func (s *propertyService) Update(ctx context.Context, uid, id string, updates map[string]interface{}) error {
	tracer := otel.Tracer("property-service")
	ctx, span := tracer.Start(ctx, "UpdateProperty")
	defer span.End()

	if err := s.requireOwner(ctx, uid, id); err != nil {
		span.RecordError(err)
		return err
	}

	// Counters and ownership only move through their dedicated paths.
	for _, locked := range []string{"_id", "ownerId", "ownerInfo", "views", "saves", "inquiries", "isFeatured", "featuredUntil", "createdAt"} {
		delete(updates, locked)
	}
	if len(updates) == 0 {
		return pkgerrors.ErrInvalidInput
	}

	if err := s.propertyRepo.Update(ctx, id, updates); err != nil {
		span.RecordError(err)
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *propertyService) Delete(ctx context.Context, uid, id string) error {
	tracer := otel.Tracer("property-service")
	ctx, span := tracer.Start(ctx, "DeleteProperty")
	defer span.End()

	if err := s.requireOwner(ctx, uid, id); err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.propertyRepo.Delete(ctx, id); err != nil {
		span.RecordError(err)
		return err
	}
	s.invalidate(ctx, id)
	slog.Info("property deleted", "property_id", id, "uid", uid)
	return nil
}

func (s *propertyService) List(ctx context.Context, filter models.PropertyFilter, limit int, cursor *query.Cursor) (*PropertyPage, error) {
	tracer := otel.Tracer("property-service")
	ctx, span := tracer.Start(ctx, "ListProperties")
	defer span.End()

	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	q := query.Build(filter, limit, cursor)
	properties, err := s.propertyRepo.Find(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "property query failed")
		slog.Error("failed to list properties", "error", err)
		return nil, err
	}

	page := &PropertyPage{Properties: properties}
	if len(properties) == limit {
		page.NextCursor = cursorAfter(properties[len(properties)-1], q.Orders)
	}
	return page, nil
}

func (s *propertyService) ListByOwner(ctx context.Context, ownerUID string) ([]models.Property, error) {
	return s.propertyRepo.FindByOwner(ctx, ownerUID)
}

func (s *propertyService) Search(ctx context.Context, term string, limit int) ([]models.Property, error) {
	if term == "" {
		return nil, pkgerrors.ErrInvalidInput
	}
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return s.propertyRepo.Search(ctx, term, limit)
}

func (s *propertyService) Featured(ctx context.Context, limit int) ([]models.Property, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return s.propertyRepo.FindFeatured(ctx, limit)
}

func (s *propertyService) RecordView(ctx context.Context, id string) error {
	return s.propertyRepo.Increment(ctx, id, "views", 1)
}

// CreateInquiry records a hunter's message to the owner and bumps the
// property's inquiry counter.
func (s *propertyService) CreateInquiry(ctx context.Context, hunterID, id, message string) (*models.PropertyInquiry, error) {
	tracer := otel.Tracer("property-service")
	ctx, span := tracer.Start(ctx, "CreateInquiry")
	defer span.End()

	if message == "" {
		return nil, pkgerrors.ErrInvalidInput
	}

	property, err := s.propertyRepo.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	inq := &models.PropertyInquiry{
		PropertyID: id,
		HunterID:   hunterID,
		OwnerID:    property.OwnerID,
		Message:    message,
		Status:     models.InquiryPending,
	}
	if _, err := s.propertyRepo.CreateInquiry(ctx, inq); err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := s.propertyRepo.Increment(ctx, id, "inquiries", 1); err != nil {
		slog.Error("failed to increment inquiry counter", "property_id", id, "error", err)
	}
	return inq, nil
}

func (s *propertyService) ListInquiries(ctx context.Context, ownerID string) ([]models.PropertyInquiry, error) {
	return s.propertyRepo.ListInquiriesByOwner(ctx, ownerID)
}

func (s *propertyService) UploadImage(ctx context.Context, uid, id string, index int, r io.Reader) (string, error) {
	tracer := otel.Tracer("property-service")
	ctx, span := tracer.Start(ctx, "UploadImage")
	defer span.End()

	if err := s.requireOwner(ctx, uid, id); err != nil {
		span.RecordError(err)
		return "", err
	}

	name, err := s.imageRepo.Upload(ctx, id, index, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "image upload failed")
		slog.Error("failed to upload image", "property_id", id, "error", err)
		return "", err
	}

	property, err := s.propertyRepo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	images := append(property.Images, name)
	if err := s.propertyRepo.Update(ctx, id, map[string]interface{}{"images": images}); err != nil {
		return "", err
	}
	s.invalidate(ctx, id)
	return name, nil
}

func (s *propertyService) OpenImage(ctx context.Context, name string) (io.ReadCloser, error) {
	return s.imageRepo.Open(ctx, name)
}

func (s *propertyService) DeleteImage(ctx context.Context, uid, id, name string) error {
	if err := s.requireOwner(ctx, uid, id); err != nil {
		return err
	}
	if err := s.imageRepo.Delete(ctx, name); err != nil {
		slog.Error("failed to delete image", "property_id", id, "name", name, "error", err)
		return err
	}

	property, err := s.propertyRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	images := property.Images[:0:0]
	for _, img := range property.Images {
		if img != name {
			images = append(images, img)
		}
	}
	if err := s.propertyRepo.Update(ctx, id, map[string]interface{}{"images": images}); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *propertyService) requireOwner(ctx context.Context, uid, id string) error {
	property, err := s.propertyRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if property.OwnerID != uid {
		slog.Warn("ownership check failed", "property_id", id, "uid", uid, "owner_id", property.OwnerID)
		return pkgerrors.ErrNotOwner
	}
	return nil
}

func (s *propertyService) invalidate(ctx context.Context, id string) {
	if err := s.redisClient.Del(ctx, fmt.Sprintf(propertyCacheKeyF, id)); err != nil {
		slog.Error("failed to invalidate property cache", "property_id", id, "error", err)
	}
}

// cursorAfter derives the resume point for the page after the given
// property, keyed by the primary ordering field.
func cursorAfter(p models.Property, orders []query.Order) *query.Cursor {
	if len(orders) == 0 {
		return nil
	}
	c := &query.Cursor{ID: p.ID}
	switch orders[0].Field {
	case "price":
		c.SortValue = p.Price
	case "averageRating":
		c.SortValue = p.AverageRating
	case "isFeatured":
		c.SortValue = p.IsFeatured
	default:
		c.SortValue = p.CreatedAt
	}
	return c
}
