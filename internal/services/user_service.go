package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	stderrors "errors"

	"github.com/AgutuSam/houseTreePWA/internal/infrastructure/redis"
	"github.com/AgutuSam/houseTreePWA/internal/models"
	"github.com/AgutuSam/houseTreePWA/internal/repository"
	pkgerrors "github.com/AgutuSam/houseTreePWA/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

type UserService interface {
	Register(ctx context.Context, email, password, displayName string, asManager bool) (*models.UserProfile, error)
	Login(ctx context.Context, email, password string) (string, *models.UserProfile, error)
	GetProfile(ctx context.Context, uid string) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, uid string, updates map[string]interface{}) error
	SaveProperty(ctx context.Context, uid, propertyID string) error
	UnsaveProperty(ctx context.Context, uid, propertyID string) error
	SavedPropertyIDs(ctx context.Context, uid string) ([]string, error)
}

type userService struct {
	userRepo     repository.UserRepository
	propertyRepo repository.PropertyRepository
	redisClient  redis.RedisClient
	jwtSecret    string
}

func NewUserService(userRepo repository.UserRepository, propertyRepo repository.PropertyRepository, redisClient redis.RedisClient, jwtSecret string) *userService {
	return &userService{
		userRepo:     userRepo,
		propertyRepo: propertyRepo,
		redisClient:  redisClient,
		jwtSecret:    jwtSecret,
	}
}

func (s *userService) Register(ctx context.Context, email, password, displayName string, asManager bool) (*models.UserProfile, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	if email == "" || password == "" {
		span.SetStatus(codes.Error, "empty email or password")
		return nil, pkgerrors.ErrInvalidInput
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if existing != nil {
		span.SetStatus(codes.Error, "email already registered")
		slog.Warn("email already registered", "existing_uid", existing.UID)
		return nil, pkgerrors.ErrEmailExists
	}
	if err != nil && !stderrors.Is(err, pkgerrors.ErrUserNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user check failed")
		slog.Error("failed to check user existence", "error", err)
		return nil, fmt.Errorf("%w: failed to check user existence", pkgerrors.ErrInternal)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "password hashing failed")
		slog.Error("failed to hash password", "error", err)
		return nil, fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
	}

	// Everyone starts as a hunter unless explicitly registering as a
	// manager.
	role := models.RoleHunter
	if asManager {
		role = models.RoleManager
	}

	user := &models.UserProfile{
		UID:          uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		Role:         role,
		PasswordHash: string(hash),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "user creation failed")
		slog.Error("failed to create user", "error", err)
		return nil, err
	}

	slog.Info("user registered", "uid", user.UID, "role", user.Role)
	return user, nil
}

func (s *userService) Login(ctx context.Context, email, password string) (string, *models.UserProfile, error) {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		slog.Error("failed to login", "error", err)
		return "", nil, pkgerrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Error("invalid password", "uid", user.UID)
		return "", nil, pkgerrors.ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uid":  user.UID,
		"role": string(user.Role),
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	tokenString, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		slog.Error("failed to generate JWT", "error", err)
		return "", nil, fmt.Errorf("failed to generate token: %w", err)
	}

	if err := s.redisClient.Set(ctx, fmt.Sprintf("user:%s:token", user.UID), tokenString, time.Hour); err != nil {
		slog.Error("failed to cache JWT", "uid", user.UID, "error", err)
	}

	slog.Info("user logged in", "uid", user.UID)
	return tokenString, user, nil
}

func (s *userService) GetProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	return s.userRepo.GetByUID(ctx, uid)
}

func (s *userService) UpdateProfile(ctx context.Context, uid string, updates map[string]interface{}) error {
	// Identity and capability fields never change through a profile edit.
	for _, locked := range []string{"_id", "email", "role", "passwordHash", "subscription", "savedProperties"} {
		delete(updates, locked)
	}
	if len(updates) == 0 {
		return pkgerrors.ErrInvalidInput
	}
	return s.userRepo.Update(ctx, uid, updates)
}

// SaveProperty adds the id to the user's saved set and bumps the property's
// save counter. The set itself is idempotent; the counter is guarded by a
// per-session request key so a duplicate save never double-fires it.
func (s *userService) SaveProperty(ctx context.Context, uid, propertyID string) error {
	tracer := otel.Tracer("user-service")
	ctx, span := tracer.Start(ctx, "SaveProperty")
	defer span.End()

	if err := s.userRepo.AddSavedProperty(ctx, uid, propertyID); err != nil {
		span.RecordError(err)
		return err
	}

	counterKey := fmt.Sprintf("save:%s:%s", uid, propertyID)
	fresh, err := s.redisClient.SetNX(ctx, counterKey, "counted", 24*time.Hour)
	if err != nil {
		slog.Error("failed to set save counter key", "uid", uid, "property_id", propertyID, "error", err)
		return nil
	}
	if !fresh {
		slog.Info("duplicate save, counter not incremented", "uid", uid, "property_id", propertyID)
		return nil
	}

	if err := s.propertyRepo.Increment(ctx, propertyID, "saves", 1); err != nil {
		slog.Error("failed to increment save counter", "property_id", propertyID, "error", err)
	}
	return nil
}

func (s *userService) UnsaveProperty(ctx context.Context, uid, propertyID string) error {
	if err := s.userRepo.RemoveSavedProperty(ctx, uid, propertyID); err != nil {
		return err
	}
	// Free the counter guard so a future save counts again.
	if err := s.redisClient.Del(ctx, fmt.Sprintf("save:%s:%s", uid, propertyID)); err != nil {
		slog.Error("failed to clear save counter key", "uid", uid, "property_id", propertyID, "error", err)
	}
	return nil
}

func (s *userService) SavedPropertyIDs(ctx context.Context, uid string) ([]string, error) {
	user, err := s.userRepo.GetByUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	return user.SavedProperties, nil
}
