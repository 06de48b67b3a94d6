package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/AgutuSam/houseTreePWA/internal/infrastructure/kafka"
	"github.com/AgutuSam/houseTreePWA/internal/models"
	"github.com/AgutuSam/houseTreePWA/internal/mpesa"
	"github.com/AgutuSam/houseTreePWA/internal/repository"
	pkgerrors "github.com/AgutuSam/houseTreePWA/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// Featuring a listing costs a flat daily rate.
	featuredDailyRate int64 = 50

	paymentsTopic = "payments"
)

type PaymentService interface {
	Plans(ctx context.Context) []models.SubscriptionPlan
	PurchaseSubscription(ctx context.Context, userID, planID, phoneNumber string) (*models.Transaction, *models.STKPushResponse, error)
	PurchaseFeaturedListing(ctx context.Context, userID, propertyID, phoneNumber string, days int) (*models.Transaction, *models.STKPushResponse, error)
	HandleCallback(ctx context.Context, callback models.STKCallback) error
	QueryStatus(ctx context.Context, checkoutRequestID string) (*models.STKQueryResponse, error)
	GetTransaction(ctx context.Context, userID, id string) (*models.Transaction, error)
	History(ctx context.Context, userID string) ([]models.Transaction, error)
}

type paymentService struct {
	transactionRepo repository.TransactionRepository
	propertyRepo    repository.PropertyRepository
	gateway         mpesa.Gateway
	producer        kafka.KafkaProducer
}

func NewPaymentService(transactionRepo repository.TransactionRepository, propertyRepo repository.PropertyRepository, gateway mpesa.Gateway, producer kafka.KafkaProducer) *paymentService {
	return &paymentService{
		transactionRepo: transactionRepo,
		propertyRepo:    propertyRepo,
		gateway:         gateway,
		producer:        producer,
	}
}

func (s *paymentService) Plans(ctx context.Context) []models.SubscriptionPlan {
	return models.SubscriptionPlans
}

// PurchaseSubscription opens a ledger entry for the plan and, for paid
// plans, pushes an STK prompt to the buyer's phone. Free plans complete
// immediately without touching the gateway.
func (s *paymentService) PurchaseSubscription(ctx context.Context, userID, planID, phoneNumber string) (*models.Transaction, *models.STKPushResponse, error) {
	tracer := otel.Tracer("payment-service")
	ctx, span := tracer.Start(ctx, "PurchaseSubscription")
	defer span.End()
	span.SetAttributes(attribute.String("plan.id", planID))

	plan := models.PlanByID(planID)
	if plan == nil {
		span.SetStatus(codes.Error, "unknown plan")
		slog.Error("unknown subscription plan", "plan_id", planID, "user_id", userID)
		return nil, nil, pkgerrors.ErrPlanNotFound
	}

	tx := &models.Transaction{
		UserID:      userID,
		Amount:      plan.Price,
		Currency:    plan.Currency,
		Status:      models.StatusPending,
		Type:        models.TypeSubscription,
		Description: fmt.Sprintf("%s subscription plan", plan.Name),
		PhoneNumber: mpesa.NormalizePhone(phoneNumber),
		Metadata:    map[string]string{"plan_id": plan.ID},
	}

	if plan.Price == 0 {
		tx.Status = models.StatusCompleted
		id, err := s.transactionRepo.Create(ctx, tx)
		if err != nil {
			span.RecordError(err)
			slog.Error("failed to record free plan transaction", "user_id", userID, "error", err)
			return nil, nil, err
		}
		tx.ID = id
		s.publish(ctx, eventFor(tx, "payment_completed"))
		slog.Info("free plan activated", "user_id", userID, "plan_id", plan.ID, "transaction_id", id)
		return tx, &models.STKPushResponse{
			ResponseCode:    "0",
			CustomerMessage: "Free plan activated successfully",
		}, nil
	}

	push, err := s.initiate(ctx, tx)
	if err != nil {
		return tx, nil, err
	}
	slog.Info("subscription purchase initiated", "user_id", userID, "plan_id", plan.ID, "transaction_id", tx.ID, "amount", tx.Amount)
	return tx, push, nil
}

// PurchaseFeaturedListing charges days at the daily featuring rate for one
// of the user's properties.
func (s *paymentService) PurchaseFeaturedListing(ctx context.Context, userID, propertyID, phoneNumber string, days int) (*models.Transaction, *models.STKPushResponse, error) {
	tracer := otel.Tracer("payment-service")
	ctx, span := tracer.Start(ctx, "PurchaseFeaturedListing")
	defer span.End()
	span.SetAttributes(attribute.String("property.id", propertyID))

	if days <= 0 {
		span.SetStatus(codes.Error, "invalid duration")
		return nil, nil, pkgerrors.ErrInvalidInput
	}

	property, err := s.propertyRepo.GetByID(ctx, propertyID)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	if property.OwnerID != userID {
		span.SetStatus(codes.Error, "not the owner")
		slog.Warn("featured listing purchase for someone else's property", "property_id", propertyID, "user_id", userID)
		return nil, nil, pkgerrors.ErrNotOwner
	}

	tx := &models.Transaction{
		UserID:      userID,
		Amount:      int64(days) * featuredDailyRate,
		Currency:    "KES",
		Status:      models.StatusPending,
		Type:        models.TypeFeaturedListing,
		Description: fmt.Sprintf("Featured listing for %d days", days),
		PhoneNumber: mpesa.NormalizePhone(phoneNumber),
		Metadata: map[string]string{
			"property_id":   propertyID,
			"featured_days": strconv.Itoa(days),
		},
	}

	push, err := s.initiate(ctx, tx)
	if err != nil {
		return tx, nil, err
	}
	slog.Info("featured listing purchase initiated", "user_id", userID, "property_id", propertyID, "transaction_id", tx.ID, "amount", tx.Amount)
	return tx, push, nil
}

// initiate records the pending transaction, fires the STK push and stores
// the gateway's correlation ids. On gateway failure the transaction is
// left pending for reconciliation.
func (s *paymentService) initiate(ctx context.Context, tx *models.Transaction) (*models.STKPushResponse, error) {
	id, err := s.transactionRepo.Create(ctx, tx)
	if err != nil {
		slog.Error("failed to record transaction", "user_id", tx.UserID, "type", tx.Type, "error", err)
		return nil, err
	}
	tx.ID = id

	push, err := s.gateway.InitiateSTKPush(ctx, tx.Amount, tx.PhoneNumber, id, tx.Description)
	if err != nil {
		slog.Error("STK push failed, transaction left pending", "transaction_id", id, "error", err)
		return nil, err
	}

	if err := s.transactionRepo.SetGatewayRefs(ctx, id, push.MerchantRequestID, push.CheckoutRequestID); err != nil {
		slog.Error("failed to store gateway refs", "transaction_id", id, "error", err)
		return nil, err
	}
	tx.MerchantRequestID = push.MerchantRequestID
	tx.CheckoutRequestID = push.CheckoutRequestID
	return push, nil
}

// HandleCallback settles the transaction the gateway result refers to and
// publishes the outcome for side-effect consumers.
func (s *paymentService) HandleCallback(ctx context.Context, callback models.STKCallback) error {
	tracer := otel.Tracer("payment-service")
	ctx, span := tracer.Start(ctx, "HandleCallback")
	defer span.End()

	tx, err := s.transactionRepo.GetByCheckoutRequestID(ctx, callback.CheckoutRequestID)
	if err != nil {
		span.RecordError(err)
		slog.Error("callback for unknown checkout request", "checkout_request_id", callback.CheckoutRequestID, "error", err)
		return err
	}

	status := models.StatusFailed
	eventType := "payment_failed"
	receipt := ""
	if callback.ResultCode == 0 {
		status = models.StatusCompleted
		eventType = "payment_completed"
		receipt = callback.ReceiptNumber()
	}

	if err := s.transactionRepo.Finalize(ctx, tx.ID, status, receipt); err != nil {
		span.RecordError(err)
		slog.Error("failed to finalize transaction", "transaction_id", tx.ID, "status", status, "error", err)
		return err
	}
	tx.Status = status
	tx.ReceiptNumber = receipt

	s.publish(ctx, eventFor(tx, eventType))
	slog.Info("transaction settled", "transaction_id", tx.ID, "status", status, "result_code", callback.ResultCode, "receipt", receipt)
	return nil
}

func (s *paymentService) QueryStatus(ctx context.Context, checkoutRequestID string) (*models.STKQueryResponse, error) {
	if checkoutRequestID == "" {
		return nil, pkgerrors.ErrInvalidInput
	}
	return s.gateway.QueryStatus(ctx, checkoutRequestID)
}

func (s *paymentService) GetTransaction(ctx context.Context, userID, id string) (*models.Transaction, error) {
	tx, err := s.transactionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.UserID != userID {
		return nil, pkgerrors.ErrTransactionNotFound
	}
	return tx, nil
}

func (s *paymentService) History(ctx context.Context, userID string) ([]models.Transaction, error) {
	return s.transactionRepo.ListByUser(ctx, userID)
}

func (s *paymentService) publish(ctx context.Context, event kafka.PaymentEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal payment event", "transaction_id", event.TransactionID, "error", err)
		return
	}
	if err := s.producer.Send(ctx, paymentsTopic, event.TransactionID, data); err != nil {
		slog.Error("failed to publish payment event", "transaction_id", event.TransactionID, "error", err)
	}
}

func eventFor(tx *models.Transaction, eventType string) kafka.PaymentEvent {
	event := kafka.PaymentEvent{
		EventType:     eventType,
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Type:          string(tx.Type),
		Amount:        tx.Amount,
		ReceiptNumber: tx.ReceiptNumber,
		PlanID:        tx.Metadata["plan_id"],
		PropertyID:    tx.Metadata["property_id"],
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if days, err := strconv.Atoi(tx.Metadata["featured_days"]); err == nil {
		event.FeaturedDays = days
	}
	return event
}
