package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/AgutuSam/houseTreePWA/internal/models"
	"github.com/AgutuSam/houseTreePWA/internal/repository"
	"github.com/segmentio/kafka-go"
)

// PaymentEvent is published when a transaction reaches a terminal status
// and consumed to apply the purchase's side effects.
type PaymentEvent struct {
	EventType     string `json:"event_type"` // payment_completed | payment_failed
	TransactionID string `json:"transaction_id"`
	UserID        string `json:"user_id"`
	Type          string `json:"type"`
	Amount        int64  `json:"amount"`
	ReceiptNumber string `json:"receipt_number,omitempty"`
	PlanID        string `json:"plan_id,omitempty"`
	PropertyID    string `json:"property_id,omitempty"`
	FeaturedDays  int    `json:"featured_days,omitempty"`
	OccurredAt    string `json:"occurred_at"`
}

type Consumer struct {
	reader       *kafka.Reader
	userRepo     repository.UserRepository
	propertyRepo repository.PropertyRepository
}

func NewConsumer(brokers []string, topic, groupID string, userRepo repository.UserRepository, propertyRepo repository.PropertyRepository) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		userRepo:     userRepo,
		propertyRepo: propertyRepo,
	}
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("failed to read Kafka message", "topic", c.reader.Config().Topic, "error", err)
			continue
		}

		slog.Info("Kafka message received", "topic", msg.Topic, "key", string(msg.Key))

		var event PaymentEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			slog.Error("failed to unmarshal payment event", "error", err)
			continue
		}

		if event.EventType != "payment_completed" {
			slog.Info("payment not completed, no side effects", "event_type", event.EventType, "transaction_id", event.TransactionID)
			continue
		}

		switch models.TransactionType(event.Type) {
		case models.TypeSubscription:
			c.activateSubscription(ctx, event)
		case models.TypeFeaturedListing:
			c.featureProperty(ctx, event)
		default:
			slog.Info("no side effect for transaction type", "type", event.Type, "transaction_id", event.TransactionID)
		}
	}
}

func (c *Consumer) activateSubscription(ctx context.Context, event PaymentEvent) {
	plan := models.PlanByID(event.PlanID)
	if plan == nil {
		slog.Error("unknown plan in payment event", "plan_id", event.PlanID, "transaction_id", event.TransactionID)
		return
	}

	now := time.Now().UTC()
	sub := models.SubscriptionInfo{
		Plan:                  plan.ID,
		StartDate:             now,
		EndDate:               now.AddDate(0, plan.Duration, 0),
		IsActive:              true,
		FeaturedListingsCount: plan.FeaturedListingsIncluded,
	}
	if err := c.userRepo.SetSubscription(ctx, event.UserID, sub); err != nil {
		slog.Error("failed to activate subscription", "uid", event.UserID, "plan_id", plan.ID, "error", err)
		return
	}
	slog.Info("subscription activated", "uid", event.UserID, "plan_id", plan.ID, "transaction_id", event.TransactionID)
}

func (c *Consumer) featureProperty(ctx context.Context, event PaymentEvent) {
	if event.PropertyID == "" || event.FeaturedDays <= 0 {
		slog.Error("featured listing event missing property or duration", "transaction_id", event.TransactionID)
		return
	}

	until := time.Now().UTC().AddDate(0, 0, event.FeaturedDays)
	if err := c.propertyRepo.SetFeatured(ctx, event.PropertyID, until); err != nil {
		slog.Error("failed to mark property featured", "property_id", event.PropertyID, "error", err)
		return
	}
	slog.Info("property featured", "property_id", event.PropertyID, "until", until, "transaction_id", event.TransactionID)
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
