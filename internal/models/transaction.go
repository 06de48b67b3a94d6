package models

import "time"

type TransactionType string

const (
	TypeSubscription    TransactionType = "subscription"
	TypeFeaturedListing TransactionType = "featured_listing"
	TypePremiumFeature  TransactionType = "premium_feature"
)

type StatusType string

const (
	StatusPending   StatusType = "pending"
	StatusCompleted StatusType = "completed"
	StatusFailed    StatusType = "failed"
	StatusCancelled StatusType = "cancelled"
)

// Transaction is a row in the payments ledger. Status only ever moves
// forward: pending -> completed|failed|cancelled.
type Transaction struct {
	ID                string            `json:"id"`
	UserID            string            `json:"user_id"`
	Amount            int64             `json:"amount"`
	Currency          string            `json:"currency"`
	Status            StatusType        `json:"status"`
	Type              TransactionType   `json:"type"`
	Description       string            `json:"description"`
	PhoneNumber       string            `json:"phone_number"`
	MerchantRequestID string            `json:"merchant_request_id,omitempty"`
	CheckoutRequestID string            `json:"checkout_request_id,omitempty"`
	ReceiptNumber     string            `json:"receipt_number,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (s StatusType) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}
