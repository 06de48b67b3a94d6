package repository

import (
	"context"

	"github.com/AgutuSam/houseTreePWA/internal/models"
)

type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) (string, error)
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Transaction, error)
	// SetGatewayRefs records the correlation ids the gateway returned for a
	// pending transaction.
	SetGatewayRefs(ctx context.Context, id, merchantRequestID, checkoutRequestID string) error
	// Finalize moves a pending transaction to a terminal status. Status only
	// moves forward; finalizing an already-terminal transaction fails.
	Finalize(ctx context.Context, id string, status models.StatusType, receiptNumber string) error
	ListByUser(ctx context.Context, userID string) ([]models.Transaction, error)
}
