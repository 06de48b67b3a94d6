package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/AgutuSam/houseTreePWA/internal/infrastructure/kafka"
	"github.com/AgutuSam/houseTreePWA/internal/models"
	pkgerrors "github.com/AgutuSam/houseTreePWA/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPaymentFixture() (*paymentService, *fakeTransactionRepo, *fakePropertyRepo, *fakeGateway, *fakeProducer) {
	txRepo := newFakeTransactionRepo()
	propRepo := newFakePropertyRepo()
	gateway := &fakeGateway{}
	producer := &fakeProducer{}
	svc := NewPaymentService(txRepo, propRepo, gateway, producer)
	return svc, txRepo, propRepo, gateway, producer
}

func TestPurchaseSubscriptionPaidPlan(t *testing.T) {
	svc, txRepo, _, gateway, _ := newPaymentFixture()

	tx, push, err := svc.PurchaseSubscription(context.Background(), "user-1", "premium", "0712345678")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, tx.Status)
	assert.Equal(t, int64(2500), tx.Amount)
	assert.Equal(t, "KES", tx.Currency)
	assert.Equal(t, "254712345678", tx.PhoneNumber)
	assert.Equal(t, models.TypeSubscription, tx.Type)
	assert.Equal(t, "premium", tx.Metadata["plan_id"])

	require.Len(t, gateway.calls, 1)
	assert.Equal(t, int64(2500), gateway.calls[0].amount)
	assert.Equal(t, "254712345678", gateway.calls[0].phone)
	assert.Equal(t, tx.ID, gateway.calls[0].reference)

	assert.Equal(t, "mr-1", tx.MerchantRequestID)
	assert.Equal(t, "cr-1", tx.CheckoutRequestID)
	assert.Equal(t, "0", push.ResponseCode)

	stored, err := txRepo.GetByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Equal(t, "cr-1", stored.CheckoutRequestID)
}

func TestPurchaseSubscriptionFreePlan(t *testing.T) {
	svc, txRepo, _, gateway, producer := newPaymentFixture()

	tx, push, err := svc.PurchaseSubscription(context.Background(), "user-1", "basic", "0712345678")
	require.NoError(t, err)

	assert.Empty(t, gateway.calls, "free plan must never reach the gateway")
	assert.Equal(t, models.StatusCompleted, tx.Status)
	assert.Equal(t, int64(0), tx.Amount)
	assert.Equal(t, "0", push.ResponseCode)
	assert.Equal(t, "Free plan activated successfully", push.CustomerMessage)

	stored, err := txRepo.GetByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)

	require.Len(t, producer.sent, 1)
	var event kafka.PaymentEvent
	require.NoError(t, json.Unmarshal(producer.sent[0].value, &event))
	assert.Equal(t, "payment_completed", event.EventType)
	assert.Equal(t, "basic", event.PlanID)
}

func TestPurchaseSubscriptionUnknownPlan(t *testing.T) {
	svc, txRepo, _, gateway, _ := newPaymentFixture()

	_, _, err := svc.PurchaseSubscription(context.Background(), "user-1", "platinum", "0712345678")
	assert.ErrorIs(t, err, pkgerrors.ErrPlanNotFound)
	assert.Empty(t, gateway.calls)
	assert.Empty(t, txRepo.created, "no ledger entry for an unknown plan")
}

func TestPurchaseSubscriptionGatewayFailureLeavesPending(t *testing.T) {
	svc, txRepo, _, gateway, _ := newPaymentFixture()
	gateway.pushErr = pkgerrors.ErrGatewayUnavailable

	tx, _, err := svc.PurchaseSubscription(context.Background(), "user-1", "premium", "0712345678")
	assert.ErrorIs(t, err, pkgerrors.ErrGatewayUnavailable)

	stored, err := txRepo.GetByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status, "failed push leaves the ledger entry pending")
}

func TestPurchaseFeaturedListing(t *testing.T) {
	svc, _, propRepo, gateway, _ := newPaymentFixture()
	id, err := propRepo.Create(context.Background(), &models.Property{Title: "Bungalow", OwnerID: "user-1"})
	require.NoError(t, err)

	tx, _, err := svc.PurchaseFeaturedListing(context.Background(), "user-1", id, "+254712345678", 7)
	require.NoError(t, err)

	assert.Equal(t, int64(350), tx.Amount, "7 days at the daily rate")
	assert.Equal(t, models.TypeFeaturedListing, tx.Type)
	assert.Equal(t, id, tx.Metadata["property_id"])
	assert.Equal(t, "7", tx.Metadata["featured_days"])
	require.Len(t, gateway.calls, 1)
	assert.Equal(t, int64(350), gateway.calls[0].amount)
}

func TestPurchaseFeaturedListingNotOwner(t *testing.T) {
	svc, txRepo, propRepo, gateway, _ := newPaymentFixture()
	id, err := propRepo.Create(context.Background(), &models.Property{Title: "Bungalow", OwnerID: "user-1"})
	require.NoError(t, err)

	_, _, err = svc.PurchaseFeaturedListing(context.Background(), "user-2", id, "0712345678", 7)
	assert.ErrorIs(t, err, pkgerrors.ErrNotOwner)
	assert.Empty(t, gateway.calls)
	assert.Empty(t, txRepo.created)
}

func TestPurchaseFeaturedListingInvalidDays(t *testing.T) {
	svc, _, _, _, _ := newPaymentFixture()
	_, _, err := svc.PurchaseFeaturedListing(context.Background(), "user-1", "prop-1", "0712345678", 0)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
}

func TestHandleCallbackSuccess(t *testing.T) {
	svc, txRepo, _, _, producer := newPaymentFixture()

	tx, _, err := svc.PurchaseSubscription(context.Background(), "user-1", "premium", "0712345678")
	require.NoError(t, err)

	callback := models.STKCallback{
		MerchantRequestID: "mr-1",
		CheckoutRequestID: "cr-1",
		ResultCode:        0,
	}
	callback.CallbackMetadata.Item = []models.CallbackItem{
		{Name: "Amount", Value: 2500.0},
		{Name: "MpesaReceiptNumber", Value: "QK12XYZ789"},
	}

	require.NoError(t, svc.HandleCallback(context.Background(), callback))

	stored, err := txRepo.GetByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Equal(t, "QK12XYZ789", stored.ReceiptNumber)

	require.Len(t, producer.sent, 1)
	var event kafka.PaymentEvent
	require.NoError(t, json.Unmarshal(producer.sent[0].value, &event))
	assert.Equal(t, "payment_completed", event.EventType)
	assert.Equal(t, tx.ID, event.TransactionID)
	assert.Equal(t, "QK12XYZ789", event.ReceiptNumber)
}

func TestHandleCallbackFailure(t *testing.T) {
	svc, txRepo, _, _, producer := newPaymentFixture()

	tx, _, err := svc.PurchaseSubscription(context.Background(), "user-1", "premium", "0712345678")
	require.NoError(t, err)

	callback := models.STKCallback{
		CheckoutRequestID: "cr-1",
		ResultCode:        1032, // cancelled by user
	}
	require.NoError(t, svc.HandleCallback(context.Background(), callback))

	stored, err := txRepo.GetByID(context.Background(), tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stored.Status)
	assert.Empty(t, stored.ReceiptNumber)

	require.Len(t, producer.sent, 1)
	var event kafka.PaymentEvent
	require.NoError(t, json.Unmarshal(producer.sent[0].value, &event))
	assert.Equal(t, "payment_failed", event.EventType)
}

func TestHandleCallbackUnknownCheckout(t *testing.T) {
	svc, _, _, _, _ := newPaymentFixture()
	err := svc.HandleCallback(context.Background(), models.STKCallback{CheckoutRequestID: "cr-missing"})
	assert.ErrorIs(t, err, pkgerrors.ErrTransactionNotFound)
}

func TestGetTransactionOwnership(t *testing.T) {
	svc, _, _, _, _ := newPaymentFixture()

	tx, _, err := svc.PurchaseSubscription(context.Background(), "user-1", "premium", "0712345678")
	require.NoError(t, err)

	got, err := svc.GetTransaction(context.Background(), "user-1", tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)

	_, err = svc.GetTransaction(context.Background(), "user-2", tx.ID)
	assert.ErrorIs(t, err, pkgerrors.ErrTransactionNotFound)
}
