package repository

import (
	"context"
	"testing"
	"time"

	"github.com/AgutuSam/houseTreePWA/internal/models"
	pkgerrors "github.com/AgutuSam/houseTreePWA/pkg/errors"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PostgresTransactionRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresTransactionRepository(db), mock
}

func pendingTx() *models.Transaction {
	return &models.Transaction{
		UserID:      "user-1",
		Amount:      2500,
		Currency:    "KES",
		Status:      models.StatusPending,
		Type:        models.TypeSubscription,
		Description: "Premium subscription plan",
		PhoneNumber: "254712345678",
		Metadata:    map[string]string{"plan_id": "premium"},
	}
}

func TestCreateTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs(sqlmock.AnyArg(), "user-1", int64(2500), "KES", models.StatusPending,
			models.TypeSubscription, "Premium subscription plan", "254712345678", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	id, err := repo.Create(context.Background(), pendingTx())
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTransactionValidation(t *testing.T) {
	repo, _ := newMockRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, nil)
	assert.ErrorIs(t, err, pkgerrors.ErrNilTransaction)

	tx := pendingTx()
	tx.Type = "refund"
	_, err = repo.Create(ctx, tx)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidTransactionType)

	tx = pendingTx()
	tx.Status = "limbo"
	_, err = repo.Create(ctx, tx)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidTransactionStatus)

	tx = pendingTx()
	tx.Amount = -1
	_, err = repo.Create(ctx, tx)
	assert.Error(t, err)
}

func transactionRows(tx *models.Transaction) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "amount", "currency", "status", "type", "description", "phone_number",
		"merchant_request_id", "checkout_request_id", "receipt_number", "metadata", "created_at", "updated_at",
	}).AddRow(
		tx.ID, tx.UserID, tx.Amount, tx.Currency, tx.Status, tx.Type, tx.Description, tx.PhoneNumber,
		tx.MerchantRequestID, tx.CheckoutRequestID, tx.ReceiptNumber, []byte(`{"plan_id":"premium"}`),
		time.Now(), time.Now(),
	)
}

func TestGetTransactionByID(t *testing.T) {
	repo, mock := newMockRepo(t)

	tx := pendingTx()
	tx.ID = "tx-1"
	mock.ExpectQuery(`SELECT .+ FROM transactions WHERE id = \$1`).
		WithArgs("tx-1").
		WillReturnRows(transactionRows(tx))

	got, err := repo.GetByID(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", got.ID)
	assert.Equal(t, "premium", got.Metadata["plan_id"])
}

func TestGetTransactionByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT .+ FROM transactions WHERE id = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, pkgerrors.ErrTransactionNotFound)
}

func TestGetTransactionByCheckoutRequestID(t *testing.T) {
	repo, mock := newMockRepo(t)

	tx := pendingTx()
	tx.ID = "tx-1"
	tx.CheckoutRequestID = "cr-1"
	mock.ExpectQuery(`SELECT .+ FROM transactions WHERE checkout_request_id = \$1`).
		WithArgs("cr-1").
		WillReturnRows(transactionRows(tx))

	got, err := repo.GetByCheckoutRequestID(context.Background(), "cr-1")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", got.ID)
}

func TestSetGatewayRefs(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE transactions`).
		WithArgs("tx-1", "mr-1", "cr-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetGatewayRefs(context.Background(), "tx-1", "mr-1", "cr-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizePendingTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE transactions`).
		WithArgs("tx-1", models.StatusCompleted, "QK12XYZ789").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Finalize(context.Background(), "tx-1", models.StatusCompleted, "QK12XYZ789")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeAlreadyTerminal(t *testing.T) {
	repo, mock := newMockRepo(t)

	// The guarded UPDATE touches no rows; the row exists, so it must
	// already be terminal.
	mock.ExpectExec(`UPDATE transactions`).
		WithArgs("tx-1", models.StatusFailed, "").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("tx-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.Finalize(context.Background(), "tx-1", models.StatusFailed, "")
	assert.ErrorIs(t, err, pkgerrors.ErrTransactionFinalized)
}

func TestFinalizeMissingTransaction(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE transactions`).
		WithArgs("missing", models.StatusCompleted, "").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err := repo.Finalize(context.Background(), "missing", models.StatusCompleted, "")
	assert.ErrorIs(t, err, pkgerrors.ErrTransactionNotFound)
}

func TestFinalizeRejectsNonTerminalStatus(t *testing.T) {
	repo, _ := newMockRepo(t)
	err := repo.Finalize(context.Background(), "tx-1", models.StatusPending, "")
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidTransactionStatus)
}

func TestListByUser(t *testing.T) {
	repo, mock := newMockRepo(t)

	first := pendingTx()
	first.ID = "tx-1"
	rows := transactionRows(first)
	mock.ExpectQuery(`SELECT .+ FROM transactions WHERE user_id = \$1 ORDER BY created_at DESC`).
		WithArgs("user-1").
		WillReturnRows(rows)

	txs, err := repo.ListByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "tx-1", txs[0].ID)
}
