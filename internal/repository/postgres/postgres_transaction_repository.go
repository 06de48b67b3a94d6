package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AgutuSam/houseTreePWA/internal/infrastructure/observability"
	"github.com/AgutuSam/houseTreePWA/internal/models"
	pkgerrors "github.com/AgutuSam/houseTreePWA/pkg/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type PostgresTransactionRepository struct {
	db *sql.DB
}

func NewPostgresTransactionRepository(db *sql.DB) *PostgresTransactionRepository {
	return &PostgresTransactionRepository{db: db}
}

func validType(t models.TransactionType) bool {
	return t == models.TypeSubscription || t == models.TypeFeaturedListing || t == models.TypePremiumFeature
}

func validStatus(s models.StatusType) bool {
	return s == models.StatusPending || s == models.StatusCompleted || s == models.StatusFailed || s == models.StatusCancelled
}

func (r *PostgresTransactionRepository) Create(ctx context.Context, tx *models.Transaction) (string, error) {
	var err error
	tracer := otel.Tracer("transaction-repository")
	ctx, span := tracer.Start(ctx, "CreateTransaction")
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("CreateTransaction", status).Inc()
		observability.RepositoryDuration.WithLabelValues("CreateTransaction").Observe(time.Since(start).Seconds())
	}()

	if tx == nil {
		err = pkgerrors.ErrNilTransaction
		slog.Error("failed to create transaction", "method", "Create", "error", err)
		return "", err
	}
	if !validType(tx.Type) {
		err = pkgerrors.ErrInvalidTransactionType
		slog.Error("invalid transaction type", "method", "Create", "type", tx.Type, "error", err)
		return "", err
	}
	if !validStatus(tx.Status) {
		err = pkgerrors.ErrInvalidTransactionStatus
		slog.Error("invalid transaction status", "method", "Create", "status", tx.Status, "error", err)
		return "", err
	}
	if tx.Amount < 0 {
		err = fmt.Errorf("amount must not be negative")
		slog.Error("negative amount", "method", "Create", "amount", tx.Amount, "error", err)
		return "", err
	}

	span.SetAttributes(
		attribute.String("user_id", tx.UserID),
		attribute.Int64("amount", tx.Amount),
		attribute.String("type", string(tx.Type)),
		attribute.String("status", string(tx.Status)),
	)

	metadata, err := json.Marshal(tx.Metadata)
	if err != nil {
		slog.Error("failed to marshal metadata", "method", "Create", "error", err)
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}

	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		slog.Error("failed to begin transaction", "method", "Create", "error", err)
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := `INSERT INTO transactions
		(id, user_id, amount, currency, status, type, description, phone_number, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`
	err = dbTx.QueryRowContext(ctx, query,
		tx.ID, tx.UserID, tx.Amount, tx.Currency, tx.Status, tx.Type,
		tx.Description, tx.PhoneNumber, metadata,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		if rbErr := dbTx.Rollback(); rbErr != nil {
			err = fmt.Errorf("rollback failed: %v; original error: %w", rbErr, err)
			slog.Error("rollback failed", "method", "Create", "error", rbErr)
		} else {
			slog.Error("failed to create transaction", "method", "Create", "user_id", tx.UserID, "type", tx.Type, "status", tx.Status, "error", err)
		}
		return "", fmt.Errorf("failed to create transaction: %w", err)
	}

	if err = dbTx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "method", "Create", "error", err)
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}

	slog.Info("transaction created", "method", "Create", "id", tx.ID, "user_id", tx.UserID, "type", tx.Type, "status", tx.Status, "amount", tx.Amount)
	return tx.ID, nil
}

const transactionColumns = `id, user_id, amount, currency, status, type, description, phone_number,
	COALESCE(merchant_request_id, ''), COALESCE(checkout_request_id, ''),
	COALESCE(receipt_number, ''), metadata, created_at, updated_at`

func (r *PostgresTransactionRepository) scanOne(row *sql.Row) (*models.Transaction, error) {
	var tx models.Transaction
	var metadata []byte
	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.Amount, &tx.Currency, &tx.Status, &tx.Type,
		&tx.Description, &tx.PhoneNumber, &tx.MerchantRequestID, &tx.CheckoutRequestID,
		&tx.ReceiptNumber, &metadata, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &tx, nil
}

func (r *PostgresTransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	var err error
	tracer := otel.Tracer("transaction-repository")
	ctx, span := tracer.Start(ctx, "GetTransactionByID")
	span.SetAttributes(attribute.String("transaction_id", id))
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("GetTransactionByID", status).Inc()
		observability.RepositoryDuration.WithLabelValues("GetTransactionByID").Observe(time.Since(start).Seconds())
	}()

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	tx, scanErr := r.scanOne(r.db.QueryRowContext(ctx, query, id))
	if stderrors.Is(scanErr, sql.ErrNoRows) {
		err = pkgerrors.ErrTransactionNotFound
		slog.Error("transaction not found", "method", "GetByID", "transaction_id", id)
		return nil, err
	}
	if scanErr != nil {
		err = fmt.Errorf("failed to get transaction by id: %w", scanErr)
		slog.Error("failed to get transaction by id", "method", "GetByID", "transaction_id", id, "error", scanErr)
		return nil, err
	}
	return tx, nil
}

func (r *PostgresTransactionRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Transaction, error) {
	var err error
	tracer := otel.Tracer("transaction-repository")
	ctx, span := tracer.Start(ctx, "GetTransactionByCheckoutRequestID")
	span.SetAttributes(attribute.String("checkout_request_id", checkoutRequestID))
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("GetTransactionByCheckoutRequestID", status).Inc()
		observability.RepositoryDuration.WithLabelValues("GetTransactionByCheckoutRequestID").Observe(time.Since(start).Seconds())
	}()

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE checkout_request_id = $1`
	tx, scanErr := r.scanOne(r.db.QueryRowContext(ctx, query, checkoutRequestID))
	if stderrors.Is(scanErr, sql.ErrNoRows) {
		err = pkgerrors.ErrTransactionNotFound
		slog.Error("transaction not found", "method", "GetByCheckoutRequestID", "checkout_request_id", checkoutRequestID)
		return nil, err
	}
	if scanErr != nil {
		err = fmt.Errorf("failed to get transaction by checkout request id: %w", scanErr)
		slog.Error("failed to get transaction", "method", "GetByCheckoutRequestID", "checkout_request_id", checkoutRequestID, "error", scanErr)
		return nil, err
	}
	return tx, nil
}

func (r *PostgresTransactionRepository) SetGatewayRefs(ctx context.Context, id, merchantRequestID, checkoutRequestID string) error {
	var err error
	tracer := otel.Tracer("transaction-repository")
	ctx, span := tracer.Start(ctx, "SetGatewayRefs")
	span.SetAttributes(attribute.String("transaction_id", id))
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("SetGatewayRefs", status).Inc()
		observability.RepositoryDuration.WithLabelValues("SetGatewayRefs").Observe(time.Since(start).Seconds())
	}()

	query := `UPDATE transactions
		SET merchant_request_id = $2, checkout_request_id = $3, updated_at = NOW()
		WHERE id = $1`
	res, execErr := r.db.ExecContext(ctx, query, id, merchantRequestID, checkoutRequestID)
	if execErr != nil {
		err = fmt.Errorf("failed to set gateway refs: %w", execErr)
		slog.Error("failed to set gateway refs", "method", "SetGatewayRefs", "transaction_id", id, "error", execErr)
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = pkgerrors.ErrTransactionNotFound
		slog.Error("transaction not found", "method", "SetGatewayRefs", "transaction_id", id)
		return err
	}

	slog.Info("gateway refs recorded", "method", "SetGatewayRefs", "transaction_id", id,
		"merchant_request_id", merchantRequestID, "checkout_request_id", checkoutRequestID)
	return nil
}

// Finalize moves a pending transaction into a terminal status. The WHERE
// clause enforces the forward-only lifecycle: a terminal row never changes
// again, and nothing ever returns to pending.
func (r *PostgresTransactionRepository) Finalize(ctx context.Context, id string, status models.StatusType, receiptNumber string) error {
	var err error
	tracer := otel.Tracer("transaction-repository")
	ctx, span := tracer.Start(ctx, "FinalizeTransaction")
	span.SetAttributes(attribute.String("transaction_id", id), attribute.String("status", string(status)))
	defer span.End()

	start := time.Now()
	defer func() {
		result := "success"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("FinalizeTransaction", result).Inc()
		observability.RepositoryDuration.WithLabelValues("FinalizeTransaction").Observe(time.Since(start).Seconds())
	}()

	if !status.Terminal() {
		err = pkgerrors.ErrInvalidTransactionStatus
		slog.Error("finalize requires a terminal status", "method", "Finalize", "status", status)
		return err
	}

	query := `UPDATE transactions
		SET status = $2, receipt_number = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`
	res, execErr := r.db.ExecContext(ctx, query, id, status, receiptNumber)
	if execErr != nil {
		err = fmt.Errorf("failed to finalize transaction: %w", execErr)
		slog.Error("failed to finalize transaction", "method", "Finalize", "transaction_id", id, "error", execErr)
		return err
	}

	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if qErr := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE id = $1)`, id).Scan(&exists); qErr != nil {
			err = fmt.Errorf("failed to finalize transaction: %w", qErr)
			return err
		}
		if !exists {
			err = pkgerrors.ErrTransactionNotFound
		} else {
			err = pkgerrors.ErrTransactionFinalized
		}
		slog.Error("transaction not finalized", "method", "Finalize", "transaction_id", id, "error", err)
		return err
	}

	slog.Info("transaction finalized", "method", "Finalize", "transaction_id", id, "status", status)
	return nil
}

func (r *PostgresTransactionRepository) ListByUser(ctx context.Context, userID string) ([]models.Transaction, error) {
	var err error
	tracer := otel.Tracer("transaction-repository")
	ctx, span := tracer.Start(ctx, "ListTransactionsByUser")
	span.SetAttributes(attribute.String("user_id", userID))
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("ListTransactionsByUser", status).Inc()
		observability.RepositoryDuration.WithLabelValues("ListTransactionsByUser").Observe(time.Since(start).Seconds())
	}()

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1 ORDER BY created_at DESC`
	rows, queryErr := r.db.QueryContext(ctx, query, userID)
	if queryErr != nil {
		err = fmt.Errorf("failed to list transactions: %w", queryErr)
		slog.Error("failed to list transactions", "method", "ListByUser", "user_id", userID, "error", queryErr)
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var metadata []byte
		if scanErr := rows.Scan(
			&tx.ID, &tx.UserID, &tx.Amount, &tx.Currency, &tx.Status, &tx.Type,
			&tx.Description, &tx.PhoneNumber, &tx.MerchantRequestID, &tx.CheckoutRequestID,
			&tx.ReceiptNumber, &metadata, &tx.CreatedAt, &tx.UpdatedAt,
		); scanErr != nil {
			err = fmt.Errorf("failed to scan transaction: %w", scanErr)
			return nil, err
		}
		if len(metadata) > 0 {
			if umErr := json.Unmarshal(metadata, &tx.Metadata); umErr != nil {
				err = fmt.Errorf("failed to unmarshal metadata: %w", umErr)
				return nil, err
			}
		}
		txs = append(txs, tx)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		err = fmt.Errorf("failed to iterate transactions: %w", rowsErr)
		return nil, err
	}
	return txs, nil
}
