package errors

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailExists        = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNilUser            = errors.New("user is nil")

	ErrPropertyNotFound = errors.New("property not found")
	ErrNilProperty      = errors.New("property is nil")
	ErrNotOwner         = errors.New("property belongs to another manager")
	ErrForbiddenRole    = errors.New("role not allowed for this operation")

	ErrPlanNotFound             = errors.New("subscription plan not found")
	ErrNilTransaction           = errors.New("transaction is nil")
	ErrInvalidTransactionType   = errors.New("invalid transaction type")
	ErrInvalidTransactionStatus = errors.New("invalid transaction status")
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrTransactionFinalized     = errors.New("transaction already finalized")
	ErrGatewayUnavailable       = errors.New("payment gateway unavailable")
	ErrGatewayRejected          = errors.New("payment gateway rejected the request")

	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = fmt.Errorf("internal error")
)
