package bill

import "errors"

var (
	// ErrValidation marks malformed requests: bad amount, bad count, missing
	// fields.
	ErrValidation = errors.New("invalid request")

	// ErrNotFound is returned when the referenced bill does not exist.
	ErrNotFound = errors.New("bill not found")

	// ErrDuplicatePayment is returned when an address tries to pay the same
	// bill twice.
	ErrDuplicatePayment = errors.New("participant has already paid for this bill")

	// ErrBillComplete is returned when a payment is recorded against a bill
	// that already collected every share.
	ErrBillComplete = errors.New("bill is already complete")

	// ErrNotSettleable is returned when settlement is requested before all
	// participants have paid.
	ErrNotSettleable = errors.New("bill is not in a settleable state")

	// ErrUnauthorized is returned when anyone but the creator requests
	// settlement.
	ErrUnauthorized = errors.New("only the bill creator may settle")
)
