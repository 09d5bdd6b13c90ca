package bill

import "context"

// Store is the persistence contract the service and reconciler depend on.
// Implementations must make AppendParticipant atomic: the duplicate-address
// and capacity checks have to happen in the same conditional write, because
// the process may be scaled horizontally and an in-process lock would not
// protect the participant list.
type Store interface {
	// CreateBill persists a new bill. The ID is assigned by the caller.
	CreateBill(ctx context.Context, b *Bill) error

	// FindByID returns ErrNotFound if the bill does not exist.
	FindByID(ctx context.Context, id string) (*Bill, error)

	// FindByCreator lists bills created by the address, newest first.
	FindByCreator(ctx context.Context, creatorAddress string) ([]Bill, error)

	// FindByParticipant lists bills the address has paid into, newest first.
	FindByParticipant(ctx context.Context, participantAddress string) ([]Bill, error)

	// FindByStatus lists bills in any of the given statuses, newest first.
	FindByStatus(ctx context.Context, statuses ...Status) ([]Bill, error)

	// AppendParticipant atomically appends a participant if the address is
	// not already present and the bill still has capacity, recomputing the
	// bill status in the same write. Returns the updated bill, or
	// ErrDuplicatePayment / ErrBillComplete / ErrNotFound.
	AppendParticipant(ctx context.Context, billID string, p Participant) (*Bill, error)

	// UpdateParticipants replaces the participant list (reconciler use) and
	// stores the accompanying status.
	UpdateParticipants(ctx context.Context, billID string, participants []Participant, status Status) error

	// SetStatus updates only the bill status.
	SetStatus(ctx context.Context, billID string, status Status) error

	// SetSettlementTx records the settlement transaction hash awaiting
	// confirmation.
	SetSettlementTx(ctx context.Context, billID, txHash string) error
}
