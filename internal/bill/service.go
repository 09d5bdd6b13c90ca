package bill

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nack098/adasplit/internal/cardano"
)

// CurrencyADA is the only currency tag bills carry today.
const CurrencyADA = "ADA"

// Service is the settlement facade: bill lifecycle plus transaction
// building, on top of the store and the tx builder.
type Service struct {
	store    Store
	contract *cardano.Contract
	builder  *cardano.TxBuilder
	now      func() time.Time
}

// NewService wires the settlement service.
func NewService(store Store, contract *cardano.Contract, builder *cardano.TxBuilder) *Service {
	return &Service{
		store:    store,
		contract: contract,
		builder:  builder,
		now:      time.Now,
	}
}

// CreateBill validates the request, derives the per-participant share (floor
// to the lovelace, the remainder is absorbed by the total) and persists the
// new pending bill.
func (s *Service) CreateBill(ctx context.Context, req CreateRequest) (*Bill, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := cardano.PaymentKeyHash(req.CreatorAddress); err != nil {
		return nil, fmt.Errorf("%w: creator address: %v", ErrValidation, err)
	}

	perShareLovelace := cardano.PerParticipantLovelace(
		cardano.ToLovelace(req.TotalAmount), req.ParticipantCount)

	now := s.now().UTC()
	b := &Bill{
		ID:                   uuid.NewString(),
		CreatorAddress:       req.CreatorAddress,
		EscrowAddress:        s.contract.ScriptAddress(),
		Title:                req.Title,
		Description:          req.Description,
		TotalAmount:          req.TotalAmount,
		ParticipantCount:     req.ParticipantCount,
		AmountPerParticipant: cardano.FromLovelace(perShareLovelace),
		Currency:             CurrencyADA,
		Status:               StatusPending,
		Participants:         []Participant{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.store.CreateBill(ctx, b); err != nil {
		return nil, fmt.Errorf("create bill: %w", err)
	}
	slog.Info("Bill created",
		"bill_id", b.ID,
		"creator", b.CreatorAddress,
		"total", b.TotalAmount,
		"participants", b.ParticipantCount,
		"per_participant", b.AmountPerParticipant,
	)
	return b, nil
}

// GetBill fetches one bill.
func (s *Service) GetBill(ctx context.Context, id string) (*Bill, error) {
	return s.store.FindByID(ctx, id)
}

// BillsByCreator lists the bills an address created.
func (s *Service) BillsByCreator(ctx context.Context, creatorAddress string) ([]Bill, error) {
	return s.store.FindByCreator(ctx, creatorAddress)
}

// BillsByParticipant lists the bills an address has paid into.
func (s *Service) BillsByParticipant(ctx context.Context, participantAddress string) ([]Bill, error) {
	return s.store.FindByParticipant(ctx, participantAddress)
}

// BillsByStatus lists bills in the given statuses.
func (s *Service) BillsByStatus(ctx context.Context, statuses ...Status) ([]Bill, error) {
	return s.store.FindByStatus(ctx, statuses...)
}

// BillProgress returns the payment progress summary for one bill.
func (s *Service) BillProgress(ctx context.Context, id string) (Progress, error) {
	b, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Progress{}, err
	}
	return b.Progress(), nil
}

// RecordParticipant registers a submitted share payment. The dedup and
// capacity checks run atomically inside the store so two concurrent calls
// for the same address cannot both succeed.
func (s *Service) RecordParticipant(ctx context.Context, billID, address string, amountPaid float64, paymentTxHash string) (*Bill, error) {
	if billID == "" || address == "" || paymentTxHash == "" {
		return nil, fmt.Errorf("%w: bill id, address and payment tx hash are required", ErrValidation)
	}
	if amountPaid <= 0 {
		return nil, fmt.Errorf("%w: amount paid must be positive", ErrValidation)
	}

	p := Participant{
		Address:       address,
		AmountPaid:    amountPaid,
		PaymentTxHash: paymentTxHash,
		PaymentStatus: PaymentPending,
		PaidAt:        s.now().UTC(),
	}
	b, err := s.store.AppendParticipant(ctx, billID, p)
	if err != nil {
		return nil, err
	}
	slog.Info("Participant recorded",
		"bill_id", billID,
		"address", address,
		"tx_hash", paymentTxHash,
		"status", b.Status,
		"paid", b.PaidCount(),
		"of", b.ParticipantCount,
	)
	return b, nil
}

// PaymentTx is the response for a payment build: the opaque artifact plus
// the amount and destination the wallet should display.
type PaymentTx struct {
	UnsignedTx    string  `json:"unsignedTx"`
	Amount        float64 `json:"amount"`
	EscrowAddress string  `json:"escrowAddress"`
}

// BuildPaymentTx builds the unsigned share-payment transaction for a
// participant. Duplicate payers are rejected before any UTXO is fetched.
func (s *Service) BuildPaymentTx(ctx context.Context, billID, participantAddress string) (*PaymentTx, error) {
	if billID == "" || participantAddress == "" {
		return nil, fmt.Errorf("%w: bill id and participant address are required", ErrValidation)
	}
	b, err := s.store.FindByID(ctx, billID)
	if err != nil {
		return nil, err
	}
	if b.HasParticipant(participantAddress) {
		return nil, ErrDuplicatePayment
	}
	if b.PaidCount() >= b.ParticipantCount {
		return nil, ErrBillComplete
	}

	unsigned, err := s.builder.BuildPayment(ctx, cardano.PaymentParams{
		BillID:         b.ID,
		CreatorAddress: b.CreatorAddress,
		AmountLovelace: cardano.ToLovelace(b.AmountPerParticipant),
		PayerAddress:   participantAddress,
	})
	if err != nil {
		return nil, err
	}
	return &PaymentTx{
		UnsignedTx:    unsigned,
		Amount:        b.AmountPerParticipant,
		EscrowAddress: s.contract.ScriptAddress(),
	}, nil
}

// SettlementTx is the response for a settlement build.
type SettlementTx struct {
	UnsignedTx string `json:"unsignedTx"`
}

// BuildSettlementTx builds the unsigned transaction releasing the escrow to
// the creator. Only the creator may settle, and only once every share has
// been paid. The bill is not marked settled here: the settlement transaction
// still has to reach the chain, which the reconciler confirms.
func (s *Service) BuildSettlementTx(ctx context.Context, billID, requesterAddress string) (*SettlementTx, error) {
	if billID == "" || requesterAddress == "" {
		return nil, fmt.Errorf("%w: bill id and creator address are required", ErrValidation)
	}
	b, err := s.store.FindByID(ctx, billID)
	if err != nil {
		return nil, err
	}
	if requesterAddress != b.CreatorAddress {
		return nil, ErrUnauthorized
	}
	if b.Status != StatusComplete {
		return nil, fmt.Errorf("%w: status is %s", ErrNotSettleable, b.Status)
	}

	unsigned, err := s.builder.BuildSettlement(ctx, b.ID, b.CreatorAddress)
	if err != nil {
		return nil, err
	}
	return &SettlementTx{UnsignedTx: unsigned}, nil
}

// ConfirmSettlement records the submitted settlement transaction hash. The
// reconciler flips the bill to settled once the hash confirms on chain.
func (s *Service) ConfirmSettlement(ctx context.Context, billID, requesterAddress, txHash string) error {
	if billID == "" || txHash == "" {
		return fmt.Errorf("%w: bill id and tx hash are required", ErrValidation)
	}
	b, err := s.store.FindByID(ctx, billID)
	if err != nil {
		return err
	}
	if requesterAddress != b.CreatorAddress {
		return ErrUnauthorized
	}
	if b.Status != StatusComplete {
		return fmt.Errorf("%w: status is %s", ErrNotSettleable, b.Status)
	}
	if err := s.store.SetSettlementTx(ctx, billID, txHash); err != nil {
		return fmt.Errorf("record settlement tx: %w", err)
	}
	slog.Info("Settlement submitted", "bill_id", billID, "tx_hash", txHash)
	return nil
}
