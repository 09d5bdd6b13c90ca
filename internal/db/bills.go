package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nack098/adasplit/internal/bill"
)

// BillStore implements bill.Store on PostgreSQL.
type BillStore struct {
	pool *pgxpool.Pool
}

// NewBillStore wraps a connection pool.
func NewBillStore(pool *pgxpool.Pool) *BillStore {
	return &BillStore{pool: pool}
}

const billColumns = `id, creator_address, escrow_address, title, description,
        total_amount, participant_count, amount_per_participant, currency,
        status, participants, settlement_tx_hash, created_at, updated_at`

// CreateBill inserts a new bill row.
func (s *BillStore) CreateBill(ctx context.Context, b *bill.Bill) error {
	participants, err := json.Marshal(b.Participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
        INSERT INTO bills (id, creator_address, escrow_address, title, description,
            total_amount, participant_count, amount_per_participant, currency,
            status, participants, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		b.ID, b.CreatorAddress, b.EscrowAddress, b.Title, b.Description,
		b.TotalAmount, b.ParticipantCount, b.AmountPerParticipant, b.Currency,
		b.Status, participants, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}
	return nil
}

// FindByID fetches one bill.
func (s *BillStore) FindByID(ctx context.Context, id string) (*bill.Bill, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1`, id)
	b, err := scanBill(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, bill.ErrNotFound
		}
		return nil, fmt.Errorf("find bill %s: %w", id, err)
	}
	return b, nil
}

// FindByCreator lists bills created by the address, newest first.
func (s *BillStore) FindByCreator(ctx context.Context, creatorAddress string) ([]bill.Bill, error) {
	return s.queryBills(ctx, `
        SELECT `+billColumns+` FROM bills
        WHERE creator_address = $1
        ORDER BY created_at DESC`, creatorAddress)
}

// FindByParticipant lists bills the address has paid into, newest first.
// Uses JSONB containment so the GIN index applies.
func (s *BillStore) FindByParticipant(ctx context.Context, participantAddress string) ([]bill.Bill, error) {
	match, err := json.Marshal([]map[string]string{{"address": participantAddress}})
	if err != nil {
		return nil, fmt.Errorf("marshal participant match: %w", err)
	}
	return s.queryBills(ctx, `
        SELECT `+billColumns+` FROM bills
        WHERE participants @> $1::jsonb
        ORDER BY created_at DESC`, string(match))
}

// FindByStatus lists bills in any of the given statuses, newest first.
func (s *BillStore) FindByStatus(ctx context.Context, statuses ...bill.Status) ([]bill.Bill, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	values := make([]string, 0, len(statuses))
	for _, st := range statuses {
		values = append(values, string(st))
	}
	return s.queryBills(ctx, `
        SELECT `+billColumns+` FROM bills
        WHERE status = ANY($1)
        ORDER BY created_at DESC`, values)
}

// AppendParticipant appends atomically: the duplicate-address and capacity
// checks are part of the UPDATE's WHERE clause, and the status is recomputed
// from the new participant count in the same statement. Two concurrent calls
// for the same address cannot both match the row.
func (s *BillStore) AppendParticipant(ctx context.Context, billID string, p bill.Participant) (*bill.Bill, error) {
	entry, err := json.Marshal([]bill.Participant{p})
	if err != nil {
		return nil, fmt.Errorf("marshal participant: %w", err)
	}
	match, err := json.Marshal([]map[string]string{{"address": p.Address}})
	if err != nil {
		return nil, fmt.Errorf("marshal participant match: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
        UPDATE bills SET
            participants = participants || $2::jsonb,
            status = CASE
                WHEN jsonb_array_length(participants) + 1 >= participant_count THEN 'complete'
                ELSE 'partial'
            END,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1
          AND status IN ('pending', 'partial')
          AND NOT participants @> $3::jsonb
          AND jsonb_array_length(participants) < participant_count
        RETURNING `+billColumns,
		billID, string(entry), string(match),
	)
	b, err := scanBill(row)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("append participant: %w", err)
	}

	// The conditional update matched nothing. Re-fetch to report why.
	existing, ferr := s.FindByID(ctx, billID)
	if ferr != nil {
		return nil, ferr
	}
	if existing.HasParticipant(p.Address) {
		return nil, bill.ErrDuplicatePayment
	}
	return nil, bill.ErrBillComplete
}

// UpdateParticipants replaces the participant list and status in one write.
func (s *BillStore) UpdateParticipants(ctx context.Context, billID string, participants []bill.Participant, status bill.Status) error {
	data, err := json.Marshal(participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
        UPDATE bills SET
            participants = $2::jsonb,
            status = $3,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1`,
		billID, string(data), status,
	)
	if err != nil {
		return fmt.Errorf("update participants: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return bill.ErrNotFound
	}
	return nil
}

// SetStatus updates only the bill status.
func (s *BillStore) SetStatus(ctx context.Context, billID string, status bill.Status) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE bills SET status = $2, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1`, billID, status)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return bill.ErrNotFound
	}
	return nil
}

// SetSettlementTx records the settlement transaction hash.
func (s *BillStore) SetSettlementTx(ctx context.Context, billID, txHash string) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE bills SET settlement_tx_hash = $2, updated_at = CURRENT_TIMESTAMP
        WHERE id = $1`, billID, txHash)
	if err != nil {
		return fmt.Errorf("set settlement tx: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return bill.ErrNotFound
	}
	return nil
}

func (s *BillStore) queryBills(ctx context.Context, query string, args ...interface{}) ([]bill.Bill, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query bills: %w", err)
	}
	defer rows.Close()

	var bills []bill.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bill row: %w", err)
		}
		bills = append(bills, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bill rows: %w", err)
	}
	return bills, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBill(row rowScanner) (*bill.Bill, error) {
	var b bill.Bill
	var participants []byte
	err := row.Scan(
		&b.ID, &b.CreatorAddress, &b.EscrowAddress, &b.Title, &b.Description,
		&b.TotalAmount, &b.ParticipantCount, &b.AmountPerParticipant, &b.Currency,
		&b.Status, &participants, &b.SettlementTxHash, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(participants, &b.Participants); err != nil {
		return nil, fmt.Errorf("unmarshal participants: %w", err)
	}
	return &b, nil
}
