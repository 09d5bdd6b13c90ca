package cardano

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/nack098/adasplit/pkg/blockfrost"
)

// TxStatus is the confirmation state of a ledger transaction.
type TxStatus string

const (
	TxConfirmed TxStatus = "confirmed"
	TxPending   TxStatus = "pending"
	TxNotFound  TxStatus = "not_found"
)

// Ledger is the query surface this system needs from the chain indexer.
// Implementations must be safe for concurrent use.
type Ledger interface {
	UTXOsAt(ctx context.Context, address string) ([]UTXO, error)
	TxStatus(ctx context.Context, txHash string) (TxStatus, error)
}

// BlockfrostLedger adapts the Blockfrost client to the Ledger interface,
// converting wire types and classifying failures.
type BlockfrostLedger struct {
	client *blockfrost.Client
}

// NewBlockfrostLedger wraps a Blockfrost client.
func NewBlockfrostLedger(client *blockfrost.Client) *BlockfrostLedger {
	return &BlockfrostLedger{client: client}
}

// UTXOsAt returns the current UTXO snapshot at an address.
func (l *BlockfrostLedger) UTXOsAt(ctx context.Context, address string) ([]UTXO, error) {
	raw, err := l.client.AddressUTXOs(ctx, address)
	if err != nil {
		return nil, classifyLedgerErr(err)
	}
	utxos := make([]UTXO, 0, len(raw))
	for _, r := range raw {
		u, err := convertUTXO(r)
		if err != nil {
			return nil, err
		}
		utxos = append(utxos, u)
	}
	return utxos, nil
}

// TxStatus looks up a transaction's confirmation state. The indexer only
// reports indexed (confirmed) transactions; anything it does not know yet is
// not_found, which callers must treat as still in flight.
func (l *BlockfrostLedger) TxStatus(ctx context.Context, txHash string) (TxStatus, error) {
	exists, err := l.client.TxExists(ctx, txHash)
	if err != nil {
		return TxPending, classifyLedgerErr(err)
	}
	if exists {
		return TxConfirmed, nil
	}
	return TxNotFound, nil
}

func convertUTXO(r blockfrost.UTXO) (UTXO, error) {
	u := UTXO{
		TxHash:      r.TxHash,
		OutputIndex: r.OutputIndex,
		Address:     r.Address,
	}
	for _, a := range r.Amount {
		qty, err := strconv.ParseInt(a.Quantity, 10, 64)
		if err != nil {
			return UTXO{}, fmt.Errorf("utxo %s#%d: bad quantity %q: %w", r.TxHash, r.OutputIndex, a.Quantity, err)
		}
		u.Amount = append(u.Amount, Asset{Unit: a.Unit, Quantity: qty})
	}
	if r.InlineDatum != nil && *r.InlineDatum != "" {
		datum, err := hex.DecodeString(*r.InlineDatum)
		if err != nil {
			return UTXO{}, fmt.Errorf("utxo %s#%d: bad inline datum: %w", r.TxHash, r.OutputIndex, err)
		}
		u.InlineDatum = datum
	}
	return u, nil
}

// classifyLedgerErr folds indexer failures into the retryable bucket unless
// the API gave a conclusive non-5xx answer.
func classifyLedgerErr(err error) error {
	var se *blockfrost.StatusError
	if errors.As(err, &se) {
		if se.Transient() {
			return fmt.Errorf("%w: %v", ErrLedgerTransient, err)
		}
		return err
	}
	// Network-level failures (timeouts, refused connections) are transient.
	return fmt.Errorf("%w: %v", ErrLedgerTransient, err)
}
