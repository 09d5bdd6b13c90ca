package cardano

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// minFeeLovelace is the headroom selected on top of the payment amount so the
// wallet can balance the final fee without re-selecting inputs.
const minFeeLovelace = 200_000

// settleFeeReserveLovelace is withheld from the settlement payout to cover
// the script execution fee.
const settleFeeReserveLovelace = 4_000_000

// TxBuilder assembles unsigned transactions. It never signs and never
// submits: the encoded artifact crosses to the payer's wallet, which owns
// the keys.
type TxBuilder struct {
	contract *Contract
	ledger   Ledger
}

// NewTxBuilder creates a builder over the process-wide contract state.
func NewTxBuilder(contract *Contract, ledger Ledger) *TxBuilder {
	return &TxBuilder{contract: contract, ledger: ledger}
}

// PaymentParams describes one participant's share payment into escrow.
type PaymentParams struct {
	BillID         string
	CreatorAddress string
	AmountLovelace int64
	PayerAddress   string
}

type txInput struct {
	TxHash      string `cbor:"tx_hash"`
	OutputIndex int    `cbor:"output_index"`
}

type txAmount struct {
	Unit     string `cbor:"unit"`
	Quantity int64  `cbor:"quantity"`
}

type txOutput struct {
	Address     string     `cbor:"address"`
	Amount      []txAmount `cbor:"amount"`
	InlineDatum []byte     `cbor:"inline_datum,omitempty"`
}

// scriptSpend is a script-governed input: the validator bytes, the datum
// reference and the redeemer authorizing the spend travel with it.
type scriptSpend struct {
	Input              txInput    `cbor:"input"`
	Amount             []txAmount `cbor:"amount"`
	ScriptCbor         string     `cbor:"script_cbor"`
	InlineDatumPresent bool       `cbor:"inline_datum_present"`
	Redeemer           []byte     `cbor:"redeemer"`
}

type unsignedTx struct {
	Inputs          []txInput     `cbor:"inputs,omitempty"`
	ScriptInputs    []scriptSpend `cbor:"script_inputs,omitempty"`
	Outputs         []txOutput    `cbor:"outputs"`
	Fee             int64         `cbor:"fee"`
	ChangeAddress   string        `cbor:"change_address"`
	Collateral      *txInput      `cbor:"collateral,omitempty"`
	RequiredSigners [][]byte      `cbor:"required_signers,omitempty"`
}

func (t unsignedTx) encode() (string, error) {
	data, err := cbor.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode unsigned tx: %w", err)
	}
	return hex.EncodeToString(data), nil
}

// BuildPayment produces the unsigned transaction moving one participant's
// share into escrow: a single output at the script address carrying the
// share amount and an inline datum binding it to the bill.
func (b *TxBuilder) BuildPayment(ctx context.Context, p PaymentParams) (string, error) {
	datum, err := EncodeDatum(p.BillID, p.CreatorAddress)
	if err != nil {
		return "", err
	}

	utxos, err := b.ledger.UTXOsAt(ctx, p.PayerAddress)
	if err != nil {
		return "", fmt.Errorf("fetch payer utxos: %w", err)
	}

	selected, err := SelectForAmount(utxos, p.AmountLovelace+minFeeLovelace)
	if err != nil {
		return "", err
	}

	tx := unsignedTx{
		Outputs: []txOutput{{
			Address:     b.contract.ScriptAddress(),
			Amount:      []txAmount{{Unit: Lovelace, Quantity: p.AmountLovelace}},
			InlineDatum: datum,
		}},
		Fee:           minFeeLovelace,
		ChangeAddress: p.PayerAddress,
	}
	for _, u := range selected {
		tx.Inputs = append(tx.Inputs, txInput{TxHash: u.TxHash, OutputIndex: u.OutputIndex})
	}

	return tx.encode()
}

// BuildSettlement produces the unsigned transaction releasing every escrow
// output tagged with billID to the creator. The UTXO snapshots are fetched
// once and treated as immutable for the whole build; a concurrently spent
// UTXO surfaces later as a submission failure, not here.
func (b *TxBuilder) BuildSettlement(ctx context.Context, billID, creatorAddress string) (string, error) {
	redeemer, err := EncodeSettleRedeemer(billID)
	if err != nil {
		return "", err
	}
	creatorKeyHash, err := PaymentKeyHash(creatorAddress)
	if err != nil {
		return "", err
	}

	escrowUtxos, err := b.ledger.UTXOsAt(ctx, b.contract.ScriptAddress())
	if err != nil {
		return "", fmt.Errorf("fetch escrow utxos: %w", err)
	}
	creatorUtxos, err := b.ledger.UTXOsAt(ctx, creatorAddress)
	if err != nil {
		return "", fmt.Errorf("fetch creator utxos: %w", err)
	}

	billUtxos, err := FilterByBill(escrowUtxos, billID)
	if err != nil {
		return "", err
	}
	collateral, err := SelectCollateral(creatorUtxos)
	if err != nil {
		return "", err
	}

	total := SumLovelace(billUtxos)
	payout := total - settleFeeReserveLovelace
	if payout <= 0 {
		return "", fmt.Errorf("%w: escrow holds %d lovelace, fee reserve is %d", ErrInsufficientFunds, total, settleFeeReserveLovelace)
	}

	tx := unsignedTx{
		Outputs: []txOutput{{
			Address: creatorAddress,
			Amount:  []txAmount{{Unit: Lovelace, Quantity: payout}},
		}},
		Fee:             settleFeeReserveLovelace,
		ChangeAddress:   creatorAddress,
		Collateral:      &txInput{TxHash: collateral.TxHash, OutputIndex: collateral.OutputIndex},
		RequiredSigners: [][]byte{creatorKeyHash},
	}
	for _, u := range billUtxos {
		amounts := make([]txAmount, 0, len(u.Amount))
		for _, a := range u.Amount {
			amounts = append(amounts, txAmount{Unit: a.Unit, Quantity: a.Quantity})
		}
		tx.ScriptInputs = append(tx.ScriptInputs, scriptSpend{
			Input:              txInput{TxHash: u.TxHash, OutputIndex: u.OutputIndex},
			Amount:             amounts,
			ScriptCbor:         b.contract.ScriptCbor(),
			InlineDatumPresent: true,
			Redeemer:           redeemer,
		})
	}

	return tx.encode()
}

// DecodeUnsignedTx parses a hex-encoded unsigned transaction artifact.
// Used by tests and diagnostic tooling; wallets treat the string as opaque.
func DecodeUnsignedTx(encoded string) (map[string]interface{}, error) {
	raw, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode unsigned tx hex: %w", err)
	}
	var out map[string]interface{}
	if err := cbor.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode unsigned tx cbor: %w", err)
	}
	return out, nil
}
