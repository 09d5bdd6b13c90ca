package cardano

import "errors"

var (
	// ErrInsufficientFunds is returned when an address's UTXOs cannot cover
	// the requested amount plus fee headroom.
	ErrInsufficientFunds = errors.New("insufficient funds to cover amount")

	// ErrInsufficientCollateral is returned when no lovelace-only UTXO meets
	// the collateral threshold.
	ErrInsufficientCollateral = errors.New("no suitable collateral utxo")

	// ErrNoFundsForBill is returned when the escrow address holds no UTXO
	// whose datum matches the requested bill.
	ErrNoFundsForBill = errors.New("no escrow utxos found for bill")

	// ErrMalformedDatum is returned when inline datum bytes do not decode to
	// the expected escrow record shape.
	ErrMalformedDatum = errors.New("malformed escrow datum")

	// ErrInvalidAddress is returned for addresses that are not bech32 or do
	// not carry a payment key credential.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrContractInit is returned when the validator blueprint cannot be
	// loaded or the script address cannot be derived. Fatal at startup.
	ErrContractInit = errors.New("contract initialization failed")

	// ErrLedgerTransient marks indexer failures (timeouts, 5xx) that are safe
	// to retry on the next reconciliation tick.
	ErrLedgerTransient = errors.New("transient ledger query failure")
)
