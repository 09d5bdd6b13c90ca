package cardano

import "fmt"

// collateralThresholdLovelace is the minimum value a lovelace-only UTXO must
// hold to qualify as script collateral.
const collateralThresholdLovelace = 4_000_000

// Asset is a (unit, quantity) pair held by a UTXO. The native currency uses
// the unit "lovelace"; every other unit is a native asset identifier.
type Asset struct {
	Unit     string
	Quantity int64
}

// UTXO is an unspent transaction output observed at an address. Snapshots
// are read-only: the ledger owns them, this system only selects from them.
type UTXO struct {
	TxHash      string
	OutputIndex int
	Address     string
	Amount      []Asset
	InlineDatum []byte
}

// LovelaceAmount returns the UTXO's native currency quantity.
func (u UTXO) LovelaceAmount() int64 {
	for _, a := range u.Amount {
		if a.Unit == Lovelace {
			return a.Quantity
		}
	}
	return 0
}

// onlyLovelace reports whether the UTXO carries no native assets.
func (u UTXO) onlyLovelace() bool {
	for _, a := range u.Amount {
		if a.Unit != Lovelace {
			return false
		}
	}
	return len(u.Amount) > 0
}

// SelectForAmount accumulates UTXOs in input order until their combined
// lovelace meets target. Over-selection is fine, change goes back to the
// payer. Selection is deterministic for identical input ordering.
func SelectForAmount(utxos []UTXO, targetLovelace int64) ([]UTXO, error) {
	var selected []UTXO
	var total int64
	for _, u := range utxos {
		if total >= targetLovelace {
			break
		}
		lv := u.LovelaceAmount()
		if lv == 0 {
			continue
		}
		selected = append(selected, u)
		total += lv
	}
	if total < targetLovelace {
		return nil, fmt.Errorf("%w: have %d lovelace, need %d", ErrInsufficientFunds, total, targetLovelace)
	}
	return selected, nil
}

// SelectCollateral picks the smallest lovelace-only UTXO holding at least the
// collateral threshold, minimizing the value locked while the script runs.
func SelectCollateral(utxos []UTXO) (UTXO, error) {
	var best UTXO
	found := false
	for _, u := range utxos {
		if !u.onlyLovelace() {
			continue
		}
		lv := u.LovelaceAmount()
		if lv < collateralThresholdLovelace {
			continue
		}
		if !found || lv < best.LovelaceAmount() {
			best = u
			found = true
		}
	}
	if !found {
		return UTXO{}, fmt.Errorf("%w: need a lovelace-only utxo of at least %d", ErrInsufficientCollateral, collateralThresholdLovelace)
	}
	return best, nil
}

// FilterByBill retains escrow UTXOs whose inline datum binds them to billID.
// UTXOs with missing or undecodable datums belong to someone else's deposit
// and are skipped rather than treated as errors.
func FilterByBill(utxos []UTXO, billID string) ([]UTXO, error) {
	var matched []UTXO
	for _, u := range utxos {
		if len(u.InlineDatum) == 0 {
			continue
		}
		datum, err := DecodeDatum(u.InlineDatum)
		if err != nil {
			continue
		}
		if datum.BillID == billID {
			matched = append(matched, u)
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: bill %s", ErrNoFundsForBill, billID)
	}
	return matched, nil
}

// SumLovelace totals the native currency across a UTXO set.
func SumLovelace(utxos []UTXO) int64 {
	var total int64
	for _, u := range utxos {
		total += u.LovelaceAmount()
	}
	return total
}
