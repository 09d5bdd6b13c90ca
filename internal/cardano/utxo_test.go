package cardano

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lovelaceUTXO(txHash string, index int, quantity int64) UTXO {
	return UTXO{
		TxHash:      txHash,
		OutputIndex: index,
		Address:     "addr_test1payer",
		Amount:      []Asset{{Unit: Lovelace, Quantity: quantity}},
	}
}

func TestSelectForAmount(t *testing.T) {
	utxos := []UTXO{
		lovelaceUTXO("aa", 0, 10_000_000),
		lovelaceUTXO("bb", 1, 20_000_000),
		lovelaceUTXO("cc", 0, 30_000_000),
	}

	t.Run("first utxo covers", func(t *testing.T) {
		selected, err := SelectForAmount(utxos, 5_000_000)
		require.NoError(t, err)
		require.Len(t, selected, 1)
		assert.Equal(t, "aa", selected[0].TxHash)
	})

	t.Run("accumulates in input order", func(t *testing.T) {
		selected, err := SelectForAmount(utxos, 25_000_000)
		require.NoError(t, err)
		require.Len(t, selected, 2)
		assert.Equal(t, "aa", selected[0].TxHash)
		assert.Equal(t, "bb", selected[1].TxHash)
	})

	t.Run("over-selection is allowed, under-selection is not", func(t *testing.T) {
		selected, err := SelectForAmount(utxos, 55_000_000)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, SumLovelace(selected), int64(55_000_000))

		_, err = SelectForAmount(utxos, 60_000_001)
		assert.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("deterministic for identical input ordering", func(t *testing.T) {
		first, err := SelectForAmount(utxos, 25_000_000)
		require.NoError(t, err)
		second, err := SelectForAmount(utxos, 25_000_000)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})
}

func TestSelectCollateral(t *testing.T) {
	withAsset := UTXO{
		TxHash: "dd",
		Amount: []Asset{
			{Unit: Lovelace, Quantity: 10_000_000},
			{Unit: "b0d07d45fe9514f80213f4020e5a61241458be626841cde717cb38a7.pixel", Quantity: 1},
		},
	}

	t.Run("picks smallest qualifying lovelace-only utxo", func(t *testing.T) {
		utxos := []UTXO{
			lovelaceUTXO("aa", 0, 3_500_000),
			lovelaceUTXO("bb", 0, 5_000_000),
			withAsset,
		}
		got, err := SelectCollateral(utxos)
		require.NoError(t, err)
		assert.Equal(t, "bb", got.TxHash)
	})

	t.Run("below threshold", func(t *testing.T) {
		_, err := SelectCollateral([]UTXO{lovelaceUTXO("aa", 0, 3_500_000)})
		assert.ErrorIs(t, err, ErrInsufficientCollateral)
	})

	t.Run("multi-asset utxos never qualify", func(t *testing.T) {
		_, err := SelectCollateral([]UTXO{withAsset})
		assert.ErrorIs(t, err, ErrInsufficientCollateral)
	})

	t.Run("empty set", func(t *testing.T) {
		_, err := SelectCollateral(nil)
		assert.ErrorIs(t, err, ErrInsufficientCollateral)
	})
}

func TestFilterByBill(t *testing.T) {
	creator := testKeyAddr(t, seededHash(0x21))

	escrowUTXO := func(txHash, billID string) UTXO {
		datum, err := EncodeDatum(billID, creator)
		require.NoError(t, err)
		u := lovelaceUTXO(txHash, 0, 25_000_000)
		u.InlineDatum = datum
		return u
	}

	utxos := []UTXO{
		escrowUTXO("aa", "bill-1"),
		escrowUTXO("bb", "bill-2"),
		escrowUTXO("cc", "bill-1"),
		lovelaceUTXO("dd", 0, 1_000_000), // no datum at all
		{TxHash: "ee", Amount: []Asset{{Unit: Lovelace, Quantity: 1}}, InlineDatum: []byte{0x01, 0x02}},
	}

	t.Run("keeps only matching datums", func(t *testing.T) {
		matched, err := FilterByBill(utxos, "bill-1")
		require.NoError(t, err)
		require.Len(t, matched, 2)
		for _, u := range matched {
			assert.Contains(t, []string{"aa", "cc"}, u.TxHash)
		}
	})

	t.Run("no match", func(t *testing.T) {
		_, err := FilterByBill(utxos, "bill-none")
		assert.ErrorIs(t, err, ErrNoFundsForBill)
	})
}

func TestSumLovelace(t *testing.T) {
	utxos := make([]UTXO, 4)
	for i := range utxos {
		utxos[i] = lovelaceUTXO(fmt.Sprintf("tx%d", i), i, 25_000_000)
	}
	assert.Equal(t, int64(100_000_000), SumLovelace(utxos))
	assert.Equal(t, int64(0), SumLovelace(nil))
}
