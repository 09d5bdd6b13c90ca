package cardano

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testKeyAddr builds a valid bech32 enterprise address whose payment
// credential is the given key hash.
func testKeyAddr(t *testing.T, keyHash []byte) string {
	t.Helper()
	require.Len(t, keyHash, keyHashLen)
	payload := append([]byte{0x60}, keyHash...)
	addr, err := EncodeAddress("addr_test", payload)
	require.NoError(t, err)
	return addr
}

// testScriptAddr builds a valid bech32 address with a script payment
// credential.
func testScriptAddr(t *testing.T, scriptHash []byte) string {
	t.Helper()
	require.Len(t, scriptHash, keyHashLen)
	payload := append([]byte{0x70}, scriptHash...)
	addr, err := EncodeAddress("addr_test", payload)
	require.NoError(t, err)
	return addr
}

func seededHash(seed byte) []byte {
	return bytes.Repeat([]byte{seed}, keyHashLen)
}

func TestPaymentKeyHash(t *testing.T) {
	keyHash := seededHash(0xAB)
	addr := testKeyAddr(t, keyHash)

	got, err := PaymentKeyHash(addr)
	require.NoError(t, err)
	assert.Equal(t, keyHash, got)
}

func TestPaymentKeyHashRejectsScriptCredential(t *testing.T) {
	addr := testScriptAddr(t, seededHash(0x11))

	_, err := PaymentKeyHash(addr)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestPaymentKeyHashRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		addr string
	}{
		{"empty", ""},
		{"not bech32", "definitely-not-an-address"},
		{"wrong prefix", "nhb1qqqqqqqqqqqqqqqqqqqqqqqqqqqqqqqq5uhnqc"},
		{"checksum broken", "addr_test1aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PaymentKeyHash(tt.addr)
			assert.ErrorIs(t, err, ErrInvalidAddress)
		})
	}
}

func TestPaymentKeyHashRejectsShortPayload(t *testing.T) {
	// Header byte plus a truncated credential.
	addr, err := EncodeAddress("addr_test", []byte{0x60, 0x01, 0x02})
	require.NoError(t, err)

	_, err = PaymentKeyHash(addr)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}
