package cardano

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// keyHashLen is the length of a blake2b-224 payment credential hash.
const keyHashLen = 28

// PaymentKeyHash extracts the payment-key credential hash from a bech32
// Shelley address. Script-credential addresses cannot authorize a settlement
// with a signature, so they are rejected as invalid here.
func PaymentKeyHash(address string) ([]byte, error) {
	payload, err := decodeAddress(address)
	if err != nil {
		return nil, err
	}
	header := payload[0]
	// Header bit 4 distinguishes the payment part: 0 = key hash, 1 = script hash.
	if (header>>4)&0x01 != 0 {
		return nil, fmt.Errorf("%w: payment credential is a script, not a key", ErrInvalidAddress)
	}
	if len(payload) < 1+keyHashLen {
		return nil, fmt.Errorf("%w: address payload too short", ErrInvalidAddress)
	}
	hash := make([]byte, keyHashLen)
	copy(hash, payload[1:1+keyHashLen])
	return hash, nil
}

// decodeAddress unpacks a bech32 address into its raw header+credential
// payload. Cardano addresses exceed the 90-character bech32 limit, hence
// DecodeNoLimit.
func decodeAddress(address string) ([]byte, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("%w: empty address", ErrInvalidAddress)
	}
	hrp, data, err := bech32.DecodeNoLimit(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if hrp != "addr" && hrp != "addr_test" {
		return nil, fmt.Errorf("%w: unexpected prefix %q", ErrInvalidAddress, hrp)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidAddress)
	}
	return payload, nil
}

// EncodeAddress packs a header+credential payload into bech32 with the
// given human-readable prefix.
func EncodeAddress(hrp string, payload []byte) (string, error) {
	conv, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert bits: %w", err)
	}
	encoded, err := bech32.Encode(hrp, conv)
	if err != nil {
		return "", fmt.Errorf("bech32 encode: %w", err)
	}
	return encoded, nil
}
