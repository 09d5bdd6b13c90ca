package cardano

import (
	"fmt"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"
)

// plutusConstr0Tag is the CBOR tag for a Plutus data constructor with
// alternative 0. Alternatives 0..6 map to tags 121..127.
const plutusConstr0Tag = 121

// EscrowDatum is the on-chain record binding an escrow output to one bill.
// It is written as an inline datum on every payment output and read back
// when the creator settles.
type EscrowDatum struct {
	BillID         string
	CreatorKeyHash []byte
}

// EncodeDatum serializes the escrow record for billID and the creator's
// address as Plutus data: constructor 0 with two byte-string fields.
func EncodeDatum(billID, creatorAddress string) ([]byte, error) {
	if billID == "" {
		return nil, fmt.Errorf("%w: empty bill id", ErrMalformedDatum)
	}
	keyHash, err := PaymentKeyHash(creatorAddress)
	if err != nil {
		return nil, err
	}
	data, err := cbor.Marshal(cbor.Tag{
		Number:  plutusConstr0Tag,
		Content: []interface{}{[]byte(billID), keyHash},
	})
	if err != nil {
		return nil, fmt.Errorf("encode escrow datum: %w", err)
	}
	return data, nil
}

// DecodeDatum is the inverse of EncodeDatum.
func DecodeDatum(data []byte) (EscrowDatum, error) {
	var tag cbor.Tag
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return EscrowDatum{}, fmt.Errorf("%w: %v", ErrMalformedDatum, err)
	}
	if tag.Number != plutusConstr0Tag {
		return EscrowDatum{}, fmt.Errorf("%w: unexpected constructor tag %d", ErrMalformedDatum, tag.Number)
	}
	fields, ok := tag.Content.([]interface{})
	if !ok || len(fields) != 2 {
		return EscrowDatum{}, fmt.Errorf("%w: expected 2 fields", ErrMalformedDatum)
	}
	billIDBytes, ok := fields[0].([]byte)
	if !ok {
		return EscrowDatum{}, fmt.Errorf("%w: bill id field is not a byte string", ErrMalformedDatum)
	}
	if !utf8.Valid(billIDBytes) {
		return EscrowDatum{}, fmt.Errorf("%w: bill id is not valid utf-8", ErrMalformedDatum)
	}
	keyHash, ok := fields[1].([]byte)
	if !ok {
		return EscrowDatum{}, fmt.Errorf("%w: key hash field is not a byte string", ErrMalformedDatum)
	}
	return EscrowDatum{
		BillID:         string(billIDBytes),
		CreatorKeyHash: keyHash,
	}, nil
}

// EncodeSettleRedeemer serializes the spend-time proof for releasing a
// bill's escrow outputs: constructor 0 with the bill id as its only field.
func EncodeSettleRedeemer(billID string) ([]byte, error) {
	if billID == "" {
		return nil, fmt.Errorf("%w: empty bill id", ErrMalformedDatum)
	}
	data, err := cbor.Marshal(cbor.Tag{
		Number:  plutusConstr0Tag,
		Content: []interface{}{[]byte(billID)},
	})
	if err != nil {
		return nil, fmt.Errorf("encode settle redeemer: %w", err)
	}
	return data, nil
}
