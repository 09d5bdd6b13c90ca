package cardano

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
)

// Network selects the address prefix and header used for the script address.
type Network string

const (
	Testnet Network = "testnet"
	Mainnet Network = "mainnet"
)

// plutusV3ScriptTag prefixes script bytes before hashing, per the ledger's
// script language tagging (PlutusV3 = 0x03).
const plutusV3ScriptTag = 0x03

// Contract holds the compiled validator and its script address, computed once
// at process start. No per-bill parameterization: every bill shares the same
// escrow address and is distinguished by its datum.
type Contract struct {
	scriptCbor    []byte
	scriptAddress string
	network       Network
}

// blueprint matches the relevant slice of an Aiken/Plutus blueprint artifact.
type blueprint struct {
	Validators []struct {
		Title        string `json:"title"`
		CompiledCode string `json:"compiledCode"`
		Hash         string `json:"hash"`
	} `json:"validators"`
}

// LoadContract reads the blueprint file, wraps the compiled code in its CBOR
// envelope and derives the escrow script address for the given network.
// A failure here is fatal to the process: without a script address no
// transaction can ever be built.
func LoadContract(blueprintPath string, network Network) (*Contract, error) {
	raw, err := os.ReadFile(blueprintPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read blueprint: %v", ErrContractInit, err)
	}
	var bp blueprint
	if err := json.Unmarshal(raw, &bp); err != nil {
		return nil, fmt.Errorf("%w: parse blueprint: %v", ErrContractInit, err)
	}
	if len(bp.Validators) == 0 || bp.Validators[0].CompiledCode == "" {
		return nil, fmt.Errorf("%w: blueprint has no compiled validator", ErrContractInit)
	}
	compiled, err := hex.DecodeString(bp.Validators[0].CompiledCode)
	if err != nil {
		return nil, fmt.Errorf("%w: compiled code is not hex: %v", ErrContractInit, err)
	}

	scriptCbor, err := cbor.Marshal(compiled)
	if err != nil {
		return nil, fmt.Errorf("%w: wrap compiled code: %v", ErrContractInit, err)
	}

	addr, err := scriptAddress(scriptCbor, network)
	if err != nil {
		return nil, err
	}

	return &Contract{
		scriptCbor:    scriptCbor,
		scriptAddress: addr,
		network:       network,
	}, nil
}

// ScriptAddress returns the shared escrow address every bill pays into.
func (c *Contract) ScriptAddress() string {
	return c.scriptAddress
}

// ScriptCbor returns the hex-encoded validator attached to settlement inputs.
func (c *Contract) ScriptCbor() string {
	return hex.EncodeToString(c.scriptCbor)
}

// Network returns the network the contract was initialized for.
func (c *Contract) Network() Network {
	return c.network
}

// scriptAddress derives the enterprise script address: header byte with the
// script payment credential bit set, followed by blake2b-224 of the tagged
// script bytes.
func scriptAddress(scriptCbor []byte, network Network) (string, error) {
	hasher, err := blake2b.New(keyHashLen, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrContractInit, err)
	}
	hasher.Write([]byte{plutusV3ScriptTag})
	hasher.Write(scriptCbor)
	scriptHash := hasher.Sum(nil)

	var header byte
	var hrp string
	switch network {
	case Mainnet:
		header = 0x71
		hrp = "addr"
	case Testnet:
		header = 0x70
		hrp = "addr_test"
	default:
		return "", fmt.Errorf("%w: unknown network %q", ErrContractInit, network)
	}

	payload := append([]byte{header}, scriptHash...)
	addr, err := EncodeAddress(hrp, payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrContractInit, err)
	}
	return addr, nil
}
