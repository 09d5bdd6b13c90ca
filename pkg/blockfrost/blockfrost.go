// Package blockfrost is a thin client for a Blockfrost-compatible Cardano
// indexing service. It only covers the two queries this application needs:
// address UTXO snapshots and transaction lookups.
package blockfrost

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client represents a Blockfrost API client.
type Client struct {
	APIURL    string
	ProjectID string
	http      *http.Client
}

// NewClient creates a new Blockfrost client. The timeout bounds every query;
// the indexer is a third-party network service and must be assumed flaky.
func NewClient(apiURL, projectID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		APIURL:    strings.TrimSuffix(apiURL, "/"),
		ProjectID: projectID,
		http:      &http.Client{Timeout: timeout},
	}
}

// Amount is one (unit, quantity) pair of a UTXO as reported by the API.
// Quantities arrive as decimal strings.
type Amount struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

// UTXO mirrors the Blockfrost address UTXO shape.
type UTXO struct {
	Address             string   `json:"address"`
	TxHash              string   `json:"tx_hash"`
	OutputIndex         int      `json:"output_index"`
	Amount              []Amount `json:"amount"`
	Block               string   `json:"block"`
	DataHash            *string  `json:"data_hash"`
	InlineDatum         *string  `json:"inline_datum"`
	ReferenceScriptHash *string  `json:"reference_script_hash"`
}

// StatusError is returned for non-2xx API responses so callers can
// distinguish transient indexer failures from conclusive answers.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("blockfrost: status %d: %s", e.Code, e.Body)
}

// Transient reports whether the failure is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

const utxoPageSize = 100

// AddressUTXOs fetches the full UTXO snapshot at an address, following
// pagination. An address the chain has never seen yields an empty set.
func (c *Client) AddressUTXOs(ctx context.Context, address string) ([]UTXO, error) {
	var all []UTXO
	for page := 1; ; page++ {
		path := fmt.Sprintf("/addresses/%s/utxos?count=%d&page=%d", address, utxoPageSize, page)
		body, err := c.get(ctx, path)
		if err != nil {
			if se, ok := err.(*StatusError); ok && se.Code == http.StatusNotFound {
				return nil, nil
			}
			return nil, err
		}
		var utxos []UTXO
		if err := json.Unmarshal(body, &utxos); err != nil {
			return nil, fmt.Errorf("blockfrost: decode utxos: %w", err)
		}
		all = append(all, utxos...)
		if len(utxos) < utxoPageSize {
			return all, nil
		}
	}
}

// TxExists reports whether the indexer knows the transaction. A 404 means
// the transaction has not reached the chain (yet), not that the query failed.
func (c *Client) TxExists(ctx context.Context, txHash string) (bool, error) {
	_, err := c.get(ctx, "/txs/"+txHash)
	if err != nil {
		if se, ok := err.(*StatusError); ok && se.Code == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("blockfrost: create request: %w", err)
	}
	req.Header.Set("project_id", c.ProjectID)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blockfrost: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("blockfrost: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
