package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"promisevault/core/types"
	"promisevault/crypto"
	"promisevault/indexer"
)

// Client calls a promisevault node over JSON-RPC.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient returns a client for endpoint. A nil httpClient uses one with a
// 30 second timeout.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{endpoint: endpoint, http: httpClient}
}

// Call invokes method and decodes the result into out, which may be nil.
// Server-side failures are returned as *RPCError.
func (c *Client) Call(ctx context.Context, method string, out interface{}, params ...interface{}) error {
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		encoded, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("rpc: encode %s params: %w", method, err)
		}
		raw = append(raw, encoded)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: raw, ID: uuid.NewString()})
	if err != nil {
		return fmt.Errorf("rpc: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rpc: %s: %w", method, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxRequestBytes))
	if err != nil {
		return fmt.Errorf("rpc: read %s response: %w", method, err)
	}
	var decoded RPCResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return fmt.Errorf("rpc: decode %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if out == nil || len(decoded.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("rpc: decode %s result: %w", method, err)
	}
	return nil
}

// IsNotFound reports whether err is a not-found response.
func IsNotFound(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == codeNotFound
}

func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	var receipt types.Receipt
	if err := c.Call(ctx, "tx_send", &receipt, tx); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (c *Client) ChainInfo(ctx context.Context) (*ChainInfoResult, error) {
	var out ChainInfoResult
	if err := c.Call(ctx, "chain_info", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Account(ctx context.Context, addr crypto.Address) (*AccountResult, error) {
	var out AccountResult
	if err := c.Call(ctx, "account_get", &out, addr.String()); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CustodyAccount(ctx context.Context, id crypto.Address) (*CustodyAccountResult, error) {
	var out CustodyAccountResult
	if err := c.Call(ctx, "custody_getAccount", &out, id.String()); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Mint(ctx context.Context, symbol string) (*MintResult, error) {
	var out MintResult
	if err := c.Call(ctx, "custody_getMint", &out, symbol); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Treasury(ctx context.Context, id crypto.Address) (*TreasuryResult, error) {
	var out TreasuryResult
	if err := c.Call(ctx, "treasury_get", &out, id.String()); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Promises(ctx context.Context, id crypto.Address) ([]PromiseResult, error) {
	var out []PromiseResult
	if err := c.Call(ctx, "treasury_listPromises", &out, id.String()); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Promise(ctx context.Context, treasuryID, beneficiary crypto.Address) (*PromiseResult, error) {
	var out PromiseResult
	if err := c.Call(ctx, "promise_get", &out, treasuryID.String(), beneficiary.String()); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeriveAuthority(ctx context.Context, id crypto.Address) (*AuthorityResult, error) {
	var out AuthorityResult
	if err := c.Call(ctx, "treasury_deriveAuthority", &out, id.String()); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Events(ctx context.Context, query EventsQuery) ([]indexer.Event, error) {
	var out []indexer.Event
	if err := c.Call(ctx, "treasury_listEvents", &out, query); err != nil {
		return nil, err
	}
	return out, nil
}
