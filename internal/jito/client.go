// =============================
// File: internal/jito/client.go
// =============================

// Package jito is the priority-relay boundary: it submits signed transaction
// bundles to block-engine endpoints for all-or-nothing inclusion, paid for by
// a tip transfer to one of the relay's tip accounts.
package jito

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultEndpoints is the fixed pool of regional block-engine URLs. Endpoints
// are redundant, not partitioned: the same bundle goes to all of them.
var DefaultEndpoints = []string{
	"https://mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://amsterdam.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://frankfurt.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://ny.mainnet.block-engine.jito.wtf/api/v1/bundles",
	"https://tokyo.mainnet.block-engine.jito.wtf/api/v1/bundles",
}

// tipAccounts is the fixed pool of relay tip destinations.
var tipAccounts = []string{
	"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5",
	"HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe",
	"Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY",
	"ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49",
	"DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh",
	"ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt",
	"DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL",
	"3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT",
}

// MaxBundleTransactions is the relay's hard per-bundle limit.
const MaxBundleTransactions = 5

// Client talks JSON-RPC to every configured endpoint.
type Client struct {
	endpoints []string
	http      *http.Client
	logger    *zap.Logger
}

func NewClient(endpoints []string, logger *zap.Logger) *Client {
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}
	return &Client{
		endpoints: endpoints,
		http:      &http.Client{Timeout: 10 * time.Second},
		logger:    logger.Named("jito"),
	}
}

// Endpoints returns the configured endpoint pool.
func (c *Client) Endpoints() []string {
	return c.endpoints
}

// RandomTipAccount picks one tip destination from the fixed pool.
func RandomTipAccount() solana.PublicKey {
	return solana.MustPublicKeyFromBase58(tipAccounts[rand.Intn(len(tipAccounts))])
}

type rpcRequest struct {
	ID      int64         `json:"id"`
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("relay error %d: %s", e.Code, e.Message)
}

func (c *Client) call(ctx context.Context, endpoint, method string, params []interface{}, result interface{}) error {
	payload, err := json.Marshal(rpcRequest{
		ID:      1,
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request to %s failed: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s to %s returned status %d: %s", method, endpoint, resp.StatusCode, string(body))
	}

	var parsed rpcResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if parsed.Error != nil {
		return parsed.Error
	}
	if result != nil {
		if err := json.Unmarshal(parsed.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
	}
	return nil
}

// SendBundle submits the ordered base58-encoded transaction list to a single
// endpoint and returns the relay's bundle id.
func (c *Client) SendBundle(ctx context.Context, endpoint string, txsBase58 []string) (string, error) {
	if len(txsBase58) == 0 {
		return "", fmt.Errorf("cannot send an empty bundle")
	}
	if len(txsBase58) > MaxBundleTransactions {
		return "", fmt.Errorf("bundle has %d transactions, relay limit is %d", len(txsBase58), MaxBundleTransactions)
	}

	var bundleID string
	if err := c.call(ctx, endpoint, "sendBundle", []interface{}{txsBase58}, &bundleID); err != nil {
		return "", err
	}
	return bundleID, nil
}

// BroadcastResult is the outcome of a fan-out submission.
type BroadcastResult struct {
	BundleID string
	Endpoint string
}

// BroadcastBundle sends the same bundle to every endpoint concurrently and
// returns as soon as one accepts. If every endpoint rejects, the combined
// per-endpoint errors are returned so the caller can log and retry.
func (c *Client) BroadcastBundle(ctx context.Context, txsBase58 []string) (*BroadcastResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type attempt struct {
		result *BroadcastResult
		err    error
	}
	results := make(chan attempt, len(c.endpoints))

	var wg sync.WaitGroup
	for _, endpoint := range c.endpoints {
		wg.Add(1)
		go func(endpoint string) {
			defer wg.Done()
			bundleID, err := c.SendBundle(ctx, endpoint, txsBase58)
			if err != nil {
				results <- attempt{err: fmt.Errorf("%s: %w", endpoint, err)}
				return
			}
			results <- attempt{result: &BroadcastResult{BundleID: bundleID, Endpoint: endpoint}}
		}(endpoint)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var errs []error
	for a := range results {
		if a.result != nil {
			// Остальные запросы отменяем: достаточно одного принятия.
			cancel()
			c.logger.Info("Bundle accepted by relay",
				zap.String("endpoint", a.result.Endpoint),
				zap.String("bundle_id", a.result.BundleID))
			return a.result, nil
		}
		errs = append(errs, a.err)
	}

	return nil, fmt.Errorf("all %d relay endpoints rejected the bundle: %v", len(c.endpoints), errs)
}

// Probe checks endpoint availability with a lightweight getTipAccounts call.
// It returns the endpoints that answered; an empty slice means the priority
// channel is unreachable and the caller may fall back to sequential RPC
// submission.
func (c *Client) Probe(ctx context.Context) []string {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	var alive []string

	g, probeCtx := errgroup.WithContext(probeCtx)
	for _, endpoint := range c.endpoints {
		endpoint := endpoint
		g.Go(func() error {
			var accounts []string
			if err := c.call(probeCtx, endpoint, "getTipAccounts", []interface{}{}, &accounts); err != nil {
				c.logger.Debug("Relay probe failed",
					zap.String("endpoint", endpoint),
					zap.Error(err))
				return nil // probe failures are collected, not fatal
			}
			mu.Lock()
			alive = append(alive, endpoint)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return alive
}

// BundleStatuses queries the relay for the landed status of previously
// submitted bundles.
func (c *Client) BundleStatuses(ctx context.Context, endpoint string, bundleIDs []string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.call(ctx, endpoint, "getBundleStatuses", []interface{}{bundleIDs}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}
