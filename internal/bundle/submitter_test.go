// =======================================
// File: internal/bundle/submitter_test.go
// =======================================
package bundle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-bundler/internal/jito"
	"github.com/rovshanmuradov/pump-bundler/internal/retry"
	"github.com/rovshanmuradov/pump-bundler/internal/solbc"
	"github.com/rovshanmuradov/pump-bundler/internal/wallet"
)

type fakeSubmitChain struct {
	tipStatus *rpc.SignatureStatusesResult
	sent      []*solana.Transaction
}

func (f *fakeSubmitChain) GetRecentBlockhash(context.Context) (solana.Hash, error) {
	return testBlockhash(), nil
}

func (f *fakeSubmitChain) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, _ solbc.TransactionOptions) (solana.Signature, error) {
	f.sent = append(f.sent, tx)
	return tx.Signatures[0], nil
}

func (f *fakeSubmitChain) SignatureStatus(context.Context, solana.Signature) (*rpc.SignatureStatusesResult, error) {
	return f.tipStatus, nil
}

func (f *fakeSubmitChain) WaitForTransactionConfirmation(context.Context, solana.Signature, time.Duration, time.Duration) error {
	return nil
}

// relayServer answers getTipAccounts and sendBundle like a healthy endpoint.
func relayServer(t *testing.T, bundleID string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result interface{}
		switch req.Method {
		case "getTipAccounts":
			result = []string{"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5"}
		case "sendBundle":
			result = bundleID
		}
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": 1, "result": result,
		}))
	}))
}

func testSubmitter(t *testing.T, relayURL string, chain ChainClient, opts SubmitOptions) *Submitter {
	t.Helper()
	if opts.TipLamports == 0 {
		opts.TipLamports = 1_000_000
	}
	if opts.RetryPolicy.MaxAttempts == 0 {
		opts.RetryPolicy = retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond}
	}
	opts.FallbackDelay = time.Millisecond
	relay := jito.NewClient([]string{relayURL}, zap.NewNop())
	return NewSubmitter(relay, chain, zap.NewNop(), opts)
}

func TestSubmitConfirmed(t *testing.T) {
	server := relayServer(t, "bundle-42")
	defer server.Close()

	chain := &fakeSubmitChain{
		tipStatus: &rpc.SignatureStatusesResult{ConfirmationStatus: rpc.ConfirmationStatusConfirmed},
	}
	tipPayer, err := wallet.Generate()
	require.NoError(t, err)

	b := builtBundle(t, 2)
	submitter := testSubmitter(t, server.URL, chain, SubmitOptions{ConfirmTimeout: 10 * time.Second})

	result, err := submitter.Submit(context.Background(), b, tipPayer)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, result.State)
	assert.Equal(t, "bundle-42", result.BundleID)
	assert.False(t, result.Degraded)
	assert.False(t, result.TipSignature.IsZero())
	assert.Len(t, result.Signatures, 3)
}

func TestSubmitRejectedOnChain(t *testing.T) {
	server := relayServer(t, "bundle-43")
	defer server.Close()

	chain := &fakeSubmitChain{
		tipStatus: &rpc.SignatureStatusesResult{
			Err: map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
		},
	}
	tipPayer, err := wallet.Generate()
	require.NoError(t, err)

	submitter := testSubmitter(t, server.URL, chain, SubmitOptions{
		ConfirmTimeout: 10 * time.Second,
		RetryPolicy:    retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond},
	})

	result, err := submitter.Submit(context.Background(), builtBundle(t, 1), tipPayer)
	require.Error(t, err)
	assert.Equal(t, StateRejected, result.State)
	assert.Empty(t, chain.sent, "an on-chain rejection must not degrade to sequential submission")
}

func TestSubmitFallbackWhenRelaysDown(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer dead.Close()

	chain := &fakeSubmitChain{}
	tipPayer, err := wallet.Generate()
	require.NoError(t, err)

	b := builtBundle(t, 3)
	submitter := testSubmitter(t, dead.URL, chain, SubmitOptions{})

	result, err := submitter.Submit(context.Background(), b, tipPayer)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, result.State)
	assert.True(t, result.Degraded, "fallback result must report degraded mode")
	assert.Len(t, chain.sent, 4, "every bundle transaction lands individually")
}

func TestSubmitFallbackDisabled(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer dead.Close()

	chain := &fakeSubmitChain{}
	tipPayer, err := wallet.Generate()
	require.NoError(t, err)

	submitter := testSubmitter(t, dead.URL, chain, SubmitOptions{DisableFallback: true})

	result, err := submitter.Submit(context.Background(), builtBundle(t, 1), tipPayer)
	require.ErrorIs(t, err, ErrRelayUnavailable)
	assert.Equal(t, StateRejected, result.State)
	assert.Empty(t, chain.sent)
}

func TestSubmitStopsWhenBlockhashOutlived(t *testing.T) {
	var sendBundleCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result interface{}
		switch req.Method {
		case "getTipAccounts":
			result = []string{"96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5"}
		case "sendBundle":
			sendBundleCalls++
			result = "bundle-45"
		}
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": 1, "result": result,
		}))
	}))
	defer server.Close()

	chain := &fakeSubmitChain{}
	tipPayer, err := wallet.Generate()
	require.NoError(t, err)

	submitter := testSubmitter(t, server.URL, chain, SubmitOptions{
		BlockhashTTL: time.Nanosecond,
		RetryPolicy:  retry.Policy{MaxAttempts: 5, BaseDelay: time.Millisecond},
	})

	result, err := submitter.Submit(context.Background(), builtBundle(t, 1), tipPayer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blockhash expired")
	assert.Equal(t, StateTimedOut, result.State)
	assert.Zero(t, sendBundleCalls, "stale bundle bytes must not be resubmitted")
	assert.Empty(t, chain.sent, "stale bundle bytes must not fall back to sequential submission")
}

func TestSubmitZeroTipRejected(t *testing.T) {
	server := relayServer(t, "bundle-44")
	defer server.Close()

	chain := &fakeSubmitChain{}
	tipPayer, err := wallet.Generate()
	require.NoError(t, err)

	relay := jito.NewClient([]string{server.URL}, zap.NewNop())
	submitter := NewSubmitter(relay, chain, zap.NewNop(), SubmitOptions{TipLamports: 0})

	_, err = submitter.Submit(context.Background(), builtBundle(t, 1), tipPayer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tip")
}
