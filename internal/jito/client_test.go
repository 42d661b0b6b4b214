// ==================================
// File: internal/jito/client_test.go
// ==================================

package jito

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func relayStub(t *testing.T, handler func(method string, params []json.RawMessage) (interface{}, *rpcError)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		result, rpcErr := handler(req.Method, req.Params)
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": 1}
		if rpcErr != nil {
			resp["error"] = rpcErr
		} else {
			resp["result"] = result
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestSendBundle(t *testing.T) {
	server := relayStub(t, func(method string, params []json.RawMessage) (interface{}, *rpcError) {
		require.Equal(t, "sendBundle", method)
		var txs []string
		require.NoError(t, json.Unmarshal(params[0], &txs))
		require.Len(t, txs, 3)
		return "bundle-123", nil
	})
	defer server.Close()

	client := NewClient([]string{server.URL}, zap.NewNop())
	id, err := client.SendBundle(context.Background(), server.URL, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, "bundle-123", id)
}

func TestSendBundleRejectsOversized(t *testing.T) {
	client := NewClient(nil, zap.NewNop())
	_, err := client.SendBundle(context.Background(), client.endpoints[0],
		[]string{"1", "2", "3", "4", "5", "6"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay limit")
}

func TestSendBundleRejectsEmpty(t *testing.T) {
	client := NewClient(nil, zap.NewNop())
	_, err := client.SendBundle(context.Background(), client.endpoints[0], nil)
	require.Error(t, err)
}

func TestSendBundleRelayError(t *testing.T) {
	server := relayStub(t, func(string, []json.RawMessage) (interface{}, *rpcError) {
		return nil, &rpcError{Code: -32602, Message: "bundle contains an invalid transaction"}
	})
	defer server.Close()

	client := NewClient([]string{server.URL}, zap.NewNop())
	_, err := client.SendBundle(context.Background(), server.URL, []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transaction")
}

func TestBroadcastBundleFirstSuccessWins(t *testing.T) {
	good := relayStub(t, func(string, []json.RawMessage) (interface{}, *rpcError) {
		return "bundle-ok", nil
	})
	defer good.Close()
	bad := relayStub(t, func(string, []json.RawMessage) (interface{}, *rpcError) {
		return nil, &rpcError{Code: -32000, Message: "simulation failed"}
	})
	defer bad.Close()

	client := NewClient([]string{bad.URL, good.URL}, zap.NewNop())
	result, err := client.BroadcastBundle(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, "bundle-ok", result.BundleID)
	assert.Equal(t, good.URL, result.Endpoint)
}

func TestBroadcastBundleAllRejected(t *testing.T) {
	var calls atomic.Int32
	server := relayStub(t, func(string, []json.RawMessage) (interface{}, *rpcError) {
		calls.Add(1)
		return nil, &rpcError{Code: -32000, Message: "rejected"}
	})
	defer server.Close()

	client := NewClient([]string{server.URL, server.URL}, zap.NewNop())
	_, err := client.BroadcastBundle(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 relay endpoints rejected")
	assert.Equal(t, int32(2), calls.Load())
}

func TestProbe(t *testing.T) {
	alive := relayStub(t, func(method string, _ []json.RawMessage) (interface{}, *rpcError) {
		require.Equal(t, "getTipAccounts", method)
		return tipAccounts, nil
	})
	defer alive.Close()
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer dead.Close()

	client := NewClient([]string{alive.URL, dead.URL}, zap.NewNop())
	reachable := client.Probe(context.Background())
	require.Len(t, reachable, 1)
	assert.Equal(t, alive.URL, reachable[0])
}

func TestRandomTipAccountIsFromPool(t *testing.T) {
	for i := 0; i < 50; i++ {
		tip := RandomTipAccount().String()
		assert.Contains(t, tipAccounts, tip)
	}
}
