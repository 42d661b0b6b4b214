// =====================================
// File: internal/pumpfun/watcher_test.go
// =====================================
package pumpfun

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-bundler/internal/solbc"
)

// rpcStub mimics getAccountInfo: null until the account "appears", then a
// bonding curve whose reserves step on every poll.
func rpcStub(t *testing.T, appearAfter int32) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)

		var value interface{}
		if n > appearAfter {
			data := make([]byte, bondingCurveMinLen)
			copy(data, BondingCurveAccountDiscriminator)
			binary.LittleEndian.PutUint64(data[8:16], 1_000_000+uint64(n)) // растущие резервы
			binary.LittleEndian.PutUint64(data[16:24], 30_000_000_000)
			value = map[string]interface{}{
				"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
				"executable": false,
				"lamports":   1_000_000,
				"owner":      PumpFunProgramID.String(),
				"rentEpoch":  0,
			}
		}
		require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      1,
			"result": map[string]interface{}{
				"context": map[string]interface{}{"slot": 1},
				"value":   value,
			},
		}))
	}))
	return server, &calls
}

func TestWatcherDeliversUpdates(t *testing.T) {
	server, _ := rpcStub(t, 2)
	defer server.Close()

	client := solbc.NewClient(server.URL, zap.NewNop())
	watcher := NewCurveWatcher(client, zap.NewNop(), 10*time.Millisecond)

	bondingCurve, err := DeriveBondingCurve(PumpFunProgramID)
	require.NoError(t, err)

	sub := watcher.Subscribe(context.Background(), bondingCurve)

	select {
	case curve, ok := <-sub.Updates:
		require.True(t, ok)
		assert.Greater(t, curve.VirtualTokenReserves, uint64(1_000_000))
		assert.Equal(t, uint64(30_000_000_000), curve.VirtualSolReserves)
	case <-time.After(5 * time.Second):
		t.Fatal("no curve update delivered")
	}

	sub.Unsubscribe()
	// channel closes after unsubscribe
	for range sub.Updates {
	}
}

func TestWatcherUnsubscribeStopsPolling(t *testing.T) {
	server, calls := rpcStub(t, 0)
	defer server.Close()

	client := solbc.NewClient(server.URL, zap.NewNop())
	watcher := NewCurveWatcher(client, zap.NewNop(), 10*time.Millisecond)

	bondingCurve, err := DeriveBondingCurve(PumpFunProgramID)
	require.NoError(t, err)

	sub := watcher.Subscribe(context.Background(), bondingCurve)
	<-sub.Updates
	sub.Unsubscribe()

	settled := calls.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, calls.Load(), "no polls may happen after unsubscribe")
}
