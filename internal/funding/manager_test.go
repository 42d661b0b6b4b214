// ======================================
// File: internal/funding/manager_test.go
// ======================================
package funding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-bundler/internal/retry"
	"github.com/rovshanmuradov/pump-bundler/internal/solbc"
)

type fakeChain struct {
	balances  map[solana.PublicKey]uint64
	sent      []*solana.Transaction
	sendErr   error
	confirmed bool
}

func (f *fakeChain) GetRecentBlockhash(context.Context) (solana.Hash, error) {
	return solana.HashFromBytes(make([]byte, 32)), nil
}

func (f *fakeChain) GetBalance(_ context.Context, pubkey solana.PublicKey, _ rpc.CommitmentType) (uint64, error) {
	return f.balances[pubkey], nil
}

func (f *fakeChain) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, _ solbc.TransactionOptions) (solana.Signature, error) {
	if f.sendErr != nil {
		return solana.Signature{}, f.sendErr
	}
	f.sent = append(f.sent, tx)
	return tx.Signatures[0], nil
}

func (f *fakeChain) WaitForTransactionConfirmation(context.Context, solana.Signature, time.Duration, time.Duration) error {
	f.confirmed = true
	return nil
}

func TestExecuteFundsAllWallets(t *testing.T) {
	wallets := testWallets(t, 3)
	distributor := testWallets(t, 1)[0]
	authority := testWallets(t, 1)[0]

	plan, err := Plan(wallets, 1_000_000, 0, 500_000, 0, nil)
	require.NoError(t, err)

	chain := &fakeChain{balances: map[solana.PublicKey]uint64{
		distributor.PublicKey: 100_000_000,
		authority.PublicKey:   100_000_000,
	}}
	manager := NewManager(chain, zap.NewNop(), Options{
		ComputeUnitLimit: 200_000,
		ComputeUnitPrice: 5_000,
		RetryPolicy:      retry.Policy{MaxAttempts: 1, BaseDelay: time.Millisecond},
	})

	result, err := manager.Execute(context.Background(), plan, distributor, authority, 10_000_000, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(4_500_000), result.TotalDistributed)
	assert.True(t, chain.confirmed)

	// compute budget pair plus one transfer per wallet
	require.Len(t, chain.sent, 1)
	assert.Len(t, chain.sent[0].Message.Instructions, 2+len(plan))
}

func TestExecuteInsufficientDistributorBalance(t *testing.T) {
	wallets := testWallets(t, 2)
	distributor := testWallets(t, 1)[0]
	authority := testWallets(t, 1)[0]

	plan, err := Plan(wallets, 5_000_000, 0, 0, 0, nil)
	require.NoError(t, err)

	chain := &fakeChain{balances: map[solana.PublicKey]uint64{
		distributor.PublicKey: 10_000_000, // plan needs 10M + 1M buffer
		authority.PublicKey:   100_000_000,
	}}
	manager := NewManager(chain, zap.NewNop(), Options{})

	_, err = manager.Execute(context.Background(), plan, distributor, authority, 0, 1_000_000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient distributor balance")
	assert.Empty(t, chain.sent, "no transaction may be issued on a precondition failure")
}

func TestExecuteInsufficientAuthorityBalance(t *testing.T) {
	wallets := testWallets(t, 1)
	distributor := testWallets(t, 1)[0]
	authority := testWallets(t, 1)[0]

	plan, err := Plan(wallets, 1_000_000, 0, 0, 0, nil)
	require.NoError(t, err)

	chain := &fakeChain{balances: map[solana.PublicKey]uint64{
		distributor.PublicKey: 100_000_000,
		authority.PublicKey:   1_000_000,
	}}
	manager := NewManager(chain, zap.NewNop(), Options{})

	_, err = manager.Execute(context.Background(), plan, distributor, authority, 50_000_000, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient authority balance")
	assert.Empty(t, chain.sent)
}

func TestExecuteRetriesExhausted(t *testing.T) {
	wallets := testWallets(t, 1)
	distributor := testWallets(t, 1)[0]
	authority := testWallets(t, 1)[0]

	plan, err := Plan(wallets, 1_000_000, 0, 0, 0, nil)
	require.NoError(t, err)

	chain := &fakeChain{
		balances: map[solana.PublicKey]uint64{
			distributor.PublicKey: 100_000_000,
			authority.PublicKey:   100_000_000,
		},
		sendErr: errors.New("node is behind"),
	}
	manager := NewManager(chain, zap.NewNop(), Options{
		RetryPolicy: retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond},
	})

	_, err = manager.Execute(context.Background(), plan, distributor, authority, 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "funding failed after retries")
}
