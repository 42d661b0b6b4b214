// =======================================
// File: internal/wallet/wallet_test.go
// =======================================
package wallet

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWalletFromExport(t *testing.T) {
	original, err := Generate()
	require.NoError(t, err)

	restored, err := NewWallet(original.ExportPrivateKey())
	require.NoError(t, err)
	assert.Equal(t, original.PublicKey, restored.PublicKey)
}

func TestNewWalletRejectsGarbage(t *testing.T) {
	_, err := NewWallet("not-base58-!!!")
	assert.Error(t, err)

	// valid base58 of the wrong length
	_, err = NewWallet("3yZe7d")
	assert.Error(t, err)
}

func TestGenerateSetUniqueKeys(t *testing.T) {
	wallets, err := GenerateSet(10)
	require.NoError(t, err)
	require.Len(t, wallets, 10)

	seen := make(map[string]struct{})
	for _, w := range wallets {
		key := w.PublicKey.String()
		_, dup := seen[key]
		assert.False(t, dup, "duplicate public key %s", key)
		seen[key] = struct{}{}
	}
}

func TestGenerateSetRejectsZeroCount(t *testing.T) {
	_, err := GenerateSet(0)
	assert.Error(t, err)
}

func TestGetATACached(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)
	mint := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	first, err := w.GetATA(mint)
	require.NoError(t, err)

	expected, _, err := solana.FindAssociatedTokenAddress(w.PublicKey, mint)
	require.NoError(t, err)
	assert.Equal(t, expected, first)

	second, err := w.GetATA(mint)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, w.ATACache, 1)
}

func TestSignTransaction(t *testing.T) {
	w, err := Generate()
	require.NoError(t, err)

	tx, err := solana.NewTransaction(
		[]solana.Instruction{},
		solana.HashFromBytes(make([]byte, 32)),
		solana.TransactionPayer(w.PublicKey),
	)
	require.NoError(t, err)

	require.NoError(t, w.SignTransaction(tx))
	require.Len(t, tx.Signatures, 1)
	assert.False(t, tx.Signatures[0].IsZero())
}
