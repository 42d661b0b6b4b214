// =====================================
// File: internal/pumpfun/accounts_test.go
// =====================================
package pumpfun

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bondingCurveBytes(withCreator bool) []byte {
	size := bondingCurveMinLen
	if withCreator {
		size = bondingCurveLenWithOwner
	}
	data := make([]byte, size)
	copy(data, BondingCurveAccountDiscriminator)
	binary.LittleEndian.PutUint64(data[8:16], 1_073_000_000_000_000)  // virtual token
	binary.LittleEndian.PutUint64(data[16:24], 30_000_000_000)        // virtual sol
	binary.LittleEndian.PutUint64(data[24:32], 793_100_000_000_000)   // real token
	binary.LittleEndian.PutUint64(data[32:40], 0)                     // real sol
	binary.LittleEndian.PutUint64(data[40:48], 1_000_000_000_000_000) // total supply
	data[48] = 0
	if withCreator {
		creator := solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
		copy(data[49:81], creator.Bytes())
	}
	return data
}

func TestParseBondingCurveAccount(t *testing.T) {
	account, err := ParseBondingCurveAccount(bondingCurveBytes(false))
	require.NoError(t, err)

	assert.Equal(t, uint64(1_073_000_000_000_000), account.VirtualTokenReserves)
	assert.Equal(t, uint64(30_000_000_000), account.VirtualSolReserves)
	assert.Equal(t, uint64(793_100_000_000_000), account.RealTokenReserves)
	assert.Equal(t, uint64(1_000_000_000_000_000), account.TokenTotalSupply)
	assert.False(t, account.Complete)
	assert.True(t, account.Creator.IsZero())
}

func TestParseBondingCurveAccountWithCreator(t *testing.T) {
	account, err := ParseBondingCurveAccount(bondingCurveBytes(true))
	require.NoError(t, err)
	assert.Equal(t, "CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM", account.Creator.String())
}

func TestParseBondingCurveAccountLayoutMismatch(t *testing.T) {
	// too short
	_, err := ParseBondingCurveAccount(make([]byte, 10))
	assert.ErrorIs(t, err, ErrLayoutMismatch)

	// wrong discriminator, right size: never silently misread
	data := bondingCurveBytes(false)
	data[0] ^= 0xff
	_, err = ParseBondingCurveAccount(data)
	assert.ErrorIs(t, err, ErrLayoutMismatch)
}

func TestParseGlobalAccount(t *testing.T) {
	data := make([]byte, 8+1+64+5*8)
	data[8] = 1
	authority := solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")
	copy(data[9:41], authority.Bytes())
	copy(data[41:73], PumpFunFeeRecipient.Bytes())
	binary.LittleEndian.PutUint64(data[73:81], 1_073_000_000_000_000)
	binary.LittleEndian.PutUint64(data[81:89], 30_000_000_000)
	binary.LittleEndian.PutUint64(data[89:97], 793_100_000_000_000)
	binary.LittleEndian.PutUint64(data[97:105], 1_000_000_000_000_000)
	binary.LittleEndian.PutUint64(data[105:113], 100)

	account, err := ParseGlobalAccount(data)
	require.NoError(t, err)
	assert.True(t, account.Initialized)
	assert.Equal(t, authority, account.Authority)
	assert.Equal(t, PumpFunFeeRecipient, account.FeeRecipient)
	assert.Equal(t, uint64(1_073_000_000_000_000), account.InitialVirtualTokenReserves)
	assert.Equal(t, uint64(30_000_000_000), account.InitialVirtualSolReserves)
	assert.Equal(t, uint64(100), account.FeeBasisPoints)
}

func TestParseGlobalAccountTooShort(t *testing.T) {
	_, err := ParseGlobalAccount(make([]byte, 20))
	assert.ErrorIs(t, err, ErrLayoutMismatch)
}

func TestDeriveAddressesDeterministic(t *testing.T) {
	mint := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	first, err := DeriveCurveAddresses(mint)
	require.NoError(t, err)
	second, err := DeriveCurveAddresses(mint)
	require.NoError(t, err)
	assert.Equal(t, first, second, "identical seeds must yield byte-identical addresses")

	global, err := DeriveGlobal()
	require.NoError(t, err)
	assert.Equal(t, PumpFunGlobal, global, "derived global must match the known mainnet address")
}
