// =============================
// File: internal/pumpfun/accounts.go
// =============================
package pumpfun

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-bundler/internal/solbc"
)

// ErrLayoutMismatch reports that a fetched account does not match the layout
// version this code was written against (e.g. after a program upgrade).
// Offsets are never guessed: a mismatch is an explicit failure.
var ErrLayoutMismatch = errors.New("account layout version mismatch")

// Fixed byte offsets of the bonding curve account layout.
const (
	bondingCurveMinLen       = 8 + 5*8 + 1 // discriminator + five u64 + complete flag
	bondingCurveLenWithOwner = 8 + 5*8 + 1 + 32
)

// ParseBondingCurveAccount decodes the raw account bytes at fixed offsets per
// the documented layout.
func ParseBondingCurveAccount(data []byte) (*BondingCurveAccount, error) {
	if len(data) < bondingCurveMinLen {
		return nil, fmt.Errorf("%w: bonding curve data too short: %d bytes, need %d", ErrLayoutMismatch, len(data), bondingCurveMinLen)
	}
	if !bytes.Equal(data[0:8], BondingCurveAccountDiscriminator) {
		return nil, fmt.Errorf("%w: unexpected bonding curve discriminator %x", ErrLayoutMismatch, data[0:8])
	}

	account := &BondingCurveAccount{}
	copy(account.Discriminator[:], data[0:8])
	account.VirtualTokenReserves = binary.LittleEndian.Uint64(data[8:16])
	account.VirtualSolReserves = binary.LittleEndian.Uint64(data[16:24])
	account.RealTokenReserves = binary.LittleEndian.Uint64(data[24:32])
	account.RealSolReserves = binary.LittleEndian.Uint64(data[32:40])
	account.TokenTotalSupply = binary.LittleEndian.Uint64(data[40:48])
	account.Complete = data[48] != 0

	// Newer layout revisions append the creator key.
	if len(data) >= bondingCurveLenWithOwner {
		account.Creator = solana.PublicKeyFromBytes(data[49:81])
	}

	return account, nil
}

// ParseGlobalAccount decodes the Pump.fun global account at fixed offsets.
func ParseGlobalAccount(data []byte) (*GlobalAccount, error) {
	// Минимальная длина: 8 (дискриминатор) + 1 (флаг) + 64 (два публичных ключа)
	if len(data) < 8+1+64 {
		return nil, fmt.Errorf("%w: global account data too short: %d bytes", ErrLayoutMismatch, len(data))
	}

	account := &GlobalAccount{}
	copy(account.Discriminator[:], data[0:8])
	account.Initialized = data[8] != 0
	account.Authority = solana.PublicKeyFromBytes(data[9:41])
	account.FeeRecipient = solana.PublicKeyFromBytes(data[41:73])

	if len(data) >= 73+5*8 {
		offset := 73
		account.InitialVirtualTokenReserves = binary.LittleEndian.Uint64(data[offset : offset+8])
		offset += 8
		account.InitialVirtualSolReserves = binary.LittleEndian.Uint64(data[offset : offset+8])
		offset += 8
		account.InitialRealTokenReserves = binary.LittleEndian.Uint64(data[offset : offset+8])
		offset += 8
		account.TokenTotalSupply = binary.LittleEndian.Uint64(data[offset : offset+8])
		offset += 8
		account.FeeBasisPoints = binary.LittleEndian.Uint64(data[offset : offset+8])
	}

	return account, nil
}

// FetchBondingCurveAccount получает и парсит данные аккаунта bonding curve.
// The snapshot is fetched fresh before every pricing calculation: reserves
// change between reads.
func FetchBondingCurveAccount(ctx context.Context, client *solbc.Client, bondingCurve solana.PublicKey, logger *zap.Logger) (*BondingCurveAccount, error) {
	accountInfo, err := client.GetAccountInfo(ctx, bondingCurve)
	if err != nil {
		return nil, fmt.Errorf("failed to get bonding curve account: %w", err)
	}
	if accountInfo == nil || accountInfo.Value == nil {
		return nil, fmt.Errorf("bonding curve account not found at %s", bondingCurve.String())
	}
	if !accountInfo.Value.Owner.Equals(PumpFunProgramID) {
		return nil, fmt.Errorf("bonding curve %s has incorrect owner: expected %s, got %s",
			bondingCurve.String(), PumpFunProgramID.String(), accountInfo.Value.Owner.String())
	}

	account, err := ParseBondingCurveAccount(accountInfo.Value.Data.GetBinary())
	if err != nil {
		return nil, err
	}

	logger.Debug("Fetched bonding curve state",
		zap.String("address", bondingCurve.String()),
		zap.Uint64("virtual_token_reserves", account.VirtualTokenReserves),
		zap.Uint64("virtual_sol_reserves", account.VirtualSolReserves),
		zap.Bool("complete", account.Complete))

	return account, nil
}

// FetchGlobalAccount получает и парсит данные глобального аккаунта Pump.fun.
func FetchGlobalAccount(ctx context.Context, client *solbc.Client, globalAddr solana.PublicKey, logger *zap.Logger) (*GlobalAccount, error) {
	accountInfo, err := client.GetAccountInfo(ctx, globalAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to get global account: %w", err)
	}
	if accountInfo == nil || accountInfo.Value == nil {
		return nil, fmt.Errorf("global account not found: %s", globalAddr.String())
	}
	if !accountInfo.Value.Owner.Equals(PumpFunProgramID) {
		return nil, fmt.Errorf("global account has incorrect owner: expected %s, got %s",
			PumpFunProgramID.String(), accountInfo.Value.Owner.String())
	}

	account, err := ParseGlobalAccount(accountInfo.Value.Data.GetBinary())
	if err != nil {
		return nil, err
	}

	logger.Debug("Global account data parsed",
		zap.Bool("initialized", account.Initialized),
		zap.String("authority", account.Authority.String()),
		zap.String("fee_recipient", account.FeeRecipient.String()),
		zap.Uint64("fee_basis_points", account.FeeBasisPoints))

	return account, nil
}
