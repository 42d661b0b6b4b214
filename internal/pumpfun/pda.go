// =============================
// File: internal/pumpfun/pda.go
// =============================
package pumpfun

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// DeriveBondingCurve вычисляет PDA bonding curve для заданного минта.
// Derivation is pure: identical seeds and program id always yield byte-identical
// results.
func DeriveBondingCurve(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(SeedBondingCurve), mint.Bytes()},
		PumpFunProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive bonding curve for mint %s: %w", mint.String(), err)
	}
	return addr, nil
}

// DeriveGlobal вычисляет PDA глобального аккаунта программы.
func DeriveGlobal() (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(SeedGlobal)},
		PumpFunProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive global account: %w", err)
	}
	return addr, nil
}

// DeriveMintAuthority вычисляет PDA authority, которым программа минтит токены.
func DeriveMintAuthority() (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(SeedMintAuthority)},
		PumpFunProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive mint authority: %w", err)
	}
	return addr, nil
}

// DeriveMetadata вычисляет metaplex metadata PDA для минта.
func DeriveMetadata(mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{
			[]byte(SeedMetadata),
			MetadataProgramID.Bytes(),
			mint.Bytes(),
		},
		MetadataProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive metadata account for mint %s: %w", mint.String(), err)
	}
	return addr, nil
}

// DeriveCreatorVault вычисляет PDA хранилища комиссий создателя токена.
func DeriveCreatorVault(creator solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte(SeedCreatorVault), creator.Bytes()},
		PumpFunProgramID,
	)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to derive creator vault for %s: %w", creator.String(), err)
	}
	return addr, nil
}

// DeriveCurveAddresses собирает полный набор адресов, привязанных к одному
// минту. Каждая транзакция бандла должна ссылаться на один и тот же набор.
func DeriveCurveAddresses(mint solana.PublicKey) (*CurveAddresses, error) {
	bondingCurve, err := DeriveBondingCurve(mint)
	if err != nil {
		return nil, err
	}
	associatedBondingCurve, _, err := solana.FindAssociatedTokenAddress(bondingCurve, mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive associated bonding curve: %w", err)
	}
	mintAuthority, err := DeriveMintAuthority()
	if err != nil {
		return nil, err
	}
	metadata, err := DeriveMetadata(mint)
	if err != nil {
		return nil, err
	}
	global, err := DeriveGlobal()
	if err != nil {
		return nil, err
	}

	return &CurveAddresses{
		Mint:                   mint,
		MintAuthority:          mintAuthority,
		BondingCurve:           bondingCurve,
		AssociatedBondingCurve: associatedBondingCurve,
		Metadata:               metadata,
		Global:                 global,
		FeeRecipient:           PumpFunFeeRecipient,
		EventAuthority:         PumpFunEventAuth,
		Program:                PumpFunProgramID,
	}, nil
}
