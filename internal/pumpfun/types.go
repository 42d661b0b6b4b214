// =============================
// File: internal/pumpfun/types.go
// =============================
package pumpfun

import (
	"github.com/gagliardetto/solana-go"
)

// BondingCurveAccount is the deserialized on-chain bonding curve state.
// A read-only snapshot: reserves can change between reads, so callers fetch
// fresh before every pricing calculation.
type BondingCurveAccount struct {
	Discriminator        [8]byte
	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	RealTokenReserves    uint64
	RealSolReserves      uint64
	TokenTotalSupply     uint64
	Complete             bool
	Creator              solana.PublicKey
}

// GlobalAccount represents the structure of the Pump.fun global account data
type GlobalAccount struct {
	Discriminator               [8]byte
	Initialized                 bool
	Authority                   solana.PublicKey
	FeeRecipient                solana.PublicKey
	InitialVirtualTokenReserves uint64
	InitialVirtualSolReserves   uint64
	InitialRealTokenReserves    uint64
	TokenTotalSupply            uint64
	FeeBasisPoints              uint64
}

// TokenMetadata carries everything the off-chain metadata store and the
// on-chain create instruction need.
type TokenMetadata struct {
	Name        string
	Symbol      string
	Description string
	ImagePath   string
	Twitter     string
	Telegram    string
	Website     string
	// URI is filled in after the metadata upload.
	URI string
}

// CurveAddresses groups every derived address tied to one mint.
type CurveAddresses struct {
	Mint                   solana.PublicKey
	MintAuthority          solana.PublicKey
	BondingCurve           solana.PublicKey
	AssociatedBondingCurve solana.PublicKey
	Metadata               solana.PublicKey
	Global                 solana.PublicKey
	FeeRecipient           solana.PublicKey
	EventAuthority         solana.PublicKey
	Program                solana.PublicKey
}
