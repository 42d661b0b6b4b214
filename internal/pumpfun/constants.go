// =============================
// File: internal/pumpfun/constants.go
// =============================
package pumpfun

import "github.com/gagliardetto/solana-go"

// Known Pump.fun protocol addresses.
var (
	// Program ID for the Pump.fun protocol
	PumpFunProgramID = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

	// Global state account (PDA from seed "global")
	PumpFunGlobal = solana.MustPublicKeyFromBase58("4wTV1YmiEkRvAtNtsSGPtUrqRYQMe5SKy2uB4Jjaxnjf")

	// Protocol fee recipient
	PumpFunFeeRecipient = solana.MustPublicKeyFromBase58("CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM")

	// Event authority for the Pump.fun protocol
	PumpFunEventAuth = solana.MustPublicKeyFromBase58("Ce6TQqeHC9p8KetsN6JsjHK7UTZk7nasjjnr7XxXp9F1")

	// Metaplex token metadata program
	MetadataProgramID = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

	AssociatedTokenProgramID = solana.MustPublicKeyFromBase58("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")

	SysvarRentPubkey = solana.MustPublicKeyFromBase58("SysvarRent111111111111111111111111111111111")
)

// PDA seeds used by the on-chain program. Seed ordering must match the
// program's derivation exactly.
const (
	SeedBondingCurve  = "bonding-curve"
	SeedGlobal        = "global"
	SeedMintAuthority = "mint-authority"
	SeedCreatorVault  = "creator-vault"
	SeedMetadata      = "metadata"
)

const (
	LamportsPerSOL = 1_000_000_000

	// Pump.fun tokens always carry 6 decimals; SOL carries 9.
	SolDecimals   = 9
	TokenDecimals = 6

	// Validation limits enforced by the on-chain create instruction.
	MaxNameLen   = 32
	MaxSymbolLen = 10
	MaxURILen    = 200
)

// Anchor instruction discriminators (first 8 bytes of the instruction data).
var (
	CreateDiscriminator = []byte{0x18, 0x1e, 0xc8, 0x28, 0x05, 0x1c, 0x07, 0x77}
	BuyDiscriminator    = []byte{0x66, 0x06, 0x3d, 0x12, 0x01, 0xda, 0xeb, 0xea}
	SellDiscriminator   = []byte{0x33, 0xe6, 0x85, 0xa4, 0x01, 0x7f, 0x83, 0xad}
)

// BondingCurveAccountDiscriminator prefixes every bonding curve account owned
// by the program. A fetched account whose first 8 bytes do not match is
// treated as a layout-version mismatch, never silently misread.
var BondingCurveAccountDiscriminator = []byte{0x17, 0xb7, 0xf8, 0x37, 0x60, 0xd8, 0xac, 0x60}
