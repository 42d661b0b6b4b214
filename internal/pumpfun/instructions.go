// ==============================================
// File: internal/pumpfun/instructions.go
// ==============================================
package pumpfun

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Instruction data is a fixed-width 8-byte discriminator followed by borsh
// length-prefixed UTF-8 strings and little-endian u64 fields. Any deviation
// from the program's wire format is rejected on-chain, not recoverable, so
// validation happens here before anything touches the network.

// CreateParams are the typed arguments of the create instruction.
type CreateParams struct {
	Name    string
	Symbol  string
	URI     string
	Creator solana.PublicKey
}

// Validate fails fast with the offending value before any network call.
func (p CreateParams) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("token name is required")
	}
	if len(p.Name) > MaxNameLen {
		return fmt.Errorf("token name %q exceeds %d characters (%d)", p.Name, MaxNameLen, len(p.Name))
	}
	if p.Symbol == "" {
		return fmt.Errorf("token symbol is required")
	}
	if len(p.Symbol) > MaxSymbolLen {
		return fmt.Errorf("token symbol %q exceeds %d characters (%d)", p.Symbol, MaxSymbolLen, len(p.Symbol))
	}
	if p.URI == "" {
		return fmt.Errorf("metadata URI is required")
	}
	if len(p.URI) > MaxURILen {
		return fmt.Errorf("metadata URI exceeds %d characters (%d)", MaxURILen, len(p.URI))
	}
	if p.Creator.IsZero() {
		return fmt.Errorf("creator public key is required")
	}
	return nil
}

// BuildCreateInstruction builds the create-token instruction for the Pump.fun
// protocol. The mint is a fresh keypair and must co-sign the transaction.
func BuildCreateInstruction(params CreateParams, addrs *CurveAddresses, user solana.PublicKey) (solana.Instruction, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if user.IsZero() {
		return nil, fmt.Errorf("create payer public key is required")
	}

	data := make([]byte, 0, 8+4+len(params.Name)+4+len(params.Symbol)+4+len(params.URI)+32)
	data = append(data, CreateDiscriminator...)
	data = appendBorshString(data, params.Name)
	data = appendBorshString(data, params.Symbol)
	data = appendBorshString(data, params.URI)
	data = append(data, params.Creator.Bytes()...)

	// Account list must be in the exact order expected by the program
	insAccounts := []*solana.AccountMeta{
		{PublicKey: addrs.Mint, IsSigner: true, IsWritable: true},
		{PublicKey: addrs.MintAuthority, IsSigner: false, IsWritable: false},
		{PublicKey: addrs.BondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: addrs.AssociatedBondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: addrs.Global, IsSigner: false, IsWritable: false},
		{PublicKey: MetadataProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: addrs.Metadata, IsSigner: false, IsWritable: true},
		{PublicKey: user, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: AssociatedTokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: SysvarRentPubkey, IsSigner: false, IsWritable: false},
		{PublicKey: addrs.EventAuthority, IsSigner: false, IsWritable: false},
		{PublicKey: addrs.Program, IsSigner: false, IsWritable: false},
	}

	return solana.NewInstruction(addrs.Program, insAccounts, data), nil
}

// BuildBuyInstruction builds a buy instruction: amount is the token quantity
// expected out, solCost the quoted lamport cost of that quantity, maxSolCost
// the slippage-bounded limit the user signs off on. Only amount and maxSolCost
// go on the wire; solCost is here so an under-bounded limit fails before any
// network call instead of on-chain.
func BuildBuyInstruction(addrs *CurveAddresses, user, userATA solana.PublicKey, amount, solCost, maxSolCost uint64) (solana.Instruction, error) {
	if amount == 0 {
		return nil, fmt.Errorf("buy token amount must be positive")
	}
	if maxSolCost == 0 {
		return nil, fmt.Errorf("buy max SOL cost must be positive")
	}
	if maxSolCost < solCost {
		return nil, fmt.Errorf("buy max SOL cost %d is below the quoted cost %d", maxSolCost, solCost)
	}

	data := make([]byte, 24)
	copy(data, BuyDiscriminator)
	binary.LittleEndian.PutUint64(data[8:16], amount)
	binary.LittleEndian.PutUint64(data[16:24], maxSolCost)

	// Account list must be in the exact order expected by the program
	insAccounts := []*solana.AccountMeta{
		{PublicKey: addrs.Global, IsSigner: false, IsWritable: false},
		{PublicKey: addrs.FeeRecipient, IsSigner: false, IsWritable: true},
		{PublicKey: addrs.Mint, IsSigner: false, IsWritable: false},
		{PublicKey: addrs.BondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: addrs.AssociatedBondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: userATA, IsSigner: false, IsWritable: true},
		{PublicKey: user, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: SysvarRentPubkey, IsSigner: false, IsWritable: false},
		{PublicKey: addrs.EventAuthority, IsSigner: false, IsWritable: false},
		{PublicKey: addrs.Program, IsSigner: false, IsWritable: false},
	}

	return solana.NewInstruction(addrs.Program, insAccounts, data), nil
}

// BuildSellInstruction builds a sell instruction: amount tokens in,
// minSolOutput the slippage-bounded lamport floor.
func BuildSellInstruction(addrs *CurveAddresses, user, userATA solana.PublicKey, amount, minSolOutput uint64) (solana.Instruction, error) {
	if amount == 0 {
		return nil, fmt.Errorf("sell token amount must be positive")
	}

	data := make([]byte, 24)
	copy(data, SellDiscriminator)
	binary.LittleEndian.PutUint64(data[8:16], amount)
	binary.LittleEndian.PutUint64(data[16:24], minSolOutput)

	// Account list must be in the exact order expected by the program
	insAccounts := []*solana.AccountMeta{
		{PublicKey: addrs.Global, IsSigner: false, IsWritable: false},
		{PublicKey: addrs.FeeRecipient, IsSigner: false, IsWritable: true},
		{PublicKey: addrs.Mint, IsSigner: false, IsWritable: false},
		{PublicKey: addrs.BondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: addrs.AssociatedBondingCurve, IsSigner: false, IsWritable: true},
		{PublicKey: userATA, IsSigner: false, IsWritable: true},
		{PublicKey: user, IsSigner: true, IsWritable: true},
		{PublicKey: solana.SystemProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: solana.TokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: AssociatedTokenProgramID, IsSigner: false, IsWritable: false},
		{PublicKey: addrs.EventAuthority, IsSigner: false, IsWritable: false},
		{PublicKey: addrs.Program, IsSigner: false, IsWritable: false},
	}

	return solana.NewInstruction(addrs.Program, insAccounts, data), nil
}

// BuildCreateATAInstruction creates an idempotent create-associated-token-account
// instruction: a no-op when the account already exists, which lets every
// participant transaction carry it unconditionally.
func BuildCreateATAInstruction(payer, owner, mint solana.PublicKey) solana.Instruction {
	ata, _, _ := solana.FindAssociatedTokenAddress(owner, mint)

	return solana.NewInstruction(
		AssociatedTokenProgramID,
		[]*solana.AccountMeta{
			{PublicKey: payer, IsWritable: true, IsSigner: true},
			{PublicKey: ata, IsWritable: true, IsSigner: false},
			{PublicKey: owner, IsWritable: false, IsSigner: false},
			{PublicKey: mint, IsWritable: false, IsSigner: false},
			{PublicKey: solana.SystemProgramID, IsWritable: false, IsSigner: false},
			{PublicKey: solana.TokenProgramID, IsWritable: false, IsSigner: false},
			{PublicKey: SysvarRentPubkey, IsWritable: false, IsSigner: false},
		},
		[]byte{1}, // Instruction code 1 for create idempotent
	)
}

// appendBorshString appends a u32 little-endian length prefix and the raw
// UTF-8 bytes.
func appendBorshString(data []byte, s string) []byte {
	var length [4]byte
	binary.LittleEndian.PutUint32(length[:], uint32(len(s)))
	data = append(data, length[:]...)
	return append(data, s...)
}
