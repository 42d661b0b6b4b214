// ================================
// File: internal/bundle/builder.go
// ================================

// Package bundle assembles the ordered multi-signer transaction set for one
// atomic token launch and drives its submission through the priority relay.
package bundle

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-bundler/internal/funding"
	"github.com/rovshanmuradov/pump-bundler/internal/jito"
	"github.com/rovshanmuradov/pump-bundler/internal/pumpfun"
	"github.com/rovshanmuradov/pump-bundler/internal/wallet"
)

// ErrBundleTooLarge means the participant count does not fit the relay's
// per-bundle transaction limit. The caller must shard into multiple sessions;
// silent truncation is never an option.
var ErrBundleTooLarge = errors.New("bundle exceeds relay transaction limit")

// CurveSnapshot is the single pre-trade reserve state every buy quote is
// computed from. Quotes are optimistic for participants ordered later in the
// bundle because transactions compound reserves as they execute on-chain;
// the slippage bound is the mitigation, not exact sequential quoting.
type CurveSnapshot struct {
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
}

// BuildParams carries everything one atomic launch needs.
type BuildParams struct {
	Authority    *wallet.Wallet
	Mint         *wallet.Wallet
	Participants []funding.Allocation
	Metadata     pumpfun.TokenMetadata

	// AuthorityBuyLamports of zero skips the authority's own purchase.
	AuthorityBuyLamports uint64
	Snapshot             CurveSnapshot
	SlippageBps          uint64
}

// Bundle is an ordered, fully signed transaction set: transaction 0 is
// authority-signed (create + optional authority buy), transactions 1..N are
// each signed solely by their participant. The relay tip transaction is
// prepended later by the submitter and is not part of the built set.
type Bundle struct {
	Mint         solana.PublicKey
	Addresses    *pumpfun.CurveAddresses
	Transactions []*solana.Transaction
}

// Builder constructs bundles. Compute-budget instructions are embedded into
// every transaction so relay inclusion does not depend on default limits.
type Builder struct {
	logger           *zap.Logger
	computeUnitLimit uint32
	computeUnitPrice uint64
}

func NewBuilder(logger *zap.Logger, computeUnitLimit uint32, computeUnitPrice uint64) *Builder {
	return &Builder{
		logger:           logger.Named("builder"),
		computeUnitLimit: computeUnitLimit,
		computeUnitPrice: computeUnitPrice,
	}
}

// Build assembles and signs the full transaction set against one blockhash.
// Every transaction references the same mint and derived addresses.
func (b *Builder) Build(params BuildParams, blockhash solana.Hash) (*Bundle, error) {
	if params.Authority == nil || params.Mint == nil {
		return nil, fmt.Errorf("bundle requires authority and mint keypairs")
	}
	if params.Snapshot.VirtualSolReserves == 0 || params.Snapshot.VirtualTokenReserves == 0 {
		return nil, fmt.Errorf("curve snapshot has empty reserves")
	}

	// 1 authority tx + N participant txs + the submitter's tip tx.
	total := 1 + len(params.Participants) + 1
	if total > jito.MaxBundleTransactions {
		return nil, fmt.Errorf("%w: %d transactions with tip, limit is %d",
			ErrBundleTooLarge, total, jito.MaxBundleTransactions)
	}

	createParams := pumpfun.CreateParams{
		Name:    params.Metadata.Name,
		Symbol:  params.Metadata.Symbol,
		URI:     params.Metadata.URI,
		Creator: params.Authority.PublicKey,
	}
	if err := createParams.Validate(); err != nil {
		return nil, err
	}

	addrs, err := pumpfun.DeriveCurveAddresses(params.Mint.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive curve addresses: %w", err)
	}

	authorityTx, err := b.buildAuthorityTx(params, createParams, addrs, blockhash)
	if err != nil {
		return nil, err
	}

	transactions := []*solana.Transaction{authorityTx}
	for i, participant := range params.Participants {
		tx, err := b.buildParticipantTx(participant, addrs, params.SlippageBps, params.Snapshot, blockhash)
		if err != nil {
			return nil, fmt.Errorf("participant %d (%s): %w", i, participant.Wallet, err)
		}
		transactions = append(transactions, tx)
	}

	b.logger.Info("Bundle built",
		zap.String("mint", params.Mint.PublicKey.String()),
		zap.Int("transactions", len(transactions)),
		zap.Int("participants", len(params.Participants)))

	return &Bundle{
		Mint:         params.Mint.PublicKey,
		Addresses:    addrs,
		Transactions: transactions,
	}, nil
}

func (b *Builder) budgetInstructions() []solana.Instruction {
	return []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(b.computeUnitLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(b.computeUnitPrice).Build(),
	}
}

// buildAuthorityTx собирает transaction 0: create + опциональная покупка
// authority-кошелька. Подписывается authority и mint (create требует подписи
// mint-аккаунта).
func (b *Builder) buildAuthorityTx(params BuildParams, createParams pumpfun.CreateParams, addrs *pumpfun.CurveAddresses, blockhash solana.Hash) (*solana.Transaction, error) {
	instructions := b.budgetInstructions()

	createIx, err := pumpfun.BuildCreateInstruction(createParams, addrs, params.Authority.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to build create instruction: %w", err)
	}
	instructions = append(instructions, createIx)

	if params.AuthorityBuyLamports > 0 {
		buyIxs, err := b.buyInstructions(params.Authority, addrs, params.AuthorityBuyLamports, params.SlippageBps, params.Snapshot)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, buyIxs...)
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(params.Authority.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("failed to build authority transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		switch {
		case key.Equals(params.Authority.PublicKey):
			return &params.Authority.PrivateKey
		case key.Equals(params.Mint.PublicKey):
			return &params.Mint.PrivateKey
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign authority transaction: %w", err)
	}
	return tx, nil
}

func (b *Builder) buildParticipantTx(participant funding.Allocation, addrs *pumpfun.CurveAddresses, slippageBps uint64, snapshot CurveSnapshot, blockhash solana.Hash) (*solana.Transaction, error) {
	instructions := b.budgetInstructions()

	buyIxs, err := b.buyInstructions(participant.Wallet, addrs, participant.BuyLamports, slippageBps, snapshot)
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, buyIxs...)

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(participant.Wallet.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction: %w", err)
	}
	if err := participant.Wallet.SignTransaction(tx); err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return tx, nil
}

// buyInstructions возвращает пару ATA-create + buy для одного покупателя.
func (b *Builder) buyInstructions(buyer *wallet.Wallet, addrs *pumpfun.CurveAddresses, lamports, slippageBps uint64, snapshot CurveSnapshot) ([]solana.Instruction, error) {
	if lamports == 0 {
		return nil, fmt.Errorf("buy amount must be positive")
	}

	ata, err := buyer.GetATA(addrs.Mint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive token account: %w", err)
	}

	tokensOut := pumpfun.QuoteBuy(snapshot.VirtualSolReserves, snapshot.VirtualTokenReserves, lamports)
	if tokensOut == 0 {
		return nil, fmt.Errorf("buy of %d lamports quotes zero tokens", lamports)
	}
	maxSolCost := pumpfun.WithSlippageBuy(lamports, slippageBps)

	buyIx, err := pumpfun.BuildBuyInstruction(addrs, buyer.PublicKey, ata, tokensOut, lamports, maxSolCost)
	if err != nil {
		return nil, fmt.Errorf("failed to build buy instruction: %w", err)
	}

	return []solana.Instruction{
		pumpfun.BuildCreateATAInstruction(buyer.PublicKey, buyer.PublicKey, addrs.Mint),
		buyIx,
	}, nil
}
