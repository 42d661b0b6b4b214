// =================================
// File: internal/funding/manager.go
// =================================
package funding

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-bundler/internal/retry"
	"github.com/rovshanmuradov/pump-bundler/internal/solbc"
	"github.com/rovshanmuradov/pump-bundler/internal/wallet"
)

// ChainClient is the slice of the RPC surface the funding step needs.
type ChainClient interface {
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
	GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts solbc.TransactionOptions) (solana.Signature, error)
	WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature, pollInterval, timeout time.Duration) error
}

// Options управляет построением и подтверждением funding-транзакции.
type Options struct {
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64 // micro-lamports
	RetryPolicy      retry.Policy
	ConfirmTimeout   time.Duration
	PollInterval     time.Duration
}

// Manager funds participant wallets from the distributor in a single
// transaction. Funding is sequential with the rest of the pipeline: it must be
// confirmed on-chain before bundle building starts, because participants need
// an existing balance to pay for their own transactions.
type Manager struct {
	client ChainClient
	logger *zap.Logger
	opts   Options
}

func NewManager(client ChainClient, logger *zap.Logger, opts Options) *Manager {
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = 60 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &Manager{
		client: client,
		logger: logger.Named("funding"),
		opts:   opts,
	}
}

// TransferResult is the confirmed outcome of one funding transaction.
type TransferResult struct {
	Signature        solana.Signature
	TotalDistributed uint64
}

// Execute verifies both balance preconditions, then transfers every
// allocation in one transaction and waits for confirmation. Insufficient
// balance aborts before anything is sent: the transfer never partially funds.
// Transient failures retry the whole transaction, never individual wallets.
func (m *Manager) Execute(ctx context.Context, plan []Allocation, distributor, authority *wallet.Wallet, authorityNeed, bufferLamports uint64) (*TransferResult, error) {
	if len(plan) == 0 {
		return nil, fmt.Errorf("funding plan is empty")
	}

	required := TotalRequired(plan)

	distributorBalance, err := m.client.GetBalance(ctx, distributor.PublicKey, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to read distributor balance: %w", err)
	}
	if distributorBalance < required+bufferLamports {
		return nil, fmt.Errorf("insufficient distributor balance: have %d lamports, need %d (plan %d + buffer %d)",
			distributorBalance, required+bufferLamports, required, bufferLamports)
	}

	authorityBalance, err := m.client.GetBalance(ctx, authority.PublicKey, rpc.CommitmentConfirmed)
	if err != nil {
		return nil, fmt.Errorf("failed to read authority balance: %w", err)
	}
	if authorityBalance < authorityNeed {
		return nil, fmt.Errorf("insufficient authority balance: have %d lamports, need %d for creation and initial buy",
			authorityBalance, authorityNeed)
	}

	m.logger.Info("Funding preconditions satisfied",
		zap.Int("wallets", len(plan)),
		zap.Uint64("total_lamports", required),
		zap.Uint64("distributor_balance", distributorBalance),
		zap.Uint64("authority_balance", authorityBalance))

	signature, err := retry.Do(ctx, m.logger, "funding transfer", m.opts.RetryPolicy, func() (solana.Signature, error) {
		sig, err := m.sendOnce(ctx, plan, distributor)
		if err != nil {
			return solana.Signature{}, err
		}
		if err := m.client.WaitForTransactionConfirmation(ctx, sig, m.opts.PollInterval, m.opts.ConfirmTimeout); err != nil {
			return solana.Signature{}, fmt.Errorf("funding transaction %s not confirmed: %w", sig, err)
		}
		return sig, nil
	})
	if err != nil {
		return nil, fmt.Errorf("funding failed after retries: %w", err)
	}

	m.logger.Info("Participant wallets funded",
		zap.String("signature", signature.String()),
		zap.Uint64("total_lamports", required))

	return &TransferResult{Signature: signature, TotalDistributed: required}, nil
}

// sendOnce строит и отправляет одну funding-транзакцию со свежим blockhash.
func (m *Manager) sendOnce(ctx context.Context, plan []Allocation, distributor *wallet.Wallet) (solana.Signature, error) {
	blockhash, err := m.client.GetRecentBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get blockhash: %w", err)
	}

	instructions := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(m.opts.ComputeUnitLimit).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(m.opts.ComputeUnitPrice).Build(),
	}
	for _, a := range plan {
		instructions = append(instructions,
			system.NewTransferInstruction(a.Total(), distributor.PublicKey, a.Wallet.PublicKey).Build())
	}

	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(distributor.PublicKey))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to build funding transaction: %w", err)
	}
	if err := distributor.SignTransaction(tx); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign funding transaction: %w", err)
	}

	return m.client.SendTransactionWithOpts(ctx, tx, solbc.TransactionOptions{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
}
