// ==================================
// File: internal/recovery/recovery.go
// ==================================

// Package recovery sweeps residual balances from disposable participant
// wallets back to the distributor after a bundling run, and keeps the session
// ledger honest about what was recovered. Recovery is re-runnable: stranded
// funds are discovered from persisted wallet keys regardless of what the
// session record says happened.
package recovery

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-bundler/internal/retry"
	"github.com/rovshanmuradov/pump-bundler/internal/session"
	"github.com/rovshanmuradov/pump-bundler/internal/solbc"
	"github.com/rovshanmuradov/pump-bundler/internal/wallet"
)

const (
	// Rent-exempt minimum for a zero-data account. A wallet swept below this
	// would be garbage-collected by the runtime.
	rentReserveLamports = 890_880

	// Базовая комиссия за одну подпись.
	feeLamports = 5_000
)

// ChainClient is the RPC slice recovery needs.
type ChainClient interface {
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
	GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts solbc.TransactionOptions) (solana.Signature, error)
	WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature, pollInterval, timeout time.Duration) error
}

// Options управляет темпом и подтверждением sweep-операций.
type Options struct {
	// InterWalletDelay spaces out sweeps; wallet counts are small, staying
	// under RPC rate limits matters more than wall-clock speed.
	InterWalletDelay time.Duration
	RetryPolicy      retry.Policy
	ConfirmTimeout   time.Duration
	PollInterval     time.Duration
}

// Manager performs sweeps and merges results into the persisted ledger.
type Manager struct {
	client ChainClient
	store  *session.Store
	logger *zap.Logger
	opts   Options
}

func NewManager(client ChainClient, store *session.Store, logger *zap.Logger, opts Options) *Manager {
	if opts.InterWalletDelay <= 0 {
		opts.InterWalletDelay = 500 * time.Millisecond
	}
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = 60 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &Manager{
		client: client,
		store:  store,
		logger: logger.Named("recovery"),
		opts:   opts,
	}
}

// Report aggregates one sweep pass over a session's wallet set.
type Report struct {
	Recovered uint64
	Swept     int
	Skipped   int
	Failed    int
}

// Sweep walks every wallet in the session, transfers recoverable balances to
// destination and persists the updated ledger. Each wallet's sweep is an
// independent transaction: one failure is recorded and the batch continues.
// A wallet at or below the retain+rent threshold reports "nothing to recover",
// which is not a failure, and re-running against an already-swept session adds
// zero to the recovered totals.
func (m *Manager) Sweep(ctx context.Context, sess *session.Session, destination solana.PublicKey, retain uint64) (*Report, error) {
	wallets, err := sess.ParticipantWallets()
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for i, w := range wallets {
		if i > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(m.opts.InterWalletDelay):
			}
		}

		record := sess.WalletRecordFor(w.PublicKey.String())
		if record == nil {
			// не должно случаться: кошельки восстановлены из той же сессии
			m.logger.Warn("Wallet missing from session records", zap.String("wallet", w.String()))
			continue
		}

		recovered, err := m.sweepWallet(ctx, w, destination, retain, record)
		switch {
		case err != nil:
			record.Status = session.WalletFailed
			report.Failed++
			m.logger.Error("Wallet sweep failed",
				zap.String("wallet", w.String()),
				zap.Error(err))
		case recovered == 0:
			report.Skipped++
		default:
			record.Status = session.WalletRecovered
			record.RecoveredAmount += recovered
			report.Recovered += recovered
			report.Swept++
		}
	}

	sess.RecordAttempt(session.RecoveryAttempt{
		Timestamp: time.Now().UTC(),
		Recovered: report.Recovered,
		Swept:     report.Swept,
		Skipped:   report.Skipped,
		Failed:    report.Failed,
	})
	if err := m.store.Save(sess); err != nil {
		return report, fmt.Errorf("sweep finished but ledger save failed: %w", err)
	}

	m.logger.Info("Recovery pass complete",
		zap.String("session_id", sess.ID),
		zap.Uint64("recovered_lamports", report.Recovered),
		zap.Int("swept", report.Swept),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

// sweepWallet reads the live balance and transfers the recoverable excess.
// Returns 0 with no error when there is nothing to recover.
func (m *Manager) sweepWallet(ctx context.Context, w *wallet.Wallet, destination solana.PublicKey, retain uint64, record *session.WalletRecord) (uint64, error) {
	balance, err := m.client.GetBalance(ctx, w.PublicKey, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}

	threshold := retain + rentReserveLamports + feeLamports
	if balance <= threshold {
		if record.Status == session.WalletPending || record.Status == session.WalletFailed {
			record.Status = session.WalletInsufficientBalance
		}
		record.FinalBalance = balance
		m.logger.Debug("Nothing to recover",
			zap.String("wallet", w.String()),
			zap.Uint64("balance", balance),
			zap.Uint64("threshold", threshold))
		return 0, nil
	}

	amount := balance - threshold
	sig, err := retry.Do(ctx, m.logger, "wallet sweep", m.opts.RetryPolicy, func() (solana.Signature, error) {
		return m.sendSweep(ctx, w, destination, amount)
	})
	if err != nil {
		return 0, err
	}
	if err := m.client.WaitForTransactionConfirmation(ctx, sig, m.opts.PollInterval, m.opts.ConfirmTimeout); err != nil {
		return 0, fmt.Errorf("sweep transaction %s not confirmed: %w", sig, err)
	}

	record.FinalBalance = balance - amount - feeLamports
	m.logger.Info("Wallet swept",
		zap.String("wallet", w.String()),
		zap.Uint64("recovered_lamports", amount),
		zap.String("signature", sig.String()))
	return amount, nil
}

func (m *Manager) sendSweep(ctx context.Context, w *wallet.Wallet, destination solana.PublicKey, amount uint64) (solana.Signature, error) {
	blockhash, err := m.client.GetRecentBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(amount, w.PublicKey, destination).Build(),
		},
		blockhash,
		solana.TransactionPayer(w.PublicKey),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to build sweep transaction: %w", err)
	}
	if err := w.SignTransaction(tx); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign sweep transaction: %w", err)
	}

	return m.client.SendTransactionWithOpts(ctx, tx, solbc.TransactionOptions{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
}

// WalletBalance is one row of an Analyze report.
type WalletBalance struct {
	PublicKey string
	Lamports  uint64
	Status    session.WalletStatus
}

// Analyze reports live balances for every wallet in a persisted session
// without mutating anything. Used for manual and forensic inspection.
func (m *Manager) Analyze(ctx context.Context, sess *session.Session) ([]WalletBalance, error) {
	balances := make([]WalletBalance, 0, len(sess.Wallets))
	for _, record := range sess.Wallets {
		pk, err := solana.PublicKeyFromBase58(record.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("session %s has invalid wallet key %q: %w", sess.ID, record.PublicKey, err)
		}
		balance, err := m.client.GetBalance(ctx, pk, rpc.CommitmentConfirmed)
		if err != nil {
			return nil, fmt.Errorf("failed to read balance of %s: %w", record.PublicKey, err)
		}
		balances = append(balances, WalletBalance{
			PublicKey: record.PublicKey,
			Lamports:  balance,
			Status:    record.Status,
		})
	}
	return balances, nil
}
