// ==================================
// File: internal/bundle/submitter.go
// ==================================
package bundle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-bundler/internal/jito"
	"github.com/rovshanmuradov/pump-bundler/internal/retry"
	"github.com/rovshanmuradov/pump-bundler/internal/solbc"
	"github.com/rovshanmuradov/pump-bundler/internal/wallet"
)

// State of one bundle as it moves through submission.
type State string

const (
	StateBuilt      State = "BUILT"
	StateSerialized State = "SERIALIZED"
	StateSubmitting State = "SUBMITTING"
	StateSubmitted  State = "SUBMITTED"
	StateConfirming State = "CONFIRMING"
	StateConfirmed  State = "CONFIRMED"
	StateTimedOut   State = "TIMED_OUT"
	StateRejected   State = "REJECTED"
)

// ErrRelayUnavailable means every endpoint failed the availability probe and
// fallback is disabled by configuration.
var ErrRelayUnavailable = errors.New("all relay endpoints unavailable and fallback is disabled")

// confirmPollInterval is the fixed cadence for tip signature polling.
const confirmPollInterval = 2 * time.Second

// ChainClient is the RPC slice the submitter needs: blockhash for the tip
// transaction, raw submission for the fallback path and status polling for
// confirmation.
type ChainClient interface {
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts solbc.TransactionOptions) (solana.Signature, error)
	SignatureStatus(ctx context.Context, signature solana.Signature) (*rpc.SignatureStatusesResult, error)
	WaitForTransactionConfirmation(ctx context.Context, signature solana.Signature, pollInterval, timeout time.Duration) error
}

// SubmitOptions настраивает отправку одного бандла.
type SubmitOptions struct {
	TipLamports      uint64
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64
	RetryPolicy      retry.Policy
	ConfirmTimeout   time.Duration
	DisableFallback  bool
	// FallbackDelay spaces out sequential individual submissions to stay
	// under RPC rate limits.
	FallbackDelay time.Duration
	// BlockhashTTL bounds how long the retry loop may keep resubmitting the
	// same bundle bytes. The bundle transactions carry their build-time
	// blockhash, which the chain stops accepting after roughly 150 slots;
	// retrying past that window cannot confirm.
	BlockhashTTL time.Duration
}

// Result of a submission run. Degraded marks the sequential fallback path:
// transactions landed individually, atomicity was not preserved.
type Result struct {
	State        State
	BundleID     string
	Endpoint     string
	TipSignature solana.Signature
	Signatures   []solana.Signature
	Degraded     bool
}

// Submitter serializes a built bundle, prepends the relay tip transaction and
// walks the state machine BUILT through CONFIRMED, retrying with backoff and
// degrading to sequential submission when the priority channel is down.
type Submitter struct {
	relay  *jito.Client
	chain  ChainClient
	logger *zap.Logger
	opts   SubmitOptions
}

func NewSubmitter(relay *jito.Client, chain ChainClient, logger *zap.Logger, opts SubmitOptions) *Submitter {
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = 60 * time.Second
	}
	if opts.FallbackDelay <= 0 {
		opts.FallbackDelay = 500 * time.Millisecond
	}
	if opts.BlockhashTTL <= 0 {
		opts.BlockhashTTL = 60 * time.Second
	}
	return &Submitter{
		relay:  relay,
		chain:  chain,
		logger: logger.Named("submitter"),
		opts:   opts,
	}
}

// Submit runs the full state machine for one bundle. tipPayer funds the relay
// tip transfer.
func (s *Submitter) Submit(ctx context.Context, b *Bundle, tipPayer *wallet.Wallet) (*Result, error) {
	if err := Validate(b); err != nil {
		return &Result{State: StateRejected}, err
	}
	if s.opts.TipLamports == 0 {
		return &Result{State: StateRejected}, fmt.Errorf("relay tip must be explicit and non-zero")
	}

	alive := s.relay.Probe(ctx)
	if len(alive) == 0 {
		s.logger.Warn("No relay endpoint answered the availability probe")
		if s.opts.DisableFallback {
			return &Result{State: StateRejected}, ErrRelayUnavailable
		}
		return s.submitSequential(ctx, b)
	}

	started := time.Now()
	result, err := retry.Do(ctx, s.logger, "bundle submission", s.opts.RetryPolicy, func() (*Result, error) {
		if age := time.Since(started); age > s.opts.BlockhashTTL {
			return nil, retry.Permanent(fmt.Errorf("%w: bundle is %s old, limit %s",
				errBlockhashExpired, age.Round(time.Second), s.opts.BlockhashTTL))
		}
		return s.submitOnce(ctx, b, tipPayer)
	})
	if err == nil {
		return result, nil
	}

	s.logger.Error("Bundle submission exhausted retries", zap.Error(err))
	if s.opts.DisableFallback || errors.Is(err, errBundleRejected) || errors.Is(err, errBlockhashExpired) {
		state := StateTimedOut
		if errors.Is(err, errBundleRejected) {
			state = StateRejected
		}
		return &Result{State: state}, err
	}
	return s.submitSequential(ctx, b)
}

// errBundleRejected marks an on-chain failure of the tip transaction: the
// bundle as a whole did not land and retrying the same bytes cannot help.
var errBundleRejected = errors.New("bundle rejected on-chain")

// errBlockhashExpired means the bundle outlived its build-time blockhash. The
// sequential fallback would send the same stale bytes, so the caller must
// rebuild against a fresh blockhash instead.
var errBlockhashExpired = errors.New("bundle blockhash expired")

// submitOnce executes one SERIALIZED → SUBMITTING → SUBMITTED → CONFIRMING
// pass: tip transaction built fresh, broadcast to every live endpoint, then
// the tip signature polled to confirmation.
func (s *Submitter) submitOnce(ctx context.Context, b *Bundle, tipPayer *wallet.Wallet) (*Result, error) {
	tipTx, tipSig, err := s.buildTipTx(ctx, tipPayer)
	if err != nil {
		return nil, err
	}

	encoded, err := serializeBundle(append([]*solana.Transaction{tipTx}, b.Transactions...))
	if err != nil {
		return nil, retry.Permanent(err)
	}
	s.logger.Debug("Bundle serialized",
		zap.Int("transactions", len(encoded)),
		zap.String("tip_signature", tipSig.String()))

	broadcast, err := s.relay.BroadcastBundle(ctx, encoded)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Bundle submitted",
		zap.String("bundle_id", broadcast.BundleID),
		zap.String("endpoint", broadcast.Endpoint))

	result := &Result{
		State:        StateConfirming,
		BundleID:     broadcast.BundleID,
		Endpoint:     broadcast.Endpoint,
		TipSignature: tipSig,
	}
	if err := s.confirmTip(ctx, tipSig); err != nil {
		if errors.Is(err, errBundleRejected) {
			return nil, retry.Permanent(err)
		}
		return nil, err
	}

	result.State = StateConfirmed
	for _, tx := range b.Transactions {
		result.Signatures = append(result.Signatures, tx.Signatures[0])
	}
	return result, nil
}

func (s *Submitter) buildTipTx(ctx context.Context, tipPayer *wallet.Wallet) (*solana.Transaction, solana.Signature, error) {
	blockhash, err := s.chain.GetRecentBlockhash(ctx)
	if err != nil {
		return nil, solana.Signature{}, fmt.Errorf("failed to get blockhash for tip: %w", err)
	}

	tipAccount := jito.RandomTipAccount()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			computebudget.NewSetComputeUnitLimitInstruction(s.opts.ComputeUnitLimit).Build(),
			computebudget.NewSetComputeUnitPriceInstruction(s.opts.ComputeUnitPrice).Build(),
			system.NewTransferInstruction(s.opts.TipLamports, tipPayer.PublicKey, tipAccount).Build(),
		},
		blockhash,
		solana.TransactionPayer(tipPayer.PublicKey),
	)
	if err != nil {
		return nil, solana.Signature{}, fmt.Errorf("failed to build tip transaction: %w", err)
	}
	if err := tipPayer.SignTransaction(tx); err != nil {
		return nil, solana.Signature{}, fmt.Errorf("failed to sign tip transaction: %w", err)
	}

	s.logger.Debug("Tip transaction prepared",
		zap.String("tip_account", tipAccount.String()),
		zap.Uint64("tip_lamports", s.opts.TipLamports))
	return tx, tx.Signatures[0], nil
}

// confirmTip polls the tip signature on a fixed interval until it confirms,
// errors on-chain, or the timeout elapses.
func (s *Submitter) confirmTip(ctx context.Context, tipSig solana.Signature) error {
	ticker := time.NewTicker(confirmPollInterval)
	defer ticker.Stop()
	deadline := time.After(s.opts.ConfirmTimeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("bundle confirmation timeout after %s for tip %s", s.opts.ConfirmTimeout, tipSig)
		case <-ticker.C:
			status, err := s.chain.SignatureStatus(ctx, tipSig)
			if err != nil {
				s.logger.Warn("Tip status poll failed", zap.Error(err))
				continue
			}
			if status == nil {
				continue
			}
			if status.Err != nil {
				return fmt.Errorf("%w: tip %s failed with %v", errBundleRejected, tipSig, status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}

// submitSequential is the degraded path: each transaction lands individually
// through the standard RPC entry point with an inter-transaction delay.
// Atomicity is sacrificed and the result says so.
func (s *Submitter) submitSequential(ctx context.Context, b *Bundle) (*Result, error) {
	s.logger.Warn("Falling back to sequential individual submission, atomicity is not preserved",
		zap.Int("transactions", len(b.Transactions)))

	result := &Result{State: StateSubmitting, Degraded: true}
	for i, tx := range b.Transactions {
		if i > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(s.opts.FallbackDelay):
			}
		}

		sig, err := s.chain.SendTransactionWithOpts(ctx, tx, solbc.TransactionOptions{
			SkipPreflight:       true,
			PreflightCommitment: rpc.CommitmentConfirmed,
		})
		if err != nil {
			return result, fmt.Errorf("sequential submission failed at transaction %d of %d: %w", i+1, len(b.Transactions), err)
		}
		if err := s.chain.WaitForTransactionConfirmation(ctx, sig, confirmPollInterval, s.opts.ConfirmTimeout); err != nil {
			return result, fmt.Errorf("sequential transaction %d (%s) not confirmed: %w", i+1, sig, err)
		}
		result.Signatures = append(result.Signatures, sig)
		s.logger.Info("Sequential transaction confirmed",
			zap.Int("index", i),
			zap.String("signature", sig.String()))
	}

	result.State = StateConfirmed
	return result, nil
}

// serializeBundle signs-encodes each transaction to the base58 wire form the
// relay expects.
func serializeBundle(txs []*solana.Transaction) ([]string, error) {
	encoded := make([]string, 0, len(txs))
	for i, tx := range txs {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize transaction %d: %w", i, err)
		}
		encoded = append(encoded, base58.Encode(raw))
	}
	return encoded, nil
}
