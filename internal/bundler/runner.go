// =================================
// File: internal/bundler/runner.go
// =================================

// Package bundler wires the full launch pipeline: fund participant wallets,
// build the atomic create+buy bundle, submit it through the priority relay
// and sweep residual funds back afterward.
package bundler

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-bundler/internal/bundle"
	"github.com/rovshanmuradov/pump-bundler/internal/config"
	"github.com/rovshanmuradov/pump-bundler/internal/funding"
	"github.com/rovshanmuradov/pump-bundler/internal/jito"
	"github.com/rovshanmuradov/pump-bundler/internal/pumpfun"
	"github.com/rovshanmuradov/pump-bundler/internal/recovery"
	"github.com/rovshanmuradov/pump-bundler/internal/retry"
	"github.com/rovshanmuradov/pump-bundler/internal/session"
	"github.com/rovshanmuradov/pump-bundler/internal/solbc"
	"github.com/rovshanmuradov/pump-bundler/internal/wallet"
)

const (
	// Покупки участников размазаны на ±20% вокруг базовой суммы.
	buyVarianceBps = 2_000

	// Rough cost of the create instruction: mint + curve + metadata rent.
	creationFeeLamports = 30_000_000

	// Сетевая комиссия за одну подпись.
	feeLamports = 5_000
)

// SolToLamports converts a config amount to lamports.
func SolToLamports(sol float64) uint64 {
	return uint64(math.Round(sol * pumpfun.LamportsPerSOL))
}

// Runner owns one bundling session end to end.
type Runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	chain    *solbc.Client
	relay    *jito.Client
	store    *session.Store
	uploader *pumpfun.MetadataUploader
	watcher  *pumpfun.CurveWatcher
	policy   retry.Policy
}

func New(cfg *config.Config, logger *zap.Logger) (*Runner, error) {
	store, err := session.NewStore(cfg.WalletsDir, logger)
	if err != nil {
		return nil, err
	}
	chain := solbc.NewClient(cfg.RPCURL, logger)
	return &Runner{
		cfg:      cfg,
		logger:   logger.Named("runner"),
		chain:    chain,
		relay:    jito.NewClient(cfg.RelayURLs, logger),
		store:    store,
		uploader: pumpfun.NewMetadataUploader(cfg.MetadataEndpoint, logger),
		watcher:  pumpfun.NewCurveWatcher(chain, logger, 2*time.Second),
		policy: retry.Policy{
			MaxAttempts: uint(cfg.MaxAttempts),
			BaseDelay:   time.Duration(cfg.RetryDelayMs) * time.Millisecond,
		},
	}, nil
}

// Store exposes the session store for the CLI read paths.
func (r *Runner) Store() *session.Store {
	return r.store
}

// Run executes one full bundling session. With dryRun set, everything is
// planned and built but nothing is uploaded, funded or submitted, and no
// ledger file is written.
func (r *Runner) Run(ctx context.Context, dryRun bool) (*session.Session, error) {
	// Размер бандла проверяется до любого перевода средств: create + tip +
	// участники должны помещаться в лимит релея.
	if total := r.cfg.WalletCount + 2; total > jito.MaxBundleTransactions {
		return nil, fmt.Errorf("wallet_count %d does not fit an atomic bundle: %d transactions with create and tip, relay limit is %d",
			r.cfg.WalletCount, total, jito.MaxBundleTransactions)
	}

	authority, err := wallet.NewWallet(r.cfg.AuthorityKey)
	if err != nil {
		return nil, fmt.Errorf("invalid authority key: %w", err)
	}
	distributor, err := wallet.NewWallet(r.cfg.DistributorKey)
	if err != nil {
		return nil, fmt.Errorf("invalid distributor key: %w", err)
	}

	participants, err := wallet.GenerateSet(r.cfg.WalletCount)
	if err != nil {
		return nil, err
	}
	sess := session.New(r.cfg.Network, authority.PublicKey.String(), distributor.PublicKey.String(), participants)
	log := r.logger.With(zap.String("session_id", sess.ID))
	log.Info("Session started",
		zap.Int("participants", len(participants)),
		zap.Bool("dry_run", dryRun))

	plan, err := funding.Plan(participants,
		SolToLamports(r.cfg.BuyAmountSOL),
		SolToLamports(r.cfg.RetainAmountSOL),
		SolToLamports(r.cfg.FeeReserveSOL),
		buyVarianceBps,
		rand.New(rand.NewSource(time.Now().UnixNano())))
	if err != nil {
		return nil, err
	}

	// Свежий снапшот кривой перед каждым расчётом котировок. Для нового
	// токена это initial-резервы из global-аккаунта программы.
	globalAddr, err := pumpfun.DeriveGlobal()
	if err != nil {
		return nil, err
	}
	global, err := pumpfun.FetchGlobalAccount(ctx, r.chain, globalAddr, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch global curve parameters: %w", err)
	}
	snapshot := bundle.CurveSnapshot{
		VirtualSolReserves:   global.InitialVirtualSolReserves,
		VirtualTokenReserves: global.InitialVirtualTokenReserves,
	}

	metadata := pumpfun.TokenMetadata{
		Name:        r.cfg.TokenName,
		Symbol:      r.cfg.TokenSymbol,
		Description: r.cfg.TokenDescription,
		ImagePath:   r.cfg.TokenImagePath,
		Twitter:     r.cfg.TokenTwitter,
		Telegram:    r.cfg.TokenTelegram,
		Website:     r.cfg.TokenWebsite,
	}
	if dryRun {
		metadata.URI = "https://pump.fun/dry-run.json"
	} else {
		uri, err := r.uploader.Upload(ctx, metadata)
		if err != nil {
			return nil, fmt.Errorf("metadata upload failed: %w", err)
		}
		metadata.URI = uri
	}

	if dryRun {
		return sess, r.dryRun(sess, log, authority, plan, metadata, snapshot)
	}

	if err := r.save(sess, log); err != nil {
		return sess, err
	}

	// funding must land before bundle building: participants pay their own
	// transaction fees from the distributed balance
	if err := r.fund(ctx, sess, log, plan, distributor, authority); err != nil {
		return sess, r.fail(sess, log, err)
	}

	result, mintKey, err := r.buildAndSubmit(ctx, sess, log, authority, plan, metadata, snapshot)
	if err != nil {
		submitErr := r.fail(sess, log, err)
		// Средства уже разошлись по кошелькам: подбираем их даже после
		// неудачной отправки.
		if _, sweepErr := r.Recover(ctx, sess); sweepErr != nil {
			log.Error("Post-failure recovery failed", zap.Error(sweepErr))
		}
		return sess, submitErr
	}

	sess.Mint = mintKey
	sess.BundleID = result.BundleID
	sess.TipSignature = result.TipSignature.String()
	sess.Degraded = result.Degraded
	sess.SetStatus(session.StatusConfirmed)
	if err := r.save(sess, log); err != nil {
		return sess, err
	}

	if _, err := r.Recover(ctx, sess); err != nil {
		log.Error("Recovery after confirmed bundle failed", zap.Error(err))
	}

	log.Info("Session complete",
		zap.String("mint", sess.Mint),
		zap.Bool("degraded", sess.Degraded),
		zap.Uint64("distributed", sess.Totals.Distributed),
		zap.Uint64("recovered", sess.Totals.Recovered))
	return sess, nil
}

func (r *Runner) dryRun(sess *session.Session, log *zap.Logger, authority *wallet.Wallet, plan []funding.Allocation, metadata pumpfun.TokenMetadata, snapshot bundle.CurveSnapshot) error {
	mint, err := wallet.Generate()
	if err != nil {
		return err
	}
	builder := bundle.NewBuilder(r.logger, r.cfg.ComputeUnitLimit, r.cfg.ComputeUnitPrice)
	b, err := builder.Build(bundle.BuildParams{
		Authority:            authority,
		Mint:                 mint,
		Participants:         plan,
		Metadata:             metadata,
		AuthorityBuyLamports: SolToLamports(r.cfg.AuthorityBuySOL),
		Snapshot:             snapshot,
		SlippageBps:          r.cfg.SlippageBps,
	}, solana.Hash{1}) // бандл не отправляется, blockhash не важен
	if err != nil {
		return err
	}
	if err := bundle.Validate(b); err != nil {
		return err
	}

	log.Info("Dry run complete, nothing was funded or submitted",
		zap.String("would_be_mint", mint.PublicKey.String()),
		zap.Int("bundle_transactions", len(b.Transactions)),
		zap.Uint64("funding_required", funding.TotalRequired(plan)),
		zap.Uint64("authority_required", r.authorityNeed()),
		zap.Uint64("tip_lamports", SolToLamports(r.cfg.TipAmountSOL)))
	return nil
}

func (r *Runner) fund(ctx context.Context, sess *session.Session, log *zap.Logger, plan []funding.Allocation, distributor, authority *wallet.Wallet) error {
	manager := funding.NewManager(r.chain, r.logger, funding.Options{
		ComputeUnitLimit: r.cfg.ComputeUnitLimit,
		ComputeUnitPrice: r.cfg.ComputeUnitPrice,
		RetryPolicy:      r.policy,
		ConfirmTimeout:   time.Duration(r.cfg.ConfirmTimeoutSec) * time.Second,
	})
	result, err := manager.Execute(ctx, plan, distributor, authority,
		r.authorityNeed(), SolToLamports(r.cfg.DistributorBuffers))
	if err != nil {
		return err
	}

	sess.Totals.Distributed = result.TotalDistributed
	for i, a := range plan {
		sess.Wallets[i].InitialBalance = a.Total()
	}
	sess.SetStatus(session.StatusFunded)
	return r.save(sess, log)
}

func (r *Runner) buildAndSubmit(ctx context.Context, sess *session.Session, log *zap.Logger, authority *wallet.Wallet, plan []funding.Allocation, metadata pumpfun.TokenMetadata, snapshot bundle.CurveSnapshot) (*bundle.Result, string, error) {
	mint, err := wallet.Generate()
	if err != nil {
		return nil, "", err
	}

	blockhash, err := r.chain.GetRecentBlockhash(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get blockhash: %w", err)
	}

	builder := bundle.NewBuilder(r.logger, r.cfg.ComputeUnitLimit, r.cfg.ComputeUnitPrice)
	b, err := builder.Build(bundle.BuildParams{
		Authority:            authority,
		Mint:                 mint,
		Participants:         plan,
		Metadata:             metadata,
		AuthorityBuyLamports: SolToLamports(r.cfg.AuthorityBuySOL),
		Snapshot:             snapshot,
		SlippageBps:          r.cfg.SlippageBps,
	}, blockhash)
	if err != nil {
		return nil, "", err
	}

	sess.SetStatus(session.StatusSubmitted)
	if err := r.save(sess, log); err != nil {
		return nil, "", err
	}

	submitter := bundle.NewSubmitter(r.relay, r.chain, r.logger, bundle.SubmitOptions{
		TipLamports:      SolToLamports(r.cfg.TipAmountSOL),
		ComputeUnitLimit: r.cfg.ComputeUnitLimit,
		ComputeUnitPrice: r.cfg.ComputeUnitPrice,
		RetryPolicy:      r.policy,
		ConfirmTimeout:   time.Duration(r.cfg.ConfirmTimeoutSec) * time.Second,
		DisableFallback:  r.cfg.DisableFallback,
	})
	result, err := submitter.Submit(ctx, b, authority)
	if err != nil {
		return nil, "", err
	}

	r.observeCurve(ctx, log, b.Addresses.BondingCurve)
	return result, mint.PublicKey.String(), nil
}

// observeCurve watches the new bonding curve briefly to log its first live
// state, then unsubscribes.
func (r *Runner) observeCurve(ctx context.Context, log *zap.Logger, bondingCurve solana.PublicKey) {
	sub := r.watcher.Subscribe(ctx, bondingCurve)
	defer sub.Unsubscribe()

	select {
	case curve, ok := <-sub.Updates:
		if ok {
			log.Info("Bonding curve is live",
				zap.Uint64("virtual_sol_reserves", curve.VirtualSolReserves),
				zap.Uint64("virtual_token_reserves", curve.VirtualTokenReserves))
		}
	case <-time.After(30 * time.Second):
		log.Warn("Bonding curve not observed within 30s of confirmation")
	case <-ctx.Done():
	}
}

// Recover sweeps participant wallets back to the distributor and persists the
// updated ledger. Runs standalone against any persisted session.
func (r *Runner) Recover(ctx context.Context, sess *session.Session) (*recovery.Report, error) {
	distributor, err := wallet.NewWallet(r.cfg.DistributorKey)
	if err != nil {
		return nil, fmt.Errorf("invalid distributor key: %w", err)
	}
	if got := distributor.PublicKey.String(); got != sess.Distributor {
		return nil, fmt.Errorf("configured distributor %s does not match session distributor %s", got, sess.Distributor)
	}

	manager := recovery.NewManager(r.chain, r.store, r.logger, recovery.Options{
		RetryPolicy:    r.policy,
		ConfirmTimeout: time.Duration(r.cfg.ConfirmTimeoutSec) * time.Second,
	})
	return manager.Sweep(ctx, sess, distributor.PublicKey, SolToLamports(r.cfg.RetainAmountSOL))
}

// Analyze reports live balances for a persisted session without mutating it.
func (r *Runner) Analyze(ctx context.Context, sess *session.Session) ([]recovery.WalletBalance, error) {
	manager := recovery.NewManager(r.chain, r.store, r.logger, recovery.Options{})
	return manager.Analyze(ctx, sess)
}

// authorityNeed estimates what the authority wallet must hold before the run:
// its own slippage-bounded purchase, creation rent, the relay tip and fees.
func (r *Runner) authorityNeed() uint64 {
	buy := SolToLamports(r.cfg.AuthorityBuySOL)
	return pumpfun.WithSlippageBuy(buy, r.cfg.SlippageBps) +
		creationFeeLamports +
		SolToLamports(r.cfg.TipAmountSOL) +
		2*feeLamports
}

func (r *Runner) fail(sess *session.Session, log *zap.Logger, cause error) error {
	sess.SetStatus(session.StatusFailed)
	if err := r.save(sess, log); err != nil {
		log.Error("Failed to persist failed session", zap.Error(err))
	}
	return cause
}

func (r *Runner) save(sess *session.Session, log *zap.Logger) error {
	if err := r.store.Save(sess); err != nil {
		log.Error("Session save failed", zap.Error(err))
		return err
	}
	return nil
}
