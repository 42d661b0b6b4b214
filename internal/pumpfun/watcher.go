// ================================
// File: internal/pumpfun/watcher.go
// ================================
package pumpfun

import (
	"context"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/pump-bundler/internal/solbc"
)

// CurveWatcher polls a bonding curve account and reports state changes.
// Subscriptions are explicit objects with an Unsubscribe; there is no global
// callback registry.
type CurveWatcher struct {
	client   *solbc.Client
	logger   *zap.Logger
	interval time.Duration
}

func NewCurveWatcher(client *solbc.Client, logger *zap.Logger, interval time.Duration) *CurveWatcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &CurveWatcher{
		client:   client,
		logger:   logger.Named("curve-watcher"),
		interval: interval,
	}
}

// CurveSubscription delivers curve snapshots on Updates until Unsubscribe is
// called or the parent context ends. Updates is closed when the subscription
// stops.
type CurveSubscription struct {
	Updates <-chan *BondingCurveAccount
	cancel  context.CancelFunc
	done    chan struct{}
}

// Unsubscribe stops the watcher goroutine and waits for it to exit.
func (s *CurveSubscription) Unsubscribe() {
	s.cancel()
	<-s.done
}

// Subscribe starts polling the given bonding curve address. A snapshot is
// delivered when the account first appears and whenever its reserves change.
func (w *CurveWatcher) Subscribe(ctx context.Context, bondingCurve solana.PublicKey) *CurveSubscription {
	ctx, cancel := context.WithCancel(ctx)
	updates := make(chan *BondingCurveAccount, 4)
	sub := &CurveSubscription{
		Updates: updates,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		defer close(updates)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		var last *BondingCurveAccount
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				curve, err := FetchBondingCurveAccount(ctx, w.client, bondingCurve, w.logger)
				if err != nil {
					// аккаунт ещё не создан или временная ошибка RPC
					w.logger.Debug("Curve poll failed",
						zap.String("bonding_curve", bondingCurve.String()),
						zap.Error(err))
					continue
				}
				if last != nil &&
					last.VirtualSolReserves == curve.VirtualSolReserves &&
					last.VirtualTokenReserves == curve.VirtualTokenReserves &&
					last.Complete == curve.Complete {
					continue
				}
				last = curve
				select {
				case updates <- curve:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return sub
}
