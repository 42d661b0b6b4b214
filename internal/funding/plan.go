// ==============================
// File: internal/funding/plan.go
// ==============================

// Package funding generates disposable participant wallets, computes their
// per-wallet requirement (purchase + fee reserve + retained balance) and lands
// the distribution transfer on-chain before any bundle is built.
package funding

import (
	"fmt"
	"math/rand"

	"github.com/rovshanmuradov/pump-bundler/internal/wallet"
)

// Allocation is the funding requirement of one participant wallet. The amount
// transferred must equal exactly BuyLamports + FeeReserve + Retain, fixed
// before any instruction is built: the bundle is atomic and cannot be amended
// after submission.
type Allocation struct {
	Wallet      *wallet.Wallet
	BuyLamports uint64
	FeeReserve  uint64
	Retain      uint64
}

// Total возвращает полную сумму перевода для кошелька.
func (a Allocation) Total() uint64 {
	return a.BuyLamports + a.FeeReserve + a.Retain
}

// Plan builds one Allocation per wallet. varianceBps spreads each wallet's buy
// amount uniformly around baseBuy (2000 = ±20%) so that the purchases don't
// form a detectable uniform-amount pattern; zero variance keeps every amount
// at baseBuy exactly.
func Plan(wallets []*wallet.Wallet, baseBuy, retain, feeReserve, varianceBps uint64, rng *rand.Rand) ([]Allocation, error) {
	if len(wallets) == 0 {
		return nil, fmt.Errorf("funding plan requires at least one wallet")
	}
	if baseBuy == 0 {
		return nil, fmt.Errorf("invalid base buy amount 0: must be positive")
	}
	if varianceBps >= 10_000 {
		return nil, fmt.Errorf("invalid variance %d bps: must be below 10000", varianceBps)
	}

	seen := make(map[string]struct{}, len(wallets))
	allocations := make([]Allocation, 0, len(wallets))
	for _, w := range wallets {
		key := w.PublicKey.String()
		if _, ok := seen[key]; ok {
			return nil, fmt.Errorf("duplicate wallet %s in funding plan", key)
		}
		seen[key] = struct{}{}
		buy := baseBuy
		if varianceBps > 0 && rng != nil {
			spread := baseBuy * varianceBps / 10_000
			// равномерно в диапазоне [baseBuy-spread, baseBuy+spread]
			buy = baseBuy - spread + uint64(rng.Int63n(int64(2*spread+1)))
		}
		allocations = append(allocations, Allocation{
			Wallet:      w,
			BuyLamports: buy,
			FeeReserve:  feeReserve,
			Retain:      retain,
		})
	}
	return allocations, nil
}

// TotalRequired is the sum every allocation will pull from the distributor.
func TotalRequired(plan []Allocation) uint64 {
	var total uint64
	for _, a := range plan {
		total += a.Total()
	}
	return total
}
