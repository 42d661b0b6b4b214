// =============================
// File: internal/pumpfun/curve.go
// =============================
package pumpfun

import "math/big"

// Pricing follows the constant-product formula over the curve's virtual
// reserves. All arithmetic is integer only: intermediate products are carried
// in big.Int (the on-chain program computes in u128) and divisions truncate
// toward zero, matching the program's integer semantics.

const bpsDenominator = 10_000

// QuoteBuy returns the token amount received for solIn lamports against the
// given virtual reserves.
func QuoteBuy(virtualSolReserves, virtualTokenReserves, solIn uint64) uint64 {
	if solIn == 0 || virtualSolReserves == 0 || virtualTokenReserves == 0 {
		return 0
	}
	// tokensOut = virtualTokenReserves * solIn / (virtualSolReserves + solIn)
	num := new(big.Int).Mul(
		new(big.Int).SetUint64(virtualTokenReserves),
		new(big.Int).SetUint64(solIn),
	)
	den := new(big.Int).Add(
		new(big.Int).SetUint64(virtualSolReserves),
		new(big.Int).SetUint64(solIn),
	)
	return new(big.Int).Quo(num, den).Uint64()
}

// QuoteSell returns the lamports received for tokensIn, reduced by the
// protocol fee in basis points.
func QuoteSell(virtualSolReserves, virtualTokenReserves, tokensIn, feeBps uint64) uint64 {
	if tokensIn == 0 || virtualSolReserves == 0 || virtualTokenReserves == 0 {
		return 0
	}
	// solOut = virtualSolReserves * tokensIn / (virtualTokenReserves + tokensIn)
	num := new(big.Int).Mul(
		new(big.Int).SetUint64(virtualSolReserves),
		new(big.Int).SetUint64(tokensIn),
	)
	den := new(big.Int).Add(
		new(big.Int).SetUint64(virtualTokenReserves),
		new(big.Int).SetUint64(tokensIn),
	)
	solOut := new(big.Int).Quo(num, den).Uint64()

	fee := mulBps(solOut, feeBps)
	return solOut - fee
}

// WithSlippageBuy returns the upper cost bound the payer accepts:
// amount * (1 + bps/10000). The margin rounds up so the bound is strictly
// above amount whenever bps > 0.
func WithSlippageBuy(amount, bps uint64) uint64 {
	return amount + marginBps(amount, bps)
}

// WithSlippageSell returns the lower proceeds bound the payer accepts:
// amount * (1 - bps/10000). The margin rounds up so the bound is strictly
// below amount whenever bps > 0.
func WithSlippageSell(amount, bps uint64) uint64 {
	margin := marginBps(amount, bps)
	if margin > amount {
		return 0
	}
	return amount - margin
}

func mulBps(amount, bps uint64) uint64 {
	product := new(big.Int).Mul(
		new(big.Int).SetUint64(amount),
		new(big.Int).SetUint64(bps),
	)
	return new(big.Int).Quo(product, big.NewInt(bpsDenominator)).Uint64()
}

// marginBps is mulBps rounded up: a non-zero tolerance always widens the bound
// by at least one lamport.
func marginBps(amount, bps uint64) uint64 {
	if amount == 0 || bps == 0 {
		return 0
	}
	product := new(big.Int).Mul(
		new(big.Int).SetUint64(amount),
		new(big.Int).SetUint64(bps),
	)
	product.Add(product, big.NewInt(bpsDenominator-1))
	return new(big.Int).Quo(product, big.NewInt(bpsDenominator)).Uint64()
}
