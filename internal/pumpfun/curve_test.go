// ==================================
// File: internal/pumpfun/curve_test.go
// ==================================
package pumpfun

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// initial mainnet virtual reserves
const (
	testVirtualSol   = uint64(30_000_000_000)
	testVirtualToken = uint64(1_073_000_000_000_000)
)

func TestQuoteBuy(t *testing.T) {
	// 1 SOL into the fresh curve:
	// 1_073_000_000_000_000 * 1e9 / (30e9 + 1e9)
	got := QuoteBuy(testVirtualSol, testVirtualToken, 1_000_000_000)
	assert.Equal(t, uint64(34_612_903_225_806), got)

	assert.Zero(t, QuoteBuy(testVirtualSol, testVirtualToken, 0))
	assert.Zero(t, QuoteBuy(0, testVirtualToken, 1))
	assert.Zero(t, QuoteBuy(testVirtualSol, 0, 1))
}

func TestQuoteBuyMonotonic(t *testing.T) {
	prev := uint64(0)
	for _, in := range []uint64{1_000, 1_000_000, 1_000_000_000, 10_000_000_000} {
		out := QuoteBuy(testVirtualSol, testVirtualToken, in)
		assert.Greater(t, out, prev, "quoteBuy must strictly increase with input %d", in)
		prev = out
	}
}

func TestQuoteSellFee(t *testing.T) {
	tokensIn := uint64(1_000_000_000_000)
	gross := QuoteSell(testVirtualSol, testVirtualToken, tokensIn, 0)
	net := QuoteSell(testVirtualSol, testVirtualToken, tokensIn, 100)

	// 100 bps fee removes exactly floor(gross/100)
	assert.Equal(t, gross-gross/100, net)
	assert.Less(t, net, gross)
}

func TestQuoteSellMonotonic(t *testing.T) {
	prev := uint64(0)
	for _, in := range []uint64{1_000_000, 1_000_000_000, 1_000_000_000_000} {
		out := QuoteSell(testVirtualSol, testVirtualToken, in, 0)
		assert.Greater(t, out, prev)
		prev = out
	}
}

func TestSlippageBounds(t *testing.T) {
	amounts := []uint64{1, 7, 999, 1_000_000, 30_000_000_000}
	bpsValues := []uint64{1, 100, 500, 9_999}

	for _, amount := range amounts {
		for _, bps := range bpsValues {
			upper := WithSlippageBuy(amount, bps)
			lower := WithSlippageSell(amount, bps)
			assert.Greater(t, upper, amount, "buy bound must be strictly above for amount=%d bps=%d", amount, bps)
			assert.Less(t, lower, amount, "sell bound must be strictly below for amount=%d bps=%d", amount, bps)
		}

		// zero tolerance keeps the amount unchanged
		assert.Equal(t, amount, WithSlippageBuy(amount, 0))
		assert.Equal(t, amount, WithSlippageSell(amount, 0))
	}
}

func TestSlippageSellClampsAtZero(t *testing.T) {
	assert.Zero(t, WithSlippageSell(1, 9_999))
	assert.Zero(t, WithSlippageSell(0, 500))
}

func TestSlippageBuyKnownValues(t *testing.T) {
	// 5% of 1 SOL
	assert.Equal(t, uint64(1_050_000_000), WithSlippageBuy(1_000_000_000, 500))
	// margin rounds up: 1% of 99 is 0.99, bound widens by 1
	assert.Equal(t, uint64(100), WithSlippageBuy(99, 100))
}
