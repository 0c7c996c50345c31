// Package poolmath implements the pure constant-product pool arithmetic the
// rest of the core depends on: expected-out quoting, slippage-bounded
// minimum-out computation, and fee scaling. Every function here is
// dependency-free and deterministic over math/big so that a quote computed
// against a snapshot reserves pair is reproducible in tests without a chain.
package poolmath

import "math/big"

// platformFeeNumerator and platformFeeDenominator give the pool's platform
// fee factor of 9900/10000 applied to the input side before the constant
// product invariant.
var (
	platformFeeNumerator   = big.NewInt(9900)
	platformFeeDenominator = big.NewInt(10000)
	bpsDenominator         = big.NewInt(10000)
	one                    = big.NewInt(1)
)

// Reserves is an ephemeral read of a pool's constant-product state. It is
// never persisted; a Reserves value is only meaningful for the instant it
// was sampled.
type Reserves struct {
	ETH   *big.Int
	Token *big.Int
}

// marketCapFudgeFactor: market cap estimation multiplies
// ethCollected * ethUsd * 100, and the x100 factor is not justified by any
// derivation on record. Named here rather than inlined so a future reader
// can find and re-justify (or remove) it without re-deriving it from a raw
// literal.
const marketCapFudgeFactor = 100

// MarketCapWei estimates a token's market cap in wei-equivalent terms from
// the ETH a pair has collected and a live ETH/USD price, applying the
// unverified x100 factor flagged above.
func MarketCapWei(ethCollected *big.Int, ethUsd *big.Rat) *big.Rat {
	collected := new(big.Rat).SetInt(ethCollected)
	cap := new(big.Rat).Mul(collected, ethUsd)
	cap.Mul(cap, big.NewRat(marketCapFudgeFactor, 1))
	return cap
}

// BuyQuote computes the expected token output and the slippage-protected
// minimum acceptable output for an ETH input of ethIn against reserves r,
// at a slippage tolerance of slippageBps basis points.
//
// effective input x' = x * phi / B
// Rt' = floor(k / (Re + x'))
// expectedOut = Rt - Rt' (clamped >= 0)
// minOut = floor(expectedOut * (B - s) / B) - 1
func BuyQuote(r Reserves, ethIn *big.Int, slippageBps int64) (expectedOut, minOut *big.Int) {
	effectiveIn := new(big.Int).Mul(ethIn, platformFeeNumerator)
	effectiveIn.Div(effectiveIn, platformFeeDenominator)

	k := new(big.Int).Mul(r.ETH, r.Token)
	newEthReserve := new(big.Int).Add(r.ETH, effectiveIn)

	newTokenReserve := big.NewInt(0)
	if newEthReserve.Sign() > 0 {
		newTokenReserve.Div(k, newEthReserve)
	}

	expectedOut = new(big.Int).Sub(r.Token, newTokenReserve)
	if expectedOut.Sign() < 0 {
		expectedOut = big.NewInt(0)
	}

	minOut = applySlippage(expectedOut, slippageBps)
	return expectedOut, minOut
}

// SellQuote is the symmetric counterpart of BuyQuote with tokens as input
// and ETH as output.
func SellQuote(r Reserves, tokenIn *big.Int, slippageBps int64) (expectedOut, minOut *big.Int) {
	swapped := Reserves{ETH: r.Token, Token: r.ETH}
	return BuyQuote(swapped, tokenIn, slippageBps)
}

// applySlippage implements minOut = floor(expected * (B - s) / B) - 1. The
// minus-one-wei guard protects against pool-side rounding so a trade
// computed against an unmoved snapshot never reverts purely on integer
// rounding.
func applySlippage(expected *big.Int, slippageBps int64) *big.Int {
	if expected.Sign() <= 0 {
		return big.NewInt(-1)
	}
	s := big.NewInt(slippageBps)
	factor := new(big.Int).Sub(bpsDenominator, s)
	minOut := new(big.Int).Mul(expected, factor)
	minOut.Div(minOut, bpsDenominator)
	minOut.Sub(minOut, one)
	return minOut
}
