package pricing

import (
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/shopspring/decimal"
)

// BpsDenominator is 100% expressed in basis points
const BpsDenominator = 10_000

// divisionPrecision is the number of fractional digits kept by reserve divisions.
// Reserves are persisted at 18 places; the extra digits keep k stable across
// long trade sequences.
const divisionPrecision = 36

var (
	hundred = decimal.NewFromInt(100)
	bpsDen  = decimal.NewFromInt(BpsDenominator)

	// MaxProductDrift is the relative change in virtualSol*virtualToken a
	// trade may introduce through rounding
	MaxProductDrift = decimal.New(1, -6)
)

// Quote is the result of pricing a trade against the curve
type Quote struct {
	AmountIn        decimal.Decimal `json:"amount_in"`
	AmountOut       decimal.Decimal `json:"amount_out"`
	NewVirtualSol   decimal.Decimal `json:"new_virtual_sol"`
	NewVirtualToken decimal.Decimal `json:"new_virtual_token"`
	PriceBefore     decimal.Decimal `json:"price_before"`
	PriceAfter      decimal.Decimal `json:"price_after"`
	PriceImpactPct  decimal.Decimal `json:"price_impact_pct"`
}

// Price returns the spot price in SOL per token
func Price(virtualSol, virtualToken decimal.Decimal) decimal.Decimal {
	if !virtualToken.IsPositive() {
		return decimal.Zero
	}
	return virtualSol.DivRound(virtualToken, divisionPrecision)
}

// QuoteBuy prices spending solIn SOL against the curve.
// k = vs*vt, vs' = vs+solIn, vt' = k/vs', tokensOut = vt-vt'
func QuoteBuy(solIn, virtualSol, virtualToken decimal.Decimal) (*Quote, error) {
	if !solIn.IsPositive() {
		return nil, apperrors.ErrInvalidAmount
	}
	if err := checkReserves(virtualSol, virtualToken); err != nil {
		return nil, err
	}

	k := virtualSol.Mul(virtualToken)
	newVirtualSol := virtualSol.Add(solIn)
	newVirtualToken := k.DivRound(newVirtualSol, divisionPrecision)
	tokensOut := virtualToken.Sub(newVirtualToken)

	if !newVirtualToken.IsPositive() {
		return nil, apperrors.ErrCurveExhausted
	}
	if !tokensOut.IsPositive() {
		return nil, apperrors.ErrInvalidAmount.WithReason("trade too small to produce output")
	}

	return newQuote(solIn, tokensOut, virtualSol, virtualToken, newVirtualSol, newVirtualToken), nil
}

// QuoteSell prices selling tokensIn tokens into the curve.
// k = vs*vt, vt' = vt+tokensIn, vs' = k/vt', solOut = vs-vs'
func QuoteSell(tokensIn, virtualSol, virtualToken decimal.Decimal) (*Quote, error) {
	if !tokensIn.IsPositive() {
		return nil, apperrors.ErrInvalidAmount
	}
	if err := checkReserves(virtualSol, virtualToken); err != nil {
		return nil, err
	}

	k := virtualSol.Mul(virtualToken)
	newVirtualToken := virtualToken.Add(tokensIn)
	newVirtualSol := k.DivRound(newVirtualToken, divisionPrecision)
	solOut := virtualSol.Sub(newVirtualSol)

	if !newVirtualSol.IsPositive() {
		return nil, apperrors.ErrCurveExhausted
	}
	if !solOut.IsPositive() {
		return nil, apperrors.ErrInvalidAmount.WithReason("trade too small to produce output")
	}

	return newQuote(tokensIn, solOut, virtualSol, virtualToken, newVirtualSol, newVirtualToken), nil
}

func checkReserves(virtualSol, virtualToken decimal.Decimal) error {
	if !virtualSol.IsPositive() || !virtualToken.IsPositive() {
		return apperrors.ErrCurveExhausted.WithReason("reserves must be positive")
	}
	return nil
}

func newQuote(in, out, vs, vt, newVs, newVt decimal.Decimal) *Quote {
	before := Price(vs, vt)
	after := Price(newVs, newVt)

	// Price impact = |after - before| / before, as a percentage
	impact := decimal.Zero
	if before.IsPositive() {
		impact = after.Sub(before).Abs().DivRound(before, divisionPrecision).Mul(hundred)
	}

	return &Quote{
		AmountIn:        in,
		AmountOut:       out,
		NewVirtualSol:   newVs,
		NewVirtualToken: newVt,
		PriceBefore:     before,
		PriceAfter:      after,
		PriceImpactPct:  impact.Round(4),
	}
}

// Progress returns realSol/threshold*100 capped at 100, truncated to four
// places so it only reads 100 once realSol has reached threshold
func Progress(realSol, threshold decimal.Decimal) decimal.Decimal {
	if !threshold.IsPositive() || !realSol.IsPositive() {
		return decimal.Zero
	}
	if realSol.GreaterThanOrEqual(threshold) {
		return hundred
	}
	return realSol.DivRound(threshold, divisionPrecision).Mul(hundred).Truncate(4)
}

// IsComplete reports whether progress has reached 100
func IsComplete(progress decimal.Decimal) bool {
	return progress.GreaterThanOrEqual(hundred)
}

// FeeFor returns amount*bps/10000
func FeeFor(amount decimal.Decimal, bps int) decimal.Decimal {
	if bps <= 0 || !amount.IsPositive() {
		return decimal.Zero
	}
	return amount.Mul(decimal.NewFromInt(int64(bps))).DivRound(bpsDen, divisionPrecision)
}

// BpsToPct converts basis points to a percentage
func BpsToPct(bps int) decimal.Decimal {
	return decimal.NewFromInt(int64(bps)).Div(hundred)
}

// MinOutput returns the least output a caller accepts for a slippage tolerance
func MinOutput(expected decimal.Decimal, slippageBps int) decimal.Decimal {
	if slippageBps <= 0 {
		return expected
	}
	if slippageBps >= BpsDenominator {
		return decimal.Zero
	}
	keep := decimal.NewFromInt(int64(BpsDenominator - slippageBps))
	return expected.Mul(keep).DivRound(bpsDen, divisionPrecision)
}

// ConstantProductDrift returns |after-before|/before for two reserve products
func ConstantProductDrift(vsBefore, vtBefore, vsAfter, vtAfter decimal.Decimal) decimal.Decimal {
	before := vsBefore.Mul(vtBefore)
	if before.IsZero() {
		return decimal.Zero
	}
	return vsAfter.Mul(vtAfter).Sub(before).Abs().DivRound(before, divisionPrecision)
}
