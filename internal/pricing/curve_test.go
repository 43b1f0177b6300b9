package pricing

import (
	"errors"
	"testing"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	initialSol   = decimal.NewFromInt(30)
	initialToken = decimal.NewFromInt(1_000_000_000)
	epsilon      = decimal.RequireFromString("0.000001")
)

func TestQuoteBuy(t *testing.T) {
	t.Run("ten SOL from launch reserves", func(t *testing.T) {
		q, err := QuoteBuy(decimal.NewFromInt(10), initialSol, initialToken)
		require.NoError(t, err)

		assert.True(t, q.AmountOut.Equal(decimal.NewFromInt(250_000_000)), q.AmountOut.String())
		assert.True(t, q.NewVirtualSol.Equal(decimal.NewFromInt(40)))
		assert.True(t, q.NewVirtualToken.Equal(decimal.NewFromInt(750_000_000)))
		assert.True(t, q.PriceAfter.GreaterThan(q.PriceBefore))
		assert.True(t, q.PriceImpactPct.IsPositive())
	})

	t.Run("rejects non-positive input", func(t *testing.T) {
		for _, amt := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-1)} {
			_, err := QuoteBuy(amt, initialSol, initialToken)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidAmount))
		}
	})

	t.Run("rejects exhausted reserves", func(t *testing.T) {
		_, err := QuoteBuy(decimal.NewFromInt(1), decimal.Zero, initialToken)
		assert.True(t, errors.Is(err, apperrors.ErrCurveExhausted))

		_, err = QuoteBuy(decimal.NewFromInt(1), initialSol, decimal.Zero)
		assert.True(t, errors.Is(err, apperrors.ErrCurveExhausted))
	})
}

func TestQuoteSell(t *testing.T) {
	buy, err := QuoteBuy(decimal.NewFromInt(10), initialSol, initialToken)
	require.NoError(t, err)

	sell, err := QuoteSell(buy.AmountOut, buy.NewVirtualSol, buy.NewVirtualToken)
	require.NoError(t, err)

	// Selling everything bought returns the SOL that went in
	assert.True(t, sell.AmountOut.Sub(decimal.NewFromInt(10)).Abs().LessThan(epsilon), sell.AmountOut.String())
	assert.True(t, sell.PriceAfter.LessThan(sell.PriceBefore))

	_, err = QuoteSell(decimal.Zero, initialSol, initialToken)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidAmount))
}

func TestConstantProductPreserved(t *testing.T) {
	vs, vt := initialSol, initialToken
	k := vs.Mul(vt)

	steps := []struct {
		buy    bool
		amount string
	}{
		{true, "1.5"}, {true, "0.333333333"}, {false, "12345678.9"},
		{true, "7"}, {false, "99999999"}, {true, "0.000001"},
		{false, "1"}, {true, "22.75"}, {false, "500000000"},
	}

	for _, s := range steps {
		var q *Quote
		var err error
		if s.buy {
			q, err = QuoteBuy(decimal.RequireFromString(s.amount), vs, vt)
		} else {
			q, err = QuoteSell(decimal.RequireFromString(s.amount), vs, vt)
		}
		require.NoError(t, err)

		drift := ConstantProductDrift(vs, vt, q.NewVirtualSol, q.NewVirtualToken)
		assert.True(t, drift.LessThan(epsilon), "step drift %s", drift)

		vs, vt = q.NewVirtualSol, q.NewVirtualToken
	}

	total := vs.Mul(vt).Sub(k).Abs().Div(k)
	assert.True(t, total.LessThan(epsilon), "cumulative drift %s", total)
}

func TestPriceImpactMonotonic(t *testing.T) {
	amounts := []string{"0.01", "0.1", "1", "5", "10", "50"}

	var prevImpact, prevRatio decimal.Decimal
	for i, a := range amounts {
		in := decimal.RequireFromString(a)
		q, err := QuoteBuy(in, initialSol, initialToken)
		require.NoError(t, err)

		// Output per unit of input falls as impact grows
		ratio := q.AmountOut.Div(in)
		if i > 0 {
			assert.True(t, q.PriceImpactPct.GreaterThan(prevImpact), "impact at %s", a)
			assert.True(t, ratio.LessThan(prevRatio), "output rate at %s", a)
		}
		prevImpact, prevRatio = q.PriceImpactPct, ratio
	}
}

func TestProgress(t *testing.T) {
	threshold := decimal.NewFromInt(85)

	p := Progress(decimal.NewFromInt(10), threshold)
	assert.Equal(t, "11.7647", p.String())
	assert.False(t, IsComplete(p))

	assert.True(t, Progress(decimal.NewFromInt(85), threshold).Equal(decimal.NewFromInt(100)))
	assert.True(t, Progress(decimal.NewFromInt(120), threshold).Equal(decimal.NewFromInt(100)))
	assert.True(t, IsComplete(Progress(decimal.NewFromInt(120), threshold)))
	assert.True(t, Progress(decimal.Zero, threshold).IsZero())
	assert.True(t, Progress(decimal.NewFromInt(1), decimal.Zero).IsZero())

	// Reserves a hair below the threshold must not round up to complete
	p = Progress(decimal.RequireFromString("84.99996"), threshold)
	assert.Equal(t, "99.9999", p.String())
	assert.False(t, IsComplete(p))
}

func TestBpsToPct(t *testing.T) {
	assert.Equal(t, "1", BpsToPct(100).String())
	assert.Equal(t, "0.01", BpsToPct(1).String())
	assert.True(t, BpsToPct(0).IsZero())
}

func TestFeeAndSlippage(t *testing.T) {
	assert.True(t, FeeFor(decimal.NewFromInt(10), 100).Equal(decimal.RequireFromString("0.1")))
	assert.True(t, FeeFor(decimal.NewFromInt(10), 0).IsZero())

	expected := decimal.NewFromInt(1000)
	assert.True(t, MinOutput(expected, 50).Equal(decimal.NewFromInt(995)))
	assert.True(t, MinOutput(expected, 0).Equal(expected))
	assert.True(t, MinOutput(expected, 10_000).IsZero())
}
