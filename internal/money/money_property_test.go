package money

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// Property: n * round2(V/n) differs from V by at most 0.01 * n.
func TestDivRoundResidualBound(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("split residual stays within a cent per share", prop.ForAll(
		func(cents int64, n int64) bool {
			total := FromCents(cents)
			share := total.DivRound(n)
			residual := share.MulInt(n).Sub(total).Abs()
			return residual.LessOrEqual(FromCents(n))
		},
		gen.Int64Range(1, 1_000_000_000),
		gen.Int64Range(1, 500),
	))

	properties.TestingRun(t)
}

// Property: Percent never yields more than two fractional digits and matches
// decimal rounding of the exact product.
func TestPercentIsRoundedProduct(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("percent equals round2(v*r/100)", prop.ForAll(
		func(cents int64, rateBasis int64) bool {
			v := FromCents(cents)
			rate := decimal.New(rateBasis, -2)
			got := v.Percent(rate)
			want := v.Decimal().Mul(rate).Div(decimal.NewFromInt(100)).Round(Scale)
			return got.Decimal().Equal(want) && got.Decimal().Equal(got.Decimal().Round(Scale))
		},
		gen.Int64Range(1, 100_000_000),
		gen.Int64Range(0, 10_000),
	))

	properties.TestingRun(t)
}
