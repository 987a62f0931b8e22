package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/richardliu001/funding-ledger/internal/money"
	"github.com/richardliu001/funding-ledger/internal/testutil"
	"github.com/shopspring/decimal"
)

// Property: after OpenCollection every assignment holds round2(V/n) and the
// fees add up to V within a cent per beneficiary.
func TestOpenCollection_FeeSplitProperty(t *testing.T) {
	svc, db, ctx := newTestService(t)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 40
	properties := gopter.NewProperties(parameters)

	properties.Property("fees sum to the estimate within n cents", prop.ForAll(
		func(cents int64, n int) bool {
			tg := testutil.SeedTarget(t, ctx, db, money.FromCents(cents).String())
			ids := make([]uuid.UUID, n)
			for i := range ids {
				ids[i] = testutil.SeedBeneficiary(t, ctx, db, "p").ID
			}
			if _, err := svc.AssignBeneficiaries(ctx, tg.ID, ids); err != nil {
				return false
			}
			res, err := svc.OpenCollection(ctx, tg.ID)
			if err != nil || res.BeneficiaryCount != n {
				return false
			}
			as, err := svc.ListAssignments(ctx, tg.ID)
			if err != nil || len(as) != n {
				return false
			}
			want := tg.EstimatedValue.DivRound(int64(n))
			total := money.Zero
			for _, a := range as {
				if !a.Frozen() || !a.FeeAmount.Equal(want) {
					return false
				}
				total = total.Add(*a.FeeAmount)
			}
			return total.Sub(tg.EstimatedValue).Abs().LessOrEqual(money.FromCents(int64(n)))
		},
		gen.Int64Range(1, 100_000_000),
		gen.IntRange(1, 12),
	))

	properties.TestingRun(t)
}

// Property: stored contributions always satisfy net = value - commission and
// profit = commission - operatorFee.
func TestRecordContribution_DerivedFieldsProperty(t *testing.T) {
	svc, _, ctx := newTestService(t)
	tg, ids := seedCohort(t, svc, ctx, "1000.00", 1)
	if _, err := svc.OpenCollection(ctx, tg.ID); err != nil {
		t.Fatal(err)
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	properties.Property("derived amounts are consistent", prop.ForAll(
		func(cents int64, commissionBasis, operatorBasis int64) bool {
			c, err := svc.RecordContribution(ctx, RecordContributionInput{
				TargetID:               tg.ID,
				BeneficiaryID:          ids[0],
				Value:                  money.FromCents(cents),
				PlatformCommissionRate: decimal.New(commissionBasis, -2),
				OperatorFeeRate:        decimal.New(operatorBasis, -2),
			})
			if err != nil {
				return false
			}
			okNet := c.NetToTarget().Add(c.PlatformCommissionReserved).Equal(c.Value)
			okProfit := c.PlatformProfit().Add(c.OperatorFee).Equal(c.PlatformCommissionReserved)
			return okNet && okProfit && !c.OperatorFee.GreaterThan(c.PlatformCommissionReserved)
		},
		gen.Int64Range(1, 10_000_000),
		gen.Int64Range(0, 10_000),
		gen.Int64Range(0, 10_000),
	))

	properties.TestingRun(t)
}
