package amortization

import (
	"testing"

	"github.com/mcclellann/propledger/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStressTest_FixedLoan(t *testing.T) {
	report := StressTest(fixedLoan(), nil, nil, d("2025-01-10"), nil)

	assert.Equal(t, 179, report.RemainingMonths)
	assertClose(t, dec("159909.88"), report.Balance, cent)
	assert.True(t, report.Benchmark.IsZero())
	assert.True(t, report.BaseRate.Equal(dec("3")))
	// The level payment of an unchanged loan stays the same.
	assertClose(t, dec("1109.20"), report.BasePayment, cent)

	require.Len(t, report.Scenarios, 4)
	up1, up2, down, zero := report.Scenarios[0], report.Scenarios[1], report.Scenarios[2], report.Scenarios[3]
	assert.True(t, up1.Rate.Equal(dec("4")))
	assert.True(t, up1.PaymentDifference.IsPositive())
	assert.True(t, up2.PaymentDifference.GreaterThan(up1.PaymentDifference))
	assert.True(t, down.PaymentDifference.IsNegative())
	assert.True(t, zero.PaymentDifference.IsZero())
	assert.True(t, up1.AnnualImpact.Equal(up1.PaymentDifference.Mul(decimal.NewFromInt(12))))
}

func TestStressTest_VariableLoanDropsBenchmark(t *testing.T) {
	revisions := []models.Revision{{
		EffectiveDate: d("2020-12-01"),
		BenchmarkRate: decimal.NewNullDecimal(dec("2.0")),
		MarginRate:    dec("1.0"),
		PeriodMonths:  12,
	}}
	report := StressTest(variableLoan(), revisions, nil, d("2021-03-01"), nil)

	assert.True(t, report.Benchmark.Equal(dec("2")))
	assert.True(t, report.BaseRate.Equal(dec("3")))
	require.Len(t, report.Scenarios, 4)
	assert.True(t, report.Scenarios[3].Rate.Equal(dec("1")))
	assert.True(t, report.Scenarios[3].PaymentDifference.IsNegative())
}

func TestStressTest_CustomShocks(t *testing.T) {
	shocks := []Shock{{Name: "flat", Delta: decimal.Zero}}
	report := StressTest(fixedLoan(), nil, nil, d("2025-01-01"), shocks)

	require.Len(t, report.Scenarios, 1)
	assert.Equal(t, "flat", report.Scenarios[0].Name)
	assert.True(t, report.Scenarios[0].Payment.Equal(report.BasePayment))
}

func TestStressTest_AfterMaturity(t *testing.T) {
	report := StressTest(fixedLoan(), nil, nil, d("2041-05-01"), nil)

	assert.Equal(t, 0, report.RemainingMonths)
	assertClose(t, decimal.Zero, report.Balance, cent)
}

func TestActiveRevision(t *testing.T) {
	revisions := []models.Revision{
		{EffectiveDate: d("2022-01-01"), MarginRate: dec("2")},
		{EffectiveDate: d("2021-01-15"), MarginRate: dec("1")},
	}

	_, ok := ActiveRevision(revisions, d("2020-12-31"))
	assert.False(t, ok)

	// A mid-month revision governs from the following month.
	_, ok = ActiveRevision(revisions, d("2021-01-20"))
	assert.False(t, ok)

	r, ok := ActiveRevision(revisions, d("2021-02-01"))
	require.True(t, ok)
	assert.True(t, r.MarginRate.Equal(dec("1")))

	r, ok = ActiveRevision(revisions, d("2023-07-01"))
	require.True(t, ok)
	assert.True(t, r.MarginRate.Equal(dec("2")))
}
