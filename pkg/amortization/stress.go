package amortization

import (
	"github.com/mcclellann/propledger/pkg/models"
	"github.com/shopspring/decimal"
)

// Shock is a parallel move of the annual rate, in percentage points.
type Shock struct {
	Name  string          `json:"scenario"`
	Delta decimal.Decimal `json:"rate_change"`
}

type ShockResult struct {
	Shock
	Rate              decimal.Decimal `json:"rate"`
	Payment           decimal.Decimal `json:"monthly_payment"`
	PaymentDifference decimal.Decimal `json:"payment_difference"`
	AnnualImpact      decimal.Decimal `json:"annual_impact"`
}

// StressReport re-prices the balance outstanding on a date under rate shocks.
type StressReport struct {
	AsOfDate        models.Date     `json:"as_of_date"`
	Balance         decimal.Decimal `json:"balance"`
	RemainingMonths int             `json:"remaining_months"`
	Benchmark       decimal.Decimal `json:"benchmark"`
	BaseRate        decimal.Decimal `json:"rate"`
	BasePayment     decimal.Decimal `json:"monthly_payment"`
	Scenarios       []ShockResult   `json:"stress_scenarios"`
}

// DefaultShocks returns +1, +2 and -0.5 points, plus the benchmark dropping to zero.
func DefaultShocks(benchmark decimal.Decimal) []Shock {
	return []Shock{
		{Name: "benchmark +1%", Delta: decimal.NewFromInt(1)},
		{Name: "benchmark +2%", Delta: decimal.NewFromInt(2)},
		{Name: "benchmark -0.5%", Delta: decimal.RequireFromString("-0.5")},
		{Name: "benchmark 0%", Delta: benchmark.Neg()},
	}
}

// ActiveRevision returns the revision that sets the rate of month's schedule
// entry: the latest one effective on or before the first day of that month.
func ActiveRevision(revisions []models.Revision, month models.Date) (models.Revision, bool) {
	target := month.FirstOfMonth()
	var active models.Revision
	found := false
	for _, r := range sortedRevisions(revisions) {
		if r.EffectiveDate.After(target) {
			break
		}
		active, found = r, true
	}
	return active, found
}

// StressTest takes the balance left after asOf's month and computes the level
// payment over the remaining term at the current rate and at each shocked rate.
// A nil shocks slice uses DefaultShocks.
func StressTest(loan models.Loan, revisions []models.Revision, prepayments []models.Prepayment, asOf models.Date, shocks []Shock) StressReport {
	status := CurrentStatus(loan, revisions, prepayments, asOf)

	benchmark := decimal.Zero
	if loan.RateType == models.RateTypeVariable {
		if r, ok := ActiveRevision(revisions, asOf); ok && r.BenchmarkRate.Valid {
			benchmark = r.BenchmarkRate.Decimal
		}
	}
	if shocks == nil {
		shocks = DefaultShocks(benchmark)
	}

	from := asOf.FirstOfMonth()
	if from.Before(loan.StartDate.FirstOfMonth()) {
		from = loan.StartDate.FirstOfMonth()
	}
	remaining := from.MonthsUntil(loan.EndDate.FirstOfMonth())
	if remaining < 0 {
		remaining = 0
	}

	baseRate := status.AnnualRate
	if status.Month.IsZero() {
		baseRate = loan.Margin.Add(benchmark)
	}
	basePayment := MonthlyPayment(status.Balance, MonthlyRate(baseRate), remaining)

	report := StressReport{
		AsOfDate:        asOf,
		Balance:         status.Balance,
		RemainingMonths: remaining,
		Benchmark:       benchmark,
		BaseRate:        baseRate,
		BasePayment:     basePayment,
		Scenarios:       make([]ShockResult, 0, len(shocks)),
	}
	for _, s := range shocks {
		rate := baseRate.Add(s.Delta)
		payment := MonthlyPayment(status.Balance, MonthlyRate(rate), remaining)
		diff := payment.Sub(basePayment)
		report.Scenarios = append(report.Scenarios, ShockResult{
			Shock:             s,
			Rate:              rate,
			Payment:           payment,
			PaymentDifference: diff,
			AnnualImpact:      diff.Mul(monthsPerYear),
		})
	}
	return report
}
