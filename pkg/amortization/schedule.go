// Package amortization replays a mortgage month by month from origination to
// maturity, switching rate at each revision and applying prepayments, and
// derives status, totals and what-if figures from the resulting schedule.
//
// Every function is pure: it reads its arguments, allocates local state and
// never consults the clock, so it is safe for concurrent use. Callers that
// need "today" pass it in as an as-of date.
package amortization

import (
	"math"
	"sort"

	"github.com/mcclellann/propledger/pkg/models"
	"github.com/shopspring/decimal"
)

// precision is the number of decimal places kept for intermediate amounts.
// Rounding for display happens at the serialization boundary.
const precision = 16

var (
	hundred       = decimal.NewFromInt(100)
	monthsPerYear = decimal.NewFromInt(12)

	// PayoffTolerance is the residual balance treated as fully repaid.
	PayoffTolerance = decimal.RequireFromString("0.01")
)

// Entry is one month of an amortization schedule. Payment and Principal include
// the prepayment applied that month.
type Entry struct {
	Month      models.Date     `json:"month"`
	Payment    decimal.Decimal `json:"payment"`
	Interest   decimal.Decimal `json:"interest"`
	Principal  decimal.Decimal `json:"principal"`
	Balance    decimal.Decimal `json:"balance"`
	AnnualRate decimal.Decimal `json:"annual_rate"`
	Prepayment decimal.Decimal `json:"prepayment"`
}

// RegularPayment is the annuity installment of the month, without the prepayment.
func (e Entry) RegularPayment() decimal.Decimal {
	return e.Payment.Sub(e.Prepayment)
}

// MonthlyPayment returns the level payment that repays balance over months
// periods at monthlyRate:
//
//	payment = balance * r * (1+r)^n / ((1+r)^n - 1)
//
// With no periods left the whole balance is due; with a zero rate the balance
// is split evenly.
func MonthlyPayment(balance, monthlyRate decimal.Decimal, months int) decimal.Decimal {
	if months <= 0 {
		return balance
	}
	if monthlyRate.IsZero() {
		return balance.DivRound(decimal.NewFromInt(int64(months)), precision)
	}
	if months == 1 {
		return balance.Add(balance.Mul(monthlyRate)).Round(precision)
	}
	// The power goes through float64; the result only scales a decimal amount.
	factor := math.Pow(1+monthlyRate.InexactFloat64(), float64(months))
	f := decimal.NewFromFloat(factor)
	return balance.Mul(monthlyRate).Mul(f).DivRound(f.Sub(decimal.NewFromInt(1)), precision)
}

// MonthlyRate converts an annual percentage to a monthly fraction.
func MonthlyRate(annualRate decimal.Decimal) decimal.Decimal {
	return annualRate.DivRound(hundred, precision).DivRound(monthsPerYear, precision)
}

// GenerateSchedule replays the loan from its start month to its end month
// inclusive. It returns nil when the loan has no positive principal or when
// the end date precedes the start date. The schedule stops early once the
// balance falls to PayoffTolerance or below.
func GenerateSchedule(loan models.Loan, revisions []models.Revision, prepayments []models.Prepayment) []Entry {
	if !loan.InitialAmount.IsPositive() {
		return nil
	}
	start := loan.StartDate.FirstOfMonth()
	end := loan.EndDate.FirstOfMonth()
	if end.Before(start) {
		return nil
	}

	rates := newRateCursor(loan, revisions)
	extra := prepaymentsByMonth(prepayments)

	schedule := make([]Entry, 0, start.MonthsUntil(end)+1)
	balance := loan.InitialAmount
	for month := start; !month.After(end) && balance.GreaterThan(PayoffTolerance); month = month.AddMonths(1) {
		remaining := month.MonthsUntil(end) + 1

		annualRate := rates.at(month)
		monthlyRate := MonthlyRate(annualRate)

		payment := MonthlyPayment(balance, monthlyRate, remaining)
		interest := balance.Mul(monthlyRate).Round(precision)
		principal := decimal.Max(decimal.Zero, payment.Sub(interest))
		if principal.GreaterThan(balance) {
			principal = balance
			payment = interest.Add(principal)
		}
		balance = balance.Sub(principal)

		prepayment := decimal.Zero
		if amount, ok := extra[month]; ok && amount.IsPositive() {
			prepayment = decimal.Min(amount, balance)
			balance = balance.Sub(prepayment)
			principal = principal.Add(prepayment)
			payment = payment.Add(prepayment)
		}

		schedule = append(schedule, Entry{
			Month:      month,
			Payment:    payment,
			Interest:   interest,
			Principal:  principal,
			Balance:    balance,
			AnnualRate: annualRate,
			Prepayment: prepayment,
		})
	}
	return schedule
}

// prepaymentsByMonth sums prepayments falling in the same calendar month.
func prepaymentsByMonth(prepayments []models.Prepayment) map[models.Date]decimal.Decimal {
	byMonth := make(map[models.Date]decimal.Decimal, len(prepayments))
	for _, p := range prepayments {
		m := p.PaymentDate.FirstOfMonth()
		byMonth[m] = byMonth[m].Add(p.Amount)
	}
	return byMonth
}

// rateCursor walks revisions in effective-date order as the schedule advances.
type rateCursor struct {
	loan      models.Loan
	revisions []models.Revision
	idx       int // last revision in effect, -1 before the first one
}

func newRateCursor(loan models.Loan, revisions []models.Revision) *rateCursor {
	return &rateCursor{loan: loan, revisions: sortedRevisions(revisions), idx: -1}
}

// sortedRevisions returns a copy ordered by effective date. Revisions sharing a
// date keep their input order, so the last one wins.
func sortedRevisions(revisions []models.Revision) []models.Revision {
	sorted := make([]models.Revision, len(revisions))
	copy(sorted, revisions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EffectiveDate.Before(sorted[j].EffectiveDate)
	})
	return sorted
}

// at returns the annual rate for month, the first day of a schedule month. A
// revision dated after that day takes effect the following month. Months must
// be visited in ascending order.
func (c *rateCursor) at(month models.Date) decimal.Decimal {
	if c.loan.RateType != models.RateTypeVariable {
		return c.loan.Margin
	}
	for c.idx+1 < len(c.revisions) && !c.revisions[c.idx+1].EffectiveDate.After(month) {
		c.idx++
	}
	if c.idx < 0 {
		return c.loan.Margin
	}
	return c.revisions[c.idx].AnnualRate()
}
