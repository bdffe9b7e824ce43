package amortization

import (
	"errors"
	"fmt"

	"github.com/mcclellann/propledger/pkg/models"
	"github.com/shopspring/decimal"
)

// ErrInvalidInput reports a request the engine cannot answer: malformed date
// ranges, a non-positive cadence or a prepayment that cannot be compared.
var ErrInvalidInput = errors.New("invalid input")

// Impact compares the schedule with and without a candidate prepayment.
type Impact struct {
	Amount         decimal.Decimal `json:"prepayment_amount"`
	Date           models.Date     `json:"prepayment_date"`
	InterestSaved  decimal.Decimal `json:"interest_savings"`
	MonthsSaved    int             `json:"months_saved"`
	MonthlySavings decimal.Decimal `json:"monthly_savings"` // Drop in the regular payment the month after the prepayment
	TotalSavings   decimal.Decimal `json:"total_savings"`   // Drop in total cash paid over the life of the loan
	Before         Totals          `json:"before"`
	After          Totals          `json:"after"`
}

// PrepaymentImpact simulates an extra prepayment of amount on date on top of
// the recorded ones. The prepayments slice is not modified.
func PrepaymentImpact(loan models.Loan, revisions []models.Revision, prepayments []models.Prepayment, amount decimal.Decimal, date models.Date) (Impact, error) {
	if !amount.IsPositive() {
		return Impact{}, fmt.Errorf("%w: prepayment amount must be positive", ErrInvalidInput)
	}
	if date.IsZero() || !loan.Covers(date) {
		return Impact{}, fmt.Errorf("%w: prepayment date %s is outside the loan term %s to %s", ErrInvalidInput, date, loan.StartDate, loan.EndDate)
	}

	baseline := GenerateSchedule(loan, revisions, prepayments)

	withCandidate := make([]models.Prepayment, len(prepayments), len(prepayments)+1)
	copy(withCandidate, prepayments)
	withCandidate = append(withCandidate, models.Prepayment{LoanID: loan.ID, PaymentDate: date, Amount: amount})
	candidate := GenerateSchedule(loan, revisions, withCandidate)

	if len(baseline) == 0 || len(candidate) == 0 {
		return Impact{}, fmt.Errorf("%w: no schedule to compare for loan %s", ErrInvalidInput, loan.ID)
	}

	before, after := Sum(baseline), Sum(candidate)
	return Impact{
		Amount:         amount,
		Date:           date,
		InterestSaved:  before.Interest.Sub(after.Interest),
		MonthsSaved:    before.TermMonths - after.TermMonths,
		MonthlySavings: monthlySavings(baseline, candidate, date),
		TotalSavings:   before.Payments.Sub(after.Payments),
		Before:         before,
		After:          after,
	}, nil
}

// monthlySavings compares the regular payment of the month following date. A
// candidate schedule that is already paid off by then saves the whole payment.
func monthlySavings(baseline, candidate []Entry, date models.Date) decimal.Decimal {
	next := date.FirstOfMonth().AddMonths(1)
	b, ok := entryFor(baseline, next)
	if !ok {
		return decimal.Zero
	}
	c, ok := entryFor(candidate, next)
	if !ok {
		return b.RegularPayment()
	}
	return b.RegularPayment().Sub(c.RegularPayment())
}

func entryFor(schedule []Entry, month models.Date) (Entry, bool) {
	if len(schedule) == 0 {
		return Entry{}, false
	}
	i := schedule[0].Month.MonthsUntil(month)
	if i < 0 || i >= len(schedule) {
		return Entry{}, false
	}
	return schedule[i], true
}
