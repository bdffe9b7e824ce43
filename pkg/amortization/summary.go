package amortization

import (
	"github.com/mcclellann/propledger/pkg/models"
	"github.com/shopspring/decimal"
)

// Status is the schedule entry in effect on a given date.
type Status struct {
	Payment    decimal.Decimal `json:"current_payment"`
	Balance    decimal.Decimal `json:"current_balance"`
	AnnualRate decimal.Decimal `json:"annual_rate"`
	Month      models.Date     `json:"month"` // Zero when the loan has no schedule
	AsOfDate   models.Date     `json:"as_of_date"`
}

// Totals aggregates a whole schedule.
type Totals struct {
	Payments    decimal.Decimal `json:"total_payments"`
	Interest    decimal.Decimal `json:"total_interest"`
	Principal   decimal.Decimal `json:"total_principal"`
	Prepayments decimal.Decimal `json:"total_prepayments"`
	TermMonths  int             `json:"loan_term_months"`
}

// Summary combines lifetime totals with the status as of a date.
type Summary struct {
	Totals
	Status
}

// StatusAt picks the last entry whose month is not after asOf's month, or the
// first entry when asOf precedes the schedule.
func StatusAt(schedule []Entry, asOf models.Date) (Entry, bool) {
	if len(schedule) == 0 {
		return Entry{}, false
	}
	target := asOf.FirstOfMonth()
	current := schedule[0]
	for _, e := range schedule {
		if e.Month.After(target) {
			break
		}
		current = e
	}
	return current, true
}

// CurrentStatus reports payment, balance and rate as of asOf. Without a
// schedule it falls back to a zero payment and the loan's recorded balance.
func CurrentStatus(loan models.Loan, revisions []models.Revision, prepayments []models.Prepayment, asOf models.Date) Status {
	return statusOf(loan, GenerateSchedule(loan, revisions, prepayments), asOf)
}

func statusOf(loan models.Loan, schedule []Entry, asOf models.Date) Status {
	e, ok := StatusAt(schedule, asOf)
	if !ok {
		return Status{
			Payment:    decimal.Zero,
			Balance:    loan.OutstandingBalance,
			AnnualRate: decimal.Zero,
			AsOfDate:   asOf,
		}
	}
	return Status{
		Payment:    e.Payment,
		Balance:    e.Balance,
		AnnualRate: e.AnnualRate,
		Month:      e.Month,
		AsOfDate:   asOf,
	}
}

// Sum adds up every entry of a schedule.
func Sum(schedule []Entry) Totals {
	t := Totals{
		Payments:    decimal.Zero,
		Interest:    decimal.Zero,
		Principal:   decimal.Zero,
		Prepayments: decimal.Zero,
		TermMonths:  len(schedule),
	}
	for _, e := range schedule {
		t.Payments = t.Payments.Add(e.Payment)
		t.Interest = t.Interest.Add(e.Interest)
		t.Principal = t.Principal.Add(e.Principal)
		t.Prepayments = t.Prepayments.Add(e.Prepayment)
	}
	return t
}

// Summarize returns lifetime totals and the status as of asOf from a single
// schedule run.
func Summarize(loan models.Loan, revisions []models.Revision, prepayments []models.Prepayment, asOf models.Date) Summary {
	schedule := GenerateSchedule(loan, revisions, prepayments)
	return Summary{
		Totals: Sum(schedule),
		Status: statusOf(loan, schedule, asOf),
	}
}
