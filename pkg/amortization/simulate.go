package amortization

import (
	"fmt"

	"github.com/mcclellann/propledger/pkg/models"
	"github.com/shopspring/decimal"
)

// Simulation is the schedule of a hypothetical fixed-rate loan.
type Simulation struct {
	Loan     models.Loan     `json:"loan"`
	Payment  decimal.Decimal `json:"monthly_payment"` // First regular payment
	Totals   Totals          `json:"totals"`
	Schedule []Entry         `json:"schedule"`
}

// Simulate amortizes amount at a fixed annualRate over termMonths starting on start.
func Simulate(amount, annualRate decimal.Decimal, termMonths int, start models.Date) (Simulation, error) {
	if !amount.IsPositive() {
		return Simulation{}, fmt.Errorf("%w: loan amount must be positive", ErrInvalidInput)
	}
	if termMonths <= 0 {
		return Simulation{}, fmt.Errorf("%w: term must be positive, got %d months", ErrInvalidInput, termMonths)
	}
	if start.IsZero() {
		return Simulation{}, fmt.Errorf("%w: start date is required", ErrInvalidInput)
	}

	loan := models.Loan{
		RateType:           models.RateTypeFixed,
		InitialAmount:      amount,
		OutstandingBalance: amount,
		Margin:             annualRate,
		StartDate:          start,
		EndDate:            start.AddMonths(termMonths - 1),
	}
	schedule := GenerateSchedule(loan, nil, nil)
	sim := Simulation{
		Loan:     loan,
		Payment:  decimal.Zero,
		Totals:   Sum(schedule),
		Schedule: schedule,
	}
	if len(schedule) > 0 {
		sim.Payment = schedule[0].Payment
	}
	return sim, nil
}
