package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcclellann/propledger/pkg/amortization"
	"github.com/mcclellann/propledger/pkg/models"
	"github.com/shopspring/decimal"
)

// loanData is everything the engine needs for one loan.
type loanData struct {
	loan        models.Loan
	revisions   []models.Revision
	prepayments []models.Prepayment
}

func (l *Ledger) loadLoanData(ctx context.Context, ownerID, loanID uuid.UUID) (*loanData, error) {
	loan, err := l.ownedLoan(ctx, ownerID, loanID)
	if err != nil {
		return nil, err
	}
	revisions, err := l.storage.ListRevisions(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load revisions: %w", err)
	}
	prepayments, err := l.storage.ListPrepayments(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load prepayments: %w", err)
	}

	data := &loanData{
		loan:        *loan,
		revisions:   make([]models.Revision, len(revisions)),
		prepayments: make([]models.Prepayment, len(prepayments)),
	}
	for i, r := range revisions {
		data.revisions[i] = *r
	}
	for i, p := range prepayments {
		data.prepayments[i] = *p
	}
	return data, nil
}

// Schedule replays the loan month by month.
func (l *Ledger) Schedule(ctx context.Context, ownerID, loanID uuid.UUID) ([]amortization.Entry, error) {
	data, err := l.loadLoanData(ctx, ownerID, loanID)
	if err != nil {
		return nil, err
	}
	return amortization.GenerateSchedule(data.loan, data.revisions, data.prepayments), nil
}

// CurrentStatus reports payment, balance and rate as of asOf.
func (l *Ledger) CurrentStatus(ctx context.Context, ownerID, loanID uuid.UUID, asOf models.Date) (amortization.Status, error) {
	data, err := l.loadLoanData(ctx, ownerID, loanID)
	if err != nil {
		return amortization.Status{}, err
	}
	return amortization.CurrentStatus(data.loan, data.revisions, data.prepayments, asOf), nil
}

// Summary combines lifetime totals with the status as of asOf.
func (l *Ledger) Summary(ctx context.Context, ownerID, loanID uuid.UUID, asOf models.Date) (amortization.Summary, error) {
	data, err := l.loadLoanData(ctx, ownerID, loanID)
	if err != nil {
		return amortization.Summary{}, err
	}
	return amortization.Summarize(data.loan, data.revisions, data.prepayments, asOf), nil
}

// PrepaymentImpact simulates an extra prepayment without recording it.
func (l *Ledger) PrepaymentImpact(ctx context.Context, ownerID, loanID uuid.UUID, amount decimal.Decimal, date models.Date) (amortization.Impact, error) {
	data, err := l.loadLoanData(ctx, ownerID, loanID)
	if err != nil {
		return amortization.Impact{}, err
	}
	return amortization.PrepaymentImpact(data.loan, data.revisions, data.prepayments, amount, date)
}

// StressTest re-prices the remaining balance under the default rate shocks.
func (l *Ledger) StressTest(ctx context.Context, ownerID, loanID uuid.UUID, asOf models.Date) (amortization.StressReport, error) {
	data, err := l.loadLoanData(ctx, ownerID, loanID)
	if err != nil {
		return amortization.StressReport{}, err
	}
	return amortization.StressTest(data.loan, data.revisions, data.prepayments, asOf, nil), nil
}
