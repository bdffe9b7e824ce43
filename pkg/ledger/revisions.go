package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcclellann/propledger/pkg/amortization"
	"github.com/mcclellann/propledger/pkg/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AddRevision records a rate reset. When the benchmark is missing it is taken
// from the reference table with the default tenor, and left empty if the table
// has no value on or before the effective date.
func (l *Ledger) AddRevision(ctx context.Context, ownerID, loanID uuid.UUID, r *models.Revision) (*models.Revision, error) {
	loan, err := l.ownedLoan(ctx, ownerID, loanID)
	if err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	r.ID = uuid.New()
	r.LoanID = loan.ID
	if r.PeriodMonths == 0 {
		r.PeriodMonths = loan.ReviewPeriodMonths
	}
	if !r.BenchmarkRate.Valid {
		rate, err := l.benchmarkFor(ctx, r.EffectiveDate, l.defaultTenor)
		switch {
		case err == nil:
			r.BenchmarkRate = decimal.NewNullDecimal(rate)
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}
	if err := l.storage.CreateRevision(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to store revision: %w", err)
	}
	return r, nil
}

// UpdateRevision overwrites a revision of the loan.
func (l *Ledger) UpdateRevision(ctx context.Context, ownerID, loanID uuid.UUID, r *models.Revision) (*models.Revision, error) {
	if _, err := l.ownedLoan(ctx, ownerID, loanID); err != nil {
		return nil, err
	}
	existing, err := l.storage.GetRevision(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	if existing.LoanID != loanID {
		return nil, fmt.Errorf("revision %s: %w", r.ID, ErrNotFound)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	r.LoanID = loanID
	if err := l.storage.UpdateRevision(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ListRevisions retrieves the loan's revisions by effective date.
func (l *Ledger) ListRevisions(ctx context.Context, ownerID, loanID uuid.UUID) ([]*models.Revision, error) {
	if _, err := l.ownedLoan(ctx, ownerID, loanID); err != nil {
		return nil, err
	}
	return l.storage.ListRevisions(ctx, loanID)
}

// AddPrepayment records a prepayment made during the loan term.
func (l *Ledger) AddPrepayment(ctx context.Context, ownerID, loanID uuid.UUID, p *models.Prepayment) (*models.Prepayment, error) {
	loan, err := l.ownedLoan(ctx, ownerID, loanID)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if !loan.Covers(p.PaymentDate) {
		return nil, fmt.Errorf("%w: payment date %s is outside the loan term %s to %s", ErrValidation, p.PaymentDate, loan.StartDate, loan.EndDate)
	}
	p.ID = uuid.New()
	p.LoanID = loan.ID
	if err := l.storage.CreatePrepayment(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to store prepayment: %w", err)
	}
	l.logger.Info("prepayment recorded",
		zap.String("op", "ledger.AddPrepayment"),
		zap.String("loan_id", loan.ID.String()),
		zap.String("amount", p.Amount.StringFixed(2)),
		zap.Stringer("date", p.PaymentDate))
	return p, nil
}

// ListPrepayments retrieves the loan's prepayments by date.
func (l *Ledger) ListPrepayments(ctx context.Context, ownerID, loanID uuid.UUID) ([]*models.Prepayment, error) {
	if _, err := l.ownedLoan(ctx, ownerID, loanID); err != nil {
		return nil, err
	}
	return l.storage.ListPrepayments(ctx, loanID)
}

// DeletePrepayment removes one of the loan's prepayments.
func (l *Ledger) DeletePrepayment(ctx context.Context, ownerID, loanID, id uuid.UUID) error {
	if _, err := l.ownedLoan(ctx, ownerID, loanID); err != nil {
		return err
	}
	return l.storage.DeletePrepayment(ctx, loanID, id)
}

// CalendarResult lists the revision dates of a loan and the revisions created
// for dates that had none.
type CalendarResult struct {
	Dates   []models.Date      `json:"revision_calendar"`
	Created []*models.Revision `json:"created_revisions"`
}

// RevisionCalendar computes the loan's revision dates. With createMissing,
// dates without a revision get one with the loan margin and no benchmark,
// all in a single transaction.
func (l *Ledger) RevisionCalendar(ctx context.Context, ownerID, loanID uuid.UUID, createMissing bool) (*CalendarResult, error) {
	loan, err := l.ownedLoan(ctx, ownerID, loanID)
	if err != nil {
		return nil, err
	}
	dates, err := amortization.RevisionCalendar(loan.StartDate, loan.EndDate, loan.ReviewPeriodMonths)
	if err != nil {
		return nil, err
	}
	result := &CalendarResult{Dates: dates, Created: []*models.Revision{}}
	if !createMissing {
		return result, nil
	}

	existing, err := l.storage.ListRevisions(ctx, loanID)
	if err != nil {
		return nil, err
	}
	have := make(map[models.Date]bool, len(existing))
	for _, r := range existing {
		have[r.EffectiveDate] = true
	}
	for _, d := range dates {
		if have[d] {
			continue
		}
		result.Created = append(result.Created, &models.Revision{
			ID:            uuid.New(),
			LoanID:        loanID,
			EffectiveDate: d,
			MarginRate:    loan.Margin,
			PeriodMonths:  loan.ReviewPeriodMonths,
		})
	}
	if len(result.Created) == 0 {
		return result, nil
	}
	if err := l.storage.CreateRevisions(ctx, result.Created); err != nil {
		return nil, fmt.Errorf("failed to store calendar revisions: %w", err)
	}
	l.logger.Info("revision calendar filled",
		zap.String("op", "ledger.RevisionCalendar"),
		zap.String("loan_id", loanID.String()),
		zap.Int("created", len(result.Created)))
	return result, nil
}

// AssignResult reports a benchmark assignment run.
type AssignResult struct {
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

// AssignBenchmarks fills every revision of the loan that has no benchmark
// with the closest tenor value published on or before its effective date.
// Revisions with no usable value are reported in Errors and left unchanged.
func (l *Ledger) AssignBenchmarks(ctx context.Context, ownerID, loanID uuid.UUID, tenor models.Tenor) (*AssignResult, error) {
	if _, err := models.ParseTenor(string(tenor)); err != nil {
		return nil, err
	}
	if _, err := l.ownedLoan(ctx, ownerID, loanID); err != nil {
		return nil, err
	}
	return l.assignBenchmarks(ctx, loanID, tenor)
}

func (l *Ledger) assignBenchmarks(ctx context.Context, loanID uuid.UUID, tenor models.Tenor) (*AssignResult, error) {
	revisions, err := l.storage.ListRevisions(ctx, loanID)
	if err != nil {
		return nil, err
	}
	result := &AssignResult{Errors: []string{}}
	for _, r := range revisions {
		if r.BenchmarkRate.Valid {
			continue
		}
		rate, err := l.benchmarkFor(ctx, r.EffectiveDate, tenor)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				result.Errors = append(result.Errors, fmt.Sprintf("no %s rate available on or before %s", tenor, r.EffectiveDate))
				continue
			}
			return nil, err
		}
		r.BenchmarkRate = decimal.NewNullDecimal(rate)
		if err := l.storage.UpdateRevision(ctx, r); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("revision %s: %v", r.EffectiveDate, err))
			continue
		}
		result.Updated++
	}
	return result, nil
}

// FillMissingBenchmarks runs AssignBenchmarks with the default tenor over
// every variable-rate loan. It is meant to run periodically after new rates
// are loaded, and returns the number of revisions updated.
func (l *Ledger) FillMissingBenchmarks(ctx context.Context) (int, error) {
	loans, err := l.storage.ListLoans(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list loans: %w", err)
	}
	total := 0
	for _, loan := range loans {
		if loan.RateType != models.RateTypeVariable {
			continue
		}
		result, err := l.assignBenchmarks(ctx, loan.ID, l.defaultTenor)
		if err != nil {
			l.logger.Error("benchmark fill failed",
				zap.String("op", "ledger.FillMissingBenchmarks"),
				zap.String("loan_id", loan.ID.String()),
				zap.Error(err))
			continue
		}
		total += result.Updated
		if len(result.Errors) > 0 {
			l.logger.Debug("revisions still without benchmark",
				zap.String("op", "ledger.FillMissingBenchmarks"),
				zap.String("loan_id", loan.ID.String()),
				zap.Strings("errors", result.Errors))
		}
	}
	l.logger.Info("benchmark fill finished",
		zap.String("op", "ledger.FillMissingBenchmarks"),
		zap.Int("loans", len(loans)),
		zap.Int("updated", total))
	return total, nil
}

func (l *Ledger) benchmarkFor(ctx context.Context, date models.Date, tenor models.Tenor) (decimal.Decimal, error) {
	b, err := l.storage.BenchmarkRateAsOf(ctx, date, tenor)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return b.Rate(tenor).Decimal, nil
}
