package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mcclellann/propledger/pkg/models"
)

const revisionColumns = `id, loan_id, effective_date, benchmark_rate, margin_rate, period_months`

const insertRevision = `INSERT INTO revisions (` + revisionColumns + `) VALUES (?, ?, ?, ?, ?, ?)`

func revisionArgs(r *models.Revision) []any {
	return []any{r.ID.String(), r.LoanID.String(), r.EffectiveDate, r.BenchmarkRate, r.MarginRate, r.PeriodMonths}
}

func scanRevision(row scanner) (*models.Revision, error) {
	var r models.Revision
	if err := row.Scan(&r.ID, &r.LoanID, &r.EffectiveDate, &r.BenchmarkRate, &r.MarginRate, &r.PeriodMonths); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRevision inserts a single revision.
func (s *SQLiteStore) CreateRevision(ctx context.Context, r *models.Revision) error {
	if _, err := s.db.ExecContext(ctx, insertRevision, revisionArgs(r)...); err != nil {
		return wrapError("create revision", err)
	}
	return nil
}

// CreateRevisions inserts a batch of revisions within a transaction.
func (s *SQLiteStore) CreateRevisions(ctx context.Context, revisions []*models.Revision) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertRevision)
	if err != nil {
		return wrapError("prepare revision insert", err)
	}
	defer stmt.Close()

	for _, r := range revisions {
		if _, err := stmt.ExecContext(ctx, revisionArgs(r)...); err != nil {
			return wrapError("create revision "+r.EffectiveDate.String(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit revisions: %w", err)
	}
	return nil
}

// GetRevision retrieves a revision by its ID.
func (s *SQLiteStore) GetRevision(ctx context.Context, id uuid.UUID) (*models.Revision, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+revisionColumns+` FROM revisions WHERE id = ?`, id.String())
	r, err := scanRevision(row)
	if err != nil {
		return nil, wrapError("get revision", err)
	}
	return r, nil
}

// UpdateRevision overwrites a revision. Its loan cannot change.
func (s *SQLiteStore) UpdateRevision(ctx context.Context, r *models.Revision) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE revisions SET effective_date = ?, benchmark_rate = ?, margin_rate = ?, period_months = ? WHERE id = ?`,
		r.EffectiveDate, r.BenchmarkRate, r.MarginRate, r.PeriodMonths, r.ID.String(),
	)
	if err != nil {
		return wrapError("update revision", err)
	}
	return expectOne("update revision", result)
}

// ListRevisions retrieves all revisions of a loan in effective-date order.
func (s *SQLiteStore) ListRevisions(ctx context.Context, loanID uuid.UUID) ([]*models.Revision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+revisionColumns+` FROM revisions WHERE loan_id = ? ORDER BY effective_date, rowid`, loanID.String())
	if err != nil {
		return nil, wrapError(fmt.Sprintf("list revisions for loan %s", loanID), err)
	}
	defer rows.Close()

	revisions := []*models.Revision{}
	for rows.Next() {
		r, err := scanRevision(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan revision row: %w", err)
		}
		revisions = append(revisions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for loan revisions: %w", err)
	}
	return revisions, nil
}

// CreatePrepayment inserts a new prepayment.
func (s *SQLiteStore) CreatePrepayment(ctx context.Context, p *models.Prepayment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prepayments (id, loan_id, payment_date, amount) VALUES (?, ?, ?, ?)`,
		p.ID.String(), p.LoanID.String(), p.PaymentDate, p.Amount,
	)
	if err != nil {
		return wrapError("create prepayment", err)
	}
	return nil
}

// ListPrepayments retrieves all prepayments of a loan by ascending date.
func (s *SQLiteStore) ListPrepayments(ctx context.Context, loanID uuid.UUID) ([]*models.Prepayment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, loan_id, payment_date, amount FROM prepayments WHERE loan_id = ? ORDER BY payment_date, rowid`, loanID.String())
	if err != nil {
		return nil, wrapError(fmt.Sprintf("list prepayments for loan %s", loanID), err)
	}
	defer rows.Close()

	prepayments := []*models.Prepayment{}
	for rows.Next() {
		var p models.Prepayment
		if err := rows.Scan(&p.ID, &p.LoanID, &p.PaymentDate, &p.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan prepayment row: %w", err)
		}
		prepayments = append(prepayments, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for loan prepayments: %w", err)
	}
	return prepayments, nil
}

// DeletePrepayment removes a prepayment of the given loan.
func (s *SQLiteStore) DeletePrepayment(ctx context.Context, loanID, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM prepayments WHERE id = ? AND loan_id = ?`, id.String(), loanID.String())
	if err != nil {
		return wrapError("delete prepayment", err)
	}
	return expectOne("delete prepayment", result)
}

const benchmarkColumns = `id, date, rate_12m, rate_6m, rate_3m, rate_1m, source, created_at`

func scanBenchmarkRate(row scanner) (*models.BenchmarkRate, error) {
	var b models.BenchmarkRate
	if err := row.Scan(&b.ID, &b.Date, &b.Rate12M, &b.Rate6M, &b.Rate3M, &b.Rate1M, &b.Source, &b.CreatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// tenorColumn maps a tenor onto its column. Only known tenors reach SQL.
func tenorColumn(t models.Tenor) (string, error) {
	switch t {
	case models.Tenor12M:
		return "rate_12m", nil
	case models.Tenor6M:
		return "rate_6m", nil
	case models.Tenor3M:
		return "rate_3m", nil
	case models.Tenor1M:
		return "rate_1m", nil
	}
	return "", fmt.Errorf("%w: unknown tenor %q", models.ErrValidation, t)
}

// CreateBenchmarkRate inserts a rate. A second rate for the same date fails
// with ErrConflict.
func (s *SQLiteStore) CreateBenchmarkRate(ctx context.Context, b *models.BenchmarkRate) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO benchmark_rates (`+benchmarkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID.String(), b.Date, b.Rate12M, b.Rate6M, b.Rate3M, b.Rate1M, b.Source, b.CreatedAt,
	)
	if err != nil {
		return wrapError("create benchmark rate", err)
	}
	return nil
}

// GetBenchmarkRate retrieves a rate by its ID.
func (s *SQLiteStore) GetBenchmarkRate(ctx context.Context, id uuid.UUID) (*models.BenchmarkRate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+benchmarkColumns+` FROM benchmark_rates WHERE id = ?`, id.String())
	b, err := scanBenchmarkRate(row)
	if err != nil {
		return nil, wrapError("get benchmark rate", err)
	}
	return b, nil
}

// GetBenchmarkRateByDate retrieves the rate published for exactly date.
func (s *SQLiteStore) GetBenchmarkRateByDate(ctx context.Context, date models.Date) (*models.BenchmarkRate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+benchmarkColumns+` FROM benchmark_rates WHERE date = ?`, date)
	b, err := scanBenchmarkRate(row)
	if err != nil {
		return nil, wrapError("get benchmark rate for "+date.String(), err)
	}
	return b, nil
}

// UpdateBenchmarkRate overwrites the values of a rate.
func (s *SQLiteStore) UpdateBenchmarkRate(ctx context.Context, b *models.BenchmarkRate) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE benchmark_rates SET date = ?, rate_12m = ?, rate_6m = ?, rate_3m = ?, rate_1m = ?, source = ? WHERE id = ?`,
		b.Date, b.Rate12M, b.Rate6M, b.Rate3M, b.Rate1M, b.Source, b.ID.String(),
	)
	if err != nil {
		return wrapError("update benchmark rate", err)
	}
	return expectOne("update benchmark rate", result)
}

// DeleteBenchmarkRate removes a rate.
func (s *SQLiteStore) DeleteBenchmarkRate(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM benchmark_rates WHERE id = ?`, id.String())
	if err != nil {
		return wrapError("delete benchmark rate", err)
	}
	return expectOne("delete benchmark rate", result)
}

// ListBenchmarkRates retrieves rates in [from, to], newest first.
func (s *SQLiteStore) ListBenchmarkRates(ctx context.Context, from, to models.Date) ([]*models.BenchmarkRate, error) {
	var where []string
	var args []any
	if !from.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, from)
	}
	if !to.IsZero() {
		where = append(where, "date <= ?")
		args = append(args, to)
	}
	query := `SELECT ` + benchmarkColumns + ` FROM benchmark_rates`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY date DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("list benchmark rates", err)
	}
	defer rows.Close()

	rates := []*models.BenchmarkRate{}
	for rows.Next() {
		b, err := scanBenchmarkRate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan benchmark rate row: %w", err)
		}
		rates = append(rates, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return rates, nil
}

// LatestBenchmarkRate retrieves the most recent rate.
func (s *SQLiteStore) LatestBenchmarkRate(ctx context.Context) (*models.BenchmarkRate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+benchmarkColumns+` FROM benchmark_rates ORDER BY date DESC LIMIT 1`)
	b, err := scanBenchmarkRate(row)
	if err != nil {
		return nil, wrapError("get latest benchmark rate", err)
	}
	return b, nil
}

// BenchmarkRateAsOf retrieves the closest rate on or before date with a value
// for tenor.
func (s *SQLiteStore) BenchmarkRateAsOf(ctx context.Context, date models.Date, tenor models.Tenor) (*models.BenchmarkRate, error) {
	column, err := tenorColumn(tenor)
	if err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+benchmarkColumns+` FROM benchmark_rates WHERE date <= ? AND `+column+` IS NOT NULL ORDER BY date DESC LIMIT 1`, date)
	b, err := scanBenchmarkRate(row)
	if err != nil {
		return nil, wrapError(fmt.Sprintf("get %s benchmark rate as of %s", tenor, date), err)
	}
	return b, nil
}
