package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/mcclellann/propledger/pkg/models"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database at path, enables foreign keys and WAL on
// every pooled connection and applies pending migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// dsn appends the connection options go-sqlite3 applies per connection.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// wrapError maps constraint violations onto the package sentinels and adds
// the failing operation to the message.
func wrapError(op string, err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("failed to %s: %w: %w", op, ErrConflict, err)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("failed to %s: %w: referenced row does not exist", op, ErrNotFound)
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to %s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// expectOne turns an UPDATE or DELETE that touched no row into ErrNotFound.
func expectOne(op string, result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("failed to %s: %w", op, ErrNotFound)
	}
	return nil
}

const propertyColumns = `id, owner_id, address, property_type, purchase_date, purchase_price, appraisal_value, created_at, updated_at`

func scanProperty(row scanner) (*models.Property, error) {
	var p models.Property
	err := row.Scan(&p.ID, &p.OwnerID, &p.Address, &p.PropertyType, &p.PurchaseDate, &p.PurchasePrice, &p.AppraisalValue, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProperty inserts a new property.
func (s *SQLiteStore) CreateProperty(ctx context.Context, p *models.Property) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO properties (`+propertyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.OwnerID.String(), p.Address, p.PropertyType, p.PurchaseDate, p.PurchasePrice, p.AppraisalValue, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return wrapError("create property", err)
	}
	return nil
}

// GetProperty retrieves a property by its ID.
func (s *SQLiteStore) GetProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE id = ?`, id.String())
	p, err := scanProperty(row)
	if err != nil {
		return nil, wrapError("get property", err)
	}
	return p, nil
}

// ListPropertiesForOwner returns the owner's properties, oldest first.
func (s *SQLiteStore) ListPropertiesForOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Property, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+propertyColumns+` FROM properties WHERE owner_id = ? ORDER BY created_at, rowid`, ownerID.String())
	if err != nil {
		return nil, wrapError("list properties", err)
	}
	defer rows.Close()

	properties := []*models.Property{}
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan property row: %w", err)
		}
		properties = append(properties, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return properties, nil
}

// UpdateProperty overwrites the mutable fields of a property.
func (s *SQLiteStore) UpdateProperty(ctx context.Context, p *models.Property) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE properties SET address = ?, property_type = ?, purchase_date = ?, purchase_price = ?, appraisal_value = ?, updated_at = ? WHERE id = ?`,
		p.Address, p.PropertyType, p.PurchaseDate, p.PurchasePrice, p.AppraisalValue, p.UpdatedAt, p.ID.String(),
	)
	if err != nil {
		return wrapError("update property", err)
	}
	return expectOne("update property", result)
}

// DeleteProperty removes a property. Its loan, revisions and prepayments are
// removed by cascade.
func (s *SQLiteStore) DeleteProperty(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM properties WHERE id = ?`, id.String())
	if err != nil {
		return wrapError("delete property", err)
	}
	return expectOne("delete property", result)
}

const loanColumns = `l.id, l.property_id, l.loan_ref, l.bank_entity, l.rate_type, l.initial_amount, l.outstanding_balance, l.margin, l.start_date, l.end_date, l.review_period_months, l.created_at, l.updated_at`

func scanLoan(row scanner) (*models.Loan, error) {
	var l models.Loan
	var rateType string
	err := row.Scan(&l.ID, &l.PropertyID, &l.LoanRef, &l.BankEntity, &rateType, &l.InitialAmount, &l.OutstandingBalance, &l.Margin, &l.StartDate, &l.EndDate, &l.ReviewPeriodMonths, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.RateType = models.RateType(rateType)
	return &l, nil
}

func (s *SQLiteStore) queryLoans(ctx context.Context, query string, args ...any) ([]*models.Loan, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapError("list loans", err)
	}
	defer rows.Close()

	loans := []*models.Loan{}
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// CreateLoan inserts a new loan. A second loan for the same property fails
// with ErrConflict; an unknown property with ErrNotFound.
func (s *SQLiteStore) CreateLoan(ctx context.Context, loan *models.Loan) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO loans (id, property_id, loan_ref, bank_entity, rate_type, initial_amount, outstanding_balance, margin, start_date, end_date, review_period_months, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.PropertyID.String(), loan.LoanRef, loan.BankEntity, string(loan.RateType), loan.InitialAmount, loan.OutstandingBalance, loan.Margin, loan.StartDate, loan.EndDate, loan.ReviewPeriodMonths, loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return wrapError("create loan", err)
	}
	return nil
}

// GetLoan retrieves a loan by its ID.
func (s *SQLiteStore) GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans l WHERE l.id = ?`, id.String())
	l, err := scanLoan(row)
	if err != nil {
		return nil, wrapError("get loan", err)
	}
	return l, nil
}

// GetLoanByProperty retrieves the loan attached to a property.
func (s *SQLiteStore) GetLoanByProperty(ctx context.Context, propertyID uuid.UUID) (*models.Loan, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans l WHERE l.property_id = ?`, propertyID.String())
	l, err := scanLoan(row)
	if err != nil {
		return nil, wrapError("get loan for property", err)
	}
	return l, nil
}

// ListLoansForOwner returns the loans of every property the owner holds.
func (s *SQLiteStore) ListLoansForOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Loan, error) {
	return s.queryLoans(ctx,
		`SELECT `+loanColumns+` FROM loans l JOIN properties p ON p.id = l.property_id WHERE p.owner_id = ? ORDER BY l.created_at, l.rowid`,
		ownerID.String())
}

// ListLoans returns every loan.
func (s *SQLiteStore) ListLoans(ctx context.Context) ([]*models.Loan, error) {
	return s.queryLoans(ctx, `SELECT `+loanColumns+` FROM loans l ORDER BY l.created_at, l.rowid`)
}

// UpdateLoan overwrites the mutable fields of a loan. The property link is fixed.
func (s *SQLiteStore) UpdateLoan(ctx context.Context, loan *models.Loan) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE loans SET loan_ref = ?, bank_entity = ?, rate_type = ?, initial_amount = ?, outstanding_balance = ?, margin = ?, start_date = ?, end_date = ?, review_period_months = ?, updated_at = ? WHERE id = ?`,
		loan.LoanRef, loan.BankEntity, string(loan.RateType), loan.InitialAmount, loan.OutstandingBalance, loan.Margin, loan.StartDate, loan.EndDate, loan.ReviewPeriodMonths, loan.UpdatedAt, loan.ID.String(),
	)
	if err != nil {
		return wrapError("update loan", err)
	}
	return expectOne("update loan", result)
}

// DeleteLoan removes a loan together with its revisions and prepayments.
func (s *SQLiteStore) DeleteLoan(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM loans WHERE id = ?`, id.String())
	if err != nil {
		return wrapError("delete loan", err)
	}
	return expectOne("delete loan", result)
}
