package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/mcclellann/propledger/pkg/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write breaks a uniqueness constraint.
	ErrConflict = errors.New("conflict")
)

// Storage defines the persistence operations for properties, their loans and
// the reference benchmark table.
type Storage interface {
	CreateProperty(ctx context.Context, p *models.Property) error
	GetProperty(ctx context.Context, id uuid.UUID) (*models.Property, error)
	ListPropertiesForOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Property, error)
	UpdateProperty(ctx context.Context, p *models.Property) error
	DeleteProperty(ctx context.Context, id uuid.UUID) error

	CreateLoan(ctx context.Context, loan *models.Loan) error
	GetLoan(ctx context.Context, id uuid.UUID) (*models.Loan, error)
	GetLoanByProperty(ctx context.Context, propertyID uuid.UUID) (*models.Loan, error)
	ListLoansForOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Loan, error)
	ListLoans(ctx context.Context) ([]*models.Loan, error)
	UpdateLoan(ctx context.Context, loan *models.Loan) error
	DeleteLoan(ctx context.Context, id uuid.UUID) error

	CreateRevision(ctx context.Context, r *models.Revision) error
	// CreateRevisions inserts all revisions or none.
	CreateRevisions(ctx context.Context, revisions []*models.Revision) error
	GetRevision(ctx context.Context, id uuid.UUID) (*models.Revision, error)
	UpdateRevision(ctx context.Context, r *models.Revision) error
	// ListRevisions returns the loan's revisions by ascending effective date,
	// in insertion order within a date.
	ListRevisions(ctx context.Context, loanID uuid.UUID) ([]*models.Revision, error)

	CreatePrepayment(ctx context.Context, p *models.Prepayment) error
	ListPrepayments(ctx context.Context, loanID uuid.UUID) ([]*models.Prepayment, error)
	DeletePrepayment(ctx context.Context, loanID, id uuid.UUID) error

	CreateBenchmarkRate(ctx context.Context, b *models.BenchmarkRate) error
	GetBenchmarkRate(ctx context.Context, id uuid.UUID) (*models.BenchmarkRate, error)
	GetBenchmarkRateByDate(ctx context.Context, date models.Date) (*models.BenchmarkRate, error)
	UpdateBenchmarkRate(ctx context.Context, b *models.BenchmarkRate) error
	DeleteBenchmarkRate(ctx context.Context, id uuid.UUID) error
	// ListBenchmarkRates returns rates between from and to inclusive, newest
	// first. A zero bound is open.
	ListBenchmarkRates(ctx context.Context, from, to models.Date) ([]*models.BenchmarkRate, error)
	LatestBenchmarkRate(ctx context.Context) (*models.BenchmarkRate, error)
	// BenchmarkRateAsOf returns the most recent rate on or before date that
	// publishes a value for tenor.
	BenchmarkRateAsOf(ctx context.Context, date models.Date, tenor models.Tenor) (*models.BenchmarkRate, error)

	Ping(ctx context.Context) error
	Close() error
}
