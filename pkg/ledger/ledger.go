// Package ledger holds the business operations behind the API: ownership
// checks, validation and the glue between storage and the amortization engine.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/propledger/pkg/amortization"
	"github.com/mcclellann/propledger/pkg/models"
	"github.com/mcclellann/propledger/pkg/store"
	"go.uber.org/zap"
)

var (
	ErrNotFound     = store.ErrNotFound
	ErrConflict     = store.ErrConflict
	ErrValidation   = models.ErrValidation
	ErrInvalidInput = amortization.ErrInvalidInput
)

// Ledger handles the business logic for properties, loans and benchmark rates.
type Ledger struct {
	storage      store.Storage
	logger       *zap.Logger
	defaultTenor models.Tenor
}

// NewLedger creates a new Ledger with a given Storage implementation. New
// revisions take their benchmark from defaultTenor.
func NewLedger(s store.Storage, logger *zap.Logger, defaultTenor models.Tenor) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultTenor == "" {
		defaultTenor = models.Tenor12M
	}
	return &Ledger{
		storage:      s,
		logger:       logger,
		defaultTenor: defaultTenor,
	}
}

// ownedProperty loads a property and hides it from anyone but its owner.
func (l *Ledger) ownedProperty(ctx context.Context, ownerID, id uuid.UUID) (*models.Property, error) {
	p, err := l.storage.GetProperty(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != ownerID {
		return nil, fmt.Errorf("property %s: %w", id, ErrNotFound)
	}
	return p, nil
}

// ownedLoan loads a loan and checks its property belongs to ownerID.
func (l *Ledger) ownedLoan(ctx context.Context, ownerID, id uuid.UUID) (*models.Loan, error) {
	loan, err := l.storage.GetLoan(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := l.ownedProperty(ctx, ownerID, loan.PropertyID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("loan %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return loan, nil
}

// CreateProperty registers a property for ownerID.
func (l *Ledger) CreateProperty(ctx context.Context, ownerID uuid.UUID, p *models.Property) (*models.Property, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p.ID = uuid.New()
	p.OwnerID = ownerID
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := l.storage.CreateProperty(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to store property: %w", err)
	}
	return p, nil
}

// GetProperty retrieves one of the owner's properties.
func (l *Ledger) GetProperty(ctx context.Context, ownerID, id uuid.UUID) (*models.Property, error) {
	return l.ownedProperty(ctx, ownerID, id)
}

// ListProperties retrieves all of the owner's properties.
func (l *Ledger) ListProperties(ctx context.Context, ownerID uuid.UUID) ([]*models.Property, error) {
	return l.storage.ListPropertiesForOwner(ctx, ownerID)
}

// UpdateProperty replaces the editable fields of a property.
func (l *Ledger) UpdateProperty(ctx context.Context, ownerID uuid.UUID, p *models.Property) (*models.Property, error) {
	existing, err := l.ownedProperty(ctx, ownerID, p.ID)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.OwnerID = existing.OwnerID
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	if err := l.storage.UpdateProperty(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteProperty deletes a property together with its loan.
func (l *Ledger) DeleteProperty(ctx context.Context, ownerID, id uuid.UUID) error {
	if _, err := l.ownedProperty(ctx, ownerID, id); err != nil {
		return err
	}
	return l.storage.DeleteProperty(ctx, id)
}

// CreateLoan attaches a loan to one of the owner's properties. A property
// holds at most one loan.
func (l *Ledger) CreateLoan(ctx context.Context, ownerID uuid.UUID, loan *models.Loan) (*models.Loan, error) {
	if _, err := l.ownedProperty(ctx, ownerID, loan.PropertyID); err != nil {
		return nil, err
	}
	if err := loan.Validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	loan.ID = uuid.New()
	loan.CreatedAt = now
	loan.UpdatedAt = now
	if err := l.storage.CreateLoan(ctx, loan); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}
	l.logger.Info("loan created",
		zap.String("op", "ledger.CreateLoan"),
		zap.String("loan_id", loan.ID.String()),
		zap.String("property_id", loan.PropertyID.String()),
		zap.String("rate_type", string(loan.RateType)))
	return loan, nil
}

// GetLoan retrieves one of the owner's loans.
func (l *Ledger) GetLoan(ctx context.Context, ownerID, id uuid.UUID) (*models.Loan, error) {
	return l.ownedLoan(ctx, ownerID, id)
}

// GetLoanForProperty returns the property's loan, or nil when it has none.
func (l *Ledger) GetLoanForProperty(ctx context.Context, ownerID, propertyID uuid.UUID) (*models.Loan, error) {
	if _, err := l.ownedProperty(ctx, ownerID, propertyID); err != nil {
		return nil, err
	}
	loan, err := l.storage.GetLoanByProperty(ctx, propertyID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return loan, err
}

// ListLoans retrieves the loans of all the owner's properties.
func (l *Ledger) ListLoans(ctx context.Context, ownerID uuid.UUID) ([]*models.Loan, error) {
	return l.storage.ListLoansForOwner(ctx, ownerID)
}

// UpdateLoan replaces the editable fields of a loan. The property it belongs
// to cannot change.
func (l *Ledger) UpdateLoan(ctx context.Context, ownerID uuid.UUID, loan *models.Loan) (*models.Loan, error) {
	existing, err := l.ownedLoan(ctx, ownerID, loan.ID)
	if err != nil {
		return nil, err
	}
	if err := loan.Validate(); err != nil {
		return nil, err
	}
	loan.PropertyID = existing.PropertyID
	loan.CreatedAt = existing.CreatedAt
	loan.UpdatedAt = time.Now().UTC()
	if err := l.storage.UpdateLoan(ctx, loan); err != nil {
		return nil, err
	}
	return loan, nil
}

// DeleteLoan deletes a loan with its revisions and prepayments.
func (l *Ledger) DeleteLoan(ctx context.Context, ownerID, id uuid.UUID) error {
	if _, err := l.ownedLoan(ctx, ownerID, id); err != nil {
		return err
	}
	return l.storage.DeleteLoan(ctx, id)
}
