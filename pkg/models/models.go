package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrValidation is returned when an entity breaks one of its invariants.
var ErrValidation = errors.New("validation failed")

type Property struct {
	ID             uuid.UUID           `json:"id"`
	OwnerID        uuid.UUID           `json:"owner_id"` // Subject of the bearer token that created it
	Address        string              `json:"address"`
	PropertyType   string              `json:"property_type,omitempty"` // e.g., "flat", "house"
	PurchaseDate   Date                `json:"purchase_date"`
	PurchasePrice  decimal.NullDecimal `json:"purchase_price"`
	AppraisalValue decimal.NullDecimal `json:"appraisal_value"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func (p *Property) Validate() error {
	if p.Address == "" {
		return fmt.Errorf("%w: address is required", ErrValidation)
	}
	if p.PurchasePrice.Valid && p.PurchasePrice.Decimal.IsNegative() {
		return fmt.Errorf("%w: purchase price must not be negative", ErrValidation)
	}
	return nil
}

type RateType string

const (
	RateTypeFixed    RateType = "fixed"
	RateTypeVariable RateType = "variable"
)

// Loan is a mortgage attached to a single property.
type Loan struct {
	ID                 uuid.UUID       `json:"id"`
	PropertyID         uuid.UUID       `json:"property_id"`
	LoanRef            string          `json:"loan_ref,omitempty"`    // Bank's own loan identifier
	BankEntity         string          `json:"bank_entity,omitempty"` // Lending bank
	RateType           RateType        `json:"rate_type"`
	InitialAmount      decimal.Decimal `json:"initial_amount"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"` // Last balance reported by the bank
	Margin             decimal.Decimal `json:"margin"`              // All-in rate for fixed loans, spread over the benchmark for variable ones
	StartDate          Date            `json:"start_date"`
	EndDate            Date            `json:"end_date"`
	ReviewPeriodMonths int             `json:"review_period_months"` // Rate reset cadence for variable loans
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Validate checks the loan invariants. It does not look at revisions or prepayments.
func (l *Loan) Validate() error {
	switch l.RateType {
	case RateTypeFixed, RateTypeVariable:
	default:
		return fmt.Errorf("%w: unknown rate type %q", ErrValidation, l.RateType)
	}
	if !l.InitialAmount.IsPositive() {
		return fmt.Errorf("%w: initial amount must be positive", ErrValidation)
	}
	if l.OutstandingBalance.IsNegative() {
		return fmt.Errorf("%w: outstanding balance must not be negative", ErrValidation)
	}
	if l.StartDate.IsZero() || l.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrValidation)
	}
	if l.EndDate.Before(l.StartDate) {
		return fmt.Errorf("%w: end date %s is before start date %s", ErrValidation, l.EndDate, l.StartDate)
	}
	if l.RateType == RateTypeVariable && l.ReviewPeriodMonths <= 0 {
		return fmt.Errorf("%w: review period must be positive for variable loans", ErrValidation)
	}
	return nil
}

// Covers reports whether d falls in a month of the loan term.
func (l *Loan) Covers(d Date) bool {
	m := d.FirstOfMonth()
	return !m.Before(l.StartDate.FirstOfMonth()) && !m.After(l.EndDate.FirstOfMonth())
}

// Revision is a rate reset of a variable loan.
type Revision struct {
	ID            uuid.UUID           `json:"id"`
	LoanID        uuid.UUID           `json:"loan_id"`
	EffectiveDate Date                `json:"effective_date"`
	BenchmarkRate decimal.NullDecimal `json:"benchmark_rate"` // Null until the reference value is known
	MarginRate    decimal.Decimal     `json:"margin_rate"`
	PeriodMonths  int                 `json:"period_months"`
}

// AnnualRate is the benchmark (zero when unknown) plus the margin.
func (r *Revision) AnnualRate() decimal.Decimal {
	if r.BenchmarkRate.Valid {
		return r.BenchmarkRate.Decimal.Add(r.MarginRate)
	}
	return r.MarginRate
}

func (r *Revision) Validate() error {
	if r.EffectiveDate.IsZero() {
		return fmt.Errorf("%w: effective date is required", ErrValidation)
	}
	if r.PeriodMonths < 0 {
		return fmt.Errorf("%w: period must not be negative", ErrValidation)
	}
	return nil
}

// Prepayment is a one-off principal reduction.
type Prepayment struct {
	ID          uuid.UUID       `json:"id"`
	LoanID      uuid.UUID       `json:"loan_id"`
	PaymentDate Date            `json:"payment_date"`
	Amount      decimal.Decimal `json:"amount"`
}

func (p *Prepayment) Validate() error {
	if p.PaymentDate.IsZero() {
		return fmt.Errorf("%w: payment date is required", ErrValidation)
	}
	if !p.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	return nil
}

// Tenor selects one of the published maturities of the benchmark index.
type Tenor string

const (
	Tenor12M Tenor = "12m"
	Tenor6M  Tenor = "6m"
	Tenor3M  Tenor = "3m"
	Tenor1M  Tenor = "1m"
)

func ParseTenor(s string) (Tenor, error) {
	switch t := Tenor(s); t {
	case Tenor12M, Tenor6M, Tenor3M, Tenor1M:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown tenor %q", ErrValidation, s)
}

// BenchmarkRate is a snapshot of the reference index (e.g., Euribor) published for a date.
type BenchmarkRate struct {
	ID        uuid.UUID           `json:"id"`
	Date      Date                `json:"date"` // Usually the first day of the month
	Rate12M   decimal.NullDecimal `json:"rate_12m"`
	Rate6M    decimal.NullDecimal `json:"rate_6m"`
	Rate3M    decimal.NullDecimal `json:"rate_3m"`
	Rate1M    decimal.NullDecimal `json:"rate_1m"`
	Source    string              `json:"source,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// Rate returns the value published for tenor, if any.
func (b *BenchmarkRate) Rate(t Tenor) decimal.NullDecimal {
	switch t {
	case Tenor12M:
		return b.Rate12M
	case Tenor6M:
		return b.Rate6M
	case Tenor3M:
		return b.Rate3M
	case Tenor1M:
		return b.Rate1M
	}
	return decimal.NullDecimal{}
}

func (b *BenchmarkRate) Validate() error {
	if b.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrValidation)
	}
	if !b.Rate12M.Valid && !b.Rate6M.Valid && !b.Rate3M.Valid && !b.Rate1M.Valid {
		return fmt.Errorf("%w: at least one tenor must be set", ErrValidation)
	}
	return nil
}
