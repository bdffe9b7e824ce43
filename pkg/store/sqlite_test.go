package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/propledger/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "propledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedProperty(t *testing.T, s *SQLiteStore, owner uuid.UUID) *models.Property {
	t.Helper()
	now := time.Now().UTC()
	p := &models.Property{
		ID:            uuid.New(),
		OwnerID:       owner,
		Address:       "Calle Mayor 1, Madrid",
		PropertyType:  "flat",
		PurchaseDate:  models.MustParseDate("2019-11-20"),
		PurchasePrice: decimal.NewNullDecimal(decimal.RequireFromString("250000.00")),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, s.CreateProperty(context.Background(), p))
	return p
}

func seedLoan(t *testing.T, s *SQLiteStore, propertyID uuid.UUID) *models.Loan {
	t.Helper()
	now := time.Now().UTC()
	l := &models.Loan{
		ID:                 uuid.New(),
		PropertyID:         propertyID,
		LoanRef:            "HIP-0001",
		BankEntity:         "Banco Ejemplo",
		RateType:           models.RateTypeVariable,
		InitialAmount:      decimal.RequireFromString("150000.00"),
		OutstandingBalance: decimal.RequireFromString("132456.78"),
		Margin:             decimal.RequireFromString("0.99"),
		StartDate:          models.MustParseDate("2020-01-01"),
		EndDate:            models.MustParseDate("2044-12-01"),
		ReviewPeriodMonths: 12,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	require.NoError(t, s.CreateLoan(context.Background(), l))
	return l
}

func TestSQLiteStore_PropertyRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := uuid.New()
	p := seedProperty(t, s, owner)

	got, err := s.GetProperty(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.OwnerID, got.OwnerID)
	assert.Equal(t, p.Address, got.Address)
	assert.Equal(t, p.PurchaseDate, got.PurchaseDate)
	assert.True(t, got.PurchasePrice.Valid)
	assert.True(t, got.PurchasePrice.Decimal.Equal(p.PurchasePrice.Decimal))
	assert.False(t, got.AppraisalValue.Valid)

	got.Address = "Calle Mayor 2, Madrid"
	got.AppraisalValue = decimal.NewNullDecimal(decimal.NewFromInt(300_000))
	require.NoError(t, s.UpdateProperty(ctx, got))

	updated, err := s.GetProperty(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Calle Mayor 2, Madrid", updated.Address)
	assert.True(t, updated.AppraisalValue.Decimal.Equal(decimal.NewFromInt(300_000)))

	seedProperty(t, s, uuid.New())
	mine, err := s.ListPropertiesForOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, p.ID, mine[0].ID)
}

func TestSQLiteStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetProperty(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetLoan(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteLoan(ctx, uuid.New()), ErrNotFound)
	assert.ErrorIs(t, s.UpdateProperty(ctx, &models.Property{ID: uuid.New(), Address: "x"}), ErrNotFound)
	_, err = s.LatestBenchmarkRate(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_LoanRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	owner := uuid.New()
	p := seedProperty(t, s, owner)
	l := seedLoan(t, s, p.ID)

	got, err := s.GetLoan(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RateTypeVariable, got.RateType)
	assert.True(t, got.InitialAmount.Equal(l.InitialAmount))
	assert.Equal(t, "132456.78", got.OutstandingBalance.StringFixed(2))
	assert.Equal(t, l.StartDate, got.StartDate)
	assert.Equal(t, l.EndDate, got.EndDate)
	assert.Equal(t, 12, got.ReviewPeriodMonths)

	byProperty, err := s.GetLoanByProperty(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, l.ID, byProperty.ID)

	owned, err := s.ListLoansForOwner(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, owned, 1)
	others, err := s.ListLoansForOwner(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, others)

	got.OutstandingBalance = decimal.RequireFromString("120000")
	require.NoError(t, s.UpdateLoan(ctx, got))
	all, err := s.ListLoans(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].OutstandingBalance.Equal(decimal.NewFromInt(120_000)))
}

func TestSQLiteStore_OneLoanPerProperty(t *testing.T) {
	s := newTestStore(t)
	p := seedProperty(t, s, uuid.New())
	first := seedLoan(t, s, p.ID)

	second := *first
	second.ID = uuid.New()
	err := s.CreateLoan(context.Background(), &second)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestSQLiteStore_LoanRequiresProperty(t *testing.T) {
	s := newTestStore(t)
	p := seedProperty(t, s, uuid.New())
	orphan := *seedLoan(t, s, p.ID)
	orphan.ID = uuid.New()
	orphan.PropertyID = uuid.New()

	err := s.CreateLoan(context.Background(), &orphan)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_Revisions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProperty(t, s, uuid.New())
	l := seedLoan(t, s, p.ID)

	later := &models.Revision{ID: uuid.New(), LoanID: l.ID, EffectiveDate: models.MustParseDate("2022-01-01"), MarginRate: decimal.RequireFromString("0.99"), PeriodMonths: 12}
	require.NoError(t, s.CreateRevision(ctx, later))

	batch := []*models.Revision{
		{ID: uuid.New(), LoanID: l.ID, EffectiveDate: models.MustParseDate("2020-01-01"), BenchmarkRate: decimal.NewNullDecimal(decimal.RequireFromString("-0.253")), MarginRate: decimal.RequireFromString("0.99"), PeriodMonths: 12},
		{ID: uuid.New(), LoanID: l.ID, EffectiveDate: models.MustParseDate("2021-01-01"), MarginRate: decimal.RequireFromString("0.99"), PeriodMonths: 12},
	}
	require.NoError(t, s.CreateRevisions(ctx, batch))

	revisions, err := s.ListRevisions(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, revisions, 3)
	assert.Equal(t, "2020-01-01", revisions[0].EffectiveDate.String())
	assert.Equal(t, "2021-01-01", revisions[1].EffectiveDate.String())
	assert.Equal(t, "2022-01-01", revisions[2].EffectiveDate.String())
	assert.True(t, revisions[0].BenchmarkRate.Valid)
	assert.Equal(t, "-0.253", revisions[0].BenchmarkRate.Decimal.String())
	assert.False(t, revisions[1].BenchmarkRate.Valid)

	revisions[1].BenchmarkRate = decimal.NewNullDecimal(decimal.RequireFromString("-0.5"))
	require.NoError(t, s.UpdateRevision(ctx, revisions[1]))
	got, err := s.GetRevision(ctx, revisions[1].ID)
	require.NoError(t, err)
	assert.True(t, got.BenchmarkRate.Decimal.Equal(decimal.RequireFromString("-0.5")))
}

func TestSQLiteStore_CreateRevisionsIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProperty(t, s, uuid.New())
	l := seedLoan(t, s, p.ID)

	dup := uuid.New()
	batch := []*models.Revision{
		{ID: dup, LoanID: l.ID, EffectiveDate: models.MustParseDate("2020-01-01"), MarginRate: decimal.Zero},
		{ID: dup, LoanID: l.ID, EffectiveDate: models.MustParseDate("2021-01-01"), MarginRate: decimal.Zero},
	}
	err := s.CreateRevisions(ctx, batch)
	assert.ErrorIs(t, err, ErrConflict)

	revisions, err := s.ListRevisions(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, revisions)
}

func TestSQLiteStore_RevisionDateIsUniquePerLoan(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	l := seedLoan(t, s, seedProperty(t, s, uuid.New()).ID)
	other := seedLoan(t, s, seedProperty(t, s, uuid.New()).ID)

	newRevision := func(loanID uuid.UUID, date string) *models.Revision {
		return &models.Revision{ID: uuid.New(), LoanID: loanID, EffectiveDate: models.MustParseDate(date), MarginRate: decimal.RequireFromString("0.99"), PeriodMonths: 12}
	}
	require.NoError(t, s.CreateRevision(ctx, newRevision(l.ID, "2021-01-01")))
	require.NoError(t, s.CreateRevision(ctx, newRevision(other.ID, "2021-01-01")), "the same date on another loan is fine")

	err := s.CreateRevision(ctx, newRevision(l.ID, "2021-01-01"))
	assert.ErrorIs(t, err, ErrConflict)

	err = s.CreateRevisions(ctx, []*models.Revision{newRevision(l.ID, "2022-01-01"), newRevision(l.ID, "2022-01-01")})
	assert.ErrorIs(t, err, ErrConflict)

	moved := newRevision(l.ID, "2023-01-01")
	require.NoError(t, s.CreateRevision(ctx, moved))
	moved.EffectiveDate = models.MustParseDate("2021-01-01")
	assert.ErrorIs(t, s.UpdateRevision(ctx, moved), ErrConflict)

	revisions, err := s.ListRevisions(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, revisions, 2)
	assert.Equal(t, "2021-01-01", revisions[0].EffectiveDate.String())
	assert.Equal(t, "2023-01-01", revisions[1].EffectiveDate.String())
}

func TestSQLiteStore_Prepayments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProperty(t, s, uuid.New())
	l := seedLoan(t, s, p.ID)

	for _, date := range []string{"2023-06-15", "2021-03-01"} {
		require.NoError(t, s.CreatePrepayment(ctx, &models.Prepayment{ID: uuid.New(), LoanID: l.ID, PaymentDate: models.MustParseDate(date), Amount: decimal.NewFromInt(5_000)}))
	}
	prepayments, err := s.ListPrepayments(ctx, l.ID)
	require.NoError(t, err)
	require.Len(t, prepayments, 2)
	assert.Equal(t, "2021-03-01", prepayments[0].PaymentDate.String())

	assert.ErrorIs(t, s.DeletePrepayment(ctx, uuid.New(), prepayments[0].ID), ErrNotFound)
	require.NoError(t, s.DeletePrepayment(ctx, l.ID, prepayments[0].ID))
	prepayments, err = s.ListPrepayments(ctx, l.ID)
	require.NoError(t, err)
	assert.Len(t, prepayments, 1)
}

func TestSQLiteStore_DeletePropertyCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := seedProperty(t, s, uuid.New())
	l := seedLoan(t, s, p.ID)
	require.NoError(t, s.CreateRevision(ctx, &models.Revision{ID: uuid.New(), LoanID: l.ID, EffectiveDate: l.StartDate, MarginRate: l.Margin}))
	require.NoError(t, s.CreatePrepayment(ctx, &models.Prepayment{ID: uuid.New(), LoanID: l.ID, PaymentDate: l.StartDate, Amount: decimal.NewFromInt(1)}))

	require.NoError(t, s.DeleteProperty(ctx, p.ID))

	_, err := s.GetLoan(ctx, l.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	revisions, err := s.ListRevisions(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, revisions)
	prepayments, err := s.ListPrepayments(ctx, l.ID)
	require.NoError(t, err)
	assert.Empty(t, prepayments)
}

func TestSQLiteStore_BenchmarkRates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC()

	rates := []*models.BenchmarkRate{
		{ID: uuid.New(), Date: models.MustParseDate("2023-01-01"), Rate12M: decimal.NewNullDecimal(decimal.RequireFromString("3.337")), Rate3M: decimal.NewNullDecimal(decimal.RequireFromString("2.34")), CreatedAt: now},
		{ID: uuid.New(), Date: models.MustParseDate("2023-02-01"), Rate3M: decimal.NewNullDecimal(decimal.RequireFromString("2.64")), CreatedAt: now},
		{ID: uuid.New(), Date: models.MustParseDate("2023-03-01"), Rate12M: decimal.NewNullDecimal(decimal.RequireFromString("3.647")), Source: "manual", CreatedAt: now},
	}
	for _, b := range rates {
		require.NoError(t, s.CreateBenchmarkRate(ctx, b))
	}

	dup := &models.BenchmarkRate{ID: uuid.New(), Date: rates[0].Date, Rate1M: decimal.NewNullDecimal(decimal.NewFromInt(1)), CreatedAt: now}
	assert.ErrorIs(t, s.CreateBenchmarkRate(ctx, dup), ErrConflict)

	latest, err := s.LatestBenchmarkRate(ctx)
	require.NoError(t, err)
	assert.Equal(t, rates[2].ID, latest.ID)
	assert.Equal(t, "manual", latest.Source)

	// February has no 12-month value, so January is the closest one.
	asOf, err := s.BenchmarkRateAsOf(ctx, models.MustParseDate("2023-02-20"), models.Tenor12M)
	require.NoError(t, err)
	assert.Equal(t, "2023-01-01", asOf.Date.String())

	asOf, err = s.BenchmarkRateAsOf(ctx, models.MustParseDate("2023-02-20"), models.Tenor3M)
	require.NoError(t, err)
	assert.Equal(t, "2023-02-01", asOf.Date.String())

	_, err = s.BenchmarkRateAsOf(ctx, models.MustParseDate("2022-12-31"), models.Tenor12M)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.BenchmarkRateAsOf(ctx, models.MustParseDate("2023-02-20"), models.Tenor("9m"))
	assert.ErrorIs(t, err, models.ErrValidation)

	between, err := s.ListBenchmarkRates(ctx, models.MustParseDate("2023-02-01"), models.Date{})
	require.NoError(t, err)
	require.Len(t, between, 2)
	assert.Equal(t, "2023-03-01", between[0].Date.String())

	byDate, err := s.GetBenchmarkRateByDate(ctx, models.MustParseDate("2023-02-01"))
	require.NoError(t, err)
	byDate.Rate12M = decimal.NewNullDecimal(decimal.RequireFromString("3.534"))
	require.NoError(t, s.UpdateBenchmarkRate(ctx, byDate))
	got, err := s.GetBenchmarkRate(ctx, byDate.ID)
	require.NoError(t, err)
	assert.Equal(t, "3.534", got.Rate12M.Decimal.String())

	require.NoError(t, s.DeleteBenchmarkRate(ctx, byDate.ID))
	all, err := s.ListBenchmarkRates(ctx, models.Date{}, models.Date{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, RunMigrations(s.db))
	require.NoError(t, RunMigrationsDown(s.db))
	require.NoError(t, RunMigrations(s.db))
	require.NoError(t, s.Ping(context.Background()))
}
