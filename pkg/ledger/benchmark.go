package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcclellann/propledger/pkg/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateBenchmarkRate adds a rate for a date that has none yet.
func (l *Ledger) CreateBenchmarkRate(ctx context.Context, b *models.BenchmarkRate) (*models.BenchmarkRate, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	b.ID = uuid.New()
	b.CreatedAt = time.Now().UTC()
	if err := l.storage.CreateBenchmarkRate(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to store benchmark rate: %w", err)
	}
	return b, nil
}

// UpdateBenchmarkRate overwrites the values of an existing rate.
func (l *Ledger) UpdateBenchmarkRate(ctx context.Context, b *models.BenchmarkRate) (*models.BenchmarkRate, error) {
	existing, err := l.storage.GetBenchmarkRate(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	b.CreatedAt = existing.CreatedAt
	if err := l.storage.UpdateBenchmarkRate(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (l *Ledger) DeleteBenchmarkRate(ctx context.Context, id uuid.UUID) error {
	return l.storage.DeleteBenchmarkRate(ctx, id)
}

// ListBenchmarkRates returns rates between from and to, newest first. Zero
// bounds are open.
func (l *Ledger) ListBenchmarkRates(ctx context.Context, from, to models.Date) ([]*models.BenchmarkRate, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, fmt.Errorf("%w: range end %s is before start %s", ErrInvalidInput, to, from)
	}
	return l.storage.ListBenchmarkRates(ctx, from, to)
}

func (l *Ledger) LatestBenchmarkRate(ctx context.Context) (*models.BenchmarkRate, error) {
	return l.storage.LatestBenchmarkRate(ctx)
}

// BenchmarkRateAsOf returns the rate published on date, or failing that the
// closest one before it.
func (l *Ledger) BenchmarkRateAsOf(ctx context.Context, date models.Date) (*models.BenchmarkRate, error) {
	b, err := l.storage.GetBenchmarkRateByDate(ctx, date)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return b, err
	}
	older, err := l.storage.ListBenchmarkRates(ctx, models.Date{}, date)
	if err != nil {
		return nil, err
	}
	if len(older) == 0 {
		return nil, fmt.Errorf("no benchmark rate on or before %s: %w", date, ErrNotFound)
	}
	return older[0], nil
}

// BulkResult reports a bulk load. Rows that could not be stored are listed in
// Errors; the others are committed independently.
type BulkResult struct {
	Created []*models.BenchmarkRate `json:"created"`
	Updated []*models.BenchmarkRate `json:"updated"`
	Errors  []string                `json:"errors"`
}

// UpsertBenchmarkRates stores a batch of rates. A date that already has a
// rate is overwritten when overwrite is set and reported as an error otherwise.
func (l *Ledger) UpsertBenchmarkRates(ctx context.Context, rates []*models.BenchmarkRate, overwrite bool) *BulkResult {
	result := &BulkResult{
		Created: []*models.BenchmarkRate{},
		Updated: []*models.BenchmarkRate{},
		Errors:  []string{},
	}
	for _, b := range rates {
		if err := b.Validate(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("date %s: %v", b.Date, err))
			continue
		}
		existing, err := l.storage.GetBenchmarkRateByDate(ctx, b.Date)
		switch {
		case errors.Is(err, ErrNotFound):
			created, err := l.CreateBenchmarkRate(ctx, b)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("date %s: %v", b.Date, err))
				continue
			}
			result.Created = append(result.Created, created)
		case err != nil:
			result.Errors = append(result.Errors, fmt.Sprintf("date %s: %v", b.Date, err))
		case !overwrite:
			result.Errors = append(result.Errors, fmt.Sprintf("rate already exists for date %s", b.Date))
		default:
			b.ID = existing.ID
			b.CreatedAt = existing.CreatedAt
			if err := l.storage.UpdateBenchmarkRate(ctx, b); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("date %s: %v", b.Date, err))
				continue
			}
			result.Updated = append(result.Updated, b)
		}
	}
	l.logger.Info("benchmark rates loaded",
		zap.String("op", "ledger.UpsertBenchmarkRates"),
		zap.Int("created", len(result.Created)),
		zap.Int("updated", len(result.Updated)),
		zap.Int("errors", len(result.Errors)))
	return result
}

// tenorColumns is the column order of pasted benchmark tables after the date.
var tenorColumns = []models.Tenor{models.Tenor12M, models.Tenor6M, models.Tenor3M, models.Tenor1M}

// ParseBenchmarkText reads rates pasted from a spreadsheet: one row per line,
// a date in layout followed by the 12, 6, 3 and 1 month values separated by
// sep. Values may carry a percent sign and use a decimal comma; empty cells
// are left unset. Bad lines are reported and skipped. Empty layout and sep
// default to ISO dates and tabs.
func ParseBenchmarkText(text, layout, sep string) ([]*models.BenchmarkRate, []string) {
	if layout == "" {
		layout = models.DateFormat
	}
	if sep == "" {
		sep = "\t"
	}

	rates := []*models.BenchmarkRate{}
	problems := []string{}
	for i, line := range strings.Split(strings.TrimSpace(text), "\n") {
		n := i + 1
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, sep)
		if len(parts) < 2 {
			problems = append(problems, fmt.Sprintf("line %d: not enough columns", n))
			continue
		}
		t, err := time.Parse(layout, strings.TrimSpace(parts[0]))
		if err != nil {
			problems = append(problems, fmt.Sprintf("line %d: invalid date %q", n, parts[0]))
			continue
		}

		b := &models.BenchmarkRate{Date: models.DateOf(t)}
		for j, tenor := range tenorColumns {
			if j+1 >= len(parts) {
				break
			}
			cell := strings.TrimSpace(parts[j+1])
			if cell == "" {
				continue
			}
			cell = strings.ReplaceAll(strings.TrimSpace(strings.TrimSuffix(cell, "%")), ",", ".")
			v, err := decimal.NewFromString(cell)
			if err != nil {
				problems = append(problems, fmt.Sprintf("line %d: invalid %s rate %q", n, tenor, parts[j+1]))
				continue
			}
			setRate(b, tenor, v)
		}
		if err := b.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("line %d: %v", n, err))
			continue
		}
		rates = append(rates, b)
	}
	return rates, problems
}

func setRate(b *models.BenchmarkRate, t models.Tenor, v decimal.Decimal) {
	nd := decimal.NewNullDecimal(v)
	switch t {
	case models.Tenor12M:
		b.Rate12M = nd
	case models.Tenor6M:
		b.Rate6M = nd
	case models.Tenor3M:
		b.Rate3M = nd
	case models.Tenor1M:
		b.Rate1M = nd
	}
}
