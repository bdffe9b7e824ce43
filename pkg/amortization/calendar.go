package amortization

import (
	"fmt"

	"github.com/mcclellann/propledger/pkg/models"
)

// RevisionCalendar lists the candidate revision dates of a loan: start, then
// every periodMonths months while not after end. Each date is computed from
// start so that a clamped month end (Jan 31 -> Feb 28) does not drift.
func RevisionCalendar(start, end models.Date, periodMonths int) ([]models.Date, error) {
	if periodMonths <= 0 {
		return nil, fmt.Errorf("%w: revision period must be positive, got %d", ErrInvalidInput, periodMonths)
	}
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil, fmt.Errorf("%w: invalid date range %s to %s", ErrInvalidInput, start, end)
	}

	dates := make([]models.Date, 0, start.MonthsUntil(end)/periodMonths+1)
	for k := 0; ; k++ {
		d := start.AddMonths(k * periodMonths)
		if d.After(end) {
			break
		}
		dates = append(dates, d)
	}
	return dates, nil
}
