package amortization

import (
	"testing"

	"github.com/mcclellann/propledger/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentStatus(t *testing.T) {
	loan := fixedLoan()
	schedule := GenerateSchedule(loan, nil, nil)
	require.Len(t, schedule, 240)

	tests := []struct {
		name  string
		asOf  models.Date
		entry int
	}{
		{"first month", d("2020-01-01"), 0},
		{"mid month picks that month", d("2022-06-17"), 29},
		{"before the loan starts uses the first entry", d("2019-03-01"), 0},
		{"after maturity uses the last entry", d("2045-01-01"), 239},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := CurrentStatus(loan, nil, nil, tt.asOf)
			want := schedule[tt.entry]
			assert.Equal(t, want.Month, status.Month)
			assert.True(t, want.Payment.Equal(status.Payment))
			assert.True(t, want.Balance.Equal(status.Balance))
			assert.True(t, want.AnnualRate.Equal(status.AnnualRate))
			assert.Equal(t, tt.asOf, status.AsOfDate)
		})
	}
}

func TestCurrentStatus_NoSchedule(t *testing.T) {
	loan := fixedLoan()
	loan.InitialAmount = decimal.Zero

	status := CurrentStatus(loan, nil, nil, d("2024-01-01"))
	assert.True(t, status.Payment.IsZero())
	assert.True(t, status.Balance.Equal(loan.OutstandingBalance))
	assert.True(t, status.Month.IsZero())
}

func TestSummarize(t *testing.T) {
	prepayments := []models.Prepayment{{PaymentDate: d("2024-12-01"), Amount: decimal.NewFromInt(20_000)}}
	summary := Summarize(fixedLoan(), nil, prepayments, d("2025-01-10"))

	assert.Equal(t, 240, summary.TermMonths)
	assert.True(t, summary.Prepayments.Equal(decimal.NewFromInt(20_000)))
	assertClose(t, decimal.NewFromInt(200_000), summary.Principal, cent)
	assertClose(t, summary.Principal.Add(summary.Interest), summary.Payments, cent)
	assert.Equal(t, d("2025-01-01"), summary.Month)
	assertClose(t, dec("971.08"), summary.Payment, cent)
	assertClose(t, dec("139998.00"), summary.Balance, cent)
}

func TestSummarize_NoData(t *testing.T) {
	loan := fixedLoan()
	loan.InitialAmount = decimal.Zero

	summary := Summarize(loan, nil, nil, d("2024-01-01"))
	assert.Equal(t, 0, summary.TermMonths)
	assert.True(t, summary.Payments.IsZero())
	assert.True(t, summary.Interest.IsZero())
	assert.True(t, summary.Principal.IsZero())
	assert.True(t, summary.Prepayments.IsZero())
	assert.True(t, summary.Payment.IsZero())
	assert.True(t, summary.Balance.Equal(loan.OutstandingBalance))
}
