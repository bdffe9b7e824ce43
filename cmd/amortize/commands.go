package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/mcclellann/propledger/pkg/amortization"
	"github.com/shopspring/decimal"
)

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}

func usageError(f *flag.FlagSet, msg string) subcommands.ExitStatus {
	fmt.Fprintf(stderr, "Error: %s\n", msg)
	f.Usage()
	return subcommands.ExitUsageError
}

type scheduleCmd struct {
	loanPath string
	csv      bool
}

func (*scheduleCmd) Name() string { return "schedule" }
func (*scheduleCmd) Synopsis() string { return "prints the month by month amortization schedule of a loan" }
func (*scheduleCmd) Usage() string {
	return `amortize schedule -loan <file.json> [-csv]

  Reads a loan with its revisions and prepayments and prints every month of
  the schedule followed by the lifetime totals. Use "-loan -" to read stdin.

`
}

func (c *scheduleCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.loanPath, "loan", "", "Loan file (JSON), or - for stdin")
	f.BoolVar(&c.csv, "csv", false, "Print CSV instead of an aligned table")
}

func (c *scheduleCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.loanPath == "" {
		return usageError(f, "-loan is required")
	}
	lf, err := readLoanFile(c.loanPath)
	if err != nil {
		return fail(err)
	}
	schedule := amortization.GenerateSchedule(lf.Loan, lf.Revisions, lf.Prepayments)

	if c.csv {
		w := csv.NewWriter(stdout)
		w.Write([]string{"month", "payment", "interest", "principal", "balance", "annual_rate", "prepayment"})
		for _, e := range schedule {
			w.Write([]string{e.Month.String(), money(e.Payment), money(e.Interest), money(e.Principal), money(e.Balance), e.AnnualRate.String(), money(e.Prepayment)})
		}
		w.Flush()
		if err := w.Error(); err != nil {
			return fail(err)
		}
		return subcommands.ExitSuccess
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "MONTH\tPAYMENT\tINTEREST\tPRINCIPAL\tBALANCE\tRATE\tPREPAYMENT\t")
	for _, e := range schedule {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n", e.Month, money(e.Payment), money(e.Interest), money(e.Principal), money(e.Balance), e.AnnualRate, money(e.Prepayment))
	}
	tw.Flush()
	printTotals(amortization.Sum(schedule))
	return subcommands.ExitSuccess
}

func printTotals(t amortization.Totals) {
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "\nTerm:\t%d months\n", t.TermMonths)
	fmt.Fprintf(tw, "Total paid:\t%s\n", money(t.Payments))
	fmt.Fprintf(tw, "Total interest:\t%s\n", money(t.Interest))
	fmt.Fprintf(tw, "Total principal:\t%s\n", money(t.Principal))
	fmt.Fprintf(tw, "Total prepaid:\t%s\n", money(t.Prepayments))
	tw.Flush()
}

type calendarCmd struct {
	loanPath string
}

func (*calendarCmd) Name() string { return "calendar" }
func (*calendarCmd) Synopsis() string { return "prints the rate revision dates of a variable loan" }
func (*calendarCmd) Usage() string {
	return `amortize calendar -loan <file.json>

  Prints the start date and every review period after it up to the end date.

`
}

func (c *calendarCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.loanPath, "loan", "", "Loan file (JSON), or - for stdin")
}

func (c *calendarCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.loanPath == "" {
		return usageError(f, "-loan is required")
	}
	lf, err := readLoanFile(c.loanPath)
	if err != nil {
		return fail(err)
	}
	dates, err := amortization.RevisionCalendar(lf.Loan.StartDate, lf.Loan.EndDate, lf.Loan.ReviewPeriodMonths)
	if err != nil {
		return fail(err)
	}
	for _, d := range dates {
		fmt.Fprintln(stdout, d)
	}
	return subcommands.ExitSuccess
}

type impactCmd struct {
	loanPath string
	amount   decimalFlag
	date     dateFlag
}

func (*impactCmd) Name() string { return "impact" }
func (*impactCmd) Synopsis() string { return "compares a loan with and without an extra prepayment" }
func (*impactCmd) Usage() string {
	return `amortize impact -loan <file.json> -amount <amount> -date <YYYY-MM-DD>

  Simulates a prepayment on top of the recorded ones and prints the interest,
  payment and term savings.

`
}

func (c *impactCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.loanPath, "loan", "", "Loan file (JSON), or - for stdin")
	f.Var(&c.amount, "amount", "Prepayment amount")
	f.Var(&c.date, "date", "Prepayment date (YYYY-MM-DD)")
}

func (c *impactCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.loanPath == "" || !c.amount.set || c.date.IsZero() {
		return usageError(f, "-loan, -amount and -date are required")
	}
	lf, err := readLoanFile(c.loanPath)
	if err != nil {
		return fail(err)
	}
	impact, err := amortization.PrepaymentImpact(lf.Loan, lf.Revisions, lf.Prepayments, c.amount.Decimal, c.date.Date)
	if err != nil {
		return fail(err)
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\tBEFORE\tAFTER\t")
	fmt.Fprintf(tw, "Term (months)\t%d\t%d\t\n", impact.Before.TermMonths, impact.After.TermMonths)
	fmt.Fprintf(tw, "Total paid\t%s\t%s\t\n", money(impact.Before.Payments), money(impact.After.Payments))
	fmt.Fprintf(tw, "Total interest\t%s\t%s\t\n", money(impact.Before.Interest), money(impact.After.Interest))
	tw.Flush()
	fmt.Fprintf(stdout, "\nInterest saved:  %s\n", money(impact.InterestSaved))
	fmt.Fprintf(stdout, "Months saved:    %d\n", impact.MonthsSaved)
	fmt.Fprintf(stdout, "Monthly savings: %s\n", money(impact.MonthlySavings))
	fmt.Fprintf(stdout, "Total savings:   %s\n", money(impact.TotalSavings))
	return subcommands.ExitSuccess
}

type stressCmd struct {
	loanPath string
	asOf     dateFlag
}

func (*stressCmd) Name() string { return "stress" }
func (*stressCmd) Synopsis() string { return "re-prices the remaining balance under rate shocks" }
func (*stressCmd) Usage() string {
	return `amortize stress -loan <file.json> -as-of <YYYY-MM-DD>

  Prints the payment over the remaining term at the current rate and at
  +1, +2 and -0.5 points, and with the benchmark at zero.

`
}

func (c *stressCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.loanPath, "loan", "", "Loan file (JSON), or - for stdin")
	f.Var(&c.asOf, "as-of", "Reference date (YYYY-MM-DD)")
}

func (c *stressCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.loanPath == "" || c.asOf.IsZero() {
		return usageError(f, "-loan and -as-of are required")
	}
	lf, err := readLoanFile(c.loanPath)
	if err != nil {
		return fail(err)
	}
	report := amortization.StressTest(lf.Loan, lf.Revisions, lf.Prepayments, c.asOf.Date, nil)

	fmt.Fprintf(stdout, "Balance %s over %d months at %s%%: %s per month\n\n",
		money(report.Balance), report.RemainingMonths, report.BaseRate, money(report.BasePayment))
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SCENARIO\tRATE\tPAYMENT\tDIFFERENCE\tPER YEAR\t")
	for _, s := range report.Scenarios {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", s.Name, s.Rate, money(s.Payment), money(s.PaymentDifference), money(s.AnnualImpact))
	}
	tw.Flush()
	return subcommands.ExitSuccess
}

type simulateCmd struct {
	amount decimalFlag
	rate   decimalFlag
	years  int
	months int
	start  dateFlag
}

func (*simulateCmd) Name() string { return "simulate" }
func (*simulateCmd) Synopsis() string { return "amortizes a hypothetical fixed-rate loan" }
func (*simulateCmd) Usage() string {
	return `amortize simulate -amount <amount> -rate <annual %> -years <n> [-months <n>] -start <YYYY-MM-DD>

  Prints the first payment and the lifetime totals of a fixed-rate loan.
  -months is used when -years is not set.

`
}

func (c *simulateCmd) SetFlags(f *flag.FlagSet) {
	f.Var(&c.amount, "amount", "Loan amount")
	f.Var(&c.rate, "rate", "Annual interest rate in percent")
	f.IntVar(&c.years, "years", 0, "Term in years")
	f.IntVar(&c.months, "months", 0, "Term in months")
	f.Var(&c.start, "start", "First payment month (YYYY-MM-DD)")
}

func (c *simulateCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.amount.set || !c.rate.set || c.start.IsZero() {
		return usageError(f, "-amount, -rate and -start are required")
	}
	months := c.months
	if c.years != 0 {
		months = c.years * 12
	}
	sim, err := amortization.Simulate(c.amount.Decimal, c.rate.Decimal, months, c.start.Date)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(stdout, "Monthly payment: %s\n", money(sim.Payment))
	fmt.Fprintf(stdout, "Last payment:    %s\n", sim.Loan.EndDate)
	printTotals(sim.Totals)
	return subcommands.ExitSuccess
}
