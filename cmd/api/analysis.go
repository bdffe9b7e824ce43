package main

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/mcclellann/propledger/pkg/amortization"
	"github.com/mcclellann/propledger/pkg/models"
	"github.com/shopspring/decimal"
)

// Amounts are computed at full precision and rounded to cents only here.
const moneyPlaces = 2

func money(d decimal.Decimal) decimal.Decimal { return d.Round(moneyPlaces) }

func roundEntry(e amortization.Entry) amortization.Entry {
	return amortization.Entry{
		Month:      e.Month,
		Payment:    money(e.Payment),
		Interest:   money(e.Interest),
		Principal:  money(e.Principal),
		Balance:    money(e.Balance),
		AnnualRate: e.AnnualRate,
		Prepayment: money(e.Prepayment),
	}
}

func roundSchedule(schedule []amortization.Entry) []amortization.Entry {
	out := make([]amortization.Entry, len(schedule))
	for i, e := range schedule {
		out[i] = roundEntry(e)
	}
	return out
}

func roundTotals(t amortization.Totals) amortization.Totals {
	return amortization.Totals{
		Payments:    money(t.Payments),
		Interest:    money(t.Interest),
		Principal:   money(t.Principal),
		Prepayments: money(t.Prepayments),
		TermMonths:  t.TermMonths,
	}
}

func roundStatus(st amortization.Status) amortization.Status {
	st.Payment = money(st.Payment)
	st.Balance = money(st.Balance)
	return st
}

type scheduleResponse struct {
	LoanID   uuid.UUID            `json:"loan_id"`
	Schedule []amortization.Entry `json:"schedule"`
}

func (s *Server) scheduleHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	schedule, err := s.ledger.Schedule(r.Context(), owner(r), loanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scheduleResponse{LoanID: loanID, Schedule: roundSchedule(schedule)})
}

func (s *Server) currentStatusHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	asOf, ok := queryDate(w, r, "as_of", s.today())
	if !ok {
		return
	}
	status, err := s.ledger.CurrentStatus(r.Context(), owner(r), loanID, asOf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roundStatus(status))
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	asOf, ok := queryDate(w, r, "as_of", s.today())
	if !ok {
		return
	}
	summary, err := s.ledger.Summary(r.Context(), owner(r), loanID, asOf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, amortization.Summary{
		Totals: roundTotals(summary.Totals),
		Status: roundStatus(summary.Status),
	})
}

type impactRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate models.Date     `json:"payment_date"`
}

func (s *Server) prepaymentImpactHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req impactRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	impact, err := s.ledger.PrepaymentImpact(r.Context(), owner(r), loanID, req.Amount, req.PaymentDate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	impact.InterestSaved = money(impact.InterestSaved)
	impact.MonthlySavings = money(impact.MonthlySavings)
	impact.TotalSavings = money(impact.TotalSavings)
	impact.Before = roundTotals(impact.Before)
	impact.After = roundTotals(impact.After)
	writeJSON(w, http.StatusOK, impact)
}

func (s *Server) revisionCalendarHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	createMissing := false
	if raw := r.URL.Query().Get("create_missing"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "Invalid create_missing", http.StatusBadRequest)
			return
		}
		createMissing = v
	}
	result, err := s.ledger.RevisionCalendar(r.Context(), owner(r), loanID, createMissing)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) assignBenchmarksHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	tenor := s.defaultTenor
	if raw := r.URL.Query().Get("tenor"); raw != "" {
		tenor = models.Tenor(raw)
	}
	result, err := s.ledger.AssignBenchmarks(r.Context(), owner(r), loanID, tenor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) stressTestHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	asOf, ok := queryDate(w, r, "as_of", s.today())
	if !ok {
		return
	}
	report, err := s.ledger.StressTest(r.Context(), owner(r), loanID, asOf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report.Balance = money(report.Balance)
	report.BasePayment = money(report.BasePayment)
	for i, sc := range report.Scenarios {
		sc.Payment = money(sc.Payment)
		sc.PaymentDifference = money(sc.PaymentDifference)
		sc.AnnualImpact = money(sc.AnnualImpact)
		report.Scenarios[i] = sc
	}
	writeJSON(w, http.StatusOK, report)
}

type simulationRequest struct {
	LoanAmount decimal.Decimal `json:"loan_amount"`
	AnnualRate decimal.Decimal `json:"annual_rate"`
	TermYears  int             `json:"term_years"`
	TermMonths int             `json:"term_months"` // Used when term_years is zero
	StartDate  models.Date     `json:"start_date"`
}

type simulationResponse struct {
	MonthlyPayment decimal.Decimal      `json:"monthly_payment"`
	TermMonths     int                  `json:"term_months"`
	StartDate      models.Date          `json:"start_date"`
	EndDate        models.Date          `json:"end_date"`
	Totals         amortization.Totals  `json:"totals"`
	Schedule       []amortization.Entry `json:"schedule"`
}

func (s *Server) simulationHandler(w http.ResponseWriter, r *http.Request) {
	var req simulationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	months := req.TermMonths
	if req.TermYears != 0 {
		months = req.TermYears * 12
	}
	start := req.StartDate
	if start.IsZero() {
		start = s.today().FirstOfMonth()
	}
	sim, err := amortization.Simulate(req.LoanAmount, req.AnnualRate, months, start)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, simulationResponse{
		MonthlyPayment: money(sim.Payment),
		TermMonths:     months,
		StartDate:      sim.Loan.StartDate,
		EndDate:        sim.Loan.EndDate,
		Totals:         roundTotals(sim.Totals),
		Schedule:       roundSchedule(sim.Schedule),
	})
}
