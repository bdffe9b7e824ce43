package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mcclellann/propledger/pkg/amortization"
	"github.com/mcclellann/propledger/pkg/config"
	"github.com/mcclellann/propledger/pkg/ledger"
	"github.com/mcclellann/propledger/pkg/models"
	"github.com/mcclellann/propledger/pkg/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type testAPI struct {
	t       *testing.T
	server  *Server
	handler http.Handler
}

func setupTestServer(t *testing.T) *testAPI {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	conf := &config.Configuration{
		Auth:      config.Auth{JWTSecret: testSecret, Issuer: "propledger-test"},
		Benchmark: config.Benchmark{DefaultTenor: "12m"},
	}
	server := NewServer(s, conf, zap.NewNop())
	server.now = func() time.Time { return time.Date(2025, time.January, 10, 9, 30, 0, 0, time.UTC) }
	return &testAPI{t: t, server: server, handler: server.Handler()}
}

func signToken(t *testing.T, subject, issuer, secret string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

// do sends a request as owner and returns the recorder.
func (a *testAPI) do(owner uuid.UUID, method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+signToken(a.t, owner.String(), "propledger-test", testSecret))
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

// createFixedLoan registers a property with a 200,000 loan at 3% over 20 years.
func (a *testAPI) createFixedLoan(owner uuid.UUID) models.Loan {
	a.t.Helper()
	rr := a.do(owner, "POST", "/api/properties", map[string]any{"address": "Gran Via 1, Madrid", "purchase_price": 260000})
	require.Equal(a.t, http.StatusCreated, rr.Code, rr.Body.String())
	property := decodeBody[models.Property](a.t, rr)

	rr = a.do(owner, "POST", "/api/loans", map[string]any{
		"property_id":         property.ID,
		"rate_type":           "fixed",
		"initial_amount":      200000,
		"outstanding_balance": 180000,
		"margin":              3,
		"start_date":          "2020-01-01",
		"end_date":            "2039-12-01",
	})
	require.Equal(a.t, http.StatusCreated, rr.Code, rr.Body.String())
	return decodeBody[models.Loan](a.t, rr)
}

func TestAPI_Authentication(t *testing.T) {
	api := setupTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not a bearer token", "Basic Zm9vOmJhcg=="},
		{"wrong secret", "Bearer " + signToken(t, uuid.NewString(), "propledger-test", "other-secret")},
		{"wrong issuer", "Bearer " + signToken(t, uuid.NewString(), "someone-else", testSecret)},
		{"subject is not an id", "Bearer " + signToken(t, "alice", "propledger-test", testSecret)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/properties", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			api.handler.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	api := setupTestServer(t)

	rr := httptest.NewRecorder()
	api.handler.ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	api.handler.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `propledger_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
}

func TestAPI_UnmatchedRequestsAreCounted(t *testing.T) {
	api := setupTestServer(t)

	rr := httptest.NewRecorder()
	api.handler.ServeHTTP(rr, httptest.NewRequest("GET", "/no-such-page", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	api.handler.ServeHTTP(rr, httptest.NewRequest("DELETE", "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)

	rr = httptest.NewRecorder()
	api.handler.ServeHTTP(rr, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `propledger_http_requests_total{method="GET",route="unmatched",status="404"} 1`)
	assert.Contains(t, rr.Body.String(), `propledger_http_requests_total{method="DELETE",route="unmatched",status="405"} 1`)
}

func TestAPI_CreateLoanAndSchedule(t *testing.T) {
	api := setupTestServer(t)
	owner := uuid.New()
	loan := api.createFixedLoan(owner)

	rr := api.do(owner, "GET", "/api/loans/"+loan.ID.String()+"/schedule", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Schedule []amortization.Entry `json:"schedule"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Schedule, 240)
	first := resp.Schedule[0]
	assert.Equal(t, "2020-01-01", first.Month.String())
	assert.Equal(t, "1109.2", first.Payment.String())
	assert.Equal(t, "500", first.Interest.String())
	assert.Contains(t, rr.Body.String(), `"payment":1109.2`)

	rr = api.do(owner, "GET", "/api/loans/"+loan.ID.String()+"/current-status", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	status := decodeBody[amortization.Status](t, rr)
	assert.Equal(t, "2025-01-10", status.AsOfDate.String())
	assert.Equal(t, "2025-01-01", status.Month.String())
	assert.True(t, status.Payment.Equal(decimal.RequireFromString("1109.2")))

	rr = api.do(owner, "GET", "/api/loans/"+loan.ID.String()+"/summary?as_of=2020-03-15", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	summary := decodeBody[amortization.Summary](t, rr)
	assert.Equal(t, 240, summary.TermMonths)
	assert.Equal(t, "66206.85", summary.Interest.StringFixed(2))
	assert.Equal(t, "2020-03-01", summary.Month.String())

	rr = api.do(owner, "GET", "/api/loans/"+loan.ID.String()+"/summary?as_of=15-03-2020", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_OtherOwnersSeeNothing(t *testing.T) {
	api := setupTestServer(t)
	owner, stranger := uuid.New(), uuid.New()
	loan := api.createFixedLoan(owner)

	for _, path := range []string{
		"/api/loans/" + loan.ID.String(),
		"/api/loans/" + loan.ID.String() + "/schedule",
		"/api/properties/" + loan.PropertyID.String(),
		"/api/properties/" + loan.PropertyID.String() + "/loan",
	} {
		rr := api.do(stranger, "GET", path, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code, path)
	}

	rr := api.do(stranger, "GET", "/api/loans", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rr.Body.String()))

	rr = api.do(owner, "GET", "/api/loans/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_PropertyWithoutLoan(t *testing.T) {
	api := setupTestServer(t)
	owner := uuid.New()

	rr := api.do(owner, "POST", "/api/properties", map[string]any{"address": "Carrer de Mallorca 401"})
	require.Equal(t, http.StatusCreated, rr.Code)
	property := decodeBody[models.Property](t, rr)

	rr = api.do(owner, "GET", "/api/properties/"+property.ID.String()+"/loan", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"loan": null}`, rr.Body.String())

	rr = api.do(owner, "POST", "/api/properties", map[string]any{"address": ""})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_DuplicateLoanConflicts(t *testing.T) {
	api := setupTestServer(t)
	owner := uuid.New()
	loan := api.createFixedLoan(owner)

	rr := api.do(owner, "POST", "/api/loans", map[string]any{
		"property_id":    loan.PropertyID,
		"rate_type":      "fixed",
		"initial_amount": 1000,
		"margin":         1,
		"start_date":     "2020-01-01",
		"end_date":       "2021-01-01",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestAPI_PrepaymentImpact(t *testing.T) {
	api := setupTestServer(t)
	owner := uuid.New()
	loan := api.createFixedLoan(owner)
	path := "/api/loans/" + loan.ID.String() + "/prepayment-impact"

	rr := api.do(owner, "POST", path, map[string]any{"amount": 20000, "payment_date": "2024-12-01"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	impact := decodeBody[amortization.Impact](t, rr)
	assert.Equal(t, "4860.94", impact.InterestSaved.StringFixed(2))
	assert.Equal(t, 0, impact.MonthsSaved)

	rr = api.do(owner, "POST", path, map[string]any{"amount": 20000, "payment_date": "2040-06-01"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(owner, "POST", "/api/loans/"+loan.ID.String()+"/prepayments", map[string]any{"amount": 5000, "payment_date": "2022-05-01"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	prepayment := decodeBody[models.Prepayment](t, rr)

	rr = api.do(owner, "DELETE", "/api/loans/"+loan.ID.String()+"/prepayments/"+prepayment.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestAPI_VariableLoanRevisions(t *testing.T) {
	api := setupTestServer(t)
	owner := uuid.New()

	rr := api.do(owner, "POST", "/api/properties", map[string]any{"address": "Avenida da Liberdade 5"})
	require.Equal(t, http.StatusCreated, rr.Code)
	property := decodeBody[models.Property](t, rr)

	rr = api.do(owner, "POST", "/api/loans", map[string]any{
		"property_id":          property.ID,
		"rate_type":            "variable",
		"initial_amount":       150000,
		"outstanding_balance":  150000,
		"margin":               1.2,
		"start_date":           "2020-01-01",
		"end_date":             "2022-06-01",
		"review_period_months": 12,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	loan := decodeBody[models.Loan](t, rr)
	base := "/api/loans/" + loan.ID.String()

	rr = api.do(owner, "POST", "/api/benchmark-rates/parse", map[string]any{"text": "2020-12-01\t2,0%\n2019-12-01\t-0,25"})
	require.Equal(t, http.StatusOK, rr.Code)
	parsed := decodeBody[parseResponse](t, rr)
	require.Len(t, parsed.Rates, 2)
	assert.Empty(t, parsed.Errors)

	rr = api.do(owner, "POST", "/api/benchmark-rates/bulk", map[string]any{"rates": parsed.Rates})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"total_processed":2`)

	rr = api.do(owner, "POST", base+"/revision-calendar?create_missing=true", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	calendar := decodeBody[ledger.CalendarResult](t, rr)
	require.Len(t, calendar.Dates, 3)
	assert.Equal(t, []string{"2020-01-01", "2021-01-01", "2022-01-01"}, []string{calendar.Dates[0].String(), calendar.Dates[1].String(), calendar.Dates[2].String()})
	assert.Len(t, calendar.Created, 3)

	rr = api.do(owner, "POST", base+"/revisions", map[string]any{"effective_date": "2021-01-01", "margin_rate": 0.9})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = api.do(owner, "POST", base+"/assign-benchmarks?tenor=12m", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assigned := decodeBody[ledger.AssignResult](t, rr)
	assert.Equal(t, 3, assigned.Updated)
	assert.Empty(t, assigned.Errors)

	rr = api.do(owner, "GET", base+"/schedule", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Schedule []amortization.Entry `json:"schedule"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "0.95", resp.Schedule[0].AnnualRate.String())
	assert.Equal(t, "3.2", resp.Schedule[12].AnnualRate.String())

	rr = api.do(owner, "GET", base+"/stress-test?as_of=2021-02-01", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	report := decodeBody[amortization.StressReport](t, rr)
	assert.Equal(t, "2", report.Benchmark.String())
	assert.Len(t, report.Scenarios, 4)

	rr = api.do(owner, "POST", base+"/assign-benchmarks?tenor=5y", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAPI_BenchmarkRates(t *testing.T) {
	api := setupTestServer(t)
	owner := uuid.New()

	rr := api.do(owner, "POST", "/api/benchmark-rates", map[string]any{"date": "2024-01-01", "rate_12m": 3.609, "source": "ecb"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decodeBody[models.BenchmarkRate](t, rr)

	rr = api.do(owner, "POST", "/api/benchmark-rates", map[string]any{"date": "2024-01-01", "rate_12m": 3.7})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = api.do(owner, "POST", "/api/benchmark-rates", map[string]any{"date": "2024-02-01"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(owner, "GET", "/api/benchmark-rates/as-of/2024-01-31", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	asOf := decodeBody[models.BenchmarkRate](t, rr)
	assert.Equal(t, created.ID, asOf.ID)

	rr = api.do(owner, "GET", "/api/benchmark-rates/as-of/2023-12-31", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(owner, "PUT", "/api/benchmark-rates/"+created.ID.String(), map[string]any{"date": "2024-01-01", "rate_12m": 3.61})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = api.do(owner, "GET", "/api/benchmark-rates/latest", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	latest := decodeBody[models.BenchmarkRate](t, rr)
	assert.Equal(t, "3.61", latest.Rate12M.Decimal.String())

	rr = api.do(owner, "DELETE", "/api/benchmark-rates/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = api.do(owner, "GET", "/api/benchmark-rates", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rr.Body.String()))
}

func TestAPI_Simulation(t *testing.T) {
	api := setupTestServer(t)
	owner := uuid.New()

	rr := api.do(owner, "POST", "/api/simulations", map[string]any{"loan_amount": 200000, "annual_rate": 3, "term_years": 20, "start_date": "2020-01-01"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	sim := decodeBody[simulationResponse](t, rr)
	assert.Equal(t, "1109.2", sim.MonthlyPayment.String())
	assert.Equal(t, 240, sim.TermMonths)
	assert.Equal(t, "2039-12-01", sim.EndDate.String())

	rr = api.do(owner, "POST", "/api/simulations", map[string]any{"loan_amount": 200000, "annual_rate": 3})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
