package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/mcclellann/propledger/pkg/config"
	"github.com/mcclellann/propledger/pkg/ledger"
	"github.com/mcclellann/propledger/pkg/models"
	"github.com/mcclellann/propledger/pkg/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func init() {
	// Amounts go out as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Server holds the ledger instance and the HTTP concerns around it.
type Server struct {
	ledger       *ledger.Ledger
	storage      store.Storage // Keep a reference to the storage to close it
	logger       *zap.Logger
	auth         *authenticator
	metrics      *metrics
	defaultTenor models.Tenor
	now          func() time.Time // Only source of "today"
}

func NewServer(s store.Storage, conf *config.Configuration, logger *zap.Logger) *Server {
	return &Server{
		ledger:       ledger.NewLedger(s, logger, conf.Tenor()),
		storage:      s,
		logger:       logger,
		auth:         &authenticator{secret: []byte(conf.Auth.JWTSecret), issuer: conf.Auth.Issuer},
		metrics:      newMetrics(),
		defaultTenor: conf.Tenor(),
		now:          time.Now,
	}
}

// Handler builds the router. Everything under /api requires a bearer token.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.Use(s.instrument)
	// Middleware only runs on matched routes.
	router.NotFoundHandler = s.instrument(http.NotFoundHandler())
	router.MethodNotAllowedHandler = s.instrument(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}))
	router.HandleFunc("/healthz", s.healthHandler).Methods("GET")
	router.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.auth.middleware)

	api.HandleFunc("/properties", s.listPropertiesHandler).Methods("GET")
	api.HandleFunc("/properties", s.createPropertyHandler).Methods("POST")
	api.HandleFunc("/properties/{id}", s.getPropertyHandler).Methods("GET")
	api.HandleFunc("/properties/{id}", s.updatePropertyHandler).Methods("PUT")
	api.HandleFunc("/properties/{id}", s.deletePropertyHandler).Methods("DELETE")
	api.HandleFunc("/properties/{id}/loan", s.getPropertyLoanHandler).Methods("GET")

	api.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	api.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	api.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	api.HandleFunc("/loans/{id}", s.updateLoanHandler).Methods("PUT")
	api.HandleFunc("/loans/{id}", s.deleteLoanHandler).Methods("DELETE")
	api.HandleFunc("/loans/{id}/revisions", s.listRevisionsHandler).Methods("GET")
	api.HandleFunc("/loans/{id}/revisions", s.createRevisionHandler).Methods("POST")
	api.HandleFunc("/loans/{id}/revisions/{revisionID}", s.updateRevisionHandler).Methods("PUT")
	api.HandleFunc("/loans/{id}/prepayments", s.listPrepaymentsHandler).Methods("GET")
	api.HandleFunc("/loans/{id}/prepayments", s.createPrepaymentHandler).Methods("POST")
	api.HandleFunc("/loans/{id}/prepayments/{prepaymentID}", s.deletePrepaymentHandler).Methods("DELETE")

	api.HandleFunc("/loans/{id}/schedule", s.scheduleHandler).Methods("GET")
	api.HandleFunc("/loans/{id}/current-status", s.currentStatusHandler).Methods("GET")
	api.HandleFunc("/loans/{id}/summary", s.summaryHandler).Methods("GET")
	api.HandleFunc("/loans/{id}/prepayment-impact", s.prepaymentImpactHandler).Methods("POST")
	api.HandleFunc("/loans/{id}/revision-calendar", s.revisionCalendarHandler).Methods("POST")
	api.HandleFunc("/loans/{id}/assign-benchmarks", s.assignBenchmarksHandler).Methods("POST")
	api.HandleFunc("/loans/{id}/stress-test", s.stressTestHandler).Methods("GET")
	api.HandleFunc("/simulations", s.simulationHandler).Methods("POST")

	api.HandleFunc("/benchmark-rates", s.listBenchmarkRatesHandler).Methods("GET")
	api.HandleFunc("/benchmark-rates", s.createBenchmarkRateHandler).Methods("POST")
	api.HandleFunc("/benchmark-rates/bulk", s.bulkBenchmarkRatesHandler).Methods("POST")
	api.HandleFunc("/benchmark-rates/parse", s.parseBenchmarkRatesHandler).Methods("POST")
	api.HandleFunc("/benchmark-rates/latest", s.latestBenchmarkRateHandler).Methods("GET")
	api.HandleFunc("/benchmark-rates/as-of/{date}", s.benchmarkRateAsOfHandler).Methods("GET")
	api.HandleFunc("/benchmark-rates/{id}", s.updateBenchmarkRateHandler).Methods("PUT")
	api.HandleFunc("/benchmark-rates/{id}", s.deleteBenchmarkRateHandler).Methods("DELETE")

	return router
}

// runBenchmarkFill assigns newly loaded benchmark values to open revisions
// every interval until ctx is done.
func (s *Server) runBenchmarkFill(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updated, err := s.ledger.FillMissingBenchmarks(ctx)
			if err != nil {
				s.logger.Error("benchmark fill failed", zap.String("op", "api.runBenchmarkFill"), zap.Error(err))
				continue
			}
			s.metrics.benchmarksFill.Add(float64(updated))
		}
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.storage.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", zap.Error(err))
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps ledger errors onto status codes. Unexpected errors are
// logged and hidden from the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, ledger.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrValidation), errors.Is(err, ledger.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// owner returns the authenticated owner. Routes under /api always have one.
func owner(r *http.Request) uuid.UUID {
	id, _ := ownerFromContext(r.Context())
	return id
}

// pathID parses a uuid route variable, answering 400 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		http.Error(w, "Invalid "+name, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

// queryDate parses an optional YYYY-MM-DD query parameter, defaulting to fallback.
func queryDate(w http.ResponseWriter, r *http.Request, name string, fallback models.Date) (models.Date, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		http.Error(w, "Invalid "+name+": "+err.Error(), http.StatusBadRequest)
		return models.Date{}, false
	}
	return d, true
}

func (s *Server) today() models.Date {
	return models.DateOf(s.now())
}
