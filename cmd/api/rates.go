package main

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/mcclellann/propledger/pkg/ledger"
	"github.com/mcclellann/propledger/pkg/models"
)

func (s *Server) listBenchmarkRatesHandler(w http.ResponseWriter, r *http.Request) {
	from, ok := queryDate(w, r, "from", models.Date{})
	if !ok {
		return
	}
	to, ok := queryDate(w, r, "to", models.Date{})
	if !ok {
		return
	}
	rates, err := s.ledger.ListBenchmarkRates(r.Context(), from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rates)
}

func (s *Server) createBenchmarkRateHandler(w http.ResponseWriter, r *http.Request) {
	var b models.BenchmarkRate
	if !decodeJSON(w, r, &b) {
		return
	}
	created, err := s.ledger.CreateBenchmarkRate(r.Context(), &b)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type bulkRequest struct {
	Rates []*models.BenchmarkRate `json:"rates"`
}

func (s *Server) bulkBenchmarkRatesHandler(w http.ResponseWriter, r *http.Request) {
	overwrite := false
	if raw := r.URL.Query().Get("overwrite"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, "Invalid overwrite", http.StatusBadRequest)
			return
		}
		overwrite = v
	}
	var req bulkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result := s.ledger.UpsertBenchmarkRates(r.Context(), req.Rates, overwrite)
	writeJSON(w, http.StatusOK, struct {
		*ledger.BulkResult
		TotalProcessed int `json:"total_processed"`
		TotalErrors    int `json:"total_errors"`
	}{result, len(result.Created) + len(result.Updated), len(result.Errors)})
}

type parseRequest struct {
	Text       string `json:"text"`
	DateLayout string `json:"date_layout"` // Go reference layout, e.g. "02/01/2006"
	Separator  string `json:"separator"`
}

type parseResponse struct {
	Rates  []*models.BenchmarkRate `json:"parsed_data"`
	Errors []string                `json:"errors"`
}

func (s *Server) parseBenchmarkRatesHandler(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rates, problems := ledger.ParseBenchmarkText(req.Text, req.DateLayout, req.Separator)
	writeJSON(w, http.StatusOK, parseResponse{Rates: rates, Errors: problems})
}

func (s *Server) latestBenchmarkRateHandler(w http.ResponseWriter, r *http.Request) {
	b, err := s.ledger.LatestBenchmarkRate(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) benchmarkRateAsOfHandler(w http.ResponseWriter, r *http.Request) {
	d, err := models.ParseDate(mux.Vars(r)["date"])
	if err != nil {
		http.Error(w, "Invalid date: "+err.Error(), http.StatusBadRequest)
		return
	}
	b, err := s.ledger.BenchmarkRateAsOf(r.Context(), d)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) updateBenchmarkRateHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var b models.BenchmarkRate
	if !decodeJSON(w, r, &b) {
		return
	}
	b.ID = id
	updated, err := s.ledger.UpdateBenchmarkRate(r.Context(), &b)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteBenchmarkRateHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.ledger.DeleteBenchmarkRate(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
