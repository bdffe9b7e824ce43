package main

import (
	"net/http"

	"github.com/mcclellann/propledger/pkg/models"
)

func (s *Server) listPropertiesHandler(w http.ResponseWriter, r *http.Request) {
	properties, err := s.ledger.ListProperties(r.Context(), owner(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, properties)
}

func (s *Server) createPropertyHandler(w http.ResponseWriter, r *http.Request) {
	var p models.Property
	if !decodeJSON(w, r, &p) {
		return
	}
	created, err := s.ledger.CreateProperty(r.Context(), owner(r), &p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getPropertyHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := s.ledger.GetProperty(r.Context(), owner(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updatePropertyHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var p models.Property
	if !decodeJSON(w, r, &p) {
		return
	}
	p.ID = id // Ensure ID from URL is used
	updated, err := s.ledger.UpdateProperty(r.Context(), owner(r), &p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deletePropertyHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.ledger.DeleteProperty(r.Context(), owner(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getPropertyLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	loan, err := s.ledger.GetLoanForProperty(r.Context(), owner(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*models.Loan{"loan": loan})
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.ListLoans(r.Context(), owner(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var loan models.Loan
	if !decodeJSON(w, r, &loan) {
		return
	}
	created, err := s.ledger.CreateLoan(r.Context(), owner(r), &loan)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	loan, err := s.ledger.GetLoan(r.Context(), owner(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) updateLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var loan models.Loan
	if !decodeJSON(w, r, &loan) {
		return
	}
	loan.ID = id
	updated, err := s.ledger.UpdateLoan(r.Context(), owner(r), &loan)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.ledger.DeleteLoan(r.Context(), owner(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listRevisionsHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	revisions, err := s.ledger.ListRevisions(r.Context(), owner(r), loanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, revisions)
}

func (s *Server) createRevisionHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var rev models.Revision
	if !decodeJSON(w, r, &rev) {
		return
	}
	created, err := s.ledger.AddRevision(r.Context(), owner(r), loanID, &rev)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateRevisionHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	revisionID, ok := pathID(w, r, "revisionID")
	if !ok {
		return
	}
	var rev models.Revision
	if !decodeJSON(w, r, &rev) {
		return
	}
	rev.ID = revisionID
	updated, err := s.ledger.UpdateRevision(r.Context(), owner(r), loanID, &rev)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) listPrepaymentsHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	prepayments, err := s.ledger.ListPrepayments(r.Context(), owner(r), loanID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prepayments)
}

func (s *Server) createPrepaymentHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var p models.Prepayment
	if !decodeJSON(w, r, &p) {
		return
	}
	created, err := s.ledger.AddPrepayment(r.Context(), owner(r), loanID, &p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) deletePrepaymentHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	prepaymentID, ok := pathID(w, r, "prepaymentID")
	if !ok {
		return
	}
	if err := s.ledger.DeletePrepayment(r.Context(), owner(r), loanID, prepaymentID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
