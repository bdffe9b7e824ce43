package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mcclellann/propledger/pkg/models"
	"github.com/shopspring/decimal"
)

// loanFile is the document read by the loan commands. Field names match the HTTP API.
type loanFile struct {
	Loan        models.Loan         `json:"loan"`
	Revisions   []models.Revision   `json:"revisions"`
	Prepayments []models.Prepayment `json:"prepayments"`
}

// readLoanFile decodes path, or stdin when path is "-".
func readLoanFile(path string) (*loanFile, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	var lf loanFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&lf); err != nil {
		return nil, fmt.Errorf("failed to decode loan file: %w", err)
	}
	if lf.Loan.OutstandingBalance.IsZero() {
		lf.Loan.OutstandingBalance = lf.Loan.InitialAmount
	}
	if err := lf.Loan.Validate(); err != nil {
		return nil, err
	}
	for i := range lf.Revisions {
		if err := lf.Revisions[i].Validate(); err != nil {
			return nil, fmt.Errorf("revision %d: %w", i+1, err)
		}
	}
	for i := range lf.Prepayments {
		if err := lf.Prepayments[i].Validate(); err != nil {
			return nil, fmt.Errorf("prepayment %d: %w", i+1, err)
		}
	}
	return &lf, nil
}

// decimalFlag is a flag.Value holding an amount or a rate.
type decimalFlag struct {
	decimal.Decimal
	set bool
}

func (f *decimalFlag) String() string {
	if f == nil || !f.set {
		return ""
	}
	return f.Decimal.String()
}

func (f *decimalFlag) Set(s string) error {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	f.Decimal, f.set = v, true
	return nil
}

// dateFlag is a flag.Value holding a YYYY-MM-DD date.
type dateFlag struct{ models.Date }

func (f *dateFlag) String() string {
	if f == nil || f.IsZero() {
		return ""
	}
	return f.Date.String()
}

func (f *dateFlag) Set(s string) error {
	d, err := models.ParseDate(s)
	if err != nil {
		return err
	}
	f.Date = d
	return nil
}
