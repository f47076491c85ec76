package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DealType enumerates the financing products a broker can submit.
type DealType string

const (
	DealTypeEquipmentFinance  DealType = "equipment_finance"
	DealTypeMCAWorkingCapital DealType = "mca_working_capital"
	DealTypeLineOfCredit      DealType = "line_of_credit"
	DealTypeTermLoan          DealType = "term_loan"
	DealTypeRealEstate        DealType = "real_estate"
)

var dealTypeLabels = map[DealType]string{
	DealTypeEquipmentFinance:  "Equipment Finance",
	DealTypeMCAWorkingCapital: "MCA Working Capital",
	DealTypeLineOfCredit:      "Line of Credit",
	DealTypeTermLoan:          "Term Loan",
	DealTypeRealEstate:        "Real Estate Business Loan",
}

// IsValid reports whether the deal type is known.
func (t DealType) IsValid() bool {
	_, ok := dealTypeLabels[t]
	return ok
}

// Label returns the display name of the deal type.
func (t DealType) Label() string {
	if label, ok := dealTypeLabels[t]; ok {
		return label
	}
	return string(t)
}

// Deal is a single funding request tracked through the pipeline.
// Status and LastStatusChange are only written together with a history entry.
type Deal struct {
	ID                string
	BrokerID          string
	DealType          DealType
	Status            DealStatus
	FundingAmount     decimal.Decimal
	LegalBusinessName string
	DealDetails       map[string]any
	AdminNotes        *string
	RecommendedLender *string
	LenderFitScore    *int
	LenderNotes       *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	SubmittedAt       time.Time
	LastStatusChange  time.Time
	Version           int64
}

// LenderScore is the admin's lender recommendation for a deal.
type LenderScore struct {
	DealID            string
	RecommendedLender *string
	LenderFitScore    *int
	LenderNotes       *string
}

// Score extracts the lender recommendation fields.
func (d *Deal) Score() LenderScore {
	return LenderScore{
		DealID:            d.ID,
		RecommendedLender: d.RecommendedLender,
		LenderFitScore:    d.LenderFitScore,
		LenderNotes:       d.LenderNotes,
	}
}
