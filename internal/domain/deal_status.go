package domain

import (
	"fmt"
	"strings"
)

// DealStatus enumerates pipeline stages for deals.
type DealStatus string

const (
	DealStatusSubmitted         DealStatus = "submitted"
	DealStatusUnderReview       DealStatus = "under_review"
	DealStatusDocsNeeded        DealStatus = "docs_needed"
	DealStatusPackaging         DealStatus = "packaging"
	DealStatusSubmittedToLender DealStatus = "submitted_to_lender"
	DealStatusApproved          DealStatus = "approved"
	DealStatusDeclined          DealStatus = "declined"
	DealStatusFunded            DealStatus = "funded"
)

// dealStatusOrder is the pipeline column order.
var dealStatusOrder = []DealStatus{
	DealStatusSubmitted,
	DealStatusUnderReview,
	DealStatusDocsNeeded,
	DealStatusPackaging,
	DealStatusSubmittedToLender,
	DealStatusApproved,
	DealStatusDeclined,
	DealStatusFunded,
}

var dealStatusLabels = map[DealStatus]string{
	DealStatusSubmitted:         "Submitted",
	DealStatusUnderReview:       "Under Review",
	DealStatusDocsNeeded:        "Docs Needed",
	DealStatusPackaging:         "Packaging",
	DealStatusSubmittedToLender: "Submitted to Lender",
	DealStatusApproved:          "Approved",
	DealStatusDeclined:          "Declined",
	DealStatusFunded:            "Funded",
}

// AllDealStatuses returns every status in pipeline column order.
func AllDealStatuses() []DealStatus {
	out := make([]DealStatus, len(dealStatusOrder))
	copy(out, dealStatusOrder)
	return out
}

// IsValidStatus reports whether s is one of the enumerated status tokens.
func IsValidStatus(s string) bool {
	_, ok := dealStatusLabels[DealStatus(s)]
	return ok
}

// ParseDealStatus converts a raw token into a DealStatus, rejecting unknown values.
func ParseDealStatus(raw string) (DealStatus, error) {
	s := DealStatus(strings.TrimSpace(raw))
	if !s.IsValid() {
		return "", fmt.Errorf("unknown deal status %q", raw)
	}
	return s, nil
}

// IsValid reports whether the status is part of the vocabulary.
func (s DealStatus) IsValid() bool {
	return IsValidStatus(string(s))
}

// Label returns the human readable label, or the raw token when unknown.
func (s DealStatus) Label() string {
	if label, ok := dealStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// StatusLabel maps a raw status token through the label table.
func StatusLabel(s string) string {
	return DealStatus(s).Label()
}
