package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllDealStatusesPipelineOrder(t *testing.T) {
	t.Parallel()

	got := AllDealStatuses()
	require.Equal(t, []DealStatus{
		DealStatusSubmitted,
		DealStatusUnderReview,
		DealStatusDocsNeeded,
		DealStatusPackaging,
		DealStatusSubmittedToLender,
		DealStatusApproved,
		DealStatusDeclined,
		DealStatusFunded,
	}, got)

	// callers must not be able to reorder the vocabulary
	got[0] = DealStatusFunded
	assert.Equal(t, DealStatusSubmitted, AllDealStatuses()[0])
}

func TestIsValidStatus(t *testing.T) {
	t.Parallel()

	for _, status := range AllDealStatuses() {
		assert.True(t, IsValidStatus(string(status)), status)
		assert.True(t, status.IsValid(), status)
	}
	for _, raw := range []string{"", "bogus_status", "SUBMITTED", "not_a_status", " funded"} {
		assert.False(t, IsValidStatus(raw), raw)
	}
}

func TestParseDealStatus(t *testing.T) {
	t.Parallel()

	status, err := ParseDealStatus(" docs_needed ")
	require.NoError(t, err)
	assert.Equal(t, DealStatusDocsNeeded, status)

	_, err = ParseDealStatus("archived")
	assert.Error(t, err)
	_, err = ParseDealStatus("")
	assert.Error(t, err)
}

func TestStatusLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Submitted to Lender", DealStatusSubmittedToLender.Label())
	assert.Equal(t, "Under Review", StatusLabel("under_review"))
	assert.Equal(t, "mystery", StatusLabel("mystery"))
}

func TestParseHistoryOrder(t *testing.T) {
	t.Parallel()

	assert.Equal(t, HistoryOldestFirst, ParseHistoryOrder("asc"))
	assert.Equal(t, HistoryOldestFirst, ParseHistoryOrder("oldest_first"))
	assert.Equal(t, HistoryNewestFirst, ParseHistoryOrder("desc"))
	assert.Equal(t, HistoryNewestFirst, ParseHistoryOrder(""))
}

func TestDealAndDocumentTypeLabels(t *testing.T) {
	t.Parallel()

	assert.True(t, DealTypeRealEstate.IsValid())
	assert.Equal(t, "Real Estate Business Loan", DealTypeRealEstate.Label())
	assert.False(t, DealType("crypto").IsValid())

	assert.True(t, DocumentType("profit_loss").IsValid())
	assert.Equal(t, "Profit & Loss Statement", DocumentType("profit_loss").Label())
	assert.Equal(t, "w9", DocumentType("w9").Label())
}
