package dto

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/spec-kit/deal-portal/internal/domain"
)

// CreateDealRequest payload.
type CreateDealRequest struct {
	DealType          string          `json:"deal_type" validate:"required,oneof=equipment_finance mca_working_capital line_of_credit term_loan real_estate"`
	FundingAmount     decimal.Decimal `json:"funding_amount"`
	LegalBusinessName string          `json:"legal_business_name" validate:"required,max=200"`
	DealDetails       map[string]any  `json:"deal_details"`
}

func (r *CreateDealRequest) Normalize() {
	r.DealType = strings.TrimSpace(r.DealType)
	r.LegalBusinessName = strings.TrimSpace(r.LegalBusinessName)
}

func (r *CreateDealRequest) Ok() (map[string]string, bool) {
	r.Normalize()
	errs := fieldErrors(Validate.Struct(r))
	if !r.FundingAmount.IsPositive() {
		errs["funding_amount"] = "must be greater than zero"
	}
	return errs, len(errs) == 0
}

// UpdateStatusRequest payload for POST /admin/deals/:id/status.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Note   string `json:"note" validate:"max=2000"`
	// ExpectedVersion, when set, rejects the write if the deal moved since the caller read it.
	ExpectedVersion *int64 `json:"expected_version"`
}

func (r *UpdateStatusRequest) Normalize() {
	r.Status = strings.TrimSpace(r.Status)
}

func (r *UpdateStatusRequest) Ok() (map[string]string, bool) {
	r.Normalize()
	errs := fieldErrors(Validate.Struct(r))
	return errs, len(errs) == 0
}

// DocumentRequestRequest payload for POST /admin/deals/:id/document-requests.
type DocumentRequestRequest struct {
	DocumentTypes []string `json:"document_types" validate:"required,min=1,dive,required"`
	Note          string   `json:"note" validate:"max=2000"`
}

func (r *DocumentRequestRequest) Ok() (map[string]string, bool) {
	errs := fieldErrors(Validate.Struct(r))
	return errs, len(errs) == 0
}

// ScoreDealRequest payload for POST /admin/deals/:id/score.
type ScoreDealRequest struct {
	Lender string `json:"lender" validate:"required,max=200"`
	Score  *int   `json:"score" validate:"required,min=0,max=100"`
	Notes  string `json:"notes" validate:"max=2000"`
}

func (r *ScoreDealRequest) Normalize() {
	r.Lender = strings.TrimSpace(r.Lender)
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *ScoreDealRequest) Ok() (map[string]string, bool) {
	r.Normalize()
	errs := fieldErrors(Validate.Struct(r))
	return errs, len(errs) == 0
}

// UpdateAdminNotesRequest payload for PATCH /admin/deals/:id/notes. Empty notes clear them.
type UpdateAdminNotesRequest struct {
	AdminNotes string `json:"admin_notes" validate:"max=10000"`
}

func (r *UpdateAdminNotesRequest) Ok() (map[string]string, bool) {
	errs := fieldErrors(Validate.Struct(r))
	return errs, len(errs) == 0
}

// LenderScoreResponse is the lender recommendation of a deal.
type LenderScoreResponse struct {
	ID                string  `json:"id"`
	RecommendedLender *string `json:"recommended_lender"`
	LenderFitScore    *int    `json:"lender_fit_score"`
	LenderNotes       *string `json:"lender_notes"`
}

// NewLenderScoreResponse maps a domain score.
func NewLenderScoreResponse(score *domain.LenderScore) LenderScoreResponse {
	return LenderScoreResponse{
		ID:                score.DealID,
		RecommendedLender: score.RecommendedLender,
		LenderFitScore:    score.LenderFitScore,
		LenderNotes:       score.LenderNotes,
	}
}

// DealResponse represents a deal.
type DealResponse struct {
	ID                string            `json:"id"`
	BrokerID          string            `json:"broker_id"`
	DealType          domain.DealType   `json:"deal_type"`
	DealTypeLabel     string            `json:"deal_type_label"`
	Status            domain.DealStatus `json:"status"`
	StatusLabel       string            `json:"status_label"`
	FundingAmount     decimal.Decimal   `json:"funding_amount"`
	LegalBusinessName string            `json:"legal_business_name"`
	DealDetails       map[string]any    `json:"deal_details"`
	AdminNotes        *string           `json:"admin_notes,omitempty"`
	RecommendedLender *string           `json:"recommended_lender,omitempty"`
	LenderFitScore    *int              `json:"lender_fit_score,omitempty"`
	LenderNotes       *string           `json:"lender_notes,omitempty"`
	Version           int64             `json:"version"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	SubmittedAt       time.Time         `json:"submitted_at"`
	LastStatusChange  time.Time         `json:"last_status_change"`
}

// PipelineColumnResponse is one column of the admin board.
type PipelineColumnResponse struct {
	Status domain.DealStatus `json:"status"`
	Label  string            `json:"label"`
	Count  int               `json:"count"`
	Deals  []DealResponse    `json:"deals"`
}

// StatusHistoryResponse represents one audit entry.
type StatusHistoryResponse struct {
	ID             string             `json:"id"`
	OldStatus      *domain.DealStatus `json:"old_status"`
	OldStatusLabel *string            `json:"old_status_label"`
	NewStatus      domain.DealStatus  `json:"new_status"`
	NewStatusLabel string             `json:"new_status_label"`
	ChangedBy      *string            `json:"changed_by"`
	Notes          *string            `json:"notes"`
	CreatedAt      time.Time          `json:"created_at"`
}

// NewDealResponse maps a domain deal.
func NewDealResponse(deal *domain.Deal) DealResponse {
	details := deal.DealDetails
	if details == nil {
		details = map[string]any{}
	}
	return DealResponse{
		ID:                deal.ID,
		BrokerID:          deal.BrokerID,
		DealType:          deal.DealType,
		DealTypeLabel:     deal.DealType.Label(),
		Status:            deal.Status,
		StatusLabel:       deal.Status.Label(),
		FundingAmount:     deal.FundingAmount,
		LegalBusinessName: deal.LegalBusinessName,
		DealDetails:       details,
		AdminNotes:        deal.AdminNotes,
		RecommendedLender: deal.RecommendedLender,
		LenderFitScore:    deal.LenderFitScore,
		LenderNotes:       deal.LenderNotes,
		Version:           deal.Version,
		CreatedAt:         deal.CreatedAt,
		UpdatedAt:         deal.UpdatedAt,
		SubmittedAt:       deal.SubmittedAt,
		LastStatusChange:  deal.LastStatusChange,
	}
}

// NewDealResponses maps a slice of deals.
func NewDealResponses(deals []domain.Deal) []DealResponse {
	out := make([]DealResponse, 0, len(deals))
	for i := range deals {
		out = append(out, NewDealResponse(&deals[i]))
	}
	return out
}

// NewStatusHistoryResponses maps audit entries.
func NewStatusHistoryResponses(entries []domain.StatusHistoryEntry) []StatusHistoryResponse {
	out := make([]StatusHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp := StatusHistoryResponse{
			ID:             entry.ID,
			OldStatus:      entry.OldStatus,
			NewStatus:      entry.NewStatus,
			NewStatusLabel: entry.NewStatus.Label(),
			ChangedBy:      entry.ChangedBy,
			Notes:          entry.Notes,
			CreatedAt:      entry.CreatedAt,
		}
		if entry.OldStatus != nil {
			label := entry.OldStatus.Label()
			resp.OldStatusLabel = &label
		}
		out = append(out, resp)
	}
	return out
}
