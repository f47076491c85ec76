package dto

import (
	"strings"
	"time"

	"github.com/spec-kit/deal-portal/internal/domain"
)

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}

func (r *CreateMessageRequest) Ok() (map[string]string, bool) {
	r.Body = strings.TrimSpace(r.Body)
	errs := fieldErrors(Validate.Struct(r))
	return errs, len(errs) == 0
}

// DealMessageResponse represents a chat line.
type DealMessageResponse struct {
	ID         string      `json:"id"`
	DealID     string      `json:"deal_id"`
	SenderID   string      `json:"sender_id"`
	SenderRole domain.Role `json:"sender_role"`
	Body       string      `json:"body"`
	CreatedAt  time.Time   `json:"created_at"`
}

// NewDealMessageResponse maps a domain message.
func NewDealMessageResponse(msg *domain.DealMessage) DealMessageResponse {
	return DealMessageResponse{
		ID:         msg.ID,
		DealID:     msg.DealID,
		SenderID:   msg.SenderID,
		SenderRole: msg.SenderRole,
		Body:       msg.Body,
		CreatedAt:  msg.CreatedAt,
	}
}

// NotifyRequest payload for POST /notifications.
type NotifyRequest struct {
	Type          string   `json:"type" validate:"required,oneof=new_deal status_change new_message docs_requested"`
	DealID        string   `json:"dealId" validate:"required,uuid"`
	OldStatus     string   `json:"oldStatus"`
	NewStatus     string   `json:"newStatus"`
	Note          string   `json:"note"`
	Message       string   `json:"message"`
	DocumentTypes []string `json:"documentTypes"`
}

func (r *NotifyRequest) Ok() (map[string]string, bool) {
	r.Type = strings.TrimSpace(r.Type)
	errs := fieldErrors(Validate.Struct(r))
	return errs, len(errs) == 0
}

// NotifyResponse summarizes a notification fan-out.
type NotifyResponse struct {
	Success    bool `json:"success"`
	Recipients int  `json:"recipients"`
	Sent       int  `json:"sent"`
	Skipped    int  `json:"skipped"`
	Failed     int  `json:"failed"`
}

// RateCheckRequest payload for POST /auth/rate-check.
type RateCheckRequest struct {
	Action string `json:"action" validate:"required"`
}

func (r *RateCheckRequest) Ok() (map[string]string, bool) {
	r.Action = strings.TrimSpace(r.Action)
	errs := fieldErrors(Validate.Struct(r))
	return errs, len(errs) == 0
}
