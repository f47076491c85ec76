package service

import (
	"context"
	"net/http"
	"strings"

	"github.com/spec-kit/deal-portal/internal/domain"
	"github.com/spec-kit/deal-portal/internal/events"
	apperrors "github.com/spec-kit/deal-portal/pkg/util/errorutil"
)

const maxMessageLength = 5000

// PostMessage appends a chat line to a deal the principal may see.
func (s *DealService) PostMessage(ctx context.Context, principal *domain.Principal, dealID, body string) (*domain.DealMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("message body is required", nil)
	}
	if len([]rune(body)) > maxMessageLength {
		return nil, apperrors.NewValidationError("message body too long", map[string]any{"max": maxMessageLength})
	}
	deal, err := s.GetDeal(ctx, principal, dealID)
	if err != nil {
		return nil, err
	}

	msg := &domain.DealMessage{
		DealID:     deal.ID,
		SenderID:   principal.ID,
		SenderRole: principal.Role,
		Body:       body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:   events.EventDealMessageAdded,
		DealID: deal.ID,
		Actor:  principalActor(principal),
		Payload: events.DealMessageAddedPayload{
			MessageID:   msg.ID,
			SenderID:    msg.SenderID,
			SenderRole:  msg.SenderRole,
			BodyPreview: stringPreview(msg.Body, messagePreviewLength),
		},
	})
	return msg, nil
}

// ListMessages returns a deal's chat in posting order.
func (s *DealService) ListMessages(ctx context.Context, principal *domain.Principal, dealID string) ([]domain.DealMessage, error) {
	deal, err := s.GetDeal(ctx, principal, dealID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByDeal(ctx, deal.ID)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.DealMessage{}
	}
	return msgs, nil
}

// RequestDocuments asks the broker for documents. The deal status is left as is;
// staff move it to docs_needed separately when they want the board to reflect it.
func (s *DealService) RequestDocuments(ctx context.Context, admin *domain.Principal, dealID string, documentTypes []domain.DocumentType, note string) error {
	if !admin.IsAdmin() {
		return accessDeniedError()
	}
	if len(documentTypes) == 0 {
		return apperrors.NewValidationError("at least one document type is required", nil)
	}
	seen := make(map[domain.DocumentType]struct{}, len(documentTypes))
	requested := make([]domain.DocumentType, 0, len(documentTypes))
	for _, docType := range documentTypes {
		if !docType.IsValid() {
			return wrapDomain(ErrInvalidDocumentType, "VALIDATION_FAILED", "invalid document type", http.StatusBadRequest,
				map[string]any{"document_type": string(docType)})
		}
		if _, dup := seen[docType]; dup {
			continue
		}
		seen[docType] = struct{}{}
		requested = append(requested, docType)
	}
	deal, err := s.loadDeal(ctx, dealID)
	if err != nil {
		return err
	}
	s.publishEvent(ctx, events.Event{
		Type:   events.EventDealDocsRequested,
		DealID: deal.ID,
		Actor:  principalActor(admin),
		Payload: events.DealDocsRequestedPayload{
			DocumentTypes: requested,
			Note:          strings.TrimSpace(note),
		},
	})
	return nil
}
