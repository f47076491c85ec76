package events

import (
	"time"

	"github.com/spec-kit/deal-portal/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventDealCreated       EventType = "deal_created"
	EventDealStatusChanged EventType = "deal_status_changed"
	EventDealMessageAdded  EventType = "deal_message_added"
	EventDealDocsRequested EventType = "deal_docs_requested"
)

// Actor encapsulates actor metadata for an event. ID is empty for system writes.
type Actor struct {
	ID   string      `json:"id,omitempty"`
	Role domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services after their writes commit.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	DealID    string      `json:"deal_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// DealCreatedPayload payload.
type DealCreatedPayload struct {
	DealType domain.DealType `json:"deal_type"`
	BrokerID string          `json:"broker_id"`
}

// DealStatusChangedPayload payload.
type DealStatusChangedPayload struct {
	OldStatus domain.DealStatus `json:"old_status"`
	NewStatus domain.DealStatus `json:"new_status"`
	Note      string            `json:"note,omitempty"`
}

// DealMessageAddedPayload payload.
type DealMessageAddedPayload struct {
	MessageID   string      `json:"message_id"`
	SenderID    string      `json:"sender_id"`
	SenderRole  domain.Role `json:"sender_role"`
	BodyPreview string      `json:"body_preview"`
}

// DealDocsRequestedPayload payload.
type DealDocsRequestedPayload struct {
	DocumentTypes []domain.DocumentType `json:"document_types"`
	Note          string                `json:"note,omitempty"`
}
