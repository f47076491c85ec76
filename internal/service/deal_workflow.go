package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/deal-portal/internal/domain"
	"github.com/spec-kit/deal-portal/internal/events"
	"github.com/spec-kit/deal-portal/internal/repository"
	apperrors "github.com/spec-kit/deal-portal/pkg/util/errorutil"
)

// Transition moves deal to newStatus and records the change in the audit log as one unit.
//
// Writing the current status with an empty note is a no-op and returns deal unchanged.
// Writing the current status with a note records a note-only history entry.
// The update only applies if the stored row still carries deal.Version; otherwise ErrStaleDeal is returned.
// Notifications are published after commit and can never fail the transition.
func (s *DealService) Transition(ctx context.Context, deal *domain.Deal, newStatus domain.DealStatus, actor *domain.Principal, note string) (*domain.Deal, error) {
	if deal == nil {
		return nil, apperrors.NewValidationError("deal is required", nil)
	}
	if !newStatus.IsValid() {
		return nil, invalidStatusError(newStatus)
	}
	note = strings.TrimSpace(note)
	if newStatus == deal.Status && note == "" {
		return deal, nil
	}
	if newStatus != deal.Status && !s.policy.Allows(deal.Status, newStatus) {
		return nil, transitionNotAllowedError(deal.Status, newStatus)
	}

	now := s.now()
	oldStatus := deal.Status
	entry := &domain.StatusHistoryEntry{
		DealID:    deal.ID,
		OldStatus: &oldStatus,
		NewStatus: newStatus,
		Notes:     optionalString(note),
	}
	if actor != nil {
		entry.ChangedBy = &actor.ID
	}

	var version int64
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		v, err := repos.Deals.UpdateStatus(ctx, deal.ID, newStatus, now, deal.Version)
		if err != nil {
			return err
		}
		version = v
		return NewAuditLog(repos.History).Append(ctx, entry)
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionMismatch):
			s.metrics.RecordConflict()
			s.logger.Info("stale status write rejected",
				zap.String("deal_id", deal.ID),
				zap.Int64("expected_version", deal.Version))
			return nil, staleDealError(deal.ID)
		case errors.Is(err, pgx.ErrNoRows):
			return nil, dealNotFoundError(deal.ID)
		default:
			return nil, err
		}
	}

	updated := *deal
	updated.Status = newStatus
	updated.LastStatusChange = now
	updated.UpdatedAt = now
	updated.Version = version

	s.metrics.RecordTransition(string(oldStatus), string(newStatus))
	s.publishEvent(ctx, events.Event{
		Type:   events.EventDealStatusChanged,
		DealID: deal.ID,
		Actor:  principalActor(actor),
		Payload: events.DealStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Note:      note,
		},
	})
	return &updated, nil
}

// RequestTransition loads the deal and applies Transition on behalf of an admin.
func (s *DealService) RequestTransition(ctx context.Context, actor *domain.Principal, dealID string, newStatus domain.DealStatus, note string) (*domain.Deal, error) {
	if !actor.IsAdmin() {
		return nil, accessDeniedError()
	}
	if !newStatus.IsValid() {
		return nil, invalidStatusError(newStatus)
	}
	deal, err := s.loadDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	return s.Transition(ctx, deal, newStatus, actor, note)
}

// TransitionAtVersion is RequestTransition for a caller that read the deal at expectedVersion.
func (s *DealService) TransitionAtVersion(ctx context.Context, actor *domain.Principal, dealID string, expectedVersion int64, newStatus domain.DealStatus, note string) (*domain.Deal, error) {
	if !actor.IsAdmin() {
		return nil, accessDeniedError()
	}
	if !newStatus.IsValid() {
		return nil, invalidStatusError(newStatus)
	}
	deal, err := s.loadDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if deal.Version != expectedVersion {
		s.metrics.RecordConflict()
		return nil, staleDealError(deal.ID)
	}
	return s.Transition(ctx, deal, newStatus, actor, note)
}
