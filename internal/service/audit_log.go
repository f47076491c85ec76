package service

import (
	"context"
	"fmt"

	"github.com/spec-kit/deal-portal/internal/domain"
	"github.com/spec-kit/deal-portal/internal/repository"
)

// AuditLog is the append-only writer and reader for status history.
// Reverting a status is recorded as a new forward entry; nothing is ever rewritten.
type AuditLog struct {
	repo repository.StatusHistoryRepository
}

// NewAuditLog wraps a history repository, which may be bound to a transaction.
func NewAuditLog(repo repository.StatusHistoryRepository) *AuditLog {
	return &AuditLog{repo: repo}
}

// Append validates and persists one entry. Business rules are the caller's concern.
func (a *AuditLog) Append(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	if entry == nil {
		return fmt.Errorf("audit log: nil entry")
	}
	if !entry.NewStatus.IsValid() {
		return invalidStatusError(entry.NewStatus)
	}
	if entry.OldStatus != nil && !entry.OldStatus.IsValid() {
		return invalidStatusError(*entry.OldStatus)
	}
	return a.repo.Append(ctx, entry)
}

// History returns the entries of a deal in the requested order.
func (a *AuditLog) History(ctx context.Context, dealID string, order domain.HistoryOrder) ([]domain.StatusHistoryEntry, error) {
	if order != domain.HistoryOldestFirst {
		order = domain.HistoryNewestFirst
	}
	entries, err := a.repo.ListByDeal(ctx, dealID, order)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.StatusHistoryEntry{}
	}
	return entries, nil
}

// ReplayHistory walks oldest-first entries and returns the status they end at.
// It fails when the first entry is not a creation entry or when an entry does not start where the previous one ended.
func ReplayHistory(entries []domain.StatusHistoryEntry) (domain.DealStatus, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("replay: empty history")
	}
	if entries[0].OldStatus != nil {
		return "", fmt.Errorf("replay: first entry %s is not a creation entry", entries[0].ID)
	}
	current := entries[0].NewStatus
	for _, entry := range entries[1:] {
		if entry.OldStatus == nil || *entry.OldStatus != current {
			return "", fmt.Errorf("replay: entry %s does not continue from %s", entry.ID, current)
		}
		current = entry.NewStatus
	}
	return current, nil
}
