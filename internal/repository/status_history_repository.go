package repository

import (
	"context"

	"github.com/spec-kit/deal-portal/internal/domain"
)

// StatusHistoryRepository stores audit entries. There is deliberately no update or delete.
type StatusHistoryRepository interface {
	Append(ctx context.Context, entry *domain.StatusHistoryEntry) error
	ListByDeal(ctx context.Context, dealID string, order domain.HistoryOrder) ([]domain.StatusHistoryEntry, error)
}

type statusHistoryRepository struct {
	db DBTX
}

// NewStatusHistoryRepository builds repository.
func NewStatusHistoryRepository(db DBTX) StatusHistoryRepository {
	return &statusHistoryRepository{db: db}
}

func (r *statusHistoryRepository) Append(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	const query = `
        INSERT INTO status_history (deal_id, old_status, new_status, changed_by, notes)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		entry.DealID,
		entry.OldStatus,
		entry.NewStatus,
		entry.ChangedBy,
		entry.Notes,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *statusHistoryRepository) ListByDeal(ctx context.Context, dealID string, order domain.HistoryOrder) ([]domain.StatusHistoryEntry, error) {
	// seq breaks ties between entries written in the same transaction timestamp
	query := `
        SELECT id, deal_id, old_status, new_status, changed_by, notes, created_at
        FROM status_history WHERE deal_id=$1 ORDER BY seq DESC`
	if order == domain.HistoryOldestFirst {
		query = `
        SELECT id, deal_id, old_status, new_status, changed_by, notes, created_at
        FROM status_history WHERE deal_id=$1 ORDER BY seq ASC`
	}
	rows, err := r.db.Query(ctx, query, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.StatusHistoryEntry
	for rows.Next() {
		var entry domain.StatusHistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.DealID,
			&entry.OldStatus,
			&entry.NewStatus,
			&entry.ChangedBy,
			&entry.Notes,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
