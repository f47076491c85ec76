package repository

import (
	"context"

	"github.com/spec-kit/deal-portal/internal/domain"
)

// DealMessageRepository manages deal chat messages.
type DealMessageRepository interface {
	Create(ctx context.Context, msg *domain.DealMessage) error
	ListByDeal(ctx context.Context, dealID string) ([]domain.DealMessage, error)
}

type dealMessageRepository struct {
	db DBTX
}

// NewDealMessageRepository builds repository.
func NewDealMessageRepository(db DBTX) DealMessageRepository {
	return &dealMessageRepository{db: db}
}

func (r *dealMessageRepository) Create(ctx context.Context, msg *domain.DealMessage) error {
	const query = `
        INSERT INTO deal_messages (deal_id, sender_id, sender_role, body)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		msg.DealID,
		msg.SenderID,
		msg.SenderRole,
		msg.Body,
	).Scan(&msg.ID, &msg.CreatedAt)
}

func (r *dealMessageRepository) ListByDeal(ctx context.Context, dealID string) ([]domain.DealMessage, error) {
	const query = `
        SELECT id, deal_id, sender_id, sender_role, body, created_at
        FROM deal_messages WHERE deal_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, dealID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DealMessage
	for rows.Next() {
		var msg domain.DealMessage
		if err := rows.Scan(
			&msg.ID,
			&msg.DealID,
			&msg.SenderID,
			&msg.SenderRole,
			&msg.Body,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, msg)
	}
	return result, rows.Err()
}
