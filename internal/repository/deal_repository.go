package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/deal-portal/internal/domain"
)

// ErrVersionMismatch is returned when a conditional status update finds the row already changed.
var ErrVersionMismatch = errors.New("repository: deal version mismatch")

// DealFilter captures listing parameters.
type DealFilter struct {
	BrokerID *string
	Statuses []domain.DealStatus
	Limit    int
	Offset   int
}

// DealRepository encapsulates deal persistence.
type DealRepository interface {
	Create(ctx context.Context, deal *domain.Deal) error
	GetByID(ctx context.Context, id string) (*domain.Deal, error)
	ListWithFilter(ctx context.Context, filter DealFilter) ([]domain.Deal, error)
	// UpdateStatus writes status and last_status_change only if the row is still at expectedVersion.
	UpdateStatus(ctx context.Context, id string, status domain.DealStatus, changedAt time.Time, expectedVersion int64) (int64, error)
	// UpdateAdminNotes and UpdateLenderScore leave status, version and last_status_change alone.
	UpdateAdminNotes(ctx context.Context, id string, notes *string) error
	UpdateLenderScore(ctx context.Context, id, lender string, score int, notes *string) error
}

type dealRepository struct {
	db DBTX
}

// NewDealRepository instantiates repository.
func NewDealRepository(db DBTX) DealRepository {
	return &dealRepository{db: db}
}

const dealColumns = `id, broker_id, deal_type, status, funding_amount::text, legal_business_name, deal_details,
               admin_notes, recommended_lender, lender_fit_score, lender_notes, version, created_at, updated_at, submitted_at, last_status_change`

func (r *dealRepository) Create(ctx context.Context, deal *domain.Deal) error {
	const query = `
        INSERT INTO deals (broker_id, deal_type, status, funding_amount, legal_business_name, deal_details,
                           admin_notes, submitted_at, last_status_change)
        VALUES ($1,$2,$3,$4::numeric,$5,$6,$7,$8,$8)
        RETURNING id, version, created_at, updated_at`
	details := deal.DealDetails
	if details == nil {
		details = map[string]any{}
	}
	if err := r.db.QueryRow(ctx, query,
		deal.BrokerID,
		deal.DealType,
		deal.Status,
		deal.FundingAmount.String(),
		deal.LegalBusinessName,
		details,
		deal.AdminNotes,
		deal.SubmittedAt,
	).Scan(&deal.ID, &deal.Version, &deal.CreatedAt, &deal.UpdatedAt); err != nil {
		return err
	}
	deal.DealDetails = details
	deal.LastStatusChange = deal.SubmittedAt
	return nil
}

func (r *dealRepository) GetByID(ctx context.Context, id string) (*domain.Deal, error) {
	query := `SELECT ` + dealColumns + ` FROM deals WHERE id=$1`
	deal, err := scanDeal(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return deal, nil
}

func (r *dealRepository) UpdateStatus(ctx context.Context, id string, status domain.DealStatus, changedAt time.Time, expectedVersion int64) (int64, error) {
	const query = `
        UPDATE deals SET status=$1, last_status_change=$2, version=version+1, updated_at=NOW()
        WHERE id=$3 AND version=$4
        RETURNING version`
	var version int64
	err := r.db.QueryRow(ctx, query, status, changedAt, id, expectedVersion).Scan(&version)
	if err == nil {
		return version, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM deals WHERE id=$1)`, id).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, pgx.ErrNoRows
	}
	return 0, ErrVersionMismatch
}

func (r *dealRepository) UpdateAdminNotes(ctx context.Context, id string, notes *string) error {
	tag, err := r.db.Exec(ctx, `UPDATE deals SET admin_notes=$1, updated_at=NOW() WHERE id=$2`, notes, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *dealRepository) UpdateLenderScore(ctx context.Context, id, lender string, score int, notes *string) error {
	const query = `
        UPDATE deals SET recommended_lender=$1, lender_fit_score=$2, lender_notes=$3, updated_at=NOW()
        WHERE id=$4`
	tag, err := r.db.Exec(ctx, query, lender, score, notes, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *dealRepository) ListWithFilter(ctx context.Context, filter DealFilter) ([]domain.Deal, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.BrokerID != nil {
		args = append(args, *filter.BrokerID)
		clauses = append(clauses, fmt.Sprintf("broker_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s FROM deals WHERE %s ORDER BY last_status_change DESC LIMIT %d OFFSET %d`,
		dealColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *deal)
	}
	return result, rows.Err()
}

func scanDeal(row pgx.Row) (*domain.Deal, error) {
	var (
		deal   domain.Deal
		amount string
		score  *int16
	)
	if err := row.Scan(
		&deal.ID,
		&deal.BrokerID,
		&deal.DealType,
		&deal.Status,
		&amount,
		&deal.LegalBusinessName,
		&deal.DealDetails,
		&deal.AdminNotes,
		&deal.RecommendedLender,
		&score,
		&deal.LenderNotes,
		&deal.Version,
		&deal.CreatedAt,
		&deal.UpdatedAt,
		&deal.SubmittedAt,
		&deal.LastStatusChange,
	); err != nil {
		return nil, err
	}
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("repository: parse funding_amount %q: %w", amount, err)
	}
	deal.FundingAmount = parsed
	if score != nil {
		v := int(*score)
		deal.LenderFitScore = &v
	}
	return &deal, nil
}
