package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/deal-portal/internal/domain"
	apperrors "github.com/spec-kit/deal-portal/pkg/util/errorutil"
)

const (
	maxLenderScore   = 100
	maxAdminNotesLen = 10000
)

// LenderScoreInput is an admin's lender recommendation.
type LenderScoreInput struct {
	Lender string
	Score  int
	Notes  string
}

// ScoreDeal records the recommended lender and fit score. Status and version are untouched.
func (s *DealService) ScoreDeal(ctx context.Context, admin *domain.Principal, dealID string, input LenderScoreInput) (*domain.LenderScore, error) {
	if !admin.IsAdmin() {
		return nil, accessDeniedError()
	}
	lender := strings.TrimSpace(input.Lender)
	if lender == "" {
		return nil, apperrors.NewValidationError("lender is required", map[string]any{"lender": "is required"})
	}
	if input.Score < 0 || input.Score > maxLenderScore {
		return nil, apperrors.NewValidationError("score must be between 0 and 100", map[string]any{"score": input.Score})
	}
	deal, err := s.loadDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}

	notes := optionalString(strings.TrimSpace(input.Notes))
	if err := s.deals.UpdateLenderScore(ctx, deal.ID, lender, input.Score, notes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dealNotFoundError(dealID)
		}
		return nil, err
	}
	s.logger.Info("deal scored",
		zap.String("deal_id", deal.ID),
		zap.String("lender", lender),
		zap.Int("score", input.Score),
	)

	score := input.Score
	deal.RecommendedLender = &lender
	deal.LenderFitScore = &score
	deal.LenderNotes = notes
	result := deal.Score()
	return &result, nil
}

// GetScore returns the lender recommendation of a deal the principal may see.
func (s *DealService) GetScore(ctx context.Context, principal *domain.Principal, dealID string) (*domain.LenderScore, error) {
	deal, err := s.GetDeal(ctx, principal, dealID)
	if err != nil {
		return nil, err
	}
	result := deal.Score()
	return &result, nil
}

// UpdateAdminNotes replaces the internal notes of a deal. Blank notes clear them.
func (s *DealService) UpdateAdminNotes(ctx context.Context, admin *domain.Principal, dealID, notes string) (*domain.Deal, error) {
	if !admin.IsAdmin() {
		return nil, accessDeniedError()
	}
	if len([]rune(notes)) > maxAdminNotesLen {
		return nil, apperrors.NewValidationError("admin notes too long", map[string]any{"max": maxAdminNotesLen})
	}
	deal, err := s.loadDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}

	value := optionalString(strings.TrimSpace(notes))
	if err := s.deals.UpdateAdminNotes(ctx, deal.ID, value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dealNotFoundError(dealID)
		}
		return nil, err
	}
	deal.AdminNotes = value
	return deal, nil
}
