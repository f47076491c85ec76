package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/deal-portal/internal/domain"
	"github.com/spec-kit/deal-portal/internal/events"
	"github.com/spec-kit/deal-portal/internal/observability"
	"github.com/spec-kit/deal-portal/internal/repository"
	apperrors "github.com/spec-kit/deal-portal/pkg/util/errorutil"
)

const messagePreviewLength = 200

// DealService coordinates the deal workflow.
type DealService struct {
	deals      repository.DealRepository
	history    repository.StatusHistoryRepository
	messages   repository.DealMessageRepository
	tx         repository.Transactor
	policy     TransitionPolicy
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
	pageSize   int
}

// DealDependencies bundles collaborators for the deal service.
type DealDependencies struct {
	DealRepo    repository.DealRepository
	HistoryRepo repository.StatusHistoryRepository
	MessageRepo repository.DealMessageRepository
	Transactor  repository.Transactor
	Policy      TransitionPolicy
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Clock       func() time.Time
}

// DealCreateInput describes a broker's deal submission.
type DealCreateInput struct {
	DealType          domain.DealType
	FundingAmount     decimal.Decimal
	LegalBusinessName string
	DealDetails       map[string]any
}

// DealListFilter describes listing filters.
type DealListFilter struct {
	Statuses []domain.DealStatus
	Limit    int
	Offset   int
}

// PipelineColumn is one status column of the admin board.
type PipelineColumn struct {
	Status domain.DealStatus
	Label  string
	Deals  []domain.Deal
}

// NewDealService constructs the service.
func NewDealService(deps DealDependencies) *DealService {
	policy := deps.Policy
	if policy == nil {
		policy = PermissivePolicy{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &DealService{
		deals:      deps.DealRepo,
		history:    deps.HistoryRepo,
		messages:   deps.MessageRepo,
		tx:         deps.Transactor,
		policy:     policy,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        clock,
		pageSize:   pipelinePageSize,
	}
}

// CreateDeal stores a new deal in submitted together with its creation history entry.
func (s *DealService) CreateDeal(ctx context.Context, broker *domain.Principal, input DealCreateInput) (*domain.Deal, error) {
	if broker == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !input.DealType.IsValid() {
		return nil, apperrors.NewValidationError("invalid deal type", map[string]any{"deal_type": string(input.DealType)})
	}
	if !input.FundingAmount.IsPositive() {
		return nil, apperrors.NewValidationError("funding amount must be positive", nil)
	}
	name := strings.TrimSpace(input.LegalBusinessName)
	if name == "" {
		return nil, apperrors.NewValidationError("legal business name is required", nil)
	}

	now := s.now()
	details := input.DealDetails
	if details == nil {
		details = map[string]any{}
	}
	deal := &domain.Deal{
		BrokerID:          broker.ID,
		DealType:          input.DealType,
		Status:            domain.DealStatusSubmitted,
		FundingAmount:     input.FundingAmount,
		LegalBusinessName: name,
		DealDetails:       details,
		SubmittedAt:       now,
		LastStatusChange:  now,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.TxRepositories) error {
		if err := repos.Deals.Create(ctx, deal); err != nil {
			return err
		}
		return NewAuditLog(repos.History).Append(ctx, &domain.StatusHistoryEntry{
			DealID:    deal.ID,
			NewStatus: deal.Status,
			ChangedBy: &broker.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:   events.EventDealCreated,
		DealID: deal.ID,
		Actor:  principalActor(broker),
		Payload: events.DealCreatedPayload{
			DealType: deal.DealType,
			BrokerID: deal.BrokerID,
		},
	})
	return deal, nil
}

// GetDeal fetches a deal the principal may see: admins see all, brokers their own.
func (s *DealService) GetDeal(ctx context.Context, principal *domain.Principal, dealID string) (*domain.Deal, error) {
	deal, err := s.loadDeal(ctx, dealID)
	if err != nil {
		return nil, err
	}
	if !canAccessDeal(principal, deal) {
		return nil, accessDeniedError()
	}
	return deal, nil
}

// ListBrokerDeals returns the broker's own deals, most recently moved first.
func (s *DealService) ListBrokerDeals(ctx context.Context, broker *domain.Principal, filter DealListFilter) ([]domain.Deal, error) {
	if broker == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	for _, status := range filter.Statuses {
		if !status.IsValid() {
			return nil, invalidStatusError(status)
		}
	}
	return s.deals.ListWithFilter(ctx, repository.DealFilter{
		BrokerID: &broker.ID,
		Statuses: filter.Statuses,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
}

// Pipeline groups every deal by status in column order.
func (s *DealService) Pipeline(ctx context.Context) ([]PipelineColumn, error) {
	deals, err := s.allDeals(ctx)
	if err != nil {
		return nil, err
	}
	statuses := domain.AllDealStatuses()
	columns := make([]PipelineColumn, len(statuses))
	index := make(map[domain.DealStatus]int, len(statuses))
	for i, status := range statuses {
		columns[i] = PipelineColumn{Status: status, Label: status.Label(), Deals: []domain.Deal{}}
		index[status] = i
	}
	for _, deal := range deals {
		i, ok := index[deal.Status]
		if !ok {
			s.logger.Warn("deal with unknown status skipped from pipeline", zap.String("deal_id", deal.ID), zap.String("status", string(deal.Status)))
			continue
		}
		columns[i].Deals = append(columns[i].Deals, deal)
	}
	return columns, nil
}

const pipelinePageSize = 500

// allDeals pages through every deal. A deal that moves between pages is kept once.
func (s *DealService) allDeals(ctx context.Context) ([]domain.Deal, error) {
	var out []domain.Deal
	seen := make(map[string]struct{})
	for offset := 0; ; offset += s.pageSize {
		page, err := s.deals.ListWithFilter(ctx, repository.DealFilter{Limit: s.pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		for _, deal := range page {
			if _, dup := seen[deal.ID]; dup {
				continue
			}
			seen[deal.ID] = struct{}{}
			out = append(out, deal)
		}
		if len(page) < s.pageSize {
			return out, nil
		}
	}
}

// History returns the audit trail of a deal the principal may see.
func (s *DealService) History(ctx context.Context, principal *domain.Principal, dealID string, order domain.HistoryOrder) ([]domain.StatusHistoryEntry, error) {
	if _, err := s.GetDeal(ctx, principal, dealID); err != nil {
		return nil, err
	}
	return NewAuditLog(s.history).History(ctx, dealID, order)
}

func (s *DealService) loadDeal(ctx context.Context, dealID string) (*domain.Deal, error) {
	if _, err := uuid.Parse(dealID); err != nil {
		return nil, dealNotFoundError(dealID)
	}
	deal, err := s.deals.GetByID(ctx, dealID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, dealNotFoundError(dealID)
		}
		return nil, err
	}
	return deal, nil
}

func canAccessDeal(principal *domain.Principal, deal *domain.Deal) bool {
	if principal == nil {
		return false
	}
	return principal.IsAdmin() || principal.ID == deal.BrokerID
}

func (s *DealService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func principalActor(principal *domain.Principal) events.Actor {
	if principal == nil {
		return events.Actor{}
	}
	return events.Actor{ID: principal.ID, Role: principal.Role}
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	return string(runes[:max])
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
