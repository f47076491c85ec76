package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/deal-portal/internal/api/dto"
	"github.com/spec-kit/deal-portal/internal/domain"
	"github.com/spec-kit/deal-portal/internal/service"
)

// DealWorkflow is the deal service surface the HTTP layer uses.
type DealWorkflow interface {
	CreateDeal(ctx context.Context, broker *domain.Principal, input service.DealCreateInput) (*domain.Deal, error)
	GetDeal(ctx context.Context, principal *domain.Principal, dealID string) (*domain.Deal, error)
	ListBrokerDeals(ctx context.Context, broker *domain.Principal, filter service.DealListFilter) ([]domain.Deal, error)
	History(ctx context.Context, principal *domain.Principal, dealID string, order domain.HistoryOrder) ([]domain.StatusHistoryEntry, error)
	PostMessage(ctx context.Context, principal *domain.Principal, dealID, body string) (*domain.DealMessage, error)
	ListMessages(ctx context.Context, principal *domain.Principal, dealID string) ([]domain.DealMessage, error)
	Pipeline(ctx context.Context) ([]service.PipelineColumn, error)
	RequestTransition(ctx context.Context, actor *domain.Principal, dealID string, newStatus domain.DealStatus, note string) (*domain.Deal, error)
	TransitionAtVersion(ctx context.Context, actor *domain.Principal, dealID string, expectedVersion int64, newStatus domain.DealStatus, note string) (*domain.Deal, error)
	RequestDocuments(ctx context.Context, admin *domain.Principal, dealID string, documentTypes []domain.DocumentType, note string) error
	ScoreDeal(ctx context.Context, admin *domain.Principal, dealID string, input service.LenderScoreInput) (*domain.LenderScore, error)
	GetScore(ctx context.Context, principal *domain.Principal, dealID string) (*domain.LenderScore, error)
	UpdateAdminNotes(ctx context.Context, admin *domain.Principal, dealID, notes string) (*domain.Deal, error)
}

// DealsHandler serves deal endpoints shared by brokers and admins.
type DealsHandler struct {
	service DealWorkflow
}

// NewDealsHandler constructs handler.
func NewDealsHandler(svc DealWorkflow) *DealsHandler {
	return &DealsHandler{service: svc}
}

// CreateDeal POST /deals.
func (h *DealsHandler) CreateDeal(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateDealRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	deal, err := h.service.CreateDeal(c.UserContext(), principal, service.DealCreateInput{
		DealType:          domain.DealType(req.DealType),
		FundingAmount:     req.FundingAmount,
		LegalBusinessName: req.LegalBusinessName,
		DealDetails:       req.DealDetails,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewDealResponse(deal)})
}

// ListDeals GET /deals.
func (h *DealsHandler) ListDeals(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	statuses, err := parseStatuses(c.Query("status"))
	if err != nil {
		return err
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	deals, err := h.service.ListBrokerDeals(c.UserContext(), principal, service.DealListFilter{
		Statuses: statuses,
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDealResponses(deals)})
}

// GetDeal GET /deals/:id.
func (h *DealsHandler) GetDeal(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	deal, err := h.service.GetDeal(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDealResponse(deal)})
}

// History GET /deals/:id/history?order=oldest_first|newest_first.
func (h *DealsHandler) History(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	order := domain.ParseHistoryOrder(c.Query("order"))
	entries, err := h.service.History(c.UserContext(), principal, c.Params("id"), order)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewStatusHistoryResponses(entries), "order": order})
}

// ListMessages GET /deals/:id/messages.
func (h *DealsHandler) ListMessages(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	msgs, err := h.service.ListMessages(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.DealMessageResponse, 0, len(msgs))
	for i := range msgs {
		items = append(items, dto.NewDealMessageResponse(&msgs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// PostMessage POST /deals/:id/messages.
func (h *DealsHandler) PostMessage(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateMessageRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	msg, err := h.service.PostMessage(c.UserContext(), principal, c.Params("id"), req.Body)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewDealMessageResponse(msg)})
}
