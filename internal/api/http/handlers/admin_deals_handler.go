package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/deal-portal/internal/api/dto"
	"github.com/spec-kit/deal-portal/internal/domain"
	"github.com/spec-kit/deal-portal/internal/service"
)

// AdminDealsHandler serves the staff pipeline.
type AdminDealsHandler struct {
	service DealWorkflow
}

// NewAdminDealsHandler constructs handler.
func NewAdminDealsHandler(svc DealWorkflow) *AdminDealsHandler {
	return &AdminDealsHandler{service: svc}
}

// Pipeline GET /admin/pipeline.
func (h *AdminDealsHandler) Pipeline(c *fiber.Ctx) error {
	columns, err := h.service.Pipeline(c.UserContext())
	if err != nil {
		return err
	}
	resp := make([]dto.PipelineColumnResponse, 0, len(columns))
	for _, col := range columns {
		resp = append(resp, dto.PipelineColumnResponse{
			Status: col.Status,
			Label:  col.Label,
			Count:  len(col.Deals),
			Deals:  dto.NewDealResponses(col.Deals),
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}

// UpdateStatus POST /admin/deals/:id/status.
func (h *AdminDealsHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}

	status := domain.DealStatus(req.Status)
	var deal *domain.Deal
	if req.ExpectedVersion != nil {
		deal, err = h.service.TransitionAtVersion(c.UserContext(), principal, c.Params("id"), *req.ExpectedVersion, status, req.Note)
	} else {
		deal, err = h.service.RequestTransition(c.UserContext(), principal, c.Params("id"), status, req.Note)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDealResponse(deal)})
}

// RequestDocuments POST /admin/deals/:id/document-requests.
func (h *AdminDealsHandler) RequestDocuments(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.DocumentRequestRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	docTypes := make([]domain.DocumentType, 0, len(req.DocumentTypes))
	for _, dt := range req.DocumentTypes {
		docTypes = append(docTypes, domain.DocumentType(dt))
	}
	if err := h.service.RequestDocuments(c.UserContext(), principal, c.Params("id"), docTypes, req.Note); err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"success": true})
}

// ScoreDeal POST /admin/deals/:id/score.
func (h *AdminDealsHandler) ScoreDeal(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ScoreDealRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	score, err := h.service.ScoreDeal(c.UserContext(), principal, c.Params("id"), service.LenderScoreInput{
		Lender: req.Lender,
		Score:  *req.Score,
		Notes:  req.Notes,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewLenderScoreResponse(score)})
}

// GetScore GET /admin/deals/:id/score.
func (h *AdminDealsHandler) GetScore(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	score, err := h.service.GetScore(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewLenderScoreResponse(score)})
}

// UpdateNotes PATCH /admin/deals/:id/notes.
func (h *AdminDealsHandler) UpdateNotes(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateAdminNotesRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	deal, err := h.service.UpdateAdminNotes(c.UserContext(), principal, c.Params("id"), req.AdminNotes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewDealResponse(deal)})
}
