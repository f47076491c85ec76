package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/deal-portal/internal/api/dto"
	"github.com/spec-kit/deal-portal/internal/service"
)

// Notifier sends notifications on request.
type Notifier interface {
	Notify(ctx context.Context, req service.NotificationRequest) (service.NotificationResult, error)
}

// NotificationsHandler exposes the notify entry point for callers that write deals directly.
type NotificationsHandler struct {
	notifier Notifier
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notifier Notifier) *NotificationsHandler {
	return &NotificationsHandler{notifier: notifier}
}

// Notify POST /notifications.
func (h *NotificationsHandler) Notify(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.NotifyRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	result, err := h.notifier.Notify(c.UserContext(), service.NotificationRequest{
		Kind:          service.NotificationKind(req.Type),
		DealID:        req.DealID,
		Sender:        principal,
		OldStatus:     req.OldStatus,
		NewStatus:     req.NewStatus,
		Note:          req.Note,
		Message:       req.Message,
		DocumentTypes: req.DocumentTypes,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.NotifyResponse{
		Success:    true,
		Recipients: result.Recipients,
		Sent:       result.Sent,
		Skipped:    result.Skipped,
		Failed:     result.Failed,
	})
}
