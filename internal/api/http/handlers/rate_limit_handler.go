package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/deal-portal/internal/api/dto"
	"github.com/spec-kit/deal-portal/internal/service"
	apperrors "github.com/spec-kit/deal-portal/pkg/util/errorutil"
)

// RateChecker counts attempts per action and client.
type RateChecker interface {
	Check(ctx context.Context, action, clientKey string) (service.RateLimitResult, error)
}

// RateLimitHandler lets the front-end ask before attempting a sensitive action.
type RateLimitHandler struct {
	checker RateChecker
}

// NewRateLimitHandler constructs handler.
func NewRateLimitHandler(checker RateChecker) *RateLimitHandler {
	return &RateLimitHandler{checker: checker}
}

// Check POST /auth/rate-check.
func (h *RateLimitHandler) Check(c *fiber.Ctx) error {
	var req dto.RateCheckRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	result, err := h.checker.Check(c.UserContext(), req.Action, clientIP(c))
	if err != nil {
		return err
	}
	c.Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
	c.Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
	c.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if !result.Allowed {
		return apperrors.NewTooManyRequests("Too many attempts. Please try again later.", nil)
	}
	return c.JSON(fiber.Map{"success": true, "remaining": result.Remaining})
}

func clientIP(c *fiber.Ctx) string {
	if fwd := c.Get(fiber.HeaderXForwardedFor); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if realIP := c.Get("X-Real-Ip"); realIP != "" {
		return realIP
	}
	return c.IP()
}
