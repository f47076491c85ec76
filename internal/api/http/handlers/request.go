package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/deal-portal/internal/auth"
	"github.com/spec-kit/deal-portal/internal/domain"
	apperrors "github.com/spec-kit/deal-portal/pkg/util/errorutil"
)

type validatable interface {
	Ok() (map[string]string, bool)
}

// bindBody parses the JSON body into req and runs its validation.
func bindBody(c *fiber.Ctx, req validatable) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if errs, ok := req.Ok(); !ok {
		details := make(map[string]any, len(errs))
		for field, msg := range errs {
			details[field] = msg
		}
		return apperrors.NewValidationError("invalid payload", details)
	}
	return nil
}

func requirePrincipal(c *fiber.Ctx) (*domain.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

func parseStatuses(raw string) ([]domain.DealStatus, error) {
	if raw == "" {
		return nil, nil
	}
	var out []domain.DealStatus
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		status, err := domain.ParseDealStatus(part)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid status filter", map[string]any{"status": part})
		}
		out = append(out, status)
	}
	return out, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}
