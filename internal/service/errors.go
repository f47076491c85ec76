package service

import (
	"errors"
	"net/http"

	"github.com/spec-kit/deal-portal/internal/domain"
	apperrors "github.com/spec-kit/deal-portal/pkg/util/errorutil"
)

var (
	ErrInvalidStatus         = errors.New("service: invalid deal status")
	ErrTransitionNotAllowed  = errors.New("service: transition not allowed")
	ErrStaleDeal             = errors.New("service: deal changed since it was read")
	ErrDealNotFound          = errors.New("service: deal not found")
	ErrAccessDenied          = errors.New("service: access denied")
	ErrUnknownNotification   = errors.New("service: unknown notification kind")
	ErrInvalidDocumentType   = errors.New("service: invalid document type")
	ErrUnknownRateLimitScope = errors.New("service: unknown rate limit action")
)

func wrapDomain(sentinel error, code, message string, status int, details map[string]any) error {
	de := apperrors.NewDomainError(code, message, status, details)
	de.Err = sentinel
	return de
}

func invalidStatusError(status domain.DealStatus) error {
	return wrapDomain(ErrInvalidStatus, "VALIDATION_FAILED", "invalid deal status", http.StatusBadRequest,
		map[string]any{"status": string(status)})
}

func transitionNotAllowedError(from, to domain.DealStatus) error {
	return wrapDomain(ErrTransitionNotAllowed, "VALIDATION_FAILED", "status transition not allowed", http.StatusUnprocessableEntity,
		map[string]any{"from": string(from), "to": string(to)})
}

func staleDealError(dealID string) error {
	de := apperrors.NewStaleState("deal was modified concurrently; reload and retry", map[string]any{"deal_id": dealID}).(*apperrors.DomainError)
	de.Err = ErrStaleDeal
	return de
}

func dealNotFoundError(dealID string) error {
	return wrapDomain(ErrDealNotFound, "NOT_FOUND", "deal not found", http.StatusNotFound,
		map[string]any{"deal_id": dealID})
}

func accessDeniedError() error {
	return wrapDomain(ErrAccessDenied, "FORBIDDEN", "access denied", http.StatusForbidden, nil)
}
