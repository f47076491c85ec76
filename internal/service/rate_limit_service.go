package service

import (
	"context"
	"net/http"
	"time"

	"github.com/ulule/limiter/v3"
)

// RateLimitResult is the outcome of one rate check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// rateLimitRules are fixed windows per sensitive action.
var rateLimitRules = map[string]limiter.Rate{
	"login":    {Period: 15 * time.Minute, Limit: 5},
	"register": {Period: time.Hour, Limit: 3},
	"reset":    {Period: 15 * time.Minute, Limit: 3},
	"upload":   {Period: 10 * time.Minute, Limit: 20},
}

// RateLimitService counts attempts per action and client.
type RateLimitService struct {
	limiters map[string]*limiter.Limiter
}

// NewRateLimitService builds one limiter per action on a shared store.
func NewRateLimitService(store limiter.Store) *RateLimitService {
	limiters := make(map[string]*limiter.Limiter, len(rateLimitRules))
	for action, rate := range rateLimitRules {
		limiters[action] = limiter.New(store, rate)
	}
	return &RateLimitService{limiters: limiters}
}

// Check records one attempt of action by clientKey and reports whether it is still within the window's budget.
func (s *RateLimitService) Check(ctx context.Context, action, clientKey string) (RateLimitResult, error) {
	l, ok := s.limiters[action]
	if !ok {
		return RateLimitResult{}, wrapDomain(ErrUnknownRateLimitScope, "VALIDATION_FAILED", "invalid action", http.StatusBadRequest,
			map[string]any{"action": action})
	}
	if clientKey == "" {
		clientKey = "unknown"
	}
	lctx, err := l.Get(ctx, action+":"+clientKey)
	if err != nil {
		return RateLimitResult{}, err
	}
	return RateLimitResult{
		Allowed:   !lctx.Reached,
		Limit:     lctx.Limit,
		Remaining: lctx.Remaining,
		ResetAt:   time.Unix(lctx.Reset, 0),
	}, nil
}
