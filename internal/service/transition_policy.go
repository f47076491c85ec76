package service

import (
	"fmt"
	"strings"

	"github.com/spec-kit/deal-portal/internal/domain"
)

// TransitionPolicy decides which status may follow which.
type TransitionPolicy interface {
	Allows(from, to domain.DealStatus) bool
}

// PermissivePolicy lets any status move to any other, including backwards, so staff can correct mistakes.
type PermissivePolicy struct{}

func (PermissivePolicy) Allows(from, to domain.DealStatus) bool {
	return from.IsValid() && to.IsValid()
}

// AllowListPolicy accepts only the listed from → to pairs.
type AllowListPolicy struct {
	allowed map[domain.DealStatus]map[domain.DealStatus]struct{}
}

// NewAllowListPolicy builds a policy from an adjacency table.
func NewAllowListPolicy(table map[domain.DealStatus][]domain.DealStatus) *AllowListPolicy {
	allowed := make(map[domain.DealStatus]map[domain.DealStatus]struct{}, len(table))
	for from, targets := range table {
		set := make(map[domain.DealStatus]struct{}, len(targets))
		for _, to := range targets {
			set[to] = struct{}{}
		}
		allowed[from] = set
	}
	return &AllowListPolicy{allowed: allowed}
}

func (p *AllowListPolicy) Allows(from, to domain.DealStatus) bool {
	_, ok := p.allowed[from][to]
	return ok
}

// ParseTransitionPolicy reads "from:to|to,from:to". An empty string yields PermissivePolicy.
func ParseTransitionPolicy(raw string) (TransitionPolicy, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PermissivePolicy{}, nil
	}

	table := map[domain.DealStatus][]domain.DealStatus{}
	for _, rule := range strings.Split(raw, ",") {
		rule = strings.TrimSpace(rule)
		if rule == "" {
			continue
		}
		from, targets, ok := strings.Cut(rule, ":")
		if !ok {
			return nil, fmt.Errorf("transition rule %q: expected from:to", rule)
		}
		fromStatus := domain.DealStatus(strings.TrimSpace(from))
		if !fromStatus.IsValid() {
			return nil, fmt.Errorf("transition rule %q: unknown status %q", rule, fromStatus)
		}
		for _, to := range strings.Split(targets, "|") {
			toStatus := domain.DealStatus(strings.TrimSpace(to))
			if !toStatus.IsValid() {
				return nil, fmt.Errorf("transition rule %q: unknown status %q", rule, toStatus)
			}
			table[fromStatus] = append(table[fromStatus], toStatus)
		}
	}
	return NewAllowListPolicy(table), nil
}
