package domain

import "time"

// Role distinguishes portal staff from partner brokers.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleBroker Role = "broker"
)

// Profile is a portal account as mirrored from the identity provider.
type Profile struct {
	ID          string
	Email       string
	FullName    string
	CompanyName *string
	Role        Role
	IsApproved  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Principal is the authenticated caller of a request.
type Principal struct {
	ID       string
	Role     Role
	Email    string
	FullName string
}

// IsAdmin reports whether the principal acts as portal staff.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}
