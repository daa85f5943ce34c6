package models

import (
	"strings"
	"time"
)

type TenantStatus string

const (
	TenantActive    TenantStatus = "active"
	TenantSuspended TenantStatus = "suspended"
)

// Tenant is an organizer storefront addressed by subdomain.
type Tenant struct {
	ID        int          `json:"id" db:"id"`
	Subdomain string       `json:"subdomain" db:"subdomain"`
	Name      string       `json:"name" db:"name"`
	Status    TenantStatus `json:"status" db:"status"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
}

func (t *Tenant) IsActive() bool {
	return t.Status == TenantActive
}

// Role is a tenant member's organizer role.
type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleMember  Role = "MEMBER"
)

var roleRank = map[Role]int{
	RoleMember:  1,
	RoleManager: 2,
	RoleAdmin:   3,
	RoleOwner:   4,
}

// RoleRank returns the position of a role in the OWNER > ADMIN > MANAGER > MEMBER
// hierarchy. Unknown roles rank 0.
func RoleRank(r Role) int {
	return roleRank[Role(strings.ToUpper(string(r)))]
}

// AtLeast reports whether r grants at least the permissions of min.
func (r Role) AtLeast(min Role) bool {
	rank := RoleRank(r)
	return rank > 0 && rank >= RoleRank(min)
}

type TenantMember struct {
	TenantID int  `json:"tenant_id" db:"tenant_id"`
	UserID   int  `json:"user_id" db:"user_id"`
	Role     Role `json:"role" db:"role"`
}
