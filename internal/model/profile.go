package model

import "time"

// Role is the authorization level controlling access to admin views.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ValidRole reports whether s is a recognized role value.
func ValidRole(s string) bool {
	return Role(s) == RoleUser || Role(s) == RoleAdmin
}

// Tier is the subscription level controlling feature access.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

// ValidTier reports whether s is a recognized tier value.
func ValidTier(s string) bool {
	return Tier(s) == TierFree || Tier(s) == TierPro
}

// UserProfile mirrors the profile row owned by the external auth provider.
// This service only reads it and updates role/tier; it never creates or
// deletes profiles.
type UserProfile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Tier      Tier      `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
}

// Caller is the explicit request identity passed into every orchestrator
// invocation. It replaces ad hoc per-handler "current user" lookups.
type Caller struct {
	UserID string
	Role   Role
	Tier   Tier
}

// AnonymousCaller is used when no identity header is present or the profile
// lookup degrades. Diagnostics still run; only admin views require a role.
func AnonymousCaller() Caller {
	return Caller{Role: RoleUser, Tier: TierFree}
}
