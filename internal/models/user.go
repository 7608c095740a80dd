package models

import "time"

// Account roles
const (
	RoleParent       = "parent"
	RoleProfessional = "professional"
)

// User represents a parent or professional account. Accounts are provisioned
// by the hosted auth provider; this service only reads them.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Caller is the authenticated identity behind a request
type Caller struct {
	UserID string
	Role   string
}

// IsProfessional reports whether the caller authenticated as a clinician
func (c Caller) IsProfessional() bool {
	return c.Role == RoleProfessional
}

// ProfessionalAccess is a read-only grant from a parent to a professional for one child
type ProfessionalAccess struct {
	ID             string     `json:"id"`
	ChildID        string     `json:"child_id"`
	ProfessionalID string     `json:"professional_id"`
	GrantedBy      string     `json:"granted_by"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
}

// AccessCode is a one-time code a parent hands to a professional
type AccessCode struct {
	ID        string
	ChildID   string
	LookupKey string
	CodeHash  string
	CreatedBy string
	ExpiresAt time.Time
	UsedAt    *time.Time
	UsedBy    *string
	CreatedAt time.Time
}

// IsExpired checks if the code has expired
func (c *AccessCode) IsExpired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// IsUsed reports whether the code was already redeemed
func (c *AccessCode) IsUsed() bool {
	return c.UsedAt != nil
}
