package domain

import "time"

// Role is the platform role of a principal.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdvisor Role = "advisor"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleAdvisor, RoleAdmin:
		return true
	}
	return false
}

// Principal is a user as known to the chat service.
type Principal struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Summary is the public projection shown to other participants.
func (p *Principal) Summary() PrincipalSummary {
	return PrincipalSummary{ID: p.ID, DisplayName: p.DisplayName, Role: p.Role}
}

// PrincipalSummary identifies the other side of a conversation.
type PrincipalSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
}
