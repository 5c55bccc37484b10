package models

import "time"

// OrgUser is a member of the organization directory. The manager chain
// (ManagerID links) is what the superior(level) assignment rule walks.
type OrgUser struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DepartmentID *string   `json:"department_id,omitempty"`
	RoleID       *string   `json:"role_id,omitempty"`
	ManagerID    *string   `json:"manager_id,omitempty"`
	IsAdmin      bool      `json:"is_admin"`
	IsActive     bool      `json:"is_active"`
	CreatedDate  time.Time `json:"created_date"`
}

// Department is an organizational unit used by dept assignment rules.
type Department struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id,omitempty"`
	IsActive bool    `json:"is_active"`
}

// Role is a named responsibility used by role assignment rules.
type Role struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}
