package models

import "time"

// UserSession represents an authenticated user session as seen by services.
// Actor identity is always passed explicitly through service calls; nothing
// in the engine reads ambient global state.
type UserSession struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Email        *string `json:"email,omitempty"`
	DepartmentID *string `json:"department_id,omitempty"`
	RoleID       *string `json:"role_id,omitempty"`
	IsAdmin      bool    `json:"is_admin"`
}

// ToMap converts UserSession to a map for guard evaluation context
func (u *UserSession) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"id":            u.ID,
		"name":          u.Name,
		"email":         u.Email,
		"department_id": u.DepartmentID,
		"role_id":       u.RoleID,
	}
}

// SystemSession is a server-side login session backing a JWT. Tokens carry
// the session id; revoking the session invalidates the token.
type SystemSession struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Token        string    `json:"token"`
	ExpiresAt    time.Time `json:"expires_at"`
	IPAddress    string    `json:"ip_address"`
	UserAgent    string    `json:"user_agent"`
	IsRevoked    bool      `json:"is_revoked"`
	LastActivity time.Time `json:"last_activity"`
	CreatedDate  time.Time `json:"created_date"`
}

// SystemNotification is a persisted notification record, written when a
// notify node fires or a task is assigned.
type SystemNotification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Link        string    `json:"link,omitempty"`
	IsRead      bool      `json:"is_read"`
	CreatedDate time.Time `json:"created_date"`
}
