package ports

import (
	"context"

	"github.com/assetflow/backend/internal/domain/models"
)

// DirectoryProvider resolves assignment rules against the organization
// directory. Implementations are synchronous; the dispatcher treats any
// lookup error as a failed dispatch rather than retrying or hanging.
type DirectoryProvider interface {
	GetUser(ctx context.Context, id string) (*models.OrgUser, error)
	// DepartmentMembers returns the active members of a department.
	DepartmentMembers(ctx context.Context, departmentID string) ([]*models.OrgUser, error)
	// RoleHolders returns the active holders of a role.
	RoleHolders(ctx context.Context, roleID string) ([]*models.OrgUser, error)
	// Superior walks the user's manager chain level steps up and returns the
	// manager found there, or nil if the chain is shorter.
	Superior(ctx context.Context, userID string, level int) (*models.OrgUser, error)
}
