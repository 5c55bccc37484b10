package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/assetflow/backend/internal/domain/models"
	"github.com/assetflow/backend/pkg/constants"
	"github.com/assetflow/backend/pkg/utils"
)

// DirectoryRepository reads the organization directory: users, departments,
// roles and the manager chain. It backs both authentication lookups and
// assignee resolution.
type DirectoryRepository struct {
	db *sql.DB
}

// NewDirectoryRepository creates a new DirectoryRepository
func NewDirectoryRepository(db *sql.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

const userColumns = "id, name, email, password_hash, department_id, role_id, manager_id, is_admin, is_active, created_date"

// GetUser retrieves a user by id, nil if absent.
func (r *DirectoryRepository) GetUser(ctx context.Context, id string) (*models.OrgUser, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ? LIMIT 1",
		userColumns, constants.TableUser, constants.FieldID)

	row := conn(ctx, r.db).QueryRowContext(ctx, query, id)
	user, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

// GetUserByEmail retrieves a user by email for login, nil if absent.
func (r *DirectoryRepository) GetUserByEmail(ctx context.Context, email string) (*models.OrgUser, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE email = ? LIMIT 1",
		userColumns, constants.TableUser)

	row := conn(ctx, r.db).QueryRowContext(ctx, query, email)
	user, err := scanUser(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return user, err
}

// DepartmentMembers returns the active members of a department.
func (r *DirectoryRepository) DepartmentMembers(ctx context.Context, departmentID string) ([]*models.OrgUser, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE department_id = ? AND is_active = 1 ORDER BY name ASC",
		userColumns, constants.TableUser)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, departmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query department members for %s: %w", departmentID, err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// RoleHolders returns the active holders of a role.
func (r *DirectoryRepository) RoleHolders(ctx context.Context, roleID string) ([]*models.OrgUser, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE role_id = ? AND is_active = 1 ORDER BY name ASC",
		userColumns, constants.TableUser)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query role holders for %s: %w", roleID, err)
	}
	defer rows.Close()

	return collectUsers(rows)
}

// Superior walks level steps up the manager chain from userID and returns the
// manager there, or nil if the chain ends first. A cycle in manager links is
// reported as an error rather than looping.
func (r *DirectoryRepository) Superior(ctx context.Context, userID string, level int) (*models.OrgUser, error) {
	if level < 1 {
		level = 1
	}

	visited := map[string]bool{userID: true}
	current, err := r.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	for step := 0; step < level; step++ {
		if current == nil || current.ManagerID == nil || *current.ManagerID == "" {
			return nil, nil
		}
		managerID := *current.ManagerID
		if visited[managerID] {
			return nil, fmt.Errorf("manager chain cycle at user %s", managerID)
		}
		visited[managerID] = true

		current, err = r.GetUser(ctx, managerID)
		if err != nil {
			return nil, err
		}
	}

	if current != nil && !current.IsActive {
		return nil, nil
	}
	return current, nil
}

// GetDepartment retrieves a department by id, nil if absent.
func (r *DirectoryRepository) GetDepartment(ctx context.Context, id string) (*models.Department, error) {
	query := fmt.Sprintf("SELECT id, name, parent_id, is_active FROM %s WHERE %s = ? LIMIT 1",
		constants.TableDepartment, constants.FieldID)

	var dept models.Department
	var parentID sql.NullString
	var isActiveRaw interface{}

	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&dept.ID, &dept.Name, &parentID, &isActiveRaw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	dept.ParentID = scanNullString(parentID)
	dept.IsActive = utils.ToBool(isActiveRaw)
	return &dept, nil
}

// GetRole retrieves a role by id, nil if absent.
func (r *DirectoryRepository) GetRole(ctx context.Context, id string) (*models.Role, error) {
	query := fmt.Sprintf("SELECT id, name, is_active FROM %s WHERE %s = ? LIMIT 1",
		constants.TableRole, constants.FieldID)

	var role models.Role
	var isActiveRaw interface{}

	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(&role.ID, &role.Name, &isActiveRaw)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	role.IsActive = utils.ToBool(isActiveRaw)
	return &role, nil
}

// UpsertDepartment inserts or refreshes a department row. Used by the seed
// bootstrap; the directory is otherwise managed externally.
func (r *DirectoryRepository) UpsertDepartment(ctx context.Context, dept *models.Department) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, parent_id, is_active)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), parent_id = VALUES(parent_id), is_active = VALUES(is_active)`,
		constants.TableDepartment)

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		dept.ID, dept.Name, nullableString(dept.ParentID), dept.IsActive)
	if err != nil {
		return fmt.Errorf("failed to upsert department %s: %w", dept.ID, err)
	}
	return nil
}

// UpsertRole inserts or refreshes a role row.
func (r *DirectoryRepository) UpsertRole(ctx context.Context, role *models.Role) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, is_active)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), is_active = VALUES(is_active)`,
		constants.TableRole)

	_, err := conn(ctx, r.db).ExecContext(ctx, query, role.ID, role.Name, role.IsActive)
	if err != nil {
		return fmt.Errorf("failed to upsert role %s: %w", role.ID, err)
	}
	return nil
}

// UpsertUser inserts or refreshes a directory user. The password hash is only
// written on first insert so seeded accounts keep changed passwords.
func (r *DirectoryRepository) UpsertUser(ctx context.Context, user *models.OrgUser) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, email, password_hash, department_id, role_id, manager_id, is_admin, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			department_id = VALUES(department_id),
			role_id = VALUES(role_id),
			manager_id = VALUES(manager_id),
			is_admin = VALUES(is_admin),
			is_active = VALUES(is_active)`,
		constants.TableUser)

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		nullableString(user.DepartmentID),
		nullableString(user.RoleID),
		nullableString(user.ManagerID),
		user.IsAdmin,
		user.IsActive,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user %s: %w", user.ID, err)
	}
	return nil
}

func scanUser(scan func(dest ...interface{}) error) (*models.OrgUser, error) {
	var user models.OrgUser
	var departmentID, roleID, managerID sql.NullString
	var isAdminRaw, isActiveRaw interface{}
	var createdRaw []byte

	err := scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&departmentID,
		&roleID,
		&managerID,
		&isAdminRaw,
		&isActiveRaw,
		&createdRaw,
	)
	if err != nil {
		return nil, err
	}

	user.DepartmentID = scanNullString(departmentID)
	user.RoleID = scanNullString(roleID)
	user.ManagerID = scanNullString(managerID)
	// TINYINT columns come back as int64 from the driver and as whatever the
	// test fixture provided from sqlmock
	user.IsAdmin = utils.ToBool(isAdminRaw)
	user.IsActive = utils.ToBool(isActiveRaw)
	user.CreatedDate = parseTime(createdRaw)
	return &user, nil
}

func collectUsers(rows *sql.Rows) ([]*models.OrgUser, error) {
	var users []*models.OrgUser
	for rows.Next() {
		user, err := scanUser(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}
