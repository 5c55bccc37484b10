package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/assetflow/backend/internal/domain/models"
	"github.com/assetflow/backend/pkg/constants"
)

// TaskRepository handles database operations for workflow tasks. Rows are
// inserted and their status updated once; nothing here deletes.
type TaskRepository struct {
	db *sql.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = "id, instance_id, node_id, node_name, node_type, assignee_id, status, round, seq, comments, decided_by_id, decided_date, created_date"

// Insert persists a new task.
func (r *TaskRepository) Insert(ctx context.Context, task *models.WorkflowTask) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW())`,
		constants.TableWorkflowTask, taskColumns)

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		task.ID,
		task.InstanceID,
		task.NodeID,
		task.NodeName,
		task.NodeType,
		task.AssigneeID,
		task.Status,
		task.Round,
		task.Seq,
		nullableString(task.Comments),
		nullableString(task.DecidedByID),
		nullableTime(task.DecidedDate),
	)
	if err != nil {
		return fmt.Errorf("failed to insert workflow task: %w", err)
	}
	return nil
}

// Update rewrites a task's decision columns.
func (r *TaskRepository) Update(ctx context.Context, task *models.WorkflowTask) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = ?, comments = ?, decided_by_id = ?, decided_date = ?
		WHERE id = ?`,
		constants.TableWorkflowTask)

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		task.Status,
		nullableString(task.Comments),
		nullableString(task.DecidedByID),
		nullableTime(task.DecidedDate),
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow task: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("workflow task %s not found", task.ID)
	}
	return nil
}

// GetByID retrieves a task by id, nil if absent.
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.WorkflowTask, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? LIMIT 1",
		taskColumns, constants.TableWorkflowTask)

	row := conn(ctx, r.db).QueryRowContext(ctx, query, id)
	task, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return task, err
}

// ListByInstance returns all tasks for an instance in creation order.
func (r *TaskRepository) ListByInstance(ctx context.Context, instanceID string) ([]*models.WorkflowTask, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE instance_id = ? ORDER BY created_date ASC, seq ASC",
		taskColumns, constants.TableWorkflowTask)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks for instance %s: %w", instanceID, err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// ListByInstanceNode returns all tasks for one (instance, node) pair across
// every round, in creation order.
func (r *TaskRepository) ListByInstanceNode(ctx context.Context, instanceID, nodeID string) ([]*models.WorkflowTask, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE instance_id = ? AND node_id = ? ORDER BY round ASC, seq ASC, created_date ASC",
		taskColumns, constants.TableWorkflowTask)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, instanceID, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks for instance %s node %s: %w", instanceID, nodeID, err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// ListPendingForAssignee returns a page of pending tasks for a user, newest
// first.
func (r *TaskRepository) ListPendingForAssignee(ctx context.Context, assigneeID string, limit, offset int) ([]*models.WorkflowTask, error) {
	if limit <= 0 {
		limit = constants.DefaultPageSize
	}
	if limit > constants.MaxPageSize {
		limit = constants.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE assignee_id = ? AND status = ? ORDER BY created_date DESC LIMIT ? OFFSET ?",
		taskColumns, constants.TableWorkflowTask)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, assigneeID, constants.TaskStatusPending, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending tasks for %s: %w", assigneeID, err)
	}
	defer rows.Close()

	return collectTasks(rows)
}

// CountPendingForAssignee counts a user's pending tasks.
func (r *TaskRepository) CountPendingForAssignee(ctx context.Context, assigneeID string) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE assignee_id = ? AND status = ?",
		constants.TableWorkflowTask)

	var count int
	err := conn(ctx, r.db).QueryRowContext(ctx, query, assigneeID, constants.TaskStatusPending).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending tasks for %s: %w", assigneeID, err)
	}
	return count, nil
}

func scanTask(scan func(dest ...interface{}) error) (*models.WorkflowTask, error) {
	var task models.WorkflowTask
	var comments, decidedBy sql.NullString
	var decidedRaw, createdRaw []byte

	err := scan(
		&task.ID,
		&task.InstanceID,
		&task.NodeID,
		&task.NodeName,
		&task.NodeType,
		&task.AssigneeID,
		&task.Status,
		&task.Round,
		&task.Seq,
		&comments,
		&decidedBy,
		&decidedRaw,
		&createdRaw,
	)
	if err != nil {
		return nil, err
	}

	task.Comments = scanNullString(comments)
	task.DecidedByID = scanNullString(decidedBy)
	task.DecidedDate = parseNullTime(decidedRaw)
	task.CreatedDate = parseTime(createdRaw)
	return &task, nil
}

func collectTasks(rows *sql.Rows) ([]*models.WorkflowTask, error) {
	var tasks []*models.WorkflowTask
	for rows.Next() {
		task, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
