package ports

import (
	"context"

	"github.com/assetflow/backend/internal/domain/models"
)

// DefinitionRepository persists workflow definitions.
type DefinitionRepository interface {
	Insert(ctx context.Context, def *models.WorkflowDefinition) error
	Update(ctx context.Context, def *models.WorkflowDefinition) error
	GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	List(ctx context.Context) ([]*models.WorkflowDefinition, error)
	// ActiveForObject returns every Active definition governing the given
	// business-object type. Tie-breaking among several matches is service
	// logic, not a query detail.
	ActiveForObject(ctx context.Context, objectAPIName string) ([]*models.WorkflowDefinition, error)
	// ActiveByCode returns the Active definition with the given code, or nil.
	ActiveByCode(ctx context.Context, code string) (*models.WorkflowDefinition, error)
	// MaxVersion returns the highest version stored for a code, 0 if none.
	MaxVersion(ctx context.Context, code string) (int, error)
	// HasInstances reports whether any instance references the definition.
	HasInstances(ctx context.Context, definitionID string) (bool, error)
}

// InstanceRepository persists workflow instances.
type InstanceRepository interface {
	Insert(ctx context.Context, inst *models.WorkflowInstance) error
	Update(ctx context.Context, inst *models.WorkflowInstance) error
	GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error)
	// PendingForRecord reports whether a non-terminal instance already governs
	// the business record (one live approval per record).
	PendingForRecord(ctx context.Context, objectAPIName, recordID string) (bool, error)
}

// TaskRepository persists workflow tasks. Task history is append-only: rows
// are inserted and their status updated exactly once, never deleted.
type TaskRepository interface {
	Insert(ctx context.Context, task *models.WorkflowTask) error
	Update(ctx context.Context, task *models.WorkflowTask) error
	GetByID(ctx context.Context, id string) (*models.WorkflowTask, error)
	// ListByInstance returns all tasks for an instance ordered by creation.
	ListByInstance(ctx context.Context, instanceID string) ([]*models.WorkflowTask, error)
	// ListByInstanceNode returns all tasks for one (instance, node) pair
	// across every round, ordered by creation.
	ListByInstanceNode(ctx context.Context, instanceID, nodeID string) ([]*models.WorkflowTask, error)
	// ListPendingForAssignee returns a page of pending tasks for a user,
	// newest first.
	ListPendingForAssignee(ctx context.Context, assigneeID string, limit, offset int) ([]*models.WorkflowTask, error)
	CountPendingForAssignee(ctx context.Context, assigneeID string) (int, error)
}

// NotificationRepository persists notification records.
type NotificationRepository interface {
	Insert(ctx context.Context, n *models.SystemNotification) error
	GetByID(ctx context.Context, id string) (*models.SystemNotification, error)
	ListForRecipient(ctx context.Context, recipientID string, limit int) ([]*models.SystemNotification, error)
	MarkRead(ctx context.Context, id string) error
}
