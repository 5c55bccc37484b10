package ports

import (
	"context"

	"github.com/assetflow/backend/internal/domain/models"
)

// TaskNotifier receives engine events that should surface to users. Failures
// are logged by callers, never fatal to the workflow transition itself.
type TaskNotifier interface {
	// TaskCreated fires when the dispatcher creates a pending task.
	TaskCreated(ctx context.Context, task *models.WorkflowTask, instance *models.WorkflowInstance) error
	// Message fires when a notify node is processed.
	Message(ctx context.Context, recipientID, title, body string) error
}
