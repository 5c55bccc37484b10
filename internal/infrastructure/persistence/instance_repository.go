package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/assetflow/backend/internal/domain/models"
	"github.com/assetflow/backend/pkg/constants"
)

// InstanceRepository handles database operations for workflow instances.
type InstanceRepository struct {
	db *sql.DB
}

// NewInstanceRepository creates a new InstanceRepository
func NewInstanceRepository(db *sql.DB) *InstanceRepository {
	return &InstanceRepository{db: db}
}

const instanceColumns = "id, definition_id, definition_version, object_api_name, record_id, status, current_node_id, active_node_ids, join_state, initiator_id, variables, error_message, started_date, completed_date"

// Insert persists a new instance.
func (r *InstanceRepository) Insert(ctx context.Context, inst *models.WorkflowInstance) error {
	activeJSON, err := marshalJSON(inst.ActiveNodeIDs)
	if err != nil {
		return err
	}
	joinJSON, err := marshalJSON(inst.JoinState)
	if err != nil {
		return err
	}
	varsJSON, err := marshalJSON(inst.Variables)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), ?)`,
		constants.TableWorkflowInstance, instanceColumns)

	_, err = conn(ctx, r.db).ExecContext(ctx, query,
		inst.ID,
		inst.DefinitionID,
		inst.DefinitionVersion,
		inst.ObjectAPIName,
		inst.RecordID,
		inst.Status,
		nullableString(inst.CurrentNodeID),
		activeJSON,
		joinJSON,
		inst.InitiatorID,
		varsJSON,
		nullableString(inst.ErrorMessage),
		nullableTime(inst.CompletedDate),
	)
	if err != nil {
		return fmt.Errorf("failed to insert workflow instance: %w", err)
	}
	return nil
}

// Update rewrites the engine-owned columns of an instance row.
func (r *InstanceRepository) Update(ctx context.Context, inst *models.WorkflowInstance) error {
	activeJSON, err := marshalJSON(inst.ActiveNodeIDs)
	if err != nil {
		return err
	}
	joinJSON, err := marshalJSON(inst.JoinState)
	if err != nil {
		return err
	}
	varsJSON, err := marshalJSON(inst.Variables)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET status = ?, current_node_id = ?, active_node_ids = ?, join_state = ?, variables = ?, error_message = ?, completed_date = ?
		WHERE id = ?`,
		constants.TableWorkflowInstance)

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		inst.Status,
		nullableString(inst.CurrentNodeID),
		activeJSON,
		joinJSON,
		varsJSON,
		nullableString(inst.ErrorMessage),
		nullableTime(inst.CompletedDate),
		inst.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow instance: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("workflow instance %s not found", inst.ID)
	}
	return nil
}

// GetByID retrieves an instance by id, nil if absent.
func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.WorkflowInstance, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? LIMIT 1",
		instanceColumns, constants.TableWorkflowInstance)

	row := conn(ctx, r.db).QueryRowContext(ctx, query, id)
	inst, err := scanInstance(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return inst, err
}

// PendingForRecord reports whether a non-terminal instance already governs
// the business record.
func (r *InstanceRepository) PendingForRecord(ctx context.Context, objectAPIName, recordID string) (bool, error) {
	query := fmt.Sprintf(`
		SELECT EXISTS(SELECT 1 FROM %s WHERE object_api_name = ? AND record_id = ? AND status IN (?, ?, ?))`,
		constants.TableWorkflowInstance)

	var exists bool
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		objectAPIName, recordID,
		constants.InstanceStatusDraft, constants.InstanceStatusRunning, constants.InstanceStatusError,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pending instances for %s/%s: %w", objectAPIName, recordID, err)
	}
	return exists, nil
}

func scanInstance(scan func(dest ...interface{}) error) (*models.WorkflowInstance, error) {
	var inst models.WorkflowInstance
	var currentNode, errorMessage sql.NullString
	var activeRaw, joinRaw, varsRaw, startedRaw, completedRaw []byte

	err := scan(
		&inst.ID,
		&inst.DefinitionID,
		&inst.DefinitionVersion,
		&inst.ObjectAPIName,
		&inst.RecordID,
		&inst.Status,
		&currentNode,
		&activeRaw,
		&joinRaw,
		&inst.InitiatorID,
		&varsRaw,
		&errorMessage,
		&startedRaw,
		&completedRaw,
	)
	if err != nil {
		return nil, err
	}

	inst.CurrentNodeID = scanNullString(currentNode)
	inst.ErrorMessage = scanNullString(errorMessage)
	if err := unmarshalJSON(activeRaw, &inst.ActiveNodeIDs); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(joinRaw, &inst.JoinState); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(varsRaw, &inst.Variables); err != nil {
		return nil, err
	}
	inst.StartedDate = parseTime(startedRaw)
	inst.CompletedDate = parseNullTime(completedRaw)
	return &inst, nil
}
