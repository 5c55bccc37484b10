package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/assetflow/backend/internal/domain/models"
	"github.com/assetflow/backend/pkg/constants"
)

// DefinitionRepository handles database operations for workflow definitions.
type DefinitionRepository struct {
	db *sql.DB
}

// NewDefinitionRepository creates a new DefinitionRepository
func NewDefinitionRepository(db *sql.DB) *DefinitionRepository {
	return &DefinitionRepository{db: db}
}

const definitionColumns = "id, name, code, object_api_name, version, status, description, graph, variables, activated_date, created_date, last_modified_date"

// Insert persists a new definition version.
func (r *DefinitionRepository) Insert(ctx context.Context, def *models.WorkflowDefinition) error {
	graphJSON, err := marshalJSON(def.Graph)
	if err != nil {
		return err
	}
	varsJSON, err := marshalJSON(def.Variables)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`,
		constants.TableWorkflowDefinition, definitionColumns)

	_, err = conn(ctx, r.db).ExecContext(ctx, query,
		def.ID,
		def.Name,
		def.Code,
		def.ObjectAPIName,
		def.Version,
		def.Status,
		nullableString(def.Description),
		graphJSON,
		varsJSON,
		nullableTime(def.ActivatedDate),
	)
	if err != nil {
		return fmt.Errorf("failed to insert workflow definition: %w", err)
	}
	return nil
}

// Update rewrites the mutable columns of a definition row. Graph content is
// included because Draft definitions are editable in place; activation freezes
// them by creating new version rows instead.
func (r *DefinitionRepository) Update(ctx context.Context, def *models.WorkflowDefinition) error {
	graphJSON, err := marshalJSON(def.Graph)
	if err != nil {
		return err
	}
	varsJSON, err := marshalJSON(def.Variables)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET name = ?, status = ?, description = ?, graph = ?, variables = ?, activated_date = ?, last_modified_date = NOW()
		WHERE id = ?`,
		constants.TableWorkflowDefinition)

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		def.Name,
		def.Status,
		nullableString(def.Description),
		graphJSON,
		varsJSON,
		nullableTime(def.ActivatedDate),
		def.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow definition: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return fmt.Errorf("workflow definition %s not found", def.ID)
	}
	return nil
}

// GetByID retrieves a definition by id, nil if absent.
func (r *DefinitionRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ? LIMIT 1",
		definitionColumns, constants.TableWorkflowDefinition)

	row := conn(ctx, r.db).QueryRowContext(ctx, query, id)
	def, err := scanDefinition(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return def, err
}

// List returns every definition version, newest first within each code.
func (r *DefinitionRepository) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY code ASC, version DESC",
		definitionColumns, constants.TableWorkflowDefinition)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow definitions: %w", err)
	}
	defer rows.Close()

	return collectDefinitions(rows)
}

// ActiveForObject returns the Active definitions governing an object type.
func (r *DefinitionRepository) ActiveForObject(ctx context.Context, objectAPIName string) ([]*models.WorkflowDefinition, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE object_api_name = ? AND status = ?",
		definitionColumns, constants.TableWorkflowDefinition)

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, objectAPIName, constants.DefinitionStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to query active definitions for %s: %w", objectAPIName, err)
	}
	defer rows.Close()

	return collectDefinitions(rows)
}

// ActiveByCode returns the Active definition with the given code, nil if none.
func (r *DefinitionRepository) ActiveByCode(ctx context.Context, code string) (*models.WorkflowDefinition, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE code = ? AND status = ? LIMIT 1",
		definitionColumns, constants.TableWorkflowDefinition)

	row := conn(ctx, r.db).QueryRowContext(ctx, query, code, constants.DefinitionStatusActive)
	def, err := scanDefinition(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return def, err
}

// MaxVersion returns the highest stored version for a code, 0 if none.
func (r *DefinitionRepository) MaxVersion(ctx context.Context, code string) (int, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s WHERE code = ?",
		constants.TableWorkflowDefinition)

	var version int
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, code).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to query max version for %s: %w", code, err)
	}
	return version, nil
}

// HasInstances reports whether any instance references the definition.
func (r *DefinitionRepository) HasInstances(ctx context.Context, definitionID string) (bool, error) {
	query := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE definition_id = ?)",
		constants.TableWorkflowInstance)

	var exists bool
	if err := conn(ctx, r.db).QueryRowContext(ctx, query, definitionID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check instances for definition %s: %w", definitionID, err)
	}
	return exists, nil
}

func scanDefinition(scan func(dest ...interface{}) error) (*models.WorkflowDefinition, error) {
	var def models.WorkflowDefinition
	var description sql.NullString
	var graphRaw, varsRaw, activatedRaw, createdRaw, modifiedRaw []byte

	err := scan(
		&def.ID,
		&def.Name,
		&def.Code,
		&def.ObjectAPIName,
		&def.Version,
		&def.Status,
		&description,
		&graphRaw,
		&varsRaw,
		&activatedRaw,
		&createdRaw,
		&modifiedRaw,
	)
	if err != nil {
		return nil, err
	}

	def.Description = scanNullString(description)
	if err := unmarshalJSON(graphRaw, &def.Graph); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(varsRaw, &def.Variables); err != nil {
		return nil, err
	}
	def.ActivatedDate = parseNullTime(activatedRaw)
	def.CreatedDate = parseTime(createdRaw)
	def.ModifiedDate = parseTime(modifiedRaw)
	return &def, nil
}

func collectDefinitions(rows *sql.Rows) ([]*models.WorkflowDefinition, error) {
	var defs []*models.WorkflowDefinition
	for rows.Next() {
		def, err := scanDefinition(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow definition: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}
