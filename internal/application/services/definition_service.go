package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/assetflow/backend/internal/domain"
	"github.com/assetflow/backend/internal/domain/models"
	"github.com/assetflow/backend/internal/domain/ports"
	"github.com/assetflow/backend/pkg/constants"
	"github.com/assetflow/backend/pkg/errors"
	"github.com/assetflow/backend/pkg/expression"
	"github.com/assetflow/backend/pkg/utils"
)

// DefinitionRequest is the input for creating or editing a definition.
type DefinitionRequest struct {
	Name          string                `json:"name" binding:"required"`
	Code          string                `json:"code" binding:"required"`
	ObjectAPIName string                `json:"object_api_name" binding:"required"`
	Description   string                `json:"description"`
	Graph         models.Graph          `json:"graph"`
	Variables     []models.VariableDecl `json:"variables"`
}

// DefinitionService manages the versioned workflow definition store. Activated
// versions are immutable: editing one spawns a new Draft version instead of
// touching the graph running instances still reference.
type DefinitionService struct {
	repo      ports.DefinitionRepository
	evaluator ports.ConditionEvaluator
}

// NewDefinitionService creates a new DefinitionService
func NewDefinitionService(repo ports.DefinitionRepository, evaluator ports.ConditionEvaluator) *DefinitionService {
	return &DefinitionService{repo: repo, evaluator: evaluator}
}

// Create validates and stores a new definition as version max+1 in Draft.
func (s *DefinitionService) Create(ctx context.Context, req DefinitionRequest, user *models.UserSession) (*models.WorkflowDefinition, error) {
	if !user.IsAdmin {
		return nil, errors.NewPermissionError("create", "workflow_definition")
	}
	if req.Code == "" {
		return nil, errors.NewValidationError("code", "code is required")
	}

	def := &models.WorkflowDefinition{
		ID:            utils.GenerateID(),
		Name:          req.Name,
		Code:          req.Code,
		ObjectAPIName: req.ObjectAPIName,
		Status:        constants.DefinitionStatusDraft,
		Description:   optionalString(req.Description),
		Graph:         req.Graph,
		Variables:     req.Variables,
	}
	if err := s.validateDefinition(def); err != nil {
		return nil, err
	}

	maxVersion, err := s.repo.MaxVersion(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	def.Version = maxVersion + 1

	if err := s.repo.Insert(ctx, def); err != nil {
		return nil, err
	}
	log.Printf("✅ Created workflow definition %s v%d (%s)", def.Code, def.Version, def.ID)
	return def, nil
}

// Update edits a definition. Draft versions change in place; Active and
// Inactive versions are frozen, so the edit lands as a fresh Draft version.
// A version any instance has bound is never edited in place either, whatever
// its status says.
func (s *DefinitionService) Update(ctx context.Context, id string, req DefinitionRequest, user *models.UserSession) (*models.WorkflowDefinition, error) {
	if !user.IsAdmin {
		return nil, errors.NewPermissionError("update", "workflow_definition")
	}

	def, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	inUse, err := s.repo.HasInstances(ctx, def.ID)
	if err != nil {
		return nil, err
	}
	if def.Status != constants.DefinitionStatusDraft || inUse {
		req.Code = def.Code
		req.ObjectAPIName = def.ObjectAPIName
		return s.Create(ctx, req, user)
	}

	def.Name = req.Name
	def.Description = optionalString(req.Description)
	def.Graph = req.Graph
	def.Variables = req.Variables
	if err := s.validateDefinition(def); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, def); err != nil {
		return nil, err
	}
	return def, nil
}

// Get returns a definition by id.
func (s *DefinitionService) Get(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	def, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, errors.NewNotFoundError("workflow_definition", id)
	}
	return def, nil
}

// List returns every stored definition version.
func (s *DefinitionService) List(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	return s.repo.List(ctx)
}

// Validate runs full validation on a graph without storing anything, for
// designer-side checks.
func (s *DefinitionService) Validate(req DefinitionRequest) error {
	return s.validateDefinition(&models.WorkflowDefinition{
		Graph:     req.Graph,
		Variables: req.Variables,
	})
}

// Activate validates a definition and makes it the active version of its
// code: any previously active sibling version is deactivated in the same
// call, so at most one version per code is ever active.
func (s *DefinitionService) Activate(ctx context.Context, id string, user *models.UserSession) (*models.WorkflowDefinition, error) {
	if !user.IsAdmin {
		return nil, errors.NewPermissionError("activate", "workflow_definition")
	}

	def, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if def.Status == constants.DefinitionStatusActive {
		return def, nil
	}
	if err := s.validateDefinition(def); err != nil {
		return nil, err
	}

	current, err := s.repo.ActiveByCode(ctx, def.Code)
	if err != nil {
		return nil, err
	}
	if current != nil && current.ID != def.ID {
		current.Status = constants.DefinitionStatusInactive
		if err := s.repo.Update(ctx, current); err != nil {
			return nil, fmt.Errorf("failed to deactivate version %d of %s: %w", current.Version, current.Code, err)
		}
	}

	now := time.Now().UTC()
	def.Status = constants.DefinitionStatusActive
	def.ActivatedDate = &now
	if err := s.repo.Update(ctx, def); err != nil {
		return nil, err
	}
	log.Printf("✅ Activated workflow definition %s v%d", def.Code, def.Version)
	return def, nil
}

// Deactivate retires an active definition. Running instances keep executing
// their pinned version; only new starts are affected.
func (s *DefinitionService) Deactivate(ctx context.Context, id string, user *models.UserSession) (*models.WorkflowDefinition, error) {
	if !user.IsAdmin {
		return nil, errors.NewPermissionError("deactivate", "workflow_definition")
	}

	def, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if def.Status != constants.DefinitionStatusActive {
		return nil, errors.NewValidationError("status", "definition is not active")
	}

	def.Status = constants.DefinitionStatusInactive
	if err := s.repo.Update(ctx, def); err != nil {
		return nil, err
	}
	log.Printf("🔄 Deactivated workflow definition %s v%d", def.Code, def.Version)
	return def, nil
}

// ActiveDefinitionForObject selects the definition governing new instances of
// an object type. With several active codes for the same object, the most
// recently activated wins; version number breaks any remaining tie.
func (s *DefinitionService) ActiveDefinitionForObject(ctx context.Context, objectAPIName string) (*models.WorkflowDefinition, error) {
	defs, err := s.repo.ActiveForObject(ctx, objectAPIName)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, errors.NewNotFoundError("active workflow definition", objectAPIName)
	}

	best := defs[0]
	for _, def := range defs[1:] {
		if activatedAfter(def, best) {
			best = def
		}
	}
	return best, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func activatedAfter(a, b *models.WorkflowDefinition) bool {
	at, bt := a.ActivatedDate, b.ActivatedDate
	switch {
	case at == nil:
		return false
	case bt == nil:
		return true
	case at.Equal(*bt):
		return a.Version > b.Version
	default:
		return at.After(*bt)
	}
}

// validateDefinition checks graph structure, guard compilability, and that
// every identifier a guard references is a declared variable.
func (s *DefinitionService) validateDefinition(def *models.WorkflowDefinition) error {
	gm := domain.NewGraphModel(def.Graph)
	if err := gm.Validate(); err != nil {
		return errors.NewValidationError("graph", err.Error())
	}

	declared := map[string]bool{"initiator_id": true}
	for _, v := range def.Variables {
		declared[v.Name] = true
	}

	for _, edge := range def.Graph.Edges {
		if edge.Guard == "" {
			continue
		}
		if err := s.evaluator.Compile(edge.Guard); err != nil {
			return errors.NewValidationError("guard",
				fmt.Sprintf("edge %s->%s: %v", edge.Source, edge.Target, err))
		}
		idents, err := expression.ReferencedIdentifiers(edge.Guard)
		if err != nil {
			return errors.NewValidationError("guard",
				fmt.Sprintf("edge %s->%s: %v", edge.Source, edge.Target, err))
		}
		for _, ident := range idents {
			if !declared[ident] {
				return errors.NewValidationError("guard",
					fmt.Sprintf("edge %s->%s references undeclared variable %q", edge.Source, edge.Target, ident))
			}
		}
	}

	// return_to targets must exist
	for _, node := range def.Graph.Nodes {
		if node.Assignment == nil || node.Assignment.ReturnTo == "" {
			continue
		}
		if _, ok := gm.Node(node.Assignment.ReturnTo); !ok {
			return errors.NewValidationError("assignment",
				fmt.Sprintf("node %s returns to unknown node %q", node.ID, node.Assignment.ReturnTo))
		}
	}
	return nil
}
