package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log"
	"time"

	"github.com/assetflow/backend/internal/domain"
	"github.com/assetflow/backend/internal/domain/models"
	"github.com/assetflow/backend/internal/domain/ports"
	"github.com/assetflow/backend/pkg/constants"
	"github.com/assetflow/backend/pkg/errors"
	"github.com/assetflow/backend/pkg/utils"
)

// TxRunner runs a function inside a database transaction whose handle travels
// through the context. Tests substitute a pass-through implementation.
type TxRunner interface {
	RunInTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
}

// ErrNoMatchingBranch signals that no outgoing edge of a node was eligible:
// every guard evaluated false and no unguarded default exists.
type ErrNoMatchingBranch struct {
	NodeID string
}

func (e *ErrNoMatchingBranch) Error() string {
	return fmt.Sprintf("no matching branch leaving node %s", e.NodeID)
}

// StartInstanceRequest is the input for starting a workflow instance.
type StartInstanceRequest struct {
	DefinitionID  string                 `json:"definition_id"`
	ObjectAPIName string                 `json:"object_api_name"`
	RecordID      string                 `json:"record_id"`
	Variables     map[string]interface{} `json:"variables"`
}

// InstanceEngine drives workflow instances through their definition graphs.
// All mutations run under the instance lock and inside a transaction, so a
// halted transition leaves no partial tasks behind.
type InstanceEngine struct {
	definitions *DefinitionService
	instances   ports.InstanceRepository
	tasks       ports.TaskRepository
	dispatcher  *TaskDispatcher
	evaluator   ports.ConditionEvaluator
	notifier    ports.TaskNotifier
	sm          *domain.InstanceStateMachine
	locks       *InstanceLockManager
	tx          TxRunner
}

// NewInstanceEngine creates a new InstanceEngine
func NewInstanceEngine(
	definitions *DefinitionService,
	instances ports.InstanceRepository,
	tasks ports.TaskRepository,
	dispatcher *TaskDispatcher,
	evaluator ports.ConditionEvaluator,
	notifier ports.TaskNotifier,
	locks *InstanceLockManager,
	tx TxRunner,
) *InstanceEngine {
	return &InstanceEngine{
		definitions: definitions,
		instances:   instances,
		tasks:       tasks,
		dispatcher:  dispatcher,
		evaluator:   evaluator,
		notifier:    notifier,
		sm:          domain.NewInstanceStateMachine(),
		locks:       locks,
		tx:          tx,
	}
}

// Start creates and submits a new instance. The definition is either named
// explicitly or selected as the active definition for the object type. The
// instance advances from the start node immediately; if the first approval
// node dispatches successfully the instance comes back Running with pending
// tasks, otherwise it comes back halted in the error state.
func (e *InstanceEngine) Start(ctx context.Context, req StartInstanceRequest, user *models.UserSession) (*models.WorkflowInstance, error) {
	def, err := e.resolveDefinition(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := validateVariables(def.Variables, req.Variables); err != nil {
		return nil, err
	}

	pending, err := e.instances.PendingForRecord(ctx, def.ObjectAPIName, req.RecordID)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending instances: %w", err)
	}
	if pending {
		return nil, errors.NewConflictError("workflow_instance",
			fmt.Sprintf("record %s/%s already has an approval in progress", def.ObjectAPIName, req.RecordID))
	}

	gm := domain.NewGraphModel(def.Graph)
	if gm.StartNode() == nil {
		return nil, errors.NewValidationError("graph", "definition has no start node")
	}

	inst := &models.WorkflowInstance{
		ID:                utils.GenerateID(),
		DefinitionID:      def.ID,
		DefinitionVersion: def.Version,
		ObjectAPIName:     def.ObjectAPIName,
		RecordID:          req.RecordID,
		Status:            constants.InstanceStatusDraft,
		InitiatorID:       user.ID,
		Variables:         req.Variables,
		StartedDate:       time.Now().UTC(),
	}

	unlock := e.locks.Lock(inst.ID)
	defer unlock()

	err = e.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		next, err := e.sm.Transition(domain.InstanceState(inst.Status), domain.TransitionSubmit)
		if err != nil {
			return err
		}
		inst.Status = string(next)

		if err := e.instances.Insert(txCtx, inst); err != nil {
			return err
		}
		if err := e.AdvancePast(txCtx, gm, inst, gm.StartNode().ID); err != nil {
			return err
		}
		return e.instances.Update(txCtx, inst)
	})
	if err != nil {
		if halted := e.haltIfEngineError(ctx, inst, err); halted {
			return inst, nil
		}
		return nil, err
	}

	log.Printf("✅ Started workflow instance %s (definition %s v%d) for %s/%s",
		inst.ID, def.Code, def.Version, def.ObjectAPIName, req.RecordID)
	return inst, nil
}

// Cancel cancels a running or halted instance. Only the initiator or an
// admin may cancel; pending tasks are skipped so worklists drain.
func (e *InstanceEngine) Cancel(ctx context.Context, instanceID string, user *models.UserSession) error {
	unlock := e.locks.Lock(instanceID)
	defer unlock()

	return e.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		inst, err := e.instances.GetByID(txCtx, instanceID)
		if err != nil {
			return err
		}
		if inst == nil {
			return errors.NewNotFoundError("workflow_instance", instanceID)
		}
		if inst.InitiatorID != user.ID && !user.IsAdmin {
			return errors.NewPermissionError("cancel", "workflow_instance")
		}

		next, err := e.sm.Transition(domain.InstanceState(inst.Status), domain.TransitionCancel)
		if err != nil {
			return errors.NewValidationError("status", err.Error())
		}
		inst.Status = string(next)
		now := time.Now().UTC()
		inst.CompletedDate = &now
		inst.ActiveNodeIDs = nil
		inst.CurrentNodeID = nil

		if err := e.skipPendingTasks(txCtx, inst, user.ID, "instance cancelled"); err != nil {
			return err
		}
		if err := e.instances.Update(txCtx, inst); err != nil {
			return err
		}
		log.Printf("🔄 Cancelled workflow instance %s by %s", inst.ID, user.ID)
		return nil
	})
}

// GetInstance returns an instance by id.
func (e *InstanceEngine) GetInstance(ctx context.Context, instanceID string) (*models.WorkflowInstance, error) {
	inst, err := e.instances.GetByID(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, errors.NewNotFoundError("workflow_instance", instanceID)
	}
	return inst, nil
}

// GetInstanceView returns an instance with its decision history, the
// projection approval screens render.
func (e *InstanceEngine) GetInstanceView(ctx context.Context, instanceID string) (*models.InstanceView, error) {
	inst, err := e.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	tasks, err := e.tasks.ListByInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	view := &models.InstanceView{
		ID:            inst.ID,
		DefinitionID:  inst.DefinitionID,
		ObjectAPIName: inst.ObjectAPIName,
		RecordID:      inst.RecordID,
		Status:        inst.Status,
		InitiatorID:   inst.InitiatorID,
		ErrorMessage:  inst.ErrorMessage,
		StartedDate:   inst.StartedDate,
		CompletedDate: inst.CompletedDate,
		History:       make([]models.DecisionRecord, 0, len(tasks)),
	}
	if inst.CurrentNodeID != nil {
		if def, err := e.definitions.Get(ctx, inst.DefinitionID); err == nil {
			gm := domain.NewGraphModel(def.Graph)
			if node, ok := gm.Node(*inst.CurrentNodeID); ok {
				view.CurrentNodeName = node.Name
			}
		}
	}

	for _, t := range tasks {
		view.History = append(view.History, models.DecisionRecord{
			TaskID:      t.ID,
			NodeID:      t.NodeID,
			NodeName:    t.NodeName,
			AssigneeID:  t.AssigneeID,
			Status:      t.Status,
			Comments:    t.Comments,
			DecidedByID: t.DecidedByID,
			DecidedDate: t.DecidedDate,
			CreatedDate: t.CreatedDate,
		})
	}
	return view, nil
}

// AdvancePast moves the instance past nodeID: the node's token is removed and
// its eligible outgoing edges are followed until every path comes to rest on
// an approval node, a waiting join, or an end node. Callers hold the instance
// lock and a transaction context.
func (e *InstanceEngine) AdvancePast(ctx context.Context, gm *domain.GraphModel, inst *models.WorkflowInstance, nodeID string) error {
	removeActiveNode(inst, nodeID)

	edges, err := e.selectEdges(gm, inst, nodeID)
	if err != nil {
		return err
	}
	for _, edge := range edges {
		if err := e.enterNode(ctx, gm, inst, edge.Target, edge.Source); err != nil {
			return err
		}
		if e.sm.IsTerminal(domain.InstanceState(inst.Status)) {
			break
		}
	}
	syncCurrentNode(inst)
	return nil
}

// Rewind repositions the instance at targetNodeID after a return decision.
// Prior task rows stay in history; live positions and join bookkeeping reset.
func (e *InstanceEngine) Rewind(ctx context.Context, gm *domain.GraphModel, inst *models.WorkflowInstance, targetNodeID string) error {
	if err := e.skipPendingTasks(ctx, inst, inst.InitiatorID, "returned for rework"); err != nil {
		return err
	}
	inst.ActiveNodeIDs = nil
	inst.JoinState = nil

	if err := e.enterNode(ctx, gm, inst, targetNodeID, ""); err != nil {
		return err
	}
	syncCurrentNode(inst)
	return nil
}

// HaltCtx moves a running instance into the error state with a reason. Used
// by the engine itself and by the approval processor when a post-decision
// dispatch fails.
func (e *InstanceEngine) HaltCtx(ctx context.Context, inst *models.WorkflowInstance, reason string) error {
	next, err := e.sm.Transition(domain.InstanceState(inst.Status), domain.TransitionHalt)
	if err != nil {
		return err
	}
	inst.Status = string(next)
	inst.ErrorMessage = &reason
	if err := e.instances.Update(ctx, inst); err != nil {
		return err
	}
	log.Printf("⏸️ Halted workflow instance %s: %s", inst.ID, reason)
	return nil
}

// enterNode places a token on nodeID and processes the node's entry behavior.
func (e *InstanceEngine) enterNode(ctx context.Context, gm *domain.GraphModel, inst *models.WorkflowInstance, nodeID, fromNodeID string) error {
	node, ok := gm.Node(nodeID)
	if !ok {
		return fmt.Errorf("node %s not found in graph", nodeID)
	}

	switch node.Type {
	case constants.NodeTypeApproval:
		round, err := e.nextRound(ctx, inst, nodeID)
		if err != nil {
			return err
		}
		if _, err := e.dispatcher.Dispatch(ctx, node, inst, round); err != nil {
			return err
		}
		inst.ActiveNodeIDs = append(inst.ActiveNodeIDs, nodeID)
		return nil

	case constants.NodeTypeCondition:
		return e.AdvancePast(ctx, gm, inst, nodeID)

	case constants.NodeTypeNotify:
		e.sendNotifyMessage(ctx, node, inst)
		return e.AdvancePast(ctx, gm, inst, nodeID)

	case constants.NodeTypeParallel:
		if gm.IsParallelJoin(nodeID) {
			return e.arriveAtJoin(ctx, gm, inst, nodeID, fromNodeID)
		}
		return e.AdvancePast(ctx, gm, inst, nodeID)

	case constants.NodeTypeEnd:
		return e.complete(ctx, inst)

	default:
		return fmt.Errorf("cannot enter node %s of type %q", nodeID, node.Type)
	}
}

// arriveAtJoin records one branch's arrival at a join node. The join releases
// only once every distinct inbound source has arrived.
func (e *InstanceEngine) arriveAtJoin(ctx context.Context, gm *domain.GraphModel, inst *models.WorkflowInstance, nodeID, fromNodeID string) error {
	if inst.JoinState == nil {
		inst.JoinState = make(map[string][]string)
	}
	arrived := inst.JoinState[nodeID]
	for _, src := range arrived {
		if src == fromNodeID {
			return nil
		}
	}
	arrived = append(arrived, fromNodeID)
	inst.JoinState[nodeID] = arrived

	expected := make(map[string]bool)
	for _, edge := range gm.InboundEdges(nodeID) {
		expected[edge.Source] = true
	}
	if len(arrived) < len(expected) {
		log.Printf("⏸️ Join %s waiting: %d/%d branches arrived (instance %s)", nodeID, len(arrived), len(expected), inst.ID)
		return nil
	}

	delete(inst.JoinState, nodeID)
	return e.AdvancePast(ctx, gm, inst, nodeID)
}

// selectEdges picks the outgoing edges to follow. Parallel forks take every
// edge; everything else evaluates guards in declaration order, first match
// wins, with the first unguarded edge as the default branch.
func (e *InstanceEngine) selectEdges(gm *domain.GraphModel, inst *models.WorkflowInstance, nodeID string) ([]models.Edge, error) {
	edges := gm.OutgoingEdges(nodeID)
	if len(edges) == 0 {
		return nil, &ErrNoMatchingBranch{NodeID: nodeID}
	}

	if gm.IsParallelFork(nodeID) {
		return edges, nil
	}

	var defaultEdge *models.Edge
	for i := range edges {
		edge := &edges[i]
		if edge.Guard == "" {
			if defaultEdge == nil {
				defaultEdge = edge
			}
			continue
		}
		match, err := e.evaluator.EvaluateBool(edge.Guard, guardEnv(inst))
		if err != nil {
			return nil, errors.NewGuardError(edge.Guard, edge.Source, edge.Target, err)
		}
		if match {
			return []models.Edge{*edge}, nil
		}
	}
	if defaultEdge != nil {
		return []models.Edge{*defaultEdge}, nil
	}
	return nil, &ErrNoMatchingBranch{NodeID: nodeID}
}

func (e *InstanceEngine) complete(ctx context.Context, inst *models.WorkflowInstance) error {
	next, err := e.sm.Transition(domain.InstanceState(inst.Status), domain.TransitionComplete)
	if err != nil {
		return err
	}
	inst.Status = string(next)
	now := time.Now().UTC()
	inst.CompletedDate = &now
	inst.ActiveNodeIDs = nil
	inst.CurrentNodeID = nil
	inst.JoinState = nil

	// Any branch still carrying pending tasks drains when the instance ends
	if err := e.skipPendingTasks(ctx, inst, inst.InitiatorID, "instance completed"); err != nil {
		return err
	}
	log.Printf("✅ Workflow instance %s completed", inst.ID)
	return nil
}

func (e *InstanceEngine) nextRound(ctx context.Context, inst *models.WorkflowInstance, nodeID string) (int, error) {
	existing, err := e.tasks.ListByInstanceNode(ctx, inst.ID, nodeID)
	if err != nil {
		return 0, err
	}
	maxRound := 0
	for _, t := range existing {
		if t.Round > maxRound {
			maxRound = t.Round
		}
	}
	return maxRound + 1, nil
}

func (e *InstanceEngine) skipPendingTasks(ctx context.Context, inst *models.WorkflowInstance, actorID, reason string) error {
	tasks, err := e.tasks.ListByInstance(ctx, inst.ID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, t := range tasks {
		if t.Status != constants.TaskStatusPending {
			continue
		}
		t.Status = constants.TaskStatusSkipped
		t.Comments = &reason
		t.DecidedByID = &actorID
		t.DecidedDate = &now
		if err := e.tasks.Update(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func (e *InstanceEngine) sendNotifyMessage(ctx context.Context, node *models.Node, inst *models.WorkflowInstance) {
	if e.notifier == nil {
		return
	}
	body := node.Message
	if body == "" {
		body = fmt.Sprintf("Workflow for %s/%s passed %s", inst.ObjectAPIName, inst.RecordID, node.Name)
	}
	if err := e.notifier.Message(ctx, inst.InitiatorID, node.Name, body); err != nil {
		log.Printf("⚠️ Failed to send notify-node message for instance %s: %v", inst.ID, err)
	}
}

func (e *InstanceEngine) resolveDefinition(ctx context.Context, req StartInstanceRequest) (*models.WorkflowDefinition, error) {
	if req.DefinitionID != "" {
		def, err := e.definitions.Get(ctx, req.DefinitionID)
		if err != nil {
			return nil, err
		}
		if def.Status != constants.DefinitionStatusActive {
			return nil, errors.NewValidationError("definition_id", "definition is not active")
		}
		return def, nil
	}
	if req.ObjectAPIName == "" {
		return nil, errors.NewValidationError("object_api_name", "object_api_name or definition_id is required")
	}
	return e.definitions.ActiveDefinitionForObject(ctx, req.ObjectAPIName)
}

// haltIfEngineError converts a dispatch or routing failure during Start into
// a persisted halted instance. Returns false for errors that should surface
// to the caller unchanged (validation, conflicts, storage failures).
func (e *InstanceEngine) haltIfEngineError(ctx context.Context, inst *models.WorkflowInstance, cause error) bool {
	if !isEngineHalt(cause) {
		return false
	}

	// The failed transaction rolled everything back, so the halted instance
	// is re-persisted from scratch with no task rows. Fail closed.
	msg := cause.Error()
	inst.Status = string(domain.InstanceStateError)
	inst.ErrorMessage = &msg
	inst.ActiveNodeIDs = nil
	inst.CurrentNodeID = nil
	inst.JoinState = nil

	err := e.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		return e.instances.Insert(txCtx, inst)
	})
	if err != nil {
		log.Printf("❌ Failed to persist halted instance %s: %v", inst.ID, err)
		return false
	}
	log.Printf("⏸️ Workflow instance %s halted at start: %s", inst.ID, msg)
	return true
}

// isEngineHalt reports whether err is a routing/dispatch failure that halts
// the instance rather than failing the API call.
func isEngineHalt(err error) bool {
	var noAssignee *ErrNoAssigneeResolved
	var noBranch *ErrNoMatchingBranch
	return stderrors.As(err, &noAssignee) || stderrors.As(err, &noBranch) || errors.IsGuard(err)
}

func guardEnv(inst *models.WorkflowInstance) map[string]interface{} {
	env := make(map[string]interface{}, len(inst.Variables)+1)
	for k, v := range inst.Variables {
		env[k] = v
	}
	env["initiator_id"] = inst.InitiatorID
	return env
}

func removeActiveNode(inst *models.WorkflowInstance, nodeID string) {
	out := inst.ActiveNodeIDs[:0]
	for _, id := range inst.ActiveNodeIDs {
		if id != nodeID {
			out = append(out, id)
		}
	}
	inst.ActiveNodeIDs = out
}

func syncCurrentNode(inst *models.WorkflowInstance) {
	if len(inst.ActiveNodeIDs) > 0 {
		inst.CurrentNodeID = &inst.ActiveNodeIDs[0]
	} else {
		inst.CurrentNodeID = nil
	}
}

// validateVariables checks required declarations and loose type conformance.
func validateVariables(decls []models.VariableDecl, vars map[string]interface{}) error {
	for _, decl := range decls {
		val, present := vars[decl.Name]
		if !present || val == nil {
			if decl.Required {
				return errors.NewValidationError(decl.Name, "required variable missing")
			}
			continue
		}
		switch decl.Type {
		case "string":
			if _, ok := val.(string); !ok {
				return errors.NewValidationError(decl.Name, "expected a string")
			}
		case "number":
			switch val.(type) {
			case float64, float32, int, int64, int32:
			default:
				return errors.NewValidationError(decl.Name, "expected a number")
			}
		case "bool":
			if _, ok := val.(bool); !ok {
				return errors.NewValidationError(decl.Name, "expected a bool")
			}
		}
	}
	return nil
}
