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
)

// DecideRequest is the input for acting on a pending task.
type DecideRequest struct {
	TaskID   string `json:"task_id" binding:"required"`
	Decision string `json:"decision" binding:"required"` // approve, reject, return
	Comments string `json:"comments"`
}

// ApprovalProcessor applies approver decisions to pending tasks and drives
// the owning instance accordingly. Every decision runs under the instance
// lock and inside one transaction: the task update, any sibling skips, and
// the resulting instance transition commit or roll back together.
type ApprovalProcessor struct {
	engine      *InstanceEngine
	definitions *DefinitionService
	instances   ports.InstanceRepository
	tasks       ports.TaskRepository
	dispatcher  *TaskDispatcher
	sm          *domain.InstanceStateMachine
	locks       *InstanceLockManager
	tx          TxRunner
}

// NewApprovalProcessor creates a new ApprovalProcessor
func NewApprovalProcessor(
	engine *InstanceEngine,
	definitions *DefinitionService,
	instances ports.InstanceRepository,
	tasks ports.TaskRepository,
	dispatcher *TaskDispatcher,
	locks *InstanceLockManager,
	tx TxRunner,
) *ApprovalProcessor {
	return &ApprovalProcessor{
		engine:      engine,
		definitions: definitions,
		instances:   instances,
		tasks:       tasks,
		dispatcher:  dispatcher,
		sm:          domain.NewInstanceStateMachine(),
		locks:       locks,
		tx:          tx,
	}
}

// Decide applies an approve, reject or return decision to a pending task on
// behalf of the acting user. Only the task's assignee may decide it; a task
// that is no longer pending is rejected as a conflict regardless of who asks.
func (p *ApprovalProcessor) Decide(ctx context.Context, req DecideRequest, user *models.UserSession) (*models.WorkflowTask, error) {
	switch req.Decision {
	case constants.DecisionApprove, constants.DecisionReject, constants.DecisionReturn:
	default:
		return nil, errors.NewValidationError("decision", fmt.Sprintf("unknown decision %q", req.Decision))
	}

	// Resolve the owning instance before taking its lock
	probe, err := p.tasks.GetByID(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}
	if probe == nil {
		return nil, errors.NewNotFoundError("workflow_task", req.TaskID)
	}

	unlock := p.locks.Lock(probe.InstanceID)
	defer unlock()

	var decided *models.WorkflowTask
	err = p.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		task, err := p.tasks.GetByID(txCtx, req.TaskID)
		if err != nil {
			return err
		}
		if task == nil {
			return errors.NewNotFoundError("workflow_task", req.TaskID)
		}
		if task.Status != constants.TaskStatusPending {
			return errors.NewConflictError("workflow_task", fmt.Sprintf("task is %s, not Pending", task.Status))
		}
		if task.AssigneeID != user.ID {
			return errors.NewPermissionError("decide", "workflow_task")
		}

		inst, err := p.instances.GetByID(txCtx, task.InstanceID)
		if err != nil {
			return err
		}
		if inst == nil {
			return errors.NewNotFoundError("workflow_instance", task.InstanceID)
		}
		if inst.Status != constants.InstanceStatusRunning {
			return errors.NewConflictError("workflow_instance", fmt.Sprintf("instance is %s, not Running", inst.Status))
		}

		def, err := p.definitions.Get(txCtx, inst.DefinitionID)
		if err != nil {
			return err
		}
		gm := domain.NewGraphModel(def.Graph)
		node, ok := gm.Node(task.NodeID)
		if !ok {
			return fmt.Errorf("task %s references unknown node %s", task.ID, task.NodeID)
		}

		now := time.Now().UTC()
		task.DecidedByID = &user.ID
		task.DecidedDate = &now
		if req.Comments != "" {
			task.Comments = &req.Comments
		}

		switch req.Decision {
		case constants.DecisionApprove:
			err = p.applyApprove(txCtx, gm, inst, node, task)
		case constants.DecisionReject:
			err = p.applyReject(txCtx, inst, task, user)
		case constants.DecisionReturn:
			err = p.applyReturn(txCtx, gm, inst, node, task)
		}
		if err != nil {
			if isEngineHalt(err) {
				// Preserve the decision, drain stray tasks, and fail closed
				if skipErr := p.engine.skipPendingTasks(txCtx, inst, user.ID, "instance halted"); skipErr != nil {
					return skipErr
				}
				return p.engine.HaltCtx(txCtx, inst, err.Error())
			}
			return err
		}
		return p.instances.Update(txCtx, inst)
	})
	if err != nil {
		return nil, err
	}

	decided, err = p.tasks.GetByID(ctx, req.TaskID)
	if err != nil {
		return nil, err
	}
	log.Printf("✅ Task %s decided (%s) by %s", req.TaskID, req.Decision, user.ID)
	return decided, nil
}

// ListPending returns a page of the user's pending tasks, newest first.
func (p *ApprovalProcessor) ListPending(ctx context.Context, user *models.UserSession, limit, offset int) ([]*models.WorkflowTask, error) {
	return p.tasks.ListPendingForAssignee(ctx, user.ID, limit, offset)
}

// GetTask returns a task visible to the caller: its assignee, the instance
// initiator, or an admin.
func (p *ApprovalProcessor) GetTask(ctx context.Context, taskID string, user *models.UserSession) (*models.WorkflowTask, error) {
	task, err := p.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, errors.NewNotFoundError("workflow_task", taskID)
	}
	if task.AssigneeID == user.ID || user.IsAdmin {
		return task, nil
	}
	inst, err := p.instances.GetByID(ctx, task.InstanceID)
	if err != nil {
		return nil, err
	}
	if inst != nil && inst.InitiatorID == user.ID {
		return task, nil
	}
	return nil, errors.NewPermissionError("view", "workflow_task")
}

// applyApprove marks the task approved and advances the node when its
// approval mode is satisfied: any needs one approval, all needs every task of
// the round, sequence walks assignees one at a time.
func (p *ApprovalProcessor) applyApprove(ctx context.Context, gm *domain.GraphModel, inst *models.WorkflowInstance, node *models.Node, task *models.WorkflowTask) error {
	task.Status = constants.TaskStatusApproved
	if err := p.tasks.Update(ctx, task); err != nil {
		return err
	}

	switch node.Assignment.Mode {
	case constants.ApprovalModeAny:
		if err := p.skipNodeSiblings(ctx, inst, task, "approved by peer"); err != nil {
			return err
		}
		return p.engine.AdvancePast(ctx, gm, inst, node.ID)

	case constants.ApprovalModeAll:
		settled, err := p.roundSettled(ctx, inst, task)
		if err != nil {
			return err
		}
		if !settled {
			log.Printf("⏸️ Node %s waiting for remaining approvers (instance %s)", node.ID, inst.ID)
			return nil
		}
		return p.engine.AdvancePast(ctx, gm, inst, node.ID)

	case constants.ApprovalModeSequence:
		next, err := p.dispatcher.DispatchNext(ctx, node, inst, task.Round, task.Seq+1)
		if err != nil {
			return err
		}
		if next != nil {
			log.Printf("▶️ Sequence advanced to approver %s on node %s (instance %s)", next.AssigneeID, node.ID, inst.ID)
			return nil
		}
		return p.engine.AdvancePast(ctx, gm, inst, node.ID)

	default:
		return fmt.Errorf("unknown approval mode %q on node %s", node.Assignment.Mode, node.ID)
	}
}

// applyReject marks the task rejected and terminates the whole instance.
// Parallel siblings on other branches are skipped, not left dangling.
func (p *ApprovalProcessor) applyReject(ctx context.Context, inst *models.WorkflowInstance, task *models.WorkflowTask, user *models.UserSession) error {
	task.Status = constants.TaskStatusRejected
	if err := p.tasks.Update(ctx, task); err != nil {
		return err
	}
	if err := p.engine.skipPendingTasks(ctx, inst, user.ID, "instance rejected"); err != nil {
		return err
	}

	next, err := p.sm.Transition(domain.InstanceState(inst.Status), domain.TransitionReject)
	if err != nil {
		return err
	}
	inst.Status = string(next)
	now := time.Now().UTC()
	inst.CompletedDate = &now
	inst.ActiveNodeIDs = nil
	inst.CurrentNodeID = nil
	inst.JoinState = nil
	return nil
}

// applyReturn marks the task returned and rewinds the instance to the node's
// configured return target, or to the first node after start when none is
// set. History stays; the reworked node dispatches a fresh round.
func (p *ApprovalProcessor) applyReturn(ctx context.Context, gm *domain.GraphModel, inst *models.WorkflowInstance, node *models.Node, task *models.WorkflowTask) error {
	task.Status = constants.TaskStatusReturned
	if err := p.tasks.Update(ctx, task); err != nil {
		return err
	}

	target := node.Assignment.ReturnTo
	if target == "" {
		first, err := firstNodeAfterStart(gm)
		if err != nil {
			return err
		}
		target = first
	}
	return p.engine.Rewind(ctx, gm, inst, target)
}

// skipNodeSiblings skips the other pending tasks of the same node and round.
func (p *ApprovalProcessor) skipNodeSiblings(ctx context.Context, inst *models.WorkflowInstance, task *models.WorkflowTask, reason string) error {
	siblings, err := p.tasks.ListByInstanceNode(ctx, inst.ID, task.NodeID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, sibling := range siblings {
		if sibling.ID == task.ID || sibling.Round != task.Round || sibling.Status != constants.TaskStatusPending {
			continue
		}
		sibling.Status = constants.TaskStatusSkipped
		sibling.Comments = &reason
		sibling.DecidedByID = task.DecidedByID
		sibling.DecidedDate = &now
		if err := p.tasks.Update(ctx, sibling); err != nil {
			return err
		}
	}
	return nil
}

// roundSettled reports whether every task of the node's current round has
// been decided.
func (p *ApprovalProcessor) roundSettled(ctx context.Context, inst *models.WorkflowInstance, task *models.WorkflowTask) (bool, error) {
	siblings, err := p.tasks.ListByInstanceNode(ctx, inst.ID, task.NodeID)
	if err != nil {
		return false, err
	}
	for _, sibling := range siblings {
		if sibling.Round == task.Round && sibling.Status == constants.TaskStatusPending {
			return false, nil
		}
	}
	return true, nil
}

// firstNodeAfterStart resolves the default return target.
func firstNodeAfterStart(gm *domain.GraphModel) (string, error) {
	start := gm.StartNode()
	if start == nil {
		return "", fmt.Errorf("graph has no start node")
	}
	edges := gm.OutgoingEdges(start.ID)
	if len(edges) == 0 {
		return "", fmt.Errorf("start node has no outgoing edge")
	}
	return edges[0].Target, nil
}
