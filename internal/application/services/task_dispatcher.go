package services

import (
	"context"
	"fmt"
	"log"

	"github.com/assetflow/backend/internal/domain/models"
	"github.com/assetflow/backend/internal/domain/ports"
	"github.com/assetflow/backend/pkg/constants"
	"github.com/assetflow/backend/pkg/utils"
)

// ErrNoAssigneeResolved signals that an assignment rule produced zero
// assignees. The engine reacts by halting the instance in the error state
// instead of leaving an approval node nobody can act on.
type ErrNoAssigneeResolved struct {
	NodeID string
	Rule   models.AssignmentRule
}

func (e *ErrNoAssigneeResolved) Error() string {
	return fmt.Sprintf("no assignee resolved for node %s (rule %s/%s)", e.NodeID, e.Rule.Type, e.Rule.TargetID)
}

// TaskDispatcher resolves assignment rules into concrete users and creates
// the pending task rows for an approval node entry.
type TaskDispatcher struct {
	directory ports.DirectoryProvider
	taskRepo  ports.TaskRepository
	notifier  ports.TaskNotifier
}

// NewTaskDispatcher creates a new TaskDispatcher
func NewTaskDispatcher(directory ports.DirectoryProvider, taskRepo ports.TaskRepository, notifier ports.TaskNotifier) *TaskDispatcher {
	return &TaskDispatcher{
		directory: directory,
		taskRepo:  taskRepo,
		notifier:  notifier,
	}
}

// ResolveAssignees resolves an assignment rule to an ordered, de-duplicated
// list of user ids. Inactive users are dropped.
func (d *TaskDispatcher) ResolveAssignees(ctx context.Context, rule *models.AssignmentRule, inst *models.WorkflowInstance) ([]string, error) {
	var users []*models.OrgUser

	switch rule.Type {
	case constants.AssigneeTypeUser:
		user, err := d.directory.GetUser(ctx, rule.TargetID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve user assignee %s: %w", rule.TargetID, err)
		}
		if user != nil {
			users = append(users, user)
		}

	case constants.AssigneeTypeDept:
		members, err := d.directory.DepartmentMembers(ctx, rule.TargetID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve department assignees %s: %w", rule.TargetID, err)
		}
		users = members

	case constants.AssigneeTypeRole:
		holders, err := d.directory.RoleHolders(ctx, rule.TargetID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve role assignees %s: %w", rule.TargetID, err)
		}
		users = holders

	case constants.AssigneeTypeSuperior:
		level := rule.Level
		if level < 1 {
			level = 1
		}
		manager, err := d.directory.Superior(ctx, inst.InitiatorID, level)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve superior of %s at level %d: %w", inst.InitiatorID, level, err)
		}
		if manager != nil {
			users = append(users, manager)
		}

	default:
		return nil, fmt.Errorf("unknown assignee type %q", rule.Type)
	}

	seen := make(map[string]bool, len(users))
	var ids []string
	for _, u := range users {
		if u == nil || !u.IsActive || seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// Dispatch creates the pending tasks for an approval node at the given
// round. In any/all mode every assignee gets a task immediately; in sequence
// mode only the first assignee does, and the approval processor creates the
// next one as each prior task is approved. Returns ErrNoAssigneeResolved when
// the rule matches nobody.
func (d *TaskDispatcher) Dispatch(ctx context.Context, node *models.Node, inst *models.WorkflowInstance, round int) ([]*models.WorkflowTask, error) {
	rule := node.Assignment
	if rule == nil {
		return nil, fmt.Errorf("approval node %s has no assignment rule", node.ID)
	}

	assignees, err := d.ResolveAssignees(ctx, rule, inst)
	if err != nil {
		return nil, err
	}
	if len(assignees) == 0 {
		return nil, &ErrNoAssigneeResolved{NodeID: node.ID, Rule: *rule}
	}

	if rule.Mode == constants.ApprovalModeSequence {
		assignees = assignees[:1]
	}

	tasks := make([]*models.WorkflowTask, 0, len(assignees))
	for seq, assigneeID := range assignees {
		task := &models.WorkflowTask{
			ID:         utils.GenerateID(),
			InstanceID: inst.ID,
			NodeID:     node.ID,
			NodeName:   node.Name,
			NodeType:   node.Type,
			AssigneeID: assigneeID,
			Status:     constants.TaskStatusPending,
			Round:      round,
			Seq:        seq,
		}
		if err := d.taskRepo.Insert(ctx, task); err != nil {
			return nil, fmt.Errorf("failed to create task for node %s: %w", node.ID, err)
		}
		tasks = append(tasks, task)
		d.notifyCreated(ctx, task, inst)
	}

	log.Printf("▶️ Dispatched %d task(s) for node %s (instance %s, round %d)", len(tasks), node.ID, inst.ID, round)
	return tasks, nil
}

// DispatchNext creates the task for the next assignee in sequence mode.
// Returns nil when the sequence is exhausted.
func (d *TaskDispatcher) DispatchNext(ctx context.Context, node *models.Node, inst *models.WorkflowInstance, round, nextSeq int) (*models.WorkflowTask, error) {
	assignees, err := d.ResolveAssignees(ctx, node.Assignment, inst)
	if err != nil {
		return nil, err
	}
	if nextSeq >= len(assignees) {
		return nil, nil
	}

	task := &models.WorkflowTask{
		ID:         utils.GenerateID(),
		InstanceID: inst.ID,
		NodeID:     node.ID,
		NodeName:   node.Name,
		NodeType:   node.Type,
		AssigneeID: assignees[nextSeq],
		Status:     constants.TaskStatusPending,
		Round:      round,
		Seq:        nextSeq,
	}
	if err := d.taskRepo.Insert(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create sequence task for node %s: %w", node.ID, err)
	}
	d.notifyCreated(ctx, task, inst)
	return task, nil
}

func (d *TaskDispatcher) notifyCreated(ctx context.Context, task *models.WorkflowTask, inst *models.WorkflowInstance) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.TaskCreated(ctx, task, inst); err != nil {
		log.Printf("⚠️ Failed to notify assignee %s of task %s: %v", task.AssigneeID, task.ID, err)
	}
}
