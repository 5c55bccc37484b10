package services

import (
	"context"
	"sort"
	"sync"

	"github.com/assetflow/backend/internal/domain/models"
	"github.com/assetflow/backend/pkg/constants"
	"github.com/assetflow/backend/pkg/expression"
)

// In-memory fakes for the ports interfaces. They keep the engine tests free
// of sqlmock choreography; repository SQL is covered in the persistence
// package.

type fakeTxRunner struct{}

func (f *fakeTxRunner) RunInTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type fakeDefinitionRepo struct {
	mu           sync.Mutex
	defs         map[string]*models.WorkflowDefinition
	hasInstances map[string]bool
}

func newFakeDefinitionRepo() *fakeDefinitionRepo {
	return &fakeDefinitionRepo{
		defs:         make(map[string]*models.WorkflowDefinition),
		hasInstances: make(map[string]bool),
	}
}

func (r *fakeDefinitionRepo) Insert(_ context.Context, def *models.WorkflowDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *def
	r.defs[def.ID] = &cp
	return nil
}

func (r *fakeDefinitionRepo) Update(_ context.Context, def *models.WorkflowDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *def
	r.defs[def.ID] = &cp
	return nil
}

func (r *fakeDefinitionRepo) GetByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if def, ok := r.defs[id]; ok {
		cp := *def
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeDefinitionRepo) List(_ context.Context) ([]*models.WorkflowDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.WorkflowDefinition
	for _, def := range r.defs {
		cp := *def
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeDefinitionRepo) ActiveForObject(_ context.Context, objectAPIName string) ([]*models.WorkflowDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.WorkflowDefinition
	for _, def := range r.defs {
		if def.ObjectAPIName == objectAPIName && def.Status == constants.DefinitionStatusActive {
			cp := *def
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeDefinitionRepo) ActiveByCode(_ context.Context, code string) (*models.WorkflowDefinition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, def := range r.defs {
		if def.Code == code && def.Status == constants.DefinitionStatusActive {
			cp := *def
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeDefinitionRepo) MaxVersion(_ context.Context, code string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, def := range r.defs {
		if def.Code == code && def.Version > max {
			max = def.Version
		}
	}
	return max, nil
}

func (r *fakeDefinitionRepo) HasInstances(_ context.Context, definitionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasInstances[definitionID], nil
}

type fakeInstanceRepo struct {
	mu        sync.Mutex
	instances map[string]*models.WorkflowInstance
}

func newFakeInstanceRepo() *fakeInstanceRepo {
	return &fakeInstanceRepo{instances: make(map[string]*models.WorkflowInstance)}
}

func copyInstance(inst *models.WorkflowInstance) *models.WorkflowInstance {
	cp := *inst
	cp.ActiveNodeIDs = append([]string(nil), inst.ActiveNodeIDs...)
	if inst.JoinState != nil {
		cp.JoinState = make(map[string][]string, len(inst.JoinState))
		for k, v := range inst.JoinState {
			cp.JoinState[k] = append([]string(nil), v...)
		}
	}
	if inst.Variables != nil {
		cp.Variables = make(map[string]interface{}, len(inst.Variables))
		for k, v := range inst.Variables {
			cp.Variables[k] = v
		}
	}
	return &cp
}

func (r *fakeInstanceRepo) Insert(_ context.Context, inst *models.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[inst.ID] = copyInstance(inst)
	return nil
}

func (r *fakeInstanceRepo) Update(_ context.Context, inst *models.WorkflowInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[inst.ID] = copyInstance(inst)
	return nil
}

func (r *fakeInstanceRepo) GetByID(_ context.Context, id string) (*models.WorkflowInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[id]; ok {
		return copyInstance(inst), nil
	}
	return nil, nil
}

func (r *fakeInstanceRepo) PendingForRecord(_ context.Context, objectAPIName, recordID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inst := range r.instances {
		if inst.ObjectAPIName == objectAPIName && inst.RecordID == recordID &&
			!constants.IsTerminalInstanceStatus(inst.Status) {
			return true, nil
		}
	}
	return false, nil
}

type fakeTaskRepo struct {
	mu    sync.Mutex
	order []string
	tasks map[string]*models.WorkflowTask
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[string]*models.WorkflowTask)}
}

func (r *fakeTaskRepo) Insert(_ context.Context, task *models.WorkflowTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *task
	r.tasks[task.ID] = &cp
	r.order = append(r.order, task.ID)
	return nil
}

func (r *fakeTaskRepo) Update(_ context.Context, task *models.WorkflowTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *fakeTaskRepo) GetByID(_ context.Context, id string) (*models.WorkflowTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task, ok := r.tasks[id]; ok {
		cp := *task
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeTaskRepo) ListByInstance(_ context.Context, instanceID string) ([]*models.WorkflowTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.WorkflowTask
	for _, id := range r.order {
		if t := r.tasks[id]; t.InstanceID == instanceID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) ListByInstanceNode(_ context.Context, instanceID, nodeID string) ([]*models.WorkflowTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.WorkflowTask
	for _, id := range r.order {
		if t := r.tasks[id]; t.InstanceID == instanceID && t.NodeID == nodeID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) ListPendingForAssignee(_ context.Context, assigneeID string, limit, offset int) ([]*models.WorkflowTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.WorkflowTask
	for i := len(r.order) - 1; i >= 0; i-- {
		t := r.tasks[r.order[i]]
		if t.AssigneeID == assigneeID && t.Status == constants.TaskStatusPending {
			cp := *t
			out = append(out, &cp)
		}
	}
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeTaskRepo) CountPendingForAssignee(_ context.Context, assigneeID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, t := range r.tasks {
		if t.AssigneeID == assigneeID && t.Status == constants.TaskStatusPending {
			count++
		}
	}
	return count, nil
}

// fakeDirectory resolves assignments from fixed users. Manager links form
// the superior chain.
type fakeDirectory struct {
	users map[string]*models.OrgUser
}

func newFakeDirectory(users ...*models.OrgUser) *fakeDirectory {
	d := &fakeDirectory{users: make(map[string]*models.OrgUser)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeDirectory) GetUser(_ context.Context, id string) (*models.OrgUser, error) {
	return d.users[id], nil
}

func (d *fakeDirectory) DepartmentMembers(_ context.Context, departmentID string) ([]*models.OrgUser, error) {
	var out []*models.OrgUser
	var ids []string
	for id := range d.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		u := d.users[id]
		if u.DepartmentID != nil && *u.DepartmentID == departmentID && u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *fakeDirectory) RoleHolders(_ context.Context, roleID string) ([]*models.OrgUser, error) {
	var out []*models.OrgUser
	var ids []string
	for id := range d.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		u := d.users[id]
		if u.RoleID != nil && *u.RoleID == roleID && u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *fakeDirectory) Superior(_ context.Context, userID string, level int) (*models.OrgUser, error) {
	current := d.users[userID]
	for step := 0; step < level; step++ {
		if current == nil || current.ManagerID == nil {
			return nil, nil
		}
		current = d.users[*current.ManagerID]
	}
	if current != nil && !current.IsActive {
		return nil, nil
	}
	return current, nil
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	notifications []*models.SystemNotification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{}
}

func (r *fakeNotificationRepo) Insert(_ context.Context, n *models.SystemNotification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *n
	r.notifications = append(r.notifications, &cp)
	return nil
}

func (r *fakeNotificationRepo) GetByID(_ context.Context, id string) (*models.SystemNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.ID == id {
			cp := *n
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeNotificationRepo) ListForRecipient(_ context.Context, recipientID string, limit int) ([]*models.SystemNotification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SystemNotification
	for i := len(r.notifications) - 1; i >= 0; i-- {
		if r.notifications[i].RecipientID == recipientID {
			cp := *r.notifications[i]
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.ID == id {
			n.IsRead = true
			return nil
		}
	}
	return nil
}

// workflowFixture bundles a fully wired service stack on fakes.
type workflowFixture struct {
	defRepo     *fakeDefinitionRepo
	instRepo    *fakeInstanceRepo
	taskRepo    *fakeTaskRepo
	directory   *fakeDirectory
	notifRepo   *fakeNotificationRepo
	definitions *DefinitionService
	engine      *InstanceEngine
	approvals   *ApprovalProcessor
	feed        *NotificationService
}

func newWorkflowFixture(users ...*models.OrgUser) *workflowFixture {
	f := &workflowFixture{
		defRepo:   newFakeDefinitionRepo(),
		instRepo:  newFakeInstanceRepo(),
		taskRepo:  newFakeTaskRepo(),
		directory: newFakeDirectory(users...),
		notifRepo: newFakeNotificationRepo(),
	}

	evaluator := expression.NewEngine()
	locks := NewInstanceLockManager()
	tx := &fakeTxRunner{}

	f.feed = NewNotificationService(f.taskRepo, f.instRepo, f.notifRepo)
	f.definitions = NewDefinitionService(f.defRepo, evaluator)
	dispatcher := NewTaskDispatcher(f.directory, f.taskRepo, f.feed)
	f.engine = NewInstanceEngine(f.definitions, f.instRepo, f.taskRepo, dispatcher, evaluator, f.feed, locks, tx)
	f.approvals = NewApprovalProcessor(f.engine, f.definitions, f.instRepo, f.taskRepo, dispatcher, locks, tx)
	return f
}
