package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetflow/backend/internal/domain/models"
	"github.com/assetflow/backend/pkg/constants"
	"github.com/assetflow/backend/pkg/errors"
)

func strPtr(s string) *string { return &s }

// testUsers is a small org: alice reports to bob, bob to carol. dave and
// erin staff the ops department, frank holds the auditor role.
func testUsers() []*models.OrgUser {
	return []*models.OrgUser{
		{ID: "alice", Name: "Alice", Email: "alice@example.com", ManagerID: strPtr("bob"), IsActive: true},
		{ID: "bob", Name: "Bob", Email: "bob@example.com", ManagerID: strPtr("carol"), IsActive: true},
		{ID: "carol", Name: "Carol", Email: "carol@example.com", IsActive: true},
		{ID: "dave", Name: "Dave", Email: "dave@example.com", DepartmentID: strPtr("ops"), IsActive: true},
		{ID: "erin", Name: "Erin", Email: "erin@example.com", DepartmentID: strPtr("ops"), IsActive: true},
		{ID: "frank", Name: "Frank", Email: "frank@example.com", RoleID: strPtr("auditor"), IsActive: true},
	}
}

var aliceSession = &models.UserSession{ID: "alice", Name: "Alice"}

func activeDefinition(t *testing.T, f *workflowFixture, req DefinitionRequest) *models.WorkflowDefinition {
	t.Helper()
	ctx := context.Background()
	def, err := f.definitions.Create(ctx, req, adminUser)
	require.NoError(t, err)
	def, err = f.definitions.Activate(ctx, def.ID, adminUser)
	require.NoError(t, err)
	return def
}

func TestInstanceEngine_Start_SimpleApproval(t *testing.T) {
	f := newWorkflowFixture(testUsers()...)
	ctx := context.Background()

	activeDefinition(t, f, DefinitionRequest{
		Name: "Asset Pickup", Code: "asset_pickup", ObjectAPIName: "asset",
		Graph: singleApprovalGraph("bob"),
	})

	inst, err := f.engine.Start(ctx, StartInstanceRequest{
		ObjectAPIName: "asset",
		RecordID:      "asset-001",
	}, aliceSession)
	require.NoError(t, err)

	assert.Equal(t, constants.InstanceStatusRunning, inst.Status)
	require.NotNil(t, inst.CurrentNodeID)
	assert.Equal(t, "approve", *inst.CurrentNodeID)

	tasks, err := f.taskRepo.ListByInstance(ctx, inst.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "bob", tasks[0].AssigneeID)
	assert.Equal(t, constants.TaskStatusPending, tasks[0].Status)
	assert.Equal(t, 1, tasks[0].Round)

	// Assignee got a feed notification
	notes, err := f.notifRepo.ListForRecipient(ctx, "bob", 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Title, "Manager Approval")
}

func TestInstanceEngine_Start_ConditionRouting(t *testing.T) {
	f := newWorkflowFixture(testUsers()...)
	ctx := context.Background()

	graph := models.Graph{
		Nodes: []models.Node{
			{ID: "start", Type: constants.NodeTypeStart},
			{ID: "route", Type: constants.NodeTypeCondition, Name: "Amount Check"},
			{ID: "exec", Type: constants.NodeTypeApproval, Name: "Executive Approval",
				Assignment: &models.AssignmentRule{Type: constants.AssigneeTypeUser, TargetID: "carol", Mode: constants.ApprovalModeAny}},
			{ID: "mgr", Type: constants.NodeTypeApproval, Name: "Manager Approval",
				Assignment: &models.AssignmentRule{Type: constants.AssigneeTypeUser, TargetID: "bob", Mode: constants.ApprovalModeAny}},
			{ID: "end", Type: constants.NodeTypeEnd},
		},
		Edges: []models.Edge{
			{Source: "start", Target: "route"},
			{Source: "route", Target: "exec", Guard: "amount > 10000"},
			{Source: "route", Target: "mgr"},
			{Source: "exec", Target: "end"},
			{Source: "mgr", Target: "end"},
		},
	}
	activeDefinition(t, f, DefinitionRequest{
		Name: "Purchase", Code: "purchase", ObjectAPIName: "purchase", Graph: graph,
		Variables: []models.VariableDecl{{Name: "amount", Type: "number", Required: true}},
	})

	big, err := f.engine.Start(ctx, StartInstanceRequest{
		ObjectAPIName: "purchase", RecordID: "po-1",
		Variables: map[string]interface{}{"amount": 50000.0},
	}, aliceSession)
	require.NoError(t, err)
	require.NotNil(t, big.CurrentNodeID)
	assert.Equal(t, "exec", *big.CurrentNodeID)

	small, err := f.engine.Start(ctx, StartInstanceRequest{
		ObjectAPIName: "purchase", RecordID: "po-2",
		Variables: map[string]interface{}{"amount": 200.0},
	}, aliceSession)
	require.NoError(t, err)
	require.NotNil(t, small.CurrentNodeID)
	assert.Equal(t, "mgr", *small.CurrentNodeID)
}

func TestInstanceEngine_Start_MissingRequiredVariable(t *testing.T) {
	f := newWorkflowFixture(testUsers()...)

	activeDefinition(t, f, DefinitionRequest{
		Name: "Purchase", Code: "purchase", ObjectAPIName: "purchase",
		Graph:     singleApprovalGraph("bob"),
		Variables: []models.VariableDecl{{Name: "amount", Type: "number", Required: true}},
	})

	_, err := f.engine.Start(context.Background(), StartInstanceRequest{
		ObjectAPIName: "purchase", RecordID: "po-1",
	}, aliceSession)
	assert.True(t, errors.IsValidation(err))
}

func TestInstanceEngine_Start_NoAssigneeHaltsInstance(t *testing.T) {
	f := newWorkflowFixture(testUsers()...)
	ctx := context.Background()

	activeDefinition(t, f, DefinitionRequest{
		Name: "Ghost Flow", Code: "ghost", ObjectAPIName: "asset",
		Graph: singleApprovalGraph("ghost-user"),
	})

	inst, err := f.engine.Start(ctx, StartInstanceRequest{
		ObjectAPIName: "asset", RecordID: "asset-002",
	}, aliceSession)
	require.NoError(t, err)

	assert.Equal(t, constants.InstanceStatusError, inst.Status)
	require.NotNil(t, inst.ErrorMessage)
	assert.Contains(t, *inst.ErrorMessage, "no assignee resolved")

	// Fail closed: the halted instance carries no live tasks
	tasks, err := f.taskRepo.ListByInstance(ctx, inst.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	stored, err := f.instRepo.GetByID(ctx, inst.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, constants.InstanceStatusError, stored.Status)
}

func TestInstanceEngine_Start_GuardEvaluationFailureHalts(t *testing.T) {
	f := newWorkflowFixture(testUsers()...)
	ctx := context.Background()

	// LEN rejects non-string input, so this guard compiles but fails at run
	// time once a number is bound
	graph := models.Graph{
		Nodes: []models.Node{
			{ID: "start", Type: constants.NodeTypeStart},
			{ID: "route", Type: constants.NodeTypeCondition},
			{ID: "approve", Type: constants.NodeTypeApproval, Name: "A",
				Assignment: &models.AssignmentRule{Type: constants.AssigneeTypeUser, TargetID: "bob", Mode: constants.ApprovalModeAny}},
			{ID: "end", Type: constants.NodeTypeEnd},
		},
		Edges: []models.Edge{
			{Source: "start", Target: "route"},
			{Source: "route", Target: "approve", Guard: "LEN(amount) > 3"},
			{Source: "route", Target: "end"},
			{Source: "approve", Target: "end"},
		},
	}
	activeDefinition(t, f, DefinitionRequest{
		Name: "X", Code: "x", ObjectAPIName: "asset", Graph: graph,
		Variables: []models.VariableDecl{{Name: "amount", Type: "number", Required: true}},
	})

	inst, err := f.engine.Start(ctx, StartInstanceRequest{
		ObjectAPIName: "asset", RecordID: "a-17",
		Variables: map[string]interface{}{"amount": 7.0},
	}, aliceSession)
	require.NoError(t, err)

	assert.Equal(t, constants.InstanceStatusError, inst.Status)
	require.NotNil(t, inst.ErrorMessage)
	assert.Contains(t, *inst.ErrorMessage, "guard")

	tasks, err := f.taskRepo.ListByInstance(ctx, inst.ID)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestInstanceEngine_Start_RejectsSecondPendingForRecord(t *testing.T) {
	f := newWorkflowFixture(testUsers()...)
	ctx := context.Background()

	activeDefinition(t, f, DefinitionRequest{
		Name: "Asset Pickup", Code: "asset_pickup", ObjectAPIName: "asset",
		Graph: singleApprovalGraph("bob"),
	})

	_, err := f.engine.Start(ctx, StartInstanceRequest{ObjectAPIName: "asset", RecordID: "asset-003"}, aliceSession)
	require.NoError(t, err)

	_, err = f.engine.Start(ctx, StartInstanceRequest{ObjectAPIName: "asset", RecordID: "asset-003"}, aliceSession)
	assert.True(t, errors.IsConflict(err))
}

func TestInstanceEngine_Start_NotifyNodeAutoAdvances(t *testing.T) {
	f := newWorkflowFixture(testUsers()...)
	ctx := context.Background()

	graph := models.Graph{
		Nodes: []models.Node{
			{ID: "start", Type: constants.NodeTypeStart},
			{ID: "notice", Type: constants.NodeTypeNotify, Name: "Submitted", Message: "Your request was submitted"},
			{ID: "approve", Type: constants.NodeTypeApproval, Name: "Manager Approval",
				Assignment: &models.AssignmentRule{Type: constants.AssigneeTypeUser, TargetID: "bob", Mode: constants.ApprovalModeAny}},
			{ID: "end", Type: constants.NodeTypeEnd},
		},
		Edges: []models.Edge{
			{Source: "start", Target: "notice"},
			{Source: "notice", Target: "approve"},
			{Source: "approve", Target: "end"},
		},
	}
	activeDefinition(t, f, DefinitionRequest{Name: "X", Code: "x", ObjectAPIName: "asset", Graph: graph})

	inst, err := f.engine.Start(ctx, StartInstanceRequest{ObjectAPIName: "asset", RecordID: "a-1"}, aliceSession)
	require.NoError(t, err)
	require.NotNil(t, inst.CurrentNodeID)
	assert.Equal(t, "approve", *inst.CurrentNodeID, "notify node must not hold the token")

	notes, err := f.notifRepo.ListForRecipient(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Your request was submitted", notes[0].Body)
}

func TestInstanceEngine_Cancel(t *testing.T) {
	f := newWorkflowFixture(testUsers()...)
	ctx := context.Background()

	activeDefinition(t, f, DefinitionRequest{
		Name: "Asset Pickup", Code: "asset_pickup", ObjectAPIName: "asset",
		Graph: singleApprovalGraph("bob"),
	})
	inst, err := f.engine.Start(ctx, StartInstanceRequest{ObjectAPIName: "asset", RecordID: "a-9"}, aliceSession)
	require.NoError(t, err)

	// Strangers cannot cancel
	err = f.engine.Cancel(ctx, inst.ID, &models.UserSession{ID: "bob"})
	assert.True(t, errors.IsPermission(err))

	// The initiator can
	require.NoError(t, f.engine.Cancel(ctx, inst.ID, aliceSession))

	stored, _ := f.instRepo.GetByID(ctx, inst.ID)
	assert.Equal(t, constants.InstanceStatusCancelled, stored.Status)
	assert.NotNil(t, stored.CompletedDate)

	tasks, _ := f.taskRepo.ListByInstance(ctx, inst.ID)
	require.Len(t, tasks, 1)
	assert.Equal(t, constants.TaskStatusSkipped, tasks[0].Status)

	// Cancelling twice is an invalid transition
	err = f.engine.Cancel(ctx, inst.ID, aliceSession)
	assert.Error(t, err)
}

func TestInstanceEngine_GetInstanceView_History(t *testing.T) {
	f := newWorkflowFixture(testUsers()...)
	ctx := context.Background()

	activeDefinition(t, f, DefinitionRequest{
		Name: "Asset Pickup", Code: "asset_pickup", ObjectAPIName: "asset",
		Graph: singleApprovalGraph("bob"),
	})
	inst, err := f.engine.Start(ctx, StartInstanceRequest{ObjectAPIName: "asset", RecordID: "a-10"}, aliceSession)
	require.NoError(t, err)

	view, err := f.engine.GetInstanceView(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, "Manager Approval", view.CurrentNodeName)
	require.Len(t, view.History, 1)
	assert.Equal(t, constants.TaskStatusPending, view.History[0].Status)
}
