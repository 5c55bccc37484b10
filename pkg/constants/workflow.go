package constants

// Workflow definition status constants
const (
	DefinitionStatusDraft    = "Draft"
	DefinitionStatusActive   = "Active"
	DefinitionStatusInactive = "Inactive"
)

// Node type constants
const (
	NodeTypeStart     = "start"
	NodeTypeEnd       = "end"
	NodeTypeApproval  = "approval"
	NodeTypeCondition = "condition"
	NodeTypeParallel  = "parallel"
	NodeTypeNotify    = "notify"
)

// Assignee rule type constants
const (
	AssigneeTypeUser     = "user"
	AssigneeTypeDept     = "dept"
	AssigneeTypeRole     = "role"
	AssigneeTypeSuperior = "superior"
)

// Approval mode constants. "any" advances on the first decision, "all" waits
// for every assignee, "sequence" dispatches one assignee at a time.
const (
	ApprovalModeAny      = "any"
	ApprovalModeAll      = "all"
	ApprovalModeSequence = "sequence"
)

// Workflow instance status constants
const (
	InstanceStatusDraft     = "Draft"
	InstanceStatusRunning   = "Running"
	InstanceStatusError     = "Error"
	InstanceStatusCompleted = "Completed"
	InstanceStatusRejected  = "Rejected"
	InstanceStatusCancelled = "Cancelled"
)

// Task status constants
const (
	TaskStatusPending  = "Pending"
	TaskStatusApproved = "Approved"
	TaskStatusRejected = "Rejected"
	TaskStatusReturned = "Returned"
	TaskStatusSkipped  = "Skipped"
)

// Decision action constants
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
	DecisionReturn  = "return"
)

// IsTerminalInstanceStatus reports whether an instance status permits no
// further transitions.
func IsTerminalInstanceStatus(status string) bool {
	return status == InstanceStatusCompleted ||
		status == InstanceStatusRejected ||
		status == InstanceStatusCancelled
}

// IsDecidedTaskStatus reports whether a task has left the Pending state.
func IsDecidedTaskStatus(status string) bool {
	return status != TaskStatusPending
}
