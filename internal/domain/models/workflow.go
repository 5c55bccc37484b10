package models

import (
	"time"
)

// Node is one step in a workflow definition graph. The type-specific
// properties (assignment rule, notify template) are optional and only set for
// the node types that use them.
type Node struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"` // start, end, approval, condition, parallel, notify
	Name       string          `json:"name"`
	X          int             `json:"x"` // Layout coordinates, presentation-only
	Y          int             `json:"y"`
	Assignment *AssignmentRule `json:"assignment,omitempty"` // Approval nodes
	Message    string          `json:"message,omitempty"`    // Notify nodes
}

// AssignmentRule describes how an approval node resolves its assignees.
type AssignmentRule struct {
	Type     string `json:"type"`                // user, dept, role, superior
	TargetID string `json:"target_id,omitempty"` // user id, department id or role id
	Level    int    `json:"level,omitempty"`     // superior: levels up the manager chain
	Mode     string `json:"mode"`                // any, all, sequence
	ReturnTo string `json:"return_to,omitempty"` // Node a Return decision rewinds to; empty means first node after start
}

// Edge is a directed connection between two nodes. Declaration order matters:
// condition guards are evaluated in order and the first declared unguarded
// edge is the default branch.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Guard  string `json:"guard,omitempty"` // expr source evaluated against instance variables
	Label  string `json:"label,omitempty"`
}

// Graph is the node/edge set of one definition version. Pure data; the
// behavior lives in domain.GraphModel.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// VariableDecl declares a variable an instance must (or may) bind at start.
type VariableDecl struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // string, number, bool
	Required bool   `json:"required"`
}

// WorkflowDefinition is a versioned, named process template bound to one
// business-object type. Once an instance references a version, that version's
// graph never changes; edits create a new version row.
type WorkflowDefinition struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Code          string         `json:"code"`
	ObjectAPIName string         `json:"object_api_name"`
	Version       int            `json:"version"`
	Status        string         `json:"status"` // Draft, Active, Inactive
	Description   *string        `json:"description,omitempty"`
	Graph         Graph          `json:"graph"`
	Variables     []VariableDecl `json:"variables,omitempty"`
	ActivatedDate *time.Time     `json:"activated_date,omitempty"`
	CreatedDate   time.Time      `json:"created_date"`
	ModifiedDate  time.Time      `json:"last_modified_date"`
}

// WorkflowInstance is one running execution of a definition version against a
// business record. Mutated only by the instance engine and the approval
// processor, never by direct user edit.
type WorkflowInstance struct {
	ID                string                 `json:"id"`
	DefinitionID      string                 `json:"definition_id"`
	DefinitionVersion int                    `json:"definition_version"`
	ObjectAPIName     string                 `json:"object_api_name"`
	RecordID          string                 `json:"record_id"`
	Status            string                 `json:"status"` // Draft, Running, Error, Completed, Rejected, Cancelled
	CurrentNodeID     *string                `json:"current_node_id,omitempty"`
	ActiveNodeIDs     []string               `json:"active_node_ids,omitempty"` // Live branch positions; singleton outside parallel fan-outs
	JoinState         map[string][]string    `json:"join_state,omitempty"`      // Join node id -> source nodes that have arrived
	InitiatorID       string                 `json:"initiator_id"`
	Variables         map[string]interface{} `json:"variables,omitempty"`
	ErrorMessage      *string                `json:"error_message,omitempty"`
	StartedDate       time.Time              `json:"started_date"`
	CompletedDate     *time.Time             `json:"completed_date,omitempty"`
}

// IsActiveNode reports whether nodeID is one of the instance's live positions.
func (i *WorkflowInstance) IsActiveNode(nodeID string) bool {
	for _, id := range i.ActiveNodeIDs {
		if id == nodeID {
			return true
		}
	}
	return false
}

// WorkflowTask is one unit of pending human decision work, attached to one
// (instance, node, assignee) at one entry round. History is append-only:
// re-entering a node creates new rows at round+1.
type WorkflowTask struct {
	ID          string     `json:"id"`
	InstanceID  string     `json:"instance_id"`
	NodeID      string     `json:"node_id"`
	NodeName    string     `json:"node_name"`
	NodeType    string     `json:"node_type"`
	AssigneeID  string     `json:"assignee_id"`
	Status      string     `json:"status"` // Pending, Approved, Rejected, Returned, Skipped
	Round       int        `json:"round"`
	Seq         int        `json:"seq"` // Position within the node's assignee order (sequence mode)
	Comments    *string    `json:"comments,omitempty"`
	DecidedByID *string    `json:"decided_by_id,omitempty"`
	DecidedDate *time.Time `json:"decided_date,omitempty"`
	CreatedDate time.Time  `json:"created_date"`
}

// DecisionRecord is one line of an instance's audit history, derived from a
// decided (or skipped) task.
type DecisionRecord struct {
	TaskID      string     `json:"task_id"`
	NodeID      string     `json:"node_id"`
	NodeName    string     `json:"node_name"`
	AssigneeID  string     `json:"assignee_id"`
	Status      string     `json:"status"`
	Comments    *string    `json:"comments,omitempty"`
	DecidedByID *string    `json:"decided_by_id,omitempty"`
	DecidedDate *time.Time `json:"decided_date,omitempty"`
	CreatedDate time.Time  `json:"created_date"`
}

// InstanceView is the outbound projection consumed by UI collaborators.
type InstanceView struct {
	ID              string           `json:"id"`
	DefinitionID    string           `json:"definition_id"`
	ObjectAPIName   string           `json:"object_api_name"`
	RecordID        string           `json:"record_id"`
	Status          string           `json:"status"`
	CurrentNodeName string           `json:"current_node_name,omitempty"`
	InitiatorID     string           `json:"initiator_id"`
	ErrorMessage    *string          `json:"error_message,omitempty"`
	StartedDate     time.Time        `json:"started_date"`
	CompletedDate   *time.Time       `json:"completed_date,omitempty"`
	History         []DecisionRecord `json:"history"`
}

// TaskView is the outbound projection of a pending task for worklist screens.
type TaskView struct {
	ID            string    `json:"id"`
	InstanceID    string    `json:"instance_id"`
	NodeName      string    `json:"node_name"`
	ObjectAPIName string    `json:"object_api_name"`
	RecordID      string    `json:"record_id"`
	InitiatorID   string    `json:"initiator_id"`
	CreatedDate   time.Time `json:"created_date"`
}
