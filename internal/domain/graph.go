package domain

import (
	"fmt"

	"github.com/assetflow/backend/internal/domain/models"
	"github.com/assetflow/backend/pkg/constants"
)

// GraphErrorKind classifies structural validation failures.
type GraphErrorKind string

const (
	// GraphErrInvalid covers malformed graphs: duplicate node ids, missing
	// start node, approval nodes without assignment rules.
	GraphErrInvalid GraphErrorKind = "Invalid"
	// GraphErrDanglingEdge is an edge referencing a nonexistent node id.
	GraphErrDanglingEdge GraphErrorKind = "DanglingEdge"
	// GraphErrUnreachableNode is a node with no path from the start node.
	GraphErrUnreachableNode GraphErrorKind = "UnreachableNode"
	// GraphErrNoTerminal means no end node is reachable from start.
	GraphErrNoTerminal GraphErrorKind = "NoTerminal"
	// GraphErrCycleWithoutCondition is a cycle that passes through neither a
	// condition node nor a parallel join. Such a loop could never exit, so it
	// is rejected at validation time instead of spinning at runtime.
	GraphErrCycleWithoutCondition GraphErrorKind = "CycleWithoutCondition"
)

// GraphError is a structural defect found during definition validation.
type GraphError struct {
	Kind    GraphErrorKind
	Ref     string // offending node id or edge description
	Message string
}

func (e *GraphError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Ref)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newGraphError(kind GraphErrorKind, ref, format string, args ...interface{}) *GraphError {
	return &GraphError{Kind: kind, Ref: ref, Message: fmt.Sprintf(format, args...)}
}

// GraphModel wraps a definition graph with the lookups the instance engine
// needs: node resolution, ordered outgoing edges, inbound degrees for join
// detection. It is immutable once built.
type GraphModel struct {
	graph    models.Graph
	nodes    map[string]*models.Node
	outgoing map[string][]models.Edge
	inbound  map[string][]models.Edge
	start    *models.Node
}

// NewGraphModel indexes a graph. The graph is not validated here; call
// Validate before activating the owning definition.
func NewGraphModel(g models.Graph) *GraphModel {
	m := &GraphModel{
		graph:    g,
		nodes:    make(map[string]*models.Node, len(g.Nodes)),
		outgoing: make(map[string][]models.Edge),
		inbound:  make(map[string][]models.Edge),
	}
	for i := range g.Nodes {
		node := &g.Nodes[i]
		m.nodes[node.ID] = node
		if node.Type == constants.NodeTypeStart && m.start == nil {
			m.start = node
		}
	}
	// Declaration order of edges is preserved: the first matching guard wins
	// and the first declared unguarded edge is the default branch.
	for _, e := range g.Edges {
		m.outgoing[e.Source] = append(m.outgoing[e.Source], e)
		m.inbound[e.Target] = append(m.inbound[e.Target], e)
	}
	return m
}

// Node returns the node with the given id.
func (m *GraphModel) Node(id string) (*models.Node, bool) {
	n, ok := m.nodes[id]
	return n, ok
}

// StartNode returns the graph's start node, or nil if there is none.
func (m *GraphModel) StartNode() *models.Node {
	return m.start
}

// Nodes returns all nodes in declaration order.
func (m *GraphModel) Nodes() []models.Node {
	return m.graph.Nodes
}

// OutgoingEdges returns the edges leaving nodeID in declaration order.
func (m *GraphModel) OutgoingEdges(nodeID string) []models.Edge {
	return m.outgoing[nodeID]
}

// InboundEdges returns the edges entering nodeID in declaration order.
func (m *GraphModel) InboundEdges(nodeID string) []models.Edge {
	return m.inbound[nodeID]
}

// IsParallelJoin reports whether nodeID is a parallel node acting as a join:
// multiple inbound branches that must all arrive before the node is entered.
func (m *GraphModel) IsParallelJoin(nodeID string) bool {
	n, ok := m.nodes[nodeID]
	if !ok {
		return false
	}
	return n.Type == constants.NodeTypeParallel && len(m.inbound[nodeID]) > 1
}

// IsParallelFork reports whether nodeID is a parallel node acting as a fork:
// every outgoing edge is taken concurrently.
func (m *GraphModel) IsParallelFork(nodeID string) bool {
	n, ok := m.nodes[nodeID]
	if !ok {
		return false
	}
	return n.Type == constants.NodeTypeParallel && len(m.outgoing[nodeID]) > 1
}

// Validate checks the graph's structure. It returns the first defect found as
// a *GraphError; guard compilation is checked separately by the definition
// service, which owns the expression engine.
func (m *GraphModel) Validate() error {
	if err := m.validateShape(); err != nil {
		return err
	}
	if err := m.validateEdges(); err != nil {
		return err
	}
	if err := m.validateReachability(); err != nil {
		return err
	}
	return m.validateCycles()
}

func (m *GraphModel) validateShape() error {
	if len(m.graph.Nodes) == 0 {
		return newGraphError(GraphErrInvalid, "", "graph has no nodes")
	}

	seen := make(map[string]bool, len(m.graph.Nodes))
	startCount := 0
	for _, n := range m.graph.Nodes {
		if n.ID == "" {
			return newGraphError(GraphErrInvalid, "", "node with empty id")
		}
		if seen[n.ID] {
			return newGraphError(GraphErrInvalid, n.ID, "duplicate node id")
		}
		seen[n.ID] = true

		switch n.Type {
		case constants.NodeTypeStart:
			startCount++
		case constants.NodeTypeApproval:
			if n.Assignment == nil {
				return newGraphError(GraphErrInvalid, n.ID, "approval node has no assignment rule")
			}
			if !validAssigneeType(n.Assignment.Type) {
				return newGraphError(GraphErrInvalid, n.ID, "unknown assignee type %q", n.Assignment.Type)
			}
			if !validApprovalMode(n.Assignment.Mode) {
				return newGraphError(GraphErrInvalid, n.ID, "unknown approval mode %q", n.Assignment.Mode)
			}
		case constants.NodeTypeEnd, constants.NodeTypeCondition, constants.NodeTypeParallel, constants.NodeTypeNotify:
			// no type-specific shape requirements
		default:
			return newGraphError(GraphErrInvalid, n.ID, "unknown node type %q", n.Type)
		}
	}

	if startCount == 0 {
		return newGraphError(GraphErrInvalid, "", "graph has no start node")
	}
	if startCount > 1 {
		return newGraphError(GraphErrInvalid, "", "graph has %d start nodes, expected 1", startCount)
	}
	return nil
}

func (m *GraphModel) validateEdges() error {
	for _, e := range m.graph.Edges {
		ref := fmt.Sprintf("%s->%s", e.Source, e.Target)
		if _, ok := m.nodes[e.Source]; !ok {
			return newGraphError(GraphErrDanglingEdge, ref, "edge source %q does not exist", e.Source)
		}
		if _, ok := m.nodes[e.Target]; !ok {
			return newGraphError(GraphErrDanglingEdge, ref, "edge target %q does not exist", e.Target)
		}
	}
	return nil
}

func (m *GraphModel) validateReachability() error {
	reachable := make(map[string]bool)
	queue := []string{m.start.ID}
	reachable[m.start.ID] = true

	endReachable := false
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if m.nodes[id].Type == constants.NodeTypeEnd {
			endReachable = true
		}
		for _, e := range m.outgoing[id] {
			if !reachable[e.Target] {
				reachable[e.Target] = true
				queue = append(queue, e.Target)
			}
		}
	}

	for _, n := range m.graph.Nodes {
		if !reachable[n.ID] {
			return newGraphError(GraphErrUnreachableNode, n.ID, "node is not reachable from start")
		}
	}
	if !endReachable {
		return newGraphError(GraphErrNoTerminal, "", "no end node is reachable from start")
	}
	return nil
}

// validateCycles rejects cycles that contain neither a condition node nor a
// parallel join, using Tarjan's strongly connected components. A loop with a
// condition can exit through a guard; a loop without one never terminates.
func (m *GraphModel) validateCycles() error {
	index := 0
	indices := make(map[string]int)
	lowlink := make(map[string]int)
	onStack := make(map[string]bool)
	var stack []string

	var check func(component []string) *GraphError
	check = func(component []string) *GraphError {
		for _, id := range component {
			n := m.nodes[id]
			if n.Type == constants.NodeTypeCondition || m.IsParallelJoin(id) {
				return nil
			}
		}
		return newGraphError(GraphErrCycleWithoutCondition, component[0],
			"cycle of %d node(s) has no condition or parallel join", len(component))
	}

	var strongconnect func(v string) *GraphError
	strongconnect = func(v string) *GraphError {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		selfLoop := false
		for _, e := range m.outgoing[v] {
			w := e.Target
			if w == v {
				selfLoop = true
			}
			if _, visited := indices[w]; !visited {
				if err := strongconnect(w); err != nil {
					return err
				}
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] && indices[w] < lowlink[v] {
				lowlink[v] = indices[w]
			}
		}

		if lowlink[v] == indices[v] {
			var component []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				component = append(component, w)
				if w == v {
					break
				}
			}
			// Only components that actually contain a cycle matter
			if len(component) > 1 || selfLoop {
				if err := check(component); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for _, n := range m.graph.Nodes {
		if _, visited := indices[n.ID]; !visited {
			if err := strongconnect(n.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func validAssigneeType(t string) bool {
	switch t {
	case constants.AssigneeTypeUser, constants.AssigneeTypeDept,
		constants.AssigneeTypeRole, constants.AssigneeTypeSuperior:
		return true
	}
	return false
}

func validApprovalMode(mode string) bool {
	switch mode {
	case constants.ApprovalModeAny, constants.ApprovalModeAll, constants.ApprovalModeSequence:
		return true
	}
	return false
}
