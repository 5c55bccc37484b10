package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assetflow/backend/internal/domain/models"
	"github.com/assetflow/backend/pkg/constants"
)

func approvalNode(id string) models.Node {
	return models.Node{
		ID:   id,
		Type: constants.NodeTypeApproval,
		Name: id,
		Assignment: &models.AssignmentRule{
			Type: constants.AssigneeTypeUser,
			Mode: constants.ApprovalModeAny,
		},
	}
}

func simpleGraph() models.Graph {
	return models.Graph{
		Nodes: []models.Node{
			{ID: "start", Type: constants.NodeTypeStart},
			approvalNode("approve"),
			{ID: "end", Type: constants.NodeTypeEnd},
		},
		Edges: []models.Edge{
			{Source: "start", Target: "approve"},
			{Source: "approve", Target: "end"},
		},
	}
}

func TestGraphModel_Validate_Valid(t *testing.T) {
	m := NewGraphModel(simpleGraph())
	assert.NoError(t, m.Validate())
}

func TestGraphModel_Validate_Shape(t *testing.T) {
	tests := []struct {
		name    string
		graph   models.Graph
		kind    GraphErrorKind
		refPart string
	}{
		{
			name:  "empty graph",
			graph: models.Graph{},
			kind:  GraphErrInvalid,
		},
		{
			name: "no start node",
			graph: models.Graph{
				Nodes: []models.Node{
					approvalNode("approve"),
					{ID: "end", Type: constants.NodeTypeEnd},
				},
				Edges: []models.Edge{{Source: "approve", Target: "end"}},
			},
			kind: GraphErrInvalid,
		},
		{
			name: "two start nodes",
			graph: models.Graph{
				Nodes: []models.Node{
					{ID: "s1", Type: constants.NodeTypeStart},
					{ID: "s2", Type: constants.NodeTypeStart},
					{ID: "end", Type: constants.NodeTypeEnd},
				},
				Edges: []models.Edge{
					{Source: "s1", Target: "end"},
					{Source: "s2", Target: "end"},
				},
			},
			kind: GraphErrInvalid,
		},
		{
			name: "duplicate node id",
			graph: models.Graph{
				Nodes: []models.Node{
					{ID: "start", Type: constants.NodeTypeStart},
					{ID: "end", Type: constants.NodeTypeEnd},
					{ID: "end", Type: constants.NodeTypeEnd},
				},
				Edges: []models.Edge{{Source: "start", Target: "end"}},
			},
			kind:    GraphErrInvalid,
			refPart: "end",
		},
		{
			name: "approval node without assignment",
			graph: models.Graph{
				Nodes: []models.Node{
					{ID: "start", Type: constants.NodeTypeStart},
					{ID: "approve", Type: constants.NodeTypeApproval},
					{ID: "end", Type: constants.NodeTypeEnd},
				},
				Edges: []models.Edge{
					{Source: "start", Target: "approve"},
					{Source: "approve", Target: "end"},
				},
			},
			kind:    GraphErrInvalid,
			refPart: "approve",
		},
		{
			name: "unknown node type",
			graph: models.Graph{
				Nodes: []models.Node{
					{ID: "start", Type: constants.NodeTypeStart},
					{ID: "mystery", Type: "teleport"},
					{ID: "end", Type: constants.NodeTypeEnd},
				},
				Edges: []models.Edge{
					{Source: "start", Target: "mystery"},
					{Source: "mystery", Target: "end"},
				},
			},
			kind:    GraphErrInvalid,
			refPart: "mystery",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewGraphModel(tt.graph).Validate()
			require.Error(t, err)
			var gerr *GraphError
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, tt.kind, gerr.Kind)
			if tt.refPart != "" {
				assert.Contains(t, gerr.Ref, tt.refPart)
			}
		})
	}
}

func TestGraphModel_Validate_DanglingEdge(t *testing.T) {
	g := simpleGraph()
	g.Edges = append(g.Edges, models.Edge{Source: "approve", Target: "ghost"})

	err := NewGraphModel(g).Validate()
	require.Error(t, err)
	var gerr *GraphError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, GraphErrDanglingEdge, gerr.Kind)
	assert.Contains(t, gerr.Ref, "ghost")
}

func TestGraphModel_Validate_UnreachableNode(t *testing.T) {
	g := simpleGraph()
	g.Nodes = append(g.Nodes, approvalNode("orphan"))
	g.Edges = append(g.Edges, models.Edge{Source: "orphan", Target: "end"})

	err := NewGraphModel(g).Validate()
	require.Error(t, err)
	var gerr *GraphError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, GraphErrUnreachableNode, gerr.Kind)
	assert.Equal(t, "orphan", gerr.Ref)
}

func TestGraphModel_Validate_NoTerminal(t *testing.T) {
	g := models.Graph{
		Nodes: []models.Node{
			{ID: "start", Type: constants.NodeTypeStart},
			approvalNode("approve"),
		},
		Edges: []models.Edge{
			{Source: "start", Target: "approve"},
		},
	}

	err := NewGraphModel(g).Validate()
	require.Error(t, err)
	var gerr *GraphError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, GraphErrNoTerminal, gerr.Kind)
}

func TestGraphModel_Validate_CycleWithoutCondition(t *testing.T) {
	// start -> a -> b -> a with no condition node in the loop: rejected
	g := models.Graph{
		Nodes: []models.Node{
			{ID: "start", Type: constants.NodeTypeStart},
			approvalNode("a"),
			approvalNode("b"),
			{ID: "end", Type: constants.NodeTypeEnd},
		},
		Edges: []models.Edge{
			{Source: "start", Target: "a"},
			{Source: "a", Target: "b"},
			{Source: "b", Target: "a"},
			{Source: "b", Target: "end"},
		},
	}

	err := NewGraphModel(g).Validate()
	require.Error(t, err)
	var gerr *GraphError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, GraphErrCycleWithoutCondition, gerr.Kind)
}

func TestGraphModel_Validate_SelfLoopWithoutCondition(t *testing.T) {
	g := simpleGraph()
	g.Edges = append(g.Edges, models.Edge{Source: "approve", Target: "approve"})

	err := NewGraphModel(g).Validate()
	require.Error(t, err)
	var gerr *GraphError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, GraphErrCycleWithoutCondition, gerr.Kind)
}

func TestGraphModel_Validate_CycleThroughConditionAllowed(t *testing.T) {
	// Rework loop: condition routes back to the approval node when the
	// approver asks for changes. The condition gives the loop an exit.
	g := models.Graph{
		Nodes: []models.Node{
			{ID: "start", Type: constants.NodeTypeStart},
			approvalNode("approve"),
			{ID: "check", Type: constants.NodeTypeCondition},
			{ID: "end", Type: constants.NodeTypeEnd},
		},
		Edges: []models.Edge{
			{Source: "start", Target: "approve"},
			{Source: "approve", Target: "check"},
			{Source: "check", Target: "approve", Guard: "needsRework == true"},
			{Source: "check", Target: "end"},
		},
	}

	assert.NoError(t, NewGraphModel(g).Validate())
}

func TestGraphModel_ParallelForkJoin(t *testing.T) {
	g := models.Graph{
		Nodes: []models.Node{
			{ID: "start", Type: constants.NodeTypeStart},
			{ID: "fork", Type: constants.NodeTypeParallel},
			approvalNode("finance"),
			approvalNode("it"),
			{ID: "join", Type: constants.NodeTypeParallel},
			{ID: "end", Type: constants.NodeTypeEnd},
		},
		Edges: []models.Edge{
			{Source: "start", Target: "fork"},
			{Source: "fork", Target: "finance"},
			{Source: "fork", Target: "it"},
			{Source: "finance", Target: "join"},
			{Source: "it", Target: "join"},
			{Source: "join", Target: "end"},
		},
	}

	m := NewGraphModel(g)
	require.NoError(t, m.Validate())

	assert.True(t, m.IsParallelFork("fork"))
	assert.False(t, m.IsParallelJoin("fork"))
	assert.True(t, m.IsParallelJoin("join"))
	assert.False(t, m.IsParallelFork("join"))
	assert.False(t, m.IsParallelFork("finance"))

	assert.Len(t, m.OutgoingEdges("fork"), 2)
	assert.Len(t, m.InboundEdges("join"), 2)
}

func TestGraphModel_EdgeOrderPreserved(t *testing.T) {
	g := models.Graph{
		Nodes: []models.Node{
			{ID: "start", Type: constants.NodeTypeStart},
			{ID: "route", Type: constants.NodeTypeCondition},
			approvalNode("high"),
			approvalNode("low"),
			{ID: "end", Type: constants.NodeTypeEnd},
		},
		Edges: []models.Edge{
			{Source: "start", Target: "route"},
			{Source: "route", Target: "high", Guard: "amount > 1000"},
			{Source: "route", Target: "low"},
			{Source: "high", Target: "end"},
			{Source: "low", Target: "end"},
		},
	}

	m := NewGraphModel(g)
	out := m.OutgoingEdges("route")
	require.Len(t, out, 2)
	assert.Equal(t, "high", out[0].Target)
	assert.Equal(t, "low", out[1].Target)
}
