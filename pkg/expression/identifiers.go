package expression

import (
	"fmt"
	"sort"
	"strings"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// identifierCollector walks an expr AST and records every root identifier.
type identifierCollector struct {
	names map[string]bool
}

// ReferencedIdentifiers returns the distinct variable names an expression
// reads, sorted alphabetically. Graph validation uses this to reject guards
// that reference variables the definition never declares.
func ReferencedIdentifiers(expression string) ([]string, error) {
	tree, err := parser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to parse expression: %w", err)
	}

	c := &identifierCollector{names: make(map[string]bool)}
	c.walk(&tree.Node)

	builtins := builtinNames()
	out := make([]string, 0, len(c.names))
	for name := range c.names {
		if builtins[name] {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (c *identifierCollector) walk(node *ast.Node) {
	if node == nil || *node == nil {
		return
	}

	switch v := (*node).(type) {
	case *ast.IdentifierNode:
		if !isNilIdentifier(v) {
			c.names[v.Value] = true
		}
	case *ast.BinaryNode:
		c.walk(&v.Left)
		c.walk(&v.Right)
	case *ast.UnaryNode:
		c.walk(&v.Node)
	case *ast.ConditionalNode:
		c.walk(&v.Cond)
		c.walk(&v.Exp1)
		c.walk(&v.Exp2)
	case *ast.MemberNode:
		// Only the root object of a member chain is a variable reference
		c.walk(&v.Node)
	case *ast.CallNode:
		// The callee may be a builtin function identifier; arguments may
		// reference variables either way
		c.walk(&v.Callee)
		for i := range v.Arguments {
			c.walk(&v.Arguments[i])
		}
	case *ast.ArrayNode:
		for i := range v.Nodes {
			c.walk(&v.Nodes[i])
		}
	case *ast.MapNode:
		for i := range v.Pairs {
			c.walk(&v.Pairs[i])
		}
	case *ast.PairNode:
		c.walk(&v.Value)
	}
}

// isNilIdentifier reports whether an identifier spells a null literal. expr
// parses "null"/"nil" as identifiers in untyped mode.
func isNilIdentifier(id *ast.IdentifierNode) bool {
	val := strings.ToLower(id.Value)
	return val == "null" || val == "nil"
}
