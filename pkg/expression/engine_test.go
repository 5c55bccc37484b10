package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngine_EvaluateBool(t *testing.T) {
	e := NewEngine()

	env := map[string]interface{}{
		"amount":   5000.0,
		"category": "laptop",
	}

	tests := []struct {
		name     string
		expr     string
		expected bool
	}{
		{"numeric comparison", "amount > 1000", true},
		{"numeric comparison false", "amount > 10000", false},
		{"string equality", "category == 'laptop'", true},
		{"conjunction", "amount > 1000 && category == 'laptop'", true},
		{"builtin UPPER", "UPPER(category) == 'LAPTOP'", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := e.EvaluateBool(tc.expr, env)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestEngine_EvaluateBool_NonBooleanResult(t *testing.T) {
	e := NewEngine()

	_, err := e.EvaluateBool("amount + 1", map[string]interface{}{"amount": 1})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected bool")
}

func TestEngine_Compile(t *testing.T) {
	e := NewEngine()

	assert.NoError(t, e.Compile("amount > 1000"))
	assert.Error(t, e.Compile("amount >"))
}

func TestEngine_ProgramCacheReuse(t *testing.T) {
	e := NewEngine()

	// Same source twice should hit the cache and still evaluate correctly
	for i := 0; i < 2; i++ {
		result, err := e.EvaluateBool("x == 1", map[string]interface{}{"x": 1})
		assert.NoError(t, err)
		assert.True(t, result)
	}
	assert.Len(t, e.programCache, 1)
}
