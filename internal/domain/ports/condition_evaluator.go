package ports

// ConditionEvaluator evaluates condition-edge guards against instance
// variable bindings. pkg/expression provides the production implementation.
type ConditionEvaluator interface {
	EvaluateBool(expression string, env map[string]interface{}) (bool, error)
	Compile(expression string) error
}
