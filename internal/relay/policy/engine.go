// Package policy evaluates which assistant tool invocations the client is
// allowed to execute.
package policy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a policy engine from rego policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tool_policy.decision"),
		rego.Module("tool_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate decides whether a tool invocation may be executed.
// Returns: decision (allow or block) and an optional reason.
func (e *Engine) Evaluate(ctx context.Context, function string, args json.RawMessage) (string, string, error) {
	input := map[string]interface{}{
		"function": function,
	}
	var argsMap map[string]interface{}
	if len(args) > 0 && json.Unmarshal(args, &argsMap) == nil {
		input["args"] = argsMap
	} else {
		input["args"] = map[string]interface{}{}
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy defines a default, so this only happens with a
		// broken policy module.
		return "allow", "default", nil
	}

	val := results[0].Expressions[0].Value
	if s, ok := val.(string); ok {
		if s == "block" {
			return s, "blocked by tool policy", nil
		}
		return s, "", nil
	}

	return "allow", "unexpected return type", nil
}

// DefaultPolicy is the default policy content. Map navigation is allowed;
// script execution is never delegated to the client, and absurd zoom
// levels are rejected before they reach the widget.
const DefaultPolicy = `
package tool_policy

default decision = "allow"

decision = "block" {
	input.function == "execute_script"
}

decision = "block" {
	input.function == "update_map"
	input.args.zoom > 22
}
`
