// Package expr evaluates binding transform expressions with a JavaScript
// runtime (goja). A binding's value_from can reshape the bound UI value
// before it is written into the execution payload.
//
// Two expression forms are supported:
//   - Simple expressions: $(value * 2), $(values["KSampler.steps"])
//   - Code blocks: ${ if (value > 10) return 10; return value; }
//
// Anything else is returned as a literal.
package expr

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// Context carries the values visible to a transform expression.
type Context struct {
	Value  any            // the bound component's raw value
	Values map[string]any // every UI value in the request, by component id
}

// Evaluator evaluates transform expressions. A fresh VM is set up per
// evaluation so expressions cannot leak state into each other.
type Evaluator struct{}

// NewEvaluator creates an Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

func (e *Evaluator) setupVM(ctx Context) (*goja.Runtime, error) {
	vm := goja.New()
	if err := vm.Set("value", ctx.Value); err != nil {
		return nil, fmt.Errorf("set value: %w", err)
	}
	values := ctx.Values
	if values == nil {
		values = map[string]any{}
	}
	if err := vm.Set("values", values); err != nil {
		return nil, fmt.Errorf("set values: %w", err)
	}
	return vm, nil
}

// Evaluate evaluates a transform expression against the given context and
// returns the resulting value. A string without an expression form is
// returned unchanged.
func (e *Evaluator) Evaluate(expression string, ctx Context) (any, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return ctx.Value, nil
	}

	switch {
	case strings.HasPrefix(trimmed, "${"):
		idx := findMatchingBrace(trimmed)
		if idx < 0 {
			return nil, fmt.Errorf("unterminated code block in %q", expression)
		}
		vm, err := e.setupVM(ctx)
		if err != nil {
			return nil, err
		}
		code := strings.TrimSpace(trimmed[2:idx])
		val, err := vm.RunString(fmt.Sprintf("(function() { %s })()", code))
		if err != nil {
			return nil, fmt.Errorf("transform error: %w", err)
		}
		return val.Export(), nil

	case strings.HasPrefix(trimmed, "$(") && strings.HasSuffix(trimmed, ")"):
		vm, err := e.setupVM(ctx)
		if err != nil {
			return nil, err
		}
		code := trimmed[2 : len(trimmed)-1]
		// Object literals need parentheses to parse as an expression.
		if strings.HasPrefix(strings.TrimSpace(code), "{") {
			code = "(" + code + ")"
		}
		val, err := vm.RunString(code)
		if err != nil {
			return nil, fmt.Errorf("transform error in $(%s): %w", code, err)
		}
		if val == goja.Undefined() {
			return nil, fmt.Errorf("transform $(%s) returned undefined", code)
		}
		return val.Export(), nil

	default:
		return expression, nil
	}
}

// findMatchingBrace returns the index of the brace closing a ${...} block,
// or -1 when unbalanced.
func findMatchingBrace(s string) int {
	depth := 0
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
