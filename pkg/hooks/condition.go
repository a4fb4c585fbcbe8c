package hooks

import (
	"fmt"
	"strings"

	"github.com/cuemby/addonkit/pkg/serial"
	"github.com/google/cel-go/cel"
)

// condition wraps a compiled CEL program guarding a hook. When disabled, Eval
// always returns true.
type condition struct {
	expr    string
	prog    cel.Program
	enabled bool
}

func newCondition(expr string) (condition, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return condition{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("channel", cel.StringType),
		// Payload as plain values (maps, lists, scalars)
		cel.Variable("payload", cel.DynType),
	)
	if err != nil {
		return condition{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return condition{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return condition{}, iss2.Err()
	}
	if out := checked.OutputType().String(); out != "bool" && out != "dyn" {
		return condition{}, fmt.Errorf("condition must evaluate to bool, got %s", out)
	}
	prog, err := env.Program(checked)
	if err != nil {
		return condition{}, err
	}
	return condition{expr: expr, prog: prog, enabled: true}, nil
}

// Eval evaluates the condition for one invocation. A non-bool result counts
// as false.
func (c condition) Eval(channel string, payload any) (bool, error) {
	if !c.enabled {
		return true, nil
	}
	out, _, err := c.prog.Eval(map[string]any{
		"channel": channel,
		"payload": celValue(payload),
	})
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", c.expr, err)
	}
	b, ok := out.Value().(bool)
	return ok && b, nil
}

// celValue passes plain values through and reduces anything else to its JSON
// form, which CEL can index
func celValue(v any) any {
	switch v.(type) {
	case nil, bool, string, int, int32, int64, uint, uint32, uint64, float32, float64,
		[]any, map[string]any, []string, map[string]string:
		return v
	}
	encoded, err := serial.Serialize(v)
	if err != nil {
		return nil
	}
	return serial.Unserialize(encoded)
}
