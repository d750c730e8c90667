package validator

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"permitflow/internal/formdef"
)

// crossFieldValidator evaluates a CEL expression over the numeric values of several fields.
// The expression sees a map `n` of field key to number. It is skipped while any referenced
// field is blank or not numeric; the required and number rules report those.
type crossFieldValidator struct {
	rule    formdef.Rule
	program cel.Program
}

func (v *crossFieldValidator) RuleKey() string    { return v.rule.Key }
func (v *crossFieldValidator) RuleName() string   { return v.rule.Name }
func (v *crossFieldValidator) RuleType() RuleType { return RuleCrossField }

func (v *crossFieldValidator) Check(in *Input) []Finding {
	values := make(map[string]float64, len(v.rule.Fields))
	for _, key := range v.rule.Fields {
		n, ok := parseNumber(in.Form.Value(key))
		if !ok {
			return nil
		}
		values[key] = n
	}

	out, _, err := v.program.Eval(map[string]any{"n": values})
	if err != nil {
		return []Finding{{
			FieldKey: v.rule.Fields[0],
			Message:  fmt.Sprintf("%s could not be evaluated: %v", v.rule.Name, err),
		}}
	}
	passed, _ := out.Value().(bool)
	if passed {
		return []Finding{{Passed: true, FieldKey: v.rule.Fields[0]}}
	}
	findings := make([]Finding, 0, len(v.rule.Fields))
	for _, key := range v.rule.Fields {
		findings = append(findings, Finding{FieldKey: key, Message: v.rule.Message})
	}
	return findings
}

func newCELEnv() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("n", cel.MapType(cel.StringType, cel.DoubleType)))
}

func compileCrossField(env *cel.Env, rule formdef.Rule) (*crossFieldValidator, error) {
	expr := strings.TrimSpace(rule.Expr)
	if expr == "" {
		return nil, fmt.Errorf("rule %s: expression required", rule.Key)
	}
	if len(rule.Fields) == 0 {
		return nil, fmt.Errorf("rule %s: at least one field required", rule.Key)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.Key, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("rule %s: expression must evaluate to bool", rule.Key)
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.Key, err)
	}
	return &crossFieldValidator{rule: rule, program: program}, nil
}
