package validator

import (
	"fmt"
	"strconv"
	"strings"

	"permitflow/internal/domain"
	"permitflow/internal/formdef"
)

// requiredFieldValidator checks that a required field is not blank.
type requiredFieldValidator struct {
	field formdef.Field
}

func (v *requiredFieldValidator) RuleKey() string    { return "req." + v.field.Key }
func (v *requiredFieldValidator) RuleName() string   { return "Required: " + v.field.Label }
func (v *requiredFieldValidator) RuleType() RuleType { return RuleRequired }

func (v *requiredFieldValidator) Check(in *Input) []Finding {
	present := strings.TrimSpace(in.Form.Value(v.field.Key)) != ""
	return []Finding{{
		Passed:   present,
		FieldKey: v.field.Key,
		Missing:  !present,
		Label:    v.field.Label,
		Message:  fieldMessage(present, v.field.Label),
	}}
}

func fieldMessage(passed bool, label string) string {
	if passed {
		return fmt.Sprintf("%s is present", label)
	}
	return fmt.Sprintf("%s is required", label)
}

// choiceValidator checks that a filled-in choice field holds a member of its closed list.
type choiceValidator struct {
	field formdef.Field
}

func (v *choiceValidator) RuleKey() string    { return "fmt.choice." + v.field.Key }
func (v *choiceValidator) RuleName() string   { return "Choice: " + v.field.Label }
func (v *choiceValidator) RuleType() RuleType { return RuleFormat }

func (v *choiceValidator) Check(in *Input) []Finding {
	val := strings.TrimSpace(in.Form.Value(v.field.Key))
	if val == "" {
		return nil
	}
	if formdef.InList(v.field.Choices, val) {
		return []Finding{{Passed: true, FieldKey: v.field.Key}}
	}
	return []Finding{{
		FieldKey: v.field.Key,
		Label:    v.field.Label,
		Message:  fmt.Sprintf("%s %q is not a valid option.", v.field.Label, val),
	}}
}

// numberValidator checks that a filled-in numeric field holds a non-negative number.
type numberValidator struct {
	field formdef.Field
}

func (v *numberValidator) RuleKey() string    { return "fmt.number." + v.field.Key }
func (v *numberValidator) RuleName() string   { return "Number: " + v.field.Label }
func (v *numberValidator) RuleType() RuleType { return RuleFormat }

func (v *numberValidator) Check(in *Input) []Finding {
	val := strings.TrimSpace(in.Form.Value(v.field.Key))
	if val == "" {
		return nil
	}
	if _, ok := parseNumber(val); ok {
		return []Finding{{Passed: true, FieldKey: v.field.Key}}
	}
	return []Finding{{
		FieldKey: v.field.Key,
		Label:    v.field.Label,
		Message:  fmt.Sprintf("%s must be a valid number.", v.field.Label),
	}}
}

// parseNumber accepts non-negative numbers, tolerating thousands separators.
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// fieldRules builds the presence and format rules for a step's fields.
// Flag and signature fields belong to the declaration rule.
func fieldRules(step *formdef.Step) []Rule {
	var rules []Rule
	for _, f := range step.Fields {
		if f.Kind == domain.FieldKindFlag || f.Kind == domain.FieldKindSignature {
			continue
		}
		if !f.Optional {
			rules = append(rules, &requiredFieldValidator{field: f})
		}
		switch f.Kind {
		case domain.FieldKindChoice:
			rules = append(rules, &choiceValidator{field: f})
		case domain.FieldKindNumber:
			rules = append(rules, &numberValidator{field: f})
		}
	}
	return rules
}
