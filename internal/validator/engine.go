package validator

import (
	"fmt"
	"strings"

	"permitflow/internal/domain"
	"permitflow/internal/formdef"
)

// Result is the outcome of validating one step.
type Result struct {
	OK            bool              `json:"ok"`
	Step          int               `json:"step"`
	MissingFields []string          `json:"missing_fields,omitempty"`
	Message       string            `json:"message,omitempty"`
	FieldErrors   map[string]string `json:"field_errors,omitempty"`
}

// Err returns the failure as a *domain.ValidationError, or nil when the step passed.
func (r *Result) Err() error {
	if r.OK {
		return nil
	}
	return &domain.ValidationError{Step: r.Step, MissingFields: r.MissingFields, Message: r.Message}
}

// StepValidator holds the compiled rules of one form definition, one registry per step.
type StepValidator struct {
	def   *formdef.Definition
	steps []*Registry
}

// NewStepValidator compiles the rules of every step. It fails if a cross-field expression does not compile.
func NewStepValidator(def *formdef.Definition) (*StepValidator, error) {
	env, err := newCELEnv()
	if err != nil {
		return nil, fmt.Errorf("creating CEL environment: %w", err)
	}

	sv := &StepValidator{def: def, steps: make([]*Registry, def.StepCount())}
	for i := range def.Steps {
		step := &def.Steps[i]
		reg := NewRegistry()
		for _, r := range fieldRules(step) {
			reg.Register(r)
		}
		for _, a := range step.Attachments {
			reg.Register(&attachmentValidator{req: a})
		}
		for _, rule := range step.Rules {
			xf, err := compileCrossField(env, rule)
			if err != nil {
				return nil, fmt.Errorf("form %s step %d: %w", def.Type, step.ID, err)
			}
			reg.Register(xf)
		}
		if step.Declaration != nil {
			reg.Register(newDeclarationValidator(def, *step.Declaration))
		}
		sv.steps[i] = reg
	}
	return sv, nil
}

// Definition returns the form definition the validator was built from.
func (v *StepValidator) Definition() *formdef.Definition { return v.def }

// Rules returns the rules registered for a step.
func (v *StepValidator) Rules(step int) ([]Rule, error) {
	if _, err := v.def.Step(step); err != nil {
		return nil, err
	}
	return v.steps[step-1].All(), nil
}

// Validate checks one step. An out-of-range step fails with a message rather than panicking.
func (v *StepValidator) Validate(step int, f FormReader, opts Options) Result {
	st, err := v.def.Step(step)
	if err != nil {
		return Result{Step: step, Message: err.Error()}
	}
	if opts.Mode == "" {
		opts.Mode = PresenceOnly
	}
	in := &Input{Def: v.def, Step: st, Form: f, Options: opts}

	res := Result{Step: step}
	var messages []string
	seen := make(map[string]bool)
	for _, rule := range v.steps[step-1].All() {
		for _, finding := range rule.Check(in) {
			if finding.Passed {
				continue
			}
			if res.FieldErrors == nil {
				res.FieldErrors = make(map[string]string)
			}
			if _, exists := res.FieldErrors[finding.FieldKey]; !exists {
				res.FieldErrors[finding.FieldKey] = finding.Message
			}
			if finding.Missing {
				res.MissingFields = append(res.MissingFields, finding.Label)
				continue
			}
			if !seen[finding.Message] {
				seen[finding.Message] = true
				messages = append(messages, finding.Message)
			}
		}
	}

	if len(res.MissingFields) == 0 && len(messages) == 0 {
		res.OK = true
		return res
	}
	if len(res.MissingFields) > 0 {
		messages = append([]string{"Please complete the following: " + strings.Join(res.MissingFields, ", ") + "."}, messages...)
	}
	res.Message = strings.Join(messages, " ")
	return res
}

// ValidateAll checks every step in order and returns the first failure, or an OK result.
func (v *StepValidator) ValidateAll(f FormReader, opts Options) Result {
	for step := 1; step <= v.def.StepCount(); step++ {
		if res := v.Validate(step, f, opts); !res.OK {
			return res
		}
	}
	return Result{OK: true, Step: v.def.StepCount()}
}
