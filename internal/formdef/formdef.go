// Package formdef holds the static definitions of the permit wizards: their steps, fields,
// attachment slots, cross-field rules and the closed lists fields may draw from.
package formdef

import (
	"embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"permitflow/internal/domain"
)

//go:embed forms/*.yaml
var formFS embed.FS

// Field is a single input on a wizard step.
type Field struct {
	Key      string           `yaml:"key" json:"key"`
	Label    string           `yaml:"label" json:"label"`
	Kind     domain.FieldKind `yaml:"kind" json:"kind"`
	Optional bool             `yaml:"optional" json:"optional"`
	Choices  string           `yaml:"choices,omitempty" json:"choices,omitempty"`
}

// Rule is a cross-field check expressed in CEL over the numeric values of Fields.
type Rule struct {
	Key     string   `yaml:"key" json:"key"`
	Name    string   `yaml:"name" json:"name"`
	Fields  []string `yaml:"fields" json:"fields"`
	Expr    string   `yaml:"expr" json:"expr"`
	Message string   `yaml:"message" json:"message"`
}

// Declaration names the fields that make up the signed declaration.
type Declaration struct {
	SignatureField string `yaml:"signature_field" json:"signature_field"`
	AgreementField string `yaml:"agreement_field" json:"agreement_field"`
}

// Step is one page of the wizard.
type Step struct {
	ID          int                            `yaml:"id" json:"id"`
	Title       string                         `yaml:"title" json:"title"`
	Description string                         `yaml:"description" json:"description"`
	Fields      []Field                        `yaml:"fields" json:"fields"`
	Attachments []domain.AttachmentRequirement `yaml:"attachments" json:"attachments"`
	Rules       []Rule                         `yaml:"rules" json:"rules,omitempty"`
	Declaration *Declaration                   `yaml:"declaration" json:"declaration,omitempty"`
}

// Discriminator is the fixed field identifying the submission type.
type Discriminator struct {
	Field string `yaml:"field" json:"field"`
	Value string `yaml:"value" json:"value"`
}

// Definition describes a complete wizard.
type Definition struct {
	Type          domain.FormType `yaml:"type" json:"type"`
	Title         string          `yaml:"title" json:"title"`
	Discriminator Discriminator   `yaml:"discriminator" json:"discriminator"`
	Steps         []Step          `yaml:"steps" json:"steps"`

	fields      map[string]*Field
	attachments map[string]*domain.AttachmentRequirement
}

// StepCount returns N, the number of steps.
func (d *Definition) StepCount() int { return len(d.Steps) }

// Step returns the step with the given 1-based number.
func (d *Definition) Step(n int) (*Step, error) {
	if n < 1 || n > len(d.Steps) {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", domain.ErrInvalidStep, n, len(d.Steps))
	}
	return &d.Steps[n-1], nil
}

// Field looks up a field definition by key. Attachment ID fields are reported as text fields.
func (d *Definition) Field(key string) (*Field, bool) {
	f, ok := d.fields[key]
	return f, ok
}

// Attachment looks up an attachment slot by key.
func (d *Definition) Attachment(key string) (*domain.AttachmentRequirement, bool) {
	a, ok := d.attachments[key]
	return a, ok
}

// Attachments returns every attachment slot in step order.
func (d *Definition) Attachments() []domain.AttachmentRequirement {
	var out []domain.AttachmentRequirement
	for i := range d.Steps {
		out = append(out, d.Steps[i].Attachments...)
	}
	return out
}

// FieldKeys returns all scalar field keys, sorted.
func (d *Definition) FieldKeys() []string {
	keys := make([]string, 0, len(d.fields))
	for k := range d.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d *Definition) index() error {
	if d.Discriminator.Field == "" {
		return fmt.Errorf("form %s: discriminator field is required", d.Type)
	}
	d.fields = make(map[string]*Field)
	d.attachments = make(map[string]*domain.AttachmentRequirement)
	for i := range d.Steps {
		s := &d.Steps[i]
		if s.ID != i+1 {
			return fmt.Errorf("form %s: step %d has id %d", d.Type, i+1, s.ID)
		}
		for j := range s.Fields {
			f := &s.Fields[j]
			if f.Kind == "" {
				f.Kind = domain.FieldKindText
			}
			if f.Kind == domain.FieldKindChoice {
				if _, ok := lists[f.Choices]; !ok {
					return fmt.Errorf("form %s: field %s references unknown list %q", d.Type, f.Key, f.Choices)
				}
			}
			if _, dup := d.fields[f.Key]; dup {
				return fmt.Errorf("form %s: duplicate field %s", d.Type, f.Key)
			}
			d.fields[f.Key] = f
		}
		for j := range s.Attachments {
			a := &s.Attachments[j]
			d.attachments[a.Key] = a
			if a.IDField != "" {
				d.fields[a.IDField] = &Field{Key: a.IDField, Label: a.IDLabel, Kind: domain.FieldKindText, Optional: true}
			}
		}
	}
	return nil
}

// Parse decodes and indexes a YAML form definition.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decoding form definition: %w", err)
	}
	if err := def.index(); err != nil {
		return nil, err
	}
	return &def, nil
}

var (
	loadOnce    sync.Once
	definitions map[domain.FormType]*Definition
	loadErr     error
)

func loadEmbedded() {
	definitions = make(map[domain.FormType]*Definition)
	entries, err := formFS.ReadDir("forms")
	if err != nil {
		loadErr = err
		return
	}
	for _, e := range entries {
		data, err := formFS.ReadFile("forms/" + e.Name())
		if err != nil {
			loadErr = err
			return
		}
		def, err := Parse(data)
		if err != nil {
			loadErr = fmt.Errorf("%s: %w", e.Name(), err)
			return
		}
		definitions[def.Type] = def
	}
}

// Get returns the embedded definition for a form type.
func Get(t domain.FormType) (*Definition, error) {
	loadOnce.Do(loadEmbedded)
	if loadErr != nil {
		return nil, loadErr
	}
	def, ok := definitions[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownFormType, t)
	}
	return def, nil
}

// Types lists the available form types.
func Types() []domain.FormType {
	loadOnce.Do(loadEmbedded)
	out := make([]domain.FormType, 0, len(definitions))
	for t := range definitions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
