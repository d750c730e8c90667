package validator

// Registry maps rule keys to rules, preserving registration order.
type Registry struct {
	rules map[string]Rule
	order []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// Register adds a rule to the registry. A rule with an existing key replaces it in place.
func (r *Registry) Register(rule Rule) {
	key := rule.RuleKey()
	if _, exists := r.rules[key]; !exists {
		r.order = append(r.order, key)
	}
	r.rules[key] = rule
}

// Get returns the rule for a given key, or nil if not found.
func (r *Registry) Get(key string) Rule {
	return r.rules[key]
}

// All returns all registered rules in registration order.
func (r *Registry) All() []Rule {
	out := make([]Rule, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.rules[k])
	}
	return out
}
