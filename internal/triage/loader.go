package triage

import (
	"errors"
	"fmt"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ConfigError reports a missing or malformed rules source. Loading fails
// fast: a rule set with structural problems aborts before any processing.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rules file %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Load reads the rules file (yaml or json, chosen by extension) and returns
// the typed rule list in file order. Only structural shape is validated
// here: required keys must be present, but field/operator legality is left
// to evaluation, where unrecognized combinations simply never match.
func Load(path string) ([]Rule, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	raw, ok := v.Get("rules").([]any)
	if !ok {
		return nil, &ConfigError{Path: path, Err: errors.New(`missing top-level "rules" list`)}
	}

	rules := make([]Rule, 0, len(raw))
	for i, entry := range raw {
		rule, err := parseRule(entry)
		if err != nil {
			return nil, &ConfigError{Path: path, Err: fmt.Errorf("rule %d: %w", i, err)}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseRule(entry any) (Rule, error) {
	m, ok := toMap(entry)
	if !ok {
		return Rule{}, errors.New("entry is not a mapping")
	}

	desc, ok := requireString(m, "description")
	if !ok {
		return Rule{}, errors.New(`missing "description"`)
	}
	pred, ok := requireString(m, "predicate")
	if !ok {
		return Rule{}, errors.New(`missing "predicate"`)
	}

	rule := Rule{
		Description: desc,
		Predicate:   ParsePredicate(pred),
	}

	for j, entry := range listKey(m, "conditions") {
		cond, err := parseCondition(entry)
		if err != nil {
			return Rule{}, fmt.Errorf("condition %d: %w", j, err)
		}
		rule.Conditions = append(rule.Conditions, cond)
	}
	for j, entry := range listKey(m, "actions") {
		action, err := parseAction(entry)
		if err != nil {
			return Rule{}, fmt.Errorf("action %d: %w", j, err)
		}
		rule.Actions = append(rule.Actions, action)
	}
	return rule, nil
}

func parseCondition(entry any) (Condition, error) {
	m, ok := toMap(entry)
	if !ok {
		return Condition{}, errors.New("entry is not a mapping")
	}
	field, ok := requireString(m, "field")
	if !ok {
		return Condition{}, errors.New(`missing "field"`)
	}
	op, ok := requireString(m, "operator")
	if !ok {
		return Condition{}, errors.New(`missing "operator"`)
	}
	value, ok := requireString(m, "value")
	if !ok {
		return Condition{}, errors.New(`missing "value"`)
	}
	return Condition{
		Field:    ParseField(field),
		Operator: ParseOperator(op),
		Value:    value,
	}, nil
}

func parseAction(entry any) (Action, error) {
	m, ok := toMap(entry)
	if !ok {
		return Action{}, errors.New("entry is not a mapping")
	}
	typ, ok := requireString(m, "type")
	if !ok {
		return Action{}, errors.New(`missing "type"`)
	}
	action := Action{Type: ParseActionType(typ)}
	if value, ok := requireString(m, "value"); ok {
		action.Value = value
	}
	if action.Type == ActionMove && action.Value == "" {
		return Action{}, errors.New(`move action requires "value"`)
	}
	return action, nil
}

// toMap normalizes the decoded entry. Viper hands back lowercase string
// keys for yaml and json alike, but json decoding can surface
// map[string]any while yaml surfaces map[any]any.
func toMap(entry any) (map[string]any, bool) {
	switch m := entry.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			out[cast.ToString(k)] = v
		}
		return out, true
	}
	return nil, false
}

// requireString fetches a key as a string. Scalar values that yaml decodes
// as numbers (e.g. a bare 3 for a date magnitude) are stringified rather
// than rejected.
func requireString(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	return cast.ToString(v), true
}

func listKey(m map[string]any, key string) []any {
	list, _ := m[key].([]any)
	return list
}
