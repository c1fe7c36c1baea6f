package triage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRules(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_PreservesOrder(t *testing.T) {
	t.Parallel()

	path := writeRules(t, "rules.yaml", `rules:
  - description: first
    predicate: All
    conditions:
      - field: From
        operator: contains
        value: linkedin.com
      - field: Received Date/Time
        operator: less than (days)
        value: 3
    actions:
      - type: Mark as Read
      - type: Move Message
        value: JobAlerts
  - description: second
    predicate: any
`)

	rules, err := Load(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	first := rules[0]
	assert.Equal(t, "first", first.Description)
	assert.Equal(t, PredicateAll, first.Predicate)
	require.Len(t, first.Conditions, 2)
	assert.Equal(t, Condition{FieldFrom, OpContains, "linkedin.com"}, first.Conditions[0])
	// A bare yaml number is accepted as the condition value.
	assert.Equal(t, Condition{FieldReceived, OpNewerThanDays, "3"}, first.Conditions[1])
	require.Len(t, first.Actions, 2)
	assert.Equal(t, Action{Type: ActionMarkRead}, first.Actions[0])
	assert.Equal(t, Action{Type: ActionMove, Value: "JobAlerts"}, first.Actions[1])

	second := rules[1]
	assert.Equal(t, "second", second.Description)
	assert.Equal(t, PredicateAny, second.Predicate)
	assert.Empty(t, second.Conditions)
	assert.Empty(t, second.Actions)
}

func TestLoad_JSONSource(t *testing.T) {
	t.Parallel()

	path := writeRules(t, "rules.json", `{
  "rules": [
    {
      "description": "json rule",
      "predicate": "All",
      "conditions": [
        {"field": "Subject", "operator": "equals", "value": "hi"}
      ],
      "actions": [{"type": "Mark as Unread"}]
    }
  ]
}`)

	rules, err := Load(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, Condition{FieldSubject, OpEquals, "hi"}, rules[0].Conditions[0])
	assert.Equal(t, ActionMarkUnread, rules[0].Actions[0].Type)
}

func TestLoad_UnrecognizedFieldAndOperatorStillLoad(t *testing.T) {
	t.Parallel()

	// Legality is an evaluation concern: these load fine and simply never
	// match.
	path := writeRules(t, "rules.yaml", `rules:
  - description: odd
    predicate: All
    conditions:
      - field: To
        operator: before
        value: x
`)

	rules, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Condition{FieldUnknown, OpUnknown, "x"}, rules[0].Conditions[0])
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"missing description", `rules:
  - predicate: All
`},
		{"missing predicate", `rules:
  - description: x
`},
		{"condition missing value", `rules:
  - description: x
    predicate: All
    conditions:
      - field: From
        operator: contains
`},
		{"action missing type", `rules:
  - description: x
    predicate: All
    actions:
      - value: Archive
`},
		{"move action missing value", `rules:
  - description: x
    predicate: All
    actions:
      - type: Move Message
`},
		{"no rules key", `other: 1
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeRules(t, "rules.yaml", tt.content))
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}
