package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/resultsets/internal/store"
)

const validScenario = `
name: test_scenario
description: "loads cleanly"
query: "SELECT name FROM users WHERE id = ?"
faults:
  - index: 1
    message: "boom"
policy: terminate
expect:
  values: [user1]
  failures: 1
`

func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "test.yaml", validScenario)

	sc, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", sc.Name)
	assert.Equal(t, "SELECT name FROM users WHERE id = ?", sc.Query)
	assert.Equal(t, "terminate", sc.Policy)
	assert.Equal(t, []Fault{{Index: 1, Message: "boom"}}, sc.Faults)
	assert.Equal(t, Expectation{Values: []string{"user1"}, Failures: 1}, sc.Expect)
	assert.Equal(t, path, sc.Path)
}

func TestLoadScenario_Defaults(t *testing.T) {
	sc, err := ParseScenario("inline", []byte(validScenario))
	require.NoError(t, err)

	fixtures := store.FixtureUsers()
	assert.Equal(t, fixtures, sc.users())
	require.Len(t, sc.keys(), len(fixtures))
	assert.Equal(t, fixtures[0].ID.String(), sc.keys()[0])
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	_, err := ParseScenario("bad.yaml", []byte("name: [unclosed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_SchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
		detail  string
	}{
		{
			name:    "unknown field",
			content: validScenario + "retries: 3\n",
			detail:  "retries",
		},
		{
			name: "missing expect",
			content: `
name: no_expect
description: "x"
query: "SELECT name FROM users WHERE id = ?"
`,
			detail: "expect",
		},
		{
			name: "bad policy",
			content: `
name: bad_policy
description: "x"
query: "SELECT name FROM users WHERE id = ?"
policy: retry
expect: {values: [], failures: 0}
`,
			detail: "policy",
		},
		{
			name: "negative fault index",
			content: `
name: negative_fault
description: "x"
query: "SELECT name FROM users WHERE id = ?"
faults: [{index: -1, message: boom}]
expect: {values: [], failures: 1}
`,
			detail: "index",
		},
		{
			name: "uppercase name",
			content: `
name: BadName
description: "x"
query: "SELECT name FROM users WHERE id = ?"
expect: {values: [], failures: 0}
`,
			detail: "name",
		},
		{
			name:    "empty document",
			content: "",
			detail:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario("case.yaml", []byte(tt.content))
			require.Error(t, err)

			var se *SchemaError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "case.yaml", se.Path)
			assert.Contains(t, se.Details, tt.detail)
		})
	}
}

func TestParseScenario_SemanticErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name: "no placeholder",
			content: `
name: two_placeholders
description: "x"
query: "SELECT name FROM users WHERE id = ? OR name = ?"
expect: {values: [], failures: 0}
`,
			errMsg: "query",
		},
		{
			name: "fault out of range",
			content: `
name: out_of_range
description: "x"
query: "SELECT name FROM users WHERE id = ?"
keys: [a, b]
faults: [{index: 2, message: boom}]
expect: {values: [], failures: 1}
`,
			errMsg: "out of range",
		},
		{
			name: "duplicate fault",
			content: `
name: duplicate_fault
description: "x"
query: "SELECT name FROM users WHERE id = ?"
faults: [{index: 0, message: a}, {index: 0, message: b}]
expect: {values: [], failures: 1}
`,
			errMsg: "duplicate index",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario("case.yaml", []byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadDir(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios", "")
	require.NoError(t, err)

	var names []string
	for _, sc := range scenarios {
		names = append(names, sc.Name)
	}
	assert.Equal(t, []string{"empty_keys", "five_users", "partial_failure", "terminate_on_error", "unknown_key"}, names)
}

func TestLoadDir_Filter(t *testing.T) {
	scenarios, err := LoadDir("testdata/scenarios", "*_failure")
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "partial_failure", scenarios[0].Name)

	_, err = LoadDir("testdata/scenarios", "[")
	assert.Error(t, err)
}

func TestLoadDir_NotADirectory(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "one.yaml", validScenario)

	_, err := LoadDir(path, "")
	assert.Error(t, err)

	_, err = LoadDir(filepath.Join(t.TempDir(), "absent"), "")
	assert.Error(t, err)
}

func TestLoadDir_StopsOnInvalidScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", validScenario)
	writeScenario(t, dir, "b.yml", "name: x\n")
	writeScenario(t, dir, "notes.txt", "ignored")

	_, err := LoadDir(dir, "")
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, filepath.Join(dir, "b.yml"), se.Path)
}
