package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/waypoint/internal/rules"
)

const localDoc = `{
  "parameters": {"Region": {"type": "string", "required": true}},
  "rules": [
    {
      "type": "endpoint",
      "conditions": [{"fn": "stringEquals", "argv": [{"ref": "Region"}, "local"]}],
      "endpoint": {"url": "http://localhost:8080", "headers": {"x-region": ["{Region}"]}}
    },
    {"type": "error", "conditions": [], "error": "unsupported region {Region}"}
  ]
}`

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{"Region=us-east-1", "UseFIPS=true", " Empty ="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"Region": "us-east-1", "UseFIPS": "true", "Empty": ""}, got)

	_, err = parseParams([]string{"novalue"})
	assert.ErrorContains(t, err, "expected Name=value")
	_, err = parseParams([]string{"=x"})
	assert.Error(t, err)
	_, err = parseParams([]string{"A=1", "A=2"})
	assert.ErrorContains(t, err, "more than once")
}

func TestWriteValue(t *testing.T) {
	v := endpointOutput(&rules.ResolvedEndpoint{
		URL:         "https://svc.example.com",
		AuthSchemes: []rules.AuthScheme{{Name: "sigv4", Properties: map[string]any{"signingRegion": "us-east-1"}}},
	})

	var buf bytes.Buffer
	require.NoError(t, writeValue(&buf, "json", v))
	assert.Contains(t, buf.String(), `"url": "https://svc.example.com"`)
	assert.NotContains(t, buf.String(), "headers")

	buf.Reset()
	require.NoError(t, writeValue(&buf, "yaml", v))
	assert.Contains(t, buf.String(), "url: https://svc.example.com")
	assert.Contains(t, buf.String(), "- name: sigv4")

	assert.Error(t, writeValue(&buf, "xml", v))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommands_StoreWorkflow(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "local.json")
	require.NoError(t, os.WriteFile(docPath, []byte(localDoc), 0o600))
	dbFlag := "--db-url=sqlite://" + filepath.Join(dir, "waypoint.db")

	out, err := execute(t, "check", docPath)
	require.NoError(t, err)
	assert.Contains(t, out, "ok (1 parameters, 2 top-level rules)")

	out, err = execute(t, "migrate", dbFlag)
	require.NoError(t, err)
	assert.Contains(t, out, "2 migrations applied")

	out, err = execute(t, "import", dbFlag, "--service", "svc", docPath)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, " svc "), "import output: %s", out)

	out, err = execute(t, "list", dbFlag)
	require.NoError(t, err)
	assert.Contains(t, out, "svc")
	assert.Contains(t, out, "true")

	out, err = execute(t, "resolve", dbFlag, "--service", "svc", "-p", "Region=local")
	require.NoError(t, err)
	assert.Contains(t, out, `"url": "http://localhost:8080"`)
	assert.Contains(t, out, `"local"`)

	_, err = execute(t, "delete", dbFlag, "not-a-uuid")
	assert.ErrorContains(t, err, "invalid rule set id")
}

func TestFunctionsCommand(t *testing.T) {
	out, err := execute(t, "functions")
	require.NoError(t, err)
	assert.Contains(t, out, "partitions version 1.1")
	assert.Contains(t, out, "booleanEquals(left: Boolean, right: Boolean) -> Boolean")
	assert.Contains(t, out, "aws.partition")
}
