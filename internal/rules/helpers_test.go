package rules

import (
	"testing"

	"github.com/solatis/waypoint/internal/types"
)

func mustDocument(t *testing.T, src string) *types.Document {
	t.Helper()
	doc, err := types.LoadDocument([]byte(src))
	if err != nil {
		t.Fatalf("LoadDocument() error = %v, want nil", err)
	}
	return doc
}

func mustCompile(t *testing.T, src string) *Program {
	t.Helper()
	p, err := NewEngine(nil, nil).Compile(mustDocument(t, src))
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	return p
}

func mustCheck(t *testing.T, src string) *CheckResult {
	t.Helper()
	res, err := NewEngine(nil, nil).Check(mustDocument(t, src))
	if err != nil {
		t.Fatalf("Check() error = %v, want nil", err)
	}
	return res
}

// findRule returns the rule with id, or nil.
func findRule(rs *RuleSet, id int) *RuleSet {
	if rs.ID == id {
		return rs
	}
	for _, c := range rs.Children {
		if found := findRule(c, id); found != nil {
			return found
		}
	}
	return nil
}

// singleRule wraps conditions into a one-rule endpoint document.
func singleRule(params, conditions string) string {
	return `{
  "version": "1.0",
  "parameters": ` + params + `,
  "rules": [
    {
      "type": "endpoint",
      "conditions": ` + conditions + `,
      "endpoint": {"url": "https://example.com"}
    }
  ]
}`
}

const commonParams = `{
  "Region": {"type": "string", "builtIn": "AWS::Region"},
  "UseFIPS": {"type": "boolean", "builtIn": "AWS::UseFIPS", "required": true, "default": false},
  "UseDualStack": {"type": "boolean", "required": true, "default": false},
  "Endpoint": {"type": "string", "builtIn": "SDK::Endpoint"},
  "Bucket": {"type": "string"},
  "Names": {"type": "stringArray"}
}`
