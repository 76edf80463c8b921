package rules

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// loweredConditions compiles a single-rule document and returns the lowered
// conditions of its rule.
func loweredConditions(t *testing.T, conditions string) []string {
	t.Helper()
	p := mustCompile(t, singleRule(commonParams, conditions))
	var out []string
	for _, c := range p.RuleSet.Children[0].Conditions {
		out = append(out, c.String())
	}
	return out
}

func TestPrepareForEvaluation_Rewrites(t *testing.T) {
	tests := []struct {
		name       string
		conditions string
		want       []string
	}{
		{
			"not isSet",
			`[{"fn": "not", "argv": [{"fn": "isSet", "argv": [{"ref": "Region"}]}]}]`,
			[]string{"isNotSet($params#region)"},
		},
		{
			"booleanEquals true",
			`[{"fn": "booleanEquals", "argv": [{"ref": "UseFIPS"}, true]}]`,
			[]string{"$params#useFIPS"},
		},
		{
			"booleanEquals true on the left",
			`[{"fn": "booleanEquals", "argv": [true, {"ref": "UseFIPS"}]}]`,
			[]string{"$params#useFIPS"},
		},
		{
			"booleanEquals false",
			`[{"fn": "booleanEquals", "argv": [{"ref": "UseFIPS"}, false]}]`,
			[]string{"not($params#useFIPS)"},
		},
		{
			"booleanEquals false on isSet",
			`[{"fn": "booleanEquals", "argv": [{"fn": "isSet", "argv": [{"ref": "Region"}]}, false]}]`,
			[]string{"isNotSet($params#region)"},
		},
		{
			"booleanEquals without literal",
			`[{"fn": "booleanEquals", "argv": [{"ref": "UseFIPS"}, {"ref": "UseDualStack"}]}]`,
			[]string{"$params#useFIPS.equals($params#useDualStack)"},
		},
		{
			"stringEquals literal receiver",
			`[{"fn": "stringEquals", "argv": [{"ref": "Region"}, "aws-global"]}]`,
			[]string{`"aws-global".equals($params#region)`},
		},
		{
			"stringEquals literal on the left",
			`[{"fn": "stringEquals", "argv": ["aws-global", {"ref": "Region"}]}]`,
			[]string{`"aws-global".equals($params#region)`},
		},
		{
			"indexed access",
			`[
				{"fn": "aws.parseArn", "argv": ["{Bucket}"], "assign": "arn"},
				{"fn": "getAttr", "argv": [{"ref": "arn"}, "resourceId[0]"]}
			]`,
			[]string{
				"let(arn = aws.parseArn($params#bucket))",
				"isSet(listAccess($locals#arn#resourceId, 0))",
			},
		},
		{
			"canonical local names",
			`[
				{"fn": "parseURL", "argv": ["{Endpoint}"], "assign": "URL"},
				{"fn": "getAttr", "argv": [{"ref": "URL"}, "isIp"]}
			]`,
			[]string{
				"let(url = parseURL($params#endpoint))",
				"$locals#url#isIp",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := loweredConditions(t, tt.conditions)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("lowered conditions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPrepareForEvaluation_CanonicalSymbols(t *testing.T) {
	p := mustCompile(t, singleRule(commonParams, `[
		{"fn": "aws.partition", "argv": ["{Region}"], "assign": "PartitionResult"}
	]`))

	var params []string
	for _, s := range p.Symbols.Params() {
		params = append(params, s.Name)
	}
	want := []string{"region", "useFIPS", "useDualStack", "endpoint", "bucket", "names"}
	if diff := cmp.Diff(want, params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	if _, ok := p.Symbols.Local("partitionResult"); !ok {
		t.Errorf("Local(partitionResult) missing, locals = %v", p.Symbols.Locals())
	}
	if _, ok := p.Symbols.Local("PartitionResult"); ok {
		t.Errorf("Local(PartitionResult) present, want only canonical names")
	}
	if sym, _ := p.Symbols.Param("region"); sym.BuiltIn != "AWS::Region" {
		t.Errorf("Param(region).BuiltIn = %q, want AWS::Region", sym.BuiltIn)
	}
}

func TestPrepareForEvaluation_KeepsTypes(t *testing.T) {
	p := mustCompile(t, singleRule(commonParams, `[
		{"fn": "booleanEquals", "argv": [{"ref": "UseFIPS"}, {"ref": "UseDualStack"}]},
		{"fn": "stringEquals", "argv": [{"ref": "Region"}, "us-east-1"]}
	]`))
	Inspect(p.RuleSet, func(e Expr) bool {
		if e.Type() == nil {
			t.Errorf("lowered node %s has no type", e)
		}
		return true
	})
}

func TestCanonicalName(t *testing.T) {
	tests := map[string]string{
		"Region":         "region",
		"UseFIPS":        "useFIPS",
		"FIPSEndpoint":   "fipsEndpoint",
		"URL":            "url",
		"SomeName":       "someName",
		"use_dual_stack": "useDualStack",
		"bucket-name":    "bucketName",
		"alreadyCamel":   "alreadyCamel",
		"S3":             "s3",
		"x":              "x",
	}
	for in, want := range tests {
		if got := CanonicalName(in); got != want {
			t.Errorf("CanonicalName(%q) = %q, want %q", in, got, want)
		}
	}
}

const absentOperandsDoc = `{
  "parameters": {
    "Flag": {"type": "boolean"},
    "Other": {"type": "boolean"},
    "Region": {"type": "string"}
  },
  "rules": [
    {"type": "endpoint", "conditions": [{"fn": "booleanEquals", "argv": [{"ref": "Flag"}, false]}], "endpoint": {"url": "https://flag-false"}},
    {"type": "endpoint", "conditions": [{"fn": "not", "argv": [{"fn": "booleanEquals", "argv": [{"ref": "Flag"}, {"ref": "Other"}]}]}], "endpoint": {"url": "https://differ"}},
    {"type": "endpoint", "conditions": [{"fn": "not", "argv": [{"fn": "stringEquals", "argv": [{"ref": "Region"}, "local"]}]}], "endpoint": {"url": "https://remote"}},
    {"type": "endpoint", "conditions": [{"fn": "booleanEquals", "argv": [true, {"ref": "Other"}]}], "endpoint": {"url": "https://other"}},
    {"type": "error", "conditions": [], "error": "fallthrough"}
  ]
}`

// byDocumentName rekeys bound canonical values by document parameter name,
// the names the checked tree references.
func byDocumentName(p *Program, bound map[string]any) map[string]any {
	out := make(map[string]any, len(bound))
	for _, param := range p.Params {
		if v, ok := bound[param.Canonical]; ok {
			out[param.Name] = v
		}
	}
	return out
}

func TestPrepareForEvaluation_PreservesOutcomes(t *testing.T) {
	p := mustCompile(t, absentOperandsDoc)
	functions := NewEngine(nil, nil).Functions()

	bools := []any{nil, true, false}
	regions := []any{nil, "local", "us-east-1"}
	for _, flag := range bools {
		for _, other := range bools {
			for _, region := range regions {
				values := map[string]any{"Flag": flag, "Other": other, "Region": region}
				bound, err := p.Bind(values, CoerceStrict)
				if err != nil {
					t.Fatalf("Bind(%v) error = %v, want nil", values, err)
				}

				lowered, err := Evaluate(p.RuleSet, functions, bound)
				if err != nil {
					t.Fatalf("Evaluate(lowered, %v) error = %v, want nil", values, err)
				}
				checked, err := Evaluate(p.Checked, functions, byDocumentName(p, bound))
				if err != nil {
					t.Fatalf("Evaluate(checked, %v) error = %v, want nil", values, err)
				}
				if diff := cmp.Diff(checked, lowered); diff != "" {
					t.Errorf("outcome for %v differs after lowering (-checked +lowered):\n%s", values, diff)
				}
			}
		}
	}
}

func TestEvaluate_AbsentOperandFailsNegatedConditions(t *testing.T) {
	p := mustCompile(t, absentOperandsDoc)

	ep, err := p.ResolveEndpoint(map[string]any{"Region": "local"})
	var ruleErr *RuleError
	if !errors.As(err, &ruleErr) || ruleErr.Message != "fallthrough" {
		t.Fatalf("ResolveEndpoint() = %v, %v, want fallthrough rule error", ep, err)
	}

	ep, err = p.ResolveEndpoint(map[string]any{"Flag": false})
	if err != nil {
		t.Fatalf("ResolveEndpoint() error = %v, want nil", err)
	}
	if ep.URL != "https://flag-false" {
		t.Errorf("URL = %s, want https://flag-false", ep.URL)
	}
}
