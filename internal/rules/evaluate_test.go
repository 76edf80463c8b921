package rules

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/solatis/waypoint/internal/types"
)

const regionalDoc = `{
  "version": "1.0",
  "parameters": ` + commonParams + `,
  "rules": [
    {
      "type": "endpoint",
      "documentation": "custom endpoint",
      "conditions": [
        {"fn": "isSet", "argv": [{"ref": "Endpoint"}]},
        {"fn": "parseURL", "argv": [{"ref": "Endpoint"}], "assign": "url"}
      ],
      "endpoint": {"url": "{url#scheme}://{url#authority}{url#normalizedPath}"}
    },
    {
      "type": "tree",
      "conditions": [
        {"fn": "isSet", "argv": [{"ref": "Region"}]},
        {"fn": "aws.partition", "argv": [{"ref": "Region"}], "assign": "partitionResult"}
      ],
      "rules": [
        {
          "type": "tree",
          "conditions": [{"fn": "booleanEquals", "argv": [{"ref": "UseFIPS"}, true]}],
          "rules": [
            {
              "type": "endpoint",
              "conditions": [
                {"fn": "booleanEquals", "argv": [{"fn": "getAttr", "argv": [{"ref": "partitionResult"}, "supportsFIPS"]}, true]}
              ],
              "endpoint": {
                "url": "https://svc-fips.{Region}.{partitionResult#dnsSuffix}",
                "properties": {
                  "authSchemes": [{"name": "sigv4", "signingName": "svc", "signingRegion": "{Region}"}]
                }
              }
            },
            {"type": "error", "conditions": [], "error": "FIPS is not supported in {Region}"}
          ]
        },
        {
          "type": "endpoint",
          "conditions": [],
          "endpoint": {
            "url": "https://svc.{Region}.{partitionResult#dnsSuffix}",
            "properties": {
              "authSchemes": [{"name": "sigv4", "signingName": "svc", "signingRegion": "{Region}", "disableDoubleEncoding": true}],
              "partition": "{partitionResult#name}"
            },
            "headers": {"x-amz-region": ["{Region}"], "x-amz-tags": ["a", "b"]}
          }
        }
      ]
    },
    {"type": "error", "conditions": [], "error": "Region must be set"}
  ]
}`

func TestEvaluate_RegionalEndpoint(t *testing.T) {
	p := mustCompile(t, regionalDoc)

	ep, err := p.ResolveEndpoint(map[string]any{"Region": "us-west-2"})
	if err != nil {
		t.Fatalf("ResolveEndpoint() error = %v, want nil", err)
	}
	want := &ResolvedEndpoint{
		URL: "https://svc.us-west-2.amazonaws.com",
		Headers: map[string][]string{
			"x-amz-region": {"us-west-2"},
			"x-amz-tags":   {"a", "b"},
		},
		Properties: map[string]any{"partition": "aws"},
		AuthSchemes: []AuthScheme{{
			Name: "sigv4",
			Properties: map[string]any{
				"signingName":           "svc",
				"signingRegion":         "us-west-2",
				"disableDoubleEncoding": true,
			},
		}},
	}
	if diff := cmp.Diff(want, ep); diff != "" {
		t.Errorf("ResolveEndpoint() mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluate_CustomEndpoint(t *testing.T) {
	p := mustCompile(t, regionalDoc)

	out, err := p.Evaluate(map[string]any{"Endpoint": "https://example.com:8443/base"})
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if out.Kind != OutcomeEndpoint || out.RuleID != 1 {
		t.Fatalf("Evaluate() = %v rule %d, want endpoint rule 1", out.Kind, out.RuleID)
	}
	if out.Endpoint.URL != "https://example.com:8443/base/" {
		t.Errorf("URL = %q, want https://example.com:8443/base/", out.Endpoint.URL)
	}

	// an unparseable endpoint falls through to the regional rules
	ep, err := p.ResolveEndpoint(map[string]any{"Endpoint": "ftp://example.com", "Region": "cn-north-1"})
	if err != nil {
		t.Fatalf("ResolveEndpoint() error = %v, want nil", err)
	}
	if ep.URL != "https://svc.cn-north-1.amazonaws.com.cn" {
		t.Errorf("URL = %q, want the aws-cn regional endpoint", ep.URL)
	}
}

func TestEvaluate_FIPS(t *testing.T) {
	p := mustCompile(t, regionalDoc)

	ep, err := p.ResolveEndpoint(map[string]any{"Region": "us-east-1", "UseFIPS": true})
	if err != nil {
		t.Fatalf("ResolveEndpoint() error = %v, want nil", err)
	}
	if ep.URL != "https://svc-fips.us-east-1.amazonaws.com" {
		t.Errorf("URL = %q, want fips endpoint", ep.URL)
	}
	if len(ep.Properties) != 0 {
		t.Errorf("Properties = %v, want empty", ep.Properties)
	}
	if len(ep.Headers) != 0 {
		t.Errorf("Headers = %v, want empty", ep.Headers)
	}
}

func TestEvaluate_ErrorRule(t *testing.T) {
	p := mustCompile(t, regionalDoc)

	_, err := p.ResolveEndpoint(map[string]any{})
	var re *RuleError
	if !errors.As(err, &re) {
		t.Fatalf("ResolveEndpoint() error = %v, want *RuleError", err)
	}
	if re.Message != "Region must be set" {
		t.Errorf("RuleError.Message = %q, want Region must be set", re.Message)
	}
	if findRule(p.RuleSet, re.RuleID).Error == nil {
		t.Errorf("RuleError.RuleID = %d is not an error rule", re.RuleID)
	}
}

func TestEvaluate_RequiredParameters(t *testing.T) {
	doc := `{
  "parameters": {
    "Region": {"type": "string", "required": true},
    "UseFIPS": {"type": "boolean", "required": true, "default": false}
  },
  "rules": [
    {"type": "endpoint", "conditions": [{"fn": "booleanEquals", "argv": [{"ref": "UseFIPS"}, false]}], "endpoint": {"url": "https://{Region}"}}
  ]
}`
	p := mustCompile(t, doc)

	if _, err := p.Evaluate(map[string]any{}); !errors.Is(err, types.ErrMissingParameter) {
		t.Errorf("Evaluate() without Region error = %v, want ErrMissingParameter", err)
	}

	ep, err := p.ResolveEndpoint(map[string]any{"Region": "eu-west-1"})
	if err != nil {
		t.Fatalf("ResolveEndpoint() error = %v, want nil", err)
	}
	if ep.URL != "https://eu-west-1" {
		t.Errorf("URL = %q, want default for UseFIPS to apply", ep.URL)
	}
}

func TestEvaluate_ParameterValidation(t *testing.T) {
	p := mustCompile(t, regionalDoc)

	if _, err := p.Evaluate(map[string]any{"Nope": "x"}); !errors.Is(err, types.ErrUnknownParameter) {
		t.Errorf("Evaluate() with unknown name error = %v, want ErrUnknownParameter", err)
	}
	if _, err := p.Evaluate(map[string]any{"Region": "us-east-1", "region": "eu-west-1"}); !errors.Is(err, types.ErrInvalidParameter) {
		t.Errorf("Evaluate() with document and canonical name error = %v, want ErrInvalidParameter", err)
	}
	if _, err := p.Evaluate(map[string]any{"UseFIPS": "true"}); !errors.Is(err, types.ErrInvalidParameter) {
		t.Errorf("Evaluate() with string boolean error = %v, want ErrInvalidParameter", err)
	}

	bound, err := p.Bind(map[string]any{"useFIPS": "true", "region": "us-east-1"}, CoerceLenient)
	if err != nil {
		t.Fatalf("Bind() error = %v, want nil", err)
	}
	want := map[string]any{"useFIPS": true, "useDualStack": false, "region": "us-east-1"}
	if diff := cmp.Diff(want, bound); diff != "" {
		t.Errorf("Bind() mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluate_FirstMatchWins(t *testing.T) {
	doc := `{
  "parameters": {"Region": {"type": "string"}},
  "rules": [
    {"type": "endpoint", "conditions": [{"fn": "isSet", "argv": [{"ref": "Region"}]}], "endpoint": {"url": "https://first"}},
    {"type": "endpoint", "conditions": [], "endpoint": {"url": "https://second"}},
    {"type": "endpoint", "conditions": [], "endpoint": {"url": "https://{Region}"}}
  ]
}`
	p := mustCompile(t, doc)

	ep, err := p.ResolveEndpoint(map[string]any{})
	if err != nil {
		t.Fatalf("ResolveEndpoint() error = %v, want nil", err)
	}
	if ep.URL != "https://second" {
		t.Errorf("URL = %q, want https://second", ep.URL)
	}
}

func TestEvaluate_TerminalWithUnsetValue(t *testing.T) {
	doc := `{
  "parameters": {"Region": {"type": "string"}},
  "rules": [
    {"type": "endpoint", "conditions": [], "endpoint": {"url": "https://{Region}"}}
  ]
}`
	p := mustCompile(t, doc)
	if _, err := p.Evaluate(map[string]any{}); !errors.Is(err, types.ErrEvaluation) {
		t.Errorf("Evaluate() error = %v, want ErrEvaluation", err)
	}
}

func TestEvaluate_CarryOn(t *testing.T) {
	doc := `{
  "parameters": {"Region": {"type": "string"}},
  "rules": [
    {"type": "tree", "conditions": [{"fn": "isSet", "argv": [{"ref": "Region"}]}], "rules": [
      {"type": "endpoint", "conditions": [{"fn": "stringEquals", "argv": [{"ref": "Region"}, "x"]}], "endpoint": {"url": "https://x"}}
    ]}
  ]
}`
	p := mustCompile(t, doc)

	out, err := p.Evaluate(map[string]any{"Region": "y"})
	if err != nil {
		t.Fatalf("Evaluate() error = %v, want nil", err)
	}
	if out.Kind != OutcomeCarryOn {
		t.Errorf("Evaluate() kind = %v, want carry-on", out.Kind)
	}
	if _, err := OutcomeEndpointOrError(out); !errors.Is(err, types.ErrUnresolved) {
		t.Errorf("OutcomeEndpointOrError() error = %v, want ErrUnresolved", err)
	}
}

func TestEvaluate_SiblingScope(t *testing.T) {
	// A binding made by a skipped sibling stays visible to later siblings in
	// the same tree, never to the parent's siblings.
	doc := `{
  "parameters": {"Region": {"type": "string"}},
  "rules": [
    {"type": "tree", "conditions": [], "rules": [
      {"type": "endpoint", "conditions": [
        {"fn": "uriEncode", "argv": ["leaked"], "assign": "shared"},
        {"fn": "isSet", "argv": [{"ref": "Region"}]}
      ], "endpoint": {"url": "https://never"}},
      {"type": "tree", "conditions": [{"fn": "isSet", "argv": [{"ref": "Region"}]}], "rules": [
        {"type": "endpoint", "conditions": [], "endpoint": {"url": "https://never"}}
      ]}
    ]},
    {"type": "endpoint", "conditions": [{"fn": "isSet", "argv": [{"ref": "shared"}]}], "endpoint": {"url": "https://{shared}"}},
    {"type": "endpoint", "conditions": [], "endpoint": {"url": "https://default"}}
  ]
}`
	p := mustCompile(t, doc)
	ep, err := p.ResolveEndpoint(map[string]any{})
	if err != nil {
		t.Fatalf("ResolveEndpoint() error = %v, want nil", err)
	}
	if ep.URL != "https://default" {
		t.Errorf("URL = %q, want https://default", ep.URL)
	}

	leaky := `{
  "parameters": {"Region": {"type": "string"}},
  "rules": [
    {"type": "endpoint", "conditions": [
      {"fn": "uriEncode", "argv": ["leaked"], "assign": "shared"},
      {"fn": "isSet", "argv": [{"ref": "Region"}]}
    ], "endpoint": {"url": "https://never"}},
    {"type": "endpoint", "conditions": [{"fn": "isSet", "argv": [{"ref": "shared"}]}], "endpoint": {"url": "https://{shared}"}}
  ]
}`
	p = mustCompile(t, leaky)
	ep, err = p.ResolveEndpoint(map[string]any{})
	if err != nil {
		t.Fatalf("ResolveEndpoint() error = %v, want nil", err)
	}
	if ep.URL != "https://leaked" {
		t.Errorf("URL = %q, want sibling binding to be visible", ep.URL)
	}
}

func TestEvaluate_AbsentValues(t *testing.T) {
	doc := `{
  "parameters": {"Bucket": {"type": "string"}, "Names": {"type": "stringArray"}},
  "rules": [
    {"type": "endpoint", "conditions": [
      {"fn": "aws.parseArn", "argv": [{"ref": "Bucket"}], "assign": "arn"},
      {"fn": "getAttr", "argv": [{"ref": "arn"}, "resourceId[1]"], "assign": "name"}
    ], "endpoint": {"url": "https://{name}.{arn#region}"}},
    {"type": "endpoint", "conditions": [
      {"fn": "getAttr", "argv": [{"ref": "Names"}, "[0]"], "assign": "first"}
    ], "endpoint": {"url": "https://{first}"}},
    {"type": "endpoint", "conditions": [], "endpoint": {"url": "https://none"}}
  ]
}`
	p := mustCompile(t, doc)

	tests := []struct {
		name   string
		params map[string]any
		want   string
	}{
		{"arn resource", map[string]any{"Bucket": "arn:aws:s3:us-west-2:123:accesspoint/ap"}, "https://ap.us-west-2"},
		{"arn too short", map[string]any{"Bucket": "arn:aws:s3:us-west-2:123:bucket"}, "https://none"},
		{"not an arn", map[string]any{"Bucket": "bucket"}, "https://none"},
		{"list element", map[string]any{"Names": []string{"a", "b"}}, "https://a"},
		{"empty list", map[string]any{"Names": []string{}}, "https://none"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ep, err := p.ResolveEndpoint(tt.params)
			if err != nil {
				t.Fatalf("ResolveEndpoint() error = %v, want nil", err)
			}
			if ep.URL != tt.want {
				t.Errorf("URL = %q, want %q", ep.URL, tt.want)
			}
		})
	}
}

func TestEvaluate_Concurrent(t *testing.T) {
	p := mustCompile(t, regionalDoc)
	regions := []string{"us-east-1", "cn-north-1", "us-gov-west-1", "eu-central-1"}
	want := []string{
		"https://svc.us-east-1.amazonaws.com",
		"https://svc.cn-north-1.amazonaws.com.cn",
		"https://svc.us-gov-west-1.amazonaws.com",
		"https://svc.eu-central-1.amazonaws.com",
	}

	var wg sync.WaitGroup
	errs := make(chan string, len(regions)*20)
	for i := 0; i < 20; i++ {
		for j, region := range regions {
			wg.Add(1)
			go func(region, want string) {
				defer wg.Done()
				ep, err := p.ResolveEndpoint(map[string]any{"Region": region})
				if err != nil {
					errs <- err.Error()
					return
				}
				if ep.URL != want {
					errs <- ep.URL + " != " + want
				}
			}(region, want[j])
		}
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Error(msg)
	}
}

func TestOperators(t *testing.T) {
	if v, _ := applyIntrinsic(fnIsSet, []any{nil}); v != false {
		t.Errorf("isSet(nil) = %v, want false", v)
	}
	if v, _ := applyIntrinsic(fnIsNotSet, []any{nil}); v != true {
		t.Errorf("isNotSet(nil) = %v, want true", v)
	}
	if v, _ := applyIntrinsic(fnListAccess, []any{[]any{"a"}, 3}); v != nil {
		t.Errorf("listAccess out of range = %v, want nil", v)
	}
	if valuesEqual(nil, nil) {
		t.Errorf("valuesEqual(nil, nil) = true, want false")
	}
	if valuesEqual("1", 1) {
		t.Errorf("valuesEqual(\"1\", 1) = true, want false")
	}
	if !valuesEqual(true, true) {
		t.Errorf("valuesEqual(true, true) = false, want true")
	}
	if v, _ := applyMethod(methodEquals, nil, []any{true}); v != nil {
		t.Errorf("absent receiver equals = %v, want nil", v)
	}
	if v, _ := applyMethod(methodEquals, "a", []any{nil}); v != nil {
		t.Errorf("equals absent argument = %v, want nil", v)
	}
	if v, _ := applyMethod(methodEquals, "a", []any{"a"}); v != true {
		t.Errorf("equals = %v, want true", v)
	}
	if _, ok := applyIntrinsic("uriEncode", nil); ok {
		t.Errorf("applyIntrinsic(uriEncode) ok = true, want false")
	}
}

func TestMeasure(t *testing.T) {
	p := mustCompile(t, regionalDoc)
	s := p.Stats
	if s.Rules != 8 || s.Trees != 3 || s.Endpoints != 3 || s.Errors != 2 {
		t.Errorf("Stats = %+v, want 8 rules, 3 trees, 3 endpoints, 2 errors", s)
	}
	if s.MaxDepth != 3 {
		t.Errorf("MaxDepth = %d, want 3", s.MaxDepth)
	}
	if s.Bindings != 2 {
		t.Errorf("Bindings = %d, want 2", s.Bindings)
	}
}
