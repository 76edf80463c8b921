package rules

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSubstring(t *testing.T) {
	tests := []struct {
		input       string
		start, stop int
		reverse     bool
		want        any
	}{
		{"abcdefg", 0, 4, false, "abcd"},
		{"abcdefg", 0, 4, true, "defg"},
		{"abcdefg", 1, 3, true, "ef"},
		{"abc", 0, 4, false, nil},
		{"abc", 2, 2, false, nil},
		{"abc", -1, 2, false, nil},
		{"abécd", 0, 2, false, nil},
	}
	for _, tt := range tests {
		if got := Substring(tt.input, tt.start, tt.stop, tt.reverse); got != tt.want {
			t.Errorf("Substring(%q, %d, %d, %v) = %v, want %v", tt.input, tt.start, tt.stop, tt.reverse, got, tt.want)
		}
	}
}

func TestURIEncode(t *testing.T) {
	tests := map[string]string{
		"abc":       "abc",
		"a b":       "a%20b",
		"a/b?c=d&e": "a%2Fb%3Fc%3Dd%26e",
		"*~._-":     "%2A~._-",
		"\u00e9":    "%C3%A9",
		"":          "",
	}
	for in, want := range tests {
		if got := URIEncode(in); got != want {
			t.Errorf("URIEncode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		raw  string
		want map[string]any
	}{
		{"https://example.com", map[string]any{
			"scheme": "https", "authority": "example.com", "path": "", "normalizedPath": "/", "isIp": false,
		}},
		{"http://example.com:8080/a/b", map[string]any{
			"scheme": "http", "authority": "example.com:8080", "path": "/a/b", "normalizedPath": "/a/b/", "isIp": false,
		}},
		{"https://127.0.0.1:443/", map[string]any{
			"scheme": "https", "authority": "127.0.0.1:443", "path": "/", "normalizedPath": "/", "isIp": true,
		}},
		{"https://[::1]/x", map[string]any{
			"scheme": "https", "authority": "[::1]", "path": "/x", "normalizedPath": "/x/", "isIp": true,
		}},
	}
	for _, tt := range tests {
		got, ok := ParseURL(tt.raw).(*Record)
		if !ok {
			t.Fatalf("ParseURL(%q) = nil, want record", tt.raw)
		}
		if diff := cmp.Diff(tt.want, got.Map()); diff != "" {
			t.Errorf("ParseURL(%q) mismatch (-want +got):\n%s", tt.raw, diff)
		}
	}

	for _, raw := range []string{"ftp://example.com", "https://example.com?x=1", "example.com", "https://", "not a url"} {
		if got := ParseURL(raw); got != nil {
			t.Errorf("ParseURL(%q) = %v, want nil", raw, got)
		}
	}
}

func TestIsValidHostLabel(t *testing.T) {
	tests := []struct {
		value string
		sub   bool
		want  bool
	}{
		{"us-east-1", false, true},
		{"a", false, true},
		{"-a", false, false},
		{"a.b", false, false},
		{"a.b", true, true},
		{"a..b", true, false},
		{"", false, false},
		{"abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyzabcdefghijkl", false, false},
	}
	for _, tt := range tests {
		if got := IsValidHostLabel(tt.value, tt.sub); got != tt.want {
			t.Errorf("IsValidHostLabel(%q, %v) = %v, want %v", tt.value, tt.sub, got, tt.want)
		}
	}
}

func TestIsVirtualHostableS3Bucket(t *testing.T) {
	tests := []struct {
		bucket string
		sub    bool
		want   bool
	}{
		{"my-bucket", false, true},
		{"My-Bucket", false, false},
		{"ab", false, false},
		{"my.bucket", false, false},
		{"my.bucket", true, true},
		{"my..bucket", true, false},
		{"192.168.1.1", true, false},
		{"bucket-", false, false},
	}
	for _, tt := range tests {
		if got := IsVirtualHostableS3Bucket(tt.bucket, tt.sub); got != tt.want {
			t.Errorf("IsVirtualHostableS3Bucket(%q, %v) = %v, want %v", tt.bucket, tt.sub, got, tt.want)
		}
	}
}

func TestParseArn(t *testing.T) {
	got, ok := ParseArn("arn:aws:s3:us-west-2:123456789012:accesspoint/my-ap:object").(*Record)
	if !ok {
		t.Fatalf("ParseArn() = nil, want record")
	}
	want := map[string]any{
		"partition":  "aws",
		"service":    "s3",
		"region":     "us-west-2",
		"accountId":  "123456789012",
		"resourceId": []any{"accesspoint", "my-ap", "object"},
	}
	if diff := cmp.Diff(want, got.Map()); diff != "" {
		t.Errorf("ParseArn() mismatch (-want +got):\n%s", diff)
	}

	empty, ok := ParseArn("arn:aws:s3:::bucket//key").(*Record)
	if !ok {
		t.Fatalf("ParseArn() = nil, want record")
	}
	if diff := cmp.Diff([]any{"bucket", "", "key"}, empty.Get("resourceId")); diff != "" {
		t.Errorf("resourceId mismatch (-want +got):\n%s", diff)
	}

	for _, s := range []string{"arn:aws:s3", "urn:aws:s3:r:a:res", "arn::s3:r:a:res", "arn:aws:s3:r:a:"} {
		if got := ParseArn(s); got != nil {
			t.Errorf("ParseArn(%q) = %v, want nil", s, got)
		}
	}
}

func TestStandardLibrary(t *testing.T) {
	r := StandardLibrary(DefaultPartitions())
	for _, name := range []string{"booleanEquals", "stringEquals", "substring", "uriEncode", "parseURL",
		"isValidHostLabel", "aws.partition", "aws.parseArn", "aws.isVirtualHostableS3Bucket"} {
		if _, ok := r.Lookup(name); !ok {
			t.Errorf("Lookup(%q) missing", name)
		}
	}
	if _, ok := r.Lookup("getAttr"); ok {
		t.Errorf("Lookup(getAttr) found, want parser special form only")
	}

	fn, _ := r.Lookup("substring")
	if got := fn.Call([]any{"abcdef", 1, 3, false}); got != "bc" {
		t.Errorf("substring call = %v, want bc", got)
	}
}

func TestNewFunctionRegistry_Rejects(t *testing.T) {
	f := &FunctionMirror{Name: "f", Return: TypeString, Call: func([]any) any { return "" }}
	if _, err := NewFunctionRegistry(f, f); err == nil {
		t.Errorf("NewFunctionRegistry() with duplicate error = nil, want error")
	}
	isSet := &FunctionMirror{Name: fnIsSet, Return: TypeBoolean, Call: func([]any) any { return true }}
	if _, err := NewFunctionRegistry(isSet); err == nil {
		t.Errorf("NewFunctionRegistry() with intrinsic error = nil, want error")
	}
}

func TestPartitions_Lookup(t *testing.T) {
	p := DefaultPartitions()
	tests := []struct {
		region    string
		name      string
		dnsSuffix string
	}{
		{"us-east-1", "aws", "amazonaws.com"},
		{"aws-global", "aws", "amazonaws.com"},
		{"eu-made-up-9", "aws", "amazonaws.com"},
		{"cn-north-1", "aws-cn", "amazonaws.com.cn"},
		{"us-gov-west-1", "aws-us-gov", "amazonaws.com"},
		{"us-iso-east-1", "aws-iso", "c2s.ic.gov"},
		{"us-isob-east-1", "aws-iso-b", "sc2s.sgov.gov"},
		{"mars-central-1", "aws", "amazonaws.com"},
	}
	for _, tt := range tests {
		r := p.Lookup(tt.region)
		if r.Get("name") != tt.name || r.Get("dnsSuffix") != tt.dnsSuffix {
			t.Errorf("Lookup(%q) = %s, want %s / %s", tt.region, r, tt.name, tt.dnsSuffix)
		}
	}
}

func TestParsePartitions_YAML(t *testing.T) {
	src := `
version: "2.0"
partitions:
  - id: test
    regionRegex: "^t-\\d+$"
    outputs:
      dnsSuffix: example.test
      supportsFIPS: false
    regions:
      t-special:
        dnsSuffix: special.test
`
	p, err := ParsePartitions([]byte(src))
	if err != nil {
		t.Fatalf("ParsePartitions() error = %v, want nil", err)
	}
	if p.Version() != "2.0" {
		t.Errorf("Version() = %q, want 2.0", p.Version())
	}
	if got := p.Lookup("t-1").Get("name"); got != "test" {
		t.Errorf("Lookup(t-1) name = %v, want id as default name", got)
	}
	if got := p.Lookup("t-special").Get("dnsSuffix"); got != "special.test" {
		t.Errorf("Lookup(t-special) dnsSuffix = %v, want override", got)
	}
	if got := p.Lookup("zzz").Get("dnsSuffix"); got != "example.test" {
		t.Errorf("Lookup(zzz) dnsSuffix = %v, want first partition", got)
	}

	if _, err := ParsePartitions([]byte(`{"partitions": []}`)); err == nil {
		t.Errorf("ParsePartitions() with no partitions error = nil, want error")
	}
	if _, err := ParsePartitions([]byte(`{"partitions": [{"id": "x", "regionRegex": "("}]}`)); err == nil {
		t.Errorf("ParsePartitions() with bad regex error = nil, want error")
	}
}

func TestLoadPartitions_MissingFile(t *testing.T) {
	_, err := LoadPartitions("/nonexistent/partitions.json")
	if err == nil || errors.Unwrap(err) == nil {
		t.Errorf("LoadPartitions() error = %v, want wrapped read error", err)
	}
}
