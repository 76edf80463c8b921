package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/waypoint/internal/types"
)

func TestCoerceParam(t *testing.T) {
	tests := []struct {
		name     string
		pt       types.ParamType
		value    any
		mode     CoercionMode
		expected any
	}{
		{"bool strict", types.ParamTypeBoolean, true, CoerceStrict, true},
		{"bool lenient string", types.ParamTypeBoolean, " false ", CoerceLenient, false},
		{"bool lenient numeric", types.ParamTypeBoolean, "1", CoerceLenient, true},
		{"string", types.ParamTypeString, "us-east-1", CoerceStrict, "us-east-1"},
		{"string array from strings", types.ParamTypeStringArray, []string{"a", "b"}, CoerceStrict, []any{"a", "b"}},
		{"string array from any", types.ParamTypeStringArray, []any{"a"}, CoerceStrict, []any{"a"}},
		{"string array lenient split", types.ParamTypeStringArray, "a, b,c", CoerceLenient, []any{"a", "b", "c"}},
		{"string array lenient empty", types.ParamTypeStringArray, "", CoerceLenient, []any{}},
		{"nil stays nil", types.ParamTypeString, nil, CoerceStrict, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CoerceParam(tt.pt, tt.value, tt.mode)
			if err != nil {
				t.Fatalf("CoerceParam() error = %v, want nil", err)
			}
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("CoerceParam() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCoerceParam_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		pt    types.ParamType
		value any
		mode  CoercionMode
	}{
		{"bool strict from string", types.ParamTypeBoolean, "true", CoerceStrict},
		{"bool lenient garbage", types.ParamTypeBoolean, "maybe", CoerceLenient},
		{"string from number", types.ParamTypeString, 42, CoerceLenient},
		{"string from bool", types.ParamTypeString, true, CoerceStrict},
		{"array strict from string", types.ParamTypeStringArray, "a,b", CoerceStrict},
		{"array with non-string", types.ParamTypeStringArray, []any{"a", 1}, CoerceStrict},
		{"unknown type", types.ParamType("number"), "1", CoerceLenient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CoerceParam(tt.pt, tt.value, tt.mode)
			if !errors.Is(err, types.ErrInvalidParameter) {
				t.Errorf("CoerceParam() error = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestCoerceParam_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("lenient split preserves comma separated items", prop.ForAll(
		func(items []string) bool {
			if len(items) == 0 {
				return true
			}
			got, err := CoerceParam(types.ParamTypeStringArray, strings.Join(items, ","), CoerceLenient)
			if err != nil {
				return false
			}
			list := got.([]any)
			if len(list) != len(items) {
				return false
			}
			for i := range items {
				if list[i] != items[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.Property("strict coercion is the identity on strings", prop.ForAll(
		func(s string) bool {
			got, err := CoerceParam(types.ParamTypeString, s, CoerceStrict)
			return err == nil && got == s
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
