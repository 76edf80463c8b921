package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solatis/waypoint/internal/core/registry"
	"github.com/solatis/waypoint/internal/rules"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [FILE]",
	Short: "Resolve an endpoint from a rule document or a stored service",
	Long: `Evaluates a rule set against parameters given as --param Name=value.

Boolean values accept strconv.ParseBool spellings; stringArray values are
comma separated. Either FILE or --service must be given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResolve,
}

var (
	resolveParams  []string
	resolveService string
	resolveOutput  string
)

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().StringArrayVarP(&resolveParams, "param", "p", nil, "parameter as Name=value (repeatable)")
	resolveCmd.Flags().StringVar(&resolveService, "service", "", "resolve against the stored rule set of this service")
	resolveCmd.Flags().StringVarP(&resolveOutput, "output", "o", "json", "output format (json, yaml)")
}

// parseParams splits Name=value pairs. Values stay strings for lenient binding.
func parseParams(pairs []string) (map[string]any, error) {
	values := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --param %q (expected Name=value)", pair)
		}
		if _, dup := values[name]; dup {
			return nil, fmt.Errorf("parameter %s given more than once", name)
		}
		values[name] = value
	}
	return values, nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	if (len(args) == 1) == (resolveService != "") {
		return fmt.Errorf("give exactly one of FILE or --service")
	}
	values, err := parseParams(resolveParams)
	if err != nil {
		return err
	}

	var ep *rules.ResolvedEndpoint
	if resolveService != "" {
		ep, err = resolveStored(cmd, resolveService, values)
	} else {
		ep, err = resolveFile(cmd, args[0], values)
	}

	var ruleErr *rules.RuleError
	if errors.As(err, &ruleErr) {
		return fmt.Errorf("rule %d: %s", ruleErr.RuleID, ruleErr.Message)
	}
	if err != nil {
		return err
	}
	return writeValue(cmd.OutOrStdout(), resolveOutput, endpointOutput(ep))
}

func resolveFile(cmd *cobra.Command, path string, values map[string]any) (*rules.ResolvedEndpoint, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	engine, err := newEngine(cfg)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := engine.CompileBytes(data)
	if err != nil {
		return nil, err
	}
	bound, err := p.Bind(values, rules.CoerceLenient)
	if err != nil {
		return nil, err
	}
	out, err := p.EvaluateBound(bound)
	if err != nil {
		return nil, err
	}
	return rules.OutcomeEndpointOrError(out)
}

func resolveStored(cmd *cobra.Command, service string, values map[string]any) (*rules.ResolvedEndpoint, error) {
	env, err := openStore(cmd)
	if err != nil {
		return nil, err
	}
	defer env.close()

	reg, err := newRegistry(env, registry.Options{})
	if err != nil {
		return nil, err
	}
	res, err := reg.Resolve(context.Background(), service, values, rules.CoerceLenient)
	if err != nil {
		return nil, err
	}
	return res.Endpoint, nil
}

type authSchemeOutput struct {
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
}

type endpointOutputDoc struct {
	URL         string              `json:"url"`
	Headers     map[string][]string `json:"headers,omitempty"`
	Properties  map[string]any      `json:"properties,omitempty"`
	AuthSchemes []authSchemeOutput  `json:"authSchemes,omitempty"`
}

func endpointOutput(ep *rules.ResolvedEndpoint) endpointOutputDoc {
	out := endpointOutputDoc{URL: ep.URL, Headers: ep.Headers, Properties: ep.Properties}
	for _, s := range ep.AuthSchemes {
		out.AuthSchemes = append(out.AuthSchemes, authSchemeOutput{Name: s.Name, Properties: s.Properties})
	}
	return out
}
