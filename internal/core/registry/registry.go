package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/solatis/waypoint/internal/core/metrics"
	"github.com/solatis/waypoint/internal/rules"
	"github.com/solatis/waypoint/internal/types"
)

// DefaultActiveTTL bounds how long a service's active revision is served
// from memory before the store is consulted again.
const DefaultActiveTTL = 5 * time.Second

// Options configures a Registry.
type Options struct {
	ProgramCacheSize int
	ResultCacheSize  int
	ActiveTTL        time.Duration // 0 uses DefaultActiveTTL
	Logger           *zap.Logger
	Metrics          *metrics.Metrics // nil disables metrics
}

// Resolution is the outcome of resolving one request against a service.
// Endpoint is owned by the caller; it never aliases the result cache.
type Resolution struct {
	RuleSetID types.RuleSetID
	Endpoint  *rules.ResolvedEndpoint
	Cached    bool
}

// cachedResult is an evaluation outcome; err is nil, a *rules.RuleError,
// or wraps ErrUnresolved or ErrEvaluation.
type cachedResult struct {
	endpoint *rules.ResolvedEndpoint
	err      error
}

// activeEntry is a service's active revision as last read from the store.
type activeEntry struct {
	rs      *RuleSet
	fetched time.Time
}

// Registry compiles stored rule sets on demand and caches both compiled
// programs (by rule set id) and resolutions (by rule set id and bound
// parameter values). The active revision per service is cached for ActiveTTL,
// so imports made by another process become visible within that window;
// imports and deletes made through the registry are visible immediately.
// Safe for concurrent use.
type Registry struct {
	store     *Store
	engine    *rules.Engine
	programs  *lru.Cache
	results   *lru.Cache
	active    *lru.Cache
	activeTTL time.Duration
	compiles  singleflight.Group
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New creates a registry over store.
func New(store *Store, engine *rules.Engine, opts Options) (*Registry, error) {
	if store == nil || engine == nil {
		return nil, fmt.Errorf("registry requires a store and an engine")
	}
	programs, err := lru.New(opts.ProgramCacheSize)
	if err != nil {
		return nil, fmt.Errorf("program cache: %w", err)
	}
	results, err := lru.New(opts.ResultCacheSize)
	if err != nil {
		return nil, fmt.Errorf("result cache: %w", err)
	}
	active, err := lru.New(opts.ProgramCacheSize)
	if err != nil {
		return nil, fmt.Errorf("active revision cache: %w", err)
	}
	ttl := opts.ActiveTTL
	if ttl <= 0 {
		ttl = DefaultActiveTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:     store,
		engine:    engine,
		programs:  programs,
		results:   results,
		active:    active,
		activeTTL: ttl,
		logger:    logger,
		metrics:   opts.Metrics,
		now:       time.Now,
	}, nil
}

// Engine returns the engine programs are compiled with.
func (r *Registry) Engine() *rules.Engine { return r.engine }

// compile compiles a raw document and records compile metrics.
func (r *Registry) compile(document []byte) (*rules.Program, error) {
	start := time.Now()
	p, err := r.engine.CompileBytes(document)
	r.metrics.ObserveCompile(time.Since(start), err)
	return p, err
}

// Import validates document and stores it as the active revision of service.
// A document identical to the active revision is not stored again.
func (r *Registry) Import(ctx context.Context, service string, document []byte) (*RuleSet, error) {
	document = bytes.TrimSpace(document)
	p, err := r.compile(document)
	if err != nil {
		return nil, err
	}

	current, err := r.store.Latest(ctx, service)
	switch {
	case err == nil && current.Checksum == Checksum(document):
		r.logger.Info("rule set unchanged", zap.String("service", service), zap.String("rule_set_id", string(current.ID)))
		r.setActive(current)
		return current, nil
	case err != nil && !errors.Is(err, types.ErrRuleSetNotFound):
		return nil, err
	}

	rs, err := r.store.Insert(ctx, service, document)
	if err != nil {
		return nil, err
	}
	r.programs.Add(rs.ID, p)
	r.setActive(rs)
	r.logger.Info("rule set imported",
		zap.String("service", service),
		zap.String("rule_set_id", string(rs.ID)),
		zap.Int("rules", p.Stats.Rules),
		zap.Int("parameters", len(p.Params)),
	)
	return rs, nil
}

// Delete removes one revision. Deleting the active revision reactivates the
// previous one.
func (r *Registry) Delete(ctx context.Context, id types.RuleSetID) error {
	rs, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}
	r.active.Remove(rs.Service)
	r.logger.Info("rule set deleted", zap.String("service", rs.Service), zap.String("rule_set_id", string(id)))
	return nil
}

func (r *Registry) setActive(rs *RuleSet) {
	r.active.Add(rs.Service, activeEntry{rs: rs, fetched: r.now()})
}

// activeRuleSet returns the active revision of service, reading the store
// only when the cached entry is missing or older than the TTL.
func (r *Registry) activeRuleSet(ctx context.Context, service string) (*RuleSet, error) {
	if v, ok := r.active.Get(service); ok {
		e := v.(activeEntry)
		if r.now().Sub(e.fetched) < r.activeTTL {
			return e.rs, nil
		}
	}
	rs, err := r.store.Latest(ctx, service)
	if err != nil {
		if errors.Is(err, types.ErrRuleSetNotFound) {
			r.active.Remove(service)
		}
		return nil, err
	}
	r.setActive(rs)
	return rs, nil
}

// Program returns the active rule set of service and its compiled program.
func (r *Registry) Program(ctx context.Context, service string) (*RuleSet, *rules.Program, error) {
	rs, err := r.activeRuleSet(ctx, service)
	if err != nil {
		return nil, nil, err
	}
	if cached, ok := r.programs.Get(rs.ID); ok {
		r.metrics.CacheLookup(metrics.CacheProgram, true)
		return rs, cached.(*rules.Program), nil
	}
	r.metrics.CacheLookup(metrics.CacheProgram, false)

	v, err, _ := r.compiles.Do(string(rs.ID), func() (any, error) {
		p, err := r.compile([]byte(rs.Document))
		if err != nil {
			return nil, err
		}
		r.programs.Add(rs.ID, p)
		return p, nil
	})
	if err != nil {
		// Stored documents were valid when imported; a failure here means the
		// engine changed underneath them.
		r.logger.Error("stored rule set no longer compiles",
			zap.String("service", service),
			zap.String("rule_set_id", string(rs.ID)),
			zap.Error(err),
		)
		return nil, nil, fmt.Errorf("compile rule set %s: %w", rs.ID, err)
	}
	return rs, v.(*rules.Program), nil
}

// Resolve evaluates the active rule set of service against values keyed by
// parameter name. A modeled error rule is returned as *rules.RuleError.
func (r *Registry) Resolve(ctx context.Context, service string, values map[string]any, mode rules.CoercionMode) (*Resolution, error) {
	start := time.Now()
	res, err := r.resolve(ctx, service, values, mode)
	r.metrics.ObserveResolve(time.Since(start), Outcome(err))
	return res, err
}

func (r *Registry) resolve(ctx context.Context, service string, values map[string]any, mode rules.CoercionMode) (*Resolution, error) {
	rs, p, err := r.Program(ctx, service)
	if err != nil {
		return nil, err
	}
	bound, err := p.Bind(values, mode)
	if err != nil {
		return nil, err
	}

	key, err := resultKey(rs.ID, bound)
	if err != nil {
		return nil, err
	}
	if v, ok := r.results.Get(key); ok {
		r.metrics.CacheLookup(metrics.CacheResult, true)
		c := v.(cachedResult)
		return &Resolution{RuleSetID: rs.ID, Endpoint: cloneEndpoint(c.endpoint), Cached: true}, c.err
	}
	r.metrics.CacheLookup(metrics.CacheResult, false)

	out, err := p.EvaluateBound(bound)
	if err == nil {
		var ep *rules.ResolvedEndpoint
		ep, err = rules.OutcomeEndpointOrError(out)
		r.results.Add(key, cachedResult{endpoint: ep, err: err})
		return &Resolution{RuleSetID: rs.ID, Endpoint: cloneEndpoint(ep)}, err
	}
	if errors.Is(err, types.ErrEvaluation) {
		r.results.Add(key, cachedResult{err: err})
	}
	return nil, err
}

// resultKey identifies a resolution: the rule set id followed by the bound
// values encoded with sorted keys.
func resultKey(id types.RuleSetID, bound map[string]any) (string, error) {
	encoded, err := json.Marshal(bound)
	if err != nil {
		return "", fmt.Errorf("encode parameters: %w", err)
	}
	return string(id) + "\x00" + string(encoded), nil
}

// Outcome classifies a Resolve error for metrics and logs.
func Outcome(err error) string {
	var ruleErr *rules.RuleError
	switch {
	case err == nil:
		return metrics.OutcomeEndpoint
	case errors.As(err, &ruleErr):
		return metrics.OutcomeRuleError
	case errors.Is(err, types.ErrUnresolved):
		return metrics.OutcomeUnresolved
	case errors.Is(err, types.ErrRuleSetNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, types.ErrMissingParameter),
		errors.Is(err, types.ErrInvalidParameter),
		errors.Is(err, types.ErrUnknownParameter):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeFailure
	}
}

// List returns every stored revision.
func (r *Registry) List(ctx context.Context) ([]Summary, error) {
	return r.store.List(ctx)
}

// cloneEndpoint deep copies ep so callers cannot mutate a cached result.
func cloneEndpoint(ep *rules.ResolvedEndpoint) *rules.ResolvedEndpoint {
	if ep == nil {
		return nil
	}
	out := &rules.ResolvedEndpoint{URL: ep.URL}
	if ep.Headers != nil {
		out.Headers = make(map[string][]string, len(ep.Headers))
		for k, v := range ep.Headers {
			out.Headers[k] = append([]string(nil), v...)
		}
	}
	if ep.Properties != nil {
		out.Properties = cloneValue(ep.Properties).(map[string]any)
	}
	for _, s := range ep.AuthSchemes {
		scheme := rules.AuthScheme{Name: s.Name}
		if s.Properties != nil {
			scheme.Properties = cloneValue(s.Properties).(map[string]any)
		}
		out.AuthSchemes = append(out.AuthSchemes, scheme)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = cloneValue(e)
		}
		return m
	case []any:
		l := make([]any, len(x))
		for i, e := range x {
			l[i] = cloneValue(e)
		}
		return l
	case []string:
		return append([]string(nil), x...)
	default:
		return v
	}
}
