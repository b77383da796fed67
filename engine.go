package settings

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// EngineOption configures an evaluator built by NewEngine.
type EngineOption func(*engineConfig)

type engineConfig struct {
	cache     ProgramCache
	functions Functions
}

// WithProgramCache shares compiled programs through cache.
func WithProgramCache(cache ProgramCache) EngineOption {
	return func(cfg *engineConfig) {
		cfg.cache = cache
	}
}

// WithFunctions exposes helpers to expressions, both by name and through
// call(name, ...).
func WithFunctions(functions Functions) EngineOption {
	return func(cfg *engineConfig) {
		cfg.functions = functions.clone()
	}
}

// backend compiles expressions for one rule language.
type backend interface {
	compile(expression string, names []string, functions Functions) (program, error)
	// scoped reports whether programs depend on the set of bound names, as
	// CEL declarations do.
	scoped() bool
}

type program interface {
	run(env map[string]any) (any, error)
}

// NewEngine returns the evaluator for name. EngineJS is only available in
// builds tagged js_eval.
func NewEngine(name string, opts ...EngineOption) (Evaluator, error) {
	var b backend
	switch name {
	case EngineExpr:
		b = exprBackend{}
	case EngineCEL:
		b = celBackend{}
	case EngineJS:
		b = newJSBackend()
	}
	if b == nil {
		return nil, fmt.Errorf("settings: rule engine %q unavailable", name)
	}
	e := &evaluator{name: name, backend: b}
	for _, opt := range opts {
		if opt != nil {
			opt(&e.config)
		}
	}
	return e, nil
}

type evaluator struct {
	name    string
	backend backend
	config  engineConfig
}

func (e *evaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, evaluationError(e.name, expression, ctx.label(), err)
	}
	return rule.Evaluate(ctx)
}

// Compile checks the expression up front where the language allows it. CEL
// programs are built on first evaluation, once the bound names are known.
func (e *evaluator) Compile(expression string) (CompiledRule, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, engineError(e.name, errors.New("expression must not be empty"))
	}
	if !e.backend.scoped() {
		if _, err := e.load(expression, nil); err != nil {
			return nil, evaluationError(e.name, expression, "", err)
		}
	}
	return &compiledRule{evaluator: e, expression: expression}, nil
}

func (e *evaluator) load(expression string, names []string) (program, error) {
	key := e.name + ":" + expression
	if e.backend.scoped() {
		key = e.name + ":" + strings.Join(names, ",") + ":" + expression
	}
	if e.config.cache != nil {
		if cached, ok := e.config.cache.Get(key); ok {
			if p, ok := cached.(program); ok {
				return p, nil
			}
		}
	}
	p, err := e.backend.compile(expression, names, e.config.functions)
	if err != nil {
		return nil, err
	}
	if e.config.cache != nil {
		e.config.cache.Set(key, p)
	}
	return p, nil
}

type compiledRule struct {
	evaluator  *evaluator
	expression string
}

func (r *compiledRule) Evaluate(ctx RuleContext) (any, error) {
	env := ctx.env()
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	p, err := r.evaluator.load(r.expression, names)
	if err != nil {
		return nil, evaluationError(r.evaluator.name, r.expression, ctx.label(), err)
	}
	result, err := p.run(env)
	if err != nil {
		return nil, evaluationError(r.evaluator.name, r.expression, ctx.label(), err)
	}
	return result, nil
}

// NewProgramCache returns a ProgramCache safe for concurrent use.
func NewProgramCache() ProgramCache {
	return &syncProgramCache{}
}

type syncProgramCache struct {
	programs sync.Map
}

func (c *syncProgramCache) Get(key string) (any, bool) {
	return c.programs.Load(key)
}

func (c *syncProgramCache) Set(key string, value any) {
	c.programs.Store(key, value)
}
