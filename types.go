package settings

import (
	"maps"
	"time"
)

// RuleContext is what a rule sees when it runs. Document keys are bound at
// the top level, so `saldo.enabled` reads the document's saldo object; the
// reserved names now, args, metadata, domain and tenant are bound beside them.
type RuleContext struct {
	Document Document
	Domain   string
	Tenant   string
	// Now defaults to the wall clock.
	Now      time.Time
	Args     map[string]any
	Metadata map[string]any
}

// env returns the variables bound for evaluation. Reserved names win over
// document keys of the same name.
func (ctx RuleContext) env() map[string]any {
	env := make(map[string]any, len(ctx.Document)+5)
	maps.Copy(env, ctx.Document)
	env["now"] = ctx.Now
	if ctx.Now.IsZero() {
		env["now"] = time.Now()
	}
	env["args"] = orEmpty(ctx.Args)
	env["metadata"] = orEmpty(ctx.Metadata)
	env["domain"] = ctx.Domain
	env["tenant"] = ctx.Tenant
	return env
}

func (ctx RuleContext) label() string {
	if ctx.Domain == "" {
		return "unknown"
	}
	return ctx.Domain
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// Evaluator runs rule expressions for one engine.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string) (CompiledRule, error)
}

// CompiledRule is an expression ready to run against many contexts.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// ProgramCache holds compiled programs. Keys include the engine name, so one
// cache may serve several engines.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}
