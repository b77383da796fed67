package settings

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func paymentsDoc(mp, stripe, pix bool) Document {
	return Document{
		"gateways": map[string]any{
			"mercadopago": map[string]any{"enabled": mp},
			"stripe":      map[string]any{"enabled": stripe},
			"pix":         map[string]any{"enabled": pix},
		},
	}
}

func TestCELExclusiveGatewayRule(t *testing.T) {
	engines := DefaultEngines()
	rule := Rule{
		Name:       "single_gateway",
		Engine:     EngineCEL,
		Expression: "size(gateways.filter(k, gateways[k].enabled == true)) <= 1",
		Message:    "only one gateway can be enabled",
	}

	require.NoError(t, engines.Check(RuleContext{Document: paymentsDoc(false, true, false), Domain: "payments"}, []Rule{rule}, nil))

	err := engines.Check(RuleContext{Document: paymentsDoc(true, true, false), Domain: "payments"}, []Rule{rule}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRejected)
	var violation *RuleViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "single_gateway", violation.Rule)
	assert.Equal(t, "only one gateway can be enabled", violation.Message)
	assert.NoError(t, violation.Err)
}

func TestExprRuleDefaultsEngine(t *testing.T) {
	engines := DefaultEngines()
	rule := Rule{Name: "deposit_range", Expression: "min_deposit <= max_deposit", Message: "minimum above maximum"}

	ok := RuleContext{Document: Document{"min_deposit": 5.0, "max_deposit": 500.0}, Domain: "saldo"}
	require.NoError(t, engines.Check(ok, []Rule{rule}, nil))

	bad := RuleContext{Document: Document{"min_deposit": 900.0, "max_deposit": 500.0}, Domain: "saldo"}
	assert.ErrorIs(t, engines.Check(bad, []Rule{rule}, nil), ErrRejected)
}

func TestRuleHelpersAreRegistered(t *testing.T) {
	engines := DefaultEngines()
	ctx := RuleContext{Document: Document{
		"log_channel": "123456789012345678",
		"accent":      "#00ff00",
		"webhook":     "https://example.com/hook",
	}}
	rules := []Rule{
		{Name: "snowflake", Expression: "is_snowflake(log_channel)"},
		{Name: "color", Expression: "is_hex_color(accent)"},
		{Name: "url", Expression: "is_url(webhook)"},
	}
	require.NoError(t, engines.Check(ctx, rules, nil))

	ctx.Document["log_channel"] = "general"
	assert.ErrorIs(t, engines.Check(ctx, rules, nil), ErrRejected)
}

func TestRuleNonBooleanResultIsViolation(t *testing.T) {
	engines := DefaultEngines()
	err := engines.Check(RuleContext{Document: Document{"winners": 3.0}}, []Rule{{Name: "bad", Expression: "winners + 1"}}, nil)
	var violation *RuleViolation
	require.ErrorAs(t, err, &violation)
	require.Error(t, violation.Err)
}

func TestRuleUnknownEngineIsViolation(t *testing.T) {
	err := Engines{}.Check(RuleContext{}, []Rule{{Name: "r", Engine: "lua", Expression: "true"}}, nil)
	assert.ErrorIs(t, err, ErrRejected)
}

func TestRuleEvaluationErrorCarriesMetadata(t *testing.T) {
	engines := DefaultEngines()
	err := engines.Check(RuleContext{Domain: "cloud"}, []Rule{{Name: "broken", Engine: EngineCEL, Expression: "missing_var > 1"}}, nil)
	var violation *RuleViolation
	require.ErrorAs(t, err, &violation)
	var evalErr *EvaluationError
	require.True(t, errors.As(violation.Err, &evalErr))
	assert.Equal(t, EngineCEL, evalErr.Engine)
	assert.Equal(t, "cloud", evalErr.Domain)
}

func TestRuleEvaluationsAreLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	engines := DefaultEngines()
	rules := []Rule{{Name: "ok", Expression: "true"}, {Name: "no", Expression: "false"}}
	_ = engines.Check(RuleContext{Domain: "giveaways"}, rules, zap.New(core))

	assert.Equal(t, 2, logs.FilterMessage("rule evaluated").Len())
	assert.Equal(t, 0, logs.FilterMessage("rule evaluation failed").Len())

	_ = engines.Check(RuleContext{Domain: "giveaways"}, []Rule{{Name: "typed", Expression: "1 + 1"}}, zap.New(core))
	failed := logs.FilterMessage("rule evaluation failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "1 + 1", failed[0].ContextMap()["expr"])
}

func TestCompiledRulesReuseProgramCache(t *testing.T) {
	cache := NewProgramCache()
	evaluator, err := NewEngine(EngineExpr, WithProgramCache(cache))
	require.NoError(t, err)
	compiled, err := evaluator.Compile("winners > 0")
	require.NoError(t, err)

	for _, winners := range []float64{1, 3} {
		result, err := compiled.Evaluate(RuleContext{Document: Document{"winners": winners}})
		require.NoError(t, err)
		assert.Equal(t, true, result)
	}
	_, cached := cache.Get(EngineExpr + ":winners > 0")
	assert.True(t, cached)
}

func TestCompileRejectsBadExpressions(t *testing.T) {
	evaluator, err := NewEngine(EngineExpr)
	require.NoError(t, err)

	_, err = evaluator.Compile("   ")
	assert.ErrorContains(t, err, "expression must not be empty")

	_, err = evaluator.Compile("winners >")
	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)
	assert.Equal(t, EngineExpr, evalErr.Engine)
}

func TestCELHelpersByNameAndCall(t *testing.T) {
	evaluator, err := NewEngine(EngineCEL, WithFunctions(DefaultFunctions()))
	require.NoError(t, err)
	ctx := RuleContext{Document: Document{"role": "123456789012345678", "site": "ftp://x"}}

	result, err := evaluator.Evaluate(ctx, "is_snowflake(role) && !is_url(site)")
	require.NoError(t, err)
	assert.Equal(t, true, result)

	result, err = evaluator.Evaluate(ctx, `call("is_snowflake", role)`)
	require.NoError(t, err)
	assert.Equal(t, true, result)
}

func TestFunctionsRegister(t *testing.T) {
	functions := Functions{}
	require.NoError(t, functions.Register("Double", func(args ...any) (any, error) {
		return args[0].(float64) * 2, nil
	}))
	assert.Error(t, functions.Register("double", func(...any) (any, error) { return nil, nil }))
	assert.Error(t, functions.Register(" ", func(...any) (any, error) { return nil, nil }))
	assert.Error(t, functions.Register("nil", nil))

	evaluator, err := NewEngine(EngineExpr, WithFunctions(functions))
	require.NoError(t, err)
	result, err := evaluator.Evaluate(RuleContext{Document: Document{"n": 2.0}}, `double(n) == 4 && call("double", n) == 4`)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	_, err = functions.Call("missing")
	assert.ErrorContains(t, err, "not registered")
}

func TestJSEngineMatchesBuildTag(t *testing.T) {
	evaluator, err := NewEngine(EngineJS)
	if newJSBackend() == nil {
		assert.ErrorContains(t, err, "unavailable")
		_, registered := DefaultEngines()[EngineJS]
		assert.False(t, registered)
		return
	}
	require.NoError(t, err)
	result, err := evaluator.Evaluate(RuleContext{Document: Document{"a": 2.0}}, "a * 2 === 4")
	require.NoError(t, err)
	assert.Equal(t, true, result)
}

func TestUnknownEngine(t *testing.T) {
	_, err := NewEngine("lua")
	assert.ErrorContains(t, err, `rule engine "lua" unavailable`)
}
