package settings

import (
	"cmp"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Rule engines understood by Engines.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// Rule is a whole-document check run before a persist.
type Rule struct {
	Name       string
	Expression string
	// Engine defaults to EngineExpr.
	Engine  string
	Message string
}

// RuleViolation reports a rule that evaluated false or could not be evaluated.
type RuleViolation struct {
	Rule    string
	Message string
	Err     error
}

func (v *RuleViolation) Error() string {
	if v.Err != nil {
		return fmt.Sprintf("settings: rule %s: %s: %v", v.Rule, v.Message, v.Err)
	}
	return fmt.Sprintf("settings: rule %s: %s", v.Rule, v.Message)
}

func (v *RuleViolation) Unwrap() error { return ErrRejected }

// Engines maps engine names to evaluators.
type Engines map[string]Evaluator

// DefaultEngines builds every available engine sharing one program cache and
// the default helper functions. EngineJS is present only in js_eval builds.
func DefaultEngines() Engines {
	opts := []EngineOption{WithProgramCache(NewProgramCache()), WithFunctions(DefaultFunctions())}
	engines := Engines{}
	for _, name := range []string{EngineExpr, EngineCEL, EngineJS} {
		if evaluator, err := NewEngine(name, opts...); err == nil {
			engines[name] = evaluator
		}
	}
	return engines
}

// Check runs rules in order and returns the first violation. Each evaluation
// is logged at debug level, or at warn when the rule could not be evaluated.
// A nil logger disables logging.
func (e Engines) Check(ctx RuleContext, rules []Rule, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, rule := range rules {
		engine := cmp.Or(rule.Engine, EngineExpr)
		evaluator := e[engine]
		if evaluator == nil {
			return &RuleViolation{Rule: rule.Name, Message: rule.Message, Err: fmt.Errorf("engine %q unavailable", engine)}
		}

		started := time.Now()
		passed, err := e.passes(evaluator, ctx, rule.Expression)
		fields := []zap.Field{
			zap.String("engine", engine),
			zap.String("rule", rule.Name),
			zap.String("domain", ctx.Domain),
			zap.Bool("passed", passed),
			zap.Duration("duration", time.Since(started)),
		}
		if err != nil {
			logger.Warn("rule evaluation failed", append(fields, zap.String("expr", rule.Expression), zap.Error(err))...)
		} else {
			logger.Debug("rule evaluated", fields...)
		}

		if err != nil || !passed {
			return &RuleViolation{Rule: rule.Name, Message: rule.Message, Err: err}
		}
	}
	return nil
}

func (Engines) passes(evaluator Evaluator, ctx RuleContext, expression string) (bool, error) {
	result, err := evaluator.Evaluate(ctx, expression)
	if err != nil {
		return false, err
	}
	passed, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("rule returned %T, want bool", result)
	}
	return passed, nil
}
