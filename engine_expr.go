package settings

import (
	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

type exprBackend struct{}

func (exprBackend) scoped() bool { return false }

func (exprBackend) compile(expression string, _ []string, functions Functions) (program, error) {
	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range functions.Names() {
		fn := functions[name]
		options = append(options, exprlang.Function(name, func(args ...any) (any, error) {
			return fn(args...)
		}))
	}
	compiled, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, err
	}
	return exprProgram{program: compiled, functions: functions}, nil
}

type exprProgram struct {
	program   *exprvm.Program
	functions Functions
}

func (p exprProgram) run(env map[string]any) (any, error) {
	if len(p.functions) > 0 {
		env["call"] = p.functions.Call
	}
	return exprlang.Run(p.program, env)
}
