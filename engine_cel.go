package settings

import (
	celgo "github.com/google/cel-go/cel"
	functions "github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// celBackend declares every bound name as a variable; "now" is a timestamp,
// the rest are dynamic.
type celBackend struct{}

func (celBackend) scoped() bool { return true }

func (celBackend) compile(expression string, names []string, helpers Functions) (program, error) {
	opts := make([]celgo.EnvOption, 0, len(names)+len(helpers)+1)
	for _, name := range names {
		kind := celgo.DynType
		if name == "now" {
			kind = celgo.TimestampType
		}
		opts = append(opts, celgo.Variable(name, kind))
	}
	if len(helpers) > 0 {
		opts = append(opts, celgo.Function("call", celgo.Overload(
			"call_dyn",
			[]*celgo.Type{celgo.StringType, celgo.DynType},
			celgo.DynType,
			celgo.FunctionBinding(functions.FunctionOp(celCall(helpers))),
		)))
		for _, name := range helpers.Names() {
			fn := helpers[name]
			opts = append(opts, celgo.Function(name, celgo.Overload(
				name+"_dyn",
				[]*celgo.Type{celgo.DynType},
				celgo.DynType,
				celgo.UnaryBinding(func(value ref.Val) ref.Val {
					return celResult(fn(value.Value()))
				}),
			)))
		}
	}

	env, err := celgo.NewEnv(opts...)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	return celProgram{program: prg}, nil
}

type celProgram struct {
	program celgo.Program
}

func (p celProgram) run(env map[string]any) (any, error) {
	out, _, err := p.program.Eval(env)
	if err != nil {
		return nil, err
	}
	return out.Value(), nil
}

func celCall(helpers Functions) func(...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		if len(values) == 0 {
			return types.NewErr("settings: call requires a function name")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("settings: call name must be a string")
		}
		args := make([]any, 0, len(values)-1)
		for _, value := range values[1:] {
			args = append(args, value.Value())
		}
		return celResult(helpers.Call(name, args...))
	}
}

func celResult(result any, err error) ref.Val {
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}
