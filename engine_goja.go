//go:build js_eval

package settings

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsBackend struct{}

func newJSBackend() backend { return jsBackend{} }

func (jsBackend) scoped() bool { return false }

func (jsBackend) compile(expression string, _ []string, functions Functions) (program, error) {
	compiled, err := goja.Compile("rule", fmt.Sprintf("(function(){ return (%s); })()", expression), false)
	if err != nil {
		return nil, err
	}
	return jsProgram{program: compiled, functions: functions}, nil
}

type jsProgram struct {
	program   *goja.Program
	functions Functions
}

// run uses a fresh runtime per evaluation; goja runtimes are not safe for
// concurrent use.
func (p jsProgram) run(env map[string]any) (any, error) {
	vm := goja.New()
	for key, value := range env {
		if err := vm.Set(key, value); err != nil {
			return nil, err
		}
	}
	for name, fn := range p.functions {
		if err := vm.Set(name, func(args ...any) (any, error) { return fn(args...) }); err != nil {
			return nil, err
		}
	}
	if len(p.functions) > 0 {
		if err := vm.Set("call", p.functions.Call); err != nil {
			return nil, err
		}
	}
	value, err := vm.RunProgram(p.program)
	if err != nil {
		return nil, err
	}
	return value.Export(), nil
}
