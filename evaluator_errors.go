package settings

import (
	"errors"
	"fmt"
	"strings"
)

// EvaluationError reports a rule expression that failed to compile or run.
type EvaluationError struct {
	Engine string
	Expr   string
	Domain string
	Err    error
}

func (e *EvaluationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "settings: %s rule", e.Engine)
	if e.Domain != "" {
		fmt.Fprintf(&b, " in %s", e.Domain)
	}
	if e.Expr != "" {
		fmt.Fprintf(&b, " %q", e.Expr)
	}
	fmt.Fprintf(&b, ": %v", e.Err)
	return b.String()
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// engineError tags err with the engine name unless it already carries one.
func engineError(engine string, err error) error {
	var evalErr *EvaluationError
	if err == nil || errors.As(err, &evalErr) || strings.HasPrefix(err.Error(), "settings:") {
		return err
	}
	return fmt.Errorf("settings: %s engine: %w", engine, err)
}

// evaluationError attaches rule metadata to err. An EvaluationError already in
// the chain only has its blank fields filled.
func evaluationError(engine, expr, domain string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		return &EvaluationError{Engine: engine, Expr: expr, Domain: domain, Err: err}
	}
	fill := func(field *string, value string) {
		if *field == "" {
			*field = value
		}
	}
	fill(&evalErr.Engine, engine)
	fill(&evalErr.Expr, expr)
	fill(&evalErr.Domain, domain)
	return err
}
