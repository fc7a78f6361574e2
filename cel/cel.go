package cel

import (
	"fmt"
	"math"

	"github.com/ezachrisen/workflow"
	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

// costLimit bounds the work CEL may do for a single comparison.
const costLimit = 1000

// Evaluator tests rule conditions by compiling them to CEL programs.
// It implements the workflow.Evaluator interface.
type Evaluator struct {
	env *cel.Env
}

// NewEvaluator creates an Evaluator whose environment declares the four
// record fields as CEL integers.
func NewEvaluator() (*Evaluator, error) {
	opts := make([]cel.EnvOption, 0, workflow.NumFields)
	for _, f := range workflow.Fields {
		opts = append(opts, cel.Variable(f.String(), cel.IntType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating CEL environment")
	}
	return &Evaluator{env: env}, nil
}

// Expression returns the CEL source for the rule's condition.
func Expression(r workflow.Rule) string {
	if r.Threshold == math.MinInt64 {
		// the literal 9223372036854775808 is out of range for int
		return fmt.Sprintf("%s %s (%d - 1)", r.Field, r.Op, r.Threshold+1)
	}
	return fmt.Sprintf("%s %s %d", r.Field, r.Op, r.Threshold)
}

// Compile parses and type checks the rule's condition and returns a
// runnable cel.Program.
func (e *Evaluator) Compile(r workflow.Rule) (any, error) {
	expr := Expression(r)
	ast, iss := e.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Wrapf(iss.Err(), "compiling %q", expr)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("expression %q produces %s, not bool", expr, ast.OutputType())
	}
	prg, err := e.env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, errors.Wrapf(err, "generating program for %q", expr)
	}
	return prg, nil
}

// Eval runs the rule's compiled program against the record.
func (e *Evaluator) Eval(r workflow.Rule, rec workflow.Record) (bool, error) {
	prg, ok := r.Program.(cel.Program)
	if !ok {
		return false, errors.Errorf("rule %s was not compiled by the CEL evaluator (program is %T)", r, r.Program)
	}

	vars := make(map[string]any, workflow.NumFields)
	for _, f := range workflow.Fields {
		vars[f.String()] = rec.Get(f)
	}

	out, _, err := prg.Eval(vars)
	if err != nil {
		return false, errors.Wrapf(err, "evaluating %q", Expression(r))
	}
	pass, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("expected boolean value, got %T, evaluating %q", out.Value(), Expression(r))
	}
	return pass, nil
}
