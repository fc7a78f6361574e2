package workflow

// Evaluator is the interface implemented by types that can test a rule's
// condition against a record.
//
// The graph calls Compile once per rule while it is being built and stores
// the result in Rule.Program. Eval receives the rule with that program
// attached.
type Evaluator interface {
	Compile(r Rule) (any, error)
	Eval(r Rule, rec Record) (bool, error)
}

// NativeEvaluator compares fields directly. It is the default Evaluator.
type NativeEvaluator struct{}

func (NativeEvaluator) Compile(Rule) (any, error) { return nil, nil }

func (NativeEvaluator) Eval(r Rule, rec Record) (bool, error) {
	return r.Matches(rec.Get(r.Field)), nil
}
