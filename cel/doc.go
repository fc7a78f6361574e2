// Package cel provides an implementation of the workflow.Evaluator interface
// backed by Google's cel-go expression engine.
//
// See https://github.com/google/cel-go and https://opensource.google/projects/cel for more information
// about CEL.
//
// Each rule's condition is turned into a CEL expression such as
//
//	a < 2006
//
// with the record fields x, m, a and s declared as integers. The expression
// is compiled once, when the graph is built, and evaluated for every record.
//
// Range evaluation (workflow.Graph.Count) always uses interval arithmetic on
// the rules themselves; the evaluator only affects point evaluation.
//
//	ev, err := cel.NewEvaluator()
//	...
//	g, err := workflow.NewGraph(defs, workflow.WithEvaluator(ev))
package cel
