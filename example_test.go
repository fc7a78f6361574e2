package workflow_test

import (
	"context"
	"fmt"

	"github.com/ezachrisen/workflow"
	"github.com/ezachrisen/workflow/cel"
)

// Example showing how a single record is routed through a graph.
func Example() {
	defs := []workflow.Definition{
		{Name: "in", Rules: []workflow.RuleDefinition{
			{Field: "s", Op: "<", Threshold: 1351, Outcome: "px"},
		}, Default: "A"},
		{Name: "px", Rules: []workflow.RuleDefinition{
			{Field: "a", Op: "<", Threshold: 2006, Outcome: "A"},
		}, Default: "R"},
	}

	g, err := workflow.NewGraph(defs)
	if err != nil {
		fmt.Println(err)
		return
	}

	r, err := g.Classify(context.Background(), workflow.NewRecord(1, 2, 3000, 4))
	if err != nil {
		fmt.Println(err)
		return
	}
	for _, s := range r.Steps {
		fmt.Printf("%s: %s → %s\n", s.Workflow, s.Condition, s.Outcome)
	}
	fmt.Println(r.Accepted())
	// Output:
	// in: s<1351 → px
	// px: default → R
	// false
}

// Example showing how to count every accepted record in a domain without
// enumerating them.
func ExampleGraph_Count() {
	defs := []workflow.Definition{
		{Name: "in", Rules: []workflow.RuleDefinition{
			{Field: "x", Op: ">", Threshold: 5, Outcome: "R"},
			{Field: "m", Op: "<", Threshold: 3, Outcome: "A"},
		}, Default: "R"},
	}

	g, err := workflow.NewGraph(defs)
	if err != nil {
		fmt.Println(err)
		return
	}

	t, err := g.Count(context.Background(), workflow.Domain{Lo: 1, Hi: 10})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(t.Accepted, t.Rejected)
	// Output: 1000 9000
}

// Example showing rule conditions compiled and evaluated by CEL.
func Example_cel() {
	e, err := cel.NewEvaluator()
	if err != nil {
		fmt.Println(err)
		return
	}

	defs := []workflow.Definition{
		{Name: "in", Rules: []workflow.RuleDefinition{
			{Field: "m", Op: ">", Threshold: 2090, Outcome: "A"},
		}, Default: "R"},
	}
	g, err := workflow.NewGraph(defs, workflow.WithEvaluator(e))
	if err != nil {
		fmt.Println(err)
		return
	}

	rating, err := g.Rate(context.Background(), []workflow.Record{
		workflow.NewRecord(1, 3000, 1, 1),
		workflow.NewRecord(1, 2000, 1, 1),
	})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(rating.Accepted, rating.Sum)
	// Output: 1 3003
}

func ExampleGraph_Tree() {
	defs := []workflow.Definition{
		{Name: "in", Rules: []workflow.RuleDefinition{
			{Field: "x", Op: ">", Threshold: 100, Outcome: "check"},
		}, Default: "A"},
		{Name: "check", Rules: []workflow.RuleDefinition{
			{Field: "s", Op: "<", Threshold: 50, Outcome: "R"},
		}, Default: "in"},
	}

	g, err := workflow.NewGraph(defs)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Print(g.Tree("in"))
	// Output:
	// in
	// ├── x>100 → check
	// │   ├── s<50 → R
	// │   └── default → in (loop)
	// └── default → A
}
