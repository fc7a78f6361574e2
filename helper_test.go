package workflow_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/ezachrisen/workflow"
)

// rd is shorthand for a rule definition.
func rd(field, op string, threshold int64, outcome string) workflow.RuleDefinition {
	return workflow.RuleDefinition{Field: field, Op: op, Threshold: threshold, Outcome: outcome}
}

// exampleDefs is the sample system of part workflows: 5 records, of which
// 3 are accepted with a rating sum of 19114, and 167409079868000 accepted
// combinations in [1,4000].
func exampleDefs() []workflow.Definition {
	return []workflow.Definition{
		{Name: "px", Rules: []workflow.RuleDefinition{rd("a", "<", 2006, "qkq"), rd("m", ">", 2090, "A")}, Default: "rfg"},
		{Name: "pv", Rules: []workflow.RuleDefinition{rd("a", ">", 1716, "R")}, Default: "A"},
		{Name: "lnx", Rules: []workflow.RuleDefinition{rd("m", ">", 1548, "A")}, Default: "A"},
		{Name: "rfg", Rules: []workflow.RuleDefinition{rd("s", "<", 537, "gd"), rd("x", ">", 2440, "R")}, Default: "A"},
		{Name: "qs", Rules: []workflow.RuleDefinition{rd("s", ">", 3448, "A")}, Default: "lnx"},
		{Name: "qkq", Rules: []workflow.RuleDefinition{rd("x", "<", 1416, "A")}, Default: "crn"},
		{Name: "crn", Rules: []workflow.RuleDefinition{rd("x", ">", 2662, "A")}, Default: "R"},
		{Name: "in", Rules: []workflow.RuleDefinition{rd("s", "<", 1351, "px")}, Default: "qqz"},
		{Name: "qqz", Rules: []workflow.RuleDefinition{rd("s", ">", 2770, "qs"), rd("m", "<", 1801, "hdj")}, Default: "R"},
		{Name: "gd", Rules: []workflow.RuleDefinition{rd("a", ">", 3333, "R")}, Default: "R"},
		{Name: "hdj", Rules: []workflow.RuleDefinition{rd("m", ">", 838, "A")}, Default: "pv"},
	}
}

func exampleRecords() []workflow.Record {
	return []workflow.Record{
		workflow.NewRecord(787, 2655, 1222, 2876),
		workflow.NewRecord(1679, 44, 2067, 496),
		workflow.NewRecord(2036, 264, 79, 2244),
		workflow.NewRecord(2461, 1339, 466, 291),
		workflow.NewRecord(2127, 1623, 2188, 1013),
	}
}

func mustGraph(t *testing.T, defs []workflow.Definition, opts ...workflow.GraphOption) *workflow.Graph {
	t.Helper()
	g, err := workflow.NewGraph(defs, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return g
}

// randomDefs builds an acyclic graph of n workflows whose thresholds fall
// in and just around dom. Workflow i only forwards to workflows j > i, and
// workflow 0 is the entry point "in".
func randomDefs(rng *rand.Rand, n int, dom workflow.Domain) []workflow.Definition {
	fields := []string{"x", "m", "a", "s"}
	ops := []string{"<", ">"}
	name := func(i int) string {
		if i == 0 {
			return "in"
		}
		return fmt.Sprintf("w%d", i)
	}
	outcome := func(i int) string {
		k := rng.Intn(3)
		if k == 2 && i < n-1 {
			return name(i + 1 + rng.Intn(n-1-i))
		}
		if k == 0 {
			return "A"
		}
		return "R"
	}

	defs := make([]workflow.Definition, n)
	for i := range defs {
		rules := make([]workflow.RuleDefinition, rng.Intn(4))
		for j := range rules {
			rules[j] = rd(
				fields[rng.Intn(len(fields))],
				ops[rng.Intn(len(ops))],
				dom.Lo-1+rng.Int63n(dom.Hi-dom.Lo+3),
				outcome(i),
			)
		}
		defs[i] = workflow.Definition{Name: name(i), Rules: rules, Default: outcome(i)}
	}
	return defs
}

// eachRecord calls f for every record in the domain.
func eachRecord(dom workflow.Domain, f func(workflow.Record)) {
	for x := dom.Lo; x <= dom.Hi; x++ {
		for m := dom.Lo; m <= dom.Hi; m++ {
			for a := dom.Lo; a <= dom.Hi; a++ {
				for s := dom.Lo; s <= dom.Hi; s++ {
					f(workflow.NewRecord(x, m, a, s))
				}
			}
		}
	}
}
