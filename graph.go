package workflow

import (
	"fmt"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pkg/errors"
)

// A Workflow is a named, ordered list of rules. The first rule whose
// condition matches decides the outcome; if none matches, Default applies.
type Workflow struct {
	Name    string
	Rules   []Rule
	Default Outcome
}

// Graph maps workflow names to validated workflows. A Graph is read-only
// once NewGraph returns and may be shared by concurrent evaluations.
type Graph struct {
	workflows []*Workflow
	index     map[string]int
	evaluator Evaluator
}

// NewGraph validates the definitions and links every GoTo outcome to its
// target workflow.
//
// By default a later definition replaces an earlier one with the same name
// (see RejectDuplicates). Every GoTo target must name a defined workflow.
func NewGraph(defs []Definition, opts ...GraphOption) (*Graph, error) {
	var o GraphOptions
	applyGraphOptions(&o, opts...)
	if o.Evaluator == nil {
		o.Evaluator = NativeEvaluator{}
	}

	g := &Graph{
		index:     make(map[string]int, len(defs)),
		evaluator: o.Evaluator,
	}

	for i, d := range defs {
		w, err := buildWorkflow(d)
		if err != nil {
			return nil, errors.Wrapf(err, "definition %d", i)
		}
		if j, ok := g.index[w.Name]; ok {
			if o.RejectDuplicates {
				return nil, errors.Wrapf(ErrDuplicateWorkflow, "definition %d: %q", i, w.Name)
			}
			g.workflows[j] = w
			continue
		}
		g.index[w.Name] = len(g.workflows)
		g.workflows = append(g.workflows, w)
	}

	for _, w := range g.workflows {
		for i := range w.Rules {
			r := &w.Rules[i]
			if err := g.link(&r.Outcome); err != nil {
				return nil, errors.Wrapf(err, "workflow %q rule %d (%s)", w.Name, i, r)
			}
			prg, err := o.Evaluator.Compile(*r)
			if err != nil {
				return nil, errors.Wrapf(err, "compiling workflow %q rule %d (%s)", w.Name, i, r)
			}
			r.Program = prg
		}
		if err := g.link(&w.Default); err != nil {
			return nil, errors.Wrapf(err, "workflow %q default", w.Name)
		}
	}

	if o.CheckCycles {
		if err := g.checkCycles(); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func buildWorkflow(d Definition) (*Workflow, error) {
	if strings.TrimSpace(d.Name) == "" {
		return nil, errors.Wrap(ErrMalformedDefinition, "workflow name is empty")
	}
	def, err := ParseOutcome(d.Default)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedDefinition, "workflow %q default: %v", d.Name, err)
	}

	w := &Workflow{
		Name:    d.Name,
		Rules:   make([]Rule, 0, len(d.Rules)),
		Default: def,
	}
	for i, rd := range d.Rules {
		r, err := buildRule(rd)
		if err != nil {
			return nil, errors.Wrapf(err, "workflow %q rule %d", d.Name, i)
		}
		w.Rules = append(w.Rules, r)
	}
	return w, nil
}

func buildRule(rd RuleDefinition) (Rule, error) {
	f, err := ParseField(rd.Field)
	if err != nil {
		return Rule{}, err
	}
	op, err := ParseOp(rd.Op)
	if err != nil {
		return Rule{}, err
	}
	out, err := ParseOutcome(rd.Outcome)
	if err != nil {
		return Rule{}, errors.Wrapf(ErrMalformedRule, "%v", err)
	}
	return Rule{Field: f, Op: op, Threshold: rd.Threshold, Outcome: out}, nil
}

// link resolves a GoTo outcome to the index of its target.
func (g *Graph) link(o *Outcome) error {
	if o.Terminal() {
		return nil
	}
	i, ok := g.index[o.Target]
	if !ok {
		return errors.Wrapf(ErrUnknownWorkflow, "%q", o.Target)
	}
	o.next = i
	return nil
}

// lookup returns the index of the named workflow.
func (g *Graph) lookup(name string) (int, error) {
	i, ok := g.index[name]
	if !ok {
		return 0, errors.Wrapf(ErrUnknownWorkflow, "%q", name)
	}
	return i, nil
}

// successors lists the workflows reachable in one hop from workflow i,
// in rule order, default last.
func (g *Graph) successors(i int) []int {
	w := g.workflows[i]
	var next []int
	for _, r := range w.Rules {
		if !r.Outcome.Terminal() {
			next = append(next, r.Outcome.next)
		}
	}
	if !w.Default.Terminal() {
		next = append(next, w.Default.next)
	}
	return next
}

const (
	white = iota
	gray
	black
)

func (g *Graph) checkCycles() error {
	state := make([]int, len(g.workflows))
	var path []int

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case black:
			return nil
		case gray:
			start := slices.Index(path, i)
			names := make([]string, 0, len(path)-start+1)
			for _, p := range path[start:] {
				names = append(names, g.workflows[p].Name)
			}
			names = append(names, g.workflows[i].Name)
			return errors.Wrap(ErrCyclicGraph, strings.Join(names, " -> "))
		}
		state[i] = gray
		path = append(path, i)
		for _, n := range g.successors(i) {
			if err := visit(n); err != nil {
				return err
			}
		}
		path = path[:len(path)-1]
		state[i] = black
		return nil
	}

	for i := range g.workflows {
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}

// Len is the number of workflows in the graph.
func (g *Graph) Len() int {
	return len(g.workflows)
}

// Names lists the workflow names in definition order.
func (g *Graph) Names() []string {
	names := make([]string, len(g.workflows))
	for i, w := range g.workflows {
		names[i] = w.Name
	}
	return names
}

// Workflow returns a copy of the named workflow.
func (g *Graph) Workflow(name string) (Workflow, bool) {
	i, ok := g.index[name]
	if !ok {
		return Workflow{}, false
	}
	w := *g.workflows[i]
	w.Rules = slices.Clone(w.Rules)
	return w, true
}

// String renders every workflow and its rules as a table.
func (g *Graph) String() string {
	tw := table.NewWriter()
	tw.SetTitle("\nWORKFLOWS\n")
	tw.AppendHeader(table.Row{"Workflow", "#", "Condition", "Outcome"})

	for _, w := range g.workflows {
		for i, r := range w.Rules {
			name := ""
			if i == 0 {
				name = w.Name
			}
			tw.AppendRow(table.Row{name, i, r.Condition(), r.Outcome})
		}
		name := ""
		if len(w.Rules) == 0 {
			name = w.Name
		}
		tw.AppendRow(table.Row{name, "", "default", w.Default})
		tw.AppendSeparator()
	}

	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}

// Tree draws the routes reachable from the entry workflow.
// Each workflow is expanded once. A later forward to it is marked
// "(see above)", and a forward to a workflow already on the current route
// is marked "(loop)". Recursion is limited to a maximum depth of 20 levels.
//
// Example output:
//
//	in
//	├── s<1351 → px
//	│   ├── a<2006 → A
//	│   └── default → R
//	└── default → A
func (g *Graph) Tree(entry string) string {
	i, ok := g.index[entry]
	if !ok {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(entry)
	sb.WriteString("\n")
	g.buildTree(&sb, i, "", []int{i}, make([]bool, len(g.workflows)))
	return sb.String()
}

func (g *Graph) buildTree(sb *strings.Builder, i int, prefix string, route []int, expanded []bool) {
	if len(route) > 20 {
		return
	}
	expanded[i] = true
	w := g.workflows[i]
	labels := make([]string, 0, len(w.Rules)+1)
	outcomes := make([]Outcome, 0, len(w.Rules)+1)
	for _, r := range w.Rules {
		labels = append(labels, r.Condition())
		outcomes = append(outcomes, r.Outcome)
	}
	labels = append(labels, "default")
	outcomes = append(outcomes, w.Default)

	for k, o := range outcomes {
		connector, childPrefix := "├── ", "│   "
		if k == len(outcomes)-1 {
			connector, childPrefix = "└── ", "    "
		}
		fmt.Fprintf(sb, "%s%s%s → %s", prefix, connector, labels[k], o)
		if o.Terminal() {
			sb.WriteString("\n")
			continue
		}
		if slices.Contains(route, o.next) {
			sb.WriteString(" (loop)\n")
			continue
		}
		if expanded[o.next] {
			sb.WriteString(" (see above)\n")
			continue
		}
		sb.WriteString("\n")
		g.buildTree(sb, o.next, prefix+childPrefix, append(slices.Clone(route), o.next), expanded)
	}
}
