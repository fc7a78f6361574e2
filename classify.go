package workflow

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Classify routes a single record through the graph, starting at the entry
// workflow, until it is accepted or rejected.
//
// A record that would visit the same workflow twice can never terminate;
// Classify returns ErrDidNotTerminate for it.
func (g *Graph) Classify(ctx context.Context, rec Record, opts ...EvalOption) (*Route, error) {
	o := defaultEvalOptions()
	applyEvalOptions(&o, opts...)

	start, err := g.lookup(o.Entry)
	if err != nil {
		return nil, errors.Wrap(err, "entry point")
	}
	return g.classify(ctx, start, rec)
}

// Rate classifies every record and adds up the fields of the accepted
// ones. An error for any record aborts the whole run; the error names the
// record's index.
func (g *Graph) Rate(ctx context.Context, records []Record, opts ...EvalOption) (*Rating, error) {
	o := defaultEvalOptions()
	applyEvalOptions(&o, opts...)

	start, err := g.lookup(o.Entry)
	if err != nil {
		return nil, errors.Wrap(err, "entry point")
	}

	routes := make([]*Route, len(records))
	if o.Parallel > 1 {
		eg, ctx := errgroup.WithContext(ctx)
		eg.SetLimit(o.Parallel)
		for i, rec := range records {
			i, rec := i, rec
			eg.Go(func() error {
				r, err := g.classify(ctx, start, rec)
				if err != nil {
					return errors.Wrapf(err, "record %d", i)
				}
				routes[i] = r
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, rec := range records {
			r, err := g.classify(ctx, start, rec)
			if err != nil {
				return nil, errors.Wrapf(err, "record %d", i)
			}
			routes[i] = r
		}
	}

	rating := &Rating{}
	for _, r := range routes {
		if r.Accepted() {
			rating.Accepted++
			rating.Sum += r.Record.Sum()
		} else {
			rating.Rejected++
		}
	}
	if o.ReturnRoutes {
		rating.Routes = routes
	}
	return rating, nil
}

func (g *Graph) classify(ctx context.Context, start int, rec Record) (*Route, error) {
	route := &Route{Record: rec}
	cur := start
	for hops := 0; ; hops++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if hops >= len(g.workflows) {
			return nil, errors.Wrapf(ErrDidNotTerminate, "%s looped: %s", rec, route.path())
		}
		step, err := g.apply(g.workflows[cur], rec)
		if err != nil {
			return nil, err
		}
		route.Steps = append(route.Steps, step)
		if step.Outcome.Terminal() {
			route.Outcome = step.Outcome
			return route, nil
		}
		cur = step.Outcome.next
	}
}

// apply runs one workflow against the record. The first matching rule
// wins; otherwise the default applies.
func (g *Graph) apply(w *Workflow, rec Record) (Step, error) {
	for i, r := range w.Rules {
		ok, err := g.evaluator.Eval(r, rec)
		if err != nil {
			return Step{}, errors.Wrapf(err, "evaluating workflow %q rule %d (%s)", w.Name, i, r)
		}
		if ok {
			return Step{Workflow: w.Name, Rule: i, Condition: r.Condition(), Outcome: r.Outcome}, nil
		}
	}
	return Step{Workflow: w.Name, Rule: -1, Condition: "default", Outcome: w.Default}, nil
}

func (r *Route) path() string {
	names := make([]string, len(r.Steps))
	for i, s := range r.Steps {
		names[i] = s.Workflow
	}
	return strings.Join(names, " -> ")
}
