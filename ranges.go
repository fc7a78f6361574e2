package workflow

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// pending is a box still waiting to be run through a workflow.
type pending struct {
	box Box
	at  int

	// number of workflows visited, including at
	hops int
}

// Count runs the whole domain through the graph at once and returns the
// number of distinct records that would be accepted.
//
// Instead of evaluating every record, Count follows boxes of records. A
// rule whose threshold falls inside a box splits it in two: the part that
// satisfies the comparison takes the rule's outcome, the rest continues
// with the next rule of the same workflow. Parts that become empty are
// dropped. Every record of the domain ends up in exactly one accepted or
// rejected box, so Tally.Accepted + Tally.Rejected equals the domain's
// volume.
func (g *Graph) Count(ctx context.Context, dom Domain, opts ...EvalOption) (*Tally, error) {
	o := defaultEvalOptions()
	applyEvalOptions(&o, opts...)

	if err := dom.Validate(); err != nil {
		return nil, err
	}
	start, err := g.lookup(o.Entry)
	if err != nil {
		return nil, errors.Wrap(err, "entry point")
	}

	seed := pending{box: dom.Box(), at: start, hops: 1}
	var t *Tally
	if o.Parallel > 1 {
		t, err = g.countParallel(ctx, seed, o)
	} else {
		t = &Tally{}
		err = g.drain(ctx, []pending{seed}, t, o.ReturnLeaves)
	}
	if err != nil {
		return nil, err
	}
	t.Domain = dom
	return t, nil
}

// drain processes the worklist until it is empty.
func (g *Graph) drain(ctx context.Context, work []pending, t *Tally, keep bool) error {
	for len(work) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := work[len(work)-1]
		work = work[:len(work)-1]

		var err error
		work, err = g.step(p, work, t, keep)
		if err != nil {
			return err
		}
	}
	return nil
}

// countParallel expands the worklist breadth first until there is a box
// per worker, then drains each box on its own goroutine and merges the
// per-worker tallies.
func (g *Graph) countParallel(ctx context.Context, seed pending, o EvalOptions) (*Tally, error) {
	t := &Tally{}
	work := []pending{seed}
	for len(work) > 0 && len(work) < o.Parallel {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var next []pending
		for _, p := range work {
			var err error
			next, err = g.step(p, next, t, o.ReturnLeaves)
			if err != nil {
				return nil, err
			}
		}
		work = next
	}

	parts := make([]Tally, len(work))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(o.Parallel)
	for i, p := range work {
		i, p := i, p
		eg.Go(func() error {
			return g.drain(ctx, []pending{p}, &parts[i], o.ReturnLeaves)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	for i := range parts {
		t.merge(&parts[i])
	}
	return t, nil
}

// step applies the box's current workflow. Parts reaching a terminal
// outcome are recorded in t; parts forwarded to another workflow are
// appended to work. The box itself is never modified.
func (g *Graph) step(p pending, work []pending, t *Tally, keep bool) ([]pending, error) {
	w := g.workflows[p.at]
	if p.hops > len(g.workflows) {
		return work, errors.Wrapf(ErrDidNotTerminate, "box %s re-entered workflow %q", p.box, w.Name)
	}

	emit := func(b Box, o Outcome) {
		if o.Terminal() {
			t.add(b, o, keep)
			return
		}
		work = append(work, pending{box: b, at: o.next, hops: p.hops + 1})
	}

	cur := p.box
	for _, r := range w.Rules {
		pass, fail := r.Split(cur[r.Field])
		if !pass.Empty() {
			emit(cur.With(r.Field, pass), r.Outcome)
		}
		if fail.Empty() {
			return work, nil
		}
		if !pass.Empty() {
			t.Splits++
		}
		cur = cur.With(r.Field, fail)
	}
	emit(cur, w.Default)
	return work, nil
}
