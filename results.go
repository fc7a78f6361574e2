package workflow

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Step is one workflow visited while classifying a record.
type Step struct {
	// The workflow applied
	Workflow string

	// Index of the rule that matched, or -1 if the default applied
	Rule int

	// The matching rule's condition, or "default"
	Condition string

	// Where the record went next
	Outcome Outcome
}

// Route is the result of classifying one record.
type Route struct {
	Record Record

	// Accepted or Rejected
	Outcome Outcome

	// The workflows visited, in order, starting with the entry point
	Steps []Step
}

// Accepted reports whether the record was accepted.
func (r *Route) Accepted() bool { return r.Outcome.Kind == Accept }

// String lists the steps taken by the record.
func (r *Route) String() string {
	tw := table.NewWriter()
	tw.SetTitle(fmt.Sprintf("\nROUTE %s\n", r.Record))
	tw.AppendHeader(table.Row{"Step", "Workflow", "Rule", "Condition", "Outcome"})
	for i, s := range r.Steps {
		rule := ""
		if s.Rule >= 0 {
			rule = fmt.Sprintf("%d", s.Rule)
		}
		tw.AppendRow(table.Row{i + 1, s.Workflow, rule, s.Condition, s.Outcome})
	}
	tw.AppendFooter(table.Row{"", "", "", "Result", outcomeName(r.Outcome)})
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}

// Rating is the result of classifying a list of records.
type Rating struct {
	// Sum of all fields of every accepted record
	Sum int64

	Accepted int
	Rejected int

	// Routes in input order; only set with ReturnRoutes
	Routes []*Route
}

func (r *Rating) String() string {
	tw := table.NewWriter()
	tw.SetTitle("\nRATING\n")
	tw.AppendRows([]table.Row{
		{"Accepted records", r.Accepted},
		{"Rejected records", r.Rejected},
		{"Rating sum", r.Sum},
	})
	tw.SetStyle(table.StyleLight)
	return tw.Render()
}

// Leaf is a box that reached a terminal outcome.
type Leaf struct {
	Box     Box
	Outcome Outcome
}

// Tally is the result of a range evaluation.
type Tally struct {
	Domain Domain

	// Number of distinct records accepted and rejected
	Accepted int64
	Rejected int64

	// Number of boxes that reached each terminal outcome
	AcceptedBoxes int
	RejectedBoxes int

	// Number of times a rule divided a box in two
	Splits int

	// Terminal boxes; only set with ReturnLeaves. The order depends on
	// evaluation order and is not stable under Parallel.
	Leaves []Leaf
}

// Total is the number of records classified, which equals the volume of
// the domain.
func (t *Tally) Total() int64 { return t.Accepted + t.Rejected }

func (t *Tally) add(b Box, o Outcome, keep bool) {
	v := b.Volume()
	if o.Kind == Accept {
		t.Accepted += v
		t.AcceptedBoxes++
	} else {
		t.Rejected += v
		t.RejectedBoxes++
	}
	if keep {
		t.Leaves = append(t.Leaves, Leaf{Box: b, Outcome: o})
	}
}

func (t *Tally) merge(u *Tally) {
	t.Accepted += u.Accepted
	t.Rejected += u.Rejected
	t.AcceptedBoxes += u.AcceptedBoxes
	t.RejectedBoxes += u.RejectedBoxes
	t.Splits += u.Splits
	t.Leaves = append(t.Leaves, u.Leaves...)
}

func (t *Tally) String() string {
	tw := table.NewWriter()
	tw.SetTitle(fmt.Sprintf("\nRANGE TALLY %s\n", t.Domain))
	tw.AppendHeader(table.Row{"", "Combinations", "Boxes"})
	tw.AppendRows([]table.Row{
		{"Accepted", t.Accepted, t.AcceptedBoxes},
		{"Rejected", t.Rejected, t.RejectedBoxes},
	})
	tw.AppendFooter(table.Row{"Total", t.Total(), fmt.Sprintf("%d splits", t.Splits)})
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}

func outcomeName(o Outcome) string {
	switch o.Kind {
	case Accept:
		return "ACCEPTED"
	case Reject:
		return "REJECTED"
	default:
		return o.Target
	}
}
