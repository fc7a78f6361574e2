package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/Delta456/box-cli-maker/v2"
	"github.com/alexeyco/simpletable"
)

// Check is a single rule test made while classifying a record.
type Check struct {
	Workflow  string
	Rule      int
	Condition string
	Field     Field
	Value     int64
	Matched   bool
	Outcome   Outcome
}

// Diagnostics lists every rule tested while classifying one record, not
// only the ones that matched.
type Diagnostics struct {
	Record  Record
	Outcome Outcome
	Checks  []Check
}

// Diagnose classifies the record and reports each rule tested on the way.
func (g *Graph) Diagnose(ctx context.Context, rec Record, opts ...EvalOption) (*Diagnostics, error) {
	route, err := g.Classify(ctx, rec, opts...)
	if err != nil {
		return nil, err
	}

	d := &Diagnostics{Record: rec, Outcome: route.Outcome}
	for _, s := range route.Steps {
		w := g.workflows[g.index[s.Workflow]]
		for i, r := range w.Rules {
			d.Checks = append(d.Checks, Check{
				Workflow:  w.Name,
				Rule:      i,
				Condition: r.Condition(),
				Field:     r.Field,
				Value:     rec.Get(r.Field),
				Matched:   i == s.Rule,
				Outcome:   r.Outcome,
			})
			if i == s.Rule {
				break
			}
		}
		if s.Rule < 0 {
			d.Checks = append(d.Checks, Check{
				Workflow:  w.Name,
				Rule:      -1,
				Condition: "default",
				Matched:   true,
				Outcome:   w.Default,
			})
		}
	}
	return d, nil
}

// AsString renders the record and the checks in a framed report.
func (d *Diagnostics) AsString() string {
	Box := box.New(box.Config{Px: 2, Py: 1, Type: "Double", Color: "Cyan", TitlePos: "Top", ContentAlign: "Left"})

	s := strings.Builder{}
	s.WriteString("Record:\n")
	s.WriteString("-------\n")
	s.WriteString(recordTable(d.Record).String())
	s.WriteString("\n\n")
	s.WriteString("Rules Tested:\n")
	s.WriteString("-------------\n")
	s.WriteString(d.checkTable().String())
	s.WriteString("\n\n")
	s.WriteString("Result: ")
	s.WriteString(outcomeName(d.Outcome))
	return Box.String("WORKFLOW EVALUATION DIAGNOSTIC REPORT", s.String())
}

func recordTable(rec Record) *simpletable.Table {
	table := simpletable.New()
	table.Header = &simpletable.Header{
		Cells: []*simpletable.Cell{
			{Align: simpletable.AlignCenter, Text: "Field"},
			{Align: simpletable.AlignCenter, Text: "Value"},
		},
	}
	for _, f := range Fields {
		table.Body.Cells = append(table.Body.Cells, []*simpletable.Cell{
			{Text: f.String()},
			{Align: simpletable.AlignRight, Text: fmt.Sprintf("%d", rec.Get(f))},
		})
	}
	table.SetStyle(simpletable.StyleUnicode)
	return table
}

func (d *Diagnostics) checkTable() *simpletable.Table {
	table := simpletable.New()
	table.Header = &simpletable.Header{
		Cells: []*simpletable.Cell{
			{Align: simpletable.AlignCenter, Text: "Workflow"},
			{Align: simpletable.AlignCenter, Text: "Condition"},
			{Align: simpletable.AlignCenter, Text: "Value"},
			{Align: simpletable.AlignCenter, Text: "Match"},
			{Align: simpletable.AlignCenter, Text: "Outcome"},
		},
	}

	for _, c := range d.Checks {
		value := ""
		if c.Rule >= 0 {
			value = fmt.Sprintf("%s=%d", c.Field, c.Value)
		}
		outcome := ""
		if c.Matched {
			outcome = c.Outcome.String()
		}
		table.Body.Cells = append(table.Body.Cells, []*simpletable.Cell{
			{Text: c.Workflow},
			{Text: c.Condition},
			{Align: simpletable.AlignRight, Text: value},
			{Align: simpletable.AlignCenter, Text: matchString(c.Matched)},
			{Text: outcome},
		})
	}

	table.SetStyle(simpletable.StyleUnicode)
	return table
}

func matchString(b bool) string {
	if b {
		return "yes"
	}
	return ""
}
