package workflow

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Field selects one of the four dimensions of a record.
type Field int

const (
	X Field = iota
	M
	A
	S
)

// NumFields is the number of dimensions in a record.
const NumFields = 4

var fieldNames = [NumFields]string{"x", "m", "a", "s"}

// Fields lists the dimensions in record order.
var Fields = [NumFields]Field{X, M, A, S}

func (f Field) String() string {
	if f < 0 || int(f) >= NumFields {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

func (f Field) valid() bool { return f >= 0 && int(f) < NumFields }

// ParseField converts a dimension name ("x", "m", "a" or "s") to a Field.
func ParseField(s string) (Field, error) {
	for i, n := range fieldNames {
		if n == s {
			return Field(i), nil
		}
	}
	return 0, errors.Wrapf(ErrMalformedRule, "unknown field %q (must be one of %s)", s, strings.Join(fieldNames[:], ", "))
}

// Op is the comparison a rule applies between a field and its threshold.
type Op int

const (
	Less Op = iota
	Greater
)

func (o Op) String() string {
	switch o {
	case Less:
		return "<"
	case Greater:
		return ">"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// ParseOp converts "<" or ">" to an Op.
func ParseOp(s string) (Op, error) {
	switch s {
	case "<":
		return Less, nil
	case ">":
		return Greater, nil
	}
	return 0, errors.Wrapf(ErrMalformedRule, "unknown operator %q (must be < or >)", s)
}

// Kind distinguishes terminal outcomes from forwards to another workflow.
type Kind int

const (
	Accept Kind = iota
	Reject
	GoToWorkflow
)

// Outcome is what happens to a record when a rule matches, or when no
// rule in a workflow matches.
type Outcome struct {
	Kind Kind

	// Target names the next workflow. Only set when Kind is GoToWorkflow.
	Target string

	// index of Target in the graph, set by NewGraph
	next int
}

// Accepted returns the terminal accept outcome.
func Accepted() Outcome { return Outcome{Kind: Accept} }

// Rejected returns the terminal reject outcome.
func Rejected() Outcome { return Outcome{Kind: Reject} }

// GoTo returns an outcome that forwards the record to the named workflow.
func GoTo(name string) Outcome { return Outcome{Kind: GoToWorkflow, Target: name} }

// ParseOutcome reads the compact outcome notation: "A" accepts, "R"
// rejects and anything else names a workflow.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "":
		return Outcome{}, errors.New("empty outcome")
	case "A":
		return Accepted(), nil
	case "R":
		return Rejected(), nil
	}
	return GoTo(s), nil
}

// Terminal reports whether the outcome ends evaluation.
func (o Outcome) Terminal() bool { return o.Kind != GoToWorkflow }

// Equal compares outcomes by kind and target.
func (o Outcome) Equal(p Outcome) bool {
	return o.Kind == p.Kind && o.Target == p.Target
}

func (o Outcome) String() string {
	switch o.Kind {
	case Accept:
		return "A"
	case Reject:
		return "R"
	default:
		return o.Target
	}
}

// Rule compares one field of a record against a threshold.
type Rule struct {
	Field     Field
	Op        Op
	Threshold int64
	Outcome   Outcome

	// Program holds the compiled form produced by the graph's Evaluator.
	Program any
}

// Matches reports whether the value satisfies the rule's comparison.
func (r Rule) Matches(v int64) bool {
	if r.Op == Greater {
		return v > r.Threshold
	}
	return v < r.Threshold
}

// Condition renders the comparison without the outcome, e.g. "a<2006".
func (r Rule) Condition() string {
	return fmt.Sprintf("%s%s%d", r.Field, r.Op, r.Threshold)
}

func (r Rule) String() string {
	return r.Condition() + ":" + r.Outcome.String()
}

// Record is a fully specified input with one value per field.
type Record [NumFields]int64

// NewRecord builds a record from its four ratings.
func NewRecord(x, m, a, s int64) Record {
	return Record{x, m, a, s}
}

// Get returns the value of the field.
func (r Record) Get(f Field) int64 { return r[f] }

// Sum adds up all fields.
func (r Record) Sum() int64 {
	var n int64
	for _, v := range r {
		n += v
	}
	return n
}

func (r Record) String() string {
	return fmt.Sprintf("{x=%d,m=%d,a=%d,s=%d}", r[X], r[M], r[A], r[S])
}

// Definition is a workflow as produced by a parser, before validation.
type Definition struct {
	Name    string           `yaml:"name" json:"name"`
	Rules   []RuleDefinition `yaml:"rules,omitempty" json:"rules,omitempty"`
	Default string           `yaml:"default" json:"default"`
}

// RuleDefinition is a single unvalidated rule. Outcome uses the compact
// notation understood by ParseOutcome.
type RuleDefinition struct {
	Field     string `yaml:"field" json:"field"`
	Op        string `yaml:"op" json:"op"`
	Threshold int64  `yaml:"threshold" json:"threshold"`
	Outcome   string `yaml:"outcome" json:"outcome"`
}
