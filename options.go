package workflow

// DefaultEntry is the workflow evaluation starts at unless Entry is given.
const DefaultEntry = "in"

// See the functional definitions below for the meaning.
type GraphOptions struct {
	RejectDuplicates bool
	CheckCycles      bool
	Evaluator        Evaluator
}

type GraphOption func(o *GraphOptions)

func applyGraphOptions(o *GraphOptions, opts ...GraphOption) {
	for _, opt := range opts {
		opt(o)
	}
}

// Fail with ErrDuplicateWorkflow when two definitions share a name.
// Default: off, the last definition with a given name wins.
func RejectDuplicates(b bool) GraphOption {
	return func(o *GraphOptions) {
		o.RejectDuplicates = b
	}
}

// Prove at construction time that no chain of GoTo outcomes can revisit a
// workflow. Without it, loops are caught during evaluation instead.
// Default: off
func CheckCycles(b bool) GraphOption {
	return func(o *GraphOptions) {
		o.CheckCycles = b
	}
}

// Use e to test rule conditions in point evaluation.
// Default: NativeEvaluator
func WithEvaluator(e Evaluator) GraphOption {
	return func(o *GraphOptions) {
		o.Evaluator = e
	}
}

// EvalOptions determine how Classify, Rate and Count run.
type EvalOptions struct {
	// Workflow evaluation starts at.
	Entry string

	// Number of workers. Values below 2 evaluate sequentially.
	Parallel int

	// Keep the route of every record in a Rating.
	ReturnRoutes bool

	// Keep the terminal boxes in a Tally.
	ReturnLeaves bool
}

type EvalOption func(o *EvalOptions)

func defaultEvalOptions() EvalOptions {
	return EvalOptions{Entry: DefaultEntry}
}

func applyEvalOptions(o *EvalOptions, opts ...EvalOption) {
	for _, opt := range opts {
		opt(o)
	}
}

// Start evaluation at the named workflow instead of DefaultEntry.
func Entry(name string) EvalOption {
	return func(o *EvalOptions) {
		o.Entry = name
	}
}

// Spread evaluation over n workers. Results are the same as a sequential
// run.
func Parallel(n int) EvalOption {
	return func(o *EvalOptions) {
		o.Parallel = n
	}
}

// Return the route of every record evaluated by Rate.
// Default: off
func ReturnRoutes(b bool) EvalOption {
	return func(o *EvalOptions) {
		o.ReturnRoutes = b
	}
}

// Return the accepted and rejected boxes found by Count.
// Default: off
func ReturnLeaves(b bool) EvalOption {
	return func(o *EvalOptions) {
		o.ReturnLeaves = b
	}
}
