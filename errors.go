package workflow

import "github.com/pkg/errors"

// Errors returned by graph construction and evaluation. Returned errors
// wrap one of these with the workflow, rule or record involved; test for
// them with errors.Is.
var (
	ErrMalformedRule       = errors.New("malformed rule")
	ErrMalformedDefinition = errors.New("malformed workflow definition")
	ErrDuplicateWorkflow   = errors.New("duplicate workflow")
	ErrUnknownWorkflow     = errors.New("unknown workflow")
	ErrCyclicGraph         = errors.New("workflow graph contains a cycle")
	ErrDidNotTerminate     = errors.New("evaluation did not terminate")
	ErrEmptyDomain         = errors.New("empty domain")
	ErrDomainTooLarge      = errors.New("domain volume overflows int64")
)
