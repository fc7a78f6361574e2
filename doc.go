// Package workflow classifies records with a graph of named workflows.
//
// A record has four integer fields: x, m, a and s. A workflow is an ordered
// list of rules plus a default outcome. Each rule compares one field with a
// threshold using < or >, and names an outcome: accept the record, reject
// it, or send it on to another workflow. The first matching rule wins; the
// default applies when no rule matches. Evaluation starts at the workflow
// named "in" unless another entry point is given.
//
// Typical use is as follows:
//
//  1. Obtain workflow definitions, either from your own parser or from a
//     rule set file (see package ruleset)
//  2. Build a Graph with NewGraph; all definitions are validated here
//  3. Classify records one at a time with Classify, or in bulk with Rate
//  4. Count how many records of a whole domain would be accepted with Count
//
// # Point and Range Evaluation
//
// Classify and Rate follow a single record from workflow to workflow.
//
// Count answers the question "how many records with fields in [lo, hi]
// would be accepted?" without enumerating them. It runs a box of intervals
// through the graph instead, splitting the box wherever a rule's threshold
// falls inside one of its intervals. For the default domain [1, 4000] that
// covers 256 trillion records with a few hundred boxes.
//
// # Graph Ownership
//
// A Graph is never modified after NewGraph returns. It can be shared by any
// number of goroutines, and the Parallel option spreads a single
// evaluation over several workers.
//
// # Termination
//
// Evaluation is deterministic, so a record that enters the same workflow
// twice would loop forever. Classify and Count detect this and return
// ErrDidNotTerminate. To reject such graphs up front, build them with
// CheckCycles(true).
package workflow
