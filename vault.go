package workflow

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Vault holds a hot-reloadable graph. Readers get the current immutable
// Graph without locking; Mutate builds a new graph from the changed
// definitions and swaps it in only if it validates.
type Vault struct {
	mu      sync.Mutex // serializes Mutate
	current atomic.Pointer[snapshot]
	opts    []GraphOption
}

type snapshot struct {
	defs     []Definition
	graph    *Graph
	revision string
	updated  time.Time
}

// A Mutation is a single change applied by Vault.Mutate.
type Mutation struct {
	name string

	// nil deletes the workflow with name
	def *Definition

	// only set by LastUpdate
	at time.Time
}

// Put adds the workflow, or replaces the one with the same name in place.
func Put(d Definition) Mutation {
	d.Rules = slices.Clone(d.Rules)
	return Mutation{name: d.Name, def: &d}
}

// Delete removes the named workflow. Workflows still forwarding to it
// make the mutation fail.
func Delete(name string) Mutation {
	return Mutation{name: name}
}

// LastUpdate sets the time reported by Vault.LastUpdate. Without it,
// Mutate records the current time.
func LastUpdate(t time.Time) Mutation {
	return Mutation{at: t}
}

// NewVault builds the initial graph from defs. The options are used for
// every graph the vault builds. Duplicate names are stored the way the
// graph resolves them: the last definition, in the first one's slot.
func NewVault(defs []Definition, opts ...GraphOption) (*Vault, error) {
	g, err := NewGraph(defs, opts...)
	if err != nil {
		return nil, err
	}
	v := &Vault{opts: opts}
	v.current.Store(&snapshot{
		defs:     collapse(defs),
		graph:    g,
		revision: uuid.New().String(),
		updated:  time.Now(),
	})
	return v, nil
}

// Graph returns the current graph. It remains valid, and unchanged, after
// later mutations.
func (v *Vault) Graph() *Graph {
	return v.current.Load().graph
}

// Current returns the current graph together with its revision.
func (v *Vault) Current() (*Graph, string) {
	s := v.current.Load()
	return s.graph, s.revision
}

// Definitions returns a copy of the definitions the current graph was
// built from.
func (v *Vault) Definitions() []Definition {
	return cloneDefinitions(v.current.Load().defs)
}

// Revision identifies the current graph. Every successful Mutate assigns
// a new one.
func (v *Vault) Revision() string {
	return v.current.Load().revision
}

// LastUpdate is the time of the last successful mutation.
func (v *Vault) LastUpdate() time.Time {
	return v.current.Load().updated
}

// Mutate applies the mutations in order and rebuilds the graph. If any
// mutation or the rebuild fails, the vault keeps its current graph.
func (v *Vault) Mutate(muts ...Mutation) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	old := v.current.Load()
	defs := slices.Clone(old.defs)
	updated := time.Now()

	for _, m := range muts {
		switch {
		case !m.at.IsZero():
			updated = m.at
		case m.def != nil:
			if i := slices.IndexFunc(defs, byName(m.name)); i >= 0 {
				defs[i] = *m.def
				// drop later duplicates so the replacement is not shadowed
				defs = append(defs[:i+1], slices.DeleteFunc(defs[i+1:], byName(m.name))...)
			} else {
				defs = append(defs, *m.def)
			}
		default:
			n := len(defs)
			defs = slices.DeleteFunc(defs, byName(m.name))
			if len(defs) == n {
				return errors.Wrapf(ErrUnknownWorkflow, "deleting %q", m.name)
			}
		}
	}

	g, err := NewGraph(defs, v.opts...)
	if err != nil {
		return errors.Wrap(err, "rebuilding graph")
	}
	v.current.Store(&snapshot{
		defs:     defs,
		graph:    g,
		revision: uuid.New().String(),
		updated:  updated,
	})
	return nil
}

// collapse copies defs, replacing each duplicate name in place by its
// last definition.
func collapse(defs []Definition) []Definition {
	out := make([]Definition, 0, len(defs))
	for _, d := range defs {
		d.Rules = slices.Clone(d.Rules)
		if i := slices.IndexFunc(out, byName(d.Name)); i >= 0 {
			out[i] = d
			continue
		}
		out = append(out, d)
	}
	return out
}

func cloneDefinitions(defs []Definition) []Definition {
	out := slices.Clone(defs)
	for i := range out {
		out[i].Rules = slices.Clone(out[i].Rules)
	}
	return out
}

func byName(name string) func(Definition) bool {
	return func(d Definition) bool { return d.Name == name }
}
