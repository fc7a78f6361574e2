// Package ruleset reads workflow definitions, records and evaluation
// settings from YAML documents.
//
// A rule set looks like this:
//
//	entry: in
//	domain: {lo: 1, hi: 4000}
//	workflows:
//	  - name: in
//	    rules:
//	      - {field: s, op: "<", threshold: 1351, outcome: px}
//	    default: qqz
//	  - name: px
//	    rules:
//	      - {field: a, op: "<", threshold: 2006, outcome: A}
//	    default: R
//	records:
//	  - {x: 787, m: 2655, a: 1222, s: 2876}
//
// Outcomes use the compact notation: A accepts, R rejects, anything else
// names a workflow. Entry and domain are optional.
package ruleset

import (
	"bytes"
	"io"
	"os"

	"github.com/ezachrisen/workflow"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// RuleSet is a decoded rule set document.
type RuleSet struct {
	Entry     string                `yaml:"entry,omitempty"`
	Domain    *workflow.Domain      `yaml:"domain,omitempty"`
	Workflows []workflow.Definition `yaml:"workflows"`
	Parts     []Part                `yaml:"records,omitempty"`
}

// Part is a record as written in a rule set.
type Part struct {
	X int64 `yaml:"x"`
	M int64 `yaml:"m"`
	A int64 `yaml:"a"`
	S int64 `yaml:"s"`
}

// Load decodes a rule set. Unknown keys are rejected so that typos in a
// file do not silently drop rules.
func Load(r io.Reader) (*RuleSet, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var rs RuleSet
	if err := dec.Decode(&rs); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("rule set is empty")
		}
		return nil, errors.Wrap(err, "decoding rule set")
	}
	if len(rs.Workflows) == 0 {
		return nil, errors.New("rule set has no workflows")
	}
	if rs.Domain != nil {
		if err := rs.Domain.Validate(); err != nil {
			return nil, errors.Wrap(err, "rule set domain")
		}
	}
	return &rs, nil
}

// LoadFile reads and decodes the rule set at path.
func LoadFile(path string) (*RuleSet, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading rule set")
	}
	rs, err := Load(bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return rs, nil
}

// Graph builds the workflow graph described by the rule set.
func (rs *RuleSet) Graph(opts ...workflow.GraphOption) (*workflow.Graph, error) {
	return workflow.NewGraph(rs.Workflows, opts...)
}

// Vault builds a hot-reloadable graph from the rule set's workflows.
func (rs *RuleSet) Vault(opts ...workflow.GraphOption) (*workflow.Vault, error) {
	return workflow.NewVault(rs.Workflows, opts...)
}

// EntryPoint returns the configured entry workflow, or
// workflow.DefaultEntry.
func (rs *RuleSet) EntryPoint() string {
	if rs.Entry == "" {
		return workflow.DefaultEntry
	}
	return rs.Entry
}

// Bounds returns the configured domain, or workflow.DefaultDomain.
func (rs *RuleSet) Bounds() workflow.Domain {
	if rs.Domain == nil {
		return workflow.DefaultDomain
	}
	return *rs.Domain
}

// Records converts the rule set's parts to records, in file order.
func (rs *RuleSet) Records() []workflow.Record {
	recs := make([]workflow.Record, len(rs.Parts))
	for i, p := range rs.Parts {
		recs[i] = workflow.NewRecord(p.X, p.M, p.A, p.S)
	}
	return recs
}

// Write encodes the rule set as YAML.
func (rs *RuleSet) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rs); err != nil {
		return errors.Wrap(err, "encoding rule set")
	}
	return enc.Close()
}
