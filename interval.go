package workflow

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/pkg/errors"
)

// Interval is an inclusive range of integers. It is empty when Lo > Hi.
type Interval struct {
	Lo, Hi int64
}

// Empty reports whether the interval holds no values.
func (iv Interval) Empty() bool { return iv.Lo > iv.Hi }

// Width is the number of values in the interval.
func (iv Interval) Width() int64 {
	if iv.Empty() {
		return 0
	}
	return iv.Hi - iv.Lo + 1
}

// Contains reports whether v lies inside the interval.
func (iv Interval) Contains(v int64) bool { return iv.Lo <= v && v <= iv.Hi }

func (iv Interval) String() string {
	if iv.Empty() {
		return "[]"
	}
	return fmt.Sprintf("[%d,%d]", iv.Lo, iv.Hi)
}

// Split divides iv into the values that satisfy the rule's comparison and
// those that do not. Either part may be empty. The two parts never overlap
// and together hold exactly the values of iv.
func (r Rule) Split(iv Interval) (pass, fail Interval) {
	if iv.Empty() {
		return iv, iv
	}
	switch r.Op {
	case Greater:
		if r.Threshold == math.MaxInt64 {
			return Interval{1, 0}, iv
		}
		pass = Interval{max(iv.Lo, r.Threshold+1), iv.Hi}
		fail = Interval{iv.Lo, min(iv.Hi, r.Threshold)}
	default:
		if r.Threshold == math.MinInt64 {
			return Interval{1, 0}, iv
		}
		pass = Interval{iv.Lo, min(iv.Hi, r.Threshold-1)}
		fail = Interval{max(iv.Lo, r.Threshold), iv.Hi}
	}
	return pass, fail
}

// Box holds one interval per field.
type Box [NumFields]Interval

// Empty reports whether any field's interval is empty.
func (b Box) Empty() bool {
	for _, iv := range b {
		if iv.Empty() {
			return true
		}
	}
	return false
}

// Volume is the number of distinct records inside the box. The caller must
// make sure the product fits; boxes derived from a validated Domain always
// do.
func (b Box) Volume() int64 {
	v := int64(1)
	for _, iv := range b {
		v *= iv.Width()
	}
	return v
}

// With returns a copy of the box with field f replaced by iv.
func (b Box) With(f Field, iv Interval) Box {
	b[f] = iv
	return b
}

// Contains reports whether the record lies inside the box.
func (b Box) Contains(rec Record) bool {
	for f, iv := range b {
		if !iv.Contains(rec[f]) {
			return false
		}
	}
	return true
}

func (b Box) String() string {
	return fmt.Sprintf("{x=%s,m=%s,a=%s,s=%s}", b[X], b[M], b[A], b[S])
}

// Domain bounds every field of a range evaluation to [Lo, Hi].
type Domain struct {
	Lo int64 `yaml:"lo" json:"lo"`
	Hi int64 `yaml:"hi" json:"hi"`
}

// DefaultDomain is the range used when none is configured.
var DefaultDomain = Domain{Lo: 1, Hi: 4000}

// Box returns the box covering the whole domain.
func (d Domain) Box() Box {
	iv := Interval{d.Lo, d.Hi}
	return Box{iv, iv, iv, iv}
}

// Validate checks that the domain is not empty and that the number of
// records it holds fits in an int64.
func (d Domain) Validate() error {
	if d.Lo > d.Hi {
		return errors.Wrapf(ErrEmptyDomain, "[%d,%d]", d.Lo, d.Hi)
	}
	w := uint64(d.Hi) - uint64(d.Lo) + 1
	if w == 0 {
		return errors.Wrapf(ErrDomainTooLarge, "[%d,%d]", d.Lo, d.Hi)
	}
	v := uint64(1)
	for i := 0; i < NumFields; i++ {
		hi, lo := bits.Mul64(v, w)
		if hi != 0 || lo > math.MaxInt64 {
			return errors.Wrapf(ErrDomainTooLarge, "[%d,%d]", d.Lo, d.Hi)
		}
		v = lo
	}
	return nil
}

// Volume is the number of records in the domain. Call Validate first.
func (d Domain) Volume() int64 {
	return d.Box().Volume()
}

func (d Domain) String() string {
	return fmt.Sprintf("[%d,%d]", d.Lo, d.Hi)
}
