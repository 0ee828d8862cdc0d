// Package lp is the abstract representation units generate: variables,
// linear row constraints and a linear objective. Rows and objectives keep an
// explicit index from variable identity to term slot so a coefficient can be
// edited in place without scanning the row.
package lp

import (
	"fmt"
	"math"
)

// Inf is the bound used for unbounded sides.
var Inf = math.Inf(1)

// Variable is a column of the abstract program. Identity is the pointer.
type Variable struct {
	Name    string
	Lower   float64
	Upper   float64
	Integer bool
	// Value holds a candidate solution value used by feasibility checks.
	Value float64
}

// Fixed reports whether the bounds pin the variable to a single value.
func (v *Variable) Fixed() bool {
	return v.Lower == v.Upper
}

// Term is one coefficient of a linear function.
type Term struct {
	Var  *Variable
	Coef float64
}

// InternalLinkageError reports an update that could not find the variable it
// expected inside an already generated row. It always indicates a mismatch
// between generation and update code.
type InternalLinkageError struct {
	Row string
	Var string
}

func (e *InternalLinkageError) Error() string {
	return fmt.Sprintf("variable %s is not linked to %s", e.Var, e.Row)
}

func linkageError(row string, v *Variable) error {
	name := "<nil>"
	if v != nil {
		name = v.Name
	}
	return &InternalLinkageError{Row: row, Var: name}
}

// linear is the identity indexed term list shared by rows and objectives.
type linear struct {
	terms []Term
	index map[*Variable]int
}

func newLinear(terms []Term) linear {
	l := linear{}
	l.reset(terms)
	return l
}

// reset replaces the terms and rebuilds the index. A variable listed twice
// is merged into one slot.
func (l *linear) reset(terms []Term) {
	l.terms = make([]Term, 0, len(terms))
	l.index = make(map[*Variable]int, len(terms))
	for _, tm := range terms {
		if i, ok := l.index[tm.Var]; ok {
			l.terms[i].Coef += tm.Coef
			continue
		}
		l.index[tm.Var] = len(l.terms)
		l.terms = append(l.terms, tm)
	}
}

func (l linear) has(v *Variable) bool {
	_, ok := l.index[v]
	return ok
}

func (l linear) value() float64 {
	sum := 0.0
	for _, tm := range l.terms {
		sum += tm.Coef * tm.Var.Value
	}
	return sum
}
