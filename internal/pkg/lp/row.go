package lp

import "math"

// Row is a linear constraint Lower <= sum(terms) <= Upper. Equalities have
// Lower == Upper and one-sided rows use an infinite bound.
type Row struct {
	Name  string
	Lower float64
	Upper float64
	linear
}

// NewRow returns a row over terms.
func NewRow(name string, lower, upper float64, terms ...Term) *Row {
	return &Row{Name: name, Lower: lower, Upper: upper, linear: newLinear(terms)}
}

// LessEqual returns sum(terms) <= rhs.
func LessEqual(name string, rhs float64, terms ...Term) *Row {
	return NewRow(name, -Inf, rhs, terms...)
}

// GreaterEqual returns sum(terms) >= rhs.
func GreaterEqual(name string, rhs float64, terms ...Term) *Row {
	return NewRow(name, rhs, Inf, terms...)
}

// Equal returns sum(terms) == rhs.
func Equal(name string, rhs float64, terms ...Term) *Row {
	return NewRow(name, rhs, rhs, terms...)
}

// Terms returns a copy of the row's terms.
func (r *Row) Terms() []Term {
	return append([]Term(nil), r.terms...)
}

// Has reports whether v appears in the row.
func (r *Row) Has(v *Variable) bool {
	return r.has(v)
}

// Coefficient returns the coefficient of v.
func (r *Row) Coefficient(v *Variable) (float64, error) {
	i, ok := r.index[v]
	if !ok {
		return 0, linkageError(r.Name, v)
	}
	return r.terms[i].Coef, nil
}

// SetCoefficient edits the coefficient of v in place.
func (r *Row) SetCoefficient(v *Variable, c float64) error {
	i, ok := r.index[v]
	if !ok {
		return linkageError(r.Name, v)
	}
	r.terms[i].Coef = c
	return nil
}

// Reset replaces the variable set of the row. Only needed when the set of
// variables changes; bound and coefficient edits never call it.
func (r *Row) Reset(terms ...Term) {
	r.reset(terms)
}

// SetBounds sets both sides.
func (r *Row) SetBounds(lower, upper float64) {
	r.Lower, r.Upper = lower, upper
}

// SetRHS sets every finite side to rhs, which keeps the sense of the row.
func (r *Row) SetRHS(rhs float64) {
	if !math.IsInf(r.Lower, -1) {
		r.Lower = rhs
	}
	if !math.IsInf(r.Upper, 1) {
		r.Upper = rhs
	}
}

// IsEquality reports whether the row is an equality.
func (r *Row) IsEquality() bool {
	return r.Lower == r.Upper
}

// Activity evaluates the row at the variables' current values.
func (r *Row) Activity() float64 {
	return r.value()
}

// Violation returns how far the activity lies outside the row bounds.
func (r *Row) Violation() float64 {
	a := r.value()
	switch {
	case a < r.Lower:
		return r.Lower - a
	case a > r.Upper:
		return a - r.Upper
	}
	return 0
}
