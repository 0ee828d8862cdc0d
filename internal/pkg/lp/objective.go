package lp

// Sense is the optimisation direction.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

// Objective is a linear objective with a constant.
type Objective struct {
	Sense    Sense
	Constant float64
	linear
}

// SetTerms replaces every objective term.
func (o *Objective) SetTerms(terms ...Term) {
	o.reset(terms)
}

// Terms returns a copy of the objective terms.
func (o *Objective) Terms() []Term {
	return append([]Term(nil), o.terms...)
}

// Has reports whether v has a coefficient in the objective.
func (o *Objective) Has(v *Variable) bool {
	return o.has(v)
}

// Coefficient returns the objective coefficient of v.
func (o *Objective) Coefficient(v *Variable) (float64, error) {
	i, ok := o.index[v]
	if !ok {
		return 0, linkageError("objective", v)
	}
	return o.terms[i].Coef, nil
}

// SetCoefficient edits the objective coefficient of v in place.
func (o *Objective) SetCoefficient(v *Variable, c float64) error {
	i, ok := o.index[v]
	if !ok {
		return linkageError("objective", v)
	}
	o.terms[i].Coef = c
	return nil
}

// Value evaluates the objective at the variables' current values.
func (o *Objective) Value() float64 {
	return o.Constant + o.value()
}
