// Package slack models a fictitious unit that covers any power shortage at a
// high cost, keeping the aggregate problem feasible.
package slack

import (
	"fmt"

	"github.com/ohowland/cgc_ucblock/internal/pkg/group"
	"github.com/ohowland/cgc_ucblock/internal/pkg/lp"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
)

type Unit struct {
	unit.Base

	minPower      []float64
	maxPower      []float64
	maxPrimary    []float64
	maxSecondary  []float64
	cost          []float64
	primaryCost   []float64
	secondaryCost []float64
	inertia       []float64
	scale         float64

	power     []*lp.Variable
	primary   []*lp.Variable
	secondary []*lp.Variable
}

// New returns an empty slack unit. Deserialize fills it.
func New(name string) (*Unit, error) {
	base, err := unit.NewBase(unit.Slack, name)
	if err != nil {
		return nil, err
	}
	return &Unit{Base: base, scale: 1}, nil
}

// Deserialize reads the slack data. Everything defaults to zero except
// MaxPower, which is required.
func (u *Unit) Deserialize(r group.Reader) error {
	if err := u.ReadTimeFrame(r); err != nil {
		return err
	}
	u.power, u.primary, u.secondary = nil, nil, nil

	var err error
	if u.maxPower, err = u.RequireVector(r, "MaxPower"); err != nil {
		return err
	}
	for _, f := range []struct {
		name string
		dst  *[]float64
	}{
		{"MinPower", &u.minPower},
		{"MaxPrimaryPower", &u.maxPrimary},
		{"MaxSecondaryPower", &u.maxSecondary},
		{"ActivePowerCost", &u.cost},
		{"PrimaryCost", &u.primaryCost},
		{"SecondaryCost", &u.secondaryCost},
		{"Inertia", &u.inertia},
	} {
		if *f.dst, err = u.ReadVector(r, f.name, []float64{0}); err != nil {
			return err
		}
	}
	u.scale = 1
	if v, ok := r.ReadScalar("Scale"); ok {
		u.scale = v
	}
	for t := 0; t < u.Horizon(); t++ {
		if u.minPower[t] > u.maxPower[t] {
			return u.Inconsistent("MaxPower", -1, t, "%v below MinPower %v", u.maxPower[t], u.minPower[t])
		}
		if u.maxPrimary[t] < 0 {
			return u.Inconsistent("MaxPrimaryPower", -1, t, "negative value %v", u.maxPrimary[t])
		}
		if u.maxSecondary[t] < 0 {
			return u.Inconsistent("MaxSecondaryPower", -1, t, "negative value %v", u.maxSecondary[t])
		}
	}
	return nil
}

// Power returns the active power variable at t.
func (u *Unit) Power(t int) *lp.Variable {
	return u.power[t]
}

// PrimaryReserve returns the primary reserve variable at t, nil when the
// capability is off.
func (u *Unit) PrimaryReserve(t int) *lp.Variable {
	if u.primary == nil {
		return nil
	}
	return u.primary[t]
}

// GenerateVariables creates power and reserve variables. All slack limits are
// variable bounds.
func (u *Unit) GenerateVariables(caps unit.Capabilities) error {
	return u.Generate(unit.VariablesReady, func() error {
		T := u.Horizon()
		b := u.Block()
		u.power = make([]*lp.Variable, T)
		for t := range u.power {
			u.power[t] = b.AddVariable(fmt.Sprintf("power[%d]", t), u.minPower[t], u.maxPower[t])
		}
		if caps.PrimaryReserve {
			u.primary = make([]*lp.Variable, T)
			for t := range u.primary {
				u.primary[t] = b.AddVariable(fmt.Sprintf("pr[%d]", t), 0, u.maxPrimary[t])
			}
		}
		if caps.SecondaryReserve {
			u.secondary = make([]*lp.Variable, T)
			for t := range u.secondary {
				u.secondary[t] = b.AddVariable(fmt.Sprintf("sc[%d]", t), 0, u.maxSecondary[t])
			}
		}
		return nil
	})
}

// GenerateConstraints adds nothing beyond the variables.
func (u *Unit) GenerateConstraints(caps unit.Capabilities) error {
	if err := u.GenerateVariables(caps); err != nil {
		return err
	}
	return u.Generate(unit.ConstraintsReady, func() error { return nil })
}

// GenerateObjective charges power and reserves at their own costs.
func (u *Unit) GenerateObjective(caps unit.Capabilities) error {
	if err := u.GenerateConstraints(caps); err != nil {
		return err
	}
	return u.Generate(unit.ObjectiveReady, func() error {
		var terms []lp.Term
		for t := 0; t < u.Horizon(); t++ {
			terms = append(terms, lp.Term{Var: u.power[t], Coef: u.scale * u.cost[t]})
			if u.primary != nil {
				terms = append(terms, lp.Term{Var: u.primary[t], Coef: u.scale * u.primaryCost[t]})
			}
			if u.secondary != nil {
				terms = append(terms, lp.Term{Var: u.secondary[t], Coef: u.scale * u.secondaryCost[t]})
			}
		}
		u.Block().Objective().SetTerms(terms...)
		return nil
	})
}

func (u *Unit) IsFeasible(tol float64) bool {
	return u.Feasible(tol)
}

func (u *Unit) PowerTerms(t int) []lp.Term {
	return single(u.power, t, 1)
}

func (u *Unit) PrimaryReserveTerms(t int) []lp.Term {
	return single(u.primary, t, 1)
}

func (u *Unit) SecondaryReserveTerms(t int) []lp.Term {
	return single(u.secondary, t, 1)
}

// InertiaTerms weighs the slack power by its Inertia.
func (u *Unit) InertiaTerms(t int) []lp.Term {
	if t < 0 || t >= len(u.inertia) || u.inertia[t] == 0 {
		return nil
	}
	return single(u.power, t, u.inertia[t])
}

func single(vars []*lp.Variable, t int, c float64) []lp.Term {
	if t < 0 || t >= len(vars) {
		return nil
	}
	return []lp.Term{{Var: vars[t], Coef: c}}
}

// Serialize writes the slack data in its smallest faithful encoding.
func (u *Unit) Serialize(w group.Writer) error {
	u.WriteTimeFrame(w)
	u.WriteVector(w, "MinPower", u.minPower)
	u.WriteVector(w, "MaxPower", u.maxPower)
	u.WriteVector(w, "MaxPrimaryPower", u.maxPrimary)
	u.WriteVector(w, "MaxSecondaryPower", u.maxSecondary)
	u.WriteVector(w, "ActivePowerCost", u.cost)
	u.WriteVector(w, "PrimaryCost", u.primaryCost)
	u.WriteVector(w, "SecondaryCost", u.secondaryCost)
	u.WriteVector(w, "Inertia", u.inertia)
	w.WriteScalar("Scale", u.scale)
	return nil
}
