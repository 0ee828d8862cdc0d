// Package intermittent models a renewable unit whose available power follows
// a forecast.
package intermittent

import (
	"fmt"

	"github.com/ohowland/cgc_ucblock/internal/pkg/group"
	"github.com/ohowland/cgc_ucblock/internal/pkg/lp"
	"github.com/ohowland/cgc_ucblock/internal/pkg/unit"
)

// Unit is an intermittent generator. MaxPower is the forecast availability.
type Unit struct {
	unit.Base

	minPower []float64
	maxPower []float64
	gamma    []float64
	cost     []float64
	kappa    float64
	scale    float64

	power       []*lp.Variable
	primary     []*lp.Variable
	secondary   []*lp.Variable
	minPowerRow []*lp.Row
	maxPowerRow []*lp.Row
}

// New returns an empty intermittent unit. Deserialize fills it.
func New(name string) (*Unit, error) {
	base, err := unit.NewBase(unit.Intermittent, name)
	if err != nil {
		return nil, err
	}
	return &Unit{Base: base, kappa: 1, scale: 1}, nil
}

// Deserialize reads MinPower, MaxPower, Gamma, ActivePowerCost, Kappa and
// Scale.
func (u *Unit) Deserialize(r group.Reader) error {
	if err := u.ReadTimeFrame(r); err != nil {
		return err
	}
	u.power, u.primary, u.secondary, u.minPowerRow, u.maxPowerRow = nil, nil, nil, nil, nil

	var err error
	if u.maxPower, err = u.RequireVector(r, "MaxPower"); err != nil {
		return err
	}
	if u.minPower, err = u.ReadVector(r, "MinPower", []float64{0}); err != nil {
		return err
	}
	if u.gamma, err = u.ReadVector(r, "Gamma", []float64{0}); err != nil {
		return err
	}
	if u.cost, err = u.ReadVector(r, "ActivePowerCost", []float64{0}); err != nil {
		return err
	}
	u.kappa, u.scale = 1, 1
	if v, ok := r.ReadScalar("Kappa"); ok {
		u.kappa = v
	}
	if v, ok := r.ReadScalar("Scale"); ok {
		u.scale = v
	}
	for t := range u.maxPower {
		if u.minPower[t] > u.maxPower[t] {
			return u.Inconsistent("MaxPower", -1, t, "%v below MinPower %v", u.maxPower[t], u.minPower[t])
		}
	}
	return nil
}

// Power returns the active power variable at t.
func (u *Unit) Power(t int) *lp.Variable {
	return u.power[t]
}

// MaxPowerRow returns P + pr + sc <= kappa*MaxPower at t.
func (u *Unit) MaxPowerRow(t int) *lp.Row {
	return u.maxPowerRow[t]
}

// MinPowerRow returns P - pr - sc >= kappa*MinPower at t.
func (u *Unit) MinPowerRow(t int) *lp.Row {
	return u.minPowerRow[t]
}

// GenerateVariables creates the power and requested reserve variables.
func (u *Unit) GenerateVariables(caps unit.Capabilities) error {
	return u.Generate(unit.VariablesReady, func() error {
		T := u.Horizon()
		b := u.Block()
		u.power = make([]*lp.Variable, T)
		for t := range u.power {
			u.power[t] = b.AddVariable(fmt.Sprintf("power[%d]", t), 0, lp.Inf)
		}
		if caps.PrimaryReserve {
			u.primary = make([]*lp.Variable, T)
			for t := range u.primary {
				u.primary[t] = b.AddVariable(fmt.Sprintf("pr[%d]", t), 0, lp.Inf)
			}
		}
		if caps.SecondaryReserve {
			u.secondary = make([]*lp.Variable, T)
			for t := range u.secondary {
				u.secondary[t] = b.AddVariable(fmt.Sprintf("sc[%d]", t), 0, lp.Inf)
			}
		}
		return nil
	})
}

// GenerateConstraints creates the power bounds with reserves.
func (u *Unit) GenerateConstraints(caps unit.Capabilities) error {
	if err := u.GenerateVariables(caps); err != nil {
		return err
	}
	return u.Generate(unit.ConstraintsReady, func() error {
		T := u.Horizon()
		b := u.Block()
		minRows := make([]*lp.Row, T)
		maxRows := make([]*lp.Row, T)
		for t := 0; t < T; t++ {
			minRows[t] = b.AddRow(lp.GreaterEqual(fmt.Sprintf("minPower[%d]", t), u.kappa*u.minPower[t], u.reservedPower(t, -1)...))
			maxRows[t] = b.AddRow(lp.LessEqual(fmt.Sprintf("maxPower[%d]", t), u.kappa*u.maxPower[t], u.reservedPower(t, 1)...))
		}
		u.minPowerRow, u.maxPowerRow = minRows, maxRows
		return nil
	})
}

func (u *Unit) reservedPower(t int, sign float64) []lp.Term {
	terms := []lp.Term{{Var: u.power[t], Coef: 1}}
	if u.primary != nil {
		terms = append(terms, lp.Term{Var: u.primary[t], Coef: sign})
	}
	if u.secondary != nil {
		terms = append(terms, lp.Term{Var: u.secondary[t], Coef: sign})
	}
	return terms
}

// GenerateObjective charges ActivePowerCost on the produced power.
func (u *Unit) GenerateObjective(caps unit.Capabilities) error {
	if err := u.GenerateConstraints(caps); err != nil {
		return err
	}
	return u.Generate(unit.ObjectiveReady, func() error {
		terms := make([]lp.Term, len(u.power))
		for t, p := range u.power {
			terms[t] = lp.Term{Var: p, Coef: u.scale * u.cost[t]}
		}
		u.Block().Objective().SetTerms(terms...)
		return nil
	})
}

// IsFeasible checks the current variable values against the unit's block.
func (u *Unit) IsFeasible(tol float64) bool {
	return u.Feasible(tol)
}

// PowerTerms returns the active power at t.
func (u *Unit) PowerTerms(t int) []lp.Term {
	return single(u.power, t, 1)
}

// PrimaryReserveTerms returns the primary reserve at t.
func (u *Unit) PrimaryReserveTerms(t int) []lp.Term {
	return single(u.primary, t, 1)
}

// SecondaryReserveTerms returns the secondary reserve at t.
func (u *Unit) SecondaryReserveTerms(t int) []lp.Term {
	return single(u.secondary, t, 1)
}

// InertiaTerms weighs the active power by Gamma.
func (u *Unit) InertiaTerms(t int) []lp.Term {
	if t < 0 || t >= len(u.gamma) || u.gamma[t] == 0 {
		return nil
	}
	return single(u.power, t, u.gamma[t])
}

func single(vars []*lp.Variable, t int, c float64) []lp.Term {
	if t < 0 || t >= len(vars) {
		return nil
	}
	return []lp.Term{{Var: vars[t], Coef: c}}
}

// Serialize writes the unit in its smallest faithful encoding.
func (u *Unit) Serialize(w group.Writer) error {
	u.WriteTimeFrame(w)
	u.WriteVector(w, "MinPower", u.minPower)
	u.WriteVector(w, "MaxPower", u.maxPower)
	u.WriteVector(w, "Gamma", u.gamma)
	u.WriteVector(w, "ActivePowerCost", u.cost)
	w.WriteScalar("Kappa", u.kappa)
	w.WriteScalar("Scale", u.scale)
	return nil
}
